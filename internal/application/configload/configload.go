// Package configload reads the dashboard's optional site configuration
// document. Missing or malformed configuration must never block dashboard
// load, so every failure path yields the zero Configuration.
package configload

import (
	"context"
	"encoding/json"
	"log/slog"
)

// DefaultPath is the site-relative location of the configuration document.
const DefaultPath = "/siteassets/report-dashboard/config.json"

// Configuration carries the optional group-name overrides. Absence of a
// field means "use the store's default role-group convention".
type Configuration struct {
	AdminGroupName   string `json:"adminGroupName,omitempty"`
	MembersGroupName string `json:"membersGroupName,omitempty"`
	EmailRecipients  string `json:"emailRecipients,omitempty"`
}

// FileFetcher fetches a site-relative file's raw bytes.
type FileFetcher interface {
	FileContent(ctx context.Context, path string) ([]byte, error)
}

// Load fetches and parses the configuration document at path. A fetch error,
// empty file, or malformed JSON all resolve to the zero Configuration; no
// retries are made.
// PRE: files is non-nil
// POST: Always returns a usable Configuration, never an error
func Load(ctx context.Context, files FileFetcher, path string) Configuration {
	if path == "" {
		path = DefaultPath
	}
	raw, err := files.FileContent(ctx, path)
	if err != nil {
		slog.Info("config_event", "event", "config_missing", "path", path, "error", err)
		return Configuration{}
	}
	var cfg Configuration
	if err := json.Unmarshal(raw, &cfg); err != nil {
		slog.Warn("config_event", "event", "config_malformed", "path", path, "error", err)
		return Configuration{}
	}
	return cfg
}
