package configload_test

import (
	"context"
	"testing"

	"obsdash/internal/adapters/recordstore"
	"obsdash/internal/application/configload"
)

// TestLoad_FallsBackToEmpty covers the three failure scenarios that must all
// yield the empty configuration: missing file, non-JSON content, empty file.
func TestLoad_FallsBackToEmpty(t *testing.T) {
	tests := []struct {
		name string
		seed func(m *recordstore.MemoryClient)
	}{
		{name: "missing file", seed: func(m *recordstore.MemoryClient) {}},
		{
			name: "non-JSON content",
			seed: func(m *recordstore.MemoryClient) {
				m.SetFile(configload.DefaultPath, []byte("<html>not json</html>"))
			},
		},
		{
			name: "empty file",
			seed: func(m *recordstore.MemoryClient) {
				m.SetFile(configload.DefaultPath, []byte(""))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := recordstore.NewMemoryClient()
			tt.seed(m)
			cfg := configload.Load(context.Background(), m, "")
			if cfg != (configload.Configuration{}) {
				t.Errorf("Load() = %+v, want zero Configuration", cfg)
			}
		})
	}
}

// TestLoad_ParsesDocument verifies a well-formed document round-trips.
func TestLoad_ParsesDocument(t *testing.T) {
	m := recordstore.NewMemoryClient()
	m.SetFile("/custom/config.json", []byte(`{"adminGroupName":"Report Admins","membersGroupName":"Report Members","emailRecipients":"ops@x.com"}`))

	cfg := configload.Load(context.Background(), m, "/custom/config.json")
	if cfg.AdminGroupName != "Report Admins" {
		t.Errorf("AdminGroupName = %q, want %q", cfg.AdminGroupName, "Report Admins")
	}
	if cfg.MembersGroupName != "Report Members" {
		t.Errorf("MembersGroupName = %q, want %q", cfg.MembersGroupName, "Report Members")
	}
	if cfg.EmailRecipients != "ops@x.com" {
		t.Errorf("EmailRecipients = %q, want %q", cfg.EmailRecipients, "ops@x.com")
	}
}

// TestLoad_UnknownKeysIgnored verifies extra keys don't break parsing.
func TestLoad_UnknownKeysIgnored(t *testing.T) {
	m := recordstore.NewMemoryClient()
	m.SetFile(configload.DefaultPath, []byte(`{"adminGroupName":"A","theme":"dark"}`))

	cfg := configload.Load(context.Background(), m, configload.DefaultPath)
	if cfg.AdminGroupName != "A" {
		t.Errorf("AdminGroupName = %q, want %q", cfg.AdminGroupName, "A")
	}
}
