// Package web serves the dashboard: a table view over the data source's
// snapshot plus the form, delete, and email flows. Handlers never mutate
// records in place — every mutating flow ends with a snapshot reload.
package web

import (
	"crypto/rand"
	"encoding/hex"
	"log"
	"net/http"
	"os"
	"sync"
	"time"

	"obsdash/internal/adapters/email"
	"obsdash/internal/adapters/http/middleware"
	"obsdash/internal/adapters/http/perf"
	"obsdash/internal/adapters/recordstore"
	"obsdash/internal/application/datasource"
)

// RateLimitPerSecond controls the per-IP rate limit. Tests can increase this.
var RateLimitPerSecond = 10

// Options carries the app's wiring.
type Options struct {
	Store        recordstore.Client
	Sender       email.Sender
	EmailFrom    string
	EmailReplyTo string
	ConfigPath   string // site-relative path of the configuration document
	Collector    *perf.Collector
	Fallback     middleware.Identity // dev identity when the host injects none
	Version      string
	TemplatesDir string // empty means the default
}

// App holds one dashboard deployment's dependencies and the per-user data
// sources. State is per-instance so concurrent apps (tests) don't share.
type App struct {
	store        recordstore.Client
	sender       email.Sender
	emailFrom    string
	emailReplyTo string
	configPath   string
	collector    *perf.Collector
	version      string
	templatesDir string

	mu      sync.Mutex
	sources map[int]*datasource.DataSource
}

// NewApp creates the app without the middleware stack. Used directly by
// handler tests.
func NewApp(opts Options) *App {
	dir := opts.TemplatesDir
	if dir == "" {
		dir = "internal/adapters/http/templates"
	}
	return &App{
		store:        opts.Store,
		sender:       opts.Sender,
		emailFrom:    opts.EmailFrom,
		emailReplyTo: opts.EmailReplyTo,
		configPath:   opts.ConfigPath,
		collector:    opts.Collector,
		version:      opts.Version,
		templatesDir: dir,
		sources:      make(map[int]*datasource.DataSource),
	}
}

// NewMux wires HTTP handlers and the middleware chain for the app.
func NewMux(opts Options) http.Handler {
	app := NewApp(opts)

	mux := http.NewServeMux()
	app.registerRoutes(mux)

	csrfKey := loadCSRFKey()
	limiter := middleware.NewRateLimiter(RateLimitPerSecond, time.Second)

	// Apply middleware: Timing -> RateLimit -> Identity -> CSRF -> SecurityHeaders -> Mux
	return middleware.Chain(mux,
		middleware.SecurityHeaders,
		middleware.CSRF(csrfKey),
		middleware.Injection(opts.Fallback),
		middleware.RateLimit(limiter),
		middleware.Timing(opts.Collector),
	)
}

// source returns the data source for one session user, creating and
// initializing it on first use. A Failed source re-runs Init on the next
// request, so a transient store outage is retried per request, never
// automatically.
func (a *App) source(r *http.Request) (*datasource.DataSource, error) {
	id, _ := middleware.GetIdentityFromContext(r.Context())
	a.mu.Lock()
	ds, ok := a.sources[id.UserID]
	if !ok {
		ds = datasource.New(a.store, a.configPath, id.UserID)
		a.sources[id.UserID] = ds
	}
	a.mu.Unlock()

	if ds.State() != datasource.StateReady {
		if err := ds.Init(r.Context()); err != nil {
			return nil, err
		}
	}
	return ds, nil
}

// loadCSRFKey reads the CSRF secret from OBSDASH_CSRF_KEY (hex-encoded, 32
// bytes). In production the key MUST be set; in development a random key is
// generated per startup.
func loadCSRFKey() []byte {
	if keyHex := os.Getenv("OBSDASH_CSRF_KEY"); keyHex != "" {
		key, err := hex.DecodeString(keyHex)
		if err != nil || len(key) != 32 {
			log.Fatal("OBSDASH_CSRF_KEY must be 64 hex characters (32 bytes)")
		}
		return key
	}
	if os.Getenv("OBSDASH_ENV") == "production" {
		log.Fatal("OBSDASH_CSRF_KEY is required in production")
	}
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		log.Fatalf("failed to generate CSRF key: %v", err)
	}
	log.Println("WARNING: using random CSRF key (tokens won't survive restart). Set OBSDASH_CSRF_KEY for production.")
	return key
}
