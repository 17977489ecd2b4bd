package browser_test

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/playwright-community/playwright-go"

	_ "modernc.org/sqlite"

	emailPkg "obsdash/internal/adapters/email"
	web "obsdash/internal/adapters/http"
	"obsdash/internal/adapters/http/middleware"
	"obsdash/internal/adapters/http/perf"
	"obsdash/internal/adapters/recordstore"
	"obsdash/internal/devstore"
)

const (
	editorUserID = 1
	viewerUserID = 2
)

// testApp holds the running dashboard, its backing devstore, and the
// Playwright handles.
type testApp struct {
	BaseURL string
	Store   *devstore.SQLiteStore
	PW      *playwright.Playwright
	Browser playwright.Browser
}

// newTestApp stands up a devstore over a temp SQLite DB, points a dashboard
// server at it, and launches a headless browser.
func newTestApp(t *testing.T) *testApp {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "devstore.db")
	dsn := dbPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(ON)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		t.Fatalf("failed to open test DB: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := devstore.InitDB(db); err != nil {
		t.Fatalf("failed to init devstore schema: %v", err)
	}
	if err := devstore.Seed(db); err != nil {
		t.Fatalf("failed to seed devstore: %v", err)
	}
	store := devstore.NewSQLiteStore(db)

	ctx := context.Background()
	store.AddUser(ctx, editorUserID, "Edna Editor", "edna@example.mil")
	store.AddUser(ctx, viewerUserID, "Vic Viewer", "vic@example.mil")
	store.AddOwner(ctx, editorUserID)

	storeSrv := httptest.NewServer(devstore.NewHandler(store))
	t.Cleanup(storeSrv.Close)
	client := recordstore.NewRESTClient(storeSrv.URL, "Observation Reports")

	// Find a free port for the dashboard
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to find free port: %v", err)
	}
	port := listener.Addr().(*net.TCPAddr).Port
	listener.Close()

	// Change to project root so relative template paths work
	projectRoot := findProjectRoot(t)
	origDir, _ := os.Getwd()
	if err := os.Chdir(projectRoot); err != nil {
		t.Fatalf("failed to chdir to project root: %v", err)
	}
	t.Cleanup(func() { os.Chdir(origDir) })

	// Trust the test server's origin for CSRF and lift the rate limit so
	// parallel page loads don't trip it.
	middleware.ExtraTrustedOrigins = append(middleware.ExtraTrustedOrigins,
		fmt.Sprintf("127.0.0.1:%d", port),
		fmt.Sprintf("localhost:%d", port),
	)
	web.RateLimitPerSecond = 1000

	mux := web.NewMux(web.Options{
		Store:      client,
		Sender:     emailPkg.NewStoreSender(client),
		EmailFrom:  "dashboard@example.mil",
		ConfigPath: "/siteassets/report-dashboard/config.json",
		Collector:  perf.NewCollector(perf.DefaultRingSize),
		Version:    "test",
	})
	srv := &http.Server{
		Addr:    fmt.Sprintf("127.0.0.1:%d", port),
		Handler: mux,
	}
	go func() {
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			log.Printf("test server error: %v", err)
		}
	}()
	t.Cleanup(func() { srv.Close() })

	// Wait for the server to accept connections. Requests without an
	// identity header get a 401; that still proves the server is up.
	baseURL := fmt.Sprintf("http://127.0.0.1:%d", port)
	for i := 0; i < 50; i++ {
		resp, err := http.Get(baseURL + "/")
		if err == nil {
			resp.Body.Close()
			break
		}
		time.Sleep(100 * time.Millisecond)
	}

	pw, err := playwright.Run()
	if err != nil {
		t.Fatalf("failed to start Playwright: %v", err)
	}
	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(true),
	})
	if err != nil {
		t.Fatalf("failed to launch browser: %v", err)
	}
	t.Cleanup(func() {
		browser.Close()
		pw.Stop()
	})

	return &testApp{
		BaseURL: baseURL,
		Store:   store,
		PW:      pw,
		Browser: browser,
	}
}

// pageAs opens a page whose requests carry the given user's identity
// headers, the way the hosting proxy injects them.
func (a *testApp) pageAs(t *testing.T, userID int, name, email string) playwright.Page {
	t.Helper()
	ctx, err := a.Browser.NewContext(playwright.BrowserNewContextOptions{
		ExtraHttpHeaders: map[string]string{
			middleware.HeaderUserID:    strconv.Itoa(userID),
			middleware.HeaderUserName:  name,
			middleware.HeaderUserEmail: email,
		},
	})
	if err != nil {
		t.Fatalf("failed to create browser context: %v", err)
	}
	t.Cleanup(func() { ctx.Close() })
	page, err := ctx.NewPage()
	if err != nil {
		t.Fatalf("failed to create page: %v", err)
	}
	return page
}

// seedReport inserts one report directly into the devstore.
func (a *testApp) seedReport(t *testing.T, title string) recordstore.WireItem {
	t.Helper()
	item, err := a.Store.InsertItem(context.Background(), recordstore.WireItem{
		Title:      title,
		EventName:  "Exercise Northern Edge",
		Topic:      "Communications",
		ObservedBy: recordstore.WireUser{ID: editorUserID},
		Status:     "New",
		EmailRecipients: []recordstore.WireUser{
			{ID: viewerUserID},
		},
	})
	if err != nil {
		t.Fatalf("failed to seed report: %v", err)
	}
	return item
}

// findProjectRoot walks up from the working directory to find the project root (contains go.mod).
func findProjectRoot(t *testing.T) string {
	t.Helper()
	dir, err := os.Getwd()
	if err != nil {
		t.Fatalf("failed to get working directory: %v", err)
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			t.Fatalf("could not find project root (go.mod) from working directory")
		}
		dir = parent
	}
}
