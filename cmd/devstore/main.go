// Command devstore runs a local SQLite-backed record store exposing the
// REST surface the dashboard consumes. Development only.
package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"

	_ "modernc.org/sqlite"

	"obsdash/internal/devstore"
)

func main() {
	dbPath := envOrDefault("DEVSTORE_DB", "devstore.db")
	dsn := dbPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(ON)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)

	if err := db.Ping(); err != nil {
		log.Fatalf("database unreachable: %v", err)
	}
	if err := devstore.InitDB(db); err != nil {
		log.Fatalf("failed to initialize schema: %v", err)
	}
	if err := devstore.Seed(db); err != nil {
		log.Fatalf("failed to seed field schema: %v", err)
	}

	store := devstore.NewSQLiteStore(db)
	seedDevData(store)

	addr := envOrDefault("DEVSTORE_ADDR", ":8081")
	log.Printf("devstore serving on %s (db=%s)", addr, dbPath)
	if err := http.ListenAndServe(addr, devstore.NewHandler(store)); err != nil {
		log.Fatalf("devstore failed: %v", err)
	}
}

// seedDevData provisions a small site: two users, the dev user as an owner,
// and the dashboard's configuration document. Idempotent.
func seedDevData(store *devstore.SQLiteStore) {
	ctx := context.Background()
	must(store.AddUser(ctx, 1, "Dev User", "dev@example.mil"))
	must(store.AddUser(ctx, 2, "Viewer User", "viewer@example.mil"))
	must(store.AddOwner(ctx, 1))
	must(store.PutFile(ctx, "/siteassets/report-dashboard/config.json",
		[]byte(`{"emailRecipients":["dev@example.mil"]}`)))
}

func must(err error) {
	if err != nil {
		log.Fatalf("failed to seed dev data: %v", err)
	}
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
