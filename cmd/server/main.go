package main

import (
	"log"
	"net/http"
	"os"
	"strconv"

	emailPkg "obsdash/internal/adapters/email"
	web "obsdash/internal/adapters/http"
	"obsdash/internal/adapters/http/middleware"
	"obsdash/internal/adapters/http/perf"
	"obsdash/internal/adapters/recordstore"
)

// version is set at build time via -ldflags "-X main.version=..."
var version = "dev"

func main() {
	env := envOrDefault("OBSDASH_ENV", "development")

	// Record store connection. The dashboard owns no data of its own; every
	// read and write goes to the store's REST surface.
	storeURL := os.Getenv("OBSDASH_STORE_URL")
	if storeURL == "" {
		log.Fatal("OBSDASH_STORE_URL is required (run cmd/devstore for a local store)")
	}
	listName := envOrDefault("OBSDASH_LIST", "Observation Reports")
	store := recordstore.NewRESTClient(storeURL, listName)
	configPath := envOrDefault("OBSDASH_CONFIG_PATH", "/siteassets/report-dashboard/config.json")

	// Email sender: Resend when a key is set, otherwise relay through the
	// record store's send endpoint.
	resendKey := os.Getenv("OBSDASH_RESEND_KEY")
	emailFrom := envOrDefault("OBSDASH_EMAIL_FROM", "Observation Dashboard <noreply@example.mil>")
	emailReply := envOrDefault("OBSDASH_REPLY_TO", "")
	var sender emailPkg.Sender
	if resendKey != "" {
		sender = emailPkg.NewResendSender(resendKey, emailFrom)
		log.Println("Email sender configured (Resend)")
	} else {
		sender = emailPkg.NewStoreSender(store)
		log.Println("Email sender configured (record store relay — set OBSDASH_RESEND_KEY for direct delivery)")
	}

	// Development identity fallback for requests without injected headers.
	// In production the hosting proxy always injects the identity.
	var fallback middleware.Identity
	if env != "production" {
		fallback = middleware.Identity{
			UserID: envIntOrDefault("OBSDASH_DEV_USER_ID", 1),
			Name:   envOrDefault("OBSDASH_DEV_USER_NAME", "Dev User"),
			Email:  envOrDefault("OBSDASH_DEV_USER_EMAIL", "dev@example.mil"),
		}
	}

	collector := perf.NewCollector(perf.DefaultRingSize)
	mux := web.NewMux(web.Options{
		Store:        store,
		Sender:       sender,
		EmailFrom:    emailFrom,
		EmailReplyTo: emailReply,
		ConfigPath:   configPath,
		Collector:    collector,
		Fallback:     fallback,
		Version:      version,
	})

	addr := envOrDefault("OBSDASH_ADDR", ":8080")
	log.Printf("Observation Dashboard %s starting on %s (env=%s, store=%s, list=%q)",
		version, addr, env, storeURL, listName)

	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOrDefault(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
