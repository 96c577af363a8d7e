package main

import (
	"context"
	"crypto/sha256"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"feedback/auth"
	"feedback/config"
	"feedback/crypto"
	"feedback/db"
	"feedback/handlers"
	"feedback/templates"

	"github.com/gorilla/sessions"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

func main() {
	configPath := flag.String("config", "config.json", "path to the JSON config file")
	seed := flag.Bool("seed", false, "create the demo users test1 and admin, then exit")
	flag.Parse()

	if err := config.LoadConfig(*configPath); err != nil {
		log.Fatalf("Error loading config: %v", err)
	}
	cfg := config.AppConfig
	config.ConfigureLogging(cfg)

	conn, err := db.Open(cfg.DatabaseDriver, cfg.DatabaseDSN, cfg.SQLEcho)
	if err != nil {
		log.Fatalf("Error opening database: %v", err)
	}
	defer db.Close(conn)

	if err := db.Migrate(conn); err != nil {
		log.Fatalf("Error migrating database: %v", err)
	}
	store := db.NewStore(conn)

	hasher, err := crypto.NewHasher(cfg.PasswordHasher, cfg.BcryptCost)
	if err != nil {
		log.Fatalf("Error creating password hasher: %v", err)
	}
	svc, err := auth.NewService(store, hasher)
	if err != nil {
		log.Fatalf("Error creating auth service: %v", err)
	}

	if *seed {
		if err := seedDemoUsers(context.Background(), store, svc); err != nil {
			log.Fatalf("Error seeding database: %v", err)
		}
		return
	}

	sessionStore, closeStore, err := newSessionStore(cfg)
	if err != nil {
		log.Fatalf("Error creating session store: %v", err)
	}
	defer closeStore()

	views, err := templates.New()
	if err != nil {
		log.Fatalf("Error parsing templates: %v", err)
	}

	h := handlers.New(store, svc, auth.NewSessions(sessionStore).CheckAgainst(store), views)

	mux := http.NewServeMux()
	// Static files
	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.Dir("static"))))
	mux.Handle("/", h.Routes())

	// CSRF Protection with its own key derived from the session key
	csrfKey := sha256.Sum256([]byte(cfg.SessionKey + "csrf"))
	csrfMiddleware := handlers.CSRFMiddleware(csrfKey[:], cfg.SecureCookies, http.HandlerFunc(h.Forbidden))

	addr := fmt.Sprintf("%s:%d", cfg.ListenIP, cfg.ListenPort)
	server := &http.Server{
		Addr:              addr,
		Handler:           handlers.SecurityHeadersMiddleware(handlers.LoggingMiddleware(csrfMiddleware(mux))),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.WithFields(log.Fields{"addr": addr, "app": cfg.AppName}).Info("server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err)
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithFields(log.Fields{"error": err}).Error("graceful shutdown failed")
	}
}

// newSessionStore keeps sessions in redis when redis_addr is set and in the
// signed, encrypted cookie otherwise.
func newSessionStore(cfg config.Config) (sessions.Store, func(), error) {
	if cfg.RedisAddr == "" {
		return auth.NewCookieStore(cfg.SessionKey, cfg.SecureCookies), func() {}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, nil, errors.Wrapf(err, "connecting to redis at %s", cfg.RedisAddr)
	}

	log.WithFields(log.Fields{"addr": cfg.RedisAddr}).Info("using redis session store")
	return auth.NewRedisStoreFromKey(client, cfg.SessionKey, cfg.SecureCookies), func() { client.Close() }, nil
}
