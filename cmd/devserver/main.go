// Command devserver runs a local fake of the SmartCall helpdesk backend
// so the terminal client can be developed without the production API.
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/smartcall/helpdesk-go/internal/config"
	"github.com/smartcall/helpdesk-go/internal/devserver"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
		log.Println("continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	store := devserver.NewStore()
	seedDemoUser(store)

	responder := devserver.NewResponder(ctx, cfg.AI)
	jwtService := devserver.NewJWTService(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	server := devserver.New(store, jwtService, responder)

	startServer(ctx, cfg.Server, server.Router())
}

// seedDemoUser registers a fixed account so the client can log in
// against a fresh dev server without registering first.
func seedDemoUser(store *devserver.Store) {
	const email, password = "demo@smartcall.app", "demo1234"
	if _, err := store.CreateUser(email, "Usuário Demo", password); err != nil {
		log.Printf("warning: failed to seed demo user: %v", err)
		return
	}
	log.Printf("[devserver] demo user available: %s / %s", email, password)
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("SmartCall dev server listening on %s", addr)
	if err := runServer(ctx, srv); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
