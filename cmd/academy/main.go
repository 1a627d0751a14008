package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dukerupert/academy/internal/auth"
	"github.com/dukerupert/academy/internal/config"
	"github.com/dukerupert/academy/internal/database"
	"github.com/dukerupert/academy/internal/email"
	"github.com/dukerupert/academy/internal/fcm"
	"github.com/dukerupert/academy/internal/imagehost"
	"github.com/dukerupert/academy/internal/logging"
	"github.com/dukerupert/academy/internal/model"
	"github.com/dukerupert/academy/internal/payment"
	"github.com/dukerupert/academy/internal/push"
	"github.com/dukerupert/academy/internal/server"
	"github.com/dukerupert/academy/internal/store"
)

const usage = `usage: academy [command]

commands:
  serve                            run the web server (default)
  vapid-keys                       print a fresh VAPID key pair
  create-admin <email> <password>  create or promote an admin account`

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logger := logging.Setup(cfg.LogLevel, cfg.LogFormat)

	cmd := "serve"
	if len(os.Args) > 1 {
		cmd = os.Args[1]
	}

	switch cmd {
	case "serve":
		err = serve(cfg, logger)
	case "vapid-keys":
		err = vapidKeys()
	case "create-admin":
		if len(os.Args) != 4 {
			fmt.Fprintln(os.Stderr, usage)
			os.Exit(2)
		}
		err = createAdmin(cfg, os.Args[2], os.Args[3])
	default:
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil {
		slog.Error("academy failed", "command", cmd, "error", err)
		os.Exit(1)
	}
}

func serve(cfg config.Config, logger *slog.Logger) error {
	db, err := database.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	gateway, err := payment.NewGateway(cfg.Payment, logger.With("component", "payment"))
	if err != nil {
		return err
	}

	ext := server.Externals{
		Gateway:  gateway,
		Mailer:   email.New(cfg.Email),
		Uploader: imagehost.New(cfg.Images),
	}

	if cfg.Firebase.Enabled() {
		app, err := fcm.NewApp(ctx, cfg.Firebase)
		if err != nil {
			return err
		}
		msg, err := app.Messaging(ctx)
		if err != nil {
			return fmt.Errorf("firebase messaging: %w", err)
		}
		ext.FCM = fcm.New(msg, logger.With("component", "fcm"), fcm.WithBaseURL(cfg.BaseURL))

		authClient, err := app.Auth(ctx)
		if err != nil {
			return fmt.Errorf("firebase auth: %w", err)
		}
		ext.Verifier = auth.NewFirebaseVerifier(authClient)
	} else {
		slog.Info("firebase not configured, sign-in with google and fcm disabled")
	}

	srv, err := server.New(db, cfg, ext, logger)
	if err != nil {
		return err
	}

	// Stopped explicitly after the HTTP drain so late events still go out.
	srv.Dispatcher().Start(context.Background())
	go srv.CleanupLoop(ctx, time.Hour)

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("academy starting", "addr", httpServer.Addr, "base_url", cfg.BaseURL, "gateway", gateway.Name())
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server: %w", err)
		}
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	srv.Dispatcher().Stop()
	return nil
}

func vapidKeys() error {
	pub, priv, err := push.GenerateVAPIDKeys()
	if err != nil {
		return err
	}
	fmt.Printf("VAPID_PUBLIC_KEY=%s\nVAPID_PRIVATE_KEY=%s\n", pub, priv)
	return nil
}

func createAdmin(cfg config.Config, emailAddr, password string) error {
	if len(password) < 8 {
		return errors.New("password must be at least 8 characters")
	}
	db, err := database.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	ctx := context.Background()
	users := store.NewUserStore(db)

	user, err := users.GetByEmail(ctx, emailAddr)
	switch {
	case err != nil:
		return err
	case user == nil:
		user, err = users.Create(ctx, "", emailAddr, emailAddr, model.RoleAdmin)
		if err != nil {
			return err
		}
	default:
		if err := users.SetRole(ctx, user.ID, model.RoleAdmin); err != nil {
			return err
		}
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	if err := users.SetPasswordHash(ctx, user.ID, hash); err != nil {
		return err
	}
	fmt.Printf("admin %s ready\n", emailAddr)
	return nil
}
