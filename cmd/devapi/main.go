package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/hana/fieldmate/internal/router"
	"github.com/hana/fieldmate/internal/stubapi"
	"github.com/hana/fieldmate/pkg/database"
	"github.com/hana/fieldmate/pkg/utilities"
)

func main() {
	// load .env file if present so os.Getenv picks values from it
	_ = godotenv.Load()

	lg, err := utilities.Init(utilities.ConfigFromEnv())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer lg.Sync()

	sugar := lg.Sugar()
	sugar.Info("starting fieldmate devapi")

	// keep members out of the client's own state file unless told otherwise
	dbCfg := database.ConfigFromEnv()
	if os.Getenv("DATABASE_URL") == "" && dbCfg.Driver == database.DriverSQLite {
		dbCfg.DSN = "file:fieldmate-devapi.db?_pragma=busy_timeout(5000)"
	}
	db, err := database.Open(dbCfg)
	if err != nil {
		sugar.Fatalf("db connect: %v", err)
	}
	defer db.Close()

	cfg := stubapi.ConfigFromEnv()
	tokens, err := stubapi.NewTokenIssuer("fieldmate-devapi", nil)
	if err != nil {
		sugar.Fatalf("token issuer: %v", err)
	}
	svc := stubapi.NewService(db, nil, tokens, nil, sugar, cfg)
	if err := svc.EnsureSchema(context.Background()); err != nil {
		sugar.Fatalf("ensure schema: %v", err)
	}

	// graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router.RegisterRoutes(sugar, stubapi.NewHandler(svc, sugar)),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			sugar.Fatalf("http server failed: %v", err)
		}
	}()
	sugar.Infow("service is running; press Ctrl+C to stop", "addr", cfg.Addr, "access_ttl", cfg.AccessTTL.String())

	<-ctx.Done()

	sugar.Info("shutting down")

	doneCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(doneCtx); err != nil {
		sugar.Warnf("db ping on shutdown failed: %v", err)
	}
	if err := srv.Shutdown(doneCtx); err != nil {
		sugar.Warnf("http server shutdown failed: %v", err)
	}

	sugar.Info("goodbye")
}
