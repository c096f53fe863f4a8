package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	"github.com/uptrace/bun/schema"

	"github.com/upkeephq/upkeep"
)

func main() {
	cfg, err := upkeep.LoadConfig()
	if err != nil {
		log.Fatalf("configuration error: %v", err)
	}

	db, err := openDatabase(cfg)
	if err != nil {
		log.Fatalf("database error: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	if err := upkeep.EnsureSchema(ctx, db); err != nil {
		log.Fatalf("schema error: %v", err)
	}

	repo := upkeep.NewRepositoryManager(db)
	repo.MustValidate()

	tokens, err := upkeep.NewTokenService(
		[]byte(cfg.GetSigningKey()),
		cfg.GetIssuer(),
		cfg.GetAudience(),
		nil,
	)
	if err != nil {
		log.Fatalf("token service error: %v", err)
	}

	auther := upkeep.NewAuthenticator(repo, tokens)
	controller := upkeep.NewAuthController(auther, tokens)

	app := fiber.New(fiber.Config{
		AppName:      "upkeep",
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	})
	upkeep.RegisterAuthRoutes(app, controller)

	errCh := make(chan error, 1)
	go func() {
		errCh <- app.Listen(cfg.Server.Address)
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			log.Fatalf("server error: %v", err)
		}
	case sig := <-stop:
		log.Printf("received %s, shutting down", sig)
		shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		if err := app.ShutdownWithContext(shutdownCtx); err != nil {
			log.Printf("shutdown error: %v", err)
		}
	}
}

func openDatabase(cfg *upkeep.AppConfig) (*bun.DB, error) {
	var (
		sqldb   *sql.DB
		dialect schema.Dialect
		err     error
	)

	switch cfg.Database.Driver {
	case "postgres":
		sqldb, err = sql.Open("pgx", cfg.Database.DSN)
		dialect = pgdialect.New()
	case "sqlite":
		sqldb, err = sql.Open(sqliteshim.ShimName, cfg.Database.DSN)
		dialect = sqlitedialect.New()
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Database.Driver)
	}
	if err != nil {
		return nil, err
	}

	return bun.NewDB(sqldb, dialect), nil
}
