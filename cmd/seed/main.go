// Command seed creates development accounts in PostgreSQL and prints a token for each.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"chatsync/internal/auth"
	"chatsync/internal/config"
	"chatsync/internal/db"
	"chatsync/internal/logger"
	"chatsync/internal/seed"
	"chatsync/internal/store"
)

func main() {
	users := flag.String("users", "", `accounts to create, "email:name,email:name" (default SEED_USERS)`)
	password := flag.String("password", "", "password for new accounts (default SEED_PASSWORD)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config.load", "err", err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel)

	if *users == "" {
		*users = cfg.SeedUsers
	}
	if *password == "" {
		*password = cfg.SeedPassword
	}
	if !cfg.UseDatabase() {
		log.Error("seed.config", "err", "DB_DSN is not set")
		os.Exit(1)
	}

	accounts, err := seed.Parse(*users)
	if err != nil {
		log.Error("seed.parse", "err", err)
		os.Exit(1)
	}
	if len(accounts) == 0 {
		log.Error("seed.parse", "err", "no accounts given")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	database, err := db.NewDatabase(ctx, cfg.DBDSN)
	if err != nil {
		log.Error("db.connect", "err", err)
		os.Exit(1)
	}
	defer database.Close()
	if err := database.AutoMigrate(ctx); err != nil {
		log.Error("db.migrate", "err", err)
		os.Exit(1)
	}

	results, err := seed.Run(ctx, store.NewPostgres(database.Conn), auth.NewTokens(cfg.JWTSecret, 0), accounts, *password)
	if err != nil {
		log.Error("seed.run", "err", err)
		os.Exit(1)
	}
	for _, res := range results {
		// One line per account on stdout so scripts can pick the tokens up.
		fmt.Printf("%s\t%s\t%s\n", res.User.ID, res.User.Email, res.Token)
	}
}
