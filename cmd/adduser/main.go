// Command adduser creates or updates an account from the command line.
// There is no self-service signup; accounts are provisioned by an operator.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"gastos/internal/auth"
	"gastos/internal/config"
	"gastos/internal/core"
	applog "gastos/internal/log"
	"gastos/internal/storage"
)

func main() {
	username := flag.String("username", "", "account username (required)")
	password := flag.String("password", "", "account password (required)")
	admin := flag.Bool("admin", false, "grant admin rights")
	manager := flag.Bool("manager", false, "grant manager rights")
	flag.Parse()

	if *username == "" || *password == "" {
		fmt.Fprintln(os.Stderr, "usage: adduser -username NAME -password SECRET [-admin] [-manager]")
		os.Exit(2)
	}

	_ = godotenv.Load()
	logger := applog.New(applog.Config{Level: slog.LevelWarn})
	cfg := config.Load()

	repo, err := storage.New(cfg.SQLiteDBPath, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open database: %v\n", err)
		os.Exit(1)
	}
	defer repo.Close()

	hash, err := auth.HashPassword(*password)
	if err != nil {
		fmt.Fprintf(os.Stderr, "hash password: %v\n", err)
		os.Exit(1)
	}

	u, err := repo.UpsertUser(context.Background(), core.User{
		Username: *username,
		Admin:    *admin,
		Manager:  *manager,
	}, hash)
	if err != nil {
		fmt.Fprintf(os.Stderr, "save user: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("user %q saved (id=%d admin=%t manager=%t)\n", u.Username, u.ID, u.Admin, u.Manager)
}
