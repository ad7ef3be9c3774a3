// Command useradd provisions a user directly in the database, bypassing the
// HTTP API. Intended for bootstrapping and operations; the password is read
// from the terminal without echo and validated like a registration.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"

	"golang.org/x/term"

	"github.com/tbsky/session/internal/config"
	"github.com/tbsky/session/internal/logging"
	"github.com/tbsky/session/internal/server/models"
	"github.com/tbsky/session/internal/server/password"
	"github.com/tbsky/session/internal/server/repositories/blacklist"
	"github.com/tbsky/session/internal/server/repositories/repomanager"
	"github.com/tbsky/session/internal/server/services"
	"github.com/tbsky/session/internal/server/token"
)

func main() {

	firstName := flag.String("first-name", "", "first name")
	lastName := flag.String("last-name", "", "last name")
	email := flag.String("email", "", "email address")
	flag.Parse()

	if *firstName == "" || *lastName == "" || *email == "" {
		flag.Usage()
		os.Exit(2)
	}

	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	fmt.Print("Password: ")
	plain, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		log.Fatalf("password read error: %v", err)
	}

	if err := password.Validate(string(plain)); err != nil {
		log.Fatalf("%v", err)
	}
	hashed, err := password.Hash(string(plain))
	if err != nil {
		log.Fatalf("%v", err)
	}

	db, err := repomanager.Open(ctx, cfg.Database.DatabaseURL)
	if err != nil {
		log.Fatalf("db init error: %v", err)
	}
	defer db.Close()

	repos := repomanager.NewPostgresRepositoryManager()
	if err := repos.RunMigrations(ctx, db); err != nil {
		log.Fatalf("migration error: %v", err)
	}

	cache, err := repomanager.OpenRedis(cfg.Database.RedisDSN)
	if err != nil {
		log.Fatalf("redis init error: %v", err)
	}
	defer cache.Close()

	tokens, err := token.New(cfg.Security)
	if err != nil {
		log.Fatalf("token tool init error: %v", err)
	}

	logger := logging.NewSlogLogger(slog.New(slog.NewTextHandler(os.Stderr, nil)))
	bl := blacklist.NewRedisRepository(cache, logger)
	security := services.NewSecurityService(db, repos, bl, tokens, logger, cfg)

	user := models.NewUser(*firstName, *lastName, *email, hashed, cfg.Users.DefaultUserID)
	if err := security.CreateUsers(ctx, []*models.User{user}); err != nil {
		log.Fatalf("create user error: %v", err)
	}

	fmt.Printf("created user %s (%s)\n", user.ID, user.Email)
}
