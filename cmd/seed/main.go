package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/oksasatya/go-storefront-session/config"
	"github.com/oksasatya/go-storefront-session/internal/domain/entity"
	repo "github.com/oksasatya/go-storefront-session/internal/domain/repository"
	"github.com/oksasatya/go-storefront-session/internal/infrastructure/datastore"
	fsinfra "github.com/oksasatya/go-storefront-session/internal/infrastructure/firestore"
	pginfra "github.com/oksasatya/go-storefront-session/internal/infrastructure/postgres"
	"github.com/oksasatya/go-storefront-session/pkg/helpers"
)

// Seeds one verified admin account for the local identity provider and its
// profile document. Safe to run twice.
func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	ctx := context.Background()

	email := entity.NormalizeEmail(getenv("SEED_ADMIN_EMAIL", "admin@storefront.local"))
	password := getenv("SEED_ADMIN_PASSWORD", "password123")
	name := getenv("SEED_ADMIN_NAME", "Store Admin")

	pool, err := pginfra.NewPool(ctx, cfg.PostgresDSN(), pginfra.PoolOptions{MaxConns: 2, AppName: cfg.AppName + "-seed"})
	if err != nil {
		log.Fatalf("failed to connect to postgres: %v", err)
	}
	defer pool.Close()

	accounts := pginfra.NewAccountRepository(pool)
	acc, err := accounts.GetByEmail(ctx, email)
	switch {
	case errors.Is(err, repo.ErrAccountNotFound):
		hash, herr := helpers.HashPassword(password)
		if herr != nil {
			log.Fatalf("failed to hash password: %v", herr)
		}
		acc = &entity.Account{Email: email, PasswordHash: hash, DisplayName: name, EmailVerified: true}
		if err := accounts.Create(ctx, acc); err != nil {
			log.Fatalf("failed to seed account: %v", err)
		}
		fmt.Printf("seeded account: id=%s email=%s password=%s\n", acc.ID, email, password)
	case err != nil:
		log.Fatalf("failed to look up account: %v", err)
	default:
		if err := accounts.SetVerified(ctx, acc.ID); err != nil {
			log.Fatalf("failed to verify account: %v", err)
		}
		fmt.Printf("account exists: id=%s email=%s\n", acc.ID, email)
	}

	var backend repo.DocumentStore
	switch cfg.DocumentStore {
	case "firestore":
		client, err := fsinfra.NewClient(ctx, cfg.FirestoreProjectID, cfg.GCSCredentialsJSONPath)
		if err != nil {
			log.Fatalf("failed to init firestore: %v", err)
		}
		defer func() { _ = client.Close() }()
		backend = fsinfra.NewDocumentStore(client)
	default:
		backend = pginfra.NewDocumentStore(pool)
	}
	profiles := datastore.NewProfileRepository(datastore.NewStore(backend), cfg.ProfilesCollection, nil, nil)

	now := time.Now().UTC()
	if err := profiles.Create(ctx, &entity.Profile{
		UID:           acc.ID,
		Email:         email,
		DisplayName:   name,
		Role:          entity.RoleAdmin,
		EmailVerified: true,
		CreatedAt:     now,
		UpdatedAt:     now,
		VerifiedAt:    &now,
	}); err != nil {
		log.Fatalf("failed to write profile: %v", err)
	}
	fmt.Printf("profile written: collection=%s uid=%s role=%s\n", cfg.ProfilesCollection, acc.ID, entity.RoleAdmin)
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
