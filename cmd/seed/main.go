// seed inserts development sample staff for local testing.
// Idempotent: skips inserts if the dev admin (admin@example.com) already exists.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"staff-auth-core/internal/config"
	"staff-auth-core/internal/db"
	"staff-auth-core/internal/security"
	"staff-auth-core/internal/staff/domain"
	staffrepo "staff-auth-core/internal/staff/repository"
)

const (
	devAdminEmail   = "admin@example.com"
	devSupportEmail = "support@example.com"
	devPassword     = "password123"
	devAdminID      = "dev-staff-001"
	devSupportID    = "dev-staff-002"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is not set; create a .env from .env.example or set DATABASE_URL")
	}

	conn, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer conn.Close()

	repo := staffrepo.NewPostgresRepository(conn)
	ctx := context.Background()

	existing, err := repo.GetByEmail(ctx, devAdminEmail)
	if err != nil {
		log.Fatalf("seed check: %v", err)
	}
	if existing != nil {
		log.Println("Seed already applied (admin@example.com exists). Skipping.")
		os.Exit(0)
	}

	hasher := security.NewHasher(cfg.BcryptCost)
	passwordHash, err := hasher.Hash([]byte(devPassword))
	if err != nil {
		log.Fatalf("hash password: %v", err)
	}

	now := time.Now().UTC()

	admin := &domain.Staff{
		ID:            devAdminID,
		Email:         devAdminEmail,
		Name:          "Dev Admin",
		PasswordHash:  passwordHash,
		Role:          "admin",
		PrincipalType: domain.PrincipalTypeAdmin,
		SuperAdmin:    true,
		Active:        true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := repo.Create(ctx, admin); err != nil {
		log.Fatalf("create dev admin: %v", err)
	}

	support := &domain.Staff{
		ID:            devSupportID,
		Email:         devSupportEmail,
		Name:          "Dev Support",
		PasswordHash:  passwordHash,
		Role:          "support",
		PrincipalType: domain.PrincipalTypeStaff,
		Active:        true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := repo.Create(ctx, support); err != nil {
		log.Fatalf("create dev support: %v", err)
	}

	log.Println("Seed completed successfully.")
	fmt.Printf("Admin login: %s / %s\n", devAdminEmail, devPassword)
	fmt.Printf("Support login: %s / %s\n", devSupportEmail, devPassword)
}
