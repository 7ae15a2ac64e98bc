// seed inserts development accounts for local testing: go run ./cmd/seed.
// Idempotent: accounts whose phone already exists are skipped.
package main

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"ridehail-identity/internal/config"
	"ridehail-identity/internal/db"
	"ridehail-identity/internal/identity/domain"
	"ridehail-identity/internal/identity/repository"
	"ridehail-identity/internal/logging"
)

// devAccounts cover each login path: a plain passenger, a driver who also rides,
// a Google-linked passenger and a blocked account.
var devAccounts = []domain.Identity{
	{ID: "dev-passenger-001", Phone: "+998901110001", Name: "Dev Passenger", PhoneVerified: true, Role: domain.RolePassenger},
	{ID: "dev-driver-001", Phone: "+998901110002", Name: "Dev Driver", PhoneVerified: true, Role: domain.RoleDriver},
	{
		ID: "dev-google-001", Phone: "+998901110003", Email: "rider@example.com", EmailVerified: true, Name: "Google Rider",
		Links: []domain.LinkedIdentity{{Provider: domain.ProviderGoogle, Subject: "dev-google-sub-001", Email: "rider@example.com"}},
	},
	{ID: "dev-blocked-001", Phone: "+998901110004", Name: "Blocked Rider", PhoneVerified: true, Status: domain.StatusBlocked},
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config")
	}
	logging.Setup(cfg.LogLevel, cfg.Env)
	if cfg.IsProduction() {
		log.Fatal().Msg("seed: refusing to run with APP_ENV=production")
	}
	if cfg.DatabaseURL == "" {
		log.Fatal().Msg("DATABASE_URL is not set; set DATABASE_URL in the environment or .env")
	}

	conn, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("db")
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	created, err := seed(ctx, repository.NewPostgresRepository(conn), time.Now().UTC())
	if err != nil {
		log.Fatal().Err(err).Msg("seed")
	}
	log.Info().Int("created", created).Int("total", len(devAccounts)).Msg("seed: done")
}

func seed(ctx context.Context, repo repository.Repository, now time.Time) (int, error) {
	created := 0
	for _, tmpl := range devAccounts {
		existing, err := repo.GetByPhone(ctx, tmpl.Phone)
		if err != nil {
			return created, err
		}
		if existing != nil {
			log.Debug().Str("id", existing.ID).Str("phone", logging.MaskTarget(tmpl.Phone)).Msg("seed: exists, skipping")
			continue
		}
		acc := tmpl
		acc.CreatedAt, acc.UpdatedAt = now, now
		acc.Links = make([]domain.LinkedIdentity, len(tmpl.Links))
		for i, l := range tmpl.Links {
			l.LinkedAt = now
			acc.Links[i] = l
		}
		if err := acc.Validate(); err != nil {
			return created, err
		}
		if err := repo.Create(ctx, &acc); err != nil {
			return created, err
		}
		created++
		log.Info().Str("id", acc.ID).Str("role", string(acc.Role)).Str("status", string(acc.Status)).Msg("seed: created")
	}
	return created, nil
}
