package main

import (
	"context"
	"log"
	"time"

	"github.com/go-otp-auth/internal/config"
	"github.com/go-otp-auth/internal/infrastructure/dynamo"
	"github.com/go-otp-auth/internal/infrastructure/postgres"
	transporthttp "github.com/go-otp-auth/internal/transport/http"
	"github.com/go-otp-auth/internal/transport/http/handler"
)

type expiryStore interface {
	DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error)
}

// stores is the selected persistence backend.
type stores struct {
	accounts transporthttp.AccountRepository
	otps     transporthttp.OTPRepository
	sessions transporthttp.SessionRepository

	otpExpiry     expiryStore
	sessionExpiry expiryStore
	pinger        handler.Pinger

	close func()
}

func openStores(ctx context.Context, cfg *config.Config) (*stores, error) {
	switch cfg.StoreDriver {
	case config.StoreDriverDynamo:
		return openDynamo(ctx, cfg)
	default:
		return openPostgres(ctx, cfg)
	}
}

func openPostgres(ctx context.Context, cfg *config.Config) (*stores, error) {
	if cfg.AutoMigrate {
		if err := migrateUp(cfg.DatabaseURL); err != nil {
			return nil, err
		}
	}
	pool, err := postgres.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}
	otps := postgres.NewOTPRepo(pool)
	sessions := postgres.NewSessionRepo(pool)
	return &stores{
		accounts:      postgres.NewAccountRepo(pool),
		otps:          otps,
		sessions:      sessions,
		otpExpiry:     otps,
		sessionExpiry: sessions,
		pinger:        pool,
		close:         pool.Close,
	}, nil
}

func openDynamo(ctx context.Context, cfg *config.Config) (*stores, error) {
	client, err := dynamo.NewClient(ctx, cfg)
	if err != nil {
		return nil, err
	}
	// Creates tables and TTL settings if they don't exist.
	dynamo.Bootstrap(ctx, client, cfg.DynamoTables)

	otps := dynamo.NewOTPRepo(client, cfg.DynamoTables.OTPCodes, cfg.DynamoTables.Accounts)
	sessions := dynamo.NewSessionRepo(client, cfg.DynamoTables.Sessions)
	return &stores{
		accounts:      dynamo.NewAccountRepo(client, cfg.DynamoTables.Accounts),
		otps:          otps,
		sessions:      sessions,
		otpExpiry:     otps,
		sessionExpiry: sessions,
		close:         func() {},
	}, nil
}

func migrateUp(databaseURL string) error {
	m, err := postgres.NewMigrator(databaseURL)
	if err != nil {
		return err
	}
	defer m.Close()
	if err := m.Up(); err != nil {
		return err
	}
	if v, dirty, err := m.Version(); err == nil {
		log.Printf("Schema at version %d (dirty=%t)", v, dirty)
	}
	return nil
}
