package data

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"

	"github.com/Industry-Academic-SW-Capstone/Backend-sub000/internal/config"
)

type Postgres struct {
	DB *sql.DB
}

// NewPostgres opens the ledger database and verifies the connection before
// returning; matching must not start against an unreachable ledger.
func NewPostgres(cfg config.Database, logger *zap.Logger) (*Postgres, error) {
	dsn := fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Name, cfg.SSLMode,
	)

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}

	// Distributions take row locks in short bursts; the pool must cover a
	// full set of workers plus the reconciler without queueing.
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(5)
	db.SetConnMaxIdleTime(time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("postgres ping failed: %w", err)
	}

	logger.Info("postgres connected", zap.String("host", cfg.Host), zap.String("db", cfg.Name))
	return &Postgres{DB: db}, nil
}

func (p *Postgres) Close() error {
	return p.DB.Close()
}
