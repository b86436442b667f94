package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Poda el log de claims resueltos; corre como lambda agendada.
func handler(ctx context.Context) (string, error) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		return "no DATABASE_URL", nil
	}

	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return fmt.Sprintf("parse: %v", err), nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return fmt.Sprintf("pool: %v", err), nil
	}
	defer pool.Close()

	cctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	tag, err := pool.Exec(cctx, `
DELETE FROM claim_attempts
WHERE resolved_at < now() - INTERVAL '30 days'
  AND status IN ('succeeded','lost_to_other','failed','expired');`)
	if err != nil {
		return fmt.Sprintf("prune: %v", err), nil
	}

	return fmt.Sprintf("ok, %d intentos podados", tag.RowsAffected()), nil
}

func main() { lambda.Start(handler) }
