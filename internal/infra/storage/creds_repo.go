package storage

import (
	"context"
	"database/sql"
)

type CredsRepo struct{ db *sql.DB }

func NewCredsRepo(db *sql.DB) *CredsRepo { return &CredsRepo{db: db} }

// Get devuelve las credenciales guardadas; ErrNotFound si nunca se
// setearon (la fila existe pero con token vacío cuenta como no seteada).
func (r *CredsRepo) Get(ctx context.Context) (Credentials, error) {
	var c Credentials
	err := r.db.QueryRowContext(ctx, `
SELECT token, user_id, username, updated_at
  FROM credentials
 WHERE id = 1
`).Scan(&c.Token, &c.UserID, &c.Username, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return Credentials{}, ErrNotFound
	}
	if err != nil {
		return Credentials{}, err
	}
	if c.Token == "" {
		return Credentials{}, ErrNotFound
	}
	return c, nil
}

func (r *CredsRepo) Save(ctx context.Context, token string) error {
	_, err := r.db.ExecContext(ctx, `
UPDATE credentials SET token = $1, updated_at = NOW() WHERE id = 1
`, token)
	return err
}

// SaveUserInfo guarda id y username una vez conectados, para que el
// parser del próximo arranque sepa quiénes somos sin ir al gateway.
func (r *CredsRepo) SaveUserInfo(ctx context.Context, userID, username string) error {
	_, err := r.db.ExecContext(ctx, `
UPDATE credentials SET user_id = $1, username = $2, updated_at = NOW() WHERE id = 1
`, userID, username)
	return err
}
