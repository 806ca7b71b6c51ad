package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/YiberMelo/ChronosSuite/internal/model"
	"github.com/YiberMelo/ChronosSuite/internal/store"

	"github.com/google/uuid"
)

const userColumns = `id, username, password_hash, password_salt, two_factor_enabled, two_factor_secret,
  created_at_ms, updated_at_ms`

func scanUser(row scanner) (model.User, error) {
	var (
		u                  model.User
		createdMs, updated int64
	)
	if err := row.Scan(
		&u.ID,
		&u.Username,
		&u.PasswordHash,
		&u.PasswordSalt,
		&u.TwoFactorEnabled,
		&u.TwoFactorSecret,
		&createdMs,
		&updated,
	); err != nil {
		return model.User{}, err
	}
	u.CreatedAt = fromMs(createdMs)
	u.UpdatedAt = fromMs(updated)
	return u, nil
}

func (s *Store) CreateUser(ctx context.Context, u model.User) (model.User, error) {
	u, err := store.NormalizeUser(u)
	if err != nil {
		return model.User{}, err
	}

	now := time.Now().UTC().Truncate(time.Millisecond)
	u.ID = uuid.NewString()
	u.CreatedAt = now
	u.UpdatedAt = now

	err = s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
INSERT INTO users(id, username, password_hash, password_salt, two_factor_enabled, two_factor_secret, created_at_ms, updated_at_ms)
VALUES (?, ?, ?, ?, 0, '', ?, ?);
`, u.ID, u.Username, u.PasswordHash, u.PasswordSalt, toMs(now), toMs(now))
		return err
	})
	if err != nil {
		return model.User{}, mapErr(err)
	}
	return u, nil
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE username = ? COLLATE NOCASE;`, username))
	if err != nil {
		return nil, mapErr(err)
	}
	return &u, nil
}

func (s *Store) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?;`, id))
	if err != nil {
		return nil, mapErr(err)
	}
	return &u, nil
}

func (s *Store) EnableTwoFactor(ctx context.Context, userID, secret string) error {
	err := s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		var enabled bool
		if err := tx.QueryRowContext(ctx,
			`SELECT two_factor_enabled FROM users WHERE id = ?;`, userID).Scan(&enabled); err != nil {
			return err
		}
		if enabled {
			return store.ErrConflict
		}
		_, err := tx.ExecContext(ctx, `
UPDATE users SET two_factor_secret = ?, two_factor_enabled = 1, updated_at_ms = ? WHERE id = ?;
`, secret, toMs(time.Now()), userID)
		return err
	})
	return mapErr(err)
}
