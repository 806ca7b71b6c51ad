package postgres

import (
	"context"
	"errors"

	"github.com/YiberMelo/ChronosSuite/internal/model"
	"github.com/YiberMelo/ChronosSuite/internal/store"

	"github.com/jackc/pgx/v5"
)

const userColumns = `id::text, username, password_hash, password_salt, two_factor_enabled,
	coalesce(two_factor_secret, ''), created_at, updated_at`

func scanUser(row pgx.Row) (model.User, error) {
	var u model.User
	err := row.Scan(
		&u.ID,
		&u.Username,
		&u.PasswordHash,
		&u.PasswordSalt,
		&u.TwoFactorEnabled,
		&u.TwoFactorSecret,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	u.CreatedAt = u.CreatedAt.UTC()
	u.UpdatedAt = u.UpdatedAt.UTC()
	return u, err
}

func (s *Store) CreateUser(ctx context.Context, u model.User) (model.User, error) {
	u, err := store.NormalizeUser(u)
	if err != nil {
		return model.User{}, err
	}

	out, err := scanUser(s.pool.QueryRow(ctx, `
		insert into public.users (username, password_hash, password_salt)
		values ($1, $2, $3)
		returning `+userColumns,
		u.Username, u.PasswordHash, u.PasswordSalt,
	))
	if err != nil {
		return model.User{}, mapPgErr(err)
	}
	return out, nil
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	u, err := scanUser(s.pool.QueryRow(ctx, `
		select `+userColumns+`
		from public.users
		where lower(username) = lower($1)
	`, username))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, mapPgErr(err)
	}
	return &u, nil
}

func (s *Store) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	u, err := scanUser(s.pool.QueryRow(ctx, `
		select `+userColumns+`
		from public.users
		where id::text = $1
	`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, mapPgErr(err)
	}
	return &u, nil
}

func (s *Store) EnableTwoFactor(ctx context.Context, userID, secret string) error {
	cmdTag, err := s.pool.Exec(ctx, `
		update public.users
		set two_factor_secret = $2,
		    two_factor_enabled = true,
		    updated_at = now()
		where id::text = $1
		  and not two_factor_enabled
	`, userID, secret)
	if err != nil {
		return mapPgErr(err)
	}
	if cmdTag.RowsAffected() == 1 {
		return nil
	}

	// Nothing updated: either the user is missing or already enrolled.
	if _, err := s.GetUserByID(ctx, userID); err != nil {
		return err
	}
	return store.ErrConflict
}
