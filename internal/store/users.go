package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/safar/congress-merch/internal/database"
	"github.com/safar/congress-merch/internal/models"
)

// Users mirror the accounts of the external auth provider; the token subject
// is the user id.
const userColumns = `id, email, nome, created_at`

func scanUser(row rowScanner) (*models.User, error) {
	user := &models.User{}
	if err := row.Scan(&user.ID, &user.Email, &user.Name, &user.CreatedAt); err != nil {
		return nil, err
	}
	return user, nil
}

func CreateUser(ctx context.Context, db *sql.DB, email, name string) (*models.User, error) {
	user, err := scanUser(db.QueryRowContext(ctx,
		`INSERT INTO users (email, nome) VALUES ($1, $2) RETURNING `+userColumns,
		email, name))
	if err != nil {
		return nil, fmt.Errorf("create user %s: %w", email, err)
	}
	return user, nil
}

func GetUser(ctx context.Context, db *sql.DB, id string) (*models.User, error) {
	user, err := scanUser(db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	switch {
	case err == nil:
		return user, nil
	case errors.Is(err, sql.ErrNoRows), database.IsInvalidInput(err):
		return nil, database.ErrUserNotFound
	default:
		return nil, fmt.Errorf("get user: %w", err)
	}
}
