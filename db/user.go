package db

import (
	"context"
	"database/sql"

	"bitbucket.org/etuitionbd/backend/models"
	"github.com/pkg/errors"
)

type UserStorage interface {
	InsertUser(ctx context.Context, user *models.User) error
	GetUserLoginByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
}

const (
	insertUser = `
	INSERT INTO users (
		id, email, name, role, status, password, created_at, updated_at
	) VALUES (
		:id, :email, :name, :role, :status, :password, :created_at, :updated_at
	)
	`

	getUserLoginByEmail = `
	SELECT
		users.id,
		users.email,
		users.name,
		users.role,
		users.status,
		users.password,
		users.created_at,
		users.updated_at
	FROM users
	WHERE users.email = ?
	AND users.status = ?
	`

	getUserByEmail = `
	SELECT
		users.id,
		users.email,
		users.name,
		users.role,
		users.status,
		users.created_at,
		users.updated_at
	FROM users
	WHERE users.email = ?
	`
)

func (db *DB) InsertUser(ctx context.Context, user *models.User) error {
	result, err := db.NamedExecContext(ctx, insertUser, user)
	if err != nil {
		return errors.Wrap(err, "failed inserting user")
	}

	return expectOneRow(result, "inserted")
}

// GetUserLoginByEmail returns the active user with its password hash.
func (db *DB) GetUserLoginByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := db.GetContext(ctx, &user, db.Rebind(getUserLoginByEmail), email, models.UserStatusActive); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	return &user, nil
}

func (db *DB) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := db.GetContext(ctx, &user, db.Rebind(getUserByEmail), email); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	return &user, nil
}
