// Package person is the user directory backing moderation actions.
package person

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/openclass/dbans/internal/database"
)

var ErrNotFound = errors.New("unknown user")

type Person struct {
	UserID    int64     `json:"user_id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	CreatedOn time.Time `json:"created_on"`
}

// Provider resolves users by id or name. Implementations return ErrNotFound
// for users that do not exist.
type Provider interface {
	ByID(ctx context.Context, userID int64) (Person, error)
	ByUsername(ctx context.Context, username string) (Person, error)
}

type Repository struct {
	db database.Database
}

func NewRepository(db database.Database) *Repository {
	return &Repository{db: db}
}

func (r *Repository) ByID(ctx context.Context, userID int64) (Person, error) {
	row, errRow := r.db.QueryRowBuilder(ctx, r.db.Builder().
		Select("user_id", "username", "email", "created_on").
		From("users").
		Where("user_id = ?", userID))
	if errRow != nil {
		return Person{}, database.DBErr(errRow)
	}

	return scanPerson(row)
}

func (r *Repository) ByUsername(ctx context.Context, username string) (Person, error) {
	row, errRow := r.db.QueryRowBuilder(ctx, r.db.Builder().
		Select("user_id", "username", "email", "created_on").
		From("users").
		Where("username = ?", username))
	if errRow != nil {
		return Person{}, database.DBErr(errRow)
	}

	return scanPerson(row)
}

func scanPerson(row pgx.Row) (Person, error) {
	var person Person
	if errScan := row.Scan(&person.UserID, &person.Username, &person.Email, &person.CreatedOn); errScan != nil {
		if errors.Is(database.DBErr(errScan), database.ErrNoResult) {
			return Person{}, ErrNotFound
		}

		return Person{}, database.DBErr(errScan)
	}

	return person, nil
}
