// Package discussion owns the discussion content store and the bulk purge of
// a banned user's authored threads and comments.
package discussion

import (
	"context"
	"errors"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/openclass/dbans/internal/database"
)

var ErrUnknownCourse = errors.New("unknown course")

// Scope is the reach of a moderation action.
type Scope string

const (
	ScopeCourse       Scope = "course"
	ScopeOrganization Scope = "organization"
)

func (s Scope) Valid() bool {
	return s == ScopeCourse || s == ScopeOrganization
}

type Thread struct {
	ThreadID  int64     `json:"thread_id"`
	CourseID  string    `json:"course_id"`
	AuthorID  int64     `json:"author_id"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	CreatedOn time.Time `json:"created_on"`
}

type Comment struct {
	CommentID int64     `json:"comment_id"`
	ThreadID  int64     `json:"thread_id"`
	CourseID  string    `json:"course_id"`
	AuthorID  int64     `json:"author_id"`
	Body      string    `json:"body"`
	CreatedOn time.Time `json:"created_on"`
}

// Store is the content store the purger operates over. Candidate listings are
// ordered by creation time then id so that a retried purge walks the same
// sequence. Deletes report whether a row was actually removed, deleting an
// already-gone item is not an error.
type Store interface {
	OrgForCourse(ctx context.Context, courseID string) (string, error)
	CoursesForOrg(ctx context.Context, org string) ([]string, error)
	ThreadIDs(ctx context.Context, authorID int64, courseIDs []string, limit uint64) ([]int64, error)
	CommentIDs(ctx context.Context, authorID int64, courseIDs []string, limit uint64) ([]int64, error)
	DeleteThread(ctx context.Context, threadID int64) (bool, error)
	DeleteComment(ctx context.Context, commentID int64) (bool, error)
}

type Repository struct {
	db database.Database
}

func NewRepository(db database.Database) *Repository {
	return &Repository{db: db}
}

func (r *Repository) OrgForCourse(ctx context.Context, courseID string) (string, error) {
	row, errRow := r.db.QueryRowBuilder(ctx, r.db.Builder().
		Select("org").
		From("course").
		Where(sq.Eq{"course_id": courseID}))
	if errRow != nil {
		return "", database.DBErr(errRow)
	}

	var org string
	if errScan := row.Scan(&org); errScan != nil {
		if errors.Is(database.DBErr(errScan), database.ErrNoResult) {
			return "", ErrUnknownCourse
		}

		return "", database.DBErr(errScan)
	}

	return org, nil
}

func (r *Repository) CoursesForOrg(ctx context.Context, org string) ([]string, error) {
	rows, errRows := r.db.QueryBuilder(ctx, r.db.Builder().
		Select("course_id").
		From("course").
		Where(sq.Eq{"org": org}).
		OrderBy("course_id"))
	if errRows != nil {
		return nil, database.DBErr(errRows)
	}

	defer rows.Close()

	var courseIDs []string

	for rows.Next() {
		var courseID string
		if errScan := rows.Scan(&courseID); errScan != nil {
			return nil, database.DBErr(errScan)
		}

		courseIDs = append(courseIDs, courseID)
	}

	return courseIDs, nil
}

func (r *Repository) ThreadIDs(ctx context.Context, authorID int64, courseIDs []string, limit uint64) ([]int64, error) {
	return r.contentIDs(ctx, "thread", "thread_id", authorID, courseIDs, limit)
}

func (r *Repository) CommentIDs(ctx context.Context, authorID int64, courseIDs []string, limit uint64) ([]int64, error) {
	return r.contentIDs(ctx, "comment", "comment_id", authorID, courseIDs, limit)
}

func (r *Repository) contentIDs(ctx context.Context, table string, idColumn string, authorID int64, courseIDs []string, limit uint64) ([]int64, error) {
	builder := r.db.Builder().
		Select(idColumn).
		From(table).
		Where(sq.Eq{"author_id": authorID, "course_id": courseIDs}).
		OrderBy("created_on", idColumn)

	if limit > 0 {
		builder = builder.Limit(limit)
	}

	rows, errRows := r.db.QueryBuilder(ctx, builder)
	if errRows != nil {
		return nil, database.DBErr(errRows)
	}

	defer rows.Close()

	var ids []int64

	for rows.Next() {
		var id int64
		if errScan := rows.Scan(&id); errScan != nil {
			return nil, database.DBErr(errScan)
		}

		ids = append(ids, id)
	}

	return ids, nil
}

func (r *Repository) DeleteThread(ctx context.Context, threadID int64) (bool, error) {
	return r.deleteContent(ctx, `DELETE FROM thread WHERE thread_id = $1 RETURNING thread_id`, threadID)
}

func (r *Repository) DeleteComment(ctx context.Context, commentID int64) (bool, error) {
	return r.deleteContent(ctx, `DELETE FROM comment WHERE comment_id = $1 RETURNING comment_id`, commentID)
}

// deleteContent reports true only when the delete removed a row, so that a
// concurrent purge of the same user cannot double count.
func (r *Repository) deleteContent(ctx context.Context, query string, id int64) (bool, error) {
	var deletedID int64
	if errScan := r.db.QueryRow(ctx, query, id).Scan(&deletedID); errScan != nil {
		if errors.Is(errScan, pgx.ErrNoRows) {
			return false, nil
		}

		return false, database.DBErr(errScan)
	}

	return true, nil
}
