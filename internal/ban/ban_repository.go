package ban

import (
	"context"
	"errors"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/openclass/dbans/internal/database"
	"github.com/openclass/dbans/internal/discussion"
)

type Repository struct {
	db database.Database
}

func NewRepository(db database.Database) *Repository {
	return &Repository{db: db}
}

// Record persists the ban. An active ban for the same target is rejected with
// ErrAlreadyBanned. An inactive prior ban is reactivated in place, keeping its
// row id and replacing the reason and unban fields.
func (r *Repository) Record(ctx context.Context, ban *Ban) error {
	existing, errExisting := r.current(ctx, ban)

	switch {
	case errExisting == nil && existing.IsActive:
		return ErrAlreadyBanned
	case errExisting == nil:
		return r.reactivate(ctx, existing.BanID, ban)
	case errors.Is(errExisting, database.ErrNoResult):
		return r.insert(ctx, ban)
	default:
		return errExisting
	}
}

func (r *Repository) current(ctx context.Context, ban *Ban) (Ban, error) {
	target := sq.Eq{"course_id": ban.CourseID}
	if ban.Scope == discussion.ScopeOrganization {
		target = sq.Eq{"org": ban.Org}
	}

	row, errRow := r.db.QueryRowBuilder(ctx, r.db.Builder().
		Select("ban_id", "is_active", "created_on").
		From("ban").
		Where(sq.And{
			sq.Eq{"user_id": ban.UserID},
			sq.Eq{"scope": string(ban.Scope)},
			target,
		}))
	if errRow != nil {
		return Ban{}, database.DBErr(errRow)
	}

	var existing Ban
	if errScan := row.Scan(&existing.BanID, &existing.IsActive, &existing.CreatedOn); errScan != nil {
		return Ban{}, database.DBErr(errScan)
	}

	return existing, nil
}

func (r *Repository) reactivate(ctx context.Context, banID int64, ban *Ban) error {
	now := time.Now()

	if errExec := r.db.ExecUpdateBuilder(ctx, r.db.Builder().
		Update("ban").
		Set("reason", ban.Reason).
		Set("banned_by", ban.BannedBy).
		Set("is_active", true).
		Set("updated_on", now).
		Set("unbanned_on", nil).
		Set("unbanned_by", nil).
		Where(sq.Eq{"ban_id": banID})); errExec != nil {
		return database.DBErr(errExec)
	}

	ban.BanID = banID
	ban.Reactivated = true
	ban.IsActive = true
	ban.UpdatedOn = now

	return nil
}

func (r *Repository) insert(ctx context.Context, ban *Ban) error {
	now := time.Now()

	var (
		courseID *string
		org      *string
	)

	if ban.CourseID != "" {
		courseID = &ban.CourseID
	}

	if ban.Org != "" {
		org = &ban.Org
	}

	if errExec := r.db.ExecInsertBuilderWithReturnValue(ctx, r.db.Builder().
		Insert("ban").
		Columns("user_id", "course_id", "org", "scope", "reason", "banned_by", "is_active", "created_on", "updated_on").
		Values(ban.UserID, courseID, org, string(ban.Scope), ban.Reason, ban.BannedBy, true, now, now).
		Suffix("RETURNING ban_id"), &ban.BanID); errExec != nil {
		return database.DBErr(errExec)
	}

	ban.IsActive = true
	ban.CreatedOn = now
	ban.UpdatedOn = now

	return nil
}

// Banned lists active bans visible in a course, both course scope bans on the
// course itself and organization bans on the course's org.
func (r *Repository) Banned(ctx context.Context, courseID string) ([]BannedPerson, error) {
	rows, errRows := r.db.QueryBuilder(ctx, r.db.Builder().
		Select("b.ban_id", "b.user_id", "u.username", "b.scope", "b.reason", "b.banned_by", "b.created_on").
		From("ban b").
		Join("users u ON u.user_id = b.user_id").
		Where(sq.And{
			sq.Eq{"b.is_active": true},
			sq.Or{
				sq.And{sq.Eq{"b.scope": string(discussion.ScopeCourse)}, sq.Eq{"b.course_id": courseID}},
				sq.And{
					sq.Eq{"b.scope": string(discussion.ScopeOrganization)},
					sq.Expr("b.org = (SELECT org FROM course WHERE course_id = ?)", courseID),
				},
			},
		}).
		OrderBy("b.created_on", "b.ban_id"))
	if errRows != nil {
		return nil, database.DBErr(errRows)
	}

	defer rows.Close()

	var banned []BannedPerson

	for rows.Next() {
		var (
			entry BannedPerson
			scope string
		)

		if errScan := rows.Scan(&entry.BanID, &entry.UserID, &entry.Username, &scope,
			&entry.Reason, &entry.BannedBy, &entry.CreatedOn); errScan != nil {
			return nil, database.DBErr(errScan)
		}

		entry.Scope = discussion.Scope(scope)

		banned = append(banned, entry)
	}

	return banned, nil
}

// AppendLog writes one audit trail row.
func (r *Repository) AppendLog(ctx context.Context, entry ModerationLog) error {
	if entry.CreatedOn.IsZero() {
		entry.CreatedOn = time.Now()
	}

	if errExec := r.db.ExecInsertBuilder(ctx, r.db.Builder().
		Insert("moderation_log").
		Columns("log_id", "action", "moderator_id", "target_id", "course_id", "scope", "reason", "created_on").
		Values(entry.LogID, entry.Action, entry.ModeratorID, entry.TargetID,
			entry.CourseID, string(entry.Scope), entry.Reason, entry.CreatedOn)); errExec != nil {
		return database.DBErr(errExec)
	}

	return nil
}
