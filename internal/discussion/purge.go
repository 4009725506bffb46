package discussion

import (
	"context"
	"errors"
	"log/slog"

	"github.com/openclass/dbans/pkg/log"
)

var (
	ErrScope = errors.New("invalid ban scope")
	// ErrPurge is a fatal purge failure, the caller must not dispatch any
	// notification built from its counts.
	ErrPurge = errors.New("failed to purge authored content")
	// ErrDeleteBudget is raised when more per-item delete failures occurred
	// than the configured limit allows.
	ErrDeleteBudget = errors.New("per-item delete failure limit exceeded")
)

// MsgDeleteFailed is logged once per swallowed per-item delete failure.
const MsgDeleteFailed = "Failed to delete authored content item"

// PurgeOutcome reports what a purge actually removed. Partial is set when
// iteration stopped before the candidate set was exhausted, either because a
// cap was reached or a per-item failure was swallowed.
type PurgeOutcome struct {
	ThreadsDeleted  int  `json:"threads_deleted"`
	CommentsDeleted int  `json:"comments_deleted"`
	Partial         bool `json:"partial"`
}

// PurgeOptions bound a single purge. Zero caps mean unbounded.
type PurgeOptions struct {
	MaxThreads  int
	MaxComments int
	ErrorLimit  int
}

// Purger deletes a banned user's authored threads and comments within the
// requested scope. Counts reflect rows actually removed, never attempts.
type Purger struct {
	store Store
}

func NewPurger(store Store) *Purger {
	return &Purger{store: store}
}

// Purge removes the user's threads then comments across the scope's courses.
// Cancellation is honored at collection boundaries, the outcome accumulated
// so far is returned alongside the context error.
func (p *Purger) Purge(ctx context.Context, userID int64, scope Scope, courseID string, opts PurgeOptions) (PurgeOutcome, error) {
	var outcome PurgeOutcome

	courseIDs, errCourses := p.scopeCourses(ctx, scope, courseID)
	if errCourses != nil {
		return outcome, errCourses
	}

	if errCtx := ctx.Err(); errCtx != nil {
		outcome.Partial = true

		return outcome, errCtx
	}

	threadsDeleted, threadsPartial, errThreads := p.purgeCollection(ctx, "thread",
		p.store.ThreadIDs, p.store.DeleteThread, userID, courseIDs, opts.MaxThreads, opts.ErrorLimit)

	outcome.ThreadsDeleted = threadsDeleted
	outcome.Partial = outcome.Partial || threadsPartial

	if errThreads != nil {
		return outcome, errThreads
	}

	if errCtx := ctx.Err(); errCtx != nil {
		outcome.Partial = true

		return outcome, errCtx
	}

	commentsDeleted, commentsPartial, errComments := p.purgeCollection(ctx, "comment",
		p.store.CommentIDs, p.store.DeleteComment, userID, courseIDs, opts.MaxComments, opts.ErrorLimit)

	outcome.CommentsDeleted = commentsDeleted
	outcome.Partial = outcome.Partial || commentsPartial

	if errComments != nil {
		return outcome, errComments
	}

	return outcome, nil
}

func (p *Purger) scopeCourses(ctx context.Context, scope Scope, courseID string) ([]string, error) {
	switch scope {
	case ScopeCourse:
		return []string{courseID}, nil
	case ScopeOrganization:
		org, errOrg := p.store.OrgForCourse(ctx, courseID)
		if errOrg != nil {
			return nil, errors.Join(errOrg, ErrPurge)
		}

		courseIDs, errCourses := p.store.CoursesForOrg(ctx, org)
		if errCourses != nil {
			return nil, errors.Join(errCourses, ErrPurge)
		}

		return courseIDs, nil
	default:
		return nil, ErrScope
	}
}

type listFunc func(ctx context.Context, authorID int64, courseIDs []string, limit uint64) ([]int64, error)

type deleteFunc func(ctx context.Context, id int64) (bool, error)

func (p *Purger) purgeCollection(ctx context.Context, collection string, list listFunc, del deleteFunc,
	userID int64, courseIDs []string, maxItems int, errorLimit int,
) (int, bool, error) {
	// One extra candidate is fetched so a full page can be told apart from a
	// capped one.
	limit := uint64(0)
	if maxItems > 0 {
		limit = uint64(maxItems) + 1
	}

	ids, errList := list(ctx, userID, courseIDs, limit)
	if errList != nil {
		return 0, false, errors.Join(errList, ErrPurge)
	}

	capped := maxItems > 0 && len(ids) > maxItems
	if capped {
		ids = ids[:maxItems]
	}

	var (
		deleted  int
		failures int
	)

	for _, id := range ids {
		removed, errDelete := del(ctx, id)
		if errDelete != nil {
			failures++

			slog.Warn(MsgDeleteFailed,
				slog.String("collection", collection),
				slog.Int64("id", id),
				log.ErrAttr(errDelete))

			if failures > errorLimit {
				return deleted, true, errors.Join(errDelete, ErrDeleteBudget, ErrPurge)
			}

			continue
		}

		if removed {
			deleted++
		}
	}

	return deleted, capped || failures > 0, nil
}
