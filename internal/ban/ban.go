// Package ban records discussion bans and runs the escalation pipeline,
// purging the banned user's authored content and notifying the support
// address.
package ban

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/openclass/dbans/internal/config"
	"github.com/openclass/dbans/internal/discussion"
	"github.com/openclass/dbans/internal/metrics"
	"github.com/openclass/dbans/internal/notification"
	"github.com/openclass/dbans/internal/person"
	"github.com/openclass/dbans/pkg/log"
)

var (
	ErrInvalidRequest = errors.New("invalid ban request")
	ErrSameUser       = errors.New("moderator and banned user must differ")
	ErrAlreadyBanned  = errors.New("user already has an active ban for this target")
)

// Stable log messages, asserted on by tests.
const (
	MsgSuppressed   = "Ban escalation email suppressed"
	MsgDispatched   = "Sent ban escalation email"
	MsgFailedSend   = "Failed to send ban escalation email"
	MsgUserNotFound = "Failed to resolve ban escalation users"
	MsgPurgeFailed  = "Failed to purge banned user content"
)

// Ban is the durable record of a moderation ban. Org is set for organization
// scope bans, CourseID for course scope.
type Ban struct {
	BanID       int64            `json:"ban_id"`
	UserID      int64            `json:"user_id"`
	CourseID    string           `json:"course_id,omitempty"`
	Org         string           `json:"org,omitempty"`
	Scope       discussion.Scope `json:"scope"`
	Reason      string           `json:"reason"`
	BannedBy    int64            `json:"banned_by"`
	IsActive    bool             `json:"is_active"`
	Reactivated bool             `json:"reactivated"`
	CreatedOn   time.Time        `json:"created_on"`
	UpdatedOn   time.Time        `json:"updated_on"`
}

// BanRequest is the inbound moderation action payload.
type BanRequest struct {
	BannedUserID    int64            `json:"banned_user_id"`
	ModeratorUserID int64            `json:"moderator_user_id"`
	CourseID        string           `json:"course_id"`
	Scope           discussion.Scope `json:"scope"`
	Reason          string           `json:"reason"`
}

func (r BanRequest) Validate() error {
	if r.BannedUserID <= 0 || r.ModeratorUserID <= 0 || r.CourseID == "" || !r.Scope.Valid() {
		return ErrInvalidRequest
	}

	if r.BannedUserID == r.ModeratorUserID {
		return ErrSameUser
	}

	return nil
}

// BannedPerson is one row of the banned-user listing for a course.
type BannedPerson struct {
	BanID     int64            `json:"ban_id"`
	UserID    int64            `json:"user_id"`
	Username  string           `json:"username"`
	Scope     discussion.Scope `json:"scope"`
	Reason    string           `json:"reason"`
	BannedBy  int64            `json:"banned_by"`
	CreatedOn time.Time        `json:"created_on"`
}

// ModerationLog is the append-only audit trail of moderation actions.
type ModerationLog struct {
	LogID       uuid.UUID        `json:"log_id"`
	Action      string           `json:"action"`
	ModeratorID int64            `json:"moderator_id"`
	TargetID    int64            `json:"target_id"`
	CourseID    string           `json:"course_id"`
	Scope       discussion.Scope `json:"scope"`
	Reason      string           `json:"reason"`
	CreatedOn   time.Time        `json:"created_on"`
}

const (
	ActionBan            = "ban"
	ActionBanReactivated = "ban_reactivated"
)

// EscalationResult reports what the escalation pipeline did.
type EscalationResult struct {
	Dispatched bool                    `json:"dispatched"`
	Transport  notification.Transport  `json:"transport"`
	Purge      discussion.PurgeOutcome `json:"purge"`
}

// EscalationError carries the partial result alongside a fatal pipeline
// error so callers can still report purge counts that were observed before
// the failure.
type EscalationError struct {
	Result EscalationResult
	Err    error
}

func (e *EscalationError) Error() string {
	return e.Err.Error()
}

func (e *EscalationError) Unwrap() error {
	return e.Err
}

// Store is the ban persistence layer.
type Store interface {
	Record(ctx context.Context, ban *Ban) error
	Banned(ctx context.Context, courseID string) ([]BannedPerson, error)
	AppendLog(ctx context.Context, entry ModerationLog) error
}

// ContentPurger removes a banned user's authored content.
type ContentPurger interface {
	Purge(ctx context.Context, userID int64, scope discussion.Scope, courseID string,
		opts discussion.PurgeOptions) (discussion.PurgeOutcome, error)
}

// Dispatcher delivers the escalation notice.
type Dispatcher interface {
	Dispatch(ctx context.Context, fromAddress string, escalationAddress string,
		notification notification.Context) (notification.Transport, error)
}

// SettingsSource yields the runtime settings snapshot taken once per action.
type SettingsSource interface {
	Snapshot(ctx context.Context) config.Settings
}

// OrgResolver maps a course to its owning organization.
type OrgResolver interface {
	OrgForCourse(ctx context.Context, courseID string) (string, error)
}

type Bans struct {
	store     Store
	persons   person.Provider
	purger    ContentPurger
	notifier  Dispatcher
	settings  SettingsSource
	orgs      OrgResolver
	collector *metrics.Collector
}

func NewBans(store Store, persons person.Provider, purger ContentPurger, notifier Dispatcher,
	settings SettingsSource, orgs OrgResolver, collector *metrics.Collector,
) Bans {
	return Bans{
		store:     store,
		persons:   persons,
		purger:    purger,
		notifier:  notifier,
		settings:  settings,
		orgs:      orgs,
		collector: collector,
	}
}

// Escalate purges the banned user's content and dispatches the escalation
// notice. Resolution, purge and dispatch run strictly in that order so the
// notice always carries accurate counts. Fatal errors are returned as an
// *EscalationError wrapping the partial result.
func (b Bans) Escalate(ctx context.Context, req BanRequest) (EscalationResult, error) {
	result := EscalationResult{Transport: notification.TransportNone}

	if errValidate := req.Validate(); errValidate != nil {
		return result, errValidate
	}

	settings := b.settings.Snapshot(ctx)

	if !settings.BanEmailEnabled {
		slog.Info(MsgSuppressed,
			slog.Int64("banned_user_id", req.BannedUserID),
			slog.String("course_id", req.CourseID),
			slog.String("scope", string(req.Scope)))
		b.collector.EscalationsSuppressed.Inc()

		return result, nil
	}

	banned, errBanned := b.persons.ByID(ctx, req.BannedUserID)
	if errBanned != nil {
		slog.Error(MsgUserNotFound, slog.Int64("user_id", req.BannedUserID), log.ErrAttr(errBanned))
		b.collector.Failures.WithLabelValues("user_not_found").Inc()

		return result, errBanned
	}

	moderator, errModerator := b.persons.ByID(ctx, req.ModeratorUserID)
	if errModerator != nil {
		slog.Error(MsgUserNotFound, slog.Int64("user_id", req.ModeratorUserID), log.ErrAttr(errModerator))
		b.collector.Failures.WithLabelValues("user_not_found").Inc()

		return result, errModerator
	}

	outcome, errPurge := b.purger.Purge(ctx, req.BannedUserID, req.Scope, req.CourseID, discussion.PurgeOptions{
		MaxThreads:  settings.MaxThreadsPerBan,
		MaxComments: settings.MaxCommentsPerBan,
		ErrorLimit:  settings.PurgeErrorLimit,
	})

	result.Purge = outcome

	b.collector.ContentPurged.WithLabelValues("thread").Add(float64(outcome.ThreadsDeleted))
	b.collector.ContentPurged.WithLabelValues("comment").Add(float64(outcome.CommentsDeleted))

	if errPurge != nil {
		slog.Error(MsgPurgeFailed,
			slog.Int64("banned_user_id", req.BannedUserID),
			slog.String("course_id", req.CourseID),
			log.ErrAttr(errPurge))
		b.collector.Failures.WithLabelValues("purge").Inc()

		return result, &EscalationError{Result: result, Err: errPurge}
	}

	notice := notification.NewContext(banned, moderator, req.CourseID, string(req.Scope),
		req.Reason, outcome.ThreadsDeleted, outcome.CommentsDeleted)

	transport, errDispatch := b.notifier.Dispatch(ctx, settings.FromAddress, settings.EscalationAddress, notice)
	result.Transport = transport

	if errDispatch != nil {
		slog.Error(MsgFailedSend,
			slog.String("transport", string(transport)),
			slog.String("recipient", settings.EscalationAddress),
			log.ErrAttr(errDispatch))
		b.collector.Failures.WithLabelValues("transport").Inc()

		return result, &EscalationError{Result: result, Err: errDispatch}
	}

	result.Dispatched = true

	slog.Info(MsgDispatched,
		slog.String("transport", string(transport)),
		slog.String("recipient", settings.EscalationAddress))
	b.collector.EscalationsSent.WithLabelValues(string(transport)).Inc()

	return result, nil
}

// Ban durably records the ban, writes the audit log entry and then runs the
// escalation pipeline. An existing active ban for the same target fails with
// ErrAlreadyBanned, an inactive one is reactivated in place.
func (b Bans) Ban(ctx context.Context, req BanRequest) (Ban, EscalationResult, error) {
	var record Ban

	if errValidate := req.Validate(); errValidate != nil {
		return record, EscalationResult{Transport: notification.TransportNone}, errValidate
	}

	// The course must exist, it also supplies the org key for org scope bans.
	org, errOrg := b.orgs.OrgForCourse(ctx, req.CourseID)
	if errOrg != nil {
		return record, EscalationResult{Transport: notification.TransportNone}, errOrg
	}

	if _, errTarget := b.persons.ByID(ctx, req.BannedUserID); errTarget != nil {
		return record, EscalationResult{Transport: notification.TransportNone}, errTarget
	}

	record = Ban{
		UserID:   req.BannedUserID,
		Scope:    req.Scope,
		Reason:   req.Reason,
		BannedBy: req.ModeratorUserID,
		IsActive: true,
	}

	if req.Scope == discussion.ScopeOrganization {
		record.Org = org
	} else {
		record.CourseID = req.CourseID
	}

	if errRecord := b.store.Record(ctx, &record); errRecord != nil {
		return record, EscalationResult{Transport: notification.TransportNone}, errRecord
	}

	action := ActionBan
	if record.Reactivated {
		action = ActionBanReactivated
	}

	if errLog := b.store.AppendLog(ctx, ModerationLog{
		LogID:       uuid.Must(uuid.NewV4()),
		Action:      action,
		ModeratorID: req.ModeratorUserID,
		TargetID:    req.BannedUserID,
		CourseID:    req.CourseID,
		Scope:       req.Scope,
		Reason:      req.Reason,
	}); errLog != nil {
		return record, EscalationResult{Transport: notification.TransportNone}, errLog
	}

	b.collector.BansRecorded.WithLabelValues(string(req.Scope)).Inc()

	result, errEscalate := b.Escalate(ctx, req)

	return record, result, errEscalate
}

// Banned lists the users currently banned from a course's discussions,
// including organization bans covering the course.
func (b Bans) Banned(ctx context.Context, courseID string) ([]BannedPerson, error) {
	return b.store.Banned(ctx, courseID)
}
