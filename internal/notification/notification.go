// Package notification dispatches ban escalation notices to the support
// address, preferring the templated message service and falling back to
// plain-text SMTP delivery.
package notification

import (
	"context"
	"fmt"
	"strings"

	"github.com/openclass/dbans/internal/person"
)

// DefaultReason replaces an empty ban reason exactly once, at context build
// time, so nothing downstream has to branch on emptiness.
const DefaultReason = "No reason provided"

// Transport identifies which delivery path handled a dispatch.
type Transport string

const (
	TransportNone      Transport = "none"
	TransportTemplated Transport = "templated"
	TransportPlaintext Transport = "plaintext"
)

// Context is the immutable payload rendered into either transport. Identities
// are carried verbatim, TotalDeleted is always the sum of the two counts.
type Context struct {
	BannedUsername    string `json:"banned_username"`
	BannedEmail       string `json:"banned_email"`
	BannedUserID      int64  `json:"banned_user_id"`
	ModeratorUsername string `json:"moderator_username"`
	ModeratorEmail    string `json:"moderator_email"`
	ModeratorUserID   int64  `json:"moderator_user_id"`
	CourseID          string `json:"course_id"`
	Scope             string `json:"scope"`
	Reason            string `json:"reason"`
	ThreadsDeleted    int    `json:"threads_deleted"`
	CommentsDeleted   int    `json:"comments_deleted"`
	TotalDeleted      int    `json:"total_deleted"`
}

// NewContext builds the notification payload from resolved identities and the
// observed purge counts.
func NewContext(banned person.Person, moderator person.Person, courseID string, scope string,
	reason string, threadsDeleted int, commentsDeleted int,
) Context {
	if reason == "" {
		reason = DefaultReason
	}

	return Context{
		BannedUsername:    banned.Username,
		BannedEmail:       banned.Email,
		BannedUserID:      banned.UserID,
		ModeratorUsername: moderator.Username,
		ModeratorEmail:    moderator.Email,
		ModeratorUserID:   moderator.UserID,
		CourseID:          courseID,
		Scope:             scope,
		Reason:            reason,
		ThreadsDeleted:    threadsDeleted,
		CommentsDeleted:   commentsDeleted,
		TotalDeleted:      threadsDeleted + commentsDeleted,
	}
}

// ScopeUpper is the scope as rendered in the plain-text body.
func (c Context) ScopeUpper() string {
	return strings.ToUpper(c.Scope)
}

// Subject is the subject line used on both delivery paths.
func (c Context) Subject() string {
	return fmt.Sprintf("Discussion Ban Alert: %s in %s", c.BannedUsername, c.CourseID)
}

// TemplatedTransport submits a named template plus context for server-side
// rendering and delivery.
type TemplatedTransport interface {
	Send(ctx context.Context, recipient string, notification Context) error
}

// PlaintextTransport delivers an already rendered subject and body.
type PlaintextTransport interface {
	Send(ctx context.Context, from string, recipient string, subject string, body string) error
}

// Notifier selects the delivery path at each call. The templated transport is
// preferred whenever one was configured, otherwise the plain-text path runs.
// Exactly one transport is ever invoked per dispatch.
type Notifier struct {
	templated TemplatedTransport
	plaintext PlaintextTransport
	templates Resolver
}

// NewNotifier builds a Notifier. templated may be nil when no message service
// is configured.
func NewNotifier(templated TemplatedTransport, plaintext PlaintextTransport, templates Resolver) *Notifier {
	return &Notifier{templated: templated, plaintext: plaintext, templates: templates}
}

// Dispatch delivers the notification and reports which transport was chosen.
// Transport errors propagate verbatim alongside the attempted transport.
func (n *Notifier) Dispatch(ctx context.Context, fromAddress string, escalationAddress string, notification Context) (Transport, error) {
	if n.templated != nil {
		if errSend := n.templated.Send(ctx, escalationAddress, notification); errSend != nil {
			return TransportTemplated, errSend
		}

		return TransportTemplated, nil
	}

	body, found, errRender := n.templates.Render(TemplateName, notification)
	if errRender != nil {
		return TransportPlaintext, errRender
	}

	if !found {
		fallback, errFallback := FallbackBody(notification)
		if errFallback != nil {
			return TransportPlaintext, errFallback
		}

		body = fallback
	}

	if errSend := n.plaintext.Send(ctx, fromAddress, escalationAddress, notification.Subject(), body); errSend != nil {
		return TransportPlaintext, errSend
	}

	return TransportPlaintext, nil
}
