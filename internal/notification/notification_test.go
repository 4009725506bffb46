package notification_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/openclass/dbans/internal/config"
	"github.com/openclass/dbans/internal/notification"
	"github.com/openclass/dbans/internal/person"
)

type fakeTemplated struct {
	err          error
	calls        int
	gotRecipient string
	gotContext   notification.Context
}

func (f *fakeTemplated) Send(_ context.Context, recipient string, notice notification.Context) error {
	f.calls++
	f.gotRecipient = recipient
	f.gotContext = notice

	return f.err
}

type fakePlaintext struct {
	err        error
	calls      int
	gotFrom    string
	gotTo      string
	gotSubject string
	gotBody    string
}

func (f *fakePlaintext) Send(_ context.Context, from string, recipient string, subject string, body string) error {
	f.calls++
	f.gotFrom = from
	f.gotTo = recipient
	f.gotSubject = subject
	f.gotBody = body

	return f.err
}

func testContext(reason string, threads int, comments int) notification.Context {
	return notification.NewContext(
		person.Person{UserID: 100, Username: "spammer", Email: "spammer@example.com"},
		person.Person{UserID: 200, Username: "mod1", Email: "mod@example.com"},
		"course-v1:TestX+CS101+2024", "course", reason, threads, comments)
}

func TestContextNormalizesReasonOnce(t *testing.T) {
	require.Equal(t, notification.DefaultReason, testContext("", 0, 0).Reason)
	require.Equal(t, "Spamming", testContext("Spamming", 0, 0).Reason)
}

func TestContextTotals(t *testing.T) {
	notice := testContext("x", 3, 7)
	require.Equal(t, 10, notice.TotalDeleted)
}

func TestSubjectVerbatim(t *testing.T) {
	notice := testContext("x", 0, 0)
	require.Equal(t, "Discussion Ban Alert: spammer in course-v1:TestX+CS101+2024", notice.Subject())
}

func TestDispatchPrefersTemplated(t *testing.T) {
	templated := &fakeTemplated{}
	plaintext := &fakePlaintext{}

	notifier := notification.NewNotifier(templated, plaintext, notification.NewFileResolver(""))

	transport, errDispatch := notifier.Dispatch(context.Background(),
		"no-reply@example.com", "partner-support@edx.org", testContext("x", 1, 2))
	require.NoError(t, errDispatch)
	require.Equal(t, notification.TransportTemplated, transport)
	require.Equal(t, 1, templated.calls)
	require.Zero(t, plaintext.calls)
	require.Equal(t, "partner-support@edx.org", templated.gotRecipient)
}

func TestDispatchFallsBackToPlaintext(t *testing.T) {
	plaintext := &fakePlaintext{}

	notifier := notification.NewNotifier(nil, plaintext, notification.NewFileResolver(""))

	notice := notification.NewContext(
		person.Person{UserID: 100, Username: "spammer", Email: "spammer@example.com"},
		person.Person{UserID: 200, Username: "mod1", Email: "mod@example.com"},
		"course-v1:TestX+CS101+2024", "organization", "Multiple violations", 15, 25)

	transport, errDispatch := notifier.Dispatch(context.Background(),
		"noreply@edx.org", "custom-support@example.com", notice)
	require.NoError(t, errDispatch)
	require.Equal(t, notification.TransportPlaintext, transport)
	require.Equal(t, 1, plaintext.calls)
	require.Equal(t, "noreply@edx.org", plaintext.gotFrom)
	require.Equal(t, "custom-support@example.com", plaintext.gotTo)

	require.Contains(t, plaintext.gotBody, "spammer")
	require.Contains(t, plaintext.gotBody, "ORGANIZATION")
	require.Contains(t, plaintext.gotBody, "Multiple violations")
	require.Contains(t, plaintext.gotBody, "15 threads, 25 comments")
}

func TestDispatchSynthesizedBodyLayout(t *testing.T) {
	plaintext := &fakePlaintext{}
	notifier := notification.NewNotifier(nil, plaintext, notification.NewFileResolver(""))

	_, errDispatch := notifier.Dispatch(context.Background(),
		"no-reply@example.com", "partner-support@edx.org", testContext("", 1, 0))
	require.NoError(t, errDispatch)

	expected := `A user has been banned from discussions:

Banned User: spammer (spammer@example.com)
Moderator: mod1 (mod@example.com)
Course: course-v1:TestX+CS101+2024
Scope: COURSE
Reason: No reason provided
Content Deleted: 1 threads, 0 comments

Please review this moderation action and follow up as needed.
`

	require.Equal(t, expected, plaintext.gotBody)
}

func TestDispatchZeroCountsBodyWellFormed(t *testing.T) {
	plaintext := &fakePlaintext{}
	notifier := notification.NewNotifier(nil, plaintext, notification.NewFileResolver(""))

	_, errDispatch := notifier.Dispatch(context.Background(),
		"no-reply@example.com", "partner-support@edx.org", testContext("x", 0, 0))
	require.NoError(t, errDispatch)
	require.Contains(t, plaintext.gotBody, "0 threads, 0 comments")
}

func TestDispatchPlaintextErrorPropagates(t *testing.T) {
	errBoom := errors.New("connection refused")
	plaintext := &fakePlaintext{err: errBoom}

	notifier := notification.NewNotifier(nil, plaintext, notification.NewFileResolver(""))

	transport, errDispatch := notifier.Dispatch(context.Background(),
		"no-reply@example.com", "partner-support@edx.org", testContext("x", 0, 0))
	require.ErrorIs(t, errDispatch, errBoom)
	require.Equal(t, notification.TransportPlaintext, transport)
}

func TestDispatchTemplatedErrorNeverFallsBack(t *testing.T) {
	errBoom := errors.New("service unavailable")
	templated := &fakeTemplated{err: errBoom}
	plaintext := &fakePlaintext{}

	notifier := notification.NewNotifier(templated, plaintext, notification.NewFileResolver(""))

	transport, errDispatch := notifier.Dispatch(context.Background(),
		"no-reply@example.com", "partner-support@edx.org", testContext("x", 0, 0))
	require.ErrorIs(t, errDispatch, errBoom)
	require.Equal(t, notification.TransportTemplated, transport)
	require.Zero(t, plaintext.calls)
}

func TestFileResolverRendersCustomTemplate(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "discussion"), 0o755))
	require.NoError(t, os.WriteFile(
		filepath.Join(dir, "discussion", "ban_escalation_email.txt"),
		[]byte("Banned {{ .BannedUsername }} from {{ .CourseID }}"), 0o600))

	plaintext := &fakePlaintext{}
	notifier := notification.NewNotifier(nil, plaintext, notification.NewFileResolver(dir))

	_, errDispatch := notifier.Dispatch(context.Background(),
		"no-reply@example.com", "partner-support@edx.org", testContext("x", 0, 0))
	require.NoError(t, errDispatch)
	require.Equal(t, "Banned spammer from course-v1:TestX+CS101+2024", plaintext.gotBody)
}

func TestFileResolverMissingTemplateNotFound(t *testing.T) {
	resolver := notification.NewFileResolver(t.TempDir())

	_, found, errRender := resolver.Render(notification.TemplateName, testContext("x", 0, 0))
	require.NoError(t, errRender)
	require.False(t, found)
}

func TestFileResolverRenderErrorPropagates(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "discussion"), 0o755))
	require.NoError(t, os.WriteFile(
		filepath.Join(dir, "discussion", "ban_escalation_email.txt"),
		[]byte("{{ .Broken"), 0o600))

	plaintext := &fakePlaintext{}
	notifier := notification.NewNotifier(nil, plaintext, notification.NewFileResolver(dir))

	_, errDispatch := notifier.Dispatch(context.Background(),
		"no-reply@example.com", "partner-support@edx.org", testContext("x", 0, 0))
	require.ErrorIs(t, errDispatch, notification.ErrTemplateParse)
	require.Zero(t, plaintext.calls)
}

func TestMessageClientPayload(t *testing.T) {
	var (
		gotPath   string
		gotAuth   string
		gotBody   map[string]any
		gotHeader string
	)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		gotHeader = r.Header.Get("Content-Type")

		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	client := notification.NewMessageClient(config.MessageServiceConfig{
		URL:     server.URL,
		AuthKey: "sekret",
		Timeout: time.Second,
	})

	errSend := client.Send(context.Background(), "partner-support@edx.org", testContext("Posting scam links", 3, 7))
	require.NoError(t, errSend)

	require.Equal(t, "/api/v1/messages", gotPath)
	require.Equal(t, "Bearer sekret", gotAuth)
	require.Equal(t, "application/json", gotHeader)

	require.Equal(t, "discussion", gotBody["app_label"])
	require.Equal(t, "ban_escalation", gotBody["template_name"])

	recipient, ok := gotBody["recipient"].(map[string]any)
	require.True(t, ok)
	require.Equal(t, "partner-support@edx.org", recipient["address"])

	payload, ok := gotBody["context"].(map[string]any)
	require.True(t, ok)
	require.Equal(t, "spammer", payload["banned_username"])
	require.Equal(t, "course", payload["scope"])
	require.Equal(t, "Posting scam links", payload["reason"])
	require.InDelta(t, 3, payload["threads_deleted"], 0)
	require.InDelta(t, 7, payload["comments_deleted"], 0)
	require.InDelta(t, 10, payload["total_deleted"], 0)
}

func TestMessageClientRejection(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := notification.NewMessageClient(config.MessageServiceConfig{URL: server.URL, Timeout: time.Second})

	errSend := client.Send(context.Background(), "partner-support@edx.org", testContext("x", 0, 0))
	require.ErrorIs(t, errSend, notification.ErrMessageService)
}
