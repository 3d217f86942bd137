package webhook

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cexll/issuebot/internal/dispatcher"
)

const testSecret = "test-secret"

type mockTrigger struct {
	err     error
	sources []string
}

func (m *mockTrigger) Trigger(source string) (string, error) {
	m.sources = append(m.sources, source)
	if m.err != nil {
		return "", m.err
	}
	return "run-1", nil
}

func issuesPayload(t *testing.T, action, repo string, number int, isPR bool) []byte {
	t.Helper()
	event := map[string]any{
		"action":     action,
		"issue":      map[string]any{"number": number, "title": "Fix bug", "state": "open"},
		"repository": map[string]any{"full_name": repo},
		"sender":     map[string]any{"login": "octocat"},
	}
	if isPR {
		event["issue"].(map[string]any)["pull_request"] = map[string]any{"url": "x"}
	}
	data, err := json.Marshal(event)
	require.NoError(t, err)
	return data
}

func deliver(h *Handler, event, delivery string, payload []byte, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewReader(payload))
	req.Header.Set("X-GitHub-Event", event)
	req.Header.Set("X-GitHub-Delivery", delivery)
	req.Header.Set("X-Hub-Signature-256", signature)
	rec := httptest.NewRecorder()
	h.Handle(rec, req)
	return rec
}

func signed(payload []byte) string {
	return "sha256=" + Sign(payload, testSecret)
}

func TestHandle_IssueOpenedStartsRun(t *testing.T) {
	trigger := &mockTrigger{}
	h := NewHandler(testSecret, "owner/repo", trigger)
	payload := issuesPayload(t, "opened", "Owner/Repo", 7, false)

	rec := deliver(h, "issues", "d-1", payload, signed(payload))

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.JSONEq(t, `{"run_id":"run-1"}`, rec.Body.String())
	assert.Equal(t, []string{"webhook:issues.opened#7"}, trigger.sources)
}

func TestHandle_RejectsBadSignature(t *testing.T) {
	trigger := &mockTrigger{}
	h := NewHandler(testSecret, "owner/repo", trigger)
	payload := issuesPayload(t, "opened", "owner/repo", 7, false)

	for _, sig := range []string{"", "sha256=deadbeef", "sha1=abc"} {
		rec := deliver(h, "issues", "d-1", payload, sig)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, "signature %q", sig)
	}
	assert.Empty(t, trigger.sources)
}

func TestHandle_IgnoredEvents(t *testing.T) {
	tests := []struct {
		name    string
		event   string
		payload []byte
		body    string
	}{
		{"ping", "ping", []byte(`{}`), "pong"},
		{"unsupported event", "push", []byte(`{}`), "Event ignored"},
		{"other repository", "issues", issuesPayload(t, "opened", "someone/else", 1, false), "Repository ignored"},
		{"closed action", "issues", issuesPayload(t, "closed", "owner/repo", 1, false), "Action ignored"},
		{"pull request", "issues", issuesPayload(t, "opened", "owner/repo", 1, true), "Action ignored"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			trigger := &mockTrigger{}
			rec := deliver(NewHandler(testSecret, "owner/repo", trigger), tt.event, "d", tt.payload, signed(tt.payload))
			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, tt.body, rec.Body.String())
			assert.Empty(t, trigger.sources)
		})
	}
}

func TestHandle_MalformedPayload(t *testing.T) {
	payload := []byte(`{not json`)
	rec := deliver(NewHandler(testSecret, "owner/repo", &mockTrigger{}), "issues", "d", payload, signed(payload))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandle_DuplicateDelivery(t *testing.T) {
	trigger := &mockTrigger{}
	h := NewHandler(testSecret, "owner/repo", trigger)
	payload := issuesPayload(t, "opened", "owner/repo", 7, false)

	assert.Equal(t, http.StatusAccepted, deliver(h, "issues", "d-1", payload, signed(payload)).Code)
	rec := deliver(h, "issues", "d-1", payload, signed(payload))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Duplicate delivery", rec.Body.String())
	assert.Len(t, trigger.sources, 1)
}

func TestHandle_BusyReturnsConflictAndAllowsRedelivery(t *testing.T) {
	trigger := &mockTrigger{err: dispatcher.ErrBusy}
	h := NewHandler(testSecret, "owner/repo", trigger)
	payload := issuesPayload(t, "opened", "owner/repo", 7, false)

	rec := deliver(h, "issues", "d-1", payload, signed(payload))
	assert.Equal(t, http.StatusConflict, rec.Code)

	trigger.err = nil
	rec = deliver(h, "issues", "d-1", payload, signed(payload))
	assert.Equal(t, http.StatusAccepted, rec.Code)
}

func TestHandle_TriggerFailure(t *testing.T) {
	trigger := &mockTrigger{err: errors.New("closed")}
	payload := issuesPayload(t, "reopened", "owner/repo", 7, false)

	rec := deliver(NewHandler(testSecret, "owner/repo", trigger), "issues", "d-2", payload, signed(payload))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHandle_OversizedPayload(t *testing.T) {
	trigger := &mockTrigger{}
	h := NewHandler(testSecret, "owner/repo", trigger)
	h.maxBody = 64
	payload := issuesPayload(t, "opened", "owner/repo", 7, false)
	require.Greater(t, len(payload), 64)

	rec := deliver(h, "issues", "d-big", payload, signed(payload))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Empty(t, trigger.sources)
}
