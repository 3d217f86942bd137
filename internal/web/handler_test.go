package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cexll/issuebot/internal/dispatcher"
	"github.com/cexll/issuebot/internal/orchestrator"
	"github.com/cexll/issuebot/internal/runstore"
)

type stubTrigger struct {
	id  string
	err error
}

func (s stubTrigger) Trigger(string) (string, error) { return s.id, s.err }

const testRunToken = "run-secret"

func newRouter(t *testing.T, store *runstore.Store, trigger Trigger, webhook http.HandlerFunc) *mux.Router {
	t.Helper()
	r := mux.NewRouter()
	NewHandler(store, trigger, webhook, testRunToken).RegisterRoutes(r)
	return r
}

func serve(r http.Handler, method, path string) *httptest.ResponseRecorder {
	return serveWithToken(r, method, path, "")
}

func serveWithToken(r http.Handler, method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestHandler_Health(t *testing.T) {
	rec := serve(newRouter(t, runstore.NewStore(0), stubTrigger{}, nil), http.MethodGet, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestHandler_RunListAndDetail(t *testing.T) {
	store := runstore.NewStore(0)
	store.Start("run-1", "http")
	store.Finish("run-1", &orchestrator.Report{
		ID: "run-1",
		Outcomes: []orchestrator.Outcome{
			{Issue: 7, Status: orchestrator.StatusPublished, URL: "https://github.com/o/r/pull/1"},
		},
	})
	r := newRouter(t, store, stubTrigger{}, nil)

	rec := serve(r, http.MethodGet, "/runs")
	require.Equal(t, http.StatusOK, rec.Code)
	var runs []runstore.Run
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &runs))
	require.Len(t, runs, 1)
	assert.Equal(t, runstore.StatusCompleted, runs[0].Status)
	assert.Equal(t, 1, runs[0].Summary.Published)
	assert.Nil(t, runs[0].Report)

	rec = serve(r, http.MethodGet, "/runs/run-1")
	require.Equal(t, http.StatusOK, rec.Code)
	var run runstore.Run
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &run))
	require.NotNil(t, run.Report)
	assert.Equal(t, "https://github.com/o/r/pull/1", run.Report.Outcomes[0].URL)
}

func TestHandler_RunDetailNotFound(t *testing.T) {
	rec := serve(newRouter(t, runstore.NewStore(0), stubTrigger{}, nil), http.MethodGet, "/runs/missing")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandler_StartRun(t *testing.T) {
	tests := []struct {
		name    string
		trigger stubTrigger
		code    int
	}{
		{"accepted", stubTrigger{id: "run-9"}, http.StatusAccepted},
		{"busy", stubTrigger{err: dispatcher.ErrBusy}, http.StatusConflict},
		{"closed", stubTrigger{err: errors.New("dispatcher is shut down")}, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serveWithToken(newRouter(t, runstore.NewStore(0), tt.trigger, nil), http.MethodPost, "/runs", testRunToken)
			assert.Equal(t, tt.code, rec.Code)
			if tt.code == http.StatusAccepted {
				assert.Equal(t, "/runs/run-9", rec.Header().Get("Location"))
			}
		})
	}
}

func TestHandler_StartRunRequiresToken(t *testing.T) {
	trigger := &countingTrigger{}
	r := newRouter(t, runstore.NewStore(0), trigger, nil)

	for _, token := range []string{"", "wrong", testRunToken + "x"} {
		rec := serveWithToken(r, http.MethodPost, "/runs", token)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, "token %q", token)
	}
	assert.Zero(t, trigger.calls)

	rec := serveWithToken(r, http.MethodPost, "/runs", testRunToken)
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, 1, trigger.calls)
}

func TestHandler_StartRunDisabledWithoutToken(t *testing.T) {
	trigger := &countingTrigger{}
	r := mux.NewRouter()
	NewHandler(runstore.NewStore(0), trigger, nil, "").RegisterRoutes(r)

	rec := serveWithToken(r, http.MethodPost, "/runs", "anything")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Zero(t, trigger.calls)
}

type countingTrigger struct {
	calls int
}

func (c *countingTrigger) Trigger(string) (string, error) {
	c.calls++
	return "run-1", nil
}

func TestHandler_WebhookMountedOnlyWhenConfigured(t *testing.T) {
	called := false
	hook := func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	}

	rec := serve(newRouter(t, runstore.NewStore(0), stubTrigger{}, hook), http.MethodPost, "/webhook")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, called)

	rec = serve(newRouter(t, runstore.NewStore(0), stubTrigger{}, nil), http.MethodPost, "/webhook")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
