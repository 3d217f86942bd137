package testing

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"

	gh "github.com/google/go-github/v66/github"
)

// MockIssue is one entry served by GET /repos/owner/repo/issues.
type MockIssue struct {
	Number      int
	Title       string
	Body        string
	PullRequest bool
}

// CreatedPR records a POST /repos/owner/repo/pulls body.
type CreatedPR struct {
	Title string `json:"title"`
	Head  string `json:"head"`
	Base  string `json:"base"`
	Body  string `json:"body"`
}

// MockGitHub is the state behind a fake GitHub API for owner/repo.
type MockGitHub struct {
	mu sync.Mutex

	Issues        []MockIssue
	DefaultBranch string
	// OpenPulls maps head branch to the HTML URL of an already-open pull request.
	OpenPulls map[string]string

	FailIssues bool
	FailCreate bool
	PageSize   int

	Created     []CreatedPR
	IssueCalls  int
	AuthHeaders []string
}

// CreatedPRs returns a snapshot of recorded pull request creations.
func (m *MockGitHub) CreatedPRs() []CreatedPR {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]CreatedPR(nil), m.Created...)
}

// NewMockGitHubClient returns a go-github client backed by a local httptest server
// serving the endpoints the issue bot uses:
// - GET  /repos/owner/repo                 -> default_branch
// - GET  /repos/owner/repo/issues          -> m.Issues (paginated by PageSize)
// - GET  /repos/owner/repo/pulls?head=...  -> open pull requests from m.OpenPulls
// - POST /repos/owner/repo/pulls           -> 201, recorded in m.Created
// The returned cleanup function must be called to close the server.
func NewMockGitHubClient(m *MockGitHub) (*gh.Client, func()) {
	mux := http.NewServeMux()

	mux.HandleFunc("/repos/owner/repo", func(w http.ResponseWriter, r *http.Request) {
		m.record(r)
		branch := m.DefaultBranch
		if branch == "" {
			branch = "main"
		}
		writeJSON(w, http.StatusOK, map[string]any{"full_name": "owner/repo", "default_branch": branch})
	})

	mux.HandleFunc("/repos/owner/repo/issues", func(w http.ResponseWriter, r *http.Request) {
		m.record(r)
		m.mu.Lock()
		m.IssueCalls++
		fail := m.FailIssues
		m.mu.Unlock()

		if fail {
			http.Error(w, `{"message":"boom"}`, http.StatusInternalServerError)
			return
		}
		serveIssues(w, r, m)
	})

	mux.HandleFunc("/repos/owner/repo/pulls", func(w http.ResponseWriter, r *http.Request) {
		m.record(r)
		switch r.Method {
		case http.MethodGet:
			head := r.URL.Query().Get("head")
			head = strings.TrimPrefix(head, "owner:")
			var out []map[string]any
			m.mu.Lock()
			if u, ok := m.OpenPulls[head]; ok {
				out = append(out, map[string]any{"number": 99, "state": "open", "html_url": u})
			}
			m.mu.Unlock()
			writeJSON(w, http.StatusOK, out)
		case http.MethodPost:
			var req CreatedPR
			body, _ := io.ReadAll(r.Body)
			_ = json.Unmarshal(body, &req)

			m.mu.Lock()
			fail := m.FailCreate
			if !fail {
				m.Created = append(m.Created, req)
			}
			n := len(m.Created)
			m.mu.Unlock()

			if fail {
				writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
					"message": "Validation Failed",
					"errors":  []map[string]string{{"message": "A pull request already exists for owner:" + req.Head}},
				})
				return
			}
			writeJSON(w, http.StatusCreated, map[string]any{
				"number":   n,
				"html_url": fmt.Sprintf("https://github.com/owner/repo/pull/%d", n),
			})
		default:
			http.NotFound(w, r)
		}
	})

	srv := httptest.NewServer(mux)

	client := gh.NewClient(srv.Client())
	base, _ := url.Parse(srv.URL + "/")
	client.BaseURL = base
	client.UploadURL = base

	cleanup := func() { srv.Close() }
	return client, cleanup
}

func (m *MockGitHub) record(r *http.Request) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.AuthHeaders = append(m.AuthHeaders, r.Header.Get("Authorization"))
}

func serveIssues(w http.ResponseWriter, r *http.Request, m *MockGitHub) {
	m.mu.Lock()
	items := append([]MockIssue(nil), m.Issues...)
	size := m.PageSize
	m.mu.Unlock()

	if size <= 0 {
		size = len(items) + 1
	}
	page := 1
	if p := r.URL.Query().Get("page"); p != "" {
		fmt.Sscanf(p, "%d", &page)
	}

	start := (page - 1) * size
	if start > len(items) {
		start = len(items)
	}
	end := start + size
	if end > len(items) {
		end = len(items)
	}

	if end < len(items) {
		next := *r.URL
		q := next.Query()
		q.Set("page", fmt.Sprintf("%d", page+1))
		next.RawQuery = q.Encode()
		w.Header().Set("Link", fmt.Sprintf(`<http://%s%s>; rel="next"`, r.Host, next.RequestURI()))
	}

	out := make([]map[string]any, 0, end-start)
	for _, it := range items[start:end] {
		item := map[string]any{"number": it.Number, "title": it.Title, "body": it.Body, "state": "open"}
		if it.PullRequest {
			item["pull_request"] = map[string]string{"url": fmt.Sprintf("https://api.github.com/repos/owner/repo/pulls/%d", it.Number)}
		}
		out = append(out, item)
	}
	writeJSON(w, http.StatusOK, out)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
