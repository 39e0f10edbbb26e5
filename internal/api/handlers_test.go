package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"example.com/exercisetracker/internal/domain"
	"example.com/exercisetracker/internal/persistence/memory"
)

var fixedNow = time.Date(2024, time.June, 5, 15, 30, 0, 0, time.UTC)

func newTestMux(t *testing.T, repo domain.Repository, opts ...Option) *http.ServeMux {
	t.Helper()
	service := domain.NewService(repo, domain.WithClock(func() time.Time { return fixedNow }))
	mux := http.NewServeMux()
	NewHandler(service, append([]Option{WithAdminRoutes(true)}, opts...)...).RegisterRoutes(mux)
	return mux
}

func postForm(t *testing.T, mux http.Handler, path string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	return rr
}

func get(t *testing.T, mux http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response: %v (%s)", err, rr.Body.String())
	}
	return out
}

func createUser(t *testing.T, mux http.Handler, username string) UserView {
	t.Helper()
	rr := postForm(t, mux, "/api/users", url.Values{"username": {username}})
	if rr.Code != http.StatusOK {
		t.Fatalf("create user: expected 200 got %d: %s", rr.Code, rr.Body.String())
	}
	return decode[UserView](t, rr)
}

func TestExerciseLogScenario(t *testing.T) {
	mux := newTestMux(t, memory.NewRepository())

	user := createUser(t, mux, "fcc_test")
	if user.ID == "" || user.Username != "fcc_test" {
		t.Fatalf("unexpected user %+v", user)
	}

	path := "/api/users/" + user.ID + "/exercises"
	for _, form := range []url.Values{
		{"description": {"run"}, "duration": {"30"}, "date": {"2023-01-10"}},
		{"description": {"swim"}, "duration": {"45"}, "date": {"2023-01-20"}},
		{"description": {"bike"}, "duration": {"60"}, "date": {"2023-02-01"}},
	} {
		rr := postForm(t, mux, path, form)
		if rr.Code != http.StatusOK {
			t.Fatalf("log exercise: expected 200 got %d: %s", rr.Code, rr.Body.String())
		}
	}

	rr := get(t, mux, "/api/users/"+user.ID+"/logs?from=2023-01-15&to=2023-01-31")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rr.Code, rr.Body.String())
	}
	log := decode[LogView](t, rr)
	if log.ID != user.ID || log.Username != "fcc_test" {
		t.Fatalf("unexpected owner %+v", log)
	}
	if log.Count != 1 || len(log.Log) != 1 {
		t.Fatalf("expected one entry, got %+v", log)
	}
	want := LogEntryView{Description: "swim", Duration: 45, Date: "Fri Jan 20 2023"}
	if log.Log[0] != want {
		t.Fatalf("expected %+v got %+v", want, log.Log[0])
	}

	rr = get(t, mux, "/api/users/"+user.ID+"/logs?limit=2")
	log = decode[LogView](t, rr)
	if log.Count != 2 || log.Log[0].Description != "run" || log.Log[1].Description != "swim" {
		t.Fatalf("unexpected limited log %+v", log)
	}

	rr = get(t, mux, "/api/users/"+user.ID+"/logs")
	log = decode[LogView](t, rr)
	if log.Count != 3 {
		t.Fatalf("expected full log of 3, got %d", log.Count)
	}
}

func TestLogExerciseResponseShape(t *testing.T) {
	mux := newTestMux(t, memory.NewRepository())
	user := createUser(t, mux, "alice")

	rr := postForm(t, mux, "/api/users/"+user.ID+"/exercises", url.Values{
		"description": {"run"},
		"duration":    {"30"},
		"date":        {"2023-01-10"},
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rr.Code, rr.Body.String())
	}
	got := decode[ExerciseView](t, rr)
	want := ExerciseView{ID: user.ID, Username: "alice", Description: "run", Duration: 30, Date: "Tue Jan 10 2023"}
	if got != want {
		t.Fatalf("expected %+v got %+v", want, got)
	}
}

func TestLogExerciseDefaultsDateToToday(t *testing.T) {
	mux := newTestMux(t, memory.NewRepository())
	user := createUser(t, mux, "alice")

	rr := postForm(t, mux, "/api/users/"+user.ID+"/exercises", url.Values{
		"description": {"walk"},
		"duration":    {"15"},
	})
	got := decode[ExerciseView](t, rr)
	if got.Date != "Wed Jun 05 2024" {
		t.Fatalf("expected today's date, got %q", got.Date)
	}
}

func TestLogExerciseAcceptsJSON(t *testing.T) {
	mux := newTestMux(t, memory.NewRepository())
	user := createUser(t, mux, "alice")

	body := `{"description":"row","duration":20,"date":"2023-03-04"}`
	req := httptest.NewRequest(http.MethodPost, "/api/users/"+user.ID+"/exercises", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rr.Code, rr.Body.String())
	}
	got := decode[ExerciseView](t, rr)
	if got.Duration != 20 || got.Date != "Sat Mar 04 2023" {
		t.Fatalf("unexpected exercise %+v", got)
	}
}

func TestLogExerciseKeepsLargeJSONDurations(t *testing.T) {
	mux := newTestMux(t, memory.NewRepository())
	user := createUser(t, mux, "alice")

	body := `{"description":"ultra","duration":1000000}`
	req := httptest.NewRequest(http.MethodPost, "/api/users/"+user.ID+"/exercises", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rr.Code, rr.Body.String())
	}
	if got := decode[ExerciseView](t, rr); got.Duration != 1000000 {
		t.Fatalf("expected duration 1000000, got %+v", got)
	}
}

func TestUnknownUserReturnsNotFound(t *testing.T) {
	mux := newTestMux(t, memory.NewRepository())

	for _, rr := range []*httptest.ResponseRecorder{
		get(t, mux, "/api/users/missing/logs"),
		postForm(t, mux, "/api/users/missing/exercises", url.Values{"description": {"run"}, "duration": {"30"}}),
	} {
		if rr.Code != http.StatusNotFound {
			t.Fatalf("expected 404 got %d: %s", rr.Code, rr.Body.String())
		}
		resp := decode[ErrorResponse](t, rr)
		if resp.Type != "not_found" {
			t.Fatalf("expected not_found, got %+v", resp)
		}
	}
}

func TestValidationFailures(t *testing.T) {
	mux := newTestMux(t, memory.NewRepository())
	user := createUser(t, mux, "alice")
	exercises := "/api/users/" + user.ID + "/exercises"

	cases := []struct {
		name string
		run  func() *httptest.ResponseRecorder
	}{
		{"empty username", func() *httptest.ResponseRecorder {
			return postForm(t, mux, "/api/users", url.Values{"username": {""}})
		}},
		{"missing description", func() *httptest.ResponseRecorder {
			return postForm(t, mux, exercises, url.Values{"duration": {"30"}})
		}},
		{"non-numeric duration", func() *httptest.ResponseRecorder {
			return postForm(t, mux, exercises, url.Values{"description": {"run"}, "duration": {"half"}})
		}},
		{"zero duration", func() *httptest.ResponseRecorder {
			return postForm(t, mux, exercises, url.Values{"description": {"run"}, "duration": {"0"}})
		}},
		{"bad date", func() *httptest.ResponseRecorder {
			return postForm(t, mux, exercises, url.Values{"description": {"run"}, "duration": {"5"}, "date": {"yesterday"}})
		}},
		{"bad from", func() *httptest.ResponseRecorder {
			return get(t, mux, "/api/users/"+user.ID+"/logs?from=soon")
		}},
		{"negative limit", func() *httptest.ResponseRecorder {
			return get(t, mux, "/api/users/"+user.ID+"/logs?limit=-1")
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr := tc.run()
			if rr.Code != http.StatusBadRequest {
				t.Fatalf("expected 400 got %d: %s", rr.Code, rr.Body.String())
			}
			resp := decode[ErrorResponse](t, rr)
			if resp.Type != "validation_failed" || resp.Error == "" {
				t.Fatalf("unexpected error body %+v", resp)
			}
		})
	}
}

func TestMalformedJSONBody(t *testing.T) {
	mux := newTestMux(t, memory.NewRepository())

	req := httptest.NewRequest(http.MethodPost, "/api/users", strings.NewReader("{"))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rr.Code)
	}
	if resp := decode[ErrorResponse](t, rr); resp.Type != "invalid_request" {
		t.Fatalf("expected invalid_request, got %+v", resp)
	}
}

func TestListUsers(t *testing.T) {
	mux := newTestMux(t, memory.NewRepository())

	rr := get(t, mux, "/api/users")
	if body := strings.TrimSpace(rr.Body.String()); body != "[]" {
		t.Fatalf("expected empty array, got %s", body)
	}

	first := createUser(t, mux, "alice")
	second := createUser(t, mux, "bob")

	users := decode[[]UserView](t, get(t, mux, "/api/users"))
	if len(users) != 2 || users[0] != first || users[1] != second {
		t.Fatalf("unexpected users %+v", users)
	}
}

func TestDeleteAll(t *testing.T) {
	mux := newTestMux(t, memory.NewRepository())
	user := createUser(t, mux, "alice")
	postForm(t, mux, "/api/users/"+user.ID+"/exercises", url.Values{"description": {"run"}, "duration": {"30"}})

	rr := get(t, mux, "/api/deleteAll/users")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rr.Code, rr.Body.String())
	}
	got := decode[ClearView](t, rr)
	if got.DeletedUsers != 1 || got.DeletedExercises != 1 {
		t.Fatalf("unexpected clear result %+v", got)
	}

	if users := decode[[]UserView](t, get(t, mux, "/api/users")); len(users) != 0 {
		t.Fatalf("expected no users after clear, got %+v", users)
	}
}

func TestDeleteAllDisabled(t *testing.T) {
	mux := newTestMux(t, memory.NewRepository(), WithAdminRoutes(false))

	rr := get(t, mux, "/api/deleteAll/users")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", rr.Code)
	}
}

type brokenRepo struct {
	*memory.Repository
}

func (brokenRepo) ListUsers(context.Context) ([]domain.User, error) {
	return nil, errors.New("connection refused")
}

func TestStoreFailureIsHidden(t *testing.T) {
	mux := newTestMux(t, brokenRepo{memory.NewRepository()})

	rr := get(t, mux, "/api/users")
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 got %d", rr.Code)
	}
	resp := decode[ErrorResponse](t, rr)
	if resp.Type != "server_error" || strings.Contains(resp.Error, "connection refused") {
		t.Fatalf("unexpected error body %+v", resp)
	}
}

func TestJSONFallback(t *testing.T) {
	handler := JSONFallback(newTestMux(t, memory.NewRepository()))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodDelete, "/api/users", nil))
	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405 got %d", rr.Code)
	}
	if resp := decode[ErrorResponse](t, rr); resp.Type != "method_not_allowed" {
		t.Fatalf("unexpected error body %+v", resp)
	}
	if allow := rr.Header().Get("Allow"); !strings.Contains(allow, http.MethodGet) {
		t.Fatalf("expected Allow header, got %q", allow)
	}

	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/nowhere", nil))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", rr.Code)
	}
	if resp := decode[ErrorResponse](t, rr); resp.Type != "not_found" {
		t.Fatalf("unexpected error body %+v", resp)
	}

	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rr.Code != http.StatusOK || rr.Body.String() != "ok" {
		t.Fatalf("expected healthz passthrough, got %d %q", rr.Code, rr.Body.String())
	}
}
