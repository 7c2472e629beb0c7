package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dukerupert/chorewheel/internal/auth"
	"github.com/dukerupert/chorewheel/internal/database"
	"github.com/dukerupert/chorewheel/internal/model"
	"github.com/dukerupert/chorewheel/internal/store"
)

func setupAuth(t *testing.T) (*store.UserStore, *store.SessionStore, http.Handler, *auth.Context) {
	t.Helper()

	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	users := store.NewUserStore(db)
	sessions := store.NewSessionStore(db)

	var seen auth.Context
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ac, ok := auth.FromContext(r.Context())
		if !ok {
			t.Error("auth context missing in protected handler")
		}
		seen = ac
		w.WriteHeader(http.StatusOK)
	})
	return users, sessions, RequireAuth(sessions, users)(inner), &seen
}

func TestRequireAuthWithCookie(t *testing.T) {
	users, sessions, handler, seen := setupAuth(t)

	u, err := users.Create("mom", "Mom", "hash", model.RoleParent, nil)
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	sess, err := sessions.Create(u.ID, time.Hour)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}

	req := httptest.NewRequest("GET", "/api/chores", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: sess.Token})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if seen.UserID != u.ID || !seen.IsParent() {
		t.Errorf("auth context = %+v, want parent %d", seen, u.ID)
	}
}

func TestRequireAuthWithBearerToken(t *testing.T) {
	users, sessions, handler, seen := setupAuth(t)

	u, err := users.Create("ada", "Ada", "hash", model.RoleChild, nil)
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	sess, err := sessions.Create(u.ID, time.Hour)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}

	req := httptest.NewRequest("GET", "/api/assignments", nil)
	req.Header.Set("Authorization", "Bearer "+sess.Token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !seen.IsChild() {
		t.Errorf("auth context = %+v, want child", seen)
	}
}

func TestRequireAuthRejections(t *testing.T) {
	users, sessions, handler, _ := setupAuth(t)

	u, err := users.Create("ben", "Ben", "hash", model.RoleChild, nil)
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	expired, err := sessions.Create(u.ID, -time.Minute)
	if err != nil {
		t.Fatalf("create expired session: %v", err)
	}

	cases := []struct {
		name  string
		setup func(*http.Request)
	}{
		{"no credentials", func(r *http.Request) {}},
		{"unknown token", func(r *http.Request) {
			r.Header.Set("Authorization", "Bearer nope")
		}},
		{"expired session", func(r *http.Request) {
			r.AddCookie(&http.Cookie{Name: SessionCookieName, Value: expired.Token})
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/api/chores", nil)
			tc.setup(req)
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			if rec.Code != http.StatusUnauthorized {
				t.Errorf("status = %d, want 401", rec.Code)
			}
		})
	}
}

func TestRequireAuthInactiveUser(t *testing.T) {
	users, sessions, handler, _ := setupAuth(t)

	u, err := users.Create("ada", "Ada", "hash", model.RoleChild, nil)
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	sess, err := sessions.Create(u.ID, time.Hour)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	if err := users.SetActive(u.ID, false); err != nil {
		t.Fatalf("deactivate: %v", err)
	}

	req := httptest.NewRequest("GET", "/api/chores", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: sess.Token})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401 for deactivated user", rec.Code)
	}
}

func TestRequireParent(t *testing.T) {
	handler := RequireParent(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("POST", "/api/chores", nil)
	req = req.WithContext(auth.WithContext(req.Context(), auth.Context{UserID: 1, Role: model.RoleChild}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Errorf("child status = %d, want 403", rec.Code)
	}

	req = httptest.NewRequest("POST", "/api/chores", nil)
	req = req.WithContext(auth.WithContext(req.Context(), auth.Context{UserID: 2, Role: model.RoleParent}))
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("parent status = %d, want 200", rec.Code)
	}
}
