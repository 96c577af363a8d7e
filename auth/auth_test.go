package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"feedback/models"

	"github.com/pkg/errors"
)

const testSessionKey = "test-secret-key-12345678901234567890123456789012"

// nextRequest replays the cookies set on w, keeping the last value per name like a browser does.
func nextRequest(w *httptest.ResponseRecorder) *http.Request {
	latest := map[string]*http.Cookie{}
	var order []string
	for _, c := range w.Result().Cookies() {
		if _, seen := latest[c.Name]; !seen {
			order = append(order, c.Name)
		}
		latest[c.Name] = c
	}
	r := httptest.NewRequest("GET", "/", nil)
	for _, name := range order {
		r.AddCookie(latest[name])
	}
	return r
}

func identityOf(s *Sessions, r *http.Request) Identity {
	var got Identity
	s.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = IdentityFrom(r.Context())
	})).ServeHTTP(httptest.NewRecorder(), r)
	return got
}

func TestSessionManagement(t *testing.T) {
	s := NewSessions(NewCookieStore(testSessionKey, false))

	w := httptest.NewRecorder()
	r := httptest.NewRequest("GET", "/", nil)
	if err := s.Login(w, r, &models.User{Username: "alice", IsAdmin: true}); err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	id := identityOf(s, nextRequest(w))
	if id.Username != "alice" {
		t.Errorf("Expected username alice, got %q", id.Username)
	}
	if !id.IsAdmin {
		t.Error("Expected admin flag to survive the round trip")
	}
}

func TestAnonymousIdentity(t *testing.T) {
	s := NewSessions(NewCookieStore(testSessionKey, false))

	id := identityOf(s, httptest.NewRequest("GET", "/", nil))
	if id.Authenticated() || id.IsAdmin {
		t.Errorf("Expected anonymous identity, got %+v", id)
	}

	if got := IdentityFrom(context.Background()); got != (Identity{}) {
		t.Errorf("Expected zero identity from empty context, got %+v", got)
	}
}

func TestTamperedCookieIsAnonymous(t *testing.T) {
	s := NewSessions(NewCookieStore(testSessionKey, false))

	r := httptest.NewRequest("GET", "/", nil)
	r.AddCookie(&http.Cookie{Name: SessionName, Value: "forged-value"})

	if id := identityOf(s, r); id.Authenticated() {
		t.Errorf("Forged cookie produced identity %+v", id)
	}
}

func TestCookieFromOtherKeyIsRejected(t *testing.T) {
	other := NewSessions(NewCookieStore("another-key", false))
	w := httptest.NewRecorder()
	other.Login(w, httptest.NewRequest("GET", "/", nil), &models.User{Username: "mallory"})

	s := NewSessions(NewCookieStore(testSessionKey, false))
	if id := identityOf(s, nextRequest(w)); id.Authenticated() {
		t.Errorf("Cookie signed with another key was accepted: %+v", id)
	}
}

func TestLogoutKeepsFlashes(t *testing.T) {
	s := NewSessions(NewCookieStore(testSessionKey, false))

	w := httptest.NewRecorder()
	s.Login(w, httptest.NewRequest("GET", "/", nil), &models.User{Username: "alice"})

	w2 := httptest.NewRecorder()
	r2 := nextRequest(w)
	if err := s.Logout(w2, r2); err != nil {
		t.Fatalf("Logout failed: %v", err)
	}
	if err := s.AddFlash(w2, r2, "success", "Successfully logged out"); err != nil {
		t.Fatalf("AddFlash failed: %v", err)
	}

	r3 := nextRequest(w2)
	if id := identityOf(s, r3); id.Authenticated() {
		t.Errorf("Identity survived logout: %+v", id)
	}

	w3 := httptest.NewRecorder()
	flashes := s.Flashes(w3, r3)
	if len(flashes) != 1 || flashes[0].Message != "Successfully logged out" || flashes[0].Category != "success" {
		t.Fatalf("Unexpected flashes: %+v", flashes)
	}

	// flashes are one-time
	if again := s.Flashes(httptest.NewRecorder(), nextRequest(w3)); len(again) != 0 {
		t.Errorf("Flashes were shown twice: %+v", again)
	}
}

func TestCookieOptions(t *testing.T) {
	store := NewCookieStore(testSessionKey, true)
	if !store.Options.HttpOnly || !store.Options.Secure || store.Options.SameSite != http.SameSiteLaxMode {
		t.Errorf("Unexpected cookie options: %+v", store.Options)
	}
}

func TestCheckedSessionFollowsStore(t *testing.T) {
	users := &fakeUsers{users: map[string]*models.User{
		"alice": {ID: 1, Username: "alice"},
	}}
	s := NewSessions(NewCookieStore(testSessionKey, false)).CheckAgainst(users)

	w := httptest.NewRecorder()
	if err := s.Login(w, httptest.NewRequest("GET", "/", nil), users.users["alice"]); err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	if id := identityOf(s, nextRequest(w)); id.Username != "alice" || id.IsAdmin {
		t.Fatalf("Unexpected identity %+v", id)
	}

	users.users["alice"].IsAdmin = true
	if id := identityOf(s, nextRequest(w)); !id.IsAdmin {
		t.Error("Expected admin flag to be read from the store")
	}

	// Same username, different account
	users.users["alice"] = &models.User{ID: 2, Username: "alice"}
	if id := identityOf(s, nextRequest(w)); id.Authenticated() {
		t.Errorf("Session of a re-created account still authenticated: %+v", id)
	}

	delete(users.users, "alice")
	if id := identityOf(s, nextRequest(w)); id.Authenticated() {
		t.Errorf("Session of a deleted account still authenticated: %+v", id)
	}
}

func TestCheckedSessionStoreFailure(t *testing.T) {
	users := &fakeUsers{users: map[string]*models.User{
		"alice": {ID: 1, Username: "alice"},
	}}
	s := NewSessions(NewCookieStore(testSessionKey, false)).CheckAgainst(users)

	w := httptest.NewRecorder()
	s.Login(w, httptest.NewRequest("GET", "/", nil), users.users["alice"])

	users.err = errors.New("connection refused")
	if id := identityOf(s, nextRequest(w)); id.Authenticated() {
		t.Errorf("Expected anonymous identity when the store fails, got %+v", id)
	}

	// The session itself is kept for when the store recovers
	users.err = nil
	if id := identityOf(s, nextRequest(w)); id.Username != "alice" {
		t.Errorf("Expected alice after the store recovered, got %+v", id)
	}
}
