package auth

import (
	"context"
	"crypto/sha256"
	"encoding/gob"
	"net/http"

	"feedback/db"
	"feedback/models"

	"github.com/gorilla/sessions"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const SessionName = "feedback-session"

const (
	keyUserID   = "user_id"
	keyUsername = "username"
	keyIsAdmin  = "is_admin"
	keyFlashes  = "flashes"
)

// Flash is a one-time notice shown on the next rendered page.
type Flash struct {
	Category string // "success" or "danger"
	Message  string
}

func init() {
	gob.Register([]Flash{})
}

// Identity is the authenticated caller of a request. The zero value is anonymous.
type Identity struct {
	Username string
	IsAdmin  bool
}

func (i Identity) Authenticated() bool {
	return i.Username != ""
}

type identityKey struct{}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

func IdentityFrom(ctx context.Context) Identity {
	id, _ := ctx.Value(identityKey{}).(Identity)
	return id
}

func cookieOptions(secure bool) *sessions.Options {
	return &sessions.Options{
		Path:     "/",
		MaxAge:   86400 * 7, // 7 days
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// NewCookieStore keeps the whole session, signed and encrypted, in the client cookie.
func NewCookieStore(sessionKey string, secure bool) *sessions.CookieStore {
	// Auth key for signing (HMAC), encryption key for content encryption (AES)
	store := sessions.NewCookieStore(sessionKeyDigest(sessionKey, "auth"), sessionKeyDigest(sessionKey, "encryption"))
	store.Options = cookieOptions(secure)
	return store
}

// sessionKeyDigest derives a 32-byte key for one purpose from the configured session key.
func sessionKeyDigest(sessionKey, purpose string) []byte {
	sum := sha256.Sum256([]byte(sessionKey + purpose))
	return sum[:]
}

// Sessions reads and writes the session identity and flash notices.
type Sessions struct {
	store sessions.Store
	users UserFinder
}

func NewSessions(store sessions.Store) *Sessions {
	return &Sessions{store: store}
}

// CheckAgainst makes Middleware confirm every session identity with users.
// Sessions of deleted or re-created accounts become anonymous and the admin
// flag is taken from the stored user instead of the session.
func (s *Sessions) CheckAgainst(users UserFinder) *Sessions {
	s.users = users
	return s
}

// idRegenerator is implemented by stores that keep session data under an id.
type idRegenerator interface {
	RegenerateID(r *http.Request, session *sessions.Session) error
}

func (s *Sessions) session(r *http.Request) *sessions.Session {
	session, err := s.store.Get(r, SessionName)
	if err != nil {
		// Tampered, expired or unreadable cookie: continue with a fresh session.
		log.WithFields(log.Fields{"error": err}).Debug("discarding unreadable session")
	}
	return session
}

// Middleware resolves the session into an Identity stored on the request context.
func (s *Sessions) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		session := s.session(r)

		var id Identity
		if username, ok := session.Values[keyUsername].(string); ok {
			id.Username = username
			id.IsAdmin, _ = session.Values[keyIsAdmin].(bool)
		}
		if id.Authenticated() && s.users != nil {
			id = s.confirm(w, r, session, id)
		}

		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
	})
}

func (s *Sessions) confirm(w http.ResponseWriter, r *http.Request, session *sessions.Session, id Identity) Identity {
	user, err := s.users.UserByUsername(r.Context(), id.Username)
	if err != nil && !errors.Is(err, db.ErrNotFound) {
		log.WithFields(log.Fields{"user": id.Username, "error": err}).Error("confirming session identity")
		return Identity{}
	}

	userID, _ := session.Values[keyUserID].(uint)
	if err != nil || user.ID != userID {
		log.WithFields(log.Fields{"user": id.Username}).Info("dropping stale session identity")
		clearIdentity(session)
		if err := session.Save(r, w); err != nil {
			log.WithFields(log.Fields{"error": err}).Error("saving session")
		}
		return Identity{}
	}

	id.IsAdmin = user.IsAdmin
	return id
}

func clearIdentity(session *sessions.Session) {
	delete(session.Values, keyUserID)
	delete(session.Values, keyUsername)
	delete(session.Values, keyIsAdmin)
}

// Login stores the identity under a fresh session id when the store keeps one.
func (s *Sessions) Login(w http.ResponseWriter, r *http.Request, user *models.User) error {
	session := s.session(r)
	if regen, ok := s.store.(idRegenerator); ok {
		if err := regen.RegenerateID(r, session); err != nil {
			return err
		}
	}
	session.Values[keyUserID] = user.ID
	session.Values[keyUsername] = user.Username
	session.Values[keyIsAdmin] = user.IsAdmin
	return session.Save(r, w)
}

// Logout drops the identity but keeps the session so pending flashes survive.
func (s *Sessions) Logout(w http.ResponseWriter, r *http.Request) error {
	session := s.session(r)
	clearIdentity(session)
	return session.Save(r, w)
}

func (s *Sessions) AddFlash(w http.ResponseWriter, r *http.Request, category, message string) error {
	session := s.session(r)
	flashes, _ := session.Values[keyFlashes].([]Flash)
	session.Values[keyFlashes] = append(flashes, Flash{Category: category, Message: message})
	return session.Save(r, w)
}

// Flashes returns and clears the pending notices. It must run before the response body is written.
func (s *Sessions) Flashes(w http.ResponseWriter, r *http.Request) []Flash {
	session := s.session(r)
	flashes, _ := session.Values[keyFlashes].([]Flash)
	if len(flashes) == 0 {
		return nil
	}
	delete(session.Values, keyFlashes)
	if err := session.Save(r, w); err != nil {
		log.WithFields(log.Fields{"error": err}).Error("saving session after reading flashes")
	}
	return flashes
}
