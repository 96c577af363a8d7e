package auth

import (
	"context"
	"encoding/base32"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/securecookie"
	"github.com/gorilla/sessions"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

const defaultRedisTTL = 24 * time.Hour

// RedisStore is a sessions.Store that keeps session values server-side in redis.
// The client only holds a signed, opaque session id.
type RedisStore struct {
	client    redis.UniversalClient
	Codecs    []securecookie.Codec
	Options   *sessions.Options
	KeyPrefix string

	serializer securecookie.GobEncoder
}

var _ sessions.Store = (*RedisStore)(nil)

func NewRedisStore(client redis.UniversalClient, secure bool, keyPairs ...[]byte) *RedisStore {
	return &RedisStore{
		client:    client,
		Codecs:    securecookie.CodecsFromPairs(keyPairs...),
		Options:   cookieOptions(secure),
		KeyPrefix: "session:",
	}
}

// NewRedisStoreFromKey derives the cookie signing key the same way NewCookieStore does.
func NewRedisStoreFromKey(client redis.UniversalClient, sessionKey string, secure bool) *RedisStore {
	authKey := sessionKeyDigest(sessionKey, "auth")
	return NewRedisStore(client, secure, authKey)
}

func (s *RedisStore) Get(r *http.Request, name string) (*sessions.Session, error) {
	return sessions.GetRegistry(r).Get(s, name)
}

func (s *RedisStore) New(r *http.Request, name string) (*sessions.Session, error) {
	session := sessions.NewSession(s, name)
	opts := *s.Options
	session.Options = &opts
	session.IsNew = true

	cookie, err := r.Cookie(name)
	if err != nil {
		return session, nil
	}
	if err := securecookie.DecodeMulti(name, cookie.Value, &session.ID, s.Codecs...); err != nil {
		session.ID = ""
		return session, err
	}

	found, err := s.load(r.Context(), session)
	if err != nil {
		return session, err
	}
	if !found {
		// expired server-side; issue a new id on the next save
		session.ID = ""
		return session, nil
	}
	session.IsNew = false
	return session, nil
}

func (s *RedisStore) Save(r *http.Request, w http.ResponseWriter, session *sessions.Session) error {
	ctx := r.Context()

	if session.Options.MaxAge < 0 {
		if session.ID != "" {
			if err := s.client.Del(ctx, s.key(session.ID)).Err(); err != nil {
				return errors.Wrap(err, "deleting session")
			}
		}
		http.SetCookie(w, sessions.NewCookie(session.Name(), "", session.Options))
		return nil
	}

	if session.ID == "" {
		session.ID = strings.TrimRight(base32.StdEncoding.EncodeToString(securecookie.GenerateRandomKey(32)), "=")
	}

	data, err := s.serializer.Serialize(session.Values)
	if err != nil {
		return errors.Wrap(err, "encoding session values")
	}

	ttl := time.Duration(session.Options.MaxAge) * time.Second
	if ttl == 0 {
		ttl = defaultRedisTTL
	}
	if err := s.client.Set(ctx, s.key(session.ID), data, ttl).Err(); err != nil {
		return errors.Wrap(err, "storing session")
	}

	encoded, err := securecookie.EncodeMulti(session.Name(), session.ID, s.Codecs...)
	if err != nil {
		return errors.Wrap(err, "encoding session cookie")
	}
	http.SetCookie(w, sessions.NewCookie(session.Name(), encoded, session.Options))
	return nil
}

// RegenerateID drops the stored copy of session. The next Save writes its
// values under a new id, so an id issued before login is useless after it.
func (s *RedisStore) RegenerateID(r *http.Request, session *sessions.Session) error {
	if session.ID == "" {
		return nil
	}
	if err := s.client.Del(r.Context(), s.key(session.ID)).Err(); err != nil {
		return errors.Wrap(err, "deleting session")
	}
	session.ID = ""
	return nil
}

func (s *RedisStore) load(ctx context.Context, session *sessions.Session) (bool, error) {
	data, err := s.client.Get(ctx, s.key(session.ID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrap(err, "loading session")
	}
	if err := s.serializer.Deserialize(data, &session.Values); err != nil {
		return false, errors.Wrap(err, "decoding session values")
	}
	return true, nil
}

func (s *RedisStore) key(id string) string {
	return s.KeyPrefix + id
}
