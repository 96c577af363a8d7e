package auth

import (
	"context"

	"feedback/crypto"
	"feedback/db"
	"feedback/models"

	"github.com/pkg/errors"
)

// ErrInvalidCredentials is returned for an unknown username and for a wrong password alike.
var ErrInvalidCredentials = errors.New("invalid username/password")

type UserFinder interface {
	UserByUsername(ctx context.Context, username string) (*models.User, error)
}

// Service registers and authenticates users.
type Service struct {
	users  UserFinder
	hasher crypto.Hasher
	// compared against when the username is unknown, so both failures cost one hash
	dummyDigest string
}

func NewService(users UserFinder, hasher crypto.Hasher) (*Service, error) {
	dummy, err := hasher.Hash("dummy-password-for-timing")
	if err != nil {
		return nil, errors.Wrap(err, "computing dummy digest")
	}
	return &Service{users: users, hasher: hasher, dummyDigest: dummy}, nil
}

// Register builds a user with a hashed password. Persisting it is the caller's job.
func (s *Service) Register(username, password, firstName, lastName, email string) (*models.User, error) {
	digest, err := s.hasher.Hash(password)
	if err != nil {
		return nil, errors.Wrap(err, "hashing password")
	}
	return &models.User{
		Username:  username,
		Password:  digest,
		FirstName: firstName,
		LastName:  lastName,
		Email:     email,
	}, nil
}

func (s *Service) Authenticate(ctx context.Context, username, password string) (*models.User, error) {
	user, err := s.users.UserByUsername(ctx, username)
	if err != nil {
		if !errors.Is(err, db.ErrNotFound) {
			return nil, err
		}
		s.hasher.Verify(s.dummyDigest, password)
		return nil, ErrInvalidCredentials
	}

	if !crypto.Verify(user.Password, password) {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}
