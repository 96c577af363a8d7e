package main

import (
	"context"

	"feedback/auth"
	"feedback/db"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

type demoUser struct {
	username, password  string
	firstName, lastName string
	email               string
	admin               bool
}

var demoUsers = []demoUser{
	{"test1", "test1", "tester", "testerson", "test@test.com", false},
	{"admin", "admin", "Administrator", "Admin", "admin@admin.com", true},
}

// seedDemoUsers creates the demo accounts. Existing accounts are left alone
// apart from the admin flag. Admin promotion is only possible from here.
func seedDemoUsers(ctx context.Context, store db.Repository, svc *auth.Service) error {
	for _, d := range demoUsers {
		user, err := svc.Register(d.username, d.password, d.firstName, d.lastName, d.email)
		if err != nil {
			return err
		}
		err = store.CreateUser(ctx, user)
		switch {
		case errors.Is(err, db.ErrDuplicate):
			log.WithFields(log.Fields{"user": d.username}).Info("demo user already exists")
		case err != nil:
			return errors.Wrapf(err, "creating %s", d.username)
		default:
			log.WithFields(log.Fields{"user": d.username}).Info("demo user created")
		}

		if d.admin {
			if err := store.SetAdmin(ctx, d.username, true); err != nil {
				return errors.Wrapf(err, "promoting %s", d.username)
			}
		}
	}
	return nil
}
