package db

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"feedback/models"

	"github.com/pkg/errors"
	"gorm.io/gorm"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := Open("sqlite", filepath.Join(t.TempDir(), "test_feedback.db"), false)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := Migrate(conn); err != nil {
		t.Fatalf("Migrate failed: %v", err)
	}
	t.Cleanup(func() { Close(conn) })
	return conn
}

func newUser(username, email string) *models.User {
	return &models.User{
		Username:  username,
		Password:  "not-a-real-hash",
		Email:     email,
		FirstName: "Test",
		LastName:  "User",
	}
}

func TestMigrateCreatesTables(t *testing.T) {
	conn := openTestDB(t)

	for _, table := range []string{"users", "feedback"} {
		if !conn.Migrator().HasTable(table) {
			t.Errorf("Table %s was not created", table)
		}
	}
}

func TestSqliteDSN(t *testing.T) {
	cases := map[string]string{
		"feedback.db":                 "feedback.db?_foreign_keys=on",
		"file:x.db?cache=shared":      "file:x.db?cache=shared&_foreign_keys=on",
		"feedback.db?_foreign_keys=0": "feedback.db?_foreign_keys=0",
	}
	for in, want := range cases {
		if got := sqliteDSN(in); got != want {
			t.Errorf("sqliteDSN(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	if _, err := Open("oracle", "dsn", false); err == nil {
		t.Error("Open accepted an unknown driver")
	}
}

func TestCreateAndLoadUser(t *testing.T) {
	store := NewStore(openTestDB(t))
	ctx := context.Background()

	u := newUser("alice", "alice@x.com")
	if err := store.CreateUser(ctx, u); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	if u.ID == 0 {
		t.Error("CreateUser did not assign an id")
	}

	got, err := store.UserByUsername(ctx, "alice")
	if err != nil {
		t.Fatalf("UserByUsername failed: %v", err)
	}
	if got.Email != "alice@x.com" || got.IsAdmin {
		t.Errorf("Unexpected user loaded: %+v", got)
	}

	if _, err := store.UserByUsername(ctx, "nobody"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestDuplicateUsernameAndEmail(t *testing.T) {
	conn := openTestDB(t)
	store := NewStore(conn)
	ctx := context.Background()

	if err := store.CreateUser(ctx, newUser("alice", "alice@x.com")); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	if err := store.CreateUser(ctx, newUser("alice", "other@x.com")); !errors.Is(err, ErrDuplicate) {
		t.Errorf("Duplicate username: expected ErrDuplicate, got %v", err)
	}
	if err := store.CreateUser(ctx, newUser("bob", "alice@x.com")); !errors.Is(err, ErrDuplicate) {
		t.Errorf("Duplicate email: expected ErrDuplicate, got %v", err)
	}

	var count int64
	conn.Model(&models.User{}).Count(&count)
	if count != 1 {
		t.Errorf("Expected 1 user row, found %d", count)
	}
}

func TestSetAdmin(t *testing.T) {
	store := NewStore(openTestDB(t))
	ctx := context.Background()
	store.CreateUser(ctx, newUser("admin", "admin@admin.com"))

	if err := store.SetAdmin(ctx, "admin", true); err != nil {
		t.Fatalf("SetAdmin failed: %v", err)
	}
	u, _ := store.UserByUsername(ctx, "admin")
	if !u.IsAdmin {
		t.Error("SetAdmin did not persist the admin flag")
	}

	if err := store.SetAdmin(ctx, "ghost", true); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound for unknown user, got %v", err)
	}
}

func TestFeedbackCRUD(t *testing.T) {
	store := NewStore(openTestDB(t))
	ctx := context.Background()
	store.CreateUser(ctx, newUser("alice", "alice@x.com"))

	fb := &models.Feedback{Title: "Hi", Content: "Hello", Username: "alice"}
	if err := store.CreateFeedback(ctx, fb); err != nil {
		t.Fatalf("CreateFeedback failed: %v", err)
	}

	fb.Title = "Updated"
	fb.Content = "New content"
	if err := store.UpdateFeedback(ctx, fb); err != nil {
		t.Fatalf("UpdateFeedback failed: %v", err)
	}

	got, err := store.FeedbackByID(ctx, fb.ID)
	if err != nil {
		t.Fatalf("FeedbackByID failed: %v", err)
	}
	if got.Title != "Updated" || got.Content != "New content" || got.Username != "alice" {
		t.Errorf("Unexpected feedback: %+v", got)
	}

	list, err := store.FeedbackForUser(ctx, "alice")
	if err != nil || len(list) != 1 {
		t.Fatalf("FeedbackForUser = %v, %v", list, err)
	}

	if err := store.DeleteFeedback(ctx, fb.ID); err != nil {
		t.Fatalf("DeleteFeedback failed: %v", err)
	}
	if _, err := store.FeedbackByID(ctx, fb.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound after delete, got %v", err)
	}
	if err := store.DeleteFeedback(ctx, fb.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound deleting twice, got %v", err)
	}
	if err := store.UpdateFeedback(ctx, fb); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound updating a deleted row, got %v", err)
	}
}

func TestFeedbackTitleBound(t *testing.T) {
	conn := openTestDB(t)
	store := NewStore(conn)
	ctx := context.Background()
	store.CreateUser(ctx, newUser("alice", "alice@x.com"))

	exact := &models.Feedback{Title: strings.Repeat("a", models.TitleMaxLength), Content: "ok", Username: "alice"}
	if err := store.CreateFeedback(ctx, exact); err != nil {
		t.Fatalf("Title at the bound was rejected: %v", err)
	}

	long := &models.Feedback{Title: strings.Repeat("a", models.TitleMaxLength+1), Content: "never stored", Username: "alice"}
	if err := store.CreateFeedback(ctx, long); !errors.Is(err, ErrTooLong) {
		t.Fatalf("Expected ErrTooLong, got %v", err)
	}

	var count int64
	conn.Model(&models.Feedback{}).Where("content = ?", "never stored").Count(&count)
	if count != 0 {
		t.Errorf("Over-long feedback was persisted")
	}

	exact.Title = strings.Repeat("b", models.TitleMaxLength+1)
	if err := store.UpdateFeedback(ctx, exact); !errors.Is(err, ErrTooLong) {
		t.Errorf("Expected ErrTooLong on update, got %v", err)
	}
}

func TestDeleteUserCascades(t *testing.T) {
	conn := openTestDB(t)
	store := NewStore(conn)
	ctx := context.Background()

	store.CreateUser(ctx, newUser("alice", "alice@x.com"))
	store.CreateUser(ctx, newUser("bob", "bob@x.com"))
	for _, owner := range []string{"alice", "alice", "bob"} {
		if err := store.CreateFeedback(ctx, &models.Feedback{Title: "t", Content: "c", Username: owner}); err != nil {
			t.Fatalf("CreateFeedback failed: %v", err)
		}
	}

	if err := store.DeleteUser(ctx, "alice"); err != nil {
		t.Fatalf("DeleteUser failed: %v", err)
	}

	var orphans, remaining int64
	conn.Model(&models.Feedback{}).Where("username = ?", "alice").Count(&orphans)
	conn.Model(&models.Feedback{}).Count(&remaining)
	if orphans != 0 {
		t.Errorf("Expected no feedback owned by alice, found %d", orphans)
	}
	if remaining != 1 {
		t.Errorf("Expected bob's feedback to survive, found %d rows", remaining)
	}
	if _, err := store.UserByUsername(ctx, "alice"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected alice to be gone, got %v", err)
	}

	if err := store.DeleteUser(ctx, "alice"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound deleting twice, got %v", err)
	}
}
