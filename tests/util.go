package testutil

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/trezcool/sciencegpt/core"
	"github.com/trezcool/sciencegpt/core/user"
	"github.com/trezcool/sciencegpt/storage/database"
)

// PrepareDB opens a fresh migrated sqlite database in a temporary directory.
func PrepareDB(t *testing.T, conf *core.Config) *sqlx.DB {
	t.Helper()
	conf.Database.URL = "sqlite://" + filepath.Join(t.TempDir(), "test.db")

	ctx := context.Background()
	db, err := database.Open(ctx, conf)
	if err != nil {
		t.Fatalf("PrepareDB() failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err = database.Migrate(ctx, db); err != nil {
		t.Fatalf("PrepareDB() failed: %v", err)
	}
	return db
}

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, uname, email, pwd string,
	roles []string,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	t.Helper()
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		Name:              name,
		Username:          uname,
		Email:             email,
		Grade:             user.DefaultGrade,
		PreferredLanguage: user.DefaultLanguage,
		PreferredSubject:  user.DefaultSubject,
		Roles:             roles,
		IsActive:          isActive,
		CreatedAt:         tstamp,
		UpdatedAt:         tstamp,
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("createUser() failed: %v", err)
		}
	}
	usr, err := repo.Create(context.Background(), usr)
	if err != nil {
		t.Fatalf("createUser() failed: %v", err)
	}
	return usr
}
