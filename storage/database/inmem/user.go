package inmemdb

import (
	"cmp"
	"context"
	"slices"
	"strings"

	"github.com/google/uuid"

	"github.com/trezcool/sciencegpt/core"
	"github.com/trezcool/sciencegpt/core/user"
)

type userRepository struct {
	db *userTable
}

var _ user.Repository = (*userRepository)(nil)

func NewUserRepository(db *DB) user.Repository {
	return &userRepository{db: db.user}
}

// query returns copies of every stored user. The caller holds the lock.
func (repo *userRepository) query() []user.User {
	users := make([]user.User, 0, len(repo.db.table))
	for _, u := range repo.db.table {
		users = append(users, *u)
	}
	return users
}

func (repo *userRepository) CheckUniqueness(_ context.Context, username, email string, excludeIDs ...string) error {
	repo.db.RLock()
	defer repo.db.RUnlock()

	emailTaken := false
	for _, usr := range repo.query() {
		if slices.Contains(excludeIDs, usr.ID) {
			continue
		}
		if strings.EqualFold(usr.Username, username) {
			return user.ErrUsernameExists
		}
		if strings.EqualFold(usr.Email, email) {
			emailTaken = true
		}
	}
	if emailTaken {
		return user.ErrEmailExists
	}
	return nil
}

func (repo *userRepository) Create(_ context.Context, usr user.User) (user.User, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if usr.ID == "" {
		usr.ID = uuid.NewString()
	}
	usr.Roles = slices.Clone(usr.Roles)
	repo.db.table[usr.ID] = &usr
	return usr, nil
}

func (repo *userRepository) GetByID(_ context.Context, id string) (user.User, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if usr, ok := repo.db.table[id]; ok {
		return *usr, nil
	}
	return user.User{}, user.ErrNotFound
}

func (repo *userRepository) GetByUsernameOrEmail(_ context.Context, username string) (user.User, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, usr := range repo.query() {
		if strings.EqualFold(usr.Username, username) || strings.EqualFold(usr.Email, username) {
			return usr, nil
		}
	}
	return user.User{}, user.ErrNotFound
}

func (repo *userRepository) Query(_ context.Context, filter user.QueryFilter, ordering []core.DBOrdering) ([]user.User, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	search := strings.ToLower(filter.Search)
	users := slices.DeleteFunc(repo.query(), func(u user.User) bool {
		if search != "" && !strings.Contains(strings.ToLower(u.Name+"\x00"+u.Username+"\x00"+u.Email), search) {
			return true
		}
		if len(filter.Roles) > 0 && !slices.ContainsFunc(filter.Roles, u.RoleStartsWith) {
			return true
		}
		if filter.IsActive != nil && u.IsActive != *filter.IsActive {
			return true
		}
		return filter.Grade > 0 && u.Grade != filter.Grade
	})

	if len(ordering) == 0 {
		ordering = []core.DBOrdering{{Field: "created_at"}}
	}
	slices.SortStableFunc(users, func(a, b user.User) int {
		for _, ord := range ordering {
			var c int
			switch ord.Field {
			case "username":
				c = strings.Compare(a.Username, b.Username)
			case "email":
				c = strings.Compare(a.Email, b.Email)
			case "name":
				c = strings.Compare(a.Name, b.Name)
			case "grade":
				c = cmp.Compare(a.Grade, b.Grade)
			case "total_questions_asked":
				c = cmp.Compare(a.TotalQuestionsAsked, b.TotalQuestionsAsked)
			case "created_at":
				c = a.CreatedAt.Compare(b.CreatedAt)
			case "last_login":
				c = a.LastLogin.Time.Compare(b.LastLogin.Time)
			}
			if !ord.Ascending {
				c = -c
			}
			if c != 0 {
				return c
			}
		}
		return 0
	})
	return users, nil
}

func (repo *userRepository) Update(_ context.Context, usr user.User) (user.User, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	orig, ok := repo.db.table[usr.ID]
	if !ok {
		return user.User{}, user.ErrNotFound
	}
	// total_questions_asked is owned by the chat sessions
	usr.TotalQuestionsAsked = orig.TotalQuestionsAsked
	usr.CreatedAt = orig.CreatedAt
	usr.Roles = slices.Clone(usr.Roles)
	repo.db.table[usr.ID] = &usr
	return usr, nil
}
