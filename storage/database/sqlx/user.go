package sqlxrepos

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/sciencegpt/core"
	"github.com/trezcool/sciencegpt/core/user"
)

const userColumns = `id, username, email, name, grade, preferred_language, preferred_subject, roles,
	is_active, password_hash, total_questions_asked, created_at, updated_at, last_login`

// columns users may be ordered by
var userOrderings = map[string]bool{
	"username":              true,
	"email":                 true,
	"name":                  true,
	"grade":                 true,
	"total_questions_asked": true,
	"created_at":            true,
	"last_login":            true,
}

type userRow struct {
	ID                  string    `db:"id"`
	Username            string    `db:"username"`
	Email               string    `db:"email"`
	Name                string    `db:"name"`
	Grade               int       `db:"grade"`
	PreferredLanguage   string    `db:"preferred_language"`
	PreferredSubject    string    `db:"preferred_subject"`
	Roles               string    `db:"roles"`
	IsActive            bool      `db:"is_active"`
	PasswordHash        string    `db:"password_hash"`
	TotalQuestionsAsked int       `db:"total_questions_asked"`
	CreatedAt           time.Time `db:"created_at"`
	UpdatedAt           time.Time `db:"updated_at"`
	LastLogin           null.Time `db:"last_login"`
}

func toUserRow(usr user.User) userRow {
	return userRow{
		ID:                  usr.ID,
		Username:            usr.Username,
		Email:               usr.Email,
		Name:                usr.Name,
		Grade:               usr.Grade,
		PreferredLanguage:   usr.PreferredLanguage,
		PreferredSubject:    usr.PreferredSubject,
		Roles:               strings.Join(usr.Roles, ","),
		IsActive:            usr.IsActive,
		PasswordHash:        string(usr.PasswordHash),
		TotalQuestionsAsked: usr.TotalQuestionsAsked,
		CreatedAt:           usr.CreatedAt.UTC(),
		UpdatedAt:           usr.UpdatedAt.UTC(),
		LastLogin:           null.NewTime(usr.LastLogin.Time.UTC(), usr.LastLogin.Valid),
	}
}

func (r userRow) user() user.User {
	var roles []string
	if r.Roles != "" {
		roles = strings.Split(r.Roles, ",")
	}
	lastLogin := r.LastLogin
	if lastLogin.Valid {
		lastLogin.Time = lastLogin.Time.UTC()
	}
	return user.User{
		ID:                  r.ID,
		Name:                r.Name,
		Username:            r.Username,
		Email:               r.Email,
		Grade:               r.Grade,
		PreferredLanguage:   r.PreferredLanguage,
		PreferredSubject:    r.PreferredSubject,
		Roles:               roles,
		IsActive:            r.IsActive,
		TotalQuestionsAsked: r.TotalQuestionsAsked,
		PasswordHash:        []byte(r.PasswordHash),
		CreatedAt:           r.CreatedAt.UTC(),
		UpdatedAt:           r.UpdatedAt.UTC(),
		LastLogin:           lastLogin,
	}
}

type userRepository struct {
	db core.DB
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db core.DB) user.Repository {
	return &userRepository{db: db}
}

// trapNoRowsErr maps the sql "no rows" err to user.ErrNotFound
func (repo userRepository) trapNoRowsErr(err error, msg string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return user.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

func (repo userRepository) CheckUniqueness(ctx context.Context, username, email string, excludeIDs ...string) error {
	q := `SELECT username, email FROM users WHERE (LOWER(username) = ? OR LOWER(email) = ?)`
	args := []interface{}{strings.ToLower(username), strings.ToLower(email)}
	if len(excludeIDs) > 0 {
		var err error
		q, args, err = sqlx.In(q+` AND id NOT IN (?)`, append(args, excludeIDs)...)
		if err != nil {
			return errors.Wrap(err, "checking user uniqueness")
		}
	}

	var taken []struct {
		Username string `db:"username"`
		Email    string `db:"email"`
	}
	if err := repo.db.SelectContext(ctx, &taken, repo.db.Rebind(q), args...); err != nil {
		return errors.Wrap(err, "checking user uniqueness")
	}
	for _, u := range taken {
		if strings.EqualFold(u.Username, username) {
			return user.ErrUsernameExists
		}
	}
	if len(taken) > 0 {
		return user.ErrEmailExists
	}
	return nil
}

func (repo userRepository) Create(ctx context.Context, usr user.User) (user.User, error) {
	if usr.ID == "" {
		usr.ID = uuid.NewString()
	}
	row := toUserRow(usr)
	q := `INSERT INTO users (` + userColumns + `) VALUES (:id, :username, :email, :name, :grade,
		:preferred_language, :preferred_subject, :roles, :is_active, :password_hash,
		:total_questions_asked, :created_at, :updated_at, :last_login)`
	if _, err := repo.db.NamedExecContext(ctx, q, row); err != nil {
		return user.User{}, errors.Wrap(err, "inserting user")
	}
	return row.user(), nil
}

func (repo userRepository) GetByID(ctx context.Context, id string) (user.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return user.User{}, user.ErrNotFound
	}
	var row userRow
	q := repo.db.Rebind(`SELECT ` + userColumns + ` FROM users WHERE id = ?`)
	if err := repo.db.GetContext(ctx, &row, q, id); err != nil {
		return user.User{}, repo.trapNoRowsErr(err, "finding user by ID")
	}
	return row.user(), nil
}

func (repo userRepository) GetByUsernameOrEmail(ctx context.Context, username string) (user.User, error) {
	var row userRow
	uname := strings.ToLower(username)
	q := repo.db.Rebind(`SELECT ` + userColumns + ` FROM users WHERE LOWER(username) = ? OR LOWER(email) = ? LIMIT 1`)
	if err := repo.db.GetContext(ctx, &row, q, uname, uname); err != nil {
		return user.User{}, repo.trapNoRowsErr(err, "finding user by username or email")
	}
	return row.user(), nil
}

func (repo userRepository) Query(ctx context.Context, filter user.QueryFilter, ordering []core.DBOrdering) ([]user.User, error) {
	var (
		where []string
		args  []interface{}
	)

	// users with Name, Username or Email matching the search keyword
	if filter.Search != "" {
		val := "%" + strings.ToLower(filter.Search) + "%"
		where = append(where, `(LOWER(name) LIKE ? OR LOWER(username) LIKE ? OR LOWER(email) LIKE ?)`)
		args = append(args, val, val, val)
	}
	// users with any role that starts with any of the provided roles
	if len(filter.Roles) > 0 {
		roleConds := make([]string, 0, len(filter.Roles))
		for _, role := range filter.Roles {
			roleConds = append(roleConds, `(',' || roles) LIKE ?`)
			args = append(args, "%,"+role+"%")
		}
		where = append(where, "("+strings.Join(roleConds, " OR ")+")")
	}
	if filter.IsActive != nil {
		where = append(where, `is_active = ?`)
		args = append(args, *filter.IsActive)
	}
	if filter.Grade > 0 {
		where = append(where, `grade = ?`)
		args = append(args, filter.Grade)
	}

	q := `SELECT ` + userColumns + ` FROM users`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	orderList := make([]string, 0, len(ordering))
	for _, ord := range ordering {
		if userOrderings[ord.Field] {
			orderList = append(orderList, ord.String())
		}
	}
	if len(orderList) == 0 {
		orderList = append(orderList, "created_at DESC")
	}
	q += ` ORDER BY ` + strings.Join(orderList, ", ")

	var rows []userRow
	if err := repo.db.SelectContext(ctx, &rows, repo.db.Rebind(q), args...); err != nil {
		return nil, errors.Wrap(err, "querying users")
	}
	users := make([]user.User, 0, len(rows))
	for _, r := range rows {
		users = append(users, r.user())
	}
	return users, nil
}

func (repo userRepository) Update(ctx context.Context, usr user.User) (user.User, error) {
	row := toUserRow(usr)
	q := `UPDATE users SET username = :username, email = :email, name = :name, grade = :grade,
		preferred_language = :preferred_language, preferred_subject = :preferred_subject, roles = :roles,
		is_active = :is_active, password_hash = :password_hash, updated_at = :updated_at, last_login = :last_login
		WHERE id = :id`
	res, err := repo.db.NamedExecContext(ctx, q, row)
	if err != nil {
		return user.User{}, errors.Wrap(err, "updating user")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return user.User{}, user.ErrNotFound
	}
	// total_questions_asked is only written by the chat session repository
	return repo.GetByID(ctx, usr.ID)
}
