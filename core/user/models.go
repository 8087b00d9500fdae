package user

import (
	"context"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"
	"golang.org/x/crypto/bcrypt"

	"github.com/trezcool/sciencegpt/core"
)

// Roles
const (
	// Admin
	RoleAdmin      = "admin:"
	RoleAdminOwner = "admin:owner"

	// Teacher
	RoleTeacher = "teacher:"

	// Student
	RoleStudent = "student:"
)

// Defaults applied to new student profiles.
const (
	DefaultGrade    = 6
	DefaultLanguage = "English"
	DefaultSubject  = core.SubjectPhysics
)

var (
	AdminRoles   = []string{RoleAdmin, RoleAdminOwner}
	TeacherRoles = []string{RoleTeacher}
	StudentRoles = []string{RoleStudent}
	AllRoles     = getAllRoles()

	rolePriorities = map[string]int{
		// Admins: 30 - 21
		RoleAdminOwner: 30,
		RoleAdmin:      21,

		// Teachers: 20 - 11
		RoleTeacher: 11,

		// Students: 10 - 1
		RoleStudent: 1,
	}

	Roles = []Role{
		{Name: "Student", Value: RoleStudent},
		{Name: "Teacher", Value: RoleTeacher},
		{Name: "Admin", Value: RoleAdmin},
		{Name: "Admin Owner", Value: RoleAdminOwner},
	}
)

func getAllRoles() []string {
	all := make([]string, 0, 4)
	all = append(all, AdminRoles...)
	all = append(all, TeacherRoles...)
	all = append(all, StudentRoles...)
	return all
}

func RolePriority(role string) int {
	return rolePriorities[role]
}

func MaxRolePriority(roles []string) int {
	var max int
	for _, role := range roles {
		if RolePriority(role) > max {
			max = RolePriority(role)
		}
	}
	return max
}

type Role struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// User is a student, teacher or admin of the tutoring platform.
type User struct {
	ID                  string    `json:"id"`
	Name                string    `json:"name"`
	Username            string    `json:"username"`
	Email               string    `json:"email"`
	Grade               int       `json:"grade"`
	PreferredLanguage   string    `json:"preferred_language"`
	PreferredSubject    string    `json:"preferred_subject"`
	Roles               []string  `json:"roles"`
	IsActive            bool      `json:"is_active"`
	TotalQuestionsAsked int       `json:"total_questions_asked"`
	PasswordHash        []byte    `json:"-"`
	CreatedAt           time.Time `json:"created_at"` // UTC
	UpdatedAt           time.Time `json:"updated_at"` // UTC
	LastLogin           null.Time `json:"last_login"` // UTC
}

func (u *User) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

func (u *User) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(pwd))
}

func (u *User) RoleStartsWith(prefix string) bool {
	for _, role := range u.Roles {
		if strings.HasPrefix(role, prefix) {
			return true
		}
	}
	return false
}

func (u *User) IsAdmin() bool   { return u.RoleStartsWith(RoleAdmin) }
func (u *User) IsTeacher() bool { return u.RoleStartsWith(RoleTeacher) }
func (u *User) IsStudent() bool { return u.RoleStartsWith(RoleStudent) }

// NewUser contains information needed to create a new User.
type NewUser struct {
	Name              string   `json:"name" validate:"required,max=100"`
	Username          string   `json:"username" validate:"required,min=3,max=50,alphanum_"`
	Email             string   `json:"email" validate:"required,email,max=100"`
	Password          string   `json:"password" validate:"required"`
	PasswordConfirm   string   `json:"password_confirm" validate:"required,eqfield=Password"`
	Grade             int      `json:"grade" validate:"omitempty,min=1,max=12"`
	PreferredLanguage string   `json:"preferred_language" validate:"omitempty,max=20"`
	PreferredSubject  string   `json:"preferred_subject" validate:"omitempty,subject"`
	Roles             []string `json:"roles" validate:"omitempty,allroles"`
	Notify            bool     `json:"notify"` // email the new user
}

func (nu *NewUser) clean() {
	nu.Name = core.CleanString(nu.Name)
	nu.Username = core.CleanString(nu.Username, true /* lower */)
	nu.Email = core.CleanString(nu.Email, true /* lower */)
	nu.PreferredLanguage = core.CleanString(nu.PreferredLanguage)
	if nu.Grade == 0 {
		nu.Grade = DefaultGrade
	}
	if nu.PreferredLanguage == "" {
		nu.PreferredLanguage = DefaultLanguage
	}
	if subj := core.NormalizeSubject(nu.PreferredSubject); subj != "" {
		nu.PreferredSubject = subj
	} else if core.CleanString(nu.PreferredSubject) == "" {
		nu.PreferredSubject = DefaultSubject
	}
	if len(nu.Roles) == 0 {
		nu.Roles = []string{RoleStudent}
	}
}

// Validate cleans and validates nu, then checks that the username and email are not taken.
func (nu *NewUser) Validate(ctx context.Context, validate *validator.Validate, svc Service) error {
	nu.clean()
	if err := validate.Struct(nu); err != nil {
		return err
	}
	return svc.CheckUniqueness(ctx, nu.Username, nu.Email)
}

// UpdateProfile holds the fields a user may change on their own profile.
type UpdateProfile struct {
	Name              *string `json:"name" validate:"omitempty,min=1,max=100"`
	Grade             *int    `json:"grade" validate:"omitempty,min=1,max=12"`
	PreferredLanguage *string `json:"preferred_language" validate:"omitempty,min=1,max=20"`
	PreferredSubject  *string `json:"preferred_subject" validate:"omitempty,subject"`
}

func (up *UpdateProfile) Validate(validate *validator.Validate) error {
	if up.Name != nil {
		name := core.CleanString(*up.Name)
		up.Name = &name
	}
	if up.PreferredLanguage != nil {
		lang := core.CleanString(*up.PreferredLanguage)
		up.PreferredLanguage = &lang
	}
	if err := validate.Struct(up); err != nil {
		return err
	}
	if up.PreferredSubject != nil {
		subj := core.NormalizeSubject(*up.PreferredSubject)
		up.PreferredSubject = &subj
	}
	return nil
}

func (up UpdateProfile) apply(usr *User) {
	if up.Name != nil {
		usr.Name = *up.Name
	}
	if up.Grade != nil {
		usr.Grade = *up.Grade
	}
	if up.PreferredLanguage != nil {
		usr.PreferredLanguage = *up.PreferredLanguage
	}
	if up.PreferredSubject != nil {
		usr.PreferredSubject = *up.PreferredSubject
	}
}

type QueryFilter struct {
	Search   string   `query:"search"`
	Roles    []string `query:"role"`
	IsActive *bool    `query:"is_active"`
	Grade    int      `query:"grade"`
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
}
