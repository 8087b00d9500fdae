package user

import (
	"context"
	"fmt"
	"net/mail"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/sciencegpt/core"
)

var (
	// errors
	ErrNotFound       = errors.New("user not found")
	ErrEmailExists    = errors.New("a user with this email already exists")
	ErrUsernameExists = errors.New("a user with this username already exists")
)

type (
	Repository interface {
		// CheckUniqueness returns ErrUsernameExists or ErrEmailExists when another user
		// (not in excludeIDs) already uses username or email.
		CheckUniqueness(ctx context.Context, username, email string, excludeIDs ...string) error
		Create(ctx context.Context, usr User) (User, error)
		GetByID(ctx context.Context, id string) (User, error)
		// GetByUsernameOrEmail does a case-insensitive match on User.Username or User.Email.
		GetByUsernameOrEmail(ctx context.Context, username string) (User, error)
		// Query applies AND operation on available QueryFilter fields.
		Query(ctx context.Context, filter QueryFilter, ordering []core.DBOrdering) ([]User, error)
		Update(ctx context.Context, usr User) (User, error)
	}

	Service interface {
		CheckUniqueness(ctx context.Context, uname, email string, exclUsers ...User) error
		Create(ctx context.Context, nu NewUser) (User, error)
		GetByID(ctx context.Context, id string) (User, error)
		GetByUsernameOrEmail(ctx context.Context, uname string) (User, error)
		Query(ctx context.Context, filter QueryFilter, ordering []core.DBOrdering) ([]User, error)
		SetLastLogin(ctx context.Context, usr User) (User, error)
		SetPassword(ctx context.Context, usr User, pwd string) (User, error)
		UpdateProfile(ctx context.Context, usr User, up UpdateProfile) (User, error)
	}

	service struct {
		repo    Repository
		mailSvc core.EmailService
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, mailSvc core.EmailService) Service {
	return &service{repo: repo, mailSvc: mailSvc}
}

func (svc *service) CheckUniqueness(ctx context.Context, uname, email string, exclUsers ...User) error {
	ids := make([]string, 0, len(exclUsers))
	for _, u := range exclUsers {
		ids = append(ids, u.ID)
	}
	if err := svc.repo.CheckUniqueness(ctx, uname, email, ids...); err != nil {
		var field string
		switch errors.Cause(err) {
		case ErrUsernameExists:
			field = "username"
		case ErrEmailExists:
			field = "email"
		default:
			return errors.Wrap(err, "checking uniqueness")
		}
		return core.NewValidationError(err, core.FieldError{Field: field, Error: errors.Cause(err).Error()})
	}
	return nil
}

// Create persists a new User. nu is expected to be validated.
func (svc *service) Create(ctx context.Context, nu NewUser) (User, error) {
	now := time.Now().UTC()
	usr := User{
		ID:                uuid.NewString(),
		Name:              nu.Name,
		Username:          nu.Username,
		Email:             nu.Email,
		Grade:             nu.Grade,
		PreferredLanguage: nu.PreferredLanguage,
		PreferredSubject:  nu.PreferredSubject,
		Roles:             nu.Roles,
		IsActive:          true,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := usr.SetPassword(nu.Password); err != nil {
		return User{}, errors.Wrap(err, "hashing password")
	}
	usr, err := svc.repo.Create(ctx, usr)
	if err != nil {
		return User{}, errors.Wrap(err, "creating user")
	}
	if nu.Notify {
		svc.sendAccountCreatedMail(usr)
	}
	return usr, nil
}

func (svc *service) GetByID(ctx context.Context, id string) (User, error) {
	return svc.repo.GetByID(ctx, id)
}

func (svc *service) GetByUsernameOrEmail(ctx context.Context, uname string) (User, error) {
	return svc.repo.GetByUsernameOrEmail(ctx, core.CleanString(uname, true /* lower */))
}

func (svc *service) Query(ctx context.Context, filter QueryFilter, ordering []core.DBOrdering) ([]User, error) {
	return svc.repo.Query(ctx, filter, ordering)
}

func (svc *service) SetLastLogin(ctx context.Context, usr User) (User, error) {
	now := time.Now().UTC()
	usr.LastLogin = null.TimeFrom(now)
	usr.UpdatedAt = now
	return svc.repo.Update(ctx, usr)
}

func (svc *service) SetPassword(ctx context.Context, usr User, pwd string) (User, error) {
	if err := usr.SetPassword(pwd); err != nil {
		return User{}, errors.Wrap(err, "hashing password")
	}
	usr.IsActive = true
	usr.UpdatedAt = time.Now().UTC()
	return svc.repo.Update(ctx, usr)
}

// UpdateProfile applies up to usr. up is expected to be validated.
func (svc *service) UpdateProfile(ctx context.Context, usr User, up UpdateProfile) (User, error) {
	up.apply(&usr)
	usr.UpdatedAt = time.Now().UTC()
	return svc.repo.Update(ctx, usr)
}

func (svc *service) sendAccountCreatedMail(usr User) {
	if svc.mailSvc == nil || usr.Email == "" {
		return
	}
	msg := &core.EmailMessage{
		To:           []mail.Address{{Name: usr.Name, Address: usr.Email}},
		Subject:      fmt.Sprintf("Welcome, %s!", usr.Name),
		TemplateName: "account_created",
		TemplateData: map[string]string{"Name": usr.Name, "Username": usr.Username},
	}
	svc.mailSvc.SendMessages(msg)
}
