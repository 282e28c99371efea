package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"tweetyard/domain"
	"tweetyard/form"
)

const (
	usernameTaken = "A user with that username already exists."
	invalidLogin  = "Please enter a correct username and password. Note that both fields may be case-sensitive."
)

type UserRepository interface {
	Create(ctx context.Context, u *domain.User, passwordHash []byte) error
	GetByID(ctx context.Context, id string) (*domain.User, error)
	Exists(ctx context.Context, username string) (bool, error)
	Credentials(ctx context.Context, username string) (*domain.User, []byte, error)
}

type Accounts struct {
	repo       UserRepository
	validator  *form.Validator
	bcryptCost int
	log        logrus.FieldLogger
}

func NewAccounts(repo UserRepository, v *form.Validator, bcryptCost int, log logrus.FieldLogger) *Accounts {
	return &Accounts{repo: repo, validator: v, bcryptCost: bcryptCost, log: log}
}

// Register creates an account. Rule violations and a taken username come back
// as *form.ValidationError.
func (a *Accounts) Register(ctx context.Context, in form.Registration) (*domain.User, error) {
	if err := a.validator.Registration(in); err != nil {
		return nil, err
	}

	taken, err := a.repo.Exists(ctx, in.Username)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, form.Invalid("username", usernameTaken)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password1), a.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	u := &domain.User{
		ID:        uuid.NewString(),
		Username:  in.Username,
		CreatedAt: time.Now().UTC(),
	}
	if err := a.repo.Create(ctx, u, hash); err != nil {
		if errors.Is(err, domain.ErrDuplicate) {
			return nil, form.Invalid("username", usernameTaken)
		}
		return nil, err
	}

	a.log.WithFields(logrus.Fields{"user": u.ID, "username": u.Username}).Info("user registered")
	return u, nil
}

// Login validates the submitted pair and authenticates it. Bad credentials
// come back as a non-field *form.ValidationError.
func (a *Accounts) Login(ctx context.Context, in form.Login) (*domain.User, error) {
	if err := a.validator.Login(in); err != nil {
		return nil, err
	}
	u, err := a.Authenticate(ctx, in.Username, in.Password)
	if errors.Is(err, domain.ErrInvalidCredentials) {
		return nil, form.Invalid(form.NonField, invalidLogin)
	}
	return u, err
}

// Authenticate checks a username/password pair. Unknown users and wrong
// passwords both yield domain.ErrInvalidCredentials.
func (a *Accounts) Authenticate(ctx context.Context, username, password string) (*domain.User, error) {
	u, hash, err := a.repo.Credentials(ctx, username)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword(hash, []byte(password)); err != nil {
		return nil, domain.ErrInvalidCredentials
	}
	return u, nil
}

func (a *Accounts) Get(ctx context.Context, id string) (*domain.User, error) {
	return a.repo.GetByID(ctx, id)
}
