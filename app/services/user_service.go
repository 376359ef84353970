package services

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"strings"
	"time"

	"github.com/shashiranjanraj/leppupy/app/jobs"
	"github.com/shashiranjanraj/leppupy/app/models"
	"github.com/shashiranjanraj/leppupy/app/repositories"
	"github.com/shashiranjanraj/leppupy/pkg/auth"
	"github.com/shashiranjanraj/leppupy/pkg/event"
	"github.com/shashiranjanraj/leppupy/pkg/logger"
	"github.com/shashiranjanraj/leppupy/pkg/queue"
	"github.com/shashiranjanraj/leppupy/pkg/validate"
)

// Dispatcher queues background jobs; *queue.Manager implements it.
type Dispatcher interface {
	Dispatch(ctx context.Context, job queue.Job) error
}

// RegisterInput is a new account.
type RegisterInput struct {
	Name         string `json:"client_name"   validate:"required,max=120"`
	Phone        string `json:"phone"         validate:"required,digits=10"`
	Email        string `json:"email"         validate:"required,email"`
	ConfirmEmail string `json:"confirm_email" validate:"nullable,email"`
}

// PasswordInput sets a password with an emailed code.
type PasswordInput struct {
	Email           string `json:"email"            validate:"required,email"`
	Code            string `json:"code"             validate:"required,digits=6"`
	Password        string `json:"password"         validate:"required,min=6,max=72"`
	ConfirmPassword string `json:"confirm_password" validate:"nullable"`
}

// UserService handles accounts, verification codes and login.
type UserService struct {
	store   repositories.Store
	jobs    Dispatcher
	events  *event.Bus
	newCode func() (string, error)
}

func NewUserService(store repositories.Store, jobs Dispatcher, events *event.Bus) *UserService {
	return &UserService{store: store, jobs: jobs, events: events, newCode: verificationCode}
}

// verificationCode returns six random digits.
func verificationCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}

func invalid(errs map[string]string) error {
	if !validate.HasErrors(errs) {
		return nil
	}
	msgs := make([]string, 0, len(errs))
	for _, m := range errs {
		msgs = append(msgs, m)
	}
	sort.Strings(msgs)
	return fmt.Errorf("%w: %s", models.ErrInvalidInput, strings.Join(msgs, " "))
}

// Register creates an unverified account and mails it a code. Accounts
// created by an admin are admins; everyone else registers as a client.
func (s *UserService) Register(ctx context.Context, in RegisterInput, byAdmin bool) (models.User, error) {
	if err := invalid(validate.Struct(in)); err != nil {
		return models.User{}, err
	}
	if in.ConfirmEmail != "" && !strings.EqualFold(strings.TrimSpace(in.ConfirmEmail), strings.TrimSpace(in.Email)) {
		return models.User{}, fmt.Errorf("%w: emails do not match", models.ErrInvalidInput)
	}

	u := models.User{
		Name:      strings.TrimSpace(in.Name),
		Phone:     in.Phone,
		Email:     in.Email,
		Role:      models.RoleClient,
		CreatedAt: time.Now().UTC(),
	}
	if byAdmin {
		u.Role = models.RoleAdmin
	}
	if err := s.store.Users().Insert(ctx, &u); err != nil {
		return models.User{}, err
	}
	if s.events != nil {
		s.events.Fire(ctx, event.UserRegistered, u)
	}
	if err := s.IssueCode(ctx, u.Email); err != nil {
		return u, err
	}
	return u, nil
}

// IssueCode stores a fresh verification code for email and queues the
// email. A failed dispatch is logged; the code stays valid.
func (s *UserService) IssueCode(ctx context.Context, email string) error {
	u, err := s.store.Users().FindByEmail(ctx, email)
	if err != nil {
		return err
	}
	code, err := s.newCode()
	if err != nil {
		return fmt.Errorf("users: generate code: %w", err)
	}
	u.VerificationCode = &code
	if err := s.store.Users().Update(ctx, u); err != nil {
		return err
	}
	if s.jobs != nil {
		if err := s.jobs.Dispatch(ctx, &jobs.SendVerificationCode{Email: u.Email, Code: code}); err != nil {
			logger.WithCtx(ctx).Warn("users: verification email not queued", "email", u.Email, "error", err)
		}
	}
	return nil
}

// VerifyCode reports whether code is the one last issued to email.
func (s *UserService) VerifyCode(ctx context.Context, email, code string) (bool, error) {
	u, err := s.store.Users().FindByEmail(ctx, email)
	if errors.Is(err, models.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return u.VerificationCode != nil && *u.VerificationCode == code, nil
}

// SetPassword checks the code, stores the password digest and marks the
// account verified. The code is single-use.
func (s *UserService) SetPassword(ctx context.Context, in PasswordInput) error {
	if err := invalid(validate.Struct(in)); err != nil {
		return err
	}
	if in.ConfirmPassword != "" && in.ConfirmPassword != in.Password {
		return fmt.Errorf("%w: passwords do not match", models.ErrInvalidInput)
	}
	u, err := s.store.Users().FindByEmail(ctx, in.Email)
	if err != nil {
		return err
	}
	if u.VerificationCode == nil || *u.VerificationCode != in.Code {
		return fmt.Errorf("%w: invalid verification code", models.ErrUnauthorized)
	}
	digest, err := auth.HashPassword(in.Password)
	if err != nil {
		return fmt.Errorf("users: hash password: %w", err)
	}
	u.PasswordDigest = digest
	u.Verified = true
	u.VerificationCode = nil
	return s.store.Users().Update(ctx, u)
}

// Login checks the credentials and returns a signed token.
func (s *UserService) Login(ctx context.Context, email, password string) (string, models.User, error) {
	u, err := s.store.Users().FindByEmail(ctx, email)
	if errors.Is(err, models.ErrNotFound) {
		return "", models.User{}, fmt.Errorf("%w: invalid email or password", models.ErrUnauthorized)
	}
	if err != nil {
		return "", models.User{}, err
	}
	if !u.Verified || u.PasswordDigest == "" || !auth.CheckPassword(u.PasswordDigest, password) {
		return "", models.User{}, fmt.Errorf("%w: invalid email or password", models.ErrUnauthorized)
	}
	token, err := auth.GenerateToken(u.ID.Hex(), u.Role)
	if err != nil {
		return "", models.User{}, fmt.Errorf("users: sign token: %w", err)
	}
	return token, u, nil
}

// Get returns the user with id.
func (s *UserService) Get(ctx context.Context, id string) (models.User, error) {
	oid, err := models.ParseID(id)
	if err != nil {
		return models.User{}, err
	}
	return s.store.Users().Find(ctx, oid)
}

// List returns the users with role.
func (s *UserService) List(ctx context.Context, role string) ([]models.User, error) {
	if role != models.RoleClient && role != models.RoleAdmin {
		return nil, fmt.Errorf("%w: role %q", models.ErrInvalidInput, role)
	}
	return s.store.Users().ByRole(ctx, role)
}

// Delete removes an account. Admins may delete clients and themselves but
// not other admins.
func (s *UserService) Delete(ctx context.Context, actorID, id string) error {
	oid, err := models.ParseID(id)
	if err != nil {
		return err
	}
	u, err := s.store.Users().Find(ctx, oid)
	if err != nil {
		return err
	}
	if u.IsAdmin() && id != actorID {
		return fmt.Errorf("%w: cannot delete another administrator", models.ErrForbidden)
	}
	return s.store.Users().Delete(ctx, oid)
}
