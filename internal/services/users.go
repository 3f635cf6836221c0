package services

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/omegashop/storefront/internal/models"
	"github.com/omegashop/storefront/internal/store"
)

const (
	minPasswordLength = 8
	// bcrypt only accepts this many bytes.
	maxPasswordBytes = 72
)

var fieldValidator = validator.New()

// RegisterInput is the account payload for sign-up and staff creation.
type RegisterInput struct {
	Username string      `json:"username" binding:"required"`
	Email    string      `json:"email" binding:"required,email"`
	Password string      `json:"password" binding:"required"`
	FullName string      `json:"fullName"`
	Phone    string      `json:"phone"`
	Role     models.Role `json:"role"`
}

type UserService struct {
	store store.Store
	now   Clock
}

func NewUserService(s store.Store, now Clock) *UserService {
	return &UserService{store: s, now: now}
}

func (in *RegisterInput) validate() error {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.FullName = strings.TrimSpace(in.FullName)
	in.Phone = strings.TrimSpace(in.Phone)

	if n := utf8.RuneCountInString(in.Username); n < 3 || n > 64 {
		return invalid("username must be 3 to 64 characters")
	}
	if err := fieldValidator.Var(in.Email, "required,email"); err != nil {
		return invalid("email %q is not valid", in.Email)
	}
	if utf8.RuneCountInString(in.Password) < minPasswordLength {
		return invalid("password must be at least %d characters", minPasswordLength)
	}
	if len(in.Password) > maxPasswordBytes {
		return invalid("password must be at most %d bytes", maxPasswordBytes)
	}
	return nil
}

func (s *UserService) create(ctx context.Context, in RegisterInput, role models.Role) (*models.User, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	var pw models.Password
	if err := pw.Set(in.Password); err != nil {
		return nil, errors.Wrap(err, "hash password")
	}

	now := s.now()
	u := &models.User{
		Username:     in.Username,
		Email:        in.Email,
		FullName:     in.FullName,
		Phone:        in.Phone,
		PasswordHash: pw.Hash,
		Role:         role,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	err := s.store.InTx(ctx, func(r store.Repositories) error {
		taken, err := r.Users().ExistsByUsernameOrEmail(ctx, u.Username, u.Email)
		if err != nil {
			return err
		}
		if taken {
			return invalid("username or email is already registered")
		}
		return r.Users().Create(ctx, u)
	})
	if err != nil {
		return nil, err
	}
	log.WithFields(log.Fields{"userId": u.ID, "username": u.Username, "role": role}).Info("user created")
	return u, nil
}

// Register signs up a CLIENT account.
func (s *UserService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	return s.create(ctx, in, models.RoleClient)
}

// CreateStaff lets an admin create seller, courier or admin accounts.
func (s *UserService) CreateStaff(ctx context.Context, p models.Principal, in RegisterInput) (*models.User, error) {
	if err := requireRole(p, models.RoleAdmin); err != nil {
		return nil, err
	}
	switch in.Role {
	case models.RoleSeller, models.RoleCourier, models.RoleAdmin:
	default:
		return nil, invalid("staff role must be SELLER, COURIER or ADMIN")
	}
	return s.create(ctx, in, in.Role)
}

// Bootstrap creates an admin without a calling principal. Used by the CLI.
func (s *UserService) Bootstrap(ctx context.Context, in RegisterInput) (*models.User, error) {
	return s.create(ctx, in, models.RoleAdmin)
}

// Login checks the credentials of an active account.
func (s *UserService) Login(ctx context.Context, username, password string) (*models.User, error) {
	u, err := s.store.Users().GetByUsername(ctx, strings.TrimSpace(username))
	if errors.Is(err, models.ErrNotFound) {
		return nil, errors.Wrap(models.ErrUnauthorized, "invalid credentials")
	}
	if err != nil {
		return nil, err
	}

	pw := models.Password{Hash: u.PasswordHash}
	ok, err := pw.Matches(password)
	if err != nil {
		return nil, errors.Wrap(err, "compare password")
	}
	if !ok {
		return nil, errors.Wrap(models.ErrUnauthorized, "invalid credentials")
	}
	if !u.Active {
		return nil, errors.Wrapf(models.ErrForbidden, "account %s is disabled", u.Username)
	}
	return u, nil
}

func (s *UserService) Get(ctx context.Context, id int64) (*models.User, error) {
	return s.store.Users().Get(ctx, id)
}

// List returns the accounts holding role.
func (s *UserService) List(ctx context.Context, p models.Principal, role models.Role) ([]models.User, error) {
	if err := requireRole(p, models.RoleAdmin); err != nil {
		return nil, err
	}
	if !role.Valid() {
		return nil, invalid("unknown role %q", role)
	}
	return s.store.Users().ListByRole(ctx, role)
}

// SetActive enables or disables an account. Admins cannot disable themselves.
func (s *UserService) SetActive(ctx context.Context, p models.Principal, id int64, active bool) (*models.User, error) {
	if err := requireRole(p, models.RoleAdmin); err != nil {
		return nil, err
	}
	if id == p.UserID && !active {
		return nil, invalid("you cannot disable your own account")
	}

	var u *models.User
	err := s.store.InTx(ctx, func(r store.Repositories) error {
		var err error
		if u, err = r.Users().Get(ctx, id); err != nil {
			return err
		}
		u.Active = active
		u.UpdatedAt = s.now()
		return r.Users().Update(ctx, u)
	})
	if err != nil {
		return nil, err
	}
	log.WithFields(log.Fields{"userId": id, "active": active, "admin": p.Username}).Info("user activation changed")
	return u, nil
}
