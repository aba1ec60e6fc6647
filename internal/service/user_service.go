package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"labinventory/internal/auth"
	"labinventory/internal/model"
	"labinventory/internal/repository"
	"labinventory/pkg/rbac"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// ErrInvalidCredentials is returned by Login for an unknown email or a wrong password
var ErrInvalidCredentials = errors.New("invalid email or password")

// DTOs for Request validation
type CreateUserRequest struct {
	Username string `json:"username" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Phone    string `json:"phone"`
	Password string `json:"password" binding:"required,min=6"`
	Role     string `json:"role" binding:"required"`
}

type UpdateUserRequest struct {
	Username string `json:"username"`
	Email    string `json:"email" binding:"omitempty,email"`
	Phone    string `json:"phone"`
	Role     string `json:"role"`
	Disabled *bool  `json:"disabled"`
}

type LoginUserRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type TokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// DTO for returning User without exposing sensitive data (e.g. password)
type UserResponse struct {
	ID        uuid.UUID `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	Role      string    `json:"role"`
	Disabled  bool      `json:"disabled"`
	CreatedAt string    `json:"created_at"`
	UpdatedAt string    `json:"updated_at"`
}

// MeResponse is the "who am I" payload: the caller and what their role allows
type MeResponse struct {
	User        UserResponse      `json:"user"`
	Permissions []rbac.Permission `json:"permissions"`
}

// UserService defines the interface for business logic related to User
type UserService interface {
	CreateUser(ctx context.Context, actorID string, req CreateUserRequest) (*UserResponse, error)
	Login(ctx context.Context, req LoginUserRequest) (*TokenResponse, error)
	Me(ctx context.Context, id string) (*MeResponse, error)
	GetUserByID(ctx context.Context, id string) (*UserResponse, error)
	ListUsers(ctx context.Context, page, limit int) ([]UserResponse, int64, error)
	UpdateUser(ctx context.Context, actorID, id string, req UpdateUserRequest) (*UserResponse, error)
}

type userService struct {
	repo      repository.UserRepository
	auditRepo repository.AuditRepository
	txManager repository.TransactionManager
	tokens    *auth.TokenManager
	catalog   *rbac.Catalog
	log       logrus.FieldLogger
}

// NewUserService returns a new instance of UserService
func NewUserService(
	repo repository.UserRepository,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
	tokens *auth.TokenManager,
	catalog *rbac.Catalog,
	log logrus.FieldLogger,
) UserService {
	return &userService{
		repo:      repo,
		auditRepo: auditRepo,
		txManager: txManager,
		tokens:    tokens,
		catalog:   catalog,
		log:       log,
	}
}

// unique turns the result of a lookup by a unique field into a conflict when a
// row exists. Storage failures pass through.
func unique(err error, msg string) error {
	switch {
	case err == nil:
		return conflict("%s", msg)
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil
	default:
		return err
	}
}

var emailRegex = regexp.MustCompile(`^[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}$`)

func (s *userService) validateRole(role string) error {
	if !s.catalog.HasRole(rbac.Role(role)) {
		roles := make([]string, 0)
		for _, r := range s.catalog.Roles() {
			roles = append(roles, string(r))
		}
		return invalidInput("invalid role %q: must be one of %s", role, strings.Join(roles, ", "))
	}
	return nil
}

// Helper: parse model to standard json API response
func mapToResponse(user *model.User) *UserResponse {
	return &UserResponse{
		ID:        user.ID,
		Username:  user.Username,
		Email:     user.Email,
		Phone:     user.Phone,
		Role:      user.Role,
		Disabled:  user.Disabled(),
		CreatedAt: user.CreatedAt.Format(time.RFC3339),
		UpdatedAt: user.UpdatedAt.Format(time.RFC3339),
	}
}

func (s *userService) CreateUser(ctx context.Context, actorID string, req CreateUserRequest) (*UserResponse, error) {
	if err := s.validateRole(req.Role); err != nil {
		return nil, err
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if !emailRegex.MatchString(req.Email) {
		return nil, invalidInput("invalid email format")
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &model.User{
		Username: req.Username,
		Email:    req.Email,
		Phone:    req.Phone,
		Password: string(hashedPassword),
		Role:     req.Role,
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		_, err := s.repo.GetByUsername(txCtx, req.Username)
		if err := unique(err, "username already exists"); err != nil {
			return err
		}
		_, err = s.repo.GetByEmail(txCtx, req.Email)
		if err := unique(err, "email already exists"); err != nil {
			return err
		}
		if err := s.repo.Create(txCtx, user); err != nil {
			return err
		}

		details, _ := json.Marshal(map[string]string{"username": user.Username, "email": user.Email, "role": user.Role})
		return s.auditRepo.Log(txCtx, &model.AuditLog{
			UserID:     parseActor(actorID),
			Action:     model.ActionCreateUser,
			EntityID:   user.ID.String(),
			EntityName: user.Username,
			Details:    string(details),
		})
	})
	if err != nil {
		if isDomainError(err) {
			return nil, err
		}
		s.log.WithError(err).WithField("username", req.Username).Error("user creation rolled back")
		return nil, fmt.Errorf("%w: please try again", ErrTransaction)
	}

	return mapToResponse(user), nil
}

func (s *userService) Login(ctx context.Context, req LoginUserRequest) (*TokenResponse, error) {
	user, err := s.repo.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		return nil, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	if user.Disabled() {
		return nil, ErrInvalidCredentials
	}

	token, expiresAt, err := s.tokens.Issue(user.ID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}

	return &TokenResponse{Token: token, ExpiresAt: expiresAt}, nil
}

// Me reports the user and the permissions of their current role
func (s *userService) Me(ctx context.Context, id string) (*MeResponse, error) {
	user, err := s.GetUserByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return &MeResponse{
		User:        *user,
		Permissions: s.catalog.Permissions(rbac.Role(user.Role)),
	}, nil
}

func (s *userService) GetUserByID(ctx context.Context, id string) (*UserResponse, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("user not found")
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	return mapToResponse(user), nil
}

func (s *userService) ListUsers(ctx context.Context, page, limit int) ([]UserResponse, int64, error) {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = 10
	}

	users, total, err := s.repo.List(ctx, page, limit)
	if err != nil {
		return nil, 0, err
	}

	responses := make([]UserResponse, 0, len(users))
	for i := range users {
		responses = append(responses, *mapToResponse(&users[i]))
	}

	return responses, total, nil
}

// UpdateUser changes profile fields and the role. A role change is audited
// separately and takes effect on the user's next request.
func (s *userService) UpdateUser(ctx context.Context, actorID, id string, req UpdateUserRequest) (*UserResponse, error) {
	if req.Role != "" {
		if err := s.validateRole(req.Role); err != nil {
			return nil, err
		}
	}

	var user *model.User
	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		var err error
		user, err = s.repo.GetByID(txCtx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return notFound("user not found")
			}
			return err
		}

		oldRole := user.Role
		if req.Username != "" && req.Username != user.Username {
			_, err := s.repo.GetByUsername(txCtx, req.Username)
			if err := unique(err, "username already exists"); err != nil {
				return err
			}
			user.Username = req.Username
		}

		if req.Email != "" {
			email := strings.ToLower(strings.TrimSpace(req.Email))
			if email != user.Email {
				_, err := s.repo.GetByEmail(txCtx, email)
				if err := unique(err, "email already exists"); err != nil {
					return err
				}
				user.Email = email
			}
		}

		if req.Phone != "" {
			user.Phone = req.Phone
		}
		if req.Role != "" {
			user.Role = req.Role
		}
		wasDisabled := user.Disabled()
		if req.Disabled != nil && *req.Disabled != wasDisabled {
			if *req.Disabled {
				now := time.Now()
				user.DisabledAt = &now
			} else {
				user.DisabledAt = nil
			}
		}

		if err := s.repo.Update(txCtx, user); err != nil {
			return err
		}

		action := model.ActionUpdateUser
		switch {
		case user.Disabled() && !wasDisabled:
			action = model.ActionDisableUser
		case !user.Disabled() && wasDisabled:
			action = model.ActionEnableUser
		case user.Role != oldRole:
			action = model.ActionChangeRole
		}
		details, _ := json.Marshal(map[string]string{"old_role": oldRole, "role": user.Role, "username": user.Username})
		return s.auditRepo.Log(txCtx, &model.AuditLog{
			UserID:     parseActor(actorID),
			Action:     action,
			EntityID:   user.ID.String(),
			EntityName: user.Username,
			Details:    string(details),
		})
	})
	if err != nil {
		if isDomainError(err) {
			return nil, err
		}
		s.log.WithError(err).WithField("user_id", id).Error("user update rolled back")
		return nil, fmt.Errorf("%w: please try again", ErrTransaction)
	}

	return mapToResponse(user), nil
}
