package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/bloomsisters/storefront/backend/services/common/auth"
	"github.com/bloomsisters/storefront/backend/services/common/logger"
	"github.com/bloomsisters/storefront/backend/services/storefront-service/models"
	"github.com/bloomsisters/storefront/backend/services/storefront-service/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// TokenIssuer is satisfied by auth.TokenManager.
type TokenIssuer interface {
	Generate(c auth.Claims) (string, error)
}

type AuthService interface {
	Register(ctx context.Context, req *models.RegisterRequest) (*models.AuthResponse, *ServiceError)
	Login(ctx context.Context, req *models.LoginRequest) (*models.AuthResponse, *ServiceError)
	GoogleLogin(ctx context.Context, idToken string) (*models.AuthResponse, *ServiceError)
	Verify(ctx context.Context, userID string) (*models.User, *ServiceError)
}

type authService struct {
	users     repository.UserRepository
	tokens    TokenIssuer
	google    GoogleVerifier
	passwords *PasswordValidator
	logger    *zap.Logger
}

func NewAuthService(users repository.UserRepository, tokens TokenIssuer, google GoogleVerifier, logger *zap.Logger) AuthService {
	return &authService{
		users:     users,
		tokens:    tokens,
		google:    google,
		passwords: NewPasswordValidator(),
		logger:    logger,
	}
}

func (s *authService) Register(ctx context.Context, req *models.RegisterRequest) (*models.AuthResponse, *ServiceError) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	username := strings.TrimSpace(req.Username)

	if err := s.passwords.ValidatePassword(req.Password); err != nil {
		return nil, &ServiceError{StatusCode: 400, Message: "Password does not meet requirements", Details: map[string]string{"password": err.Error()}}
	}

	if _, err := s.users.FindByEmail(ctx, email); err == nil {
		return nil, &ServiceError{StatusCode: 409, Message: "Email already registered"}
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		s.logger.Error("Failed to look up email", zap.Error(err))
		return nil, errInternal("Failed to register user")
	}
	if _, err := s.users.FindByUsername(ctx, username); err == nil {
		return nil, &ServiceError{StatusCode: 409, Message: "Username already taken"}
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		s.logger.Error("Failed to look up username", zap.Error(err))
		return nil, errInternal("Failed to register user")
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, errInternal("Failed to register user")
	}

	user := &models.User{
		ID:       uuid.New(),
		Username: username,
		Email:    email,
		Password: string(hashed),
		Role:     models.RoleUser,
	}
	if err := s.users.Create(ctx, user); err != nil {
		s.logger.Error("Failed to create user", zap.String("email", logger.MaskEmail(email)), zap.Error(err))
		return nil, errInternal("Failed to register user")
	}

	s.logger.Info("User registered", zap.String("user_id", user.ID.String()), zap.String("email", logger.MaskEmail(email)))
	return s.issue(user)
}

func (s *authService) Login(ctx context.Context, req *models.LoginRequest) (*models.AuthResponse, *ServiceError) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	invalid := &ServiceError{StatusCode: 401, Message: "Invalid email or password"}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			s.logger.Error("Failed to look up user", zap.Error(err))
			return nil, errInternal("Failed to log in")
		}
		s.logger.Info("Login failed", zap.String("email", logger.MaskEmail(email)))
		return nil, invalid
	}
	// Google-only accounts have no password hash
	if user.Password == "" {
		return nil, invalid
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		s.logger.Info("Login failed", zap.String("email", logger.MaskEmail(email)))
		return nil, invalid
	}

	return s.issue(user)
}

// GoogleLogin signs in by Google subject, links an existing account with the
// same email, or creates a new USER account.
func (s *authService) GoogleLogin(ctx context.Context, idToken string) (*models.AuthResponse, *ServiceError) {
	identity, err := s.google.Verify(ctx, idToken)
	if err != nil {
		if errors.Is(err, ErrInvalidGoogleToken) {
			return nil, &ServiceError{StatusCode: 401, Message: "Invalid Google token"}
		}
		s.logger.Warn("Google token verification failed", zap.Error(err))
		return nil, &ServiceError{StatusCode: 502, Message: "Google sign-in is unavailable, please try again"}
	}

	if user, err := s.users.FindByGoogleID(ctx, identity.Subject); err == nil {
		return s.issue(user)
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		s.logger.Error("Failed to look up Google user", zap.Error(err))
		return nil, errInternal("Failed to sign in with Google")
	}

	email := strings.ToLower(identity.Email)
	user, err := s.users.FindByEmail(ctx, email)
	switch {
	case err == nil:
		user.GoogleID = &identity.Subject
		if err := s.users.Update(ctx, user); err != nil {
			s.logger.Error("Failed to link Google account", zap.Error(err))
			return nil, errInternal("Failed to sign in with Google")
		}
	case errors.Is(err, gorm.ErrRecordNotFound):
		username, err := s.availableUsername(ctx, email)
		if err != nil {
			s.logger.Error("Failed to derive username", zap.Error(err))
			return nil, errInternal("Failed to sign in with Google")
		}
		user = &models.User{
			ID:       uuid.New(),
			Username: username,
			Email:    email,
			GoogleID: &identity.Subject,
			Role:     models.RoleUser,
		}
		if err := s.users.Create(ctx, user); err != nil {
			s.logger.Error("Failed to create Google user", zap.Error(err))
			return nil, errInternal("Failed to sign in with Google")
		}
		s.logger.Info("User registered via Google", zap.String("user_id", user.ID.String()), zap.String("email", logger.MaskEmail(email)))
	default:
		s.logger.Error("Failed to look up user", zap.Error(err))
		return nil, errInternal("Failed to sign in with Google")
	}

	return s.issue(user)
}

func (s *authService) Verify(ctx context.Context, userID string) (*models.User, *ServiceError) {
	id, err := uuid.Parse(userID)
	if err != nil {
		return nil, &ServiceError{StatusCode: 401, Message: "Invalid or expired token"}
	}
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &ServiceError{StatusCode: 401, Message: "User no longer exists"}
		}
		return nil, errInternal("Failed to verify token")
	}
	return user, nil
}

func (s *authService) issue(user *models.User) (*models.AuthResponse, *ServiceError) {
	token, err := s.tokens.Generate(auth.Claims{
		UserID:   user.ID.String(),
		Username: user.Username,
		Email:    user.Email,
		Role:     string(user.Role),
	})
	if err != nil {
		s.logger.Error("Failed to sign token", zap.Error(err))
		return nil, errInternal("Failed to issue token")
	}
	return &models.AuthResponse{Token: token, User: user}, nil
}

var usernameUnsafe = regexp.MustCompile(`[^a-zA-Z0-9_]`)

// availableUsername derives a username from the email local part and appends
// a numeric suffix until it is free.
func (s *authService) availableUsername(ctx context.Context, email string) (string, error) {
	base := usernameUnsafe.ReplaceAllString(strings.SplitN(email, "@", 2)[0], "")
	if len(base) < 3 {
		base = "user" + base
	}
	if len(base) > 40 {
		base = base[:40]
	}

	candidate := base
	for i := 1; i <= 20; i++ {
		_, err := s.users.FindByUsername(ctx, candidate)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return candidate, nil
		}
		if err != nil {
			return "", err
		}
		candidate = fmt.Sprintf("%s%d", base, i)
	}
	return base + "_" + uuid.NewString()[:8], nil
}
