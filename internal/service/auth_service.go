package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"github.com/ignatzorin/watchpay-backend/internal/config"
	"github.com/ignatzorin/watchpay-backend/internal/logger"
	"github.com/ignatzorin/watchpay-backend/internal/models"
	"github.com/ignatzorin/watchpay-backend/internal/pkg/apperror"
	"github.com/ignatzorin/watchpay-backend/internal/repository"
	"github.com/ignatzorin/watchpay-backend/internal/validation"
)

// AuthRepository описывает зависимости AuthService от слоя хранилища.
type AuthRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	GetByReferralCode(ctx context.Context, code string) (*models.User, error)
	EnsureAdmin(ctx context.Context, user *models.User) error
}

// AuthService регистрирует пользователей и выпускает токены.
// Ядро начислений получает уже проверенный идентификатор пользователя.
type AuthService struct {
	repo         AuthRepository
	tokenManager *TokenManager
}

// RegisterInput содержит данные пользователя при регистрации.
type RegisterInput struct {
	Username     string
	Email        string
	Password     string
	ReferralCode string
}

// LoginInput содержит данные для входа.
type LoginInput struct {
	Username string
	Password string
}

// AuthResult возвращает итог регистрации или авторизации.
type AuthResult struct {
	User      *models.User
	TokenPair *TokenPair
}

// NewAuthService создаёт сервис аутентификации.
func NewAuthService(repo AuthRepository, tokenManager *TokenManager) *AuthService {
	return &AuthService{
		repo:         repo,
		tokenManager: tokenManager,
	}
}

// ReferralCodeFor возвращает реферальный код нового пользователя.
func ReferralCodeFor(username string) string {
	return username + "_ref"
}

// Register создаёт пользователя. Реферальный код пригласившего проверяется
// один раз здесь: неизвестный код не сохраняется.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	username := strings.TrimSpace(in.Username)
	if err := validation.ValidateUsername(username); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeInvalidInput, err.Error())
	}
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if email != "" {
		if err := validation.ValidateEmail(email); err != nil {
			return nil, apperror.Wrap(err, apperror.ErrCodeInvalidInput, err.Error())
		}
	}
	if err := validation.ValidatePassword(in.Password); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeInvalidInput, err.Error())
	}

	referredBy, err := s.resolveReferral(ctx, in.ReferralCode)
	if err != nil {
		return nil, err
	}

	passHash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("auth service: не удалось захешировать пароль: %w", err)
	}

	user := &models.User{
		Username:     username,
		Email:        email,
		PasswordHash: string(passHash),
		ReferralCode: ReferralCodeFor(username),
		ReferredBy:   referredBy,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrUserExists) {
			return nil, apperror.ErrUsernameTaken
		}
		return nil, apperror.StorageFailure(err)
	}

	logger.WithFields(logrus.Fields{
		"user_id":     user.ID,
		"username":    user.Username,
		"referred_by": referredBy,
	}).Info("auth service: пользователь зарегистрирован")

	return s.issue(user)
}

func (s *AuthService) resolveReferral(ctx context.Context, code string) (*string, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, nil
	}
	if _, err := s.repo.GetByReferralCode(ctx, code); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, nil
		}
		return nil, apperror.StorageFailure(err)
	}
	return &code, nil
}

// Login проверяет учётные данные и возвращает токены.
func (s *AuthService) Login(ctx context.Context, in LoginInput) (*AuthResult, error) {
	user, err := s.repo.GetByUsername(ctx, strings.TrimSpace(in.Username))
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, apperror.ErrInvalidCredentials
		}
		return nil, apperror.StorageFailure(err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(in.Password)); err != nil {
		return nil, apperror.ErrInvalidCredentials
	}

	return s.issue(user)
}

// Refresh выпускает новую пару токенов; роль перечитывается из базы.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	userID, err := s.tokenManager.ParseRefresh(refreshToken)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeUnauthorized, "refresh токен невалиден")
	}

	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, apperror.ErrUnauthorized
		}
		return nil, apperror.StorageFailure(err)
	}

	return s.tokenManager.GeneratePair(user)
}

// EnsureAdmin создаёт администратора из конфигурации, если он задан.
func (s *AuthService) EnsureAdmin(ctx context.Context, admin config.AdminConfig) error {
	if admin.Username == "" || admin.Password == "" {
		return nil
	}

	passHash, err := bcrypt.GenerateFromPassword([]byte(admin.Password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("auth service: не удалось захешировать пароль администратора: %w", err)
	}

	user := &models.User{
		Username:     admin.Username,
		Email:        admin.Email,
		PasswordHash: string(passHash),
		ReferralCode: ReferralCodeFor(admin.Username),
	}
	if err := s.repo.EnsureAdmin(ctx, user); err != nil {
		return err
	}

	logger.WithFields(logrus.Fields{"user_id": user.ID, "username": user.Username}).
		Info("auth service: администратор готов")
	return nil
}

func (s *AuthService) issue(user *models.User) (*AuthResult, error) {
	pair, err := s.tokenManager.GeneratePair(user)
	if err != nil {
		return nil, fmt.Errorf("auth service: не удалось выпустить токены: %w", err)
	}
	return &AuthResult{User: user, TokenPair: pair}, nil
}
