package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/watchpay-backend/internal/models"
	"github.com/ignatzorin/watchpay-backend/internal/repository/common"
)

const userColumns = `id, username, email, password_hash, referral_code, referred_by, balance, is_admin, created_at, updated_at`

// UserRepository отвечает за таблицу users. Баланс здесь только читается:
// изменяют его LedgerRepository и WithdrawalRepository.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository создаёт экземпляр репозитория.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create создаёт пользователя с нулевым балансом.
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}

	query := `
		INSERT INTO users (id, username, email, password_hash, referral_code, referred_by, is_admin)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING balance, created_at, updated_at
	`
	err := r.db.QueryRowxContext(ctx, query,
		user.ID, user.Username, user.Email, user.PasswordHash, user.ReferralCode, user.ReferredBy, user.IsAdmin,
	).Scan(&user.Balance, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if common.IsUniqueViolation(err) {
			return ErrUserExists
		}
		return fmt.Errorf("user repository: create %w", err)
	}

	return nil
}

// GetByID возвращает пользователя по идентификатору.
func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	user, err := common.GetOne[models.User](ctx, r.db, ErrUserNotFound,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	if err != nil && err != ErrUserNotFound {
		return nil, fmt.Errorf("user repository: get by id %w", err)
	}
	return user, err
}

// GetByUsername возвращает пользователя по имени.
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	user, err := common.GetOne[models.User](ctx, r.db, ErrUserNotFound,
		`SELECT `+userColumns+` FROM users WHERE username = $1`, username)
	if err != nil && err != ErrUserNotFound {
		return nil, fmt.Errorf("user repository: get by username %w", err)
	}
	return user, err
}

// GetByReferralCode возвращает владельца реферального кода.
func (r *UserRepository) GetByReferralCode(ctx context.Context, code string) (*models.User, error) {
	user, err := common.GetOne[models.User](ctx, r.db, ErrUserNotFound,
		`SELECT `+userColumns+` FROM users WHERE referral_code = $1`, code)
	if err != nil && err != ErrUserNotFound {
		return nil, fmt.Errorf("user repository: get by referral code %w", err)
	}
	return user, err
}

// CountReferrals считает пользователей, зарегистрированных по коду.
func (r *UserRepository) CountReferrals(ctx context.Context, code string) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM users WHERE referred_by = $1`, code); err != nil {
		return 0, fmt.Errorf("user repository: count referrals %w", err)
	}
	return count, nil
}

// List возвращает пользователей для панели администратора.
func (r *UserRepository) List(ctx context.Context, limit, offset int) ([]models.User, error) {
	users := []models.User{}
	err := r.db.SelectContext(ctx, &users,
		`SELECT `+userColumns+` FROM users ORDER BY created_at LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("user repository: list %w", err)
	}
	return users, nil
}

// EnsureAdmin создаёт администратора или выдаёт права существующему пользователю.
func (r *UserRepository) EnsureAdmin(ctx context.Context, user *models.User) error {
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}

	query := `
		INSERT INTO users (id, username, email, password_hash, referral_code, is_admin)
		VALUES ($1, $2, $3, $4, $5, TRUE)
		ON CONFLICT (username) DO UPDATE SET is_admin = TRUE, updated_at = NOW()
		RETURNING id, balance, created_at, updated_at
	`
	err := r.db.QueryRowxContext(ctx, query,
		user.ID, user.Username, user.Email, user.PasswordHash, user.ReferralCode,
	).Scan(&user.ID, &user.Balance, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return fmt.Errorf("user repository: ensure admin %w", err)
	}
	user.IsAdmin = true
	return nil
}
