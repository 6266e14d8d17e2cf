package biz

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/Mr-Infect/SSI-management-systemv2/internal/auth"
	"github.com/Mr-Infect/SSI-management-systemv2/internal/pkg/logger"
)

// 业务错误定义
var (
	ErrUserNotFound       = errors.New("user not found")
	ErrEmailExists        = errors.New("email already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountLocked      = errors.New("account is locked")
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrWeakPassword       = errors.New("password too weak")
	ErrInvalidEmail       = errors.New("invalid email address")
)

// 账户锁定策略
const (
	MaxLoginAttempts = 5                // 最大失败次数
	LockoutDuration  = 15 * time.Minute // 锁定时长
)

// User 用户领域模型
type User struct {
	ID             string
	Email          string
	Username       string
	PasswordHash   string
	FailedAttempts int
	LockedUntil    *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Locked 返回账户当前是否处于锁定状态
func (u *User) Locked() bool {
	return u.LockedUntil != nil && u.LockedUntil.After(time.Now())
}

// UserRepo 用户仓储接口
type UserRepo interface {
	Create(ctx context.Context, user *User) error
	GetByID(ctx context.Context, id string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	Update(ctx context.Context, user *User) error
}

// RefreshTokenRepo Refresh Token 仓储接口
type RefreshTokenRepo interface {
	Save(ctx context.Context, userID, token string, expiresAt time.Time) error
	Get(ctx context.Context, token string) (userID string, err error)
	Delete(ctx context.Context, token string) error
}

// TokenPair 令牌对
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    int64
}

// AuthUseCase 认证用例
type AuthUseCase struct {
	userRepo   UserRepo
	tokenRepo  RefreshTokenRepo
	jwtManager *auth.JWTManager
	log        *logger.Logger
}

// NewAuthUseCase 创建认证用例
func NewAuthUseCase(userRepo UserRepo, tokenRepo RefreshTokenRepo, jwtManager *auth.JWTManager, log *logger.Logger) *AuthUseCase {
	return &AuthUseCase{
		userRepo:   userRepo,
		tokenRepo:  tokenRepo,
		jwtManager: jwtManager,
		log:        log,
	}
}

// Register 用户注册
func (uc *AuthUseCase) Register(ctx context.Context, email, username, password string) (*User, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	if err := validateEmail(email); err != nil {
		return nil, err
	}
	if err := validatePassword(password); err != nil {
		return nil, err
	}

	// 检查邮箱是否已注册
	if _, err := uc.userRepo.GetByEmail(ctx, email); err == nil {
		return nil, ErrEmailExists
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := time.Now()
	user := &User{
		ID:           uuid.Must(uuid.NewV7()).String(),
		Email:        email,
		Username:     username,
		PasswordHash: string(hash),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := uc.userRepo.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	uc.log.Info("user registered",
		zap.String("user_id", user.ID),
		zap.String("email", user.Email))

	return user, nil
}

// Login 用户登录
func (uc *AuthUseCase) Login(ctx context.Context, email, password string) (*User, *TokenPair, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	user, err := uc.userRepo.GetByEmail(ctx, email)
	if err != nil {
		return nil, nil, ErrInvalidCredentials
	}

	// 检查账户锁定
	if user.Locked() {
		return nil, nil, ErrAccountLocked
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		// 记录失败次数，达到上限则锁定账户
		user.FailedAttempts++
		if user.FailedAttempts >= MaxLoginAttempts {
			lockedUntil := time.Now().Add(LockoutDuration)
			user.LockedUntil = &lockedUntil
			uc.log.Warn("account locked due to failed login attempts",
				zap.String("user_id", user.ID))
		}
		if updateErr := uc.userRepo.Update(ctx, user); updateErr != nil {
			uc.log.Error("failed to record login failure", zap.Error(updateErr))
		}
		return nil, nil, ErrInvalidCredentials
	}

	// 登录成功，重置失败计数
	if user.FailedAttempts > 0 || user.LockedUntil != nil {
		user.FailedAttempts = 0
		user.LockedUntil = nil
		if err := uc.userRepo.Update(ctx, user); err != nil {
			uc.log.Error("failed to reset login failure count", zap.Error(err))
		}
	}

	tokens, err := uc.generateTokens(ctx, user)
	if err != nil {
		return nil, nil, err
	}

	uc.log.Info("user logged in", zap.String("user_id", user.ID))

	return user, tokens, nil
}

// RefreshAccessToken 使用 Refresh Token 换取新的令牌对
func (uc *AuthUseCase) RefreshAccessToken(ctx context.Context, refreshToken string) (*TokenPair, error) {
	userID, err := uc.tokenRepo.Get(ctx, refreshToken)
	if err != nil {
		return nil, ErrInvalidToken
	}

	user, err := uc.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, ErrUserNotFound
	}

	// 旧 token 作废，签发新令牌对
	if err := uc.tokenRepo.Delete(ctx, refreshToken); err != nil {
		uc.log.Error("failed to revoke refresh token", zap.Error(err))
	}

	return uc.generateTokens(ctx, user)
}

// generateTokens 生成令牌对并持久化 refresh token
func (uc *AuthUseCase) generateTokens(ctx context.Context, user *User) (*TokenPair, error) {
	accessToken, err := uc.jwtManager.GenerateAccessToken(user.ID, user.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}

	refreshToken, err := uc.jwtManager.GenerateRefreshToken()
	if err != nil {
		return nil, fmt.Errorf("failed to generate refresh token: %w", err)
	}

	expiresAt := time.Now().Add(auth.RefreshTokenDuration)
	if err := uc.tokenRepo.Save(ctx, user.ID, refreshToken, expiresAt); err != nil {
		return nil, fmt.Errorf("failed to save refresh token: %w", err)
	}

	return &TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int64(auth.AccessTokenDuration.Seconds()),
	}, nil
}

// validateEmail 校验邮箱格式
func validateEmail(email string) error {
	if email == "" {
		return ErrInvalidEmail
	}
	at := strings.Index(email, "@")
	if at <= 0 || at == len(email)-1 {
		return ErrInvalidEmail
	}
	if !strings.Contains(email[at+1:], ".") {
		return ErrInvalidEmail
	}
	return nil
}

// validatePassword 校验密码强度
func validatePassword(password string) error {
	if len(password) < 8 {
		return ErrWeakPassword
	}
	return nil
}
