package service

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/Mr-Infect/SSI-management-systemv2/internal/auth/biz"
	apperrors "github.com/Mr-Infect/SSI-management-systemv2/internal/pkg/errors"
	"github.com/Mr-Infect/SSI-management-systemv2/internal/pkg/response"
)

// AuthService 认证服务
type AuthService struct {
	uc *biz.AuthUseCase
}

// NewAuthService 创建认证服务
func NewAuthService(uc *biz.AuthUseCase) *AuthService {
	return &AuthService{uc: uc}
}

// RegisterRequest 注册请求
type RegisterRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Username string `json:"username" binding:"required,min=2,max=100"`
	Password string `json:"password" binding:"required,min=8"`
}

// LoginRequest 登录请求
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// RefreshRequest 刷新令牌请求
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// UserResponse 用户响应
type UserResponse struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	Username  string `json:"username"`
	CreatedAt string `json:"created_at"`
}

// TokenResponse 令牌响应
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

// Register 用户注册
// POST /api/v1/auth/register
func (s *AuthService) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request parameters")
		return
	}

	user, err := s.uc.Register(c.Request.Context(), req.Email, req.Username, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, biz.ErrEmailExists):
			response.ErrorWithCode(c, apperrors.ErrAuthEmailExists)
		case errors.Is(err, biz.ErrInvalidEmail):
			response.ErrorWithCode(c, apperrors.ErrAuthInvalidEmail)
		case errors.Is(err, biz.ErrWeakPassword):
			response.ErrorWithCode(c, apperrors.ErrAuthWeakPassword)
		default:
			response.InternalError(c, "failed to register user")
		}
		return
	}

	response.Created(c, UserResponse{
		ID:        user.ID,
		Email:     user.Email,
		Username:  user.Username,
		CreatedAt: user.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	})
}

// Login 用户登录
// POST /api/v1/auth/login
func (s *AuthService) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request parameters")
		return
	}

	user, tokens, err := s.uc.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, biz.ErrInvalidCredentials):
			response.ErrorWithCode(c, apperrors.ErrAuthInvalidCredentials)
		case errors.Is(err, biz.ErrAccountLocked):
			response.ErrorWithCode(c, apperrors.ErrAuthAccountLocked)
		default:
			response.InternalError(c, "failed to login")
		}
		return
	}

	response.Success(c, gin.H{
		"user": UserResponse{
			ID:        user.ID,
			Email:     user.Email,
			Username:  user.Username,
			CreatedAt: user.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		},
		"tokens": TokenResponse{
			AccessToken:  tokens.AccessToken,
			RefreshToken: tokens.RefreshToken,
			ExpiresIn:    tokens.ExpiresIn,
		},
	})
}

// Refresh 刷新访问令牌
// POST /api/v1/auth/refresh
func (s *AuthService) Refresh(c *gin.Context) {
	var req RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request parameters")
		return
	}

	tokens, err := s.uc.RefreshAccessToken(c.Request.Context(), req.RefreshToken)
	if err != nil {
		switch {
		case errors.Is(err, biz.ErrInvalidToken), errors.Is(err, biz.ErrUserNotFound):
			response.ErrorWithCode(c, apperrors.ErrAuthInvalidToken)
		default:
			response.InternalError(c, "failed to refresh token")
		}
		return
	}

	response.Success(c, TokenResponse{
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		ExpiresIn:    tokens.ExpiresIn,
	})
}

// RegisterRoutes 注册路由
func (s *AuthService) RegisterRoutes(r *gin.RouterGroup, loginLimiter, registerLimiter gin.HandlerFunc) {
	auth := r.Group("/auth")
	{
		auth.POST("/register", registerLimiter, s.Register)
		auth.POST("/login", loginLimiter, s.Login)
		auth.POST("/refresh", s.Refresh)
	}
}
