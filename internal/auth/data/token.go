package data

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Mr-Infect/SSI-management-systemv2/internal/auth/biz"
)

// refreshTokenRepo 基于 Redis 的 Refresh Token 仓储
type refreshTokenRepo struct {
	client *redis.Client
}

// NewRefreshTokenRepo 创建 Refresh Token 仓储
func NewRefreshTokenRepo(client *redis.Client) biz.RefreshTokenRepo {
	return &refreshTokenRepo{client: client}
}

func refreshTokenKey(token string) string {
	return "refresh_token:" + token
}

// Save 保存 refresh token，过期时间与令牌有效期一致
func (r *refreshTokenRepo) Save(ctx context.Context, userID, token string, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return fmt.Errorf("refresh token already expired")
	}
	if err := r.client.Set(ctx, refreshTokenKey(token), userID, ttl).Err(); err != nil {
		return fmt.Errorf("failed to save refresh token: %w", err)
	}
	return nil
}

// Get 根据 token 查询所属用户
func (r *refreshTokenRepo) Get(ctx context.Context, token string) (string, error) {
	userID, err := r.client.Get(ctx, refreshTokenKey(token)).Result()
	if err != nil {
		if err == redis.Nil {
			return "", biz.ErrInvalidToken
		}
		return "", fmt.Errorf("failed to get refresh token: %w", err)
	}
	return userID, nil
}

// Delete 删除 refresh token
func (r *refreshTokenRepo) Delete(ctx context.Context, token string) error {
	if err := r.client.Del(ctx, refreshTokenKey(token)).Err(); err != nil {
		return fmt.Errorf("failed to delete refresh token: %w", err)
	}
	return nil
}
