package middleware

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// RateLimiterConfig 限流配置
type RateLimiterConfig struct {
	KeyPrefix   string        // Redis key 前缀
	MaxRequests int           // 时间窗口内最大请求数
	Window      time.Duration // 时间窗口
}

// 滑动窗口限流脚本
// KEYS[1]: 限流 key
// ARGV[1]: 窗口起始时间戳（毫秒）
// ARGV[2]: 当前时间戳（毫秒）
// ARGV[3]: 最大请求数
// ARGV[4]: 窗口长度（秒）
var slidingWindowScript = redis.NewScript(`
redis.call('ZREMRANGEBYSCORE', KEYS[1], 0, ARGV[1])
local count = redis.call('ZCARD', KEYS[1])
if count < tonumber(ARGV[3]) then
	redis.call('ZADD', KEYS[1], ARGV[2], ARGV[2])
	redis.call('EXPIRE', KEYS[1], ARGV[4])
	return 1
end
return 0
`)

// RateLimiter 基于 Redis 滑动窗口的限流中间件
func RateLimiter(client *redis.Client, cfg RateLimiterConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := fmt.Sprintf("%s:%s", cfg.KeyPrefix, c.ClientIP())

		now := time.Now().UnixMilli()
		windowStart := now - cfg.Window.Milliseconds()

		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		allowed, err := slidingWindowScript.Run(ctx, client, []string{key},
			windowStart, now, cfg.MaxRequests, int(cfg.Window.Seconds())).Int()
		if err != nil {
			// Redis 故障时放行，避免限流器成为单点
			c.Next()
			return
		}

		if allowed == 0 {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"code":    429,
				"message": "too many requests, please try again later",
			})
			c.Abort()
			return
		}

		c.Next()
	}
}

// LoginRateLimiter 登录限流：每 IP 5 分钟内最多 5 次
func LoginRateLimiter(client *redis.Client) gin.HandlerFunc {
	return RateLimiter(client, RateLimiterConfig{
		KeyPrefix:   "rate_limit:login",
		MaxRequests: 5,
		Window:      5 * time.Minute,
	})
}

// RegisterRateLimiter 注册限流：每 IP 1 小时内最多 3 次
func RegisterRateLimiter(client *redis.Client) gin.HandlerFunc {
	return RateLimiter(client, RateLimiterConfig{
		KeyPrefix:   "rate_limit:register",
		MaxRequests: 3,
		Window:      time.Hour,
	})
}

// VerificationRateLimiter 验证请求限流：每 IP 1 小时内最多 10 次
func VerificationRateLimiter(client *redis.Client) gin.HandlerFunc {
	return RateLimiter(client, RateLimiterConfig{
		KeyPrefix:   "rate_limit:verification",
		MaxRequests: 10,
		Window:      time.Hour,
	})
}

// APIRateLimiter 通用 API 限流：每 IP 1 分钟内最多 100 次
func APIRateLimiter(client *redis.Client) gin.HandlerFunc {
	return RateLimiter(client, RateLimiterConfig{
		KeyPrefix:   "rate_limit:api",
		MaxRequests: 100,
		Window:      time.Minute,
	})
}
