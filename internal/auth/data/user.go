package data

import (
	"context"
	"fmt"
	"time"

	"github.com/Mr-Infect/SSI-management-systemv2/internal/auth/biz"
	"github.com/Mr-Infect/SSI-management-systemv2/internal/pkg/database"
)

// UserPO 用户持久化对象
type UserPO struct {
	ID             string     `gorm:"column:id;type:uuid;primaryKey"`
	Email          string     `gorm:"column:email;type:varchar(255);uniqueIndex;not null"`
	Username       string     `gorm:"column:username;type:varchar(100);not null"`
	PasswordHash   string     `gorm:"column:password_hash;type:varchar(255);not null"`
	FailedAttempts int        `gorm:"column:failed_attempts;default:0"`
	LockedUntil    *time.Time `gorm:"column:locked_until"`
	CreatedAt      time.Time  `gorm:"column:created_at;not null"`
	UpdatedAt      time.Time  `gorm:"column:updated_at;not null"`
}

// TableName 指定表名
func (UserPO) TableName() string {
	return "users"
}

// toDomain 转换为领域模型
func (po *UserPO) toDomain() *biz.User {
	return &biz.User{
		ID:             po.ID,
		Email:          po.Email,
		Username:       po.Username,
		PasswordHash:   po.PasswordHash,
		FailedAttempts: po.FailedAttempts,
		LockedUntil:    po.LockedUntil,
		CreatedAt:      po.CreatedAt,
		UpdatedAt:      po.UpdatedAt,
	}
}

// fromDomain 从领域模型转换
func fromDomain(user *biz.User) *UserPO {
	return &UserPO{
		ID:             user.ID,
		Email:          user.Email,
		Username:       user.Username,
		PasswordHash:   user.PasswordHash,
		FailedAttempts: user.FailedAttempts,
		LockedUntil:    user.LockedUntil,
		CreatedAt:      user.CreatedAt,
		UpdatedAt:      user.UpdatedAt,
	}
}

// userRepo 用户仓储实现
type userRepo struct {
	db *database.DB
}

// NewUserRepo 创建用户仓储
func NewUserRepo(db *database.DB) biz.UserRepo {
	return &userRepo{db: db}
}

// Create 创建用户
func (r *userRepo) Create(ctx context.Context, user *biz.User) error {
	po := fromDomain(user)
	if err := r.db.WithContext(ctx).Create(po).Error; err != nil {
		if database.IsDuplicateKeyError(err) {
			return biz.ErrEmailExists
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// GetByID 根据 ID 查询用户
func (r *userRepo) GetByID(ctx context.Context, id string) (*biz.User, error) {
	var po UserPO
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&po).Error
	if err != nil {
		if database.IsRecordNotFoundError(err) {
			return nil, biz.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return po.toDomain(), nil
}

// GetByEmail 根据邮箱查询用户
func (r *userRepo) GetByEmail(ctx context.Context, email string) (*biz.User, error) {
	var po UserPO
	err := r.db.WithContext(ctx).Where("email = ?", email).First(&po).Error
	if err != nil {
		if database.IsRecordNotFoundError(err) {
			return nil, biz.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}
	return po.toDomain(), nil
}

// Update 更新用户
func (r *userRepo) Update(ctx context.Context, user *biz.User) error {
	user.UpdatedAt = time.Now()
	po := fromDomain(user)
	if err := r.db.WithContext(ctx).Save(po).Error; err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	return nil
}
