package data

import (
	"context"
	"fmt"

	"github.com/Mr-Infect/SSI-management-systemv2/internal/file/biz"
	"github.com/Mr-Infect/SSI-management-systemv2/internal/pkg/database"
)

// userDirectory 基于用户表的邮箱目录
type userDirectory struct {
	db *database.DB
}

// NewUserDirectory 创建用户目录
func NewUserDirectory(db *database.DB) biz.UserDirectory {
	return &userDirectory{db: db}
}

// ResolveByEmail 按邮箱解析用户 ID
func (d *userDirectory) ResolveByEmail(ctx context.Context, email string) (string, error) {
	var row struct {
		ID string
	}
	err := d.db.WithContext(ctx).
		Table("users").
		Select("id").
		Where("email = ?", email).
		Take(&row).Error
	if err != nil {
		if database.IsRecordNotFoundError(err) {
			return "", biz.ErrDirectoryUserNotFound
		}
		return "", fmt.Errorf("failed to resolve user by email: %w", err)
	}
	return row.ID, nil
}
