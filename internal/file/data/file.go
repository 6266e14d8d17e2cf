package data

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm/clause"

	"github.com/Mr-Infect/SSI-management-systemv2/internal/file/biz"
	"github.com/Mr-Infect/SSI-management-systemv2/internal/pkg/database"
)

// FilePO 文件持久化对象
type FilePO struct {
	ID                string     `gorm:"column:id;type:uuid;primaryKey"`
	OwnerID           string     `gorm:"column:owner_id;type:uuid;index;not null"`
	Filename          string     `gorm:"column:filename;type:varchar(255);not null"`
	FileHash          string     `gorm:"column:file_hash;type:char(64);uniqueIndex;not null"`
	Size              int64      `gorm:"column:size;not null"`
	ContentType       string     `gorm:"column:content_type;type:varchar(255)"`
	StorageKey        string     `gorm:"column:storage_key;type:varchar(255);not null"`
	Verified          bool       `gorm:"column:verified;default:false;not null"`
	VerifiedAt        *time.Time `gorm:"column:verified_at"`
	VerificationToken *string    `gorm:"column:verification_token;type:char(64);uniqueIndex"`
	CreatedAt         time.Time  `gorm:"column:created_at;not null"`
	UpdatedAt         time.Time  `gorm:"column:updated_at;not null"`
}

// TableName 指定表名
func (FilePO) TableName() string {
	return "files"
}

// FileSharePO 文件共享持久化对象
// (file_id, user_id) 复合唯一索引保证重复共享幂等
type FileSharePO struct {
	ID        uint      `gorm:"column:id;primaryKey;autoIncrement"`
	FileID    string    `gorm:"column:file_id;type:uuid;uniqueIndex:idx_file_user;not null"`
	UserID    string    `gorm:"column:user_id;type:uuid;uniqueIndex:idx_file_user;index;not null"`
	CreatedAt time.Time `gorm:"column:created_at;not null"`
}

// TableName 指定表名
func (FileSharePO) TableName() string {
	return "file_shares"
}

// toDomain 转换为领域模型
func (po *FilePO) toDomain() *biz.File {
	return &biz.File{
		ID:                po.ID,
		OwnerID:           po.OwnerID,
		Filename:          po.Filename,
		FileHash:          po.FileHash,
		Size:              po.Size,
		ContentType:       po.ContentType,
		StorageKey:        po.StorageKey,
		Verified:          po.Verified,
		VerifiedAt:        po.VerifiedAt,
		VerificationToken: po.VerificationToken,
		CreatedAt:         po.CreatedAt,
		UpdatedAt:         po.UpdatedAt,
	}
}

// fromDomain 从领域模型转换
func fromDomain(file *biz.File) *FilePO {
	return &FilePO{
		ID:                file.ID,
		OwnerID:           file.OwnerID,
		Filename:          file.Filename,
		FileHash:          file.FileHash,
		Size:              file.Size,
		ContentType:       file.ContentType,
		StorageKey:        file.StorageKey,
		Verified:          file.Verified,
		VerifiedAt:        file.VerifiedAt,
		VerificationToken: file.VerificationToken,
		CreatedAt:         file.CreatedAt,
		UpdatedAt:         file.UpdatedAt,
	}
}

// fileRepo 文件仓储实现
type fileRepo struct {
	db *database.DB
}

// NewFileRepo 创建文件仓储
func NewFileRepo(db *database.DB) biz.FileRepo {
	return &fileRepo{db: db}
}

// Create 创建文件记录
// file_hash 唯一索引兜底并发重复上传
func (r *fileRepo) Create(ctx context.Context, file *biz.File) error {
	po := fromDomain(file)
	if err := r.db.WithContext(ctx).Create(po).Error; err != nil {
		if database.IsDuplicateKeyError(err) {
			return biz.ErrDuplicateFile
		}
		return fmt.Errorf("failed to create file record: %w", err)
	}
	return nil
}

// GetByID 根据 ID 查询文件
func (r *fileRepo) GetByID(ctx context.Context, id string) (*biz.File, error) {
	var po FilePO
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&po).Error
	if err != nil {
		if database.IsRecordNotFoundError(err) {
			return nil, biz.ErrFileNotFound
		}
		return nil, fmt.Errorf("failed to get file: %w", err)
	}
	return po.toDomain(), nil
}

// GetByHash 根据内容指纹查询文件
func (r *fileRepo) GetByHash(ctx context.Context, hash string) (*biz.File, error) {
	var po FilePO
	err := r.db.WithContext(ctx).Where("file_hash = ?", hash).First(&po).Error
	if err != nil {
		if database.IsRecordNotFoundError(err) {
			return nil, biz.ErrFileNotFound
		}
		return nil, fmt.Errorf("failed to get file by hash: %w", err)
	}
	return po.toDomain(), nil
}

// ListByOwner 列出用户拥有的文件
func (r *fileRepo) ListByOwner(ctx context.Context, ownerID string) ([]*biz.File, error) {
	var pos []FilePO
	err := r.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at DESC").
		Find(&pos).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}

	files := make([]*biz.File, 0, len(pos))
	for i := range pos {
		files = append(files, pos[i].toDomain())
	}
	return files, nil
}

// sharedFileRow 共享列表查询行，多带一列所有者邮箱
type sharedFileRow struct {
	FilePO
	OwnerEmail string `gorm:"column:owner_email"`
}

// ListSharedWith 列出共享给用户的文件，关联所有者邮箱
func (r *fileRepo) ListSharedWith(ctx context.Context, userID string) ([]*biz.SharedFile, error) {
	var rows []sharedFileRow
	err := r.db.WithContext(ctx).
		Table("files").
		Select("files.*, users.email AS owner_email").
		Joins("JOIN file_shares ON file_shares.file_id = files.id").
		Joins("JOIN users ON users.id = files.owner_id").
		Where("file_shares.user_id = ?", userID).
		Order("file_shares.created_at DESC").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list shared files: %w", err)
	}

	files := make([]*biz.SharedFile, 0, len(rows))
	for i := range rows {
		files = append(files, &biz.SharedFile{
			File:       *rows[i].FilePO.toDomain(),
			OwnerEmail: rows[i].OwnerEmail,
		})
	}
	return files, nil
}

// SetVerificationToken 设置验证 token，覆盖旧值
func (r *fileRepo) SetVerificationToken(ctx context.Context, fileID, token string) error {
	result := r.db.WithContext(ctx).
		Model(&FilePO{}).
		Where("id = ? AND verified = ?", fileID, false).
		Updates(map[string]interface{}{
			"verification_token": token,
			"updated_at":         time.Now(),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to set verification token: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return biz.ErrAlreadyVerified
	}
	return nil
}

// ConsumeToken 原子消费验证 token
// 单条条件 UPDATE 保证并发下 token 只能成功消费一次，
// RETURNING 取回被验证的行
func (r *fileRepo) ConsumeToken(ctx context.Context, token string) (*biz.File, error) {
	now := time.Now()
	var po FilePO
	result := r.db.WithContext(ctx).
		Model(&po).
		Clauses(clause.Returning{}).
		Where("verification_token = ?", token).
		Updates(map[string]interface{}{
			"verified":           true,
			"verified_at":        now,
			"verification_token": nil,
			"updated_at":         now,
		})
	if result.Error != nil {
		return nil, fmt.Errorf("failed to consume verification token: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, biz.ErrInvalidToken
	}
	return po.toDomain(), nil
}

// AddShare 添加共享记录
// 复合唯一索引保证并发重复共享只有一条落库，重复返回 ErrAlreadyShared
func (r *fileRepo) AddShare(ctx context.Context, fileID, userID string) error {
	po := &FileSharePO{
		FileID:    fileID,
		UserID:    userID,
		CreatedAt: time.Now(),
	}
	if err := r.db.WithContext(ctx).Create(po).Error; err != nil {
		if database.IsDuplicateKeyError(err) {
			return biz.ErrAlreadyShared
		}
		return fmt.Errorf("failed to add share: %w", err)
	}
	return nil
}

// IsSharedWith 查询文件是否共享给指定用户
func (r *fileRepo) IsSharedWith(ctx context.Context, fileID, userID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&FileSharePO{}).
		Where("file_id = ? AND user_id = ?", fileID, userID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check share: %w", err)
	}
	return count > 0, nil
}
