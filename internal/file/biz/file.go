package biz

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Mr-Infect/SSI-management-systemv2/internal/auth"
	"github.com/Mr-Infect/SSI-management-systemv2/internal/pkg/logger"
)

// 业务错误定义
var (
	ErrFileNotFound       = errors.New("file not found")
	ErrDuplicateFile      = errors.New("file with identical content already exists")
	ErrAlreadyVerified    = errors.New("file is already verified")
	ErrInvalidToken       = errors.New("invalid or already used verification token")
	ErrForbidden          = errors.New("not authorized to access this file")
	ErrRecipientNotFound  = errors.New("recipient user not found")
	ErrRecipientIsOwner   = errors.New("cannot share a file with its owner")
	ErrAlreadyShared      = errors.New("file already shared with this user")
	ErrNotificationFailed = errors.New("failed to send verification notification")
)

// VerificationTokenBytes 验证 token 的随机字节数（编码后为 64 位十六进制）
const VerificationTokenBytes = 32

// File 文件领域模型
type File struct {
	ID                string
	OwnerID           string
	Filename          string
	FileHash          string // SHA-256 十六进制指纹
	Size              int64
	ContentType       string
	StorageKey        string
	Verified          bool
	VerifiedAt        *time.Time
	VerificationToken *string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Share 文件共享记录
type Share struct {
	FileID    string
	UserID    string
	CreatedAt time.Time
}

// SharedFile 共享列表投影，附带所有者邮箱
type SharedFile struct {
	File
	OwnerEmail string
}

// FileRepo 文件仓储接口
type FileRepo interface {
	Create(ctx context.Context, file *File) error
	GetByID(ctx context.Context, id string) (*File, error)
	GetByHash(ctx context.Context, hash string) (*File, error)
	ListByOwner(ctx context.Context, ownerID string) ([]*File, error)
	ListSharedWith(ctx context.Context, userID string) ([]*SharedFile, error)
	SetVerificationToken(ctx context.Context, fileID, token string) error
	// ConsumeToken 原子消费验证 token：命中则标记已验证并清除 token，
	// 返回被验证的文件；未命中返回 ErrInvalidToken。
	ConsumeToken(ctx context.Context, token string) (*File, error)
	AddShare(ctx context.Context, fileID, userID string) error
	IsSharedWith(ctx context.Context, fileID, userID string) (bool, error)
}

// StorageService 对象存储接口
type StorageService interface {
	Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error
	Download(ctx context.Context, key string) (io.ReadCloser, error)
	Exists(ctx context.Context, key string) (bool, error)
}

// NotificationGateway 通知网关接口
type NotificationGateway interface {
	SendVerificationRequest(ctx context.Context, recipient, filename, token string) error
}

// UserDirectory 用户目录接口，按邮箱解析用户
type UserDirectory interface {
	ResolveByEmail(ctx context.Context, email string) (userID string, err error)
}

// ErrDirectoryUserNotFound 用户目录查无此人
var ErrDirectoryUserNotFound = errors.New("user not found in directory")

// FileUseCase 文件用例
type FileUseCase struct {
	repo      FileRepo
	storage   StorageService
	notifier  NotificationGateway
	directory UserDirectory
	log       *logger.Logger
}

// NewFileUseCase 创建文件用例
func NewFileUseCase(repo FileRepo, storage StorageService, notifier NotificationGateway, directory UserDirectory, log *logger.Logger) *FileUseCase {
	return &FileUseCase{
		repo:      repo,
		storage:   storage,
		notifier:  notifier,
		directory: directory,
		log:       log,
	}
}

// Fingerprint 计算内容的 SHA-256 十六进制指纹
func Fingerprint(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// StorageKeyForHash 根据内容指纹生成存储路径
func StorageKeyForHash(hash string) string {
	return fmt.Sprintf("files/%s/%s", hash[:2], hash)
}

// Upload 上传文件
// 按内容指纹全局去重：指纹已存在时拒绝上传并返回已有记录。
func (uc *FileUseCase) Upload(ctx context.Context, ownerID, filename, contentType string, content []byte) (*File, error) {
	hash := Fingerprint(content)

	// 先查指纹，常见路径下避免无谓的对象写入
	if existing, err := uc.repo.GetByHash(ctx, hash); err == nil {
		uc.log.Info("duplicate upload rejected",
			zap.String("file_hash", hash),
			zap.String("existing_file_id", existing.ID))
		return existing, ErrDuplicateFile
	}

	storageKey := StorageKeyForHash(hash)
	exists, err := uc.storage.Exists(ctx, storageKey)
	if err != nil {
		return nil, fmt.Errorf("failed to check object existence: %w", err)
	}
	if !exists {
		if err := uc.storage.Upload(ctx, storageKey, bytes.NewReader(content), int64(len(content)), contentType); err != nil {
			return nil, fmt.Errorf("failed to upload object: %w", err)
		}
	}

	now := time.Now()
	file := &File{
		ID:          uuid.Must(uuid.NewV7()).String(),
		OwnerID:     ownerID,
		Filename:    filename,
		FileHash:    hash,
		Size:        int64(len(content)),
		ContentType: contentType,
		StorageKey:  storageKey,
		Verified:    false,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := uc.repo.Create(ctx, file); err != nil {
		// 并发上传同一内容时唯一索引兜底
		if errors.Is(err, ErrDuplicateFile) {
			if existing, getErr := uc.repo.GetByHash(ctx, hash); getErr == nil {
				return existing, ErrDuplicateFile
			}
			return nil, ErrDuplicateFile
		}
		return nil, fmt.Errorf("failed to create file record: %w", err)
	}

	uc.log.Info("file uploaded",
		zap.String("file_id", file.ID),
		zap.String("owner_id", ownerID),
		zap.String("file_hash", hash),
		zap.Int64("size", file.Size))

	return file, nil
}

// ListOwn 列出用户自己的文件
func (uc *FileUseCase) ListOwn(ctx context.Context, ownerID string) ([]*File, error) {
	return uc.repo.ListByOwner(ctx, ownerID)
}

// RequestVerification 为文件发起验证请求
// 仅文件所有者可发起；已验证的文件拒绝重复发起。
func (uc *FileUseCase) RequestVerification(ctx context.Context, requesterID, fileID, recipientEmail string) error {
	file, err := uc.repo.GetByID(ctx, fileID)
	if err != nil {
		return err
	}

	if file.OwnerID != requesterID {
		return ErrForbidden
	}
	if file.Verified {
		return ErrAlreadyVerified
	}

	token, err := auth.GenerateRandomToken(VerificationTokenBytes)
	if err != nil {
		return fmt.Errorf("failed to generate verification token: %w", err)
	}

	// 覆盖旧 token：重复发起时只有最新的链接有效
	if err := uc.repo.SetVerificationToken(ctx, fileID, token); err != nil {
		return err
	}

	if err := uc.notifier.SendVerificationRequest(ctx, recipientEmail, file.Filename, token); err != nil {
		return fmt.Errorf("%w: %v", ErrNotificationFailed, err)
	}

	uc.log.Info("verification requested",
		zap.String("file_id", fileID),
		zap.String("recipient", recipientEmail))

	return nil
}

// Verify 消费验证 token，将文件标记为已验证
// token 一次性有效：消费成功后即被清除。
func (uc *FileUseCase) Verify(ctx context.Context, token string) (*File, error) {
	if token == "" {
		return nil, ErrInvalidToken
	}

	file, err := uc.repo.ConsumeToken(ctx, token)
	if err != nil {
		return nil, err
	}

	uc.log.Info("file verified", zap.String("file_id", file.ID))

	return file, nil
}

// ShareWith 将文件共享给指定邮箱的用户
// 仅所有者可共享；重复共享幂等。
func (uc *FileUseCase) ShareWith(ctx context.Context, ownerID, fileID, recipientEmail string) (*File, error) {
	file, err := uc.repo.GetByID(ctx, fileID)
	if err != nil {
		return nil, err
	}

	if file.OwnerID != ownerID {
		return nil, ErrForbidden
	}

	recipientID, err := uc.directory.ResolveByEmail(ctx, recipientEmail)
	if err != nil {
		if errors.Is(err, ErrDirectoryUserNotFound) {
			return nil, ErrRecipientNotFound
		}
		return nil, err
	}

	if recipientID == ownerID {
		return nil, ErrRecipientIsOwner
	}

	if err := uc.repo.AddShare(ctx, fileID, recipientID); err != nil {
		return nil, err
	}

	uc.log.Info("file shared",
		zap.String("file_id", fileID),
		zap.String("recipient_id", recipientID))

	return file, nil
}

// ListSharedWith 列出共享给用户的文件，附带所有者邮箱
func (uc *FileUseCase) ListSharedWith(ctx context.Context, userID string) ([]*SharedFile, error) {
	return uc.repo.ListSharedWith(ctx, userID)
}

// Download 下载文件内容
// 所有者与被共享者可下载，其余一律拒绝。
func (uc *FileUseCase) Download(ctx context.Context, requesterID, fileID string) (*File, io.ReadCloser, error) {
	file, err := uc.authorizeRead(ctx, requesterID, fileID)
	if err != nil {
		return nil, nil, err
	}

	reader, err := uc.storage.Download(ctx, file.StorageKey)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to download object: %w", err)
	}

	return file, reader, nil
}

// authorizeRead 校验读取权限：所有者或被共享者
func (uc *FileUseCase) authorizeRead(ctx context.Context, requesterID, fileID string) (*File, error) {
	file, err := uc.repo.GetByID(ctx, fileID)
	if err != nil {
		return nil, err
	}

	if file.OwnerID == requesterID {
		return file, nil
	}

	shared, err := uc.repo.IsSharedWith(ctx, fileID, requesterID)
	if err != nil {
		return nil, err
	}
	if !shared {
		return nil, ErrForbidden
	}

	return file, nil
}
