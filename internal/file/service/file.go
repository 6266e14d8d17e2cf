package service

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Mr-Infect/SSI-management-systemv2/internal/auth/middleware"
	"github.com/Mr-Infect/SSI-management-systemv2/internal/file/biz"
	apperrors "github.com/Mr-Infect/SSI-management-systemv2/internal/pkg/errors"
	"github.com/Mr-Infect/SSI-management-systemv2/internal/pkg/response"
)

// DefaultMaxUploadSize 默认上传大小上限（50MB）
const DefaultMaxUploadSize = 50 << 20

// FileService 文件服务
type FileService struct {
	uc            *biz.FileUseCase
	maxUploadSize int64
}

// NewFileService 创建文件服务
func NewFileService(uc *biz.FileUseCase, maxUploadSize int64) *FileService {
	if maxUploadSize <= 0 {
		maxUploadSize = DefaultMaxUploadSize
	}
	return &FileService{
		uc:            uc,
		maxUploadSize: maxUploadSize,
	}
}

// FileResponse 文件响应
type FileResponse struct {
	ID          string `json:"id"`
	Filename    string `json:"filename"`
	FileHash    string `json:"file_hash"`
	Size        int64  `json:"size"`
	ContentType string `json:"content_type"`
	Verified    bool   `json:"verified"`
	VerifiedAt  string `json:"verified_at,omitempty"`
	CreatedAt   string `json:"created_at"`
}

// SharedFileResponse 共享文件响应，含所有者邮箱
type SharedFileResponse struct {
	FileResponse
	OwnerEmail string `json:"owner_email"`
}

// RequestVerificationRequest 验证请求参数
type RequestVerificationRequest struct {
	FileID         string `json:"file_id" binding:"required,uuid"`
	RecipientEmail string `json:"recipient_email" binding:"required,email"`
}

// ShareRequest 共享请求参数
type ShareRequest struct {
	FileID string `json:"file_id" binding:"required,uuid"`
	Email  string `json:"email" binding:"required,email"`
}

func toFileResponse(f *biz.File) FileResponse {
	resp := FileResponse{
		ID:          f.ID,
		Filename:    f.Filename,
		FileHash:    f.FileHash,
		Size:        f.Size,
		ContentType: f.ContentType,
		Verified:    f.Verified,
		CreatedAt:   f.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
	if f.VerifiedAt != nil {
		resp.VerifiedAt = f.VerifiedAt.Format("2006-01-02T15:04:05Z07:00")
	}
	return resp
}

func toFileResponses(files []*biz.File) []FileResponse {
	resps := make([]FileResponse, 0, len(files))
	for _, f := range files {
		resps = append(resps, toFileResponse(f))
	}
	return resps
}

// Upload 上传文件
// POST /api/v1/files/upload
func (s *FileService) Upload(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.Unauthorized(c, "not authenticated")
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.BadRequest(c, "missing file in request")
		return
	}

	if fileHeader.Size > s.maxUploadSize {
		response.ErrorWithCode(c, apperrors.ErrFileTooLarge,
			fmt.Sprintf("max upload size is %d bytes", s.maxUploadSize))
		return
	}

	src, err := fileHeader.Open()
	if err != nil {
		response.InternalError(c, "failed to read uploaded file")
		return
	}
	defer src.Close()

	content, err := io.ReadAll(io.LimitReader(src, s.maxUploadSize+1))
	if err != nil {
		response.InternalError(c, "failed to read uploaded file")
		return
	}
	if int64(len(content)) > s.maxUploadSize {
		response.ErrorWithCode(c, apperrors.ErrFileTooLarge)
		return
	}

	contentType := fileHeader.Header.Get("Content-Type")

	file, err := s.uc.Upload(c.Request.Context(), userID, fileHeader.Filename, contentType, content)
	if err != nil {
		switch {
		case errors.Is(err, biz.ErrDuplicateFile):
			response.ErrorWithCode(c, apperrors.ErrFileDuplicate)
		default:
			response.InternalError(c, "failed to upload file")
		}
		return
	}

	response.Created(c, toFileResponse(file))
}

// List 列出当前用户的文件
// GET /api/v1/files
func (s *FileService) List(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.Unauthorized(c, "not authenticated")
		return
	}

	files, err := s.uc.ListOwn(c.Request.Context(), userID)
	if err != nil {
		response.InternalError(c, "failed to list files")
		return
	}

	response.Success(c, toFileResponses(files))
}

// RequestVerification 为文件发起验证请求
// POST /api/v1/files/request-verification
func (s *FileService) RequestVerification(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.Unauthorized(c, "not authenticated")
		return
	}

	var req RequestVerificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request parameters")
		return
	}

	err := s.uc.RequestVerification(c.Request.Context(), userID, req.FileID, req.RecipientEmail)
	if err != nil {
		switch {
		case errors.Is(err, biz.ErrFileNotFound):
			response.ErrorWithCode(c, apperrors.ErrFileNotFound)
		case errors.Is(err, biz.ErrForbidden):
			response.ErrorWithCode(c, apperrors.ErrFileForbidden)
		case errors.Is(err, biz.ErrAlreadyVerified):
			response.ErrorWithCode(c, apperrors.ErrFileAlreadyVerified)
		case errors.Is(err, biz.ErrNotificationFailed):
			response.ErrorWithCode(c, apperrors.ErrMailDeliveryFailed)
		default:
			response.InternalError(c, "failed to request verification")
		}
		return
	}

	response.SuccessWithMessage(c, "verification request sent", nil)
}

// Verify 消费验证 token
// GET /api/v1/files/verify/:token（公开路由，邮件链接直达）
func (s *FileService) Verify(c *gin.Context) {
	token := c.Param("token")

	file, err := s.uc.Verify(c.Request.Context(), token)
	if err != nil {
		switch {
		case errors.Is(err, biz.ErrInvalidToken):
			response.ErrorWithCode(c, apperrors.ErrFileInvalidToken)
		default:
			response.InternalError(c, "failed to verify file")
		}
		return
	}

	response.SuccessWithMessage(c, "file verified successfully", toFileResponse(file))
}

// Share 将文件共享给其他用户
// POST /api/v1/files/share
func (s *FileService) Share(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.Unauthorized(c, "not authenticated")
		return
	}

	var req ShareRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request parameters")
		return
	}

	file, err := s.uc.ShareWith(c.Request.Context(), userID, req.FileID, req.Email)
	if err != nil {
		switch {
		case errors.Is(err, biz.ErrFileNotFound):
			response.ErrorWithCode(c, apperrors.ErrFileNotFound)
		case errors.Is(err, biz.ErrForbidden):
			response.ErrorWithCode(c, apperrors.ErrFileForbidden)
		case errors.Is(err, biz.ErrRecipientNotFound):
			response.ErrorWithCode(c, apperrors.ErrFileRecipientUnknown)
		case errors.Is(err, biz.ErrAlreadyShared):
			response.ErrorWithCode(c, apperrors.ErrFileAlreadyShared)
		case errors.Is(err, biz.ErrRecipientIsOwner):
			response.BadRequest(c, "cannot share a file with its owner")
		default:
			response.InternalError(c, "failed to share file")
		}
		return
	}

	response.SuccessWithMessage(c, "file shared successfully", toFileResponse(file))
}

// ListShared 列出共享给当前用户的文件
// GET /api/v1/files/shared
func (s *FileService) ListShared(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.Unauthorized(c, "not authenticated")
		return
	}

	files, err := s.uc.ListSharedWith(c.Request.Context(), userID)
	if err != nil {
		response.InternalError(c, "failed to list shared files")
		return
	}

	resps := make([]SharedFileResponse, 0, len(files))
	for _, f := range files {
		resps = append(resps, SharedFileResponse{
			FileResponse: toFileResponse(&f.File),
			OwnerEmail:   f.OwnerEmail,
		})
	}
	response.Success(c, resps)
}

// Download 下载文件
// GET /api/v1/files/download/:id
func (s *FileService) Download(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.Unauthorized(c, "not authenticated")
		return
	}

	fileID := c.Param("id")

	file, reader, err := s.uc.Download(c.Request.Context(), userID, fileID)
	if err != nil {
		switch {
		case errors.Is(err, biz.ErrFileNotFound):
			response.ErrorWithCode(c, apperrors.ErrFileNotFound)
		case errors.Is(err, biz.ErrForbidden):
			response.ErrorWithCode(c, apperrors.ErrFileForbidden)
		default:
			response.ErrorWithCode(c, apperrors.ErrFileStorageFailed)
		}
		return
	}
	defer reader.Close()

	contentType := file.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", file.Filename))
	c.Header("Content-Type", contentType)
	c.Header("Content-Length", fmt.Sprintf("%d", file.Size))
	c.Status(http.StatusOK)

	if _, err := io.Copy(c.Writer, reader); err != nil {
		// 响应已部分写出，只能记录不能再改写状态
		_ = c.Error(err)
	}
}

// RegisterRoutes 注册路由
// verify 为公开路由，其余需要认证
func (s *FileService) RegisterRoutes(r *gin.RouterGroup, authMiddleware gin.HandlerFunc, verificationLimiter gin.HandlerFunc) {
	files := r.Group("/files")
	{
		files.GET("/verify/:token", s.Verify)

		protected := files.Group("")
		protected.Use(authMiddleware)
		{
			protected.POST("/upload", s.Upload)
			protected.GET("", s.List)
			protected.POST("/request-verification", verificationLimiter, s.RequestVerification)
			protected.POST("/share", s.Share)
			protected.GET("/shared", s.ListShared)
			protected.GET("/download/:id", s.Download)
		}
	}
}
