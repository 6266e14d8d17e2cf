package biz

import (
	"bytes"
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Mr-Infect/SSI-management-systemv2/internal/pkg/logger"
)

// fakeFileRepo 内存文件仓储
type fakeFileRepo struct {
	mu          sync.Mutex
	files       map[string]*File           // id -> file
	hashes      map[string]string          // hash -> id
	tokens      map[string]string          // token -> id
	shares      map[string]map[string]bool // fileID -> userID set
	ownerEmails map[string]string          // ownerID -> email
}

func newFakeFileRepo() *fakeFileRepo {
	return &fakeFileRepo{
		files:       make(map[string]*File),
		hashes:      make(map[string]string),
		tokens:      make(map[string]string),
		shares:      make(map[string]map[string]bool),
		ownerEmails: make(map[string]string),
	}
}

func (r *fakeFileRepo) Create(_ context.Context, file *File) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.hashes[file.FileHash]; ok {
		return ErrDuplicateFile
	}
	cp := *file
	r.files[file.ID] = &cp
	r.hashes[file.FileHash] = file.ID
	return nil
}

func (r *fakeFileRepo) GetByID(_ context.Context, id string) (*File, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.files[id]
	if !ok {
		return nil, ErrFileNotFound
	}
	cp := *f
	return &cp, nil
}

func (r *fakeFileRepo) GetByHash(_ context.Context, hash string) (*File, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.hashes[hash]
	if !ok {
		return nil, ErrFileNotFound
	}
	cp := *r.files[id]
	return &cp, nil
}

func (r *fakeFileRepo) ListByOwner(_ context.Context, ownerID string) ([]*File, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*File
	for _, f := range r.files {
		if f.OwnerID == ownerID {
			cp := *f
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeFileRepo) ListSharedWith(_ context.Context, userID string) ([]*SharedFile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*SharedFile
	for fileID, users := range r.shares {
		if users[userID] {
			f := r.files[fileID]
			out = append(out, &SharedFile{
				File:       *f,
				OwnerEmail: r.ownerEmails[f.OwnerID],
			})
		}
	}
	return out, nil
}

func (r *fakeFileRepo) SetVerificationToken(_ context.Context, fileID, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.files[fileID]
	if !ok {
		return ErrFileNotFound
	}
	if f.Verified {
		return ErrAlreadyVerified
	}
	if f.VerificationToken != nil {
		delete(r.tokens, *f.VerificationToken)
	}
	t := token
	f.VerificationToken = &t
	r.tokens[token] = fileID
	return nil
}

func (r *fakeFileRepo) ConsumeToken(_ context.Context, token string) (*File, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fileID, ok := r.tokens[token]
	if !ok {
		return nil, ErrInvalidToken
	}
	delete(r.tokens, token)
	f := r.files[fileID]
	now := time.Now()
	f.Verified = true
	f.VerifiedAt = &now
	f.VerificationToken = nil
	cp := *f
	return &cp, nil
}

func (r *fakeFileRepo) AddShare(_ context.Context, fileID, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.shares[fileID] == nil {
		r.shares[fileID] = make(map[string]bool)
	}
	if r.shares[fileID][userID] {
		return ErrAlreadyShared
	}
	r.shares[fileID][userID] = true
	return nil
}

func (r *fakeFileRepo) IsSharedWith(_ context.Context, fileID, userID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.shares[fileID][userID], nil
}

// fakeStorage 内存对象存储
type fakeStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{objects: make(map[string][]byte)}
}

func (s *fakeStorage) Upload(_ context.Context, key string, reader io.Reader, _ int64, _ string) error {
	data, err := io.ReadAll(reader)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = data
	return nil
}

func (s *fakeStorage) Download(_ context.Context, key string) (io.ReadCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[key]
	if !ok {
		return nil, ErrFileNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s *fakeStorage) Exists(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.objects[key]
	return ok, nil
}

// fakeNotifier 记录发出的验证请求
type fakeNotifier struct {
	mu       sync.Mutex
	requests []struct {
		Recipient string
		Filename  string
		Token     string
	}
	failNext bool
}

func (n *fakeNotifier) SendVerificationRequest(_ context.Context, recipient, filename, token string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.failNext {
		n.failNext = false
		return assert.AnError
	}
	n.requests = append(n.requests, struct {
		Recipient string
		Filename  string
		Token     string
	}{recipient, filename, token})
	return nil
}

func (n *fakeNotifier) lastToken() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.requests) == 0 {
		return ""
	}
	return n.requests[len(n.requests)-1].Token
}

// fakeDirectory 内存用户目录
type fakeDirectory struct {
	users map[string]string // email -> userID
}

func (d *fakeDirectory) ResolveByEmail(_ context.Context, email string) (string, error) {
	id, ok := d.users[email]
	if !ok {
		return "", ErrDirectoryUserNotFound
	}
	return id, nil
}

func newTestUseCase(t *testing.T) (*FileUseCase, *fakeFileRepo, *fakeStorage, *fakeNotifier, *fakeDirectory) {
	t.Helper()

	repo := newFakeFileRepo()
	repo.ownerEmails = map[string]string{
		"user-alice": "alice@example.com",
		"user-bob":   "bob@example.com",
	}
	storage := newFakeStorage()
	notifier := &fakeNotifier{}
	directory := &fakeDirectory{users: map[string]string{
		"alice@example.com": "user-alice",
		"bob@example.com":   "user-bob",
	}}

	log := &logger.Logger{Logger: zap.NewNop()}
	uc := NewFileUseCase(repo, storage, notifier, directory, log)
	return uc, repo, storage, notifier, directory
}

func TestFingerprint(t *testing.T) {
	// 已知向量：sha256("hello")
	assert.Equal(t,
		"2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824",
		Fingerprint([]byte("hello")))

	// 空内容也有确定指纹
	assert.Equal(t,
		"e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855",
		Fingerprint(nil))
}

func TestStorageKeyForHash(t *testing.T) {
	hash := Fingerprint([]byte("hello"))
	assert.Equal(t, "files/2c/"+hash, StorageKeyForHash(hash))
}

func TestUpload(t *testing.T) {
	uc, _, storage, _, _ := newTestUseCase(t)
	ctx := context.Background()

	file, err := uc.Upload(ctx, "user-alice", "report.pdf", "application/pdf", []byte("content-1"))
	require.NoError(t, err)
	assert.Equal(t, "user-alice", file.OwnerID)
	assert.Equal(t, "report.pdf", file.Filename)
	assert.Equal(t, Fingerprint([]byte("content-1")), file.FileHash)
	assert.False(t, file.Verified)

	// 对象已写入内容寻址路径
	exists, err := storage.Exists(ctx, file.StorageKey)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestUploadDuplicateContent(t *testing.T) {
	uc, _, _, _, _ := newTestUseCase(t)
	ctx := context.Background()

	first, err := uc.Upload(ctx, "user-alice", "report.pdf", "application/pdf", []byte("same-content"))
	require.NoError(t, err)

	// 相同内容、不同文件名、不同用户，仍视为重复
	existing, err := uc.Upload(ctx, "user-bob", "other-name.pdf", "application/pdf", []byte("same-content"))
	assert.ErrorIs(t, err, ErrDuplicateFile)
	require.NotNil(t, existing)
	assert.Equal(t, first.ID, existing.ID)
}

func TestRequestVerification(t *testing.T) {
	uc, repo, _, notifier, _ := newTestUseCase(t)
	ctx := context.Background()

	file, err := uc.Upload(ctx, "user-alice", "doc.txt", "text/plain", []byte("data"))
	require.NoError(t, err)

	err = uc.RequestVerification(ctx, "user-alice", file.ID, "verifier@example.com")
	require.NoError(t, err)

	require.Len(t, notifier.requests, 1)
	assert.Equal(t, "verifier@example.com", notifier.requests[0].Recipient)
	assert.Equal(t, "doc.txt", notifier.requests[0].Filename)
	assert.Len(t, notifier.requests[0].Token, 64)

	stored, err := repo.GetByID(ctx, file.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.VerificationToken)
	assert.Equal(t, notifier.requests[0].Token, *stored.VerificationToken)
}

func TestRequestVerificationNotOwner(t *testing.T) {
	uc, _, _, notifier, _ := newTestUseCase(t)
	ctx := context.Background()

	file, err := uc.Upload(ctx, "user-alice", "doc.txt", "text/plain", []byte("data"))
	require.NoError(t, err)

	err = uc.RequestVerification(ctx, "user-bob", file.ID, "verifier@example.com")
	assert.ErrorIs(t, err, ErrForbidden)
	assert.Empty(t, notifier.requests)
}

func TestRequestVerificationOverwritesToken(t *testing.T) {
	uc, _, _, notifier, _ := newTestUseCase(t)
	ctx := context.Background()

	file, err := uc.Upload(ctx, "user-alice", "doc.txt", "text/plain", []byte("data"))
	require.NoError(t, err)

	require.NoError(t, uc.RequestVerification(ctx, "user-alice", file.ID, "a@example.com"))
	firstToken := notifier.lastToken()

	require.NoError(t, uc.RequestVerification(ctx, "user-alice", file.ID, "b@example.com"))
	secondToken := notifier.lastToken()
	require.NotEqual(t, firstToken, secondToken)

	// 旧 token 已被覆盖，只有最新的有效
	_, err = uc.Verify(ctx, firstToken)
	assert.ErrorIs(t, err, ErrInvalidToken)

	verified, err := uc.Verify(ctx, secondToken)
	require.NoError(t, err)
	assert.True(t, verified.Verified)
}

func TestVerifyConsumesTokenOnce(t *testing.T) {
	uc, _, _, notifier, _ := newTestUseCase(t)
	ctx := context.Background()

	file, err := uc.Upload(ctx, "user-alice", "doc.txt", "text/plain", []byte("data"))
	require.NoError(t, err)
	require.NoError(t, uc.RequestVerification(ctx, "user-alice", file.ID, "v@example.com"))

	token := notifier.lastToken()

	verified, err := uc.Verify(ctx, token)
	require.NoError(t, err)
	assert.True(t, verified.Verified)
	assert.NotNil(t, verified.VerifiedAt)
	assert.Nil(t, verified.VerificationToken)

	// 二次消费同一 token 必须失败
	_, err = uc.Verify(ctx, token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyEmptyToken(t *testing.T) {
	uc, _, _, _, _ := newTestUseCase(t)

	_, err := uc.Verify(context.Background(), "")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestRequestVerificationAlreadyVerified(t *testing.T) {
	uc, _, _, notifier, _ := newTestUseCase(t)
	ctx := context.Background()

	file, err := uc.Upload(ctx, "user-alice", "doc.txt", "text/plain", []byte("data"))
	require.NoError(t, err)
	require.NoError(t, uc.RequestVerification(ctx, "user-alice", file.ID, "v@example.com"))

	_, err = uc.Verify(ctx, notifier.lastToken())
	require.NoError(t, err)

	err = uc.RequestVerification(ctx, "user-alice", file.ID, "v@example.com")
	assert.ErrorIs(t, err, ErrAlreadyVerified)
}

func TestRequestVerificationNotifierFailure(t *testing.T) {
	uc, _, _, notifier, _ := newTestUseCase(t)
	ctx := context.Background()

	file, err := uc.Upload(ctx, "user-alice", "doc.txt", "text/plain", []byte("data"))
	require.NoError(t, err)

	notifier.failNext = true
	err = uc.RequestVerification(ctx, "user-alice", file.ID, "v@example.com")
	assert.ErrorIs(t, err, ErrNotificationFailed)
}

func TestShareWith(t *testing.T) {
	uc, repo, _, _, _ := newTestUseCase(t)
	ctx := context.Background()

	file, err := uc.Upload(ctx, "user-alice", "doc.txt", "text/plain", []byte("data"))
	require.NoError(t, err)

	_, err = uc.ShareWith(ctx, "user-alice", file.ID, "bob@example.com")
	require.NoError(t, err)

	shared, err := repo.IsSharedWith(ctx, file.ID, "user-bob")
	require.NoError(t, err)
	assert.True(t, shared)

	// 重复共享报错，且共享列表仍只有一条
	_, err = uc.ShareWith(ctx, "user-alice", file.ID, "bob@example.com")
	assert.ErrorIs(t, err, ErrAlreadyShared)

	files, err := uc.ListSharedWith(ctx, "user-bob")
	require.NoError(t, err)
	assert.Len(t, files, 1)
}

func TestShareWithErrors(t *testing.T) {
	uc, _, _, _, _ := newTestUseCase(t)
	ctx := context.Background()

	file, err := uc.Upload(ctx, "user-alice", "doc.txt", "text/plain", []byte("data"))
	require.NoError(t, err)

	// 非所有者不能共享
	_, err = uc.ShareWith(ctx, "user-bob", file.ID, "alice@example.com")
	assert.ErrorIs(t, err, ErrForbidden)

	// 收件人不存在
	_, err = uc.ShareWith(ctx, "user-alice", file.ID, "ghost@example.com")
	assert.ErrorIs(t, err, ErrRecipientNotFound)

	// 不能共享给自己
	_, err = uc.ShareWith(ctx, "user-alice", file.ID, "alice@example.com")
	assert.ErrorIs(t, err, ErrRecipientIsOwner)

	// 文件不存在
	_, err = uc.ShareWith(ctx, "user-alice", "missing-id", "bob@example.com")
	assert.ErrorIs(t, err, ErrFileNotFound)
}

func TestDownloadAuthorization(t *testing.T) {
	uc, _, _, _, _ := newTestUseCase(t)
	ctx := context.Background()

	content := []byte("secret-content")
	file, err := uc.Upload(ctx, "user-alice", "doc.txt", "text/plain", content)
	require.NoError(t, err)

	// 所有者可下载
	got, reader, err := uc.Download(ctx, "user-alice", file.ID)
	require.NoError(t, err)
	data, err := io.ReadAll(reader)
	require.NoError(t, err)
	reader.Close()
	assert.Equal(t, content, data)
	assert.Equal(t, file.ID, got.ID)

	// 未共享用户被拒绝
	_, _, err = uc.Download(ctx, "user-bob", file.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	// 共享之后可下载
	_, err = uc.ShareWith(ctx, "user-alice", file.ID, "bob@example.com")
	require.NoError(t, err)

	_, reader, err = uc.Download(ctx, "user-bob", file.ID)
	require.NoError(t, err)
	reader.Close()
}

func TestListOwn(t *testing.T) {
	uc, _, _, _, _ := newTestUseCase(t)
	ctx := context.Background()

	_, err := uc.Upload(ctx, "user-alice", "a.txt", "text/plain", []byte("aaa"))
	require.NoError(t, err)
	_, err = uc.Upload(ctx, "user-alice", "b.txt", "text/plain", []byte("bbb"))
	require.NoError(t, err)
	_, err = uc.Upload(ctx, "user-bob", "c.txt", "text/plain", []byte("ccc"))
	require.NoError(t, err)

	files, err := uc.ListOwn(ctx, "user-alice")
	require.NoError(t, err)
	assert.Len(t, files, 2)
}

func TestVerificationLifecycle(t *testing.T) {
	uc, _, _, notifier, _ := newTestUseCase(t)
	ctx := context.Background()

	// 上传、发起验证、消费 token、共享、下载的完整链路
	file, err := uc.Upload(ctx, "user-alice", "contract.pdf", "application/pdf", []byte("contract-body"))
	require.NoError(t, err)

	require.NoError(t, uc.RequestVerification(ctx, "user-alice", file.ID, "notary@example.com"))

	verified, err := uc.Verify(ctx, notifier.lastToken())
	require.NoError(t, err)
	assert.True(t, verified.Verified)

	_, err = uc.ShareWith(ctx, "user-alice", file.ID, "bob@example.com")
	require.NoError(t, err)

	shared, err := uc.ListSharedWith(ctx, "user-bob")
	require.NoError(t, err)
	require.Len(t, shared, 1)
	assert.True(t, shared[0].Verified)
	assert.Equal(t, "alice@example.com", shared[0].OwnerEmail)

	_, reader, err := uc.Download(ctx, "user-bob", file.ID)
	require.NoError(t, err)
	data, _ := io.ReadAll(reader)
	reader.Close()
	assert.Equal(t, []byte("contract-body"), data)
}
