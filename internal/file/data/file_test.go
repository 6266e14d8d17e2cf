package data

import (
	"testing"
	"time"

	"github.com/Mr-Infect/SSI-management-systemv2/internal/file/biz"
)

func TestFilePOMapping(t *testing.T) {
	now := time.Now()
	verifiedAt := now.Add(-time.Hour)
	token := "a1b2c3"

	file := &biz.File{
		ID:                "file-1",
		OwnerID:           "user-1",
		Filename:          "report.pdf",
		FileHash:          "deadbeef",
		Size:              1024,
		ContentType:       "application/pdf",
		StorageKey:        "files/de/deadbeef",
		Verified:          true,
		VerifiedAt:        &verifiedAt,
		VerificationToken: &token,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	po := fromDomain(file)
	back := po.toDomain()

	if back.ID != file.ID {
		t.Errorf("ID = %q, want %q", back.ID, file.ID)
	}
	if back.OwnerID != file.OwnerID {
		t.Errorf("OwnerID = %q, want %q", back.OwnerID, file.OwnerID)
	}
	if back.Filename != file.Filename {
		t.Errorf("Filename = %q, want %q", back.Filename, file.Filename)
	}
	if back.FileHash != file.FileHash {
		t.Errorf("FileHash = %q, want %q", back.FileHash, file.FileHash)
	}
	if back.Size != file.Size {
		t.Errorf("Size = %d, want %d", back.Size, file.Size)
	}
	if back.StorageKey != file.StorageKey {
		t.Errorf("StorageKey = %q, want %q", back.StorageKey, file.StorageKey)
	}
	if !back.Verified {
		t.Error("Verified = false, want true")
	}
	if back.VerifiedAt == nil || !back.VerifiedAt.Equal(verifiedAt) {
		t.Errorf("VerifiedAt = %v, want %v", back.VerifiedAt, verifiedAt)
	}
	if back.VerificationToken == nil || *back.VerificationToken != token {
		t.Errorf("VerificationToken = %v, want %q", back.VerificationToken, token)
	}
}

func TestFilePOMappingNilOptionals(t *testing.T) {
	file := &biz.File{
		ID:       "file-1",
		OwnerID:  "user-1",
		Filename: "doc.txt",
		FileHash: "cafebabe",
	}

	back := fromDomain(file).toDomain()

	if back.Verified {
		t.Error("Verified = true, want false")
	}
	if back.VerifiedAt != nil {
		t.Errorf("VerifiedAt = %v, want nil", back.VerifiedAt)
	}
	if back.VerificationToken != nil {
		t.Errorf("VerificationToken = %v, want nil", back.VerificationToken)
	}
}

func TestTableNames(t *testing.T) {
	if got := (FilePO{}).TableName(); got != "files" {
		t.Errorf("FilePO.TableName() = %q, want %q", got, "files")
	}
	if got := (FileSharePO{}).TableName(); got != "file_shares" {
		t.Errorf("FileSharePO.TableName() = %q, want %q", got, "file_shares")
	}
}
