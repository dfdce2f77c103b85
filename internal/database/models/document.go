package models

import (
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Storage backends a document's bytes can live on.
const (
	StorageBackendLocal = "local"
	StorageBackendS3    = "s3"
)

// Document is a stored file, optionally linked to a CRM entity or attached
// to a communication. Public documents (or ones with a matching access code)
// can be read without authentication.
type Document struct {
	Base
	Title            string `gorm:"size:255" json:"title"`
	Filename         string `gorm:"size:255;not null" json:"filename"`
	OriginalFilename string `gorm:"size:255" json:"original_filename"`
	ContentType      string `gorm:"size:100" json:"content_type"`
	Size             int64  `json:"size"`
	Description      string `gorm:"type:text" json:"description"`

	StorageBackend string `gorm:"size:20;default:'local'" json:"storage_backend"`
	StorageKey     string `gorm:"size:500;not null" json:"-"`

	IsPublic   bool   `gorm:"default:false" json:"is_public"`
	AccessCode string `gorm:"size:20" json:"-"`

	EntityRef

	CommunicationID *uuid.UUID `gorm:"type:uuid;index" json:"communication_id,omitempty"`
	UploadedBy      uuid.UUID  `gorm:"type:uuid;not null;index" json:"uploaded_by"`

	Uploader *User `gorm:"foreignKey:UploadedBy" json:"uploader,omitempty"`
}

func (Document) TableName() string {
	return "documents"
}

// Extension returns the lowercase file extension without the dot.
func (d *Document) Extension() string {
	ext := strings.TrimPrefix(filepath.Ext(d.Filename), ".")
	return strings.ToLower(ext)
}

// IsImage reports whether the document looks like an image by extension.
func (d *Document) IsImage() bool {
	switch d.Extension() {
	case "png", "jpg", "jpeg", "gif", "webp", "bmp", "svg":
		return true
	}
	return false
}

// Accessible reports whether an unauthenticated request carrying the given
// code may read this document.
func (d *Document) Accessible(code string) bool {
	if d.IsPublic {
		return true
	}
	return d.AccessCode != "" && d.AccessCode == code
}
