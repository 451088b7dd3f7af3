package domain

import (
	"path/filepath"
	"strings"
	"time"
)

// File type constants
const (
	FileTypePDF = "pdf"
	FileTypeMD  = "md"
	FileTypeTXT = "txt"
)

// PendingFile is a document the user selected but has not uploaded yet.
type PendingFile struct {
	Name       string    `json:"name"`
	Size       int64     `json:"size"`
	Content    []byte    `json:"-"`
	SelectedAt time.Time `json:"selected_at"`
}

// NewPendingFile wraps the given bytes as a selected file.
func NewPendingFile(name string, content []byte) *PendingFile {
	return &PendingFile{
		Name:       filepath.Base(name),
		Size:       int64(len(content)),
		Content:    content,
		SelectedAt: time.Now(),
	}
}

// Type returns the lower-cased extension of the file without the dot.
func (f *PendingFile) Type() string {
	return DetectFileType(f.Name)
}

// DetectFileType detects file type from filename
func DetectFileType(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".pdf":
		return FileTypePDF
	case ".md", ".markdown":
		return FileTypeMD
	case ".txt":
		return FileTypeTXT
	case "":
		return ""
	default:
		return ext[1:]
	}
}

// UploadAck is the backend acknowledgement of an ingested document.
// Its body is opaque to the client.
type UploadAck struct {
	Status int    `json:"status"`
	Body   []byte `json:"-"`
}
