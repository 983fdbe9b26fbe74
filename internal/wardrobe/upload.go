package wardrobe

import (
	"errors"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// MaxUploadSize is the largest photo accepted for upload (10 MB).
const MaxUploadSize = 10 * 1024 * 1024

var (
	ErrFileTooLarge = errors.New("file is larger than 10 MB")
	ErrNotImage     = errors.New("file is not an image")
)

// CheckUpload validates a photo before it is handed to the upload path.
func CheckUpload(size int64, mimeType string) error {
	if size > MaxUploadSize {
		return fmt.Errorf("%w (%d bytes)", ErrFileTooLarge, size)
	}
	if !strings.HasPrefix(strings.ToLower(mimeType), "image/") {
		return fmt.Errorf("%w (%s)", ErrNotImage, mimeType)
	}
	return nil
}

// Photo is a user-supplied image file.
type Photo struct {
	Name     string
	Size     int64
	ModTime  time.Time
	MIMEType string
	Data     []byte
}

// ReadPhoto loads a photo from disk, sniffing the MIME type from its content.
func ReadPhoto(path string) (Photo, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Photo{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Photo{}, err
	}
	return Photo{
		Name:     filepath.Base(path),
		Size:     info.Size(),
		ModTime:  info.ModTime(),
		MIMEType: http.DetectContentType(data),
		Data:     data,
	}, nil
}

// Ext returns the file extension to store the photo under, without the dot.
func (p Photo) Ext() string {
	if ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(p.Name)), "."); ext != "" {
		return ext
	}
	if exts, _ := mime.ExtensionsByType(p.MIMEType); len(exts) > 0 {
		return strings.TrimPrefix(exts[0], ".")
	}
	return "bin"
}
