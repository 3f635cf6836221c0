// Package storage keeps uploaded product images on the local disk.
package storage

import (
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/omegashop/storefront/internal/models"
)

// MaxImageSize is the largest accepted upload.
const MaxImageSize = 5 << 20

// URLPrefix is the route the upload directory is served under.
const URLPrefix = "/uploads"

var allowedTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
}

// Local stores files in one directory under generated names.
type Local struct {
	dir     string
	baseURL string
}

// NewLocal creates dir when it does not exist yet.
func NewLocal(dir, baseURL string) (*Local, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "create upload directory %s", dir)
	}
	return &Local{dir: dir, baseURL: strings.TrimSuffix(baseURL, "/")}, nil
}

func (l *Local) Dir() string { return l.dir }

// Save validates an uploaded image and writes it as <uuid><ext>, returning
// the reference to store on the product.
func (l *Local) Save(fh *multipart.FileHeader) (string, error) {
	// 1. --- Size and declared type ---
	if fh.Size == 0 {
		return "", errors.Wrap(models.ErrInvalidInput, "file is empty")
	}
	if fh.Size > MaxImageSize {
		return "", errors.Wrapf(models.ErrInvalidInput, "file is larger than %d MB", MaxImageSize>>20)
	}
	declared := fh.Header.Get("Content-Type")
	if !allowedTypes[declared] {
		return "", errors.Wrapf(models.ErrInvalidInput, "only JPEG, PNG and WEBP images are allowed, got %q", declared)
	}

	src, err := fh.Open()
	if err != nil {
		return "", errors.Wrap(err, "open upload")
	}
	defer src.Close()

	// 2. --- Sniff the actual content ---
	detected, err := mimetype.DetectReader(src)
	if err != nil {
		return "", errors.Wrap(err, "detect file type")
	}
	if !allowedTypes[detected.String()] {
		return "", errors.Wrapf(models.ErrInvalidInput, "file content is %s, not an image", detected.String())
	}
	if _, err := src.Seek(0, io.SeekStart); err != nil {
		return "", errors.Wrap(err, "rewind upload")
	}

	// 3. --- Write under a unique name ---
	name := uuid.New().String() + detected.Extension()
	dst, err := os.Create(filepath.Join(l.dir, name))
	if err != nil {
		return "", errors.Wrap(err, "create image file")
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		os.Remove(dst.Name())
		return "", errors.Wrap(err, "write image file")
	}

	log.WithFields(log.Fields{"file": name, "size": fh.Size}).Info("image stored")
	return name, nil
}

// Delete removes a stored file. Missing files and bad references are ignored.
func (l *Local) Delete(ref string) {
	if ref == "" || filepath.Base(ref) != ref {
		return
	}
	if err := os.Remove(filepath.Join(l.dir, ref)); err != nil && !os.IsNotExist(err) {
		log.WithError(err).WithField("file", ref).Warn("could not delete image")
	}
}

// URL is the public address of a stored file.
func (l *Local) URL(ref string) string {
	return l.baseURL + URLPrefix + "/" + ref
}
