// Package imagehost validates profile images and stores them in a waffle
// storage backend (S3 or local disk) that can serve them by URL.
package imagehost

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/dalemusser/waffle/pantry/storage"
	"github.com/globaltrotter/globaltrotter/internal/app/system/limits"
	"github.com/globaltrotter/globaltrotter/internal/domain/apperr"
	"github.com/google/uuid"
)

// MaxImageBytes is the largest accepted upload.
const MaxImageBytes = limits.MaxProfileImage

// Field is the form field name uploads arrive under.
const Field = "profileImage"

// Image is an uploaded file held in memory.
type Image struct {
	Filename    string
	ContentType string // detected by Validate
	Data        []byte
}

// Uploader stores an image and returns its public URL.
type Uploader interface {
	Upload(ctx context.Context, img Image) (string, error)
}

var extByType = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// Validate checks the upload and fills img.ContentType from the bytes
// rather than from whatever the client claimed. Only raster formats are
// accepted; SVG can carry script. Violations are apperr.ErrValidationFailed.
func Validate(img *Image) error {
	if len(img.Data) == 0 {
		return apperr.Invalid(Field, "required", "profileImage is empty.")
	}
	if len(img.Data) > MaxImageBytes {
		return apperr.Invalid(Field, "max", "profileImage must be at most 5 MB.")
	}
	ct := sniff(img.Data)
	if _, ok := extByType[ct]; !ok {
		return apperr.Invalid(Field, "mime", "profileImage must be a JPEG, PNG, GIF or WebP image.")
	}
	img.ContentType = ct
	return nil
}

func sniff(data []byte) string {
	ct := http.DetectContentType(data)
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = ct[:i]
	}
	return ct
}

// ObjectKey returns a unique storage key: profiles/YYYY/MM/<uuid><ext>.
func ObjectKey(contentType string, now time.Time) string {
	now = now.UTC()
	return fmt.Sprintf("profiles/%04d/%02d/%s%s", now.Year(), now.Month(), uuid.NewString(), extByType[contentType])
}

// Host is an Uploader backed by a storage.Store.
type Host struct {
	store storage.Store
	now   func() time.Time
}

// New returns a Host that writes to store. The store must be able to build
// public URLs (a base URL configured).
func New(store storage.Store) *Host {
	return &Host{store: store, now: time.Now}
}

// Store returns the underlying storage backend.
func (h *Host) Store() storage.Store { return h.store }

// Upload implements Uploader.
func (h *Host) Upload(ctx context.Context, img Image) (string, error) {
	key := ObjectKey(img.ContentType, h.now())
	err := h.store.Put(ctx, key, bytes.NewReader(img.Data), &storage.PutOptions{
		ContentType:  img.ContentType,
		CacheControl: "public, max-age=31536000",
	})
	if err != nil {
		return "", fmt.Errorf("imagehost: put %s: %w", key, err)
	}
	u := h.store.URL(key)
	if u == "" {
		return "", fmt.Errorf("imagehost: %s backend has no public URL for %s", h.store.Backend(), key)
	}
	return u, nil
}
