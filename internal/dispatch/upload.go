package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/raine/wardrobe/internal/metrics"
	"github.com/raine/wardrobe/internal/wardrobe"
	"github.com/rs/zerolog/log"
)

// UploadError is returned when both upload paths failed.
type UploadError struct {
	Primary  error
	Fallback error
}

func (e *UploadError) Error() string {
	joined := errors.Join(
		fmt.Errorf("object storage: %w", e.Primary),
		fmt.Errorf("relay: %w", e.Fallback),
	)
	return "upload failed: " + strings.ReplaceAll(joined.Error(), "\n", "; ")
}

func (e *UploadError) Unwrap() []error {
	return []error{e.Primary, e.Fallback}
}

// Coordinator uploads photos to object storage, falling back to the relay.
type Coordinator struct {
	store ObjectStore
	relay RelayUploader
	newID func() string
}

// NewCoordinator creates a coordinator. store may be nil when no object
// storage is configured; every upload then goes through the relay.
func NewCoordinator(store ObjectStore, relay RelayUploader) *Coordinator {
	return &Coordinator{store: store, relay: relay, newID: uuid.NewString}
}

// Key returns a fresh storage key for a photo owned by ownerID.
func (c *Coordinator) Key(ownerID string, photo wardrobe.Photo) string {
	return fmt.Sprintf("%s/%s.%s", ownerID, c.newID(), photo.Ext())
}

// Upload stores photo and returns its durable URL. The caller must have
// checked the upload preconditions. Paths run strictly in sequence and the
// primary path is tried once.
func (c *Coordinator) Upload(ctx context.Context, ownerID string, photo wardrobe.Photo) (string, error) {
	key := c.Key(ownerID, photo)

	primaryErr := c.putPrimary(ctx, key, photo)
	metrics.UploadAttempts.WithLabelValues(string(PathPrimary), metrics.Outcome(primaryErr)).Inc()
	if primaryErr == nil {
		url := c.store.PublicURL(key)
		log.Info().Str("key", key).Int64("size", photo.Size).Msg("photo uploaded")
		return url, nil
	}

	log.Warn().Err(primaryErr).Str("key", key).Msg("object storage upload failed, using relay")
	c.discard(ctx, key)

	if c.relay == nil {
		return "", &UploadError{Primary: primaryErr, Fallback: errors.New("relay not configured")}
	}
	url, err := c.relay.UploadFile(ctx, ownerID, photo)
	metrics.UploadAttempts.WithLabelValues(string(PathFallback), metrics.Outcome(err)).Inc()
	if err != nil {
		uploadErr := &UploadError{Primary: primaryErr, Fallback: err}
		log.Error().Err(uploadErr).Msg("photo upload failed")
		return "", uploadErr
	}

	log.Info().Str("url", url).Msg("photo uploaded through relay")
	return url, nil
}

// putPrimary uploads to object storage, turning panics into errors.
func (c *Coordinator) putPrimary(ctx context.Context, key string, photo wardrobe.Photo) (err error) {
	if c.store == nil {
		return errors.New("object storage not configured")
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("object storage upload panicked: %v", r)
		}
	}()
	return c.store.Put(ctx, key, photo.MIMEType, photo.Data)
}

// discard deletes an object that a failed upload may have left behind.
func (c *Coordinator) discard(ctx context.Context, key string) {
	if c.store == nil {
		return
	}
	if err := c.deleteKey(ctx, key); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("failed to clean up after failed upload")
	}
}

// Remove deletes the photo at url. Failures are logged, never returned.
func (c *Coordinator) Remove(ctx context.Context, url string) {
	if c.store == nil {
		return
	}
	key, ok := c.store.KeyFromURL(url)
	if !ok {
		log.Debug().Str("url", url).Msg("photo is not in object storage, nothing to remove")
		return
	}
	if err := c.deleteKey(ctx, key); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("failed to remove photo")
		return
	}
	log.Info().Str("key", key).Msg("photo removed")
}

func (c *Coordinator) deleteKey(ctx context.Context, key string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("object storage delete panicked: %v", r)
		}
	}()
	return c.store.Delete(ctx, key)
}
