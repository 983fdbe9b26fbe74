package server

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/raine/wardrobe/internal/llm"
	"github.com/raine/wardrobe/internal/metrics"
	"github.com/raine/wardrobe/internal/relay"
	"github.com/raine/wardrobe/internal/remote"
	"github.com/raine/wardrobe/internal/storage"
	"github.com/raine/wardrobe/internal/wardrobe"
	"github.com/rs/zerolog/log"
)

// reply is a handler result that the idempotency layer can store.
type reply struct {
	status int
	body   any
}

func errorReply(status int, message string) reply {
	return reply{status: status, body: relay.ErrorResponse{Error: message}}
}

func (s *Server) handleAdd(c *gin.Context) {
	owner := currentUser(c)

	var item wardrobe.Item
	if err := c.ShouldBindJSON(&item); err != nil {
		abortWithError(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	if !claimOwner(c, &item.UserID, owner) {
		return
	}
	if item.ID == "" {
		item.ID = c.GetHeader(relay.IdempotencyHeader)
	}
	if item.ID == "" {
		item.ID = s.newID()
	}
	if err := wardrobe.Validate(item); err != nil {
		abortWithError(c, http.StatusBadRequest, err.Error())
		return
	}

	s.idempotent(c, "create", owner, func(ctx context.Context) reply {
		rows, err := s.items.Insert(ctx, item)
		if isDuplicateKey(err) {
			// The caller's own write may have landed without returning the row.
			if existing, getErr := s.items.Get(ctx, item.ID, owner); getErr == nil && existing != nil {
				log.Info().Str("itemId", item.ID).Str("userId", owner).Msg("item already stored, returning existing row")
				return reply{status: http.StatusOK, body: *existing}
			}
		}
		if err != nil {
			return upstreamError("Failed to add item to wardrobe", err)
		}
		if len(rows) == 0 {
			return errorReply(http.StatusBadGateway, "Failed to add item to wardrobe: no row returned")
		}
		log.Info().Str("itemId", rows[0].ID).Str("userId", owner).Msg("item added through relay")
		return reply{status: http.StatusOK, body: rows[0]}
	})
}

func (s *Server) handleUpdate(c *gin.Context) {
	owner := currentUser(c)

	var item wardrobe.Item
	if err := c.ShouldBindJSON(&item); err != nil {
		abortWithError(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	if item.ID == "" {
		abortWithError(c, http.StatusBadRequest, "Item id is required")
		return
	}
	if !claimOwner(c, &item.UserID, owner) {
		return
	}
	if err := wardrobe.Validate(item); err != nil {
		abortWithError(c, http.StatusBadRequest, err.Error())
		return
	}

	s.idempotent(c, "update", owner, func(ctx context.Context) reply {
		prev, err := s.items.Get(ctx, item.ID, owner)
		if err != nil {
			return upstreamError("Failed to update item", err)
		}
		if prev == nil {
			return errorReply(http.StatusNotFound, "Item not found")
		}
		if err := wardrobe.CheckUpdate(*prev, item); err != nil {
			return errorReply(http.StatusBadRequest, err.Error())
		}

		patch, err := item.Patch()
		if err != nil {
			return errorReply(http.StatusBadRequest, err.Error())
		}
		rows, err := s.items.Update(ctx, item.ID, owner, patch)
		if err != nil {
			return upstreamError("Failed to update item", err)
		}
		if len(rows) == 0 {
			return errorReply(http.StatusNotFound, "Item not found")
		}
		log.Info().Str("itemId", item.ID).Str("userId", owner).Msg("item updated through relay")
		return reply{status: http.StatusOK, body: rows[0]}
	})
}

func (s *Server) handleDelete(c *gin.Context) {
	owner := currentUser(c)

	var req relay.DeleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.ID == "" {
		abortWithError(c, http.StatusBadRequest, "Item id is required")
		return
	}
	if !claimOwner(c, &req.UserID, owner) {
		return
	}

	// A keyed delete is a retry of a client write that may already have
	// removed the row; finding nothing then means the delete is done.
	retry := c.GetHeader(relay.IdempotencyHeader) != ""

	s.idempotent(c, "delete", owner, func(ctx context.Context) reply {
		rows, err := s.items.Delete(ctx, req.ID, owner)
		if err != nil {
			return upstreamError("Failed to delete item", err)
		}
		if len(rows) == 0 && retry {
			log.Info().Str("itemId", req.ID).Str("userId", owner).Msg("item already deleted")
			return reply{status: http.StatusOK, body: relay.DeleteResponse{
				Deleted: wardrobe.Item{ID: req.ID, UserID: owner},
			}}
		}
		if len(rows) == 0 {
			return errorReply(http.StatusNotFound, "Item not found")
		}
		log.Info().Str("itemId", req.ID).Str("userId", owner).Msg("item deleted through relay")
		return reply{status: http.StatusOK, body: relay.DeleteResponse{Deleted: rows[0]}}
	})
}

func (s *Server) handleUpload(c *gin.Context) {
	owner := currentUser(c)

	if s.objects == nil {
		abortWithError(c, http.StatusServiceUnavailable, "Object storage is not configured")
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "No file provided")
		return
	}
	userID := c.PostForm("userId")
	if !claimOwner(c, &userID, owner) {
		return
	}
	if fileHeader.Size > wardrobe.MaxUploadSize {
		abortWithError(c, http.StatusRequestEntityTooLarge, "File is larger than 10 MB")
		return
	}

	f, err := fileHeader.Open()
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "Failed to read file")
		return
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, wardrobe.MaxUploadSize+1))
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "Failed to read file")
		return
	}

	mimeType := fileHeader.Header.Get("Content-Type")
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = http.DetectContentType(data)
	}
	if err := wardrobe.CheckUpload(int64(len(data)), mimeType); err != nil {
		status := http.StatusUnsupportedMediaType
		if errors.Is(err, wardrobe.ErrFileTooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		abortWithError(c, status, err.Error())
		return
	}

	photo := wardrobe.Photo{
		Name:     fileHeader.Filename,
		Size:     int64(len(data)),
		MIMEType: mimeType,
		Data:     data,
	}
	key := fmt.Sprintf("%s/%s.%s", owner, s.newID(), photo.Ext())
	if err := s.objects.Put(c.Request.Context(), key, mimeType, data); err != nil {
		log.Error().Err(err).Str("key", key).Msg("relay upload failed")
		abortWithError(c, http.StatusBadGateway, "Failed to upload file")
		return
	}

	log.Info().Str("key", key).Int64("size", photo.Size).Msg("photo uploaded through relay")
	c.JSON(http.StatusOK, relay.UploadResponse{PublicURL: s.objects.PublicURL(key)})
}

func (s *Server) handleClothesFinder(c *gin.Context) {
	if s.provider == nil {
		c.JSON(http.StatusServiceUnavailable, llm.ClothesFinderResponse{Error: "Image analysis is not configured"})
		return
	}

	var req llm.ClothesFinderRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.ImageBase64 == "" {
		c.JSON(http.StatusBadRequest, llm.ClothesFinderResponse{Error: "imageBase64 is required"})
		return
	}
	if req.Mode != "" && req.Mode != "tags" {
		c.JSON(http.StatusBadRequest, llm.ClothesFinderResponse{Error: fmt.Sprintf("Unsupported mode %q", req.Mode)})
		return
	}

	encoded := req.ImageBase64
	if i := strings.Index(encoded, ";base64,"); i >= 0 {
		encoded = encoded[i+len(";base64,"):]
	}
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		c.JSON(http.StatusBadRequest, llm.ClothesFinderResponse{Error: "Invalid image data"})
		return
	}
	if len(data) > wardrobe.MaxUploadSize {
		c.JSON(http.StatusRequestEntityTooLarge, llm.ClothesFinderResponse{Error: "Image is larger than 10 MB"})
		return
	}

	result, err := s.provider.Analyze(c.Request.Context(), llm.Image{
		Name:     "clothes-finder",
		Size:     int64(len(data)),
		MIMEType: http.DetectContentType(data),
		Data:     data,
	})
	if err != nil {
		if llm.ErrorKindOf(err) == llm.KindEmpty {
			c.JSON(http.StatusOK, llm.ClothesFinderResponse{Tags: []string{}})
			return
		}
		log.Warn().Err(err).Str("provider", s.provider.Name()).Msg("clothes-finder analysis failed")
		c.JSON(http.StatusBadGateway, llm.ClothesFinderResponse{Error: "Image analysis failed"})
		return
	}

	tags := append(append([]string{}, result.Tags...), result.Labels...)
	c.JSON(http.StatusOK, llm.ClothesFinderResponse{Tags: tags})
}

// claimOwner fills an empty owner field with the caller's id and rejects a
// field naming anyone else.
func claimOwner(c *gin.Context, field *string, owner string) bool {
	if *field == "" {
		*field = owner
	}
	if *field != owner {
		abortWithError(c, http.StatusForbidden, "Cannot modify another user's wardrobe")
		return false
	}
	return true
}

// idempotent runs a mutation at most once per Idempotency-Key. A repeated
// key replays the stored response of the first successful run. Failed runs
// release the key so the client may retry.
func (s *Server) idempotent(c *gin.Context, op, owner string, run func(ctx context.Context) reply) {
	ctx := c.Request.Context()
	key := c.GetHeader(relay.IdempotencyHeader)
	if key == "" || s.keys == nil {
		r := run(ctx)
		c.JSON(r.status, r.body)
		return
	}

	rec, claimed, err := s.keys.ClaimIdempotencyKey(key, owner, op)
	if err != nil {
		log.Error().Err(err).Str("key", key).Msg("failed to claim idempotency key")
		abortWithError(c, http.StatusInternalServerError, "Failed to record request")
		return
	}

	if !claimed {
		switch {
		case rec == nil:
			abortWithError(c, http.StatusConflict, "Request with this idempotency key is in progress")
		case rec.OwnerID != owner || rec.Operation != op:
			abortWithError(c, http.StatusUnprocessableEntity, "Idempotency key was already used for a different request")
		case rec.Status == storage.IdempotencyDone:
			metrics.IdempotentReplays.WithLabelValues(op).Inc()
			log.Info().Str("key", key).Str("op", op).Msg("replaying stored response")
			c.Data(http.StatusOK, gin.MIMEJSON, rec.Response)
		default:
			abortWithError(c, http.StatusConflict, "Request with this idempotency key is in progress")
		}
		return
	}

	r := run(ctx)
	if r.status >= http.StatusMultipleChoices {
		if err := s.keys.ReleaseIdempotencyKey(key); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("failed to release idempotency key")
		}
		c.JSON(r.status, r.body)
		return
	}

	payload, err := json.Marshal(r.body)
	if err != nil {
		if err := s.keys.ReleaseIdempotencyKey(key); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("failed to release idempotency key")
		}
		abortWithError(c, http.StatusInternalServerError, "Failed to encode response")
		return
	}
	if err := s.keys.CompleteIdempotencyKey(key, payload); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("failed to store idempotent response")
	}
	c.Data(r.status, gin.MIMEJSON, payload)
}

// isDuplicateKey reports whether the hosted store rejected an insert because
// the primary key already exists.
func isDuplicateKey(err error) bool {
	var remoteErr *remote.Error
	return errors.As(err, &remoteErr) && (remoteErr.Code == "23505" || remoteErr.Status == http.StatusConflict)
}

// upstreamError turns a hosted store failure into a relay error. Client
// mistakes keep a 4xx status; credential and server failures become 502.
func upstreamError(message string, err error) reply {
	log.Error().Err(err).Msg(message)

	status := http.StatusBadGateway
	var remoteErr *remote.Error
	if errors.As(err, &remoteErr) &&
		remoteErr.Status >= 400 && remoteErr.Status < 500 &&
		remoteErr.Status != http.StatusUnauthorized && remoteErr.Status != http.StatusForbidden {
		status = http.StatusBadRequest
	}
	return errorReply(status, message+": "+err.Error())
}
