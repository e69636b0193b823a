package http

import (
	"context"
	"errors"
	"mime"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-room/internal/core"
	"github.com/vovakirdan/wirechat-room/internal/store"
	"github.com/vovakirdan/wirechat-room/internal/utils"
)

// UploadsPath is the URL prefix stored files are served under.
const UploadsPath = "/uploads"

// multipartOverhead is the slack allowed on top of the file size for form framing.
const multipartOverhead = 1 << 20

type uploadStore interface {
	IsMuted(ctx context.Context, userID int64) (bool, error)
	SaveFile(ctx context.Context, f *store.FileRecord) error
}

// UploadHandlers accepts attachments and announces them to the room.
type UploadHandlers struct {
	store      uploadStore
	manager    *core.Manager
	dir        string
	maxBytes   int64
	extensions []string
	log        *zerolog.Logger
}

// NewUploadHandlers creates upload handlers writing into dir.
// extensions are lower-case without the leading dot.
func NewUploadHandlers(st uploadStore, manager *core.Manager, dir string, maxBytes int64, extensions []string, logger *zerolog.Logger) *UploadHandlers {
	return &UploadHandlers{
		store:      st,
		manager:    manager,
		dir:        dir,
		maxBytes:   maxBytes,
		extensions: extensions,
		log:        logger,
	}
}

// FileResponse describes a stored attachment.
type FileResponse struct {
	Filename        string `json:"filename"`
	StorageFilename string `json:"storage_filename"`
	URL             string `json:"url"`
	FileType        string `json:"filetype"`
	FileSize        int64  `json:"filesize"`
}

// Upload stores the multipart field "file" and broadcasts it as a message.
// POST /api/upload
func (h *UploadHandlers) Upload(c *gin.Context) {
	ctx := c.Request.Context()
	userID := c.GetInt64(ContextKeyUserID)
	username := c.GetString(ContextKeyUsername)
	isAdmin := c.GetBool(ContextKeyIsAdmin)

	muted, err := h.store.IsMuted(ctx, userID)
	if err != nil {
		h.log.Error().Err(err).Str("username", username).Msg("failed to check mute status")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}
	if muted {
		c.JSON(http.StatusForbidden, ErrorResponse{Error: "you are muted"})
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBytes+multipartOverhead)
	fh, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, ErrorResponse{Error: "file too large"})
			return
		}
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "missing file"})
		return
	}
	if fh.Size > h.maxBytes {
		c.JSON(http.StatusRequestEntityTooLarge, ErrorResponse{Error: "file too large"})
		return
	}

	original := filepath.Base(fh.Filename)
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(original), "."))
	if ext == "" || !slices.Contains(h.extensions, ext) {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "file type not allowed"})
		return
	}

	storageName := utils.StorageName(original)
	dst := filepath.Join(h.dir, storageName)
	if err := c.SaveUploadedFile(fh, dst); err != nil {
		h.log.Error().Err(err).Str("path", dst).Msg("failed to save upload")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	fileType := fh.Header.Get("Content-Type")
	if fileType == "" {
		fileType = mime.TypeByExtension("." + ext)
	}
	rec := &store.FileRecord{
		UserID:          userID,
		Filename:        original,
		StorageFilename: storageName,
		FileType:        fileType,
		FileSize:        fh.Size,
	}
	if err := h.store.SaveFile(ctx, rec); err != nil {
		_ = os.Remove(dst)
		h.log.Error().Err(err).Str("username", username).Msg("failed to record upload")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	att := core.FileAttachment{
		Filename:        rec.Filename,
		StorageFilename: rec.StorageFilename,
		URL:             path.Join(UploadsPath, storageName),
		FileType:        rec.FileType,
		FileSize:        rec.FileSize,
	}
	h.manager.BroadcastFile(ctx, username, isAdmin, att)
	h.log.Info().Str("username", username).Str("file", storageName).Int64("size", fh.Size).Msg("file uploaded")

	c.JSON(http.StatusCreated, FileResponse{
		Filename:        att.Filename,
		StorageFilename: att.StorageFilename,
		URL:             att.URL,
		FileType:        att.FileType,
		FileSize:        att.FileSize,
	})
}
