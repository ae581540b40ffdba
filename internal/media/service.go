// Package media moves platform attachments into the storage service. The
// payload is streamed from the platform's download URL straight into the
// storage upload slot; it is never held in memory whole.
package media

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"path"
	"time"

	"github.com/relayhq/relay/internal/channel"
	"github.com/relayhq/relay/internal/storage"
)

const defaultMaxSize = 50 << 20 // 50 MiB

// Store is the slice of the storage client ingestion needs.
type Store interface {
	RequestUploadURL(ctx context.Context, projectID, fileName string, sizeHint int64) (storage.UploadTarget, error)
	Upload(ctx context.Context, uploadURL, mimeType string, size int64, body io.Reader) error
	RegisterFile(ctx context.Context, projectID, storageKey, fileName, mimeType string, size int64, actorID string) (string, error)
}

// File is a registered attachment.
type File struct {
	ID         string `json:"id"`
	StorageKey string `json:"storage_key"`
	Name       string `json:"name"`
	MimeType   string `json:"mime_type"`
	Size       int64  `json:"size"`
}

// Service ingests media references produced by the webhook adapters.
type Service struct {
	store      Store
	httpClient *http.Client
	maxSize    int64
	logger     *slog.Logger
}

func NewService(log *slog.Logger, store Store, maxSize int64) *Service {
	if log == nil {
		log = slog.Default()
	}
	if maxSize <= 0 {
		maxSize = defaultMaxSize
	}
	return &Service{
		store:      store,
		httpClient: &http.Client{Timeout: 2 * time.Minute},
		maxSize:    maxSize,
		logger:     log.With(slog.String("service", "media")),
	}
}

// Ingest downloads ref's payload and stores it for projectID, returning the
// registered file. The adapter resolves platform file handles to a download
// URL before calling. Failures come back as *IngestError with the stage set.
func (s *Service) Ingest(ctx context.Context, ref channel.MediaRef, projectID, actorID string) (File, error) {
	if ref.URL == "" {
		return File{}, ingestErr(StageDownload, "media reference has no download url")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref.URL, nil)
	if err != nil {
		return File{}, ingestErr(StageDownload, "build download request: %w", err)
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return File{}, ingestErr(StageDownload, "download media: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return File{}, ingestErr(StageDownload, "download media: unexpected status %d", resp.StatusCode)
	}

	size := resp.ContentLength
	if size <= 0 {
		size = ref.Size
	}
	if size <= 0 {
		// Streaming the body into a pre-signed PUT needs a known length.
		return File{}, ingestErr(StageDownload, "media size unknown")
	}
	if size > s.maxSize {
		return File{}, ingestErr(StageDownload, "media size %d exceeds limit %d", size, s.maxSize)
	}

	mimeType := ref.Mime
	if mimeType == "" {
		mimeType = resp.Header.Get("Content-Type")
	}
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	fileName := s.fileName(ref, mimeType)

	target, err := s.store.RequestUploadURL(ctx, projectID, fileName, size)
	if err != nil {
		return File{}, ingestErr(StageUpload, "request upload slot: %w", err)
	}
	if err := s.store.Upload(ctx, target.UploadURL, mimeType, size, io.LimitReader(resp.Body, size)); err != nil {
		return File{}, ingestErr(StageUpload, "stream payload: %w", err)
	}

	fileID, err := s.store.RegisterFile(ctx, projectID, target.StorageKey, fileName, mimeType, size, actorID)
	if err != nil {
		return File{}, ingestErr(StageRegister, "register file: %w", err)
	}
	s.logger.Info("media ingested",
		slog.String("file_id", fileID),
		slog.String("mime", mimeType),
		slog.Int64("size", size),
	)
	return File{
		ID:         fileID,
		StorageKey: target.StorageKey,
		Name:       fileName,
		MimeType:   mimeType,
		Size:       size,
	}, nil
}

func (s *Service) fileName(ref channel.MediaRef, mimeType string) string {
	if ref.Filename != "" {
		return ref.Filename
	}
	if parsed, err := url.Parse(ref.URL); err == nil {
		if base := path.Base(parsed.Path); base != "" && base != "/" && base != "." {
			return base
		}
	}
	name := fmt.Sprintf("attachment-%d", time.Now().UnixNano())
	if exts, err := mime.ExtensionsByType(mimeType); err == nil && len(exts) > 0 {
		name += exts[0]
	}
	return name
}
