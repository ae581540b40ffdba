// Package storage is the HTTP client for the external file storage service.
// Uploads are two-phase: request a pre-signed upload URL, PUT the bytes, then
// register the stored object to obtain a file id.
package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Client talks to the storage service.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

func NewClient(baseURL, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// UploadTarget is where the caller PUTs the payload.
type UploadTarget struct {
	UploadURL  string `json:"uploadUrl"`
	StorageKey string `json:"storageKey"`
}

type requestUploadURLBody struct {
	ProjectID string `json:"projectId"`
	FileName  string `json:"fileName"`
	SizeHint  int64  `json:"sizeHint,omitempty"`
}

// RequestUploadURL asks the storage service for a pre-signed upload slot.
func (c *Client) RequestUploadURL(ctx context.Context, projectID, fileName string, sizeHint int64) (UploadTarget, error) {
	var target UploadTarget
	err := c.post(ctx, "/v1/files/requestUploadUrl", requestUploadURLBody{
		ProjectID: projectID,
		FileName:  fileName,
		SizeHint:  sizeHint,
	}, &target)
	if err != nil {
		return UploadTarget{}, err
	}
	if target.UploadURL == "" || target.StorageKey == "" {
		return UploadTarget{}, fmt.Errorf("storage returned incomplete upload target")
	}
	return target, nil
}

// Upload streams body to the pre-signed URL. The payload is not buffered;
// size must match what will be registered.
func (c *Client) Upload(ctx context.Context, uploadURL, mimeType string, size int64, body io.Reader) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, uploadURL, body)
	if err != nil {
		return fmt.Errorf("build upload request: %w", err)
	}
	req.ContentLength = size
	req.Header.Set("Content-Type", mimeType)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("upload to storage: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("upload to storage: unexpected status %d", resp.StatusCode)
	}
	return nil
}

type registerFileBody struct {
	ProjectID  string `json:"projectId"`
	StorageKey string `json:"storageKey"`
	FileName   string `json:"fileName"`
	MimeType   string `json:"mimeType"`
	Size       int64  `json:"size"`
	ActorID    string `json:"actorId"`
}

type registerFileResponse struct {
	FileID string `json:"fileId"`
}

// RegisterFile records the uploaded object and returns its file id.
func (c *Client) RegisterFile(ctx context.Context, projectID, storageKey, fileName, mimeType string, size int64, actorID string) (string, error) {
	var result registerFileResponse
	err := c.post(ctx, "/v1/files/registerFile", registerFileBody{
		ProjectID:  projectID,
		StorageKey: storageKey,
		FileName:   fileName,
		MimeType:   mimeType,
		Size:       size,
		ActorID:    actorID,
	}, &result)
	if err != nil {
		return "", err
	}
	if result.FileID == "" {
		return "", fmt.Errorf("storage returned empty file id")
	}
	return result.FileID, nil
}

func (c *Client) post(ctx context.Context, path string, payload, out any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal storage request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("build storage request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("call storage: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("storage %s: status %d: %s", path, resp.StatusCode, strings.TrimSpace(string(detail)))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode storage response: %w", err)
	}
	return nil
}
