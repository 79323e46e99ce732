package services

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// SupabaseUploadService confirms attachment claims against Supabase storage.
// Uploads land in the bucket before the message referencing them exists; the
// claim call verifies the object is really there and moves it out of the
// orphan sweeper's reach.
type SupabaseUploadService struct {
	baseURL    string
	bucket     string
	serviceKey string
	httpClient *http.Client
}

func NewSupabaseUploadService(baseURL, bucket, serviceKey string) *SupabaseUploadService {
	return &SupabaseUploadService{
		baseURL:    strings.TrimRight(baseURL, "/"),
		bucket:     bucket,
		serviceKey: serviceKey,
		httpClient: http.DefaultClient,
	}
}

func (s *SupabaseUploadService) ConfirmClaim(ctx context.Context, fileURL string) error {
	objectPath, err := s.objectPathFromURL(fileURL)
	if err != nil {
		return err
	}

	infoURL := fmt.Sprintf("%s/storage/v1/object/info/%s/%s", s.baseURL, s.bucket, objectPath)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, infoURL, nil)
	if err != nil {
		return fmt.Errorf("build claim request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+s.serviceKey)
	req.Header.Set("apikey", s.serviceKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("confirm upload claim: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrInvalidInput
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("confirm upload claim: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	return nil
}

func (s *SupabaseUploadService) objectPathFromURL(fileURL string) (string, error) {
	parsed, err := url.Parse(fileURL)
	if err != nil {
		return "", fmt.Errorf("parse file url: %w", err)
	}

	marker := fmt.Sprintf("/storage/v1/object/public/%s/", s.bucket)
	idx := strings.Index(parsed.Path, marker)
	if idx < 0 {
		return "", ErrInvalidInput
	}

	objectPath := parsed.Path[idx+len(marker):]
	if objectPath == "" {
		return "", ErrInvalidInput
	}
	return objectPath, nil
}

// NoopUploadConfirmer accepts every claim. Used when storage is not
// configured, e.g. in local development.
type NoopUploadConfirmer struct{}

func (NoopUploadConfirmer) ConfirmClaim(context.Context, string) error {
	return nil
}
