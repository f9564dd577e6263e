package presigned

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/abduss/treedrive/internal/file"
	"github.com/google/uuid"
)

// maxTTL is the longest expiry S3-compatible stores accept for a presigned URL.
const maxTTL = 7 * 24 * time.Hour

// ErrInvalidTTL rejects an expiry outside (0, 7 days].
var ErrInvalidTTL = errors.New("ttl must be between 1s and 168h")

// signer is satisfied by *minio.Client.
type signer interface {
	PresignedGetObject(ctx context.Context, bucketName, objectName string, expires time.Duration, reqParams url.Values) (*url.URL, error)
}

type fileLookup interface {
	Get(ctx context.Context, ownerID, fileID uuid.UUID) (file.Metadata, error)
}

// Link is a time-limited download URL.
type Link struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Service issues presigned download links for files the caller owns.
type Service struct {
	client  signer
	files   fileLookup
	bucket  string
	ttl     time.Duration
	nowFunc func() time.Time
}

func NewService(client signer, files fileLookup, bucket string, ttl time.Duration) *Service {
	return &Service{
		client:  client,
		files:   files,
		bucket:  bucket,
		ttl:     ttl,
		nowFunc: time.Now,
	}
}

// DownloadURL signs a GET for fileID. A zero ttl selects the configured default.
func (s *Service) DownloadURL(ctx context.Context, ownerID, fileID uuid.UUID, ttl time.Duration) (Link, error) {
	if ttl == 0 {
		ttl = s.ttl
	}
	if ttl < time.Second || ttl > maxTTL {
		return Link{}, ErrInvalidTTL
	}

	meta, err := s.files.Get(ctx, ownerID, fileID)
	if err != nil {
		return Link{}, err
	}

	params := make(url.Values)
	params.Set("response-content-disposition", fmt.Sprintf("attachment; filename=%q", meta.Name))

	u, err := s.client.PresignedGetObject(ctx, s.bucket, meta.ObjectKey, ttl, params)
	if err != nil {
		return Link{}, fmt.Errorf("presign object: %w", err)
	}

	return Link{URL: u.String(), ExpiresAt: s.nowFunc().Add(ttl)}, nil
}
