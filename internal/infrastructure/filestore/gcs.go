// Package filestore stores agent photos in Google Cloud Storage.
package filestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"palmledger/internal/domain/agents"
)

// GCSConfig configures the bucket store.
type GCSConfig struct {
	Bucket string
	// CredentialsJSON is a service account key. Empty uses application default credentials.
	CredentialsJSON string
	// URLTTL is the lifetime of signed read URLs (default 15m).
	URLTTL time.Duration
}

type serviceAccountJSON struct {
	ClientEmail string `json:"client_email"`
	PrivateKey  string `json:"private_key"`
}

// GCSStore implements agents.PhotoStore.
type GCSStore struct {
	client *storage.Client
	bucket string
	ttl    time.Duration

	accessID   string
	privateKey []byte
	now        func() time.Time
}

var _ agents.PhotoStore = (*GCSStore)(nil)

// NewGCSStore opens a storage client for cfg.Bucket.
func NewGCSStore(ctx context.Context, cfg GCSConfig) (*GCSStore, error) {
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, errors.New("gcs bucket is required")
	}

	var opts []option.ClientOption
	s := &GCSStore{bucket: cfg.Bucket, ttl: cfg.URLTTL, now: time.Now}
	if s.ttl <= 0 {
		s.ttl = 15 * time.Minute
	}

	if creds := strings.TrimSpace(cfg.CredentialsJSON); creds != "" {
		var key serviceAccountJSON
		if err := json.Unmarshal([]byte(creds), &key); err != nil {
			return nil, fmt.Errorf("invalid GCS credentials: %w", err)
		}
		s.accessID = key.ClientEmail
		s.privateKey = []byte(strings.ReplaceAll(key.PrivateKey, `\n`, "\n"))
		opts = append(opts, option.WithCredentialsJSON([]byte(creds)))
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create gcs client: %w", err)
	}
	s.client = client
	return s, nil
}

// Close releases the client.
func (s *GCSStore) Close() error {
	return s.client.Close()
}

// Put uploads data to path.
func (s *GCSStore) Put(ctx context.Context, path, contentType string, data []byte) error {
	w := s.client.Bucket(s.bucket).Object(path).NewWriter(ctx)
	w.ContentType = contentType
	w.CacheControl = "private, max-age=0"

	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return fmt.Errorf("upload %s: %w", path, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finish upload %s: %w", path, err)
	}
	return nil
}

// Delete removes path. A missing object is not an error.
func (s *GCSStore) Delete(ctx context.Context, path string) error {
	err := s.client.Bucket(s.bucket).Object(path).Delete(ctx)
	if err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("delete %s: %w", path, err)
	}
	return nil
}

// URL returns a V4 signed GET URL valid for the configured TTL.
func (s *GCSStore) URL(_ context.Context, path string) (string, error) {
	opts := &storage.SignedURLOptions{
		Scheme:  storage.SigningSchemeV4,
		Method:  "GET",
		Expires: s.now().Add(s.ttl),
	}
	if s.accessID != "" {
		opts.GoogleAccessID = s.accessID
		opts.PrivateKey = s.privateKey
	}

	u, err := s.client.Bucket(s.bucket).SignedURL(path, opts)
	if err != nil {
		return "", fmt.Errorf("sign url %s: %w", path, err)
	}
	return u, nil
}
