// Package blobstore stores the images captured during a screening. It
// defines the BlobStore contract, an in-memory implementation and the Echo
// handlers for multipart upload, listing, download and deletion.
package blobstore

import (
	"bytes"
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	ErrBlobNotFound       = errors.New("blob not found")
	ErrFileTooLarge       = errors.New("file exceeds maximum allowed size")
	ErrInvalidContentType = errors.New("content type is not allowed")
	ErrMissingFileName    = errors.New("file name is required")
	ErrMissingType        = errors.New("attachment type is required")
)

// MaxFileSize is the largest accepted image, 20 MB.
const MaxFileSize = 20 * 1024 * 1024

// AllowedContentTypes lists the image formats field cameras produce.
var AllowedContentTypes = map[string]bool{
	"image/png":  true,
	"image/jpeg": true,
	"image/webp": true,
	"image/heic": true,
}

// BlobMetadata describes a stored attachment. Type tags what the image
// shows, e.g. "anterior_right".
type BlobMetadata struct {
	ID             string    `json:"id"`
	RegistrationID int64     `json:"registration_id"`
	Type           string    `json:"type"`
	FileName       string    `json:"file_name"`
	ContentType    string    `json:"content_type"`
	Size           int64     `json:"size"`
	Hash           string    `json:"hash"`
	CreatedAt      time.Time `json:"created_at"`
	CreatedBy      int64     `json:"created_by,omitempty"`
}

// BlobStore keeps at most one attachment per registration and type. A new
// upload with the same pair replaces the previous one.
type BlobStore interface {
	Put(ctx context.Context, meta BlobMetadata, content io.Reader) (*BlobMetadata, error)
	Get(ctx context.Context, id string) (io.ReadCloser, *BlobMetadata, error)
	GetMetadata(ctx context.Context, id string) (*BlobMetadata, error)
	Delete(ctx context.Context, id string) error
	ListByRegistration(ctx context.Context, registrationID int64) ([]*BlobMetadata, error)
}

// Prepare validates meta, reads content and fills in the id, size, hash and
// creation time. Store implementations call it before persisting.
func Prepare(meta BlobMetadata, content io.Reader) (BlobMetadata, []byte, error) {
	if meta.FileName == "" {
		return meta, nil, ErrMissingFileName
	}
	if meta.Type == "" {
		return meta, nil, ErrMissingType
	}
	if !AllowedContentTypes[meta.ContentType] {
		return meta, nil, fmt.Errorf("%w: %s", ErrInvalidContentType, meta.ContentType)
	}

	data, err := io.ReadAll(io.LimitReader(content, MaxFileSize+1))
	if err != nil {
		return meta, nil, fmt.Errorf("reading content: %w", err)
	}
	if int64(len(data)) > MaxFileSize {
		return meta, nil, ErrFileTooLarge
	}

	h := sha256.Sum256(data)
	meta.ID = uuid.NewString()
	meta.Size = int64(len(data))
	meta.Hash = fmt.Sprintf("%x", h)
	meta.CreatedAt = time.Now().UTC()
	return meta, data, nil
}

type storedBlob struct {
	metadata BlobMetadata
	content  []byte
}

// InMemoryBlobStore is a thread-safe BlobStore for the sandbox and tests.
type InMemoryBlobStore struct {
	mu    sync.RWMutex
	blobs map[string]*storedBlob
}

func NewInMemoryBlobStore() *InMemoryBlobStore {
	return &InMemoryBlobStore{
		blobs: make(map[string]*storedBlob),
	}
}

func (s *InMemoryBlobStore) Put(_ context.Context, meta BlobMetadata, content io.Reader) (*BlobMetadata, error) {
	meta, data, err := Prepare(meta, content)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	for id, b := range s.blobs {
		if b.metadata.RegistrationID == meta.RegistrationID && b.metadata.Type == meta.Type {
			delete(s.blobs, id)
		}
	}
	s.blobs[meta.ID] = &storedBlob{metadata: meta, content: data}
	s.mu.Unlock()

	out := meta
	return &out, nil
}

func (s *InMemoryBlobStore) Get(_ context.Context, id string) (io.ReadCloser, *BlobMetadata, error) {
	s.mu.RLock()
	blob, ok := s.blobs[id]
	s.mu.RUnlock()

	if !ok {
		return nil, nil, ErrBlobNotFound
	}

	meta := blob.metadata
	return io.NopCloser(bytes.NewReader(blob.content)), &meta, nil
}

func (s *InMemoryBlobStore) GetMetadata(_ context.Context, id string) (*BlobMetadata, error) {
	s.mu.RLock()
	blob, ok := s.blobs[id]
	s.mu.RUnlock()

	if !ok {
		return nil, ErrBlobNotFound
	}

	meta := blob.metadata
	return &meta, nil
}

func (s *InMemoryBlobStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.blobs[id]; !ok {
		return ErrBlobNotFound
	}
	delete(s.blobs, id)
	return nil
}

// ListByRegistration returns the registration's attachments ordered by type.
func (s *InMemoryBlobStore) ListByRegistration(_ context.Context, registrationID int64) ([]*BlobMetadata, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := []*BlobMetadata{}
	for _, b := range s.blobs {
		if b.metadata.RegistrationID != registrationID {
			continue
		}
		m := b.metadata
		matched = append(matched, &m)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].Type < matched[j].Type })
	return matched, nil
}
