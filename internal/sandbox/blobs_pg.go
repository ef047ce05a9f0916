package sandbox

import (
	"bytes"
	"context"
	"io"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/eyescreen/screening/internal/platform/blobstore"
)

// PGBlobStore keeps attachment bytes in the attachments table.
type PGBlobStore struct {
	pool *pgxpool.Pool
}

func NewPGBlobStore(pool *pgxpool.Pool) *PGBlobStore {
	return &PGBlobStore{pool: pool}
}

const blobColumns = `id::text, registration_id, type, file_name, content_type, size, hash, created_at, COALESCE(created_by, 0)`

func scanBlob(row pgx.Row, extra ...interface{}) (*blobstore.BlobMetadata, error) {
	var m blobstore.BlobMetadata
	dest := append([]interface{}{
		&m.ID, &m.RegistrationID, &m.Type, &m.FileName, &m.ContentType, &m.Size, &m.Hash, &m.CreatedAt, &m.CreatedBy,
	}, extra...)
	if err := row.Scan(dest...); err != nil {
		if err == pgx.ErrNoRows {
			return nil, blobstore.ErrBlobNotFound
		}
		return nil, err
	}
	return &m, nil
}

func (s *PGBlobStore) Put(ctx context.Context, meta blobstore.BlobMetadata, content io.Reader) (*blobstore.BlobMetadata, error) {
	meta, data, err := blobstore.Prepare(meta, content)
	if err != nil {
		return nil, err
	}
	var createdBy *int64
	if meta.CreatedBy != 0 {
		createdBy = &meta.CreatedBy
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO attachments (id, registration_id, type, file_name, content_type, size, hash, content, created_at, created_by)
		VALUES ($1::uuid, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (registration_id, type) DO UPDATE SET
			id = EXCLUDED.id, file_name = EXCLUDED.file_name, content_type = EXCLUDED.content_type,
			size = EXCLUDED.size, hash = EXCLUDED.hash, content = EXCLUDED.content,
			created_at = EXCLUDED.created_at, created_by = EXCLUDED.created_by`,
		meta.ID, meta.RegistrationID, meta.Type, meta.FileName, meta.ContentType,
		meta.Size, meta.Hash, data, meta.CreatedAt, createdBy)
	if err != nil {
		return nil, err
	}
	return &meta, nil
}

func (s *PGBlobStore) Get(ctx context.Context, id string) (io.ReadCloser, *blobstore.BlobMetadata, error) {
	var content []byte
	meta, err := scanBlob(s.pool.QueryRow(ctx,
		`SELECT `+blobColumns+`, content FROM attachments WHERE id::text = $1`, id), &content)
	if err != nil {
		return nil, nil, err
	}
	return io.NopCloser(bytes.NewReader(content)), meta, nil
}

func (s *PGBlobStore) GetMetadata(ctx context.Context, id string) (*blobstore.BlobMetadata, error) {
	return scanBlob(s.pool.QueryRow(ctx, `SELECT `+blobColumns+` FROM attachments WHERE id::text = $1`, id))
}

func (s *PGBlobStore) Delete(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM attachments WHERE id::text = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return blobstore.ErrBlobNotFound
	}
	return nil
}

func (s *PGBlobStore) ListByRegistration(ctx context.Context, registrationID int64) ([]*blobstore.BlobMetadata, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+blobColumns+` FROM attachments WHERE registration_id = $1 ORDER BY type`, registrationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []*blobstore.BlobMetadata{}
	for rows.Next() {
		m, err := scanBlob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

var _ blobstore.BlobStore = (*PGBlobStore)(nil)
