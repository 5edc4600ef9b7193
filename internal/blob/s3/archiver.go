package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/nvoloshin/swapbot/internal/domain"
)

// multipartThreshold is the serialized payload size above which the archiver
// switches from a single PutObject to a multipart upload.
const multipartThreshold = 8 * 1024 * 1024

// ---------------------------------------------------------------------------
// Narrow interfaces required by the archiver.
//
// The archiver only needs time-ranged queries over settled ledger rows and
// the ability to delete what it has archived. The Postgres transaction store
// satisfies this implicitly.
// ---------------------------------------------------------------------------

// TransactionArchiveStore provides access to settled transactions for
// archival purposes. Settled means confirmed or failed; unconfirmed rows are
// never archived because their final status is still unknown.
type TransactionArchiveStore interface {
	// ListSettledBefore returns all settled transactions created strictly
	// before the given cutoff time.
	ListSettledBefore(ctx context.Context, before time.Time) ([]domain.TransactionRecord, error)

	// DeleteSettledBefore removes all settled transactions created strictly
	// before the cutoff and returns the number of rows deleted.
	DeleteSettledBefore(ctx context.Context, before time.Time) (int64, error)
}

// archiveUploader is the subset of the Writer used by the archiver. Small
// payloads go through Put; large ones through the multipart path.
type archiveUploader interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
	PutMultipart(ctx context.Context, path string, data io.Reader, partSize int64) error
}

// ---------------------------------------------------------------------------
// ArchiveImpl
// ---------------------------------------------------------------------------

// ArchiveImpl implements domain.Archiver by exporting settled ledger rows to
// JSONL in object storage and pruning them from the primary store.
//
// Rows are deleted only after the uploaded object has been verified to
// exist, so an upload failure leaves the ledger untouched.
type ArchiveImpl struct {
	uploader archiveUploader
	reader   domain.BlobReader
	txs      TransactionArchiveStore
	audit    domain.AuditStore
}

var _ domain.Archiver = (*ArchiveImpl)(nil)

// NewArchiver creates a new ArchiveImpl.
func NewArchiver(
	uploader archiveUploader,
	reader domain.BlobReader,
	txs TransactionArchiveStore,
	audit domain.AuditStore,
) *ArchiveImpl {
	return &ArchiveImpl{
		uploader: uploader,
		reader:   reader,
		txs:      txs,
		audit:    audit,
	}
}

// ArchiveTransactions exports all settled transactions created before the
// cutoff to archive/transactions/YYYY-MM.jsonl, verifies the upload, deletes
// the exported rows, and records the run in the audit log. The count of
// archived rows is returned.
func (a *ArchiveImpl) ArchiveTransactions(ctx context.Context, before time.Time) (int64, error) {
	records, err := a.txs.ListSettledBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive transactions query: %w", err)
	}
	if len(records) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(records)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive transactions marshal: %w", err)
	}

	path := archivePath("transactions", before)
	if err := a.upload(ctx, path, buf); err != nil {
		return 0, fmt.Errorf("s3blob: archive transactions upload: %w", err)
	}

	exists, err := a.reader.Exists(ctx, path)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive transactions verify: %w", err)
	}
	if !exists {
		return 0, fmt.Errorf("s3blob: archive transactions verify: object %s missing after upload", path)
	}

	deleted, err := a.txs.DeleteSettledBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive transactions prune: %w", err)
	}

	if err := a.audit.Log(ctx, "archive.transactions", map[string]any{
		"path":    path,
		"count":   int64(len(records)),
		"deleted": deleted,
		"before":  before.Format(time.RFC3339),
	}); err != nil {
		return int64(len(records)), fmt.Errorf("s3blob: archive transactions audit log: %w", err)
	}

	return int64(len(records)), nil
}

// ---------------------------------------------------------------------------
// helpers
// ---------------------------------------------------------------------------

// upload picks the single-shot or multipart path based on payload size.
func (a *ArchiveImpl) upload(ctx context.Context, path string, buf []byte) error {
	if int64(len(buf)) >= multipartThreshold {
		return a.uploader.PutMultipart(ctx, path, bytes.NewReader(buf), minPartSize)
	}
	return a.uploader.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson")
}

// archivePath builds the S3 key for an archive file, partitioned by the
// year-month of the cutoff time.
//
//	archive/transactions/2026-08.jsonl
func archivePath(kind string, before time.Time) string {
	return fmt.Sprintf("archive/%s/%s.jsonl", kind, before.Format("2006-01"))
}

// marshalJSONL serialises a slice of values as newline-delimited JSON (JSONL).
// Each element is marshalled as a single compact JSON line followed by '\n'.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}
