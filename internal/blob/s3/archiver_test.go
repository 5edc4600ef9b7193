package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/nvoloshin/swapbot/internal/domain"
)

type fakeUploader struct {
	puts       map[string][]byte
	multiparts int
	err        error
}

func newFakeUploader() *fakeUploader {
	return &fakeUploader{puts: make(map[string][]byte)}
}

func (f *fakeUploader) Put(_ context.Context, path string, data io.Reader, _ string) error {
	if f.err != nil {
		return f.err
	}
	buf, _ := io.ReadAll(data)
	f.puts[path] = buf
	return nil
}

func (f *fakeUploader) PutMultipart(_ context.Context, path string, data io.Reader, _ int64) error {
	if f.err != nil {
		return f.err
	}
	f.multiparts++
	buf, _ := io.ReadAll(data)
	f.puts[path] = buf
	return nil
}

type fakeReaderStore struct {
	existing map[string]bool
}

func (f *fakeReaderStore) Get(context.Context, string) (io.ReadCloser, error) {
	return nil, domain.ErrNotFound
}

func (f *fakeReaderStore) List(context.Context, string) ([]domain.BlobInfo, error) {
	return nil, nil
}

func (f *fakeReaderStore) Exists(_ context.Context, path string) (bool, error) {
	return f.existing[path], nil
}

type fakeTxArchiveStore struct {
	records []domain.TransactionRecord
	deleted int64
	listErr error
}

func (f *fakeTxArchiveStore) ListSettledBefore(context.Context, time.Time) ([]domain.TransactionRecord, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.records, nil
}

func (f *fakeTxArchiveStore) DeleteSettledBefore(context.Context, time.Time) (int64, error) {
	f.deleted = int64(len(f.records))
	return f.deleted, nil
}

type fakeAudit struct {
	actions []string
}

func (f *fakeAudit) Log(_ context.Context, action string, _ map[string]any) error {
	f.actions = append(f.actions, action)
	return nil
}

func (f *fakeAudit) List(context.Context, domain.ListOpts) ([]domain.AuditEntry, error) {
	return nil, nil
}

func settledRecord(id string, status domain.OutcomeStatus, at time.Time) domain.TransactionRecord {
	return domain.TransactionRecord{
		ID:          id,
		WalletID:    "wallet-1",
		Kind:        domain.TxKindBuy,
		InputMint:   "So11111111111111111111111111111111111111112",
		OutputMint:  "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v",
		InAmountRaw: 1_000_000_000,
		Signature:   "sig-" + id,
		Status:      status,
		CreatedAt:   at,
	}
}

func TestArchiveTransactionsUploadsVerifiesAndPrunes(t *testing.T) {
	cutoff := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	wantPath := "archive/transactions/2026-08.jsonl"

	uploader := newFakeUploader()
	reader := &fakeReaderStore{existing: map[string]bool{wantPath: true}}
	txs := &fakeTxArchiveStore{records: []domain.TransactionRecord{
		settledRecord("a", domain.StatusSucceeded, cutoff.Add(-48*time.Hour)),
		settledRecord("b", domain.StatusFailed, cutoff.Add(-24*time.Hour)),
	}}
	audit := &fakeAudit{}

	arch := NewArchiver(uploader, reader, txs, audit)

	count, err := arch.ArchiveTransactions(context.Background(), cutoff)
	if err != nil {
		t.Fatalf("ArchiveTransactions: %v", err)
	}
	if count != 2 {
		t.Fatalf("count = %d, want 2", count)
	}

	body, ok := uploader.puts[wantPath]
	if !ok {
		t.Fatalf("no upload at %s; got %v", wantPath, uploader.puts)
	}

	lines := strings.Split(strings.TrimSpace(string(body)), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d JSONL lines, want 2", len(lines))
	}
	var first domain.TransactionRecord
	if err := json.Unmarshal([]byte(lines[0]), &first); err != nil {
		t.Fatalf("unmarshal first line: %v", err)
	}
	if first.ID != "a" || first.Status != domain.StatusSucceeded {
		t.Errorf("first line = %+v, want record a succeeded", first)
	}

	if txs.deleted != 2 {
		t.Errorf("deleted = %d, want 2", txs.deleted)
	}
	if len(audit.actions) != 1 || audit.actions[0] != "archive.transactions" {
		t.Errorf("audit actions = %v", audit.actions)
	}
}

func TestArchiveTransactionsNothingToArchive(t *testing.T) {
	uploader := newFakeUploader()
	arch := NewArchiver(uploader, &fakeReaderStore{}, &fakeTxArchiveStore{}, &fakeAudit{})

	count, err := arch.ArchiveTransactions(context.Background(), time.Now())
	if err != nil {
		t.Fatalf("ArchiveTransactions: %v", err)
	}
	if count != 0 {
		t.Fatalf("count = %d, want 0", count)
	}
	if len(uploader.puts) != 0 {
		t.Errorf("unexpected uploads: %v", uploader.puts)
	}
}

func TestArchiveTransactionsKeepsRowsWhenUploadFails(t *testing.T) {
	uploader := newFakeUploader()
	uploader.err = errors.New("bucket unavailable")
	txs := &fakeTxArchiveStore{records: []domain.TransactionRecord{
		settledRecord("a", domain.StatusSucceeded, time.Now().Add(-time.Hour)),
	}}

	arch := NewArchiver(uploader, &fakeReaderStore{}, txs, &fakeAudit{})

	if _, err := arch.ArchiveTransactions(context.Background(), time.Now()); err == nil {
		t.Fatal("expected upload error")
	}
	if txs.deleted != 0 {
		t.Errorf("rows were pruned after a failed upload")
	}
}

func TestArchiveTransactionsKeepsRowsWhenVerifyFails(t *testing.T) {
	uploader := newFakeUploader()
	txs := &fakeTxArchiveStore{records: []domain.TransactionRecord{
		settledRecord("a", domain.StatusSucceeded, time.Now().Add(-time.Hour)),
	}}
	// Reader reports the object missing even though the upload "succeeded".
	arch := NewArchiver(uploader, &fakeReaderStore{existing: map[string]bool{}}, txs, &fakeAudit{})

	if _, err := arch.ArchiveTransactions(context.Background(), time.Now()); err == nil {
		t.Fatal("expected verify error")
	}
	if txs.deleted != 0 {
		t.Errorf("rows were pruned without a verified archive")
	}
}

func TestUploadSwitchesToMultipartForLargePayloads(t *testing.T) {
	uploader := newFakeUploader()
	arch := NewArchiver(uploader, &fakeReaderStore{}, &fakeTxArchiveStore{}, &fakeAudit{})

	small := bytes.Repeat([]byte("x"), 128)
	if err := arch.upload(context.Background(), "small", small); err != nil {
		t.Fatalf("upload small: %v", err)
	}
	if uploader.multiparts != 0 {
		t.Fatalf("small payload used multipart")
	}

	large := bytes.Repeat([]byte("x"), multipartThreshold)
	if err := arch.upload(context.Background(), "large", large); err != nil {
		t.Fatalf("upload large: %v", err)
	}
	if uploader.multiparts != 1 {
		t.Fatalf("large payload did not use multipart")
	}
}
