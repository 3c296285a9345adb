// Package archive uploads merged documents to Cloud Storage as
// <payer>/<invoice>/<filename>.
package archive

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"time"

	"cloud.google.com/go/storage"

	"github.com/joseph-ayodele/eps-docsorter/internal/group"
)

// Bucket opens object writers; *storage.BucketHandle satisfies it through GCSBucket.
type Bucket interface {
	NewWriter(ctx context.Context, object string) io.WriteCloser
}

// GCSBucket adapts a Cloud Storage bucket handle.
type GCSBucket struct {
	Handle *storage.BucketHandle
}

func (b GCSBucket) NewWriter(ctx context.Context, object string) io.WriteCloser {
	w := b.Handle.Object(object).NewWriter(ctx)
	w.ContentType = "application/pdf"
	return w
}

type Uploader struct {
	bucket     Bucket
	timeout    time.Duration
	maxRetries int
	backoff    time.Duration
	logger     *slog.Logger
}

type Option func(*Uploader)

func WithTimeout(d time.Duration) Option {
	return func(u *Uploader) {
		if d > 0 {
			u.timeout = d
		}
	}
}

func WithRetries(n int, backoff time.Duration) Option {
	return func(u *Uploader) {
		if n > 0 {
			u.maxRetries = n
		}
		if backoff > 0 {
			u.backoff = backoff
		}
	}
}

func NewUploader(bucket Bucket, logger *slog.Logger, opts ...Option) *Uploader {
	if logger == nil {
		logger = slog.Default()
	}
	u := &Uploader{bucket: bucket, timeout: 50 * time.Second, maxRetries: 4, backoff: time.Second, logger: logger}
	for _, o := range opts {
		o(u)
	}
	return u
}

// NewGCS creates an Uploader for bucketName using default credentials.
// The returned close func releases the storage client.
func NewGCS(ctx context.Context, bucketName string, logger *slog.Logger, opts ...Option) (*Uploader, func() error, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("storage client: %w", err)
	}
	return NewUploader(GCSBucket{Handle: client.Bucket(bucketName)}, logger, opts...), client.Close, nil
}

// ObjectName is where doc is stored in the bucket.
func ObjectName(payer string, doc group.MergedDocument) string {
	return path.Join(payer, doc.Invoice, filepath.Base(doc.Path))
}

// Upload implements pipeline.Archiver, retrying with exponential backoff.
func (u *Uploader) Upload(ctx context.Context, payer string, doc group.MergedDocument) error {
	object := ObjectName(payer, doc)
	backoff := u.backoff
	var lastErr error

	for i := 0; i < u.maxRetries; i++ {
		err := u.uploadOnce(ctx, doc.Path, object)
		if err == nil {
			u.logger.Info("document archived", "path", doc.Path, "object", object)
			return nil
		}
		lastErr = err
		u.logger.Warn("upload failed, will retry",
			"object", object,
			"attempt", i+1,
			"max_retries", u.maxRetries,
			"backoff", backoff.String(),
			"error", err,
		)
		if i == u.maxRetries-1 {
			break
		}
		select {
		case <-time.After(backoff):
			backoff *= 2
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return fmt.Errorf("upload %s after %d attempts: %w", object, u.maxRetries, lastErr)
}

func (u *Uploader) uploadOnce(ctx context.Context, localPath, object string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("could not open local file %s: %w", localPath, err)
	}
	defer f.Close()

	writeCtx, cancel := context.WithTimeout(ctx, u.timeout)
	defer cancel()

	w := u.bucket.NewWriter(writeCtx, object)
	if _, err := io.Copy(w, f); err != nil {
		_ = w.Close()
		return fmt.Errorf("copy to bucket: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finalize upload: %w", err)
	}
	return nil
}
