package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/gabriel-vasile/mimetype"
)

type S3Api interface {
	GetObjectWithContext(ctx aws.Context, input *s3.GetObjectInput, opts ...request.Option) (*s3.GetObjectOutput, error)
}

// ObjectFetcher copies one S3 object to a local path and reports how many
// bytes were written.
type ObjectFetcher interface {
	Download(ctx context.Context, bucket, key, destPath string) (int64, error)
}

type S3Fetcher struct {
	s3Client S3Api
	logger   *slog.Logger
}

func NewS3Fetcher(s3Client S3Api, logger *slog.Logger) *S3Fetcher {
	if logger == nil {
		logger = slog.Default()
	}

	return &S3Fetcher{s3Client: s3Client, logger: logger}
}

// Download streams s3://bucket/key into a new file at destPath. It returns
// only after the file has been synced and closed, and reports exactly one
// error whichever side of the copy fails first. destPath must not exist.
func (f *S3Fetcher) Download(ctx context.Context, bucket, key, destPath string) (int64, error) {
	f.logger.Info("downloading object",
		slog.String("bucket", bucket),
		slog.String("key", key),
		slog.String("path", destPath),
	)

	obj, err := f.s3Client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return 0, fmt.Errorf("%w: failed to get object s3://%s/%s: %w", ErrTransfer, bucket, key, err)
	}
	defer obj.Body.Close()

	file, err := os.OpenFile(destPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return 0, fmt.Errorf("%w: creating %s: %w", ErrTransfer, destPath, err)
	}

	n, err := io.Copy(file, obj.Body)
	if err == nil {
		err = file.Sync()
	}

	// Close must run even after a failed copy; its error only counts if
	// nothing failed before it.
	if closeErr := file.Close(); err == nil {
		err = closeErr
	}

	if err != nil {
		return n, fmt.Errorf("%w: writing s3://%s/%s to %s: %w", ErrTransfer, bucket, key, destPath, err)
	}

	f.logger.Info("object downloaded",
		slog.String("path", destPath),
		slog.Int64("size", n),
		slog.String("content_type", detectContentType(destPath)),
	)

	return n, nil
}

// detectContentType sniffs the downloaded file for diagnostics. The upload
// itself is always sent as octet-stream.
func detectContentType(path string) string {
	mt, err := mimetype.DetectFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "missing"
		}

		return "unknown"
	}

	return mt.String()
}
