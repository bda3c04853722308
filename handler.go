package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/google/uuid"

	"s3-to-onedrive/internal/graph"
)

type SharedFolderResolver interface {
	ResolveSharedFolder(ctx context.Context, name string) (graph.FolderRef, error)
}

type FileUploader interface {
	UploadFile(ctx context.Context, driveID, itemID, localPath, remoteName string) (*graph.Item, error)
}

type Handler struct {
	fetcher  ObjectFetcher
	resolver SharedFolderResolver
	uploader FileUploader
	config   Config
	logger   *slog.Logger

	now   func() time.Time
	newID func() string
}

// Stages of one invocation. They only move forward; any failing step ends
// in stageFailed.
type stage string

const (
	stageStart          stage = "start"
	stageDownloaded     stage = "downloaded"
	stageFolderResolved stage = "folder_resolved"
	stageUploaded       stage = "uploaded"
	stageDone           stage = "done"
	stageFailed         stage = "failed"
)

// invocation carries the values each step produces for the next one.
type invocation struct {
	object    S3ObjectInfo
	localPath string
	size      int64
	folder    graph.FolderRef
	item      *graph.Item
	stage     stage
}

type step struct {
	reaches stage
	run     func(ctx context.Context, inv *invocation) error
}

func NewHandler(config Config, sess *session.Session, logger *slog.Logger) *Handler {
	tokens := graph.NewRefreshTokenSource(graph.TokenConfig{
		ClientID:     config.ClientID,
		RefreshToken: config.RefreshToken,
		TokenURL:     config.TokenURL,
		Cache:        config.TokenCache,
	}, logger)
	client := graph.NewClient(config.GraphBaseURL, nil, tokens, logger)

	return newHandler(config, NewS3Fetcher(s3.New(sess), logger), client, client, logger)
}

func newHandler(config Config, fetcher ObjectFetcher, resolver SharedFolderResolver, uploader FileUploader, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}

	return &Handler{
		fetcher:  fetcher,
		resolver: resolver,
		uploader: uploader,
		config:   config,
		logger:   logger,
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

// HandleLambdaEvent copies the object named by the first record of event.
// Failures are reported in the Outcome; the returned error is always nil so
// the runtime does not redeliver the event.
func (h *Handler) HandleLambdaEvent(ctx context.Context, event events.S3Event) (Outcome, error) {
	if len(event.Records) > 1 {
		h.logger.Warn("notification has more than one record, only the first is processed",
			slog.Int("records", len(event.Records)))
	}

	obj, err := objectFromEvent(event)
	if err != nil {
		return h.fail(err), nil
	}

	return h.copyObject(ctx, obj), nil
}

// HandleS3URL copies a single object named by an s3://bucket/key URL. The key
// is taken literally.
func (h *Handler) HandleS3URL(ctx context.Context, url string) (Outcome, error) {
	bucket, key, err := ParseS3URL(url)
	if err != nil {
		return Outcome{}, fmt.Errorf("failed to parse S3 URL: %w", err)
	}

	return h.copyObject(ctx, S3ObjectInfo{Bucket: bucket, Key: key, RawKey: key}), nil
}

func (h *Handler) copyObject(ctx context.Context, obj S3ObjectInfo) Outcome {
	inv, err := h.process(ctx, obj)
	if err != nil {
		return h.fail(err)
	}

	attrs := []any{
		slog.String("bucket", obj.Bucket),
		slog.String("key", obj.Key),
		slog.String("folder", h.config.SharedFolderName),
		slog.Int64("size", inv.size),
	}
	if inv.item != nil {
		attrs = append(attrs, slog.String("item_id", inv.item.ID))
	}
	h.logger.Info("file copied", attrs...)

	return successOutcome(h.config.SharedFolderName)
}

func (h *Handler) fail(err error) Outcome {
	h.logger.Error("invocation failed",
		slog.String("kind", errorKind(err)),
		slog.String("error", err.Error()),
	)

	return failureOutcome(err)
}

// process runs the pipeline and stops at the first failing step. Nothing is
// retried or rolled back.
func (h *Handler) process(ctx context.Context, obj S3ObjectInfo) (*invocation, error) {
	inv := &invocation{object: obj, stage: stageStart}

	steps := []step{
		{reaches: stageDownloaded, run: h.download},
		{reaches: stageFolderResolved, run: h.resolve},
		{reaches: stageUploaded, run: h.upload},
	}

	for _, s := range steps {
		if err := s.run(ctx, inv); err != nil {
			h.logger.Debug("step failed",
				slog.String("stage", string(inv.stage)),
				slog.String("next", string(s.reaches)),
			)
			inv.stage = stageFailed

			return inv, err
		}

		inv.stage = s.reaches
		h.logger.Debug("step complete", slog.String("stage", string(inv.stage)))
	}

	h.removeScratch(inv.localPath)
	inv.stage = stageDone

	return inv, nil
}

func (h *Handler) download(ctx context.Context, inv *invocation) error {
	inv.localPath = h.scratchPath(inv.object.Key)

	n, err := h.fetcher.Download(ctx, inv.object.Bucket, inv.object.Key, inv.localPath)
	if err != nil {
		return err
	}

	info, err := os.Stat(inv.localPath)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrTransfer, err)
	}

	if info.Size() == 0 {
		return fmt.Errorf("%w: downloaded file s3://%s/%s is empty", ErrTransfer, inv.object.Bucket, inv.object.Key)
	}

	if info.Size() != n {
		h.logger.Warn("downloaded size mismatch",
			slog.Int64("copied", n),
			slog.Int64("on_disk", info.Size()),
		)
	}

	inv.size = info.Size()

	return nil
}

func (h *Handler) resolve(ctx context.Context, inv *invocation) error {
	ref, err := h.resolver.ResolveSharedFolder(ctx, h.config.SharedFolderName)
	if err != nil {
		return err
	}

	inv.folder = ref

	return nil
}

// upload names the remote file after the decoded object key.
func (h *Handler) upload(ctx context.Context, inv *invocation) error {
	item, err := h.uploader.UploadFile(ctx, inv.folder.DriveID, inv.folder.ItemID, inv.localPath, inv.object.Key)
	if err != nil {
		return err
	}

	inv.item = item

	return nil
}

// scratchPath returns a path that is unique per invocation and keeps the
// object's extension.
func (h *Handler) scratchPath(key string) string {
	id := h.newID()
	if len(id) > 8 {
		id = id[:8]
	}

	name := fmt.Sprintf("%d-%s%s", h.now().UnixNano(), id, path.Ext(key))

	return filepath.Join(h.config.ScratchDir, name)
}

// removeScratch deletes the downloaded copy once it has been uploaded. A
// failed invocation keeps its file.
func (h *Handler) removeScratch(localPath string) {
	if localPath == "" {
		return
	}

	if err := os.Remove(localPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		h.logger.Warn("failed to remove scratch file",
			slog.String("path", localPath),
			slog.String("error", err.Error()),
		)
	}
}
