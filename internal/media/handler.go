package media

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/glizzus/encore/internal/datalayer"
	"github.com/glizzus/encore/internal/transcode"
)

var (
	ErrNoMedia  = errors.New("no video found at link")
	ErrTooLarge = errors.New("video does not fit under the upload limit")
)

// Compressor fits a file under a byte ceiling.
type Compressor interface {
	Compress(ctx context.Context, inputPath string, targetSize int64) (*transcode.Result, error)
}

type Scratch interface {
	Path(prefix, ext string) (string, error)
}

// Delivery is a processed link ready to post. Exactly one of Path and URL is
// set: Path is a file to attach, URL a download link for files that would not
// fit. Call Cleanup once the delivery has been sent.
type Delivery struct {
	Link    Link
	Path    string
	URL     string
	Size    int64
	Outcome transcode.Outcome
	files   []string
}

func (d *Delivery) Cleanup() error {
	var errs []error
	for _, f := range d.files {
		if err := os.Remove(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	d.files = nil
	return errors.Join(errs...)
}

type Options struct {
	// TargetSize is the upload ceiling in bytes.
	TargetSize int64
	// Blobs receives files that cannot be made to fit. When nil such files
	// fail with ErrTooLarge.
	Blobs      datalayer.BlobStorage
	LinkExpiry time.Duration
	Logger     *slog.Logger
}

type Handler struct {
	downloader Downloader
	compressor Compressor
	scratch    Scratch
	opts       Options
	logger     *slog.Logger
}

func NewHandler(downloader Downloader, compressor Compressor, scratch Scratch, opts Options) *Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		downloader: downloader,
		compressor: compressor,
		scratch:    scratch,
		opts:       opts,
		logger:     logger,
	}
}

// deliverable reports whether result can be uploaded as is. Fits inside the
// pipeline's tolerance band count.
func deliverable(result *transcode.Result, target int64) bool {
	switch result.Outcome {
	case transcode.OutcomeUnchanged, transcode.OutcomeFit:
		return true
	}
	return result.Size <= target
}

// Process downloads the video behind link and fits it under the upload
// ceiling.
func (h *Handler) Process(ctx context.Context, link Link) (*Delivery, error) {
	logger := h.logger.With("url", link.URL, "platform", link.Platform.String())

	dest, err := h.scratch.Path(link.Platform.String(), ".mp4")
	if err != nil {
		return nil, err
	}
	d := &Delivery{Link: link, files: []string{dest}}

	if err := h.downloader.Download(ctx, canonical(link), dest); err != nil {
		_ = d.Cleanup()
		return nil, fmt.Errorf("%w: %w", ErrNoMedia, err)
	}
	if _, err := os.Stat(dest); err != nil {
		_ = d.Cleanup()
		return nil, fmt.Errorf("%w: downloader produced no file", ErrNoMedia)
	}

	result, err := h.compressor.Compress(ctx, dest, h.opts.TargetSize)
	if err != nil {
		_ = d.Cleanup()
		return nil, fmt.Errorf("failed to compress video: %w", err)
	}
	if result.Path != dest {
		d.files = append(d.files, result.Path)
	}
	d.Size = result.Size
	d.Outcome = result.Outcome

	logger.Info("processed media link",
		"outcome", result.Outcome.String(),
		"size", result.Size,
		"target", h.opts.TargetSize,
	)

	if deliverable(result, h.opts.TargetSize) {
		d.Path = result.Path
		return d, nil
	}

	if h.opts.Blobs == nil {
		_ = d.Cleanup()
		return nil, fmt.Errorf("%w: %d bytes against a limit of %d", ErrTooLarge, result.Size, h.opts.TargetSize)
	}

	key := filepath.Base(result.Path)
	if err := h.opts.Blobs.PutFile(ctx, key, result.Path, "video/mp4"); err != nil {
		_ = d.Cleanup()
		return nil, err
	}
	presigned, err := h.opts.Blobs.PresignedLink(ctx, key, h.opts.LinkExpiry)
	if err != nil {
		_ = d.Cleanup()
		return nil, err
	}
	logger.Info("uploaded oversized media", "key", key)
	d.URL = presigned
	return d, nil
}
