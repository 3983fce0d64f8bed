package media_test

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/glizzus/encore/internal/datalayer"
	"github.com/glizzus/encore/internal/media"
	"github.com/glizzus/encore/internal/scratch"
	"github.com/glizzus/encore/internal/transcode"
)

type fakeDownloader struct {
	size int64
	err  error
	urls []string
}

func (d *fakeDownloader) Download(_ context.Context, rawURL, dest string) error {
	d.urls = append(d.urls, rawURL)
	if d.err != nil {
		return d.err
	}
	f, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Truncate(d.size)
}

// tolerance mirrors the pipeline's default fit band.
const tolerance = 0.05

// fakeCompressor writes an output of a fixed size, or hands the input back
// when it already fits.
type fakeCompressor struct {
	outputSize int64
}

func (c *fakeCompressor) Compress(_ context.Context, in string, target int64) (*transcode.Result, error) {
	info, err := os.Stat(in)
	if err != nil {
		return nil, err
	}
	if info.Size() <= target {
		return &transcode.Result{Path: in, Size: info.Size(), Outcome: transcode.OutcomeUnchanged}, nil
	}
	if c.outputSize >= info.Size() {
		return &transcode.Result{Path: in, Size: info.Size(), Outcome: transcode.OutcomeOriginal}, nil
	}

	out := in + ".fit.mp4"
	f, err := os.Create(out)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	if err := f.Truncate(c.outputSize); err != nil {
		return nil, err
	}
	outcome := transcode.OutcomeFit
	if float64(c.outputSize) > float64(target)*(1+tolerance) {
		outcome = transcode.OutcomeDegraded
	}
	return &transcode.Result{Path: out, Size: c.outputSize, Outcome: outcome}, nil
}

type fakeBlobs struct {
	keys []string
}

func (b *fakeBlobs) Put(context.Context, string, io.Reader, datalayer.PutOptions) error {
	return nil
}

func (b *fakeBlobs) PutFile(_ context.Context, key, _, _ string) error {
	b.keys = append(b.keys, key)
	return nil
}

func (b *fakeBlobs) PresignedLink(_ context.Context, key string, _ time.Duration) (string, error) {
	return "https://blobs.example/" + key + "?X-Amz-Signature=abc", nil
}

const mb = 1 << 20

func newScratch(t *testing.T) *scratch.Dir {
	t.Helper()
	dir, err := scratch.New(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("scratch.New() error: %v", err)
	}
	return dir
}

func entries(t *testing.T, dir string) int {
	t.Helper()
	list, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir() error: %v", err)
	}
	return len(list)
}

func TestProcess(t *testing.T) {
	twitter := media.Link{URL: "https://x.com/u/status/1", Platform: media.PlatformTwitter}

	tests := []struct {
		name         string
		downloadSize int64
		outputSize   int64
		blobs        bool
		wantOutcome  transcode.Outcome
		wantURL      bool
		wantErr      error
	}{
		{name: "already small", downloadSize: 2 * mb, wantOutcome: transcode.OutcomeUnchanged},
		{name: "compressed to fit", downloadSize: 30 * mb, outputSize: 6 * mb, wantOutcome: transcode.OutcomeFit},
		{name: "fit inside the tolerance band", downloadSize: 30 * mb, outputSize: 7 * mb * 103 / 100, wantOutcome: transcode.OutcomeFit},
		{name: "fit inside the tolerance band ignores storage", downloadSize: 30 * mb, outputSize: 7 * mb * 103 / 100, blobs: true, wantOutcome: transcode.OutcomeFit},
		{name: "too large without storage", downloadSize: 30 * mb, outputSize: 10 * mb, wantErr: media.ErrTooLarge},
		{name: "too large with storage", downloadSize: 30 * mb, outputSize: 10 * mb, blobs: true, wantOutcome: transcode.OutcomeDegraded, wantURL: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := newScratch(t)
			downloader := &fakeDownloader{size: tt.downloadSize}
			opts := media.Options{TargetSize: 7 * mb, LinkExpiry: time.Hour}
			blobs := &fakeBlobs{}
			if tt.blobs {
				opts.Blobs = blobs
			}
			h := media.NewHandler(downloader, &fakeCompressor{outputSize: tt.outputSize}, dir, opts)

			d, err := h.Process(t.Context(), twitter)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Process() error = %v, want %v", err, tt.wantErr)
				}
				if n := entries(t, dir.Root()); n != 0 {
					t.Errorf("expected an empty scratch dir after failure, found %d entries", n)
				}
				return
			}
			if err != nil {
				t.Fatalf("Process() error: %v", err)
			}

			if downloader.urls[0] != "https://twitter.com/u/status/1" {
				t.Errorf("expected the x.com link to be rewritten, got %q", downloader.urls[0])
			}
			if d.Outcome != tt.wantOutcome {
				t.Errorf("outcome = %v, want %v", d.Outcome, tt.wantOutcome)
			}
			if tt.wantURL {
				if d.URL == "" || d.Path != "" {
					t.Errorf("expected a link delivery, got %+v", d)
				}
				if len(blobs.keys) != 1 || filepath.Ext(blobs.keys[0]) != ".mp4" {
					t.Errorf("unexpected uploads %v", blobs.keys)
				}
			} else {
				if d.Path == "" || d.URL != "" {
					t.Errorf("expected a file delivery, got %+v", d)
				}
				if _, err := os.Stat(d.Path); err != nil {
					t.Errorf("delivery file missing: %v", err)
				}
			}

			if err := d.Cleanup(); err != nil {
				t.Fatalf("Cleanup() error: %v", err)
			}
			if n := entries(t, dir.Root()); n != 0 {
				t.Errorf("expected Cleanup to empty the scratch dir, found %d entries", n)
			}
		})
	}
}

func TestProcessDownloadFailure(t *testing.T) {
	dir := newScratch(t)
	h := media.NewHandler(&fakeDownloader{err: errors.New("Unsupported URL")}, &fakeCompressor{}, dir, media.Options{TargetSize: 7 * mb})

	_, err := h.Process(t.Context(), media.Link{URL: "https://www.tiktok.com/@u/video/1", Platform: media.PlatformTikTok})
	if !errors.Is(err, media.ErrNoMedia) {
		t.Errorf("Process() error = %v, want ErrNoMedia", err)
	}
	if n := entries(t, dir.Root()); n != 0 {
		t.Errorf("expected an empty scratch dir, found %d entries", n)
	}
}
