package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
)

var ErrDownloadTooLarge = errors.New("download exceeds size limit")

// HTTPClient is an abstraction for making HTTP requests.
// The implementation is usually Go's stdlib http.Client.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// HTTPDownloader fetches direct file URLs such as Discord attachments.
type HTTPDownloader struct {
	Client HTTPClient
	// MaxSize caps the download in bytes. Zero means no limit.
	MaxSize int64
}

var _ Downloader = (*HTTPDownloader)(nil)

func (d *HTTPDownloader) Download(ctx context.Context, rawURL, dest string) (err error) {
	client := d.Client
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("failed to download file: %s", resp.Status)
	}
	if d.MaxSize > 0 && resp.ContentLength > d.MaxSize {
		return fmt.Errorf("%w: %d bytes", ErrDownloadTooLarge, resp.ContentLength)
	}

	f, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := f.Close(); err == nil {
			err = closeErr
		}
		if err != nil {
			_ = os.Remove(dest)
		}
	}()

	var body io.Reader = resp.Body
	if d.MaxSize > 0 {
		body = io.LimitReader(resp.Body, d.MaxSize+1)
	}
	n, err := io.Copy(f, body)
	if err != nil {
		return fmt.Errorf("failed to write download: %w", err)
	}
	if d.MaxSize > 0 && n > d.MaxSize {
		return ErrDownloadTooLarge
	}
	return nil
}
