package extraction

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/splitlearn/splitlearn-backend/internal/platform/gcp"
	"github.com/splitlearn/splitlearn-backend/internal/platform/httpx"
	"github.com/splitlearn/splitlearn-backend/internal/platform/logger"
)

const (
	signedURLTTL      = 5 * time.Minute
	downloadAttempts  = 3
	downloadRetryBase = 2 * time.Second
)

// DocumentFetcher resolves a stored slide file reference to raw bytes through
// a short-lived signed URL. No caching; slides are processed once.
type DocumentFetcher interface {
	Fetch(ctx context.Context, fileKey string) ([]byte, error)
}

type documentFetcher struct {
	log        *logger.Logger
	bucket     gcp.BucketService
	httpClient *http.Client
}

func NewDocumentFetcher(log *logger.Logger, bucket gcp.BucketService) DocumentFetcher {
	return &documentFetcher{
		log:        log.With("service", "DocumentFetcher"),
		bucket:     bucket,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

func (f *documentFetcher) Fetch(ctx context.Context, fileKey string) ([]byte, error) {
	signedURL, err := f.bucket.SignedDownloadURL(fileKey, signedURLTTL)
	if err != nil {
		return nil, stageErr(KindStorage, err)
	}

	var lastErr error
	for attempt := 1; attempt <= downloadAttempts; attempt++ {
		raw, retryable, err := f.download(ctx, signedURL)
		if err == nil {
			return raw, nil
		}
		lastErr = err
		if !retryable || attempt == downloadAttempts {
			break
		}
		f.log.Warn("slide download failed, retrying", "file_key", fileKey, "attempt", attempt, "error", err)
		select {
		case <-ctx.Done():
			return nil, stageErr(KindDownload, ctx.Err())
		case <-time.After(httpx.JitterSleep(downloadRetryBase * time.Duration(attempt))):
		}
	}
	return nil, stageErr(KindDownload, lastErr)
}

func (f *documentFetcher) download(ctx context.Context, signedURL string) ([]byte, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, signedURL, nil)
	if err != nil {
		return nil, false, err
	}
	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, httpx.IsRetryableError(err), err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, httpx.IsRetryableHTTPStatus(resp.StatusCode),
			fmt.Errorf("fetch slide failed: %d", resp.StatusCode)
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, true, err
	}
	return raw, false, nil
}
