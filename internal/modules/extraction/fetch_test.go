package extraction

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

type stubBucket struct {
	url     string
	signErr error
}

func (b *stubBucket) UploadFile(context.Context, string, io.Reader) error { return nil }
func (b *stubBucket) DeleteFile(context.Context, string) error            { return nil }

func (b *stubBucket) SignedDownloadURL(key string, _ time.Duration) (string, error) {
	if b.signErr != nil {
		return "", b.signErr
	}
	return b.url + "/" + key, nil
}

func TestFetchDownloadsBytes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "slide bytes")
	}))
	defer srv.Close()

	f := NewDocumentFetcher(testLogger(t), &stubBucket{url: srv.URL})
	raw, err := f.Fetch(context.Background(), "slide.pdf")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if string(raw) != "slide bytes" {
		t.Errorf("raw = %q", raw)
	}
}

func TestFetchRetriesTransientFailure(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, "ok now")
	}))
	defer srv.Close()

	f := NewDocumentFetcher(testLogger(t), &stubBucket{url: srv.URL})
	raw, err := f.Fetch(context.Background(), "slide.pdf")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if string(raw) != "ok now" {
		t.Errorf("raw = %q", raw)
	}
	if calls.Load() != 2 {
		t.Errorf("calls = %d, want retry once", calls.Load())
	}
}

func TestFetchDoesNotRetryNotFound(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	f := NewDocumentFetcher(testLogger(t), &stubBucket{url: srv.URL})
	_, err := f.Fetch(context.Background(), "missing.pdf")
	var se *StageError
	if !errors.As(err, &se) || se.Kind != KindDownload {
		t.Fatalf("err = %v, want download stage error", err)
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want no retry on 404", calls.Load())
	}
}

func TestFetchSigningFailure(t *testing.T) {
	f := NewDocumentFetcher(testLogger(t), &stubBucket{signErr: fmt.Errorf("no credentials")})
	_, err := f.Fetch(context.Background(), "slide.pdf")
	var se *StageError
	if !errors.As(err, &se) || se.Kind != KindStorage {
		t.Fatalf("err = %v, want storage stage error", err)
	}
}
