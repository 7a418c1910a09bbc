package extraction

import (
	"errors"
	"fmt"

	"github.com/splitlearn/splitlearn-backend/internal/platform/gemini"
)

// ErrorKind classifies pipeline stage failures. Orchestration converts these
// into per-slide result entries; only configuration problems abort a request.
type ErrorKind string

const (
	KindStorage     ErrorKind = "storage"
	KindDownload    ErrorKind = "download"
	KindParse       ErrorKind = "parse"
	KindEmpty       ErrorKind = "empty_extraction"
	KindQuota       ErrorKind = "quota"
	KindBlocked     ErrorKind = "content_blocked"
	KindVideoSearch ErrorKind = "video_search"
)

// StageError tags an underlying failure with its pipeline stage. Preview
// carries a bounded snippet of raw model output for parse-level diagnostics.
type StageError struct {
	Kind    ErrorKind
	Err     error
	Preview string
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

func stageErr(kind ErrorKind, err error) *StageError {
	return &StageError{Kind: kind, Err: err}
}

// wrapGenerativeErr converts typed capability errors into stage errors so the
// rest of the pipeline only deals with one taxonomy.
func wrapGenerativeErr(err error) error {
	if err == nil {
		return nil
	}
	var qe *gemini.QuotaError
	if errors.As(err, &qe) {
		return stageErr(KindQuota, err)
	}
	var be *gemini.BlockedError
	if errors.As(err, &be) {
		return stageErr(KindBlocked, err)
	}
	return err
}

// previewFromErr pulls the diagnostic snippet out of a stage error, if any.
func previewFromErr(err error) string {
	var se *StageError
	if errors.As(err, &se) {
		return se.Preview
	}
	return ""
}
