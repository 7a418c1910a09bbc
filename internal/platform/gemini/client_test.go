package gemini

import (
	"errors"
	"testing"
	"time"
)

func TestErrorFromResponseQuota(t *testing.T) {
	raw := []byte(`{
		"error": {
			"code": 429,
			"message": "Resource has been exhausted",
			"status": "RESOURCE_EXHAUSTED",
			"details": [
				{"@type": "type.googleapis.com/google.rpc.RetryInfo", "retryDelay": "21s"},
				{"@type": "type.googleapis.com/google.rpc.QuotaFailure",
				 "violations": [{"quotaMetric": "generate_requests_per_minute", "quotaValue": "15"}]}
			]
		}
	}`)

	err := errorFromResponse(429, raw)
	var qe *QuotaError
	if !errors.As(err, &qe) {
		t.Fatalf("err = %v, want *QuotaError", err)
	}
	if qe.RetryAfter != 21*time.Second {
		t.Fatalf("RetryAfter = %v, want 21s", qe.RetryAfter)
	}
	if qe.Quota != "15" {
		t.Fatalf("Quota = %q, want 15", qe.Quota)
	}
}

func TestErrorFromResponseGeneric(t *testing.T) {
	err := errorFromResponse(503, []byte(`{"error":{"code":503,"message":"backend unavailable","status":"UNAVAILABLE"}}`))
	var he *HTTPError
	if !errors.As(err, &he) {
		t.Fatalf("err = %v, want *HTTPError", err)
	}
	if he.HTTPStatusCode() != 503 {
		t.Fatalf("status = %d, want 503", he.HTTPStatusCode())
	}
}
