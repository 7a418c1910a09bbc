package gemini

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/splitlearn/splitlearn-backend/internal/platform/logger"
)

// Part is one element of a generative request: either text or an inline
// document blob.
type Part struct {
	Text       string
	InlineData *Blob
}

type Blob struct {
	MIMEType string
	Data     []byte
}

type GenerateOptions struct {
	MaxOutputTokens  int
	ResponseMIMEType string
}

type Result struct {
	Text         string
	FinishReason string
	BlockReason  string
}

// Client is the generative-content capability. Callers are expected to route
// every call through a shared Pacer; the client itself performs exactly one
// attempt and surfaces quota and safety conditions as typed errors.
type Client interface {
	Generate(ctx context.Context, parts []Part, opts GenerateOptions) (Result, error)
	Model() string
}

type client struct {
	log        *logger.Logger
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
}

func NewClient(log *logger.Logger) (Client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	apiKey := strings.TrimSpace(os.Getenv("GEMINI_API_KEY"))
	if apiKey == "" {
		return nil, fmt.Errorf("missing GEMINI_API_KEY")
	}

	baseURL := strings.TrimSpace(os.Getenv("GEMINI_BASE_URL"))
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com"
	}
	baseURL = strings.TrimRight(baseURL, "/")

	model := strings.TrimSpace(os.Getenv("GEMINI_MODEL"))
	if model == "" {
		model = "gemini-1.5-flash-latest"
	}

	timeoutSec := 120
	if v := strings.TrimSpace(os.Getenv("GEMINI_TIMEOUT_SECONDS")); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			timeoutSec = parsed
		}
	}

	return &client{
		log:        log.With("service", "GeminiClient"),
		baseURL:    baseURL,
		apiKey:     apiKey,
		model:      model,
		httpClient: &http.Client{Timeout: time.Duration(timeoutSec) * time.Second},
	}, nil
}

// NewClientWithModel overrides the env-configured model when modelOverride is
// non-empty.
func NewClientWithModel(log *logger.Logger, modelOverride string) (Client, error) {
	c, err := NewClient(log)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(modelOverride) == "" {
		return c, nil
	}
	if cc, ok := c.(*client); ok {
		cc.model = strings.TrimSpace(modelOverride)
	}
	return c, nil
}

func (c *client) Model() string {
	return c.model
}

type generateRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type content struct {
	Role  string     `json:"role"`
	Parts []wirePart `json:"parts"`
}

type wirePart struct {
	Text       string          `json:"text,omitempty"`
	InlineData *wireInlineData `json:"inlineData,omitempty"`
}

type wireInlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type generationConfig struct {
	Temperature      float64 `json:"temperature"`
	MaxOutputTokens  int     `json:"maxOutputTokens,omitempty"`
	ResponseMimeType string  `json:"responseMimeType,omitempty"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
}

type apiErrorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
		Details []struct {
			Type       string `json:"@type"`
			RetryDelay string `json:"retryDelay"`
			Violations []struct {
				QuotaMetric string `json:"quotaMetric"`
				QuotaValue  string `json:"quotaValue"`
			} `json:"violations"`
		} `json:"details"`
	} `json:"error"`
}

func (c *client) Generate(ctx context.Context, parts []Part, opts GenerateOptions) (Result, error) {
	if len(parts) == 0 {
		return Result{}, fmt.Errorf("gemini: no parts")
	}

	wire := make([]wirePart, 0, len(parts))
	for _, p := range parts {
		wp := wirePart{Text: p.Text}
		if p.InlineData != nil {
			wp.InlineData = &wireInlineData{
				MimeType: p.InlineData.MIMEType,
				Data:     base64.StdEncoding.EncodeToString(p.InlineData.Data),
			}
		}
		wire = append(wire, wp)
	}

	body := generateRequest{
		Contents: []content{{Role: "user", Parts: wire}},
		GenerationConfig: generationConfig{
			Temperature:      0.2,
			MaxOutputTokens:  opts.MaxOutputTokens,
			ResponseMimeType: opts.ResponseMIMEType,
		},
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return Result{}, err
	}

	path := fmt.Sprintf("/v1beta/models/%s:generateContent?key=%s", c.model, url.QueryEscape(c.apiKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, &buf)
	if err != nil {
		return Result{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Result{}, err
	}
	raw, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return Result{}, readErr
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Result{}, errorFromResponse(resp.StatusCode, raw)
	}

	var gr generateResponse
	if err := json.Unmarshal(raw, &gr); err != nil {
		return Result{}, fmt.Errorf("gemini decode error: %w", err)
	}

	out := Result{BlockReason: gr.PromptFeedback.BlockReason}
	if len(gr.Candidates) > 0 {
		cand := gr.Candidates[0]
		out.FinishReason = cand.FinishReason
		var b strings.Builder
		for _, p := range cand.Content.Parts {
			b.WriteString(p.Text)
		}
		out.Text = b.String()
	}

	if out.BlockReason != "" {
		return Result{}, &BlockedError{Reason: out.BlockReason}
	}
	if strings.EqualFold(out.FinishReason, "SAFETY") {
		return Result{}, &BlockedError{Reason: out.FinishReason}
	}
	return out, nil
}

func errorFromResponse(status int, raw []byte) error {
	var apiErr apiErrorResponse
	_ = json.Unmarshal(raw, &apiErr)

	if status == http.StatusTooManyRequests || apiErr.Error.Status == "RESOURCE_EXHAUSTED" {
		qe := &QuotaError{Message: apiErr.Error.Message}
		for _, d := range apiErr.Error.Details {
			if d.RetryDelay != "" {
				if dur, err := time.ParseDuration(d.RetryDelay); err == nil && dur > 0 {
					qe.RetryAfter = dur
				}
			}
			for _, v := range d.Violations {
				if v.QuotaValue != "" {
					qe.Quota = v.QuotaValue
				} else if v.QuotaMetric != "" {
					qe.Quota = v.QuotaMetric
				}
			}
		}
		return qe
	}

	msg := apiErr.Error.Message
	if msg == "" {
		msg = string(raw)
	}
	return &HTTPError{StatusCode: status, Body: msg}
}
