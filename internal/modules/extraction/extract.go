package extraction

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/splitlearn/splitlearn-backend/internal/platform/gemini"
	"github.com/splitlearn/splitlearn-backend/internal/platform/logger"
)

const (
	singleTokenBudget = 2048
	batchTokenBudget  = 8192
	titleMaxLen       = 200
	subpointsMaxCount = 12
)

const singlePrompt = `You are summarizing one slide of lecture material into a study topic.
Return STRICT JSON only, no markdown, no prose:
{"title": "short topic title", "subpoints": ["concise bullet", ...]}
Use 3-7 subpoints covering the key ideas on the slide.`

const singleFallbackPrompt = `Summarize this slide as JSON: {"title": string, "subpoints": string[]}.
Ensure subpoints contains at least 3 concise bullets. If the slide is mostly
images or diagrams, infer the key talking points it illustrates.`

// Document is one slide payload ready for the model.
type Document struct {
	Name  string
	Bytes []byte
}

// Extractor turns slide documents into topic drafts via the generative model.
// All model calls go through the pacer so concurrent extractions share one
// rate budget.
type Extractor struct {
	log   *logger.Logger
	ai    gemini.Client
	pacer *gemini.Pacer
}

func NewExtractor(log *logger.Logger, ai gemini.Client, pacer *gemini.Pacer) *Extractor {
	return &Extractor{
		log:   log.With("service", "Extractor"),
		ai:    ai,
		pacer: pacer,
	}
}

// ExtractOne summarizes a single document. A first attempt that parses to
// nothing usable gets exactly one retry with a more insistent prompt; after
// that the failure is final.
func (e *Extractor) ExtractOne(ctx context.Context, doc Document) (TopicDraft, error) {
	raw, err := e.generate(ctx, singlePrompt, []Document{doc}, singleTokenBudget)
	if err != nil {
		return TopicDraft{}, err
	}
	draft, parsed := ParseTopicJSON(raw)

	if !parsed || len(draft.Subpoints) == 0 || strings.TrimSpace(draft.Title) == "" {
		e.log.Warn("first extraction attempt unusable, retrying with fallback prompt",
			"document", doc.Name, "parsed", parsed, "subpoints", len(draft.Subpoints))
		raw2, err := e.generate(ctx, singleFallbackPrompt, []Document{doc}, singleTokenBudget)
		if err != nil {
			return TopicDraft{}, err
		}
		if d2, ok := ParseTopicJSON(raw2); ok && (len(d2.Subpoints) > 0 || !parsed) {
			draft, parsed = d2, true
		}
		if strings.TrimSpace(raw2) != "" {
			raw = raw2
		}
	}

	if !parsed {
		se := stageErr(KindParse, fmt.Errorf("model output is not parseable JSON"))
		se.Preview = previewOf(raw)
		return TopicDraft{}, se
	}
	final := finalizeDraft(draft, doc.Name, "Slide")
	if len(final.Subpoints) == 0 {
		se := stageErr(KindEmpty, fmt.Errorf("extraction produced no subpoints"))
		se.Preview = previewOf(raw)
		return TopicDraft{}, se
	}
	return final, nil
}

// ExtractBatch summarizes several documents with one model call. The answer
// is positional: entry i describes docs[i]. Slides the model skipped get a
// synthetic placeholder draft rather than a hole, so callers can always zip
// the result against the input.
func (e *Extractor) ExtractBatch(ctx context.Context, docs []Document) ([]TopicDraft, error) {
	if len(docs) == 0 {
		return nil, nil
	}
	prompt := fmt.Sprintf(`You are summarizing %d lecture slides into study topics.
Return STRICT JSON only: an array with one object per slide, in input order:
[{"slideIndex": 0, "title": "short topic title", "subpoints": ["concise bullet", ...]}, ...]
slideIndex starts at 0 and matches the order the slides appear below.
Use 3-7 subpoints per slide.`, len(docs))

	raw, err := e.generate(ctx, prompt, docs, batchTokenBudget)
	if err != nil {
		return nil, err
	}
	indexed, ok := ParseTopicArray(raw)
	if !ok {
		se := stageErr(KindParse, fmt.Errorf("batch output is not parseable JSON"))
		se.Preview = previewOf(raw)
		return nil, se
	}

	byIndex := make(map[int]TopicDraft, len(indexed))
	for _, id := range indexed {
		if id.SlideIndex < 0 || id.SlideIndex >= len(docs) {
			continue
		}
		if _, seen := byIndex[id.SlideIndex]; seen {
			continue
		}
		byIndex[id.SlideIndex] = id.Draft
	}

	out := make([]TopicDraft, len(docs))
	for i, doc := range docs {
		draft, answered := byIndex[i]
		if !answered {
			e.log.Warn("batch answer missing slide, using placeholder", "index", i, "document", doc.Name)
			draft = placeholderDraft(doc.Name)
		}
		final := finalizeDraft(draft, doc.Name, fmt.Sprintf("Topic %d", i+1))
		if len(final.Subpoints) == 0 {
			final.Subpoints = placeholderDraft(doc.Name).Subpoints
		}
		out[i] = final
	}
	return out, nil
}

func (e *Extractor) generate(ctx context.Context, prompt string, docs []Document, maxTokens int) (string, error) {
	parts := make([]gemini.Part, 0, 2*len(docs)+1)
	parts = append(parts, gemini.Part{Text: prompt})
	for i, doc := range docs {
		if len(docs) > 1 {
			parts = append(parts, gemini.Part{Text: fmt.Sprintf("Slide %d (%s):", i, fileStem(doc.Name))})
		}
		parts = append(parts, gemini.Part{InlineData: &gemini.Blob{
			MIMEType: mimeForName(doc.Name),
			Data:     doc.Bytes,
		}})
	}
	opts := gemini.GenerateOptions{
		MaxOutputTokens:  maxTokens,
		ResponseMIMEType: "application/json",
	}

	res, err := e.pacer.Do(ctx, func(ctx context.Context) (gemini.Result, error) {
		return e.ai.Generate(ctx, parts, opts)
	})
	if err != nil {
		return "", wrapGenerativeErr(err)
	}
	return res.Text, nil
}

// finalizeDraft applies the persistence rules: a non-empty title capped at
// 200 characters, falling back to the file name and then to the ordinal
// label, and at most 12 trimmed non-empty subpoints.
func finalizeDraft(d TopicDraft, fileName, ordinalLabel string) TopicDraft {
	title := strings.TrimSpace(d.Title)
	if title == "" {
		title = fileStem(fileName)
	}
	if title == "" {
		title = ordinalLabel
	}
	if r := []rune(title); len(r) > titleMaxLen {
		title = string(r[:titleMaxLen])
	}

	subpoints := make([]string, 0, len(d.Subpoints))
	for _, sp := range d.Subpoints {
		sp = strings.TrimSpace(sp)
		if sp == "" {
			continue
		}
		subpoints = append(subpoints, sp)
		if len(subpoints) == subpointsMaxCount {
			break
		}
	}
	return TopicDraft{Title: title, Subpoints: subpoints}
}

func placeholderDraft(fileName string) TopicDraft {
	title := fileStem(fileName)
	if title == "" {
		title = "Slide"
	}
	return TopicDraft{
		Title:     title,
		Subpoints: []string{"Content extracted", "Review this slide"},
	}
}

// fileStem returns the base file name without its extension.
func fileStem(key string) string {
	base := path.Base(strings.TrimSpace(key))
	if base == "." || base == "/" {
		return ""
	}
	if ext := path.Ext(base); ext != "" {
		base = strings.TrimSuffix(base, ext)
	}
	return strings.TrimSpace(base)
}

func mimeForName(name string) string {
	switch strings.ToLower(path.Ext(name)) {
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".webp":
		return "image/webp"
	case ".gif":
		return "image/gif"
	default:
		return "application/pdf"
	}
}
