package extraction

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/splitlearn/splitlearn-backend/internal/data/repos"
	"github.com/splitlearn/splitlearn-backend/internal/domain"
	"github.com/splitlearn/splitlearn-backend/internal/platform/dbctx"
	"github.com/splitlearn/splitlearn-backend/internal/platform/logger"
)

// SlideResult is the per-slide outcome reported back to the caller. Failures
// are data here, not errors; a batch never aborts because one slide failed.
type SlideResult struct {
	ID         uuid.UUID `json:"id"`
	OK         bool      `json:"ok"`
	Skipped    bool      `json:"skipped,omitempty"`
	ElapsedMS  int64     `json:"ms"`
	Err        string    `json:"err,omitempty"`
	RawSnippet string    `json:"rawSnippet,omitempty"`
}

// SlideProcessor runs the full pipeline for one slide: idempotency check,
// fetch, extract, persist, video selection, status write. Batch strategies
// reuse its persistence steps after doing their own extraction.
type SlideProcessor struct {
	log       *logger.Logger
	fetcher   DocumentFetcher
	extractor *Extractor
	picker    *VideoPicker
	slides    repos.SlideRepo
	topics    repos.TopicRepo
	videos    repos.VideoRepo
}

func NewSlideProcessor(
	log *logger.Logger,
	fetcher DocumentFetcher,
	extractor *Extractor,
	picker *VideoPicker,
	slides repos.SlideRepo,
	topics repos.TopicRepo,
	videos repos.VideoRepo,
) *SlideProcessor {
	return &SlideProcessor{
		log:       log.With("service", "SlideProcessor"),
		fetcher:   fetcher,
		extractor: extractor,
		picker:    picker,
		slides:    slides,
		topics:    topics,
		videos:    videos,
	}
}

func (sp *SlideProcessor) Process(ctx context.Context, slide *domain.Slide) SlideResult {
	started := time.Now()
	dbc := dbctx.Context{Ctx: ctx}

	existing, err := sp.topics.GetBySlideID(dbc, slide.ID)
	if err != nil {
		return sp.fail(ctx, slide, started, err)
	}
	if existing != nil {
		if err := sp.slides.UpdateStatus(dbc, slide.ID, domain.SlideStatusDone, ""); err != nil {
			sp.log.Warn("failed to mark already-extracted slide done", "slide_id", slide.ID, "error", err)
		}
		return SlideResult{ID: slide.ID, OK: true, Skipped: true, ElapsedMS: elapsedMS(started)}
	}

	raw, err := sp.fetcher.Fetch(ctx, slide.FileKey)
	if err != nil {
		return sp.fail(ctx, slide, started, err)
	}

	draft, err := sp.extractor.ExtractOne(ctx, Document{Name: slide.FileKey, Bytes: raw})
	if err != nil {
		return sp.fail(ctx, slide, started, err)
	}

	if err := sp.Persist(ctx, slide, draft); err != nil {
		return sp.fail(ctx, slide, started, err)
	}
	if err := sp.slides.UpdateStatus(dbc, slide.ID, domain.SlideStatusDone, ""); err != nil {
		sp.log.Warn("failed to mark slide done", "slide_id", slide.ID, "error", err)
	}
	return SlideResult{ID: slide.ID, OK: true, ElapsedMS: elapsedMS(started)}
}

// Persist writes the topic row and its per-subpoint video rows. Video
// selection failures only cost the videos, never the topic.
func (sp *SlideProcessor) Persist(ctx context.Context, slide *domain.Slide, draft TopicDraft) error {
	dbc := dbctx.Context{Ctx: ctx}

	subJSON, err := json.Marshal(draft.Subpoints)
	if err != nil {
		return err
	}
	topic, err := sp.topics.Create(dbc, &domain.Topic{
		SlideID:   slide.ID,
		Title:     draft.Title,
		Subpoints: subJSON,
	})
	if err != nil {
		return err
	}

	picks := sp.picker.PickForSubpoints(ctx, draft.Title, draft.Subpoints)
	if len(picks) == 0 {
		return nil
	}
	rows := make([]*domain.Video, 0, len(picks))
	for _, pick := range picks {
		row := &domain.Video{
			TopicID:       topic.ID,
			YoutubeID:     pick.Video.ID,
			Title:         pick.Video.Title,
			Description:   pick.Video.Description,
			ThumbnailURL:  pick.Video.ThumbnailURL,
			SubpointIndex: pick.SubpointIndex,
		}
		if pick.Video.DurationSeconds > 0 {
			d := pick.Video.DurationSeconds
			row.DurationSeconds = &d
		}
		rows = append(rows, row)
	}
	if _, err := sp.videos.Create(dbc, rows); err != nil {
		sp.log.Warn("failed to persist videos, topic kept", "topic_id", topic.ID, "error", err)
	}
	return nil
}

// Fail records a slide failure on the slide row and returns the result entry.
// Exposed for batch strategies which fail whole chunks at once.
func (sp *SlideProcessor) Fail(ctx context.Context, slide *domain.Slide, started time.Time, cause error) SlideResult {
	return sp.fail(ctx, slide, started, cause)
}

func (sp *SlideProcessor) fail(ctx context.Context, slide *domain.Slide, started time.Time, cause error) SlideResult {
	dbc := dbctx.Context{Ctx: ctx}
	msg := cause.Error()
	sp.log.Error("slide processing failed", "slide_id", slide.ID, "error", cause)
	if err := sp.slides.UpdateStatus(dbc, slide.ID, domain.SlideStatusError, msg); err != nil {
		sp.log.Warn("failed to record slide error status", "slide_id", slide.ID, "error", err)
	}
	return SlideResult{
		ID:         slide.ID,
		ElapsedMS:  elapsedMS(started),
		Err:        msg,
		RawSnippet: previewFromErr(cause),
	}
}

// MarkDone flips a slide to done and returns the success result entry.
func (sp *SlideProcessor) MarkDone(ctx context.Context, slide *domain.Slide, started time.Time, skipped bool) SlideResult {
	dbc := dbctx.Context{Ctx: ctx}
	if err := sp.slides.UpdateStatus(dbc, slide.ID, domain.SlideStatusDone, ""); err != nil {
		sp.log.Warn("failed to mark slide done", "slide_id", slide.ID, "error", err)
	}
	return SlideResult{ID: slide.ID, OK: true, Skipped: skipped, ElapsedMS: elapsedMS(started)}
}

// HasTopic reports whether the slide already has an extracted topic.
func (sp *SlideProcessor) HasTopic(ctx context.Context, slideID uuid.UUID) (bool, error) {
	topic, err := sp.topics.GetBySlideID(dbctx.Context{Ctx: ctx}, slideID)
	if err != nil {
		return false, err
	}
	return topic != nil, nil
}

func elapsedMS(started time.Time) int64 {
	return time.Since(started).Milliseconds()
}
