package extraction

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/splitlearn/splitlearn-backend/internal/data/repos"
	"github.com/splitlearn/splitlearn-backend/internal/domain"
	"github.com/splitlearn/splitlearn-backend/internal/platform/dbctx"
	"github.com/splitlearn/splitlearn-backend/internal/platform/logger"
)

// Summary aggregates an exam run. Per-slide failures live in Results; only
// request-level problems (bad exam ID, repo unavailable) surface as errors
// from ProcessExam.
type Summary struct {
	TopicsInserted int         `json:"topicsInserted"`
	Skipped        int         `json:"skipped"`
	Failed         int         `json:"failed"`
	Diagnostics    Diagnostics `json:"diagnostics"`
}

type Diagnostics struct {
	SlideCount int           `json:"slideCount"`
	Results    []SlideResult `json:"results"`
}

// BatchStrategy decides how an exam's slides are walked: one multi-document
// model call per chunk, or individually through a worker pool.
type BatchStrategy interface {
	Run(ctx context.Context, slides []*domain.Slide) []SlideResult
}

// Orchestrator owns a whole process-exam request.
type Orchestrator struct {
	log      *logger.Logger
	slides   repos.SlideRepo
	strategy BatchStrategy
}

func NewOrchestrator(log *logger.Logger, slides repos.SlideRepo, strategy BatchStrategy) *Orchestrator {
	return &Orchestrator{
		log:      log.With("service", "Orchestrator"),
		slides:   slides,
		strategy: strategy,
	}
}

// NewStrategy builds the strategy selected by cfg. Both share the processor's
// persistence and status steps so the two modes cannot drift.
func NewStrategy(log *logger.Logger, cfg Config, processor *SlideProcessor, fetcher DocumentFetcher, extractor *Extractor) BatchStrategy {
	if cfg.BatchMode {
		return &batchedStrategy{
			log:       log.With("service", "BatchedStrategy"),
			processor: processor,
			fetcher:   fetcher,
			extractor: extractor,
			chunkSize: cfg.ChunkSize,
			delay:     cfg.ChunkDelay,
		}
	}
	return &pooledStrategy{
		log:       log.With("service", "PooledStrategy"),
		processor: processor,
		poolSize:  cfg.PoolSize,
		delay:     cfg.ChunkDelay,
	}
}

func (o *Orchestrator) ProcessExam(ctx context.Context, examID uuid.UUID) (Summary, error) {
	if examID == uuid.Nil {
		return Summary{}, fmt.Errorf("exam id is required")
	}
	dbc := dbctx.Context{Ctx: ctx}

	slides, err := o.slides.GetByExamID(dbc, examID)
	if err != nil {
		return Summary{}, fmt.Errorf("load slides: %w", err)
	}
	if len(slides) == 0 {
		return Summary{Diagnostics: Diagnostics{Results: []SlideResult{}}}, nil
	}

	ids := make([]uuid.UUID, len(slides))
	for i, s := range slides {
		ids[i] = s.ID
	}
	if err := o.slides.MarkProcessing(dbc, ids); err != nil {
		o.log.Warn("failed to mark slides processing", "exam_id", examID, "error", err)
	}

	o.log.Info("processing exam", "exam_id", examID, "slides", len(slides))
	started := time.Now()
	results := o.strategy.Run(ctx, slides)

	summary := Summary{Diagnostics: Diagnostics{SlideCount: len(slides), Results: results}}
	for _, r := range results {
		switch {
		case r.Skipped:
			summary.Skipped++
		case r.OK:
			summary.TopicsInserted++
		default:
			summary.Failed++
		}
	}
	o.log.Info("exam processed",
		"exam_id", examID,
		"inserted", summary.TopicsInserted,
		"skipped", summary.Skipped,
		"failed", summary.Failed,
		"elapsed_ms", time.Since(started).Milliseconds())
	return summary, nil
}

// batchedStrategy covers several slides per model call: slides with existing
// topics are skipped upfront, the rest go through chunks of chunkSize with a
// concurrent fetch phase and a single extraction call per chunk.
type batchedStrategy struct {
	log       *logger.Logger
	processor *SlideProcessor
	fetcher   DocumentFetcher
	extractor *Extractor
	chunkSize int
	delay     time.Duration
}

func (s *batchedStrategy) Run(ctx context.Context, slides []*domain.Slide) []SlideResult {
	results := make([]SlideResult, 0, len(slides))

	pending := make([]*domain.Slide, 0, len(slides))
	for _, slide := range slides {
		started := time.Now()
		has, err := s.processor.HasTopic(ctx, slide.ID)
		if err != nil {
			results = append(results, s.processor.Fail(ctx, slide, started, err))
			continue
		}
		if has {
			results = append(results, s.processor.MarkDone(ctx, slide, started, true))
			continue
		}
		pending = append(pending, slide)
	}

	for ci, chunk := range chunkSlides(pending, s.chunkSize) {
		if ci > 0 && s.delay > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(s.delay):
			}
		}
		results = append(results, s.runChunk(ctx, chunk)...)
	}
	return results
}

func (s *batchedStrategy) runChunk(ctx context.Context, chunk []*domain.Slide) []SlideResult {
	chunkStart := time.Now()
	results := make([]SlideResult, 0, len(chunk))

	// Fetch every slide's bytes concurrently. A fetch failure costs only that
	// slide; the survivors still go into the batch call.
	docs := make([]Document, len(chunk))
	fetchErrs := make([]error, len(chunk))
	g, gctx := errgroup.WithContext(ctx)
	for i, slide := range chunk {
		i, slide := i, slide
		g.Go(func() error {
			raw, err := s.fetcher.Fetch(gctx, slide.FileKey)
			if err != nil {
				fetchErrs[i] = err
				return nil
			}
			docs[i] = Document{Name: slide.FileKey, Bytes: raw}
			return nil
		})
	}
	_ = g.Wait()

	fetched := make([]*domain.Slide, 0, len(chunk))
	fetchedDocs := make([]Document, 0, len(chunk))
	for i, slide := range chunk {
		if fetchErrs[i] != nil {
			results = append(results, s.processor.Fail(ctx, slide, chunkStart, fetchErrs[i]))
			continue
		}
		fetched = append(fetched, slide)
		fetchedDocs = append(fetchedDocs, docs[i])
	}
	if len(fetched) == 0 {
		return results
	}

	drafts, err := s.extractor.ExtractBatch(ctx, fetchedDocs)
	if err != nil {
		// One call covered the whole chunk, so its failure is every
		// remaining slide's failure.
		for _, slide := range fetched {
			results = append(results, s.processor.Fail(ctx, slide, chunkStart, err))
		}
		return results
	}

	for i, slide := range fetched {
		slideStart := time.Now()
		if err := s.processor.Persist(ctx, slide, drafts[i]); err != nil {
			results = append(results, s.processor.Fail(ctx, slide, slideStart, err))
			continue
		}
		results = append(results, s.processor.MarkDone(ctx, slide, slideStart, false))
	}
	return results
}

// pooledStrategy processes slides one model call each. Slides are dealt
// round-robin into poolSize buckets; buckets run one after another with all
// slides inside a bucket in flight at once.
type pooledStrategy struct {
	log       *logger.Logger
	processor *SlideProcessor
	poolSize  int
	delay     time.Duration
}

func (s *pooledStrategy) Run(ctx context.Context, slides []*domain.Slide) []SlideResult {
	size := s.poolSize
	if size < 1 {
		size = 1
	}
	if size > 6 {
		size = 6
	}
	buckets := roundRobin(slides, size)

	var mu sync.Mutex
	order := make(map[uuid.UUID]int, len(slides))
	for i, slide := range slides {
		order[slide.ID] = i
	}
	results := make([]SlideResult, 0, len(slides))

	for bi, bucket := range buckets {
		if bi > 0 && s.delay > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(s.delay):
			}
		}
		var wg sync.WaitGroup
		for _, slide := range bucket {
			slide := slide
			wg.Add(1)
			go func() {
				defer wg.Done()
				r := s.processor.Process(ctx, slide)
				mu.Lock()
				results = append(results, r)
				mu.Unlock()
			}()
		}
		wg.Wait()
	}

	sort.SliceStable(results, func(i, j int) bool {
		return order[results[i].ID] < order[results[j].ID]
	})
	return results
}

func chunkSlides(slides []*domain.Slide, size int) [][]*domain.Slide {
	if size < 1 {
		size = 1
	}
	var chunks [][]*domain.Slide
	for start := 0; start < len(slides); start += size {
		end := start + size
		if end > len(slides) {
			end = len(slides)
		}
		chunks = append(chunks, slides[start:end])
	}
	return chunks
}

func roundRobin(slides []*domain.Slide, buckets int) [][]*domain.Slide {
	out := make([][]*domain.Slide, buckets)
	for i, slide := range slides {
		b := i % buckets
		out[b] = append(out[b], slide)
	}
	filled := out[:0]
	for _, b := range out {
		if len(b) > 0 {
			filled = append(filled, b)
		}
	}
	return filled
}
