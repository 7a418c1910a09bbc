package extraction

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/splitlearn/splitlearn-backend/internal/domain"
	"github.com/splitlearn/splitlearn-backend/internal/platform/dbctx"
	"github.com/splitlearn/splitlearn-backend/internal/platform/gemini"
	"github.com/splitlearn/splitlearn-backend/internal/platform/logger"
	"github.com/splitlearn/splitlearn-backend/internal/platform/youtube"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("dev")
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return log
}

// instantClock advances virtual time instead of sleeping so paced code runs
// at full speed in tests.
type instantClock struct {
	mu  sync.Mutex
	now time.Time
}

func newInstantClock() *instantClock {
	return &instantClock{now: time.Unix(1700000000, 0)}
}

func (c *instantClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *instantClock) Sleep(_ context.Context, d time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	return nil
}

func testPacer(t *testing.T) *gemini.Pacer {
	t.Helper()
	return gemini.NewPacer(testLogger(t), newInstantClock())
}

type fakeAIResponse struct {
	text string
	err  error
}

// fakeAI pops scripted responses in call order. Running out of script
// returns an empty object so accidental extra calls fail loudly in
// assertions rather than panicking.
type fakeAI struct {
	mu        sync.Mutex
	responses []fakeAIResponse
	calls     int
}

func (f *fakeAI) Generate(_ context.Context, _ []gemini.Part, _ gemini.GenerateOptions) (gemini.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if len(f.responses) == 0 {
		return gemini.Result{Text: "{}"}, nil
	}
	r := f.responses[0]
	f.responses = f.responses[1:]
	if r.err != nil {
		return gemini.Result{}, r.err
	}
	return gemini.Result{Text: r.text}, nil
}

func (f *fakeAI) Model() string { return "fake-model" }

func (f *fakeAI) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// fakeFinder returns per-query results, falling back to a default list.
type fakeFinder struct {
	mu       sync.Mutex
	byQuery  map[string][]youtube.Video
	fallback []youtube.Video
	err      error
	queries  []string
}

func (f *fakeFinder) Search(_ context.Context, query string, _ int64) ([]youtube.Video, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, query)
	if f.err != nil {
		return nil, f.err
	}
	if r, ok := f.byQuery[query]; ok {
		return r, nil
	}
	return f.fallback, nil
}

// fakeFetcher serves slide bytes from memory.
type fakeFetcher struct {
	mu    sync.Mutex
	files map[string][]byte
	errs  map[string]error
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{files: map[string][]byte{}, errs: map[string]error{}}
}

func (f *fakeFetcher) Fetch(_ context.Context, fileKey string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.errs[fileKey]; ok {
		return nil, err
	}
	if raw, ok := f.files[fileKey]; ok {
		return raw, nil
	}
	return nil, stageErr(KindDownload, fmt.Errorf("no such file %q", fileKey))
}

// In-memory repos mirroring the persistence contracts.

type fakeSlideRepo struct {
	mu     sync.Mutex
	slides []*domain.Slide
}

func (r *fakeSlideRepo) GetByExamID(_ dbctx.Context, examID uuid.UUID) ([]*domain.Slide, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Slide
	for _, s := range r.slides {
		if s.ExamID == examID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *fakeSlideRepo) GetByID(_ dbctx.Context, id uuid.UUID) (*domain.Slide, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.slides {
		if s.ID == id {
			return s, nil
		}
	}
	return nil, nil
}

func (r *fakeSlideRepo) Create(_ dbctx.Context, slides []*domain.Slide) ([]*domain.Slide, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range slides {
		if s.ID == uuid.Nil {
			s.ID = uuid.New()
		}
		r.slides = append(r.slides, s)
	}
	return slides, nil
}

func (r *fakeSlideRepo) UpdateStatus(_ dbctx.Context, id uuid.UUID, status string, errMsg string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.slides {
		if s.ID == id {
			s.Status = status
			s.Error = errMsg
			return nil
		}
	}
	return fmt.Errorf("slide %s not found", id)
}

func (r *fakeSlideRepo) MarkProcessing(_ dbctx.Context, ids []uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	want := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	for _, s := range r.slides {
		if want[s.ID] {
			s.Status = domain.SlideStatusProcessing
			s.Error = ""
		}
	}
	return nil
}

func (r *fakeSlideRepo) get(t *testing.T, id uuid.UUID) *domain.Slide {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.slides {
		if s.ID == id {
			return s
		}
	}
	t.Fatalf("slide %s not found", id)
	return nil
}

type fakeTopicRepo struct {
	mu      sync.Mutex
	bySlide map[uuid.UUID]*domain.Topic
}

func newFakeTopicRepo() *fakeTopicRepo {
	return &fakeTopicRepo{bySlide: map[uuid.UUID]*domain.Topic{}}
}

func (r *fakeTopicRepo) GetBySlideID(_ dbctx.Context, slideID uuid.UUID) (*domain.Topic, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.bySlide[slideID], nil
}

func (r *fakeTopicRepo) GetBySlideIDs(_ dbctx.Context, slideIDs []uuid.UUID) ([]*domain.Topic, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Topic
	for _, id := range slideIDs {
		if t, ok := r.bySlide[id]; ok {
			out = append(out, t)
		}
	}
	return out, nil
}

func (r *fakeTopicRepo) Create(_ dbctx.Context, topic *domain.Topic) (*domain.Topic, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.bySlide[topic.SlideID]; exists {
		return nil, fmt.Errorf("duplicate topic for slide %s", topic.SlideID)
	}
	if topic.ID == uuid.Nil {
		topic.ID = uuid.New()
	}
	r.bySlide[topic.SlideID] = topic
	return topic, nil
}

type fakeVideoRepo struct {
	mu   sync.Mutex
	rows []*domain.Video
}

func (r *fakeVideoRepo) Create(_ dbctx.Context, videos []*domain.Video) ([]*domain.Video, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, v := range videos {
		if v.ID == uuid.Nil {
			v.ID = uuid.New()
		}
		r.rows = append(r.rows, v)
	}
	return videos, nil
}

func (r *fakeVideoRepo) GetByTopicID(_ dbctx.Context, topicID uuid.UUID) ([]*domain.Video, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Video
	for _, v := range r.rows {
		if v.TopicID == topicID {
			out = append(out, v)
		}
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j-1].SubpointIndex > out[j].SubpointIndex; j-- {
			out[j-1], out[j] = out[j], out[j-1]
		}
	}
	return out, nil
}
