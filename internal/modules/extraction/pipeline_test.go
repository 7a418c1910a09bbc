package extraction

import (
	"context"
	"encoding/json"
	"reflect"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/splitlearn/splitlearn-backend/internal/domain"
	"github.com/splitlearn/splitlearn-backend/internal/platform/dbctx"
	"github.com/splitlearn/splitlearn-backend/internal/platform/gemini"
	"github.com/splitlearn/splitlearn-backend/internal/platform/youtube"
)

type pipelineFixture struct {
	slides  *fakeSlideRepo
	topics  *fakeTopicRepo
	videos  *fakeVideoRepo
	fetcher *fakeFetcher
	ai      *fakeAI
	finder  *fakeFinder

	processor    *SlideProcessor
	orchestrator *Orchestrator
}

func newPipeline(t *testing.T, cfg Config, ai *fakeAI, finder *fakeFinder) *pipelineFixture {
	t.Helper()
	log := testLogger(t)
	pacer := testPacer(t)
	f := &pipelineFixture{
		slides:  &fakeSlideRepo{},
		topics:  newFakeTopicRepo(),
		videos:  &fakeVideoRepo{},
		fetcher: newFakeFetcher(),
		ai:      ai,
		finder:  finder,
	}
	extractor := NewExtractor(log, ai, pacer)
	picker := NewVideoPicker(log, finder, ai, pacer, cfg.Rerank)
	f.processor = NewSlideProcessor(log, f.fetcher, extractor, picker, f.slides, f.topics, f.videos)
	strategy := NewStrategy(log, cfg, f.processor, f.fetcher, extractor)
	f.orchestrator = NewOrchestrator(log, f.slides, strategy)
	return f
}

func (f *pipelineFixture) seedExam(t *testing.T, fileKeys ...string) (uuid.UUID, []*domain.Slide) {
	t.Helper()
	examID := uuid.New()
	slides := make([]*domain.Slide, 0, len(fileKeys))
	for _, key := range fileKeys {
		slides = append(slides, &domain.Slide{
			ExamID:  examID,
			FileKey: key,
			Status:  domain.SlideStatusPending,
		})
		f.fetcher.files[key] = []byte("pdf bytes for " + key)
	}
	if _, err := f.slides.Create(dbctx.Context{Ctx: context.Background()}, slides); err != nil {
		t.Fatalf("seed slides: %v", err)
	}
	return examID, slides
}

func individualConfig() Config {
	return Config{BatchMode: false, PoolSize: 2, ChunkSize: 5}
}

func batchConfig() Config {
	return Config{BatchMode: true, ChunkSize: 5}
}

const topicJSON = `{"title":"Photosynthesis","subpoints":["Light reactions","Calvin cycle","Chlorophyll"]}`

func TestProcessSlidePersistsTopicAndVideos(t *testing.T) {
	ai := &fakeAI{responses: []fakeAIResponse{{text: topicJSON}}}
	finder := &fakeFinder{fallback: []youtube.Video{
		{ID: "ytA", Title: "A", DurationSeconds: 253},
		{ID: "ytB", Title: "B"},
		{ID: "ytC", Title: "C"},
	}}
	f := newPipeline(t, individualConfig(), ai, finder)
	_, slides := f.seedExam(t, "uploads/photo.pdf")

	res := f.processor.Process(context.Background(), slides[0])
	if !res.OK || res.Skipped {
		t.Fatalf("result = %+v", res)
	}

	topic := f.topics.bySlide[slides[0].ID]
	if topic == nil {
		t.Fatal("topic not persisted")
	}
	if topic.Title != "Photosynthesis" {
		t.Errorf("title = %q", topic.Title)
	}
	var subs []string
	if err := json.Unmarshal(topic.Subpoints, &subs); err != nil {
		t.Fatalf("subpoints json: %v", err)
	}
	if !reflect.DeepEqual(subs, []string{"Light reactions", "Calvin cycle", "Chlorophyll"}) {
		t.Errorf("subpoints = %v", subs)
	}

	rows, _ := f.videos.GetByTopicID(dbctx.Context{Ctx: context.Background()}, topic.ID)
	if len(rows) != 3 {
		t.Fatalf("video rows = %d, want one per subpoint", len(rows))
	}
	for i, row := range rows {
		if row.SubpointIndex != i {
			t.Errorf("row %d index = %d", i, row.SubpointIndex)
		}
	}
	if rows[0].DurationSeconds == nil || *rows[0].DurationSeconds != 253 {
		t.Errorf("duration = %v", rows[0].DurationSeconds)
	}
	if f.slides.get(t, slides[0].ID).Status != domain.SlideStatusDone {
		t.Error("slide not marked done")
	}
}

func TestProcessSlideSharedVideoAcrossSubpoints(t *testing.T) {
	ai := &fakeAI{responses: []fakeAIResponse{{text: topicJSON}}}
	finder := &fakeFinder{fallback: []youtube.Video{{ID: "only"}}}
	f := newPipeline(t, individualConfig(), ai, finder)
	_, slides := f.seedExam(t, "s.pdf")

	res := f.processor.Process(context.Background(), slides[0])
	if !res.OK {
		t.Fatalf("result = %+v", res)
	}
	topic := f.topics.bySlide[slides[0].ID]
	rows, _ := f.videos.GetByTopicID(dbctx.Context{Ctx: context.Background()}, topic.ID)
	if len(rows) != 3 {
		t.Fatalf("video rows = %d, want a row per subpoint even when shared", len(rows))
	}
	for i, row := range rows {
		if row.YoutubeID != "only" || row.SubpointIndex != i {
			t.Errorf("row %d = %+v", i, row)
		}
	}
}

func TestProcessSlideFetchFailure(t *testing.T) {
	ai := &fakeAI{}
	f := newPipeline(t, individualConfig(), ai, &fakeFinder{})
	_, slides := f.seedExam(t, "gone.pdf")
	delete(f.fetcher.files, "gone.pdf")

	res := f.processor.Process(context.Background(), slides[0])
	if res.OK || res.Err == "" {
		t.Fatalf("result = %+v, want failure", res)
	}
	slide := f.slides.get(t, slides[0].ID)
	if slide.Status != domain.SlideStatusError || slide.Error == "" {
		t.Errorf("slide = status %q error %q", slide.Status, slide.Error)
	}
	if ai.callCount() != 0 {
		t.Error("extraction should not run after fetch failure")
	}
}

func TestProcessExamIndividualMode(t *testing.T) {
	ai := &fakeAI{responses: []fakeAIResponse{{text: topicJSON}, {text: topicJSON}}}
	f := newPipeline(t, individualConfig(), ai, &fakeFinder{})
	examID, slides := f.seedExam(t, "a.pdf", "b.pdf")

	sum, err := f.orchestrator.ProcessExam(context.Background(), examID)
	if err != nil {
		t.Fatalf("ProcessExam: %v", err)
	}
	if sum.TopicsInserted != 2 || sum.Failed != 0 || sum.Skipped != 0 {
		t.Errorf("summary = %+v", sum)
	}
	if len(sum.Diagnostics.Results) != 2 {
		t.Fatalf("results = %d", len(sum.Diagnostics.Results))
	}
	if sum.Diagnostics.Results[0].ID != slides[0].ID || sum.Diagnostics.Results[1].ID != slides[1].ID {
		t.Error("results not in slide order")
	}
}

func TestProcessExamSecondRunSkipsEverything(t *testing.T) {
	ai := &fakeAI{responses: []fakeAIResponse{{text: topicJSON}, {text: topicJSON}}}
	f := newPipeline(t, individualConfig(), ai, &fakeFinder{})
	examID, _ := f.seedExam(t, "a.pdf", "b.pdf")

	if _, err := f.orchestrator.ProcessExam(context.Background(), examID); err != nil {
		t.Fatalf("first run: %v", err)
	}
	callsAfterFirst := ai.callCount()

	sum, err := f.orchestrator.ProcessExam(context.Background(), examID)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if sum.Skipped != 2 || sum.TopicsInserted != 0 || sum.Failed != 0 {
		t.Errorf("summary = %+v, want everything skipped", sum)
	}
	if ai.callCount() != callsAfterFirst {
		t.Error("second run must not call the model")
	}
	for _, r := range sum.Diagnostics.Results {
		if !r.OK || !r.Skipped {
			t.Errorf("result = %+v", r)
		}
	}
}

func TestProcessExamBatchMode(t *testing.T) {
	ai := &fakeAI{responses: []fakeAIResponse{{text: `[
		{"slideIndex":0,"title":"A","subpoints":["a1","a2"]},
		{"slideIndex":1,"title":"B","subpoints":["b1"]},
		{"slideIndex":2,"title":"C","subpoints":["c1"]}
	]`}}}
	f := newPipeline(t, batchConfig(), ai, &fakeFinder{})
	examID, slides := f.seedExam(t, "a.pdf", "b.pdf", "c.pdf")

	sum, err := f.orchestrator.ProcessExam(context.Background(), examID)
	if err != nil {
		t.Fatalf("ProcessExam: %v", err)
	}
	if sum.TopicsInserted != 3 || sum.Failed != 0 {
		t.Errorf("summary = %+v", sum)
	}
	if ai.callCount() != 1 {
		t.Errorf("model calls = %d, want one batch call", ai.callCount())
	}
	for i, slide := range slides {
		topic := f.topics.bySlide[slide.ID]
		if topic == nil {
			t.Fatalf("slide %d has no topic", i)
		}
		if f.slides.get(t, slide.ID).Status != domain.SlideStatusDone {
			t.Errorf("slide %d not done", i)
		}
	}
}

func TestProcessExamBatchModePlaceholdersForUnansweredSlides(t *testing.T) {
	// The model answers 3 of 5 slides; the other 2 still get topics so the
	// result always zips against the input.
	ai := &fakeAI{responses: []fakeAIResponse{{text: `[
		{"slideIndex":0,"title":"A","subpoints":["a1"]},
		{"slideIndex":2,"title":"C","subpoints":["c1"]},
		{"slideIndex":4,"title":"E","subpoints":["e1"]}
	]`}}}
	f := newPipeline(t, batchConfig(), ai, &fakeFinder{})
	examID, slides := f.seedExam(t, "s0.pdf", "s1.pdf", "s2.pdf", "s3.pdf", "s4.pdf")

	sum, err := f.orchestrator.ProcessExam(context.Background(), examID)
	if err != nil {
		t.Fatalf("ProcessExam: %v", err)
	}
	if sum.TopicsInserted != 5 || len(sum.Diagnostics.Results) != 5 {
		t.Errorf("summary = %+v", sum)
	}
	topic := f.topics.bySlide[slides[1].ID]
	if topic == nil {
		t.Fatal("unanswered slide has no topic")
	}
	if topic.Title != "s1" {
		t.Errorf("placeholder title = %q, want file stem", topic.Title)
	}
	var subs []string
	if err := json.Unmarshal(topic.Subpoints, &subs); err != nil || len(subs) != 2 {
		t.Errorf("placeholder subpoints = %v (%v)", subs, err)
	}
}

func TestProcessExamBatchExtractionFailureMarksWholeChunk(t *testing.T) {
	ai := &fakeAI{responses: []fakeAIResponse{{err: &gemini.HTTPError{StatusCode: 500, Body: "boom"}}}}
	f := newPipeline(t, batchConfig(), ai, &fakeFinder{})
	examID, slides := f.seedExam(t, "a.pdf", "b.pdf", "c.pdf")

	sum, err := f.orchestrator.ProcessExam(context.Background(), examID)
	if err != nil {
		t.Fatalf("ProcessExam should not abort on per-chunk failure: %v", err)
	}
	if sum.Failed != 3 || sum.TopicsInserted != 0 {
		t.Errorf("summary = %+v, want every slide in the chunk failed", sum)
	}
	for _, slide := range slides {
		s := f.slides.get(t, slide.ID)
		if s.Status != domain.SlideStatusError || !strings.Contains(s.Error, "boom") {
			t.Errorf("slide = status %q error %q", s.Status, s.Error)
		}
	}
}

func TestProcessExamBatchFetchFailureCostsOnlyThatSlide(t *testing.T) {
	ai := &fakeAI{responses: []fakeAIResponse{{text: `[
		{"slideIndex":0,"title":"A","subpoints":["a1"]},
		{"slideIndex":1,"title":"C","subpoints":["c1"]}
	]`}}}
	f := newPipeline(t, batchConfig(), ai, &fakeFinder{})
	examID, slides := f.seedExam(t, "a.pdf", "broken.pdf", "c.pdf")
	delete(f.fetcher.files, "broken.pdf")

	sum, err := f.orchestrator.ProcessExam(context.Background(), examID)
	if err != nil {
		t.Fatalf("ProcessExam: %v", err)
	}
	if sum.TopicsInserted != 2 || sum.Failed != 1 {
		t.Errorf("summary = %+v", sum)
	}
	if f.slides.get(t, slides[1].ID).Status != domain.SlideStatusError {
		t.Error("broken slide not marked error")
	}
	if f.topics.bySlide[slides[0].ID] == nil || f.topics.bySlide[slides[2].ID] == nil {
		t.Error("surviving slides should still get topics")
	}
}

func TestProcessExamNoSlides(t *testing.T) {
	f := newPipeline(t, individualConfig(), &fakeAI{}, &fakeFinder{})
	sum, err := f.orchestrator.ProcessExam(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("ProcessExam: %v", err)
	}
	if sum.Diagnostics.SlideCount != 0 || len(sum.Diagnostics.Results) != 0 {
		t.Errorf("summary = %+v", sum)
	}
}

func TestProcessExamRequiresExamID(t *testing.T) {
	f := newPipeline(t, individualConfig(), &fakeAI{}, &fakeFinder{})
	if _, err := f.orchestrator.ProcessExam(context.Background(), uuid.Nil); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestChunkSlides(t *testing.T) {
	slides := make([]*domain.Slide, 7)
	for i := range slides {
		slides[i] = &domain.Slide{ID: uuid.New()}
	}
	chunks := chunkSlides(slides, 5)
	if len(chunks) != 2 || len(chunks[0]) != 5 || len(chunks[1]) != 2 {
		t.Errorf("chunks = %d/%v", len(chunks), chunks)
	}
}

func TestRoundRobin(t *testing.T) {
	slides := make([]*domain.Slide, 5)
	for i := range slides {
		slides[i] = &domain.Slide{ID: uuid.New()}
	}
	buckets := roundRobin(slides, 2)
	if len(buckets) != 2 || len(buckets[0]) != 3 || len(buckets[1]) != 2 {
		t.Fatalf("buckets = %d", len(buckets))
	}
	single := roundRobin(slides[:1], 6)
	if len(single) != 1 || len(single[0]) != 1 {
		t.Errorf("single = %v", single)
	}
}
