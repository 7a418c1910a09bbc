package repos

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/splitlearn/splitlearn-backend/internal/data/repos/testutil"
	"github.com/splitlearn/splitlearn-backend/internal/domain"
	"github.com/splitlearn/splitlearn-backend/internal/platform/dbctx"
)

func TestSlideRepo(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)

	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	repo := NewSlideRepo(db, testutil.Logger(t))

	exam := testutil.SeedExam(t, ctx, tx, "midterm")

	s1 := &domain.Slide{ID: uuid.New(), ExamID: exam.ID, FileKey: "slides/a.pdf", Status: domain.SlideStatusPending}
	s2 := &domain.Slide{ID: uuid.New(), ExamID: exam.ID, FileKey: "slides/b.pdf", Status: domain.SlideStatusPending}
	if _, err := repo.Create(dbc, []*domain.Slide{s1, s2}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	rows, err := repo.GetByExamID(dbc, exam.ID)
	if err != nil || len(rows) != 2 {
		t.Fatalf("GetByExamID: err=%v len=%d", err, len(rows))
	}

	got, err := repo.GetByID(dbc, s1.ID)
	if err != nil || got == nil || got.FileKey != "slides/a.pdf" {
		t.Fatalf("GetByID: err=%v got=%+v", err, got)
	}
	if got, err := repo.GetByID(dbc, uuid.New()); err != nil || got != nil {
		t.Fatalf("GetByID missing: err=%v got=%+v", err, got)
	}

	if err := repo.MarkProcessing(dbc, []uuid.UUID{s1.ID, s2.ID}); err != nil {
		t.Fatalf("MarkProcessing: %v", err)
	}
	got, _ = repo.GetByID(dbc, s1.ID)
	if got.Status != domain.SlideStatusProcessing {
		t.Fatalf("after MarkProcessing status=%q", got.Status)
	}

	if err := repo.UpdateStatus(dbc, s1.ID, domain.SlideStatusError, "boom"); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	got, _ = repo.GetByID(dbc, s1.ID)
	if got.Status != domain.SlideStatusError || got.Error != "boom" {
		t.Fatalf("after UpdateStatus: %+v", got)
	}

	// Recovery clears the stored error message.
	if err := repo.UpdateStatus(dbc, s1.ID, domain.SlideStatusDone, ""); err != nil {
		t.Fatalf("UpdateStatus done: %v", err)
	}
	got, _ = repo.GetByID(dbc, s1.ID)
	if got.Status != domain.SlideStatusDone || got.Error != "" {
		t.Fatalf("after UpdateStatus done: %+v", got)
	}
}
