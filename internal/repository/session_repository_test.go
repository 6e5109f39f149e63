package repository

import (
	"errors"
	"testing"

	"go-scan-capture/internal/capture"
	"go-scan-capture/internal/quality"
	"go-scan-capture/pkg/models"
)

func newSession(t *testing.T) *capture.Session {
	t.Helper()
	planner, err := capture.NewPlanner()
	if err != nil {
		t.Fatal(err)
	}
	session, err := capture.NewSession(models.ModeSelf, planner, quality.NewAnalyzer(), nil, capture.NoopPrompter{})
	if err != nil {
		t.Fatal(err)
	}
	return session
}

func TestInMemorySessionRepository_SaveAndGet(t *testing.T) {
	repo := NewInMemorySessionRepository()
	session := newSession(t)

	if err := repo.Save(session); err != nil {
		t.Fatal(err)
	}
	if repo.Count() != 1 {
		t.Errorf("Expected count 1, got %d", repo.Count())
	}

	got, err := repo.Get(session.ID())
	if err != nil {
		t.Fatal(err)
	}
	if got.ID() != session.ID() {
		t.Errorf("Expected session %q, got %q", session.ID(), got.ID())
	}
}

func TestInMemorySessionRepository_DuplicateSave(t *testing.T) {
	repo := NewInMemorySessionRepository()
	session := newSession(t)

	if err := repo.Save(session); err != nil {
		t.Fatal(err)
	}
	if err := repo.Save(session); !errors.Is(err, ErrSessionExists) {
		t.Errorf("Expected ErrSessionExists, got: %v", err)
	}
}

func TestInMemorySessionRepository_GetMissing(t *testing.T) {
	repo := NewInMemorySessionRepository()

	if _, err := repo.Get("nope"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Expected ErrSessionNotFound, got: %v", err)
	}
}

func TestInMemorySessionRepository_Delete(t *testing.T) {
	repo := NewInMemorySessionRepository()
	session := newSession(t)

	if err := repo.Save(session); err != nil {
		t.Fatal(err)
	}
	if err := repo.Delete(session.ID()); err != nil {
		t.Fatal(err)
	}
	if repo.Count() != 0 {
		t.Errorf("Expected count 0 after delete, got %d", repo.Count())
	}
	if err := repo.Delete(session.ID()); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Expected ErrSessionNotFound on double delete, got: %v", err)
	}
}
