package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"time"

	"go-scan-capture/internal/capture"
	apperrors "go-scan-capture/internal/errors"
	"go-scan-capture/internal/frames"
	"go-scan-capture/internal/logger"
	"go-scan-capture/internal/observer"
	"go-scan-capture/internal/quality"
	"go-scan-capture/internal/repository"
	"go-scan-capture/internal/storage"
	"go-scan-capture/internal/strategy"
	"go-scan-capture/pkg/models"
)

// ScanService is the application core: standalone quality analysis plus the
// guided capture session lifecycle.
type ScanService interface {
	AnalyzeImageURL(ctx context.Context, imageURL string, fast bool) (*models.AnalysisReport, error)
	AnalyzeImage(img image.Image, fast bool) models.QualityResult

	CreateSession(ctx context.Context, mode models.Mode) (models.SessionProgress, error)
	CaptureShot(ctx context.Context, sessionID, stepID string, imageData []byte) (capture.Outcome, error)
	CaptureClip(ctx context.Context, sessionID, stepID string, src frames.FrameSource) (capture.Outcome, []models.ExtractedFrame, error)
	RetakeStep(sessionID, stepID string) error
	SkipStep(sessionID, stepID string) error
	CompleteSession(ctx context.Context, sessionID string) (models.SessionProgress, error)
	SessionProgress(sessionID string) (models.SessionProgress, error)
	SessionPlan(sessionID string) ([]models.ScanStep, error)
}

type scanService struct {
	imageRepo  repository.ImageRepository
	sessions   repository.SessionRepository
	analyzer   quality.Analyzer
	strategies *strategy.Selector
	extractor  *frames.Extractor
	planner    *capture.Planner
	voice      capture.Prompter
	shots      storage.ShotStore
	uploads    *WorkerPool
	events     observer.Subject
}

// NewScanService wires the capture core. voice may be nil to disable spoken
// guidance; events may be nil to disable event publishing.
func NewScanService(
	imageRepo repository.ImageRepository,
	sessions repository.SessionRepository,
	analyzer quality.Analyzer,
	extractor *frames.Extractor,
	planner *capture.Planner,
	voice capture.Prompter,
	shots storage.ShotStore,
	uploads *WorkerPool,
	events observer.Subject,
) ScanService {
	if shots == nil {
		shots = storage.NoopShotStore{}
	}
	if events == nil {
		events = observer.NewEventPublisher()
	}
	return &scanService{
		imageRepo:  imageRepo,
		sessions:   sessions,
		analyzer:   analyzer,
		strategies: strategy.NewSelector(analyzer),
		extractor:  extractor,
		planner:    planner,
		voice:      voice,
		shots:      shots,
		uploads:    uploads,
		events:     events,
	}
}

func (s *scanService) AnalyzeImageURL(ctx context.Context, imageURL string, fast bool) (*models.AnalysisReport, error) {
	if err := s.imageRepo.ValidateImageURL(imageURL); err != nil {
		return nil, apperrors.NewValidationError("invalid image URL", err)
	}

	start := time.Now()
	img, err := s.imageRepo.FetchImage(ctx, imageURL)
	if err != nil {
		s.publish(ctx, observer.CaptureEvent{
			EventType:    observer.AnalysisFailed,
			Timestamp:    time.Now(),
			ErrorMessage: err.Error(),
			Metadata:     map[string]interface{}{"image_url": imageURL},
		})
		return nil, err
	}

	result := s.AnalyzeImage(img, fast)
	elapsed := time.Since(start)
	s.publish(ctx, observer.CaptureEvent{
		EventType:      observer.AnalysisCompleted,
		Timestamp:      time.Now(),
		ProcessingTime: elapsed,
		Success:        result.Passed,
		Metadata:       map[string]interface{}{"image_url": imageURL},
	})

	bounds := img.Bounds()
	return &models.AnalysisReport{
		ImageURL:          imageURL,
		Timestamp:         time.Now().Format(time.RFC3339),
		ProcessingTimeSec: elapsed.Seconds(),
		Width:             bounds.Dx(),
		Height:            bounds.Dy(),
		Quality:           result,
	}, nil
}

func (s *scanService) AnalyzeImage(img image.Image, fast bool) models.QualityResult {
	return s.strategies.Choose(fast).Analyze(img)
}

func (s *scanService) CreateSession(ctx context.Context, mode models.Mode) (models.SessionProgress, error) {
	session, err := capture.NewSession(mode, s.planner, s.analyzer, s.extractor, s.voice)
	if err != nil {
		return models.SessionProgress{}, err
	}
	if err := s.sessions.Save(session); err != nil {
		return models.SessionProgress{}, apperrors.NewInternalError("failed to store session", err)
	}
	s.publish(ctx, observer.CaptureEvent{
		EventType: observer.SessionStarted,
		Timestamp: time.Now(),
		SessionID: session.ID(),
		Success:   true,
		Metadata:  map[string]interface{}{"mode": mode},
	})
	return session.Progress(), nil
}

func (s *scanService) CaptureShot(ctx context.Context, sessionID, stepID string, imageData []byte) (capture.Outcome, error) {
	session, err := s.session(sessionID)
	if err != nil {
		return capture.Outcome{}, err
	}

	img, _, err := image.Decode(bytes.NewReader(imageData))
	if err != nil {
		return capture.Outcome{}, apperrors.NewValidationError("image data could not be decoded", err)
	}

	outcome, err := session.Capture(stepID, img, imageData)
	if err != nil {
		return capture.Outcome{}, err
	}

	event := observer.CaptureEvent{
		Timestamp: time.Now(),
		SessionID: sessionID,
		StepID:    stepID,
		Success:   outcome.Accepted,
	}
	if outcome.Accepted {
		event.EventType = observer.ShotAccepted
		s.scheduleUpload(session, sessionID, stepID, imageData)
	} else {
		event.EventType = observer.ShotRejected
		event.ErrorMessage = outcome.RetakeReason
	}
	s.publish(ctx, event)
	return outcome, nil
}

func (s *scanService) CaptureClip(ctx context.Context, sessionID, stepID string, src frames.FrameSource) (capture.Outcome, []models.ExtractedFrame, error) {
	session, err := s.session(sessionID)
	if err != nil {
		return capture.Outcome{}, nil, err
	}
	outcome, extracted, err := session.CaptureClip(ctx, stepID, src)
	if err != nil {
		return capture.Outcome{}, nil, err
	}
	if outcome.Accepted {
		if shot := findShot(session, stepID); shot != nil {
			s.scheduleUpload(session, sessionID, stepID, shot.Data)
		}
	}
	s.publish(ctx, observer.CaptureEvent{
		EventType: pickEventType(outcome.Accepted),
		Timestamp: time.Now(),
		SessionID: sessionID,
		StepID:    stepID,
		Success:   outcome.Accepted,
		Metadata:  map[string]interface{}{"frames_extracted": len(extracted)},
	})
	return outcome, extracted, nil
}

func (s *scanService) RetakeStep(sessionID, stepID string) error {
	session, err := s.session(sessionID)
	if err != nil {
		return err
	}
	return session.Retake(stepID)
}

func (s *scanService) SkipStep(sessionID, stepID string) error {
	session, err := s.session(sessionID)
	if err != nil {
		return err
	}
	return session.Skip(stepID)
}

func (s *scanService) CompleteSession(ctx context.Context, sessionID string) (models.SessionProgress, error) {
	session, err := s.session(sessionID)
	if err != nil {
		return models.SessionProgress{}, err
	}
	done, missing := session.Complete()
	if !done {
		return session.Progress(), apperrors.NewValidationError(
			fmt.Sprintf("session has uncaptured steps: %v", missing), nil)
	}

	// Flush pending uploads so the progress snapshot carries final shot URLs.
	if s.uploads != nil {
		s.uploads.Wait()
	}
	progress := session.Progress()
	if err := s.sessions.Delete(sessionID); err != nil {
		logger.WithSession(sessionID).WithError(err).Warn("failed to drop completed session")
	}
	s.publish(ctx, observer.CaptureEvent{
		EventType: observer.SessionCompleted,
		Timestamp: time.Now(),
		SessionID: sessionID,
		Success:   true,
	})
	return progress, nil
}

func (s *scanService) SessionProgress(sessionID string) (models.SessionProgress, error) {
	session, err := s.session(sessionID)
	if err != nil {
		return models.SessionProgress{}, err
	}
	return session.Progress(), nil
}

func (s *scanService) SessionPlan(sessionID string) ([]models.ScanStep, error) {
	session, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}
	return session.Plan(), nil
}

func (s *scanService) session(sessionID string) (*capture.Session, error) {
	session, err := s.sessions.Get(sessionID)
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return nil, apperrors.NewNotFoundError(fmt.Sprintf("session %q not found", sessionID), nil)
		}
		return nil, apperrors.NewInternalError("session lookup failed", err)
	}
	return session, nil
}

// scheduleUpload persists an accepted shot in the background. Upload failures
// are logged and surfaced as events but never fail the capture.
func (s *scanService) scheduleUpload(session *capture.Session, sessionID, stepID string, data []byte) {
	if s.uploads == nil {
		return
	}
	s.uploads.Submit(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		url, err := s.shots.SaveShot(ctx, sessionID, stepID, data)
		event := observer.CaptureEvent{
			Timestamp: time.Now(),
			SessionID: sessionID,
			StepID:    stepID,
		}
		if err != nil {
			event.EventType = observer.ShotUploadFailed
			event.ErrorMessage = err.Error()
			logger.WithStep(sessionID, stepID).WithError(err).Error("shot upload failed")
		} else {
			session.SetShotURL(stepID, url)
			event.EventType = observer.ShotUploaded
			event.Success = true
		}
		s.publish(ctx, event)
	})
}

func (s *scanService) publish(ctx context.Context, event observer.CaptureEvent) {
	s.events.NotifyObservers(ctx, event)
}

func findShot(session *capture.Session, stepID string) *capture.Shot {
	for _, shot := range session.Shots() {
		if shot.StepID == stepID {
			return shot
		}
	}
	return nil
}

func pickEventType(accepted bool) observer.EventType {
	if accepted {
		return observer.ShotAccepted
	}
	return observer.ShotRejected
}
