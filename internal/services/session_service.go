package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"crop-claim-service/internal/event"
	"crop-claim-service/internal/models"
	"crop-claim-service/internal/repository"
	"crop-claim-service/internal/utils"
	"crop-claim-service/internal/worker"

	"github.com/google/uuid"
)

type Analyzer interface {
	Analyze(ctx context.Context, image []byte, mimeType string, location *models.LocationData) (*models.AnalysisResult, error)
}

// ClaimStore is the durable claim report collaborator. GetBySessionID returns rows
// newest first.
type ClaimStore interface {
	Create(ctx context.Context, claim *models.Claim) error
	ClaimNumberExists(ctx context.Context, claimNumber string) (bool, error)
	GetBySessionID(ctx context.Context, sessionID string) ([]models.Claim, error)
}

type EvidenceStore interface {
	Put(ctx context.Context, sessionID string, data []byte, mimeType, extension string) (string, error)
	Delete(ctx context.Context, key string) error
}

type ClaimEventSink interface {
	PublishClaimSubmitted(ctx context.Context, evt event.ClaimSubmittedEvent) error
	NotifyClaimSubmitted(ctx context.Context, evt event.ClaimSubmittedEvent) error
}

// SessionDeps wires the session controller. Analyzer and Claims are required; the
// rest are optional and skipped when nil.
type SessionDeps struct {
	Analyzer           Analyzer
	Claims             *ClaimService
	Jobs               worker.Submitter
	Store              ClaimStore
	Evidence           EvidenceStore
	Events             ClaimEventSink
	Snapshots          repository.SessionRepository
	SubmitDelay        time.Duration
	HistorySwitchDelay time.Duration
	SessionTTL         time.Duration
}

// SessionService owns every live Session, keyed by session id.
type SessionService struct {
	deps SessionDeps
	now  func() time.Time

	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewSessionService(deps SessionDeps) *SessionService {
	return &SessionService{
		deps:     deps,
		now:      time.Now,
		sessions: make(map[string]*Session),
	}
}

// ============================================================================
// REGISTRY
// ============================================================================

func (s *SessionService) CreateSession(ctx context.Context) models.SessionSnapshot {
	sess := newSession(uuid.NewString(), s.deps.HistorySwitchDelay, s.now())

	s.mu.Lock()
	s.sessions[sess.id] = sess
	s.mu.Unlock()

	slog.Info("Session created", "session_id", sess.id)
	s.persist(sess)
	return sess.Snapshot()
}

func (s *SessionService) session(ctx context.Context, id string) (*Session, error) {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()
	if ok {
		return sess, nil
	}

	snap, source, err := s.loadSnapshot(ctx, id)
	if err != nil {
		return nil, err
	}

	restored := restoreSession(snap, s.deps.HistorySwitchDelay)

	s.mu.Lock()
	if existing, ok := s.sessions[id]; ok {
		s.mu.Unlock()
		restored.cancel()
		return existing, nil
	}
	s.sessions[id] = restored
	s.mu.Unlock()

	slog.Info("Session restored", "session_id", id, "source", source, "claims", len(snap.Claims))
	if source != "snapshot" {
		s.persist(restored)
	}
	return restored, nil
}

// loadSnapshot looks for a session that is not live: the stored snapshot first,
// then the claims filed under that id in the durable store.
func (s *SessionService) loadSnapshot(ctx context.Context, id string) (*models.SessionSnapshot, string, error) {
	if s.deps.Snapshots != nil {
		snap, err := s.deps.Snapshots.GetSession(ctx, id)
		if err == nil {
			return snap, "snapshot", nil
		}
		if !errors.Is(err, repository.ErrSessionNotFound) {
			return nil, "", fmt.Errorf("failed to load session %s: %w", id, err)
		}
	}

	if s.deps.Store == nil {
		return nil, "", ErrSessionNotFound
	}
	rows, err := s.deps.Store.GetBySessionID(ctx, id)
	if err != nil {
		return nil, "", fmt.Errorf("failed to load claim history for session %s: %w", id, err)
	}
	if len(rows) == 0 {
		return nil, "", ErrSessionNotFound
	}

	claims := make([]models.ClaimRecord, 0, len(rows))
	for _, row := range rows {
		claims = append(claims, row.Record())
	}
	return &models.SessionSnapshot{
		ID:        id,
		ActiveTab: models.TabHistory,
		Claims:    claims,
		CreatedAt: claims[len(claims)-1].CreatedAt,
		UpdatedAt: s.now(),
	}, "claim_store", nil
}

func (s *SessionService) GetSession(ctx context.Context, id string) (models.SessionSnapshot, error) {
	sess, err := s.session(ctx, id)
	if err != nil {
		return models.SessionSnapshot{}, err
	}
	return sess.Snapshot(), nil
}

func (s *SessionService) DeleteSession(ctx context.Context, id string) error {
	sess, err := s.session(ctx, id)
	if err != nil {
		return err
	}

	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
	sess.close()

	if s.deps.Snapshots != nil {
		if err := s.deps.Snapshots.DeleteSession(ctx, id); err != nil {
			slog.Warn("failed to delete session snapshot", "session_id", id, "error", err)
		}
	}
	slog.Info("Session deleted", "session_id", id)
	return nil
}

// EvictIdle drops sessions untouched for longer than the session TTL.
func (s *SessionService) EvictIdle() int {
	if s.deps.SessionTTL <= 0 {
		return 0
	}
	cutoff := s.now().Add(-s.deps.SessionTTL)

	s.mu.Lock()
	var evicted []*Session
	for id, sess := range s.sessions {
		if sess.lastActive().Before(cutoff) {
			evicted = append(evicted, sess)
			delete(s.sessions, id)
		}
	}
	s.mu.Unlock()

	for _, sess := range evicted {
		sess.close()
	}
	if len(evicted) > 0 {
		slog.Info("Evicted idle sessions", "count", len(evicted))
	}
	return len(evicted)
}

// RunJanitor evicts idle sessions every interval until ctx ends.
func (s *SessionService) RunJanitor(ctx context.Context, interval time.Duration, wg *sync.WaitGroup) {
	defer wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.EvictIdle()
		}
	}
}

// Shutdown stops every session's timers and in-flight tasks.
func (s *SessionService) Shutdown() {
	s.mu.Lock()
	sessions := s.sessions
	s.sessions = make(map[string]*Session)
	s.mu.Unlock()

	for _, sess := range sessions {
		sess.close()
	}
}

// mutate runs fn under the session lock and stores a snapshot when fn succeeds.
func (s *SessionService) mutate(sess *Session, fn func() error) error {
	sess.mu.Lock()
	if sess.closed {
		sess.mu.Unlock()
		return ErrSessionNotFound
	}
	err := fn()
	if err == nil {
		sess.updatedAt = s.now()
	}
	sess.mu.Unlock()

	if err == nil {
		s.persist(sess)
	}
	return err
}

func (s *SessionService) persist(sess *Session) {
	if s.deps.Snapshots == nil {
		return
	}

	sess.saveMu.Lock()
	defer sess.saveMu.Unlock()

	snap := sess.Snapshot()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := s.deps.Snapshots.SaveSession(ctx, &snap); err != nil {
		slog.Warn("failed to save session snapshot", "session_id", sess.id, "error", err)
	}
}

// ============================================================================
// NAVIGATION & LOCATION
// ============================================================================

func (s *SessionService) SwitchTab(ctx context.Context, id string, tab models.Tab) (models.SessionSnapshot, error) {
	sess, err := s.session(ctx, id)
	if err != nil {
		return models.SessionSnapshot{}, err
	}
	if err := s.mutate(sess, func() error { return sess.nav.Switch(tab) }); err != nil {
		return models.SessionSnapshot{}, err
	}
	return sess.Snapshot(), nil
}

// NewLocationReport turns a geolocation outcome into what the session records.
// Denied and unsupported are distinct failures; both carry a farmer-facing warning.
func NewLocationReport(req models.LocationUpdateRequest) (models.LocationReport, error) {
	switch req.Status {
	case models.LocationAvailable:
		if req.Latitude == nil || req.Longitude == nil {
			return models.LocationReport{}, fmt.Errorf("%w: latitude and longitude are required", ErrInvalidLocation)
		}
		lat, lng := *req.Latitude, *req.Longitude
		if lat < -90 || lat > 90 || lng < -180 || lng > 180 {
			return models.LocationReport{}, fmt.Errorf("%w: coordinates out of range", ErrInvalidLocation)
		}
		return models.LocationReport{
			Status:   models.LocationAvailable,
			Location: &models.LocationData{Latitude: lat, Longitude: lng},
		}, nil
	case models.LocationDenied:
		return models.LocationReport{
			Status:  models.LocationDenied,
			Reason:  req.Reason,
			Warning: models.LocationUnavailableWarning,
		}, nil
	case models.LocationUnsupported:
		return models.LocationReport{
			Status:  models.LocationUnsupported,
			Reason:  req.Reason,
			Warning: models.LocationUnsupportedWarning,
		}, nil
	default:
		return models.LocationReport{}, fmt.Errorf("%w: unknown status %q", ErrInvalidLocation, req.Status)
	}
}

func (s *SessionService) ReportLocation(ctx context.Context, id string, req models.LocationUpdateRequest) (models.LocationReport, error) {
	report, err := NewLocationReport(req)
	if err != nil {
		return models.LocationReport{}, err
	}

	sess, err := s.session(ctx, id)
	if err != nil {
		return models.LocationReport{}, err
	}

	err = s.mutate(sess, func() error {
		sess.location = report
		return nil
	})
	if err != nil {
		return models.LocationReport{}, err
	}

	if report.Status != models.LocationAvailable {
		slog.Warn("Location unavailable for session", "session_id", id, "status", report.Status, "reason", report.Reason)
	}
	return report, nil
}

// ============================================================================
// IMAGE & ANALYSIS
// ============================================================================

// SelectImage replaces the current image and returns the analysis to idle.
func (s *SessionService) SelectImage(ctx context.Context, id string, data []byte, mimeType string) (models.SessionSnapshot, error) {
	if len(data) == 0 {
		return models.SessionSnapshot{}, ErrNoImageSelected
	}
	sess, err := s.session(ctx, id)
	if err != nil {
		return models.SessionSnapshot{}, err
	}

	if mimeType == "" {
		mimeType = utils.DetectImageMIMEType(data)
	}
	image := &capturedImage{data: data, mimeType: mimeType}

	if s.deps.Evidence != nil {
		key, err := s.deps.Evidence.Put(ctx, id, data, mimeType, utils.ImageExtension(mimeType))
		if err != nil {
			slog.Warn("failed to store crop evidence", "session_id", id, "error", err)
		} else {
			image.evidenceKey = key
		}
	}

	var replaced string
	err = s.mutate(sess, func() error {
		replaced = s.unreferencedEvidence(sess)
		sess.image = image
		sess.analysis.Reset()
		return nil
	})
	if err != nil {
		return models.SessionSnapshot{}, err
	}

	s.dropEvidence(replaced)
	return sess.Snapshot(), nil
}

func (s *SessionService) ClearImage(ctx context.Context, id string) (models.SessionSnapshot, error) {
	sess, err := s.session(ctx, id)
	if err != nil {
		return models.SessionSnapshot{}, err
	}

	var replaced string
	err = s.mutate(sess, func() error {
		replaced = s.unreferencedEvidence(sess)
		sess.image = nil
		sess.analysis.Reset()
		return nil
	})
	if err != nil {
		return models.SessionSnapshot{}, err
	}

	s.dropEvidence(replaced)
	return sess.Snapshot(), nil
}

// unreferencedEvidence returns the current image's evidence key unless a filed
// claim or the open claim flow still points at it. Caller holds sess.mu.
func (s *SessionService) unreferencedEvidence(sess *Session) string {
	if sess.image == nil || sess.image.evidenceKey == "" {
		return ""
	}
	key := sess.image.evidenceKey
	if sess.claims.References(key) || (sess.flow != nil && sess.flow.evidenceKey == key) {
		return ""
	}
	return key
}

func (s *SessionService) dropEvidence(key string) {
	if key == "" || s.deps.Evidence == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.deps.Evidence.Delete(ctx, key); err != nil {
			slog.Warn("failed to delete unused crop evidence", "evidence_key", key, "error", err)
		}
	}()
}

// StartAnalysis moves the session to Requesting and queues the inference call.
// The returned state is the Requesting state; the outcome lands in the session.
func (s *SessionService) StartAnalysis(ctx context.Context, id string) (models.AnalysisState, error) {
	sess, err := s.session(ctx, id)
	if err != nil {
		return models.AnalysisState{}, err
	}

	var state models.AnalysisState
	err = s.mutate(sess, func() error {
		generation, err := sess.analysis.Start(sess.image != nil)
		if err != nil {
			return err
		}

		var location *models.LocationData
		if sess.location.Location != nil {
			loc := *sess.location.Location
			location = &loc
		}
		job := s.analysisJob(sess, generation, sess.image, location)

		if s.deps.Jobs == nil {
			go job(context.Background())
		} else if err := s.deps.Jobs.SubmitJob(job); err != nil {
			sess.analysis.Reset()
			slog.Warn("analysis job rejected", "session_id", sess.id, "error", err)
			return fmt.Errorf("%w: %v", ErrAnalysisBusy, err)
		}

		state = sess.analysis.State()
		return nil
	})
	if err != nil {
		return models.AnalysisState{}, err
	}
	return state, nil
}

func (s *SessionService) analysisJob(sess *Session, generation uint64, image *capturedImage, location *models.LocationData) worker.Job {
	return func(poolCtx context.Context) error {
		ctx, cancel := context.WithCancel(sess.ctx)
		defer cancel()
		stop := context.AfterFunc(poolCtx, cancel)
		defer stop()

		result, analyzeErr := s.deps.Analyzer.Analyze(ctx, image.data, image.mimeType, location)

		applied := false
		_ = s.mutate(sess, func() error {
			if analyzeErr != nil {
				applied = sess.analysis.Reject(generation, analysisErrorMessage(analyzeErr))
			} else {
				applied = sess.analysis.Resolve(generation, *result)
			}
			return nil
		})
		if !applied {
			slog.Info("Discarded stale analysis outcome", "session_id", sess.id, "generation", generation)
		}
		return analyzeErr
	}
}

func analysisErrorMessage(err error) string {
	var ae *AnalysisError
	if errors.As(err, &ae) {
		return ae.Message
	}
	return newProviderError(err).Message
}

func (s *SessionService) AnalysisState(ctx context.Context, id string) (models.AnalysisState, error) {
	sess, err := s.session(ctx, id)
	if err != nil {
		return models.AnalysisState{}, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.analysis.State(), nil
}

// ============================================================================
// CLAIMS
// ============================================================================

func (s *SessionService) ListClaims(ctx context.Context, id string) ([]models.ClaimRecord, error) {
	sess, err := s.session(ctx, id)
	if err != nil {
		return nil, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.claims.List(), nil
}

// ClaimsMap renders the session's claims and the farmer's own fix as GeoJSON.
func (s *SessionService) ClaimsMap(ctx context.Context, id string) ([]byte, error) {
	sess, err := s.session(ctx, id)
	if err != nil {
		return nil, err
	}

	sess.mu.Lock()
	claims := sess.claims.List()
	self := sess.location.Location
	sess.mu.Unlock()

	return models.ClaimsFeatureCollection(claims, self)
}
