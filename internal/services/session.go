package services

import (
	"context"
	"sync"
	"time"

	"crop-claim-service/internal/models"
)

type capturedImage struct {
	data        []byte
	mimeType    string
	evidenceKey string
}

// Session owns everything one farmer sees. mu guards all fields below it; saveMu
// orders snapshot writes so the newest state is always the last one stored.
type Session struct {
	id        string
	createdAt time.Time

	ctx    context.Context
	cancel context.CancelFunc
	saveMu sync.Mutex

	mu        sync.Mutex
	updatedAt time.Time
	nav       *Navigator
	location  models.LocationReport
	image     *capturedImage
	analysis  AnalysisLifecycle
	claims    ClaimLedger
	flow      *ClaimSubmission
	closed    bool
}

func newSession(id string, historyDelay time.Duration, now time.Time) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		id:        id,
		createdAt: now,
		updatedAt: now,
		ctx:       ctx,
		cancel:    cancel,
		nav:       NewNavigator(historyDelay),
		location:  models.LocationReport{Status: models.LocationPending},
	}
}

// restoreSession rebuilds a session from a stored snapshot. Image bytes are not
// stored, so a restored session has no selected image.
func restoreSession(snap *models.SessionSnapshot, historyDelay time.Duration) *Session {
	s := newSession(snap.ID, historyDelay, snap.CreatedAt)
	s.updatedAt = snap.UpdatedAt
	if models.IsValidTab(snap.ActiveTab) {
		s.nav.active = snap.ActiveTab
	}
	if snap.Location.Status != "" {
		s.location = snap.Location
	}
	s.analysis.restore(snap.Analysis)
	s.claims.records = append([]models.ClaimRecord(nil), snap.Claims...)
	return s
}

func (s *Session) ID() string {
	return s.id
}

func (s *Session) Snapshot() models.SessionSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() models.SessionSnapshot {
	snap := models.SessionSnapshot{
		ID:        s.id,
		ActiveTab: s.nav.Active(),
		Location:  s.location,
		Analysis:  s.analysis.State(),
		Claims:    s.claims.List(),
		CreatedAt: s.createdAt,
		UpdatedAt: s.updatedAt,
	}
	if s.image != nil {
		snap.Image = &models.ImageInfo{
			MIMEType:    s.image.mimeType,
			SizeBytes:   len(s.image.data),
			EvidenceKey: s.image.evidenceKey,
		}
	}
	if s.flow != nil {
		view := s.flow.View()
		snap.ClaimFlow = &view
	}
	return snap
}

func (s *Session) lastActive() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updatedAt
}

// close stops every timer and in-flight task the session started.
func (s *Session) close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	s.nav.Stop()
	if s.flow != nil {
		s.flow.discard()
		s.flow = nil
	}
	s.cancel()
}
