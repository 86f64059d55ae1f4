package services

import (
	"context"
	"log/slog"
	"time"

	"crop-claim-service/internal/event"
	"crop-claim-service/internal/models"

	"github.com/google/uuid"
)

// OpenClaimFlow starts a fresh claim form for the current diagnosis. Any flow
// already open is discarded along with its in-flight attempt.
func (s *SessionService) OpenClaimFlow(ctx context.Context, id string) (models.ClaimFlowView, error) {
	sess, err := s.session(ctx, id)
	if err != nil {
		return models.ClaimFlowView{}, err
	}

	var view models.ClaimFlowView
	err = s.mutate(sess, func() error {
		result := sess.analysis.Result()
		if result == nil {
			return ErrNoAnalysisResult
		}
		if !IsClaimEligible(*result) {
			return ErrNotEligible
		}

		if sess.flow != nil {
			sess.flow.discard()
		}
		evidenceKey := ""
		if sess.image != nil {
			evidenceKey = sess.image.evidenceKey
		}
		sess.flow = NewClaimSubmission(*result, sess.location.Location, evidenceKey)
		view = sess.flow.View()
		return nil
	})
	return view, err
}

// SubmitClaim validates the attestation and, if it is well formed, starts filing.
// A *FormValidationError leaves the form untouched.
func (s *SessionService) SubmitClaim(ctx context.Context, id string, attestation models.Attestation) (models.ClaimFlowView, error) {
	return s.advanceClaimFlow(ctx, id, func(flow *ClaimSubmission) (uint64, error) {
		return flow.Submit(attestation)
	})
}

// RetryClaim re-files a claim whose previous attempt failed.
func (s *SessionService) RetryClaim(ctx context.Context, id string) (models.ClaimFlowView, error) {
	return s.advanceClaimFlow(ctx, id, func(flow *ClaimSubmission) (uint64, error) {
		return flow.Retry()
	})
}

func (s *SessionService) advanceClaimFlow(ctx context.Context, id string, transition func(*ClaimSubmission) (uint64, error)) (models.ClaimFlowView, error) {
	sess, err := s.session(ctx, id)
	if err != nil {
		return models.ClaimFlowView{}, err
	}

	var view models.ClaimFlowView
	err = s.mutate(sess, func() error {
		flow := sess.flow
		if flow == nil {
			return ErrClaimFlowClosed
		}
		attempt, err := transition(flow)
		if err != nil {
			return err
		}

		attemptCtx, cancel := context.WithCancel(sess.ctx)
		flow.bind(cancel)
		go s.fileClaim(attemptCtx, cancel, sess, flow, attempt)

		view = flow.View()
		return nil
	})
	return view, err
}

// CloseClaimFlow discards the flow. Closing after Success goes straight to history.
func (s *SessionService) CloseClaimFlow(ctx context.Context, id string) (models.SessionSnapshot, error) {
	sess, err := s.session(ctx, id)
	if err != nil {
		return models.SessionSnapshot{}, err
	}

	err = s.mutate(sess, func() error {
		flow := sess.flow
		if flow == nil {
			return nil
		}
		if flow.Step() == models.StepSuccess {
			sess.nav.Stop()
			sess.nav.active = models.TabHistory
		}
		flow.discard()
		sess.flow = nil
		return nil
	})
	if err != nil {
		return models.SessionSnapshot{}, err
	}
	return sess.Snapshot(), nil
}

// fileClaim is one submission attempt: wait out the submit delay, build the record,
// persist it when a store is configured, then complete the flow. If the flow was
// closed or superseded meanwhile the attempt ends without touching the session.
func (s *SessionService) fileClaim(ctx context.Context, cancel context.CancelFunc, sess *Session, flow *ClaimSubmission, attempt uint64) {
	defer cancel()

	select {
	case <-ctx.Done():
		return
	case <-time.After(s.deps.SubmitDelay):
	}

	var (
		analysis    models.AnalysisResult
		location    *models.LocationData
		evidenceKey string
		attestation models.Attestation
		taken       map[string]bool
	)

	sess.mu.Lock()
	if sess.flow != flow || !flow.Awaiting(attempt) {
		sess.mu.Unlock()
		return
	}
	analysis, location, evidenceKey, attestation = flow.analysis, flow.location, flow.evidenceKey, flow.attestation
	taken = make(map[string]bool, len(sess.claims.records))
	for _, r := range sess.claims.records {
		taken[r.ID] = true
	}
	sess.mu.Unlock()

	record := s.deps.Claims.NewClaimRecord(analysis, location, evidenceKey, func(claimID string) bool {
		if taken[claimID] {
			return true
		}
		return s.claimNumberFiled(ctx, claimID)
	})

	persisted := false
	if s.deps.Store != nil {
		row := newClaimRow(sess.id, record, analysis, attestation, location)
		if err := s.deps.Store.Create(ctx, row); err != nil {
			slog.Error("failed to file claim", "session_id", sess.id, "claim_id", record.ID, "error", err)
			_ = s.mutate(sess, func() error {
				if sess.flow == flow {
					flow.Fail(attempt, claimFilingFailure)
				}
				return nil
			})
			return
		}
		persisted = true
	}

	current := false
	recorded := false
	_ = s.mutate(sess, func() error {
		current = sess.flow == flow && flow.Awaiting(attempt)
		if !current && !persisted {
			return nil
		}
		// a durably filed claim belongs in the history even if the form was closed
		sess.claims.Add(record)
		recorded = true
		if current {
			flow.Complete(attempt, record)
			sess.nav.ScheduleHistory(func() { s.switchToHistory(sess) })
		}
		return nil
	})
	if !recorded {
		return
	}

	slog.Info("Claim filed",
		"session_id", sess.id,
		"claim_id", record.ID,
		"disease", record.Disease,
		"persisted", persisted,
		"flow_open", current)

	s.announce(sess.id, record, analysis, attestation)
}

func (s *SessionService) claimNumberFiled(ctx context.Context, claimID string) bool {
	if s.deps.Store == nil {
		return false
	}
	exists, err := s.deps.Store.ClaimNumberExists(ctx, claimID)
	if err != nil {
		slog.Warn("failed to check claim number uniqueness", "claim_id", claimID, "error", err)
		return false
	}
	return exists
}

func (s *SessionService) switchToHistory(sess *Session) {
	_ = s.mutate(sess, func() error {
		sess.nav.active = models.TabHistory
		return nil
	})
}

// announce publishes the filing events. Failures are logged, never surfaced.
func (s *SessionService) announce(sessionID string, record models.ClaimRecord, analysis models.AnalysisResult, attestation models.Attestation) {
	if s.deps.Events == nil {
		return
	}

	evt := event.ClaimSubmittedEvent{
		EventID:       uuid.NewString(),
		SessionID:     sessionID,
		ClaimNumber:   record.ID,
		FarmerName:    attestation.FarmerName,
		SurveyNumber:  attestation.SurveyNumber,
		Disease:       record.Disease,
		Severity:      analysis.Severity,
		TrustScore:    analysis.TrustScore,
		ClaimEligible: record.ClaimEligible,
		Amount:        record.Amount,
		Status:        string(record.Status),
		Latitude:      record.Lat,
		Longitude:     record.Lng,
		EvidenceKey:   record.EvidenceKey,
		SubmittedAt:   record.CreatedAt,
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := s.deps.Events.PublishClaimSubmitted(ctx, evt); err != nil {
			slog.Warn("failed to publish claim submitted event", "claim_id", evt.ClaimNumber, "error", err)
		}
		if err := s.deps.Events.NotifyClaimSubmitted(ctx, evt); err != nil {
			slog.Warn("failed to publish claim notification", "claim_id", evt.ClaimNumber, "error", err)
		}
	}()
}

func newClaimRow(sessionID string, record models.ClaimRecord, analysis models.AnalysisResult, attestation models.Attestation, location *models.LocationData) *models.Claim {
	row := &models.Claim{
		ID:            uuid.New(),
		ClaimNumber:   record.ID,
		SessionID:     sessionID,
		FarmerName:    attestation.FarmerName,
		SurveyNumber:  attestation.SurveyNumber,
		AadhaarLast4:  attestation.AadhaarLast4,
		Disease:       record.Disease,
		Severity:      analysis.Severity,
		TrustScore:    analysis.TrustScore,
		ClaimEligible: record.ClaimEligible,
		Reason:        analysis.Reason,
		ClaimAmount:   record.Amount,
		Status:        record.Status,
		ClaimDate:     record.Date,
		CreatedAt:     record.CreatedAt,
	}
	if location != nil {
		row.Location = models.NewGeoPoint(*location)
	}
	if record.EvidenceKey != "" {
		key := record.EvidenceKey
		row.EvidenceKey = &key
	}
	return row
}
