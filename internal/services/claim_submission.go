package services

import (
	"context"

	"crop-claim-service/internal/models"
)

const claimFilingFailure = "Could not file your claim. Please try again."

// ClaimSubmission is one opening of the claim form: Form, Submitting, then Success,
// or Failed when the claim could not be filed, from where Retry re-enters
// Submitting. Each attempt is numbered so only the latest one can finish it.
// Guarded by the owning Session.
type ClaimSubmission struct {
	step        models.ClaimFlowStep
	attempt     uint64
	attestation models.Attestation
	record      *models.ClaimRecord
	failure     string

	analysis    models.AnalysisResult
	location    *models.LocationData
	evidenceKey string

	cancel context.CancelFunc
}

// NewClaimSubmission captures the diagnosis and location the claim will be filed with.
func NewClaimSubmission(analysis models.AnalysisResult, location *models.LocationData, evidenceKey string) *ClaimSubmission {
	var loc *models.LocationData
	if location != nil {
		l := *location
		loc = &l
	}
	return &ClaimSubmission{
		step:        models.StepForm,
		analysis:    analysis,
		location:    loc,
		evidenceKey: evidenceKey,
	}
}

// Submit validates the attestation first; a form error leaves the step at Form.
func (c *ClaimSubmission) Submit(attestation models.Attestation) (uint64, error) {
	if c.step != models.StepForm {
		return 0, ErrInvalidClaimStep
	}
	if err := ValidateAttestation(attestation); err != nil {
		return 0, err
	}

	c.attestation = attestation
	return c.beginAttempt(), nil
}

func (c *ClaimSubmission) Retry() (uint64, error) {
	if c.step != models.StepFailed {
		return 0, ErrInvalidClaimStep
	}
	return c.beginAttempt(), nil
}

func (c *ClaimSubmission) beginAttempt() uint64 {
	c.attempt++
	c.step = models.StepSubmitting
	c.failure = ""
	return c.attempt
}

func (c *ClaimSubmission) Awaiting(attempt uint64) bool {
	return c.step == models.StepSubmitting && c.attempt == attempt
}

func (c *ClaimSubmission) Complete(attempt uint64, record models.ClaimRecord) bool {
	if !c.Awaiting(attempt) {
		return false
	}
	c.step = models.StepSuccess
	c.record = &record
	return true
}

func (c *ClaimSubmission) Fail(attempt uint64, message string) bool {
	if !c.Awaiting(attempt) {
		return false
	}
	c.step = models.StepFailed
	c.failure = message
	return true
}

func (c *ClaimSubmission) Step() models.ClaimFlowStep {
	return c.step
}

func (c *ClaimSubmission) Attestation() models.Attestation {
	return c.attestation
}

func (c *ClaimSubmission) View() models.ClaimFlowView {
	view := models.ClaimFlowView{Step: c.step, Error: c.failure}
	if c.record != nil {
		view.ClaimID = c.record.ID
		view.Message = SuccessMessage(*c.record)
	}
	return view
}

// bind attaches the cancel func of the running attempt.
func (c *ClaimSubmission) bind(cancel context.CancelFunc) {
	if c.cancel != nil {
		c.cancel()
	}
	c.cancel = cancel
}

// discard cancels any running attempt; its completion will find the flow gone.
func (c *ClaimSubmission) discard() {
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
}
