package services

import (
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"crop-claim-service/internal/models"
	"crop-claim-service/internal/utils"
)

const (
	claimIDPrefix  = "#PMFBY"
	claimDateShort = "2/1/2006"
	maxIDDraws     = 20
)

// ClaimIDGenerator draws "#PMFBY-<year>-<NNNN>" with NNNN uniform in [1000, 9999].
// The space holds 9000 ids per year token, so callers pass a taken func and
// colliding draws are redrawn.
type ClaimIDGenerator struct {
	yearToken string
	intN      func(n int) int
}

func NewClaimIDGenerator(yearToken string) *ClaimIDGenerator {
	return &ClaimIDGenerator{yearToken: yearToken, intN: rand.IntN}
}

func (g *ClaimIDGenerator) draw() string {
	return fmt.Sprintf("%s-%s-%d", claimIDPrefix, g.yearToken, 1000+g.intN(9000))
}

// Next returns the first draw that taken rejects as free. After maxIDDraws
// collisions the last draw is returned and a warning logged.
func (g *ClaimIDGenerator) Next(taken func(id string) bool) string {
	id := g.draw()
	for attempt := 1; taken != nil && taken(id); attempt++ {
		if attempt >= maxIDDraws {
			slog.Warn("claim id space exhausted, returning duplicate id", "claim_id", id, "draws", attempt)
			return id
		}
		id = g.draw()
	}
	return id
}

// IsClaimEligible trusts the diagnosis; eligibility is never recomputed locally.
func IsClaimEligible(result models.AnalysisResult) bool {
	return result.ClaimEligible
}

// ClaimLedger is a session's claim list, newest first.
type ClaimLedger struct {
	records []models.ClaimRecord
}

func (l *ClaimLedger) Add(record models.ClaimRecord) {
	l.records = append([]models.ClaimRecord{record}, l.records...)
}

func (l *ClaimLedger) Contains(id string) bool {
	for _, r := range l.records {
		if r.ID == id {
			return true
		}
	}
	return false
}

func (l *ClaimLedger) References(evidenceKey string) bool {
	for _, r := range l.records {
		if r.EvidenceKey != "" && r.EvidenceKey == evidenceKey {
			return true
		}
	}
	return false
}

func (l *ClaimLedger) List() []models.ClaimRecord {
	out := make([]models.ClaimRecord, len(l.records))
	copy(out, l.records)
	return out
}

// ClaimService turns an eligible diagnosis into a Pending claim record.
type ClaimService struct {
	ids    *ClaimIDGenerator
	amount string
	now    func() time.Time
}

func NewClaimService(ids *ClaimIDGenerator, estimatedAmount string) *ClaimService {
	return &ClaimService{ids: ids, amount: estimatedAmount, now: time.Now}
}

// NewClaimRecord always succeeds. A missing location files the claim at 0, 0.
func (s *ClaimService) NewClaimRecord(analysis models.AnalysisResult, location *models.LocationData, evidenceKey string, taken func(string) bool) models.ClaimRecord {
	now := s.now()
	record := models.ClaimRecord{
		ID:            s.ids.Next(taken),
		Date:          now.Format(claimDateShort),
		Disease:       analysis.Disease,
		Amount:        s.amount,
		Status:        models.ClaimPending,
		ClaimEligible: analysis.ClaimEligible,
		EvidenceKey:   evidenceKey,
		CreatedAt:     now,
	}
	if location != nil {
		record.Lat = location.Latitude
		record.Lng = location.Longitude
	}
	return record
}

// SubmitClaim builds the record and prepends it to the ledger.
func (s *ClaimService) SubmitClaim(ledger *ClaimLedger, analysis models.AnalysisResult, location *models.LocationData, attestation models.Attestation) models.ClaimRecord {
	record := s.NewClaimRecord(analysis, location, "", ledger.Contains)
	ledger.Add(record)
	slog.Info("Claim recorded",
		"claim_id", record.ID,
		"disease", record.Disease,
		"survey_number", attestation.SurveyNumber)
	return record
}

func ValidateAttestation(a models.Attestation) error {
	fields := utils.CollectErrors(
		utils.ValidateRequired("farmer_name", a.FarmerName),
		utils.ValidateRequired("survey_number", a.SurveyNumber),
		utils.ValidateAadhaarLast4("aadhaar_last4", a.AadhaarLast4),
	)
	if len(fields) > 0 {
		return &FormValidationError{Fields: fields}
	}
	return nil
}

// SuccessMessage is the officer-visit notice shown once a claim is filed.
func SuccessMessage(record models.ClaimRecord) string {
	return fmt.Sprintf("Your claim has been successfully registered. The local agriculture officer will visit your farm (Lat: %.4f) within 48 hours for final verification.", record.Lat)
}
