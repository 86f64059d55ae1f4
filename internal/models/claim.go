package models

import (
	"time"

	"github.com/google/uuid"
)

// Attestation is what the farmer types into the claim form.
type Attestation struct {
	FarmerName   string `json:"farmer_name"`
	SurveyNumber string `json:"survey_number"`
	AadhaarLast4 string `json:"aadhaar_last4"`
}

// ClaimRecord is one filed claim as the session and the history view see it.
type ClaimRecord struct {
	ID            string      `json:"id"`
	Date          string      `json:"date"`
	Disease       string      `json:"disease"`
	Amount        string      `json:"amount"`
	Status        ClaimStatus `json:"status"`
	Lat           float64     `json:"lat"`
	Lng           float64     `json:"lng"`
	ClaimEligible bool        `json:"claim_eligible"`
	EvidenceKey   string      `json:"evidence_key,omitempty"`
	CreatedAt     time.Time   `json:"created_at"`
}

// Claim is the durable row written for the reporting collaborator.
type Claim struct {
	ID            uuid.UUID   `json:"id" db:"id"`
	ClaimNumber   string      `json:"claim_number" db:"claim_number"`
	SessionID     string      `json:"session_id" db:"session_id"`
	FarmerName    string      `json:"farmer_name" db:"farmer_name"`
	SurveyNumber  string      `json:"survey_number" db:"survey_number"`
	AadhaarLast4  string      `json:"-" db:"aadhaar_last4"`
	Disease       string      `json:"disease" db:"disease"`
	Severity      string      `json:"severity" db:"severity"`
	TrustScore    string      `json:"trust_score" db:"trust_score"`
	ClaimEligible bool        `json:"claim_eligible" db:"claim_eligible"`
	Reason        string      `json:"reason" db:"reason"`
	ClaimAmount   string      `json:"claim_amount" db:"claim_amount"`
	Status        ClaimStatus `json:"status" db:"status"`
	ClaimDate     string      `json:"claim_date" db:"claim_date"`
	Location      *GeoPoint   `json:"location,omitempty" db:"location"`
	EvidenceKey   *string     `json:"evidence_key,omitempty" db:"evidence_key"`
	CreatedAt     time.Time   `json:"created_at" db:"created_at"`
}

// Record turns a stored row back into the session history entry it was filed from.
func (c Claim) Record() ClaimRecord {
	record := ClaimRecord{
		ID:            c.ClaimNumber,
		Date:          c.ClaimDate,
		Disease:       c.Disease,
		Amount:        c.ClaimAmount,
		Status:        c.Status,
		ClaimEligible: c.ClaimEligible,
		CreatedAt:     c.CreatedAt,
	}
	if c.Location != nil && len(c.Location.Coordinates) == 2 {
		record.Lng = c.Location.Coordinates[0]
		record.Lat = c.Location.Coordinates[1]
	}
	if c.EvidenceKey != nil {
		record.EvidenceKey = *c.EvidenceKey
	}
	return record
}
