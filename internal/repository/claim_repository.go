package repository

import (
	"context"
	"fmt"
	"time"

	"crop-claim-service/internal/models"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const claimColumns = `
		id, claim_number, session_id, farmer_name, survey_number, aadhaar_last4,
		disease, severity, trust_score, claim_eligible, reason, claim_amount,
		status, claim_date, ST_AsBinary(location) AS location, evidence_key, created_at`

type ClaimRepository struct {
	db *sqlx.DB
}

func NewClaimRepository(db *sqlx.DB) *ClaimRepository {
	return &ClaimRepository{db: db}
}

// Create inserts a filed claim; the location is sent as EWKT for ST_GeogFromText.
func (r *ClaimRepository) Create(ctx context.Context, claim *models.Claim) error {
	if claim.ID == uuid.Nil {
		claim.ID = uuid.New()
	}
	if claim.CreatedAt.IsZero() {
		claim.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO crop_claim (
			id, claim_number, session_id, farmer_name, survey_number, aadhaar_last4,
			disease, severity, trust_score, claim_eligible, reason, claim_amount,
			status, claim_date, location, evidence_key, created_at
		) VALUES (
			:id, :claim_number, :session_id, :farmer_name, :survey_number, :aadhaar_last4,
			:disease, :severity, :trust_score, :claim_eligible, :reason, :claim_amount,
			:status, :claim_date, ST_GeogFromText(:location), :evidence_key, :created_at
		)`

	if _, err := r.db.NamedExecContext(ctx, query, claim); err != nil {
		return fmt.Errorf("failed to create claim: %w", err)
	}
	return nil
}

// GetBySessionID returns the session's filed claims newest first. It is how a
// session whose snapshot expired gets its claim history back.
func (r *ClaimRepository) GetBySessionID(ctx context.Context, sessionID string) ([]models.Claim, error) {
	var claims []models.Claim
	query := `SELECT` + claimColumns + `
		FROM crop_claim
		WHERE session_id = $1
		ORDER BY created_at DESC`

	if err := r.db.SelectContext(ctx, &claims, query, sessionID); err != nil {
		return nil, fmt.Errorf("failed to get claims by session id: %w", err)
	}
	return claims, nil
}

// ClaimNumberExists lets the id generator redraw numbers already filed in any session.
func (r *ClaimRepository) ClaimNumberExists(ctx context.Context, claimNumber string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM crop_claim WHERE claim_number = $1)`

	if err := r.db.GetContext(ctx, &exists, query, claimNumber); err != nil {
		return false, fmt.Errorf("failed to check claim number: %w", err)
	}
	return exists, nil
}
