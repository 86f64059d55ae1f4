package models

import "time"

type LocationStatus string

const (
	LocationPending     LocationStatus = "pending"
	LocationAvailable   LocationStatus = "available"
	LocationDenied      LocationStatus = "denied"
	LocationUnsupported LocationStatus = "unsupported"
)

const (
	LocationUnavailableWarning = "Could not fetch location. Trust score will be lower."
	LocationUnsupportedWarning = "Geolocation is not supported by this browser."
)

// LocationReport is the outcome of one geolocation attempt.
type LocationReport struct {
	Status   LocationStatus `json:"status"`
	Location *LocationData  `json:"location,omitempty"`
	Reason   string         `json:"reason,omitempty"`
	Warning  string         `json:"warning,omitempty"`
}

type ClaimFlowStep string

const (
	StepForm       ClaimFlowStep = "form"
	StepSubmitting ClaimFlowStep = "submitting"
	StepSuccess    ClaimFlowStep = "success"
	StepFailed     ClaimFlowStep = "failed"
)

type ClaimFlowView struct {
	Step    ClaimFlowStep `json:"step"`
	ClaimID string        `json:"claim_id,omitempty"`
	Message string        `json:"message,omitempty"`
	Error   string        `json:"error,omitempty"`
}

type ImageInfo struct {
	MIMEType    string `json:"mime_type"`
	SizeBytes   int    `json:"size_bytes"`
	EvidenceKey string `json:"evidence_key,omitempty"`
}

// SessionSnapshot is the read model of one farmer session, also what Redis stores.
type SessionSnapshot struct {
	ID        string         `json:"id"`
	ActiveTab Tab            `json:"active_tab"`
	Location  LocationReport `json:"location"`
	Image     *ImageInfo     `json:"image,omitempty"`
	Analysis  AnalysisState  `json:"analysis"`
	ClaimFlow *ClaimFlowView `json:"claim_flow,omitempty"`
	Claims    []ClaimRecord  `json:"claims"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}
