package event

import "time"

const (
	PushNotiQueue       string = "push_noti_events"
	ClaimSubmittedQueue string = "crop_claim_submitted_events"
)

// ClaimQueues are declared when the broker connection opens.
var ClaimQueues = []string{ClaimSubmittedQueue, PushNotiQueue}

type NotificationEventPushModel struct {
	LstUserIds []string       `json:"lstUserIds,omitempty"`
	Title      string         `json:"title"`
	Body       string         `json:"body"`
	Data       map[string]any `json:"data,omitempty"`
}

// ClaimSubmittedEvent is emitted once per filed claim for downstream reporting.
type ClaimSubmittedEvent struct {
	EventID       string    `json:"event_id"`
	SessionID     string    `json:"session_id"`
	ClaimNumber   string    `json:"claim_number"`
	FarmerName    string    `json:"farmer_name"`
	SurveyNumber  string    `json:"survey_number"`
	Disease       string    `json:"disease"`
	Severity      string    `json:"severity"`
	TrustScore    string    `json:"trust_score"`
	ClaimEligible bool      `json:"claim_eligible"`
	Amount        string    `json:"amount"`
	Status        string    `json:"status"`
	Latitude      float64   `json:"latitude"`
	Longitude     float64   `json:"longitude"`
	EvidenceKey   string    `json:"evidence_key,omitempty"`
	SubmittedAt   time.Time `json:"submitted_at"`
}

type PublisherHealthStatus struct {
	IsHealthy         bool      `json:"is_healthy"`
	MessagesPublished int64     `json:"messages_published"`
	MessagesFailed    int64     `json:"messages_failed"`
	LastPublishTime   time.Time `json:"last_publish_time"`
}
