package models

import (
	"fmt"
	"strings"
)

type LocationData struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

func (l LocationData) String() string {
	return fmt.Sprintf("%.4f, %.4f", l.Latitude, l.Longitude)
}

// AnalysisResult is the diagnosis returned by the inference provider. Every field is
// required; a response missing any of them is never turned into an AnalysisResult.
type AnalysisResult struct {
	Disease            string `json:"disease"`
	Severity           string `json:"severity"`
	TrustScore         string `json:"trust_score"`
	ClaimEligible      bool   `json:"claim_eligible"`
	Reason             string `json:"reason"`
	SummaryForSpeech   string `json:"summary_for_speech"`
	Remedy             string `json:"remedy"`
	RecommendedProduct string `json:"recommended_product"`
}

// AnalysisResultFields lists the JSON keys of AnalysisResult in schema order.
var AnalysisResultFields = []string{
	"disease",
	"severity",
	"trust_score",
	"claim_eligible",
	"reason",
	"summary_for_speech",
	"remedy",
	"recommended_product",
}

func (r AnalysisResult) IsHealthy() bool {
	return strings.Contains(strings.ToLower(r.Disease), "healthy")
}

func (r AnalysisResult) SeverityLevel() Severity {
	return ParseSeverity(r.Severity)
}

func (r AnalysisResult) Trust() TrustLevel {
	return ParseTrustLevel(r.TrustScore)
}

func (r AnalysisResult) EligibilityLabel() string {
	if r.ClaimEligible {
		return "Eligible for Compensation"
	}
	return "Unlikely Eligible"
}

// AnalysisView decorates a result with the values the scan screen renders.
type AnalysisView struct {
	AnalysisResult
	Healthy          bool           `json:"healthy"`
	SeverityLevel    Severity       `json:"severity_level"`
	SeverityBucket   SeverityBucket `json:"severity_bucket"`
	SeverityGauge    int            `json:"severity_gauge_percent"`
	TrustLevel       TrustLevel     `json:"trust_level"`
	EligibilityLabel string         `json:"eligibility_label"`
}

func NewAnalysisView(r AnalysisResult) AnalysisView {
	level := r.SeverityLevel()
	return AnalysisView{
		AnalysisResult:   r,
		Healthy:          r.IsHealthy(),
		SeverityLevel:    level,
		SeverityBucket:   level.Bucket(),
		SeverityGauge:    level.Bucket().GaugePercent(),
		TrustLevel:       r.Trust(),
		EligibilityLabel: r.EligibilityLabel(),
	}
}

// AnalysisState holds at most one of loading, error or result; all clear means idle.
type AnalysisState struct {
	IsLoading bool            `json:"isLoading"`
	Error     *string         `json:"error"`
	Result    *AnalysisResult `json:"result"`
}

func IdleAnalysisState() AnalysisState {
	return AnalysisState{}
}

type SchemaType string

const (
	SchemaString  SchemaType = "string"
	SchemaBoolean SchemaType = "boolean"
)

type SchemaField struct {
	Name        string
	Type        SchemaType
	Description string
}

// OutputSchema is the provider-neutral description of a structured response.
type OutputSchema struct {
	Fields   []SchemaField
	Required []string
}
