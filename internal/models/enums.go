package models

import (
	"slices"
	"strings"
	"unicode"
)

type Severity string

const (
	SeverityNone     Severity = "None"
	SeverityLow      Severity = "Low"
	SeverityModerate Severity = "Moderate"
	SeverityHigh     Severity = "High"
	SeverityCritical Severity = "Critical"
	SeverityUnknown  Severity = "Unknown"
)

type SeverityBucket string

const (
	BucketLow      SeverityBucket = "low"
	BucketModerate SeverityBucket = "moderate"
	BucketHigh     SeverityBucket = "high"
)

type TrustLevel string

const (
	TrustHigh    TrustLevel = "High"
	TrustMedium  TrustLevel = "Medium"
	TrustLow     TrustLevel = "Low"
	TrustUnknown TrustLevel = "Unknown"
)

type ClaimStatus string

const (
	ClaimPending  ClaimStatus = "Pending"
	ClaimApproved ClaimStatus = "Approved"
	ClaimRejected ClaimStatus = "Rejected"
)

type Tab string

const (
	TabScan    Tab = "scan"
	TabMap     Tab = "map"
	TabHistory Tab = "history"
)

// severityLabels maps normalised provider labels onto the closed enumeration.
var severityLabels = map[string]Severity{
	"none":      SeverityNone,
	"healthy":   SeverityNone,
	"nil":       SeverityNone,
	"low":       SeverityLow,
	"mild":      SeverityLow,
	"minor":     SeverityLow,
	"moderate":  SeverityModerate,
	"medium":    SeverityModerate,
	"high":      SeverityHigh,
	"severe":    SeverityHigh,
	"very high": SeverityCritical,
	"critical":  SeverityCritical,
	"extreme":   SeverityCritical,
}

var trustLabels = map[string]TrustLevel{
	"high":     TrustHigh,
	"medium":   TrustMedium,
	"moderate": TrustMedium,
	"low":      TrustLow,
}

func normaliseLabel(label string) string {
	return strings.Join(strings.Fields(strings.ToLower(label)), " ")
}

// ParseSeverity never fails; labels outside the table become SeverityUnknown.
// severityKeywords is checked in order against the words of a label that is not
// an exact match, so "High (spreading fast)" still lands on High.
var severityKeywords = []struct {
	keyword  string
	severity Severity
}{
	{"critical", SeverityCritical},
	{"extreme", SeverityCritical},
	{"severe", SeverityHigh},
	{"high", SeverityHigh},
	{"moderate", SeverityModerate},
	{"medium", SeverityModerate},
	{"mild", SeverityLow},
	{"low", SeverityLow},
}

// negations make a label unreadable rather than flipping it: "not severe" says
// nothing reliable about the actual level.
var negations = map[string]bool{"not": true, "no": true, "non": true, "never": true}

func ParseSeverity(label string) Severity {
	normalised := normaliseLabel(label)
	if s, ok := severityLabels[normalised]; ok {
		return s
	}

	words := strings.FieldsFunc(normalised, func(r rune) bool {
		return !unicode.IsLetter(r)
	})
	for _, w := range words {
		if negations[w] {
			return SeverityUnknown
		}
	}
	for _, k := range severityKeywords {
		if slices.Contains(words, k.keyword) {
			return k.severity
		}
	}
	return SeverityUnknown
}

func (s Severity) Bucket() SeverityBucket {
	switch s {
	case SeverityHigh, SeverityCritical:
		return BucketHigh
	case SeverityModerate:
		return BucketModerate
	default:
		return BucketLow
	}
}

// GaugePercent is the fill level of the severity bar.
func (b SeverityBucket) GaugePercent() int {
	switch b {
	case BucketHigh:
		return 90
	case BucketModerate:
		return 60
	default:
		return 30
	}
}

func ParseTrustLevel(label string) TrustLevel {
	if t, ok := trustLabels[normaliseLabel(label)]; ok {
		return t
	}
	return TrustUnknown
}

func IsValidClaimStatus(status ClaimStatus) bool {
	switch status {
	case ClaimPending, ClaimApproved, ClaimRejected:
		return true
	default:
		return false
	}
}

func IsValidTab(tab Tab) bool {
	switch tab {
	case TabScan, TabMap, TabHistory:
		return true
	default:
		return false
	}
}
