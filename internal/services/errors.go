package services

import (
	"errors"
	"fmt"
	"strings"

	"crop-claim-service/internal/utils"
)

const GenericAnalysisFailure = "Failed to analyze image. Please try again."

type AnalysisErrorKind string

const (
	TranscodingFailure AnalysisErrorKind = "transcoding"
	ContractViolation  AnalysisErrorKind = "contract"
	ProviderFailure    AnalysisErrorKind = "provider"
)

// AnalysisError ends one analysis attempt. Message is shown to the farmer as is.
type AnalysisError struct {
	Kind    AnalysisErrorKind
	Message string
	Err     error
}

func (e *AnalysisError) Error() string {
	return e.Message
}

func (e *AnalysisError) Unwrap() error {
	return e.Err
}

func newContractError(format string, args ...any) *AnalysisError {
	return &AnalysisError{Kind: ContractViolation, Message: fmt.Sprintf(format, args...)}
}

func newProviderError(err error) *AnalysisError {
	msg := strings.TrimSpace(err.Error())
	if msg == "" {
		msg = GenericAnalysisFailure
	}
	return &AnalysisError{Kind: ProviderFailure, Message: msg, Err: err}
}

// FormValidationError blocks a claim submission before the flow changes state.
type FormValidationError struct {
	Fields []utils.ValidationError
}

func (e *FormValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Message)
	}
	return "invalid claim form: " + strings.Join(parts, "; ")
}

var (
	ErrSessionNotFound  = errors.New("session not found")
	ErrNoImageSelected  = errors.New("no image selected")
	ErrAnalysisInFlight = errors.New("analysis already in progress")
	ErrAnalysisBusy     = errors.New("analysis queue is busy, please try again shortly")
	ErrNoAnalysisResult = errors.New("no analysis result to claim against")
	ErrNotEligible      = errors.New("analysis is not eligible for a PMFBY claim")
	ErrClaimFlowClosed  = errors.New("claim flow is not open")
	ErrInvalidClaimStep = errors.New("claim flow cannot accept this action in its current step")
	ErrInvalidTab       = errors.New("unknown view")
	ErrInvalidLocation  = errors.New("invalid location report")
)
