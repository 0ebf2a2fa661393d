package ppg

import (
	"fmt"
	"net/http"

	"github.com/irfndi/tanya-ai-go/internal/models"
)

// InsufficientDataError reports a buffer shorter than the minimum recording window.
type InsufficientDataError struct {
	Required int
	Actual   int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient signal data: need at least %d samples, got %d", e.Required, e.Actual)
}

// PreprocessingError reports a filter or detrend failure.
type PreprocessingError struct {
	Message string
	Err     error
}

func (e *PreprocessingError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("preprocessing failed: %s: %v", e.Message, e.Err)
	}
	return "preprocessing failed: " + e.Message
}

func (e *PreprocessingError) Unwrap() error {
	return e.Err
}

// ProcessingError reports a failure inside beat detection or metric computation.
type ProcessingError struct {
	Source  models.SignalSource
	Message string
}

func (e *ProcessingError) Error() string {
	return fmt.Sprintf("%s processing failed: %s", sourceLabel(e.Source), e.Message)
}

// SimulationError reports invalid parameters for the reference generator.
type SimulationError struct {
	Message string
}

func (e *SimulationError) Error() string {
	return "simulation failed: " + e.Message
}

// AnalysisError is the terminal error of an analysis request, already mapped to an HTTP status.
type AnalysisError struct {
	Status  int
	Message string
	Err     error
}

func (e *AnalysisError) Error() string {
	return e.Message
}

func (e *AnalysisError) Unwrap() error {
	return e.Err
}

func badRequest(message string, err error) *AnalysisError {
	return &AnalysisError{Status: http.StatusBadRequest, Message: message, Err: err}
}

func internalError(err error) *AnalysisError {
	return &AnalysisError{Status: http.StatusInternalServerError, Message: err.Error(), Err: err}
}

func sourceLabel(source models.SignalSource) string {
	switch source {
	case models.SourceWebcam:
		return "Webcam"
	case models.SourcePulseSensorSimulated:
		return "Pulse sensor"
	default:
		return string(source)
	}
}
