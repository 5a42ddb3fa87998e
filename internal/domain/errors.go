package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrMalformedEnvelope marks payloads rejected before they enter the pipeline.
// It is reported by the receiving adapter and never routed through the fault
// channel.
var ErrMalformedEnvelope = errors.New("malformed envelope")

// ErrFaultSet is returned when a component attempts to attach results to an
// envelope that already carries a fault.
var ErrFaultSet = errors.New("envelope already faulted")

// ErrorKind classifies stage failures for the fault path.
type ErrorKind string

const (
	KindFetch    ErrorKind = "FETCH_ERROR"
	KindStore    ErrorKind = "STORE_ERROR"
	KindCompute  ErrorKind = "COMPUTE_ERROR"
	KindContract ErrorKind = "CONTRACT_VIOLATION"
	KindDelivery ErrorKind = "DELIVERY_ERROR"
)

// StageError is any stage failure that converts into a fault-path envelope.
// Code mirrors an upstream HTTP status when one exists, otherwise 500.
type StageError struct {
	Kind ErrorKind
	Code int
	Err  error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

func newStageError(kind ErrorKind, code int, err error) *StageError {
	if code == 0 {
		code = http.StatusInternalServerError
	}
	return &StageError{Kind: kind, Code: code, Err: err}
}

// FetchError wraps a failure to retrieve the source payload; code carries the
// upstream status when the source responded.
func FetchError(code int, err error) *StageError { return newStageError(KindFetch, code, err) }

// StoreError wraps a failure to write into the working area.
func StoreError(err error) *StageError { return newStageError(KindStore, 0, err) }

// ComputeError wraps a job runner failure, including a managed job that
// finished without producing output.
func ComputeError(err error) *StageError { return newStageError(KindCompute, 0, err) }

// ContractViolation wraps a result whose shape matches no known task output.
func ContractViolation(err error) *StageError {
	return newStageError(KindContract, http.StatusBadRequest, err)
}

// DeliveryError wraps a failed callback post.
func DeliveryError(code int, err error) *StageError { return newStageError(KindDelivery, code, err) }

// FaultCode extracts the numeric code carried to the fault path. Errors
// outside the taxonomy default to 500.
func FaultCode(err error) int {
	var se *StageError
	if errors.As(err, &se) {
		return se.Code
	}
	return http.StatusInternalServerError
}
