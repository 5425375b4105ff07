// Package errkind implements the error taxonomy used across every pipeline
// stage: a small set of named kinds, each with a fixed recovery policy
// described in the package's policy table rather than in scattered comments.
package errkind

import (
	"errors"
	"fmt"
)

// ErrPartialCompletion signals that a stage halted cleanly before
// finishing its pending set — a cost ceiling was hit or the run was
// cancelled — rather than failing outright. cmd/fppc-corpus wraps it onto
// an otherwise-nil RunE error so main can map it to exit code 2 per spec
// §6 Exit codes, while the stage's summary is still printed as usual.
var ErrPartialCompletion = errors.New("partial completion")

// Kind identifies one of the pipeline's error categories. Kinds are not Go
// type names; every stage wraps its errors in a PipelineError carrying one
// of these so callers can branch with errors.As and a type switch on Kind.
type Kind string

const (
	// TransientNetwork covers request timeouts, connection resets, and 5xx
	// responses. Policy: bounded exponential backoff; if retries are
	// exhausted the row transitions to failed for that stage.
	TransientNetwork Kind = "transient-network"

	// RateLimited covers 429 or an equivalent signal. Policy: exponential
	// wait with a longer base than TransientNetwork, tracked separately.
	RateLimited Kind = "rate-limited"

	// ParseFailed covers unexpected HTML, JSON, or text structure. Policy:
	// log with context and skip the unit; the row is left pending.
	ParseFailed Kind = "parse-failed"

	// InputMissing covers a local binary absent despite downloaded status.
	// Policy: mark extraction status error; requires operator repair.
	InputMissing Kind = "input-missing"

	// CostCeilingHit covers cumulative spend reaching a configured maximum.
	// Policy: halt cleanly at the next safe point and flush a checkpoint.
	CostCeilingHit Kind = "cost-ceiling-hit"

	// QualityTooLow covers embedded text below threshold with vision-OCR
	// unavailable or also below threshold. Policy: still emit a record,
	// flagged for LLM synthesis.
	QualityTooLow Kind = "quality-too-low"

	// HallucinationDetected covers a Verifier adjudication that disagrees
	// with vision-OCR output. Policy: attempt classical-OCR repair.
	HallucinationDetected Kind = "hallucination-detected"
)

// PipelineError is the concrete error type carried by every stage. Message
// is operator-facing context; Err is the underlying cause, if any.
type PipelineError struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *PipelineError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}

// Is reports whether target is a *PipelineError of the same Kind, so
// errors.Is(err, errkind.New(errkind.TransientNetwork, "", nil)) matches any
// error of that kind whatever its message or cause.
func (e *PipelineError) Is(target error) bool {
	t, ok := target.(*PipelineError)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// New constructs a PipelineError of the given kind.
func New(kind Kind, message string, err error) *PipelineError {
	return &PipelineError{Kind: kind, Message: message, Err: err}
}

func TransientNetworkError(message string, err error) *PipelineError {
	return New(TransientNetwork, message, err)
}

func RateLimitedError(message string, err error) *PipelineError {
	return New(RateLimited, message, err)
}

func ParseFailedError(message string, err error) *PipelineError {
	return New(ParseFailed, message, err)
}

func InputMissingError(message string, err error) *PipelineError {
	return New(InputMissing, message, err)
}

func CostCeilingError(message string) *PipelineError {
	return New(CostCeilingHit, message, nil)
}

func QualityTooLowError(message string) *PipelineError {
	return New(QualityTooLow, message, nil)
}

func HallucinationError(message string) *PipelineError {
	return New(HallucinationDetected, message, nil)
}

// KindOf returns the Kind of err if it is (or wraps) a *PipelineError, and
// ok=false otherwise.
func KindOf(err error) (Kind, bool) {
	var pe *PipelineError
	if asPipelineError(err, &pe) {
		return pe.Kind, true
	}
	return "", false
}

func asPipelineError(err error, target **PipelineError) bool {
	for err != nil {
		if pe, ok := err.(*PipelineError); ok {
			*target = pe
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
