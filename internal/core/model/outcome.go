// Copyright 2024 Google, LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package model defines the core data structures for the application.
// This file holds the error taxonomy and the per-request outcome.
//
// Every request ends in exactly one Disposition. The mapping to the message
// bus is fixed: Processed and Ignored acknowledge, Rejected acknowledges with
// a permanent failure (no retry helps), Retry asks for redelivery.
//
// Structs:
//   - StageError: A failure of one pipeline stage, tagged with its Kind.
//   - Outcome: The single result of handling one request.
package model

import (
	"errors"
	"fmt"
)

// ErrGenerationMismatch is wrapped by fetch failures when the object no
// longer exists at the requested generation.
var ErrGenerationMismatch = errors.New("object generation no longer matches")

// Kind classifies a stage failure.
type Kind int

const (
	KindMalformed Kind = iota
	KindUnauthorized
	KindFetchFailed
	KindProcessingFailed
	KindOutputWriteFailed
)

func (k Kind) String() string {
	switch k {
	case KindMalformed:
		return "malformed"
	case KindUnauthorized:
		return "unauthorized"
	case KindFetchFailed:
		return "fetch_failed"
	case KindProcessingFailed:
		return "processing_failed"
	case KindOutputWriteFailed:
		return "output_write_failed"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Retryable reports whether a failure of this kind should be redelivered.
func (k Kind) Retryable() bool {
	switch k {
	case KindFetchFailed, KindProcessingFailed, KindOutputWriteFailed:
		return true
	default:
		return false
	}
}

// StageError is a failure of a single stage. Permanent overrides the kind's
// default retry policy; it is only set for processing failures the
// collaborator explicitly marked as permanent.
type StageError struct {
	Kind      Kind
	Permanent bool
	Err       error
}

// NewStageError wraps err as a failure of the given kind.
func NewStageError(kind Kind, err error) *StageError {
	return &StageError{Kind: kind, Err: err}
}

func (e *StageError) Error() string {
	if e.Err == nil {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// Retryable reports whether the message bus should redeliver.
func (e *StageError) Retryable() bool {
	return !e.Permanent && e.Kind.Retryable()
}

// Disposition is the terminal state of a request.
type Disposition int

const (
	Processed Disposition = iota
	Ignored
	Rejected
	Retry
)

func (d Disposition) String() string {
	switch d {
	case Processed:
		return "processed"
	case Ignored:
		return "ignored"
	case Rejected:
		return "rejected"
	case Retry:
		return "retry"
	default:
		return fmt.Sprintf("disposition(%d)", int(d))
	}
}

// Acknowledged reports whether the message should be removed from the
// subscription.
func (d Disposition) Acknowledged() bool {
	return d != Retry
}

// Outcome is the result of handling one request.
type Outcome struct {
	Disposition Disposition
	Key         string    // The idempotency key; empty when the envelope never parsed.
	Reason      string    // Human readable reason for Ignored and Rejected outcomes.
	Envelope    *Envelope // The parsed envelope, when parsing got that far.
	Err         error     // The stage failure for Rejected and Retry outcomes.
}

// OutcomeFromError classifies a stage error into Rejected or Retry.
func OutcomeFromError(envelope *Envelope, err error) Outcome {
	out := Outcome{Disposition: Retry, Envelope: envelope, Err: err, Reason: err.Error()}
	if envelope != nil {
		out.Key = envelope.Key()
	}
	var stageErr *StageError
	if errors.As(err, &stageErr) && !stageErr.Retryable() {
		out.Disposition = Rejected
	}
	return out
}
