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

// Package workflow defines the high-level orchestration of the handler. This
// file implements the per-event controller shared by the push endpoint and
// the pull listeners.
//
// Logic Flow:
//  1. Decode the body as a JSON object; anything else is malformed.
//  2. Parse the envelope and apply the event type and prefix gates.
//  3. Log the idempotency key and run the ObjectEventWorkflow.
//  4. Classify the first stage error, if any, into Rejected or Retry.
//  5. Record the outcome in the ledger and forward malformed bodies, both
//     best effort.
//
// Every call returns exactly one Outcome. Nothing is retried here; retries
// are the message bus redelivering a message that was not acknowledged.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jaycherian/gcs-push-handler/internal/cloud"
	"github.com/jaycherian/gcs-push-handler/internal/core/commands"
	"github.com/jaycherian/gcs-push-handler/internal/core/cor"
	"github.com/jaycherian/gcs-push-handler/internal/core/envelope"
	"github.com/jaycherian/gcs-push-handler/internal/core/model"
	"github.com/jaycherian/gcs-push-handler/internal/core/processor"
)

// Reasons reported for malformed requests.
const (
	ReasonInvalidJSON    = "Expected JSON body from Pub/Sub (wrapped)."
	ReasonOutputWriteErr = "Output write failed"
)

// OutcomeRecorder receives every outcome. *services.OutcomeLedger implements it.
type OutcomeRecorder interface {
	Record(ctx context.Context, outcome model.Outcome) error
}

// Publisher forwards raw bodies. *cloud.TopicPublisher implements it.
type Publisher interface {
	Publish(ctx context.Context, data []byte, attributes map[string]string) error
}

// EventHandler turns one delivery into one Outcome.
type EventHandler struct {
	component string
	filters   envelope.Filters
	workflow  cor.Command
	recorder  OutcomeRecorder
	malformed Publisher
}

// Option configures optional collaborators of an EventHandler.
type Option func(*EventHandler)

// WithOutcomeRecorder records every outcome with r.
func WithOutcomeRecorder(r OutcomeRecorder) Option {
	return func(h *EventHandler) { h.recorder = r }
}

// WithMalformedPublisher forwards the body of malformed deliveries with p.
func WithMalformedPublisher(p Publisher) Option {
	return func(h *EventHandler) { h.malformed = p }
}

// NewEventHandler creates the controller for the given component settings.
func NewEventHandler(component cloud.Component, store cloud.ObjectStore, p processor.Processor, opts ...Option) *EventHandler {
	h := &EventHandler{
		component: component.Name,
		filters: envelope.Filters{
			ExpectedEventType: component.ExpectedEventType,
			ObjectPrefix:      component.ObjectPrefix,
		},
		workflow: NewObjectEventWorkflow(component, store, p),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Dispatch handles one push body.
func (h *EventHandler) Dispatch(ctx context.Context, body []byte) model.Outcome {
	outcome := h.dispatch(ctx, body)
	h.after(ctx, body, outcome)
	return outcome
}

// HandleMessage implements cloud.MessageHandler. The pulled message is
// rewrapped in the push body shape so both delivery modes share Dispatch.
func (h *EventHandler) HandleMessage(ctx context.Context, data []byte, attributes map[string]string, messageID string) bool {
	body, err := WrapPulledMessage(data, attributes, messageID)
	if err != nil {
		slog.ErrorContext(ctx, "failed to wrap pulled message", "message_id", messageID, "error", err)
		return false
	}
	return h.Dispatch(ctx, body).Disposition.Acknowledged()
}

func (h *EventHandler) dispatch(ctx context.Context, body []byte) model.Outcome {
	decoded, err := envelope.Decode(body)
	if err != nil {
		slog.WarnContext(ctx, "event_malformed", "component", h.component, "reason", ReasonInvalidJSON, "error", err)
		return model.Outcome{
			Disposition: model.Rejected,
			Reason:      ReasonInvalidJSON,
			Err:         model.NewStageError(model.KindMalformed, err),
		}
	}

	result := envelope.Parse(ctx, decoded, h.filters)
	env := result.Envelope
	switch result.Status {
	case envelope.Skipped:
		slog.InfoContext(ctx, "event_ignored", "component", h.component, "reason", result.Reason)
		out := model.Outcome{Disposition: model.Ignored, Reason: result.Reason, Envelope: env}
		if env.Bucket != "" && env.ObjectID != "" {
			out.Key = env.Key()
		}
		return out
	case envelope.Malformed:
		slog.WarnContext(ctx, "event_malformed", "component", h.component, "reason", result.Reason)
		return model.Outcome{
			Disposition: model.Rejected,
			Reason:      result.Reason,
			Envelope:    env,
			Err:         model.NewStageError(model.KindMalformed, errors.New(result.Reason)),
		}
	case envelope.Accepted:
	default:
		return model.OutcomeFromError(env, fmt.Errorf("unexpected parse status %v", result.Status))
	}

	key := env.Key()
	slog.InfoContext(ctx, "event_received",
		"component", h.component,
		"bucket", env.Bucket,
		"object", env.ObjectID,
		"generation", model.GenerationLabel(env.Generation),
		"idem_key", key,
		"message_id", env.MessageID)

	chCtx := cor.NewBaseContext(ctx)
	chCtx.Add(commands.EnvelopeParam, env)
	h.workflow.Execute(chCtx)

	if err := chCtx.Err(); err != nil {
		out := model.OutcomeFromError(env, err)
		out.Reason = failureReason(err)
		return out
	}
	return model.Outcome{Disposition: model.Processed, Key: key, Envelope: env}
}

// after runs the best-effort side effects of an outcome. Their failures are
// logged and never change the outcome.
func (h *EventHandler) after(ctx context.Context, body []byte, outcome model.Outcome) {
	if h.malformed != nil && outcome.Disposition == model.Rejected && isMalformed(outcome.Err) {
		attributes := map[string]string{"component": h.component, "reason": outcome.Reason}
		if err := h.malformed.Publish(ctx, body, attributes); err != nil {
			slog.WarnContext(ctx, "failed to forward malformed event", "error", err)
		}
	}
	if h.recorder != nil {
		if err := h.recorder.Record(ctx, outcome); err != nil {
			slog.WarnContext(ctx, "failed to record outcome", "idem_key", outcome.Key, "error", err)
		}
	}
}

func isMalformed(err error) bool {
	var stageErr *model.StageError
	return errors.As(err, &stageErr) && stageErr.Kind == model.KindMalformed
}

// failureReason renders the response detail for a stage failure.
func failureReason(err error) string {
	var stageErr *model.StageError
	if !errors.As(err, &stageErr) {
		return err.Error()
	}
	switch stageErr.Kind {
	case model.KindFetchFailed:
		return fmt.Sprintf("Download failed: %v", stageErr.Err)
	case model.KindProcessingFailed:
		return fmt.Sprintf("Processing failed: %v", stageErr.Err)
	case model.KindOutputWriteFailed:
		return ReasonOutputWriteErr
	default:
		return stageErr.Error()
	}
}
