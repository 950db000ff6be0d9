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
// This file, `transient.go`, contains struct definitions for data models that
// live only for the duration of a single push request. They are created when
// a notification arrives, handed from one command to the next, and discarded
// once the message has been acknowledged or rejected.
//
// Structs:
//   - Envelope: The normalized view of a storage change notification.
//   - ProcessingContext: The context bundle handed to a processing collaborator.
package model

// Envelope is the normalized form of a storage notification, regardless of
// whether the fields were found in the Pub/Sub attributes or in the decoded
// JSON payload. A parsed Envelope always has a non-empty Bucket and ObjectID.
type Envelope struct {
	Bucket        string            // The bucket that holds the changed object.
	ObjectID      string            // The object name within the bucket.
	Generation    *int64            // The immutable generation of the object; nil when none was supplied.
	EventType     string            // The storage event type (e.g., "OBJECT_FINALIZE"); empty when absent.
	PayloadFormat string            // The notification payload format (e.g., "JSON_API_V1"); diagnostic only.
	MessageID     string            // The Pub/Sub message id, when the body was wrapped.
	PublishTime   string            // The Pub/Sub publish time, when the body was wrapped.
	Subscription  string            // The subscription that delivered the push, when present.
	RawAttributes map[string]string // The original message attributes.
	RawPayload    map[string]any    // The original decoded payload; empty when there was none.
}

// HasGeneration reports whether the envelope is pinned to a specific generation.
func (e *Envelope) HasGeneration() bool {
	return e.Generation != nil
}

// Key returns the idempotency key of the envelope.
func (e *Envelope) Key() string {
	return IdempotencyKey(e.Bucket, e.ObjectID, e.Generation)
}

// Raw returns the raw event bundle that is passed to processors: the original
// attributes, the payload format, and the decoded payload.
func (e *Envelope) Raw() map[string]any {
	attributes := make(map[string]any, len(e.RawAttributes))
	for k, v := range e.RawAttributes {
		attributes[k] = v
	}
	payload := e.RawPayload
	if payload == nil {
		payload = map[string]any{}
	}
	var format any
	if e.PayloadFormat != "" {
		format = e.PayloadFormat
	}
	return map[string]any{
		"attributes":    attributes,
		"payloadFormat": format,
		"payload":       payload,
	}
}

// ProcessingContext is the context bundle a processor receives along with
// the object bytes.
type ProcessingContext struct {
	Bucket     string         `json:"bucket"`
	ObjectID   string         `json:"object"`
	Generation *int64         `json:"generation"`
	Component  string         `json:"component"`
	RawEvent   map[string]any `json:"raw_event"`
}

// NewProcessingContext builds the processing context for an envelope handled
// by the named component.
func NewProcessingContext(envelope *Envelope, component string) *ProcessingContext {
	return &ProcessingContext{
		Bucket:     envelope.Bucket,
		ObjectID:   envelope.ObjectID,
		Generation: envelope.Generation,
		Component:  component,
		RawEvent:   envelope.Raw(),
	}
}
