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

// Package envelope turns a Pub/Sub push body carrying a Cloud Storage
// notification into a model.Envelope.
//
// Two body shapes are accepted:
//
//   - Wrapped: {"message": {"data": "<base64>", "attributes": {...}}, "subscription": "..."}.
//     The storage notification attributes (bucketId, objectId,
//     objectGeneration, eventType, payloadFormat) are read first; the
//     decoded data (a JSON_API_V1 object resource) fills in whatever the
//     attributes did not supply.
//   - Direct: a body without a "message" object is treated as the object
//     resource itself.
//
// Sub-field problems (bad base64, bad JSON in data, a non-numeric generation)
// are logged and the parser carries on with what it has. Only the absence of
// a bucket or object name after both lookups makes an envelope Malformed.
//
// Logic Flow:
//  1. Locate the message and its attributes.
//  2. Read bucket, object, generation, event type and payload format from the attributes.
//  3. Decode the data payload, if any.
//  4. Fill missing bucket, object and generation from the payload.
//  5. Gate: wrong event type, then filtered prefix (both Skipped), then
//     missing bucket/object (Malformed).
package envelope

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jaycherian/gcs-push-handler/internal/core/model"
)

// Attribute keys set by Cloud Storage on notification messages.
const (
	AttrBucketID         = "bucketId"
	AttrObjectID         = "objectId"
	AttrObjectGeneration = "objectGeneration"
	AttrEventType        = "eventType"
	AttrPayloadFormat    = "payloadFormat"
)

// Status is the classification of a parsed body.
type Status int

const (
	Accepted Status = iota
	Skipped
	Malformed
)

func (s Status) String() string {
	switch s {
	case Accepted:
		return "accepted"
	case Skipped:
		return "skipped"
	case Malformed:
		return "malformed"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Result is the outcome of Parse. Envelope is set for Accepted results and
// carries whatever was extracted for the others; Reason explains Skipped and
// Malformed results.
type Result struct {
	Status   Status
	Envelope *model.Envelope
	Reason   string
}

// Filters gate envelopes after extraction. Empty values disable a gate.
type Filters struct {
	ExpectedEventType string // Skip events whose eventType is present and differs.
	ObjectPrefix      string // Skip objects whose name does not start with this prefix.
}

// Parse extracts an envelope from a decoded push body and applies the gates.
// A body without a message object is not rejected: it is taken as a direct
// delivery and the whole body becomes the storage payload.
func Parse(ctx context.Context, body map[string]any, filters Filters) Result {
	out := &model.Envelope{RawAttributes: map[string]string{}, RawPayload: map[string]any{}}
	out.Subscription, _ = stringField(body, "subscription")

	message, wrapped := objectField(body, "message")
	attrs, _ := objectField(message, "attributes")
	out.RawAttributes = stringMap(attrs)

	bucket, hasBucket := stringField(attrs, AttrBucketID)
	objectID, hasObject := stringField(attrs, AttrObjectID)
	out.EventType, _ = stringField(attrs, AttrEventType)
	out.PayloadFormat, _ = stringField(attrs, AttrPayloadFormat)
	out.MessageID, _ = firstString(message, "messageId", "message_id")
	out.PublishTime, _ = firstString(message, "publishTime", "publish_time")

	if raw, ok := stringField(attrs, AttrObjectGeneration); ok {
		generation, err := parseGeneration(raw)
		if err != nil {
			slog.WarnContext(ctx, "ignoring unparseable objectGeneration attribute", "value", raw, "error", err)
		}
		out.Generation = generation
	}

	if !wrapped {
		out.RawPayload = body
	} else if data, ok := stringField(message, "data"); ok {
		payload, err := decodeData(data)
		if err != nil {
			slog.WarnContext(ctx, "failed to decode message.data; continuing with attributes only", "error", err)
		} else {
			out.RawPayload = payload
		}
	}

	if !hasBucket {
		bucket, hasBucket = stringField(out.RawPayload, "bucket")
	}
	if !hasObject {
		objectID, hasObject = stringField(out.RawPayload, "name")
	}
	if out.Generation == nil {
		if raw, ok := stringField(out.RawPayload, "generation"); ok {
			generation, err := parseGeneration(raw)
			if err != nil {
				slog.WarnContext(ctx, "ignoring unparseable payload generation", "value", raw, "error", err)
			}
			out.Generation = generation
		}
	}
	out.Bucket = bucket
	out.ObjectID = objectID

	if filters.ExpectedEventType != "" && out.EventType != "" && out.EventType != filters.ExpectedEventType {
		return Result{Status: Skipped, Envelope: out, Reason: fmt.Sprintf("Ignored eventType=%s", out.EventType)}
	}
	if filters.ObjectPrefix != "" && hasObject && !strings.HasPrefix(objectID, filters.ObjectPrefix) {
		return Result{Status: Skipped, Envelope: out, Reason: fmt.Sprintf("Ignored prefix: %s", objectID)}
	}
	if !hasBucket || !hasObject {
		return Result{Status: Malformed, Envelope: out, Reason: "Missing bucket/object in event"}
	}
	return Result{Status: Accepted, Envelope: out}
}
