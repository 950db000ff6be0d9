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
// This file, `persistent.go`, contains the only structure that leaves the
// process: the outcome record streamed to the BigQuery ledger. It is an
// audit trail; nothing reads it back to decide whether to process an event.
package model

import (
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/google/uuid"
)

// OutcomeRecord is one row of the outcome ledger.
type OutcomeRecord struct {
	Id             string              `json:"id" bigquery:"id"`                           // Deterministic UUIDv5 of the key and disposition.
	IdempotencyKey string              `json:"idempotency_key" bigquery:"idempotency_key"` // The derived idempotency key.
	Bucket         string              `json:"bucket" bigquery:"bucket"`
	ObjectID       string              `json:"object_id" bigquery:"object_id"`
	Generation     bigquery.NullInt64  `json:"generation" bigquery:"generation"`
	EventType      bigquery.NullString `json:"event_type" bigquery:"event_type"`
	MessageID      bigquery.NullString `json:"message_id" bigquery:"message_id"`
	Component      string              `json:"component" bigquery:"component"`
	Disposition    string              `json:"disposition" bigquery:"disposition"`
	Reason         bigquery.NullString `json:"reason" bigquery:"reason"`
	CreateDate     time.Time           `json:"create_date" bigquery:"create_date"`
}

// NewOutcomeRecord builds the ledger row for an outcome. The row id is a
// UUIDv5 of the idempotency key and disposition, so redelivered events that
// end the same way share an id.
func NewOutcomeRecord(component string, outcome Outcome) *OutcomeRecord {
	out := &OutcomeRecord{
		IdempotencyKey: outcome.Key,
		Component:      component,
		Disposition:    outcome.Disposition.String(),
		Reason:         nullString(outcome.Reason),
		CreateDate:     time.Now(),
	}
	if e := outcome.Envelope; e != nil {
		out.Bucket = e.Bucket
		out.ObjectID = e.ObjectID
		out.EventType = nullString(e.EventType)
		out.MessageID = nullString(e.MessageID)
		if e.Generation != nil {
			out.Generation = bigquery.NullInt64{Int64: *e.Generation, Valid: true}
		}
	}
	out.Id = uuid.NewSHA1(uuid.NameSpaceURL, []byte(outcome.Key+"|"+out.Disposition)).String()
	return out
}

// Save implements bigquery.ValueSaver so the row id doubles as the streaming
// insert id.
func (r *OutcomeRecord) Save() (map[string]bigquery.Value, string, error) {
	row := map[string]bigquery.Value{
		"id":              r.Id,
		"idempotency_key": r.IdempotencyKey,
		"bucket":          r.Bucket,
		"object_id":       r.ObjectID,
		"generation":      r.Generation,
		"event_type":      r.EventType,
		"message_id":      r.MessageID,
		"component":       r.Component,
		"disposition":     r.Disposition,
		"reason":          r.Reason,
		"create_date":     r.CreateDate,
	}
	return row, r.Id, nil
}

func nullString(s string) bigquery.NullString {
	return bigquery.NullString{StringVal: s, Valid: s != ""}
}
