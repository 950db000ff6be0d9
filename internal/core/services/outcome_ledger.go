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

// Package services contains the components that talk to data sources on
// behalf of the handler. This file defines the OutcomeLedger, which streams
// one row per handled event to BigQuery.
//
// The ledger is an audit trail. It is written after the outcome is decided,
// its failures never change the outcome, and nothing reads it back to decide
// whether an event should be processed.
package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"cloud.google.com/go/bigquery"
	"github.com/jaycherian/gcs-push-handler/internal/core/model"
	"google.golang.org/api/googleapi"
)

// RowInserter streams rows. *bigquery.Inserter implements it.
type RowInserter interface {
	Put(ctx context.Context, src interface{}) error
}

// OutcomeLedger records outcomes in a BigQuery table.
type OutcomeLedger struct {
	BigqueryClient *bigquery.Client // Used for table management; may be nil when only Inserter is set.
	Inserter       RowInserter      // Receives the rows.
	DatasetName    string           // The name of the BigQuery dataset.
	OutcomeTable   string           // The name of the outcome table.
	Component      string           // Written to every row.
}

// NewOutcomeLedger creates a ledger writing to dataset.table.
func NewOutcomeLedger(client *bigquery.Client, dataset string, table string, component string) *OutcomeLedger {
	return &OutcomeLedger{
		BigqueryClient: client,
		Inserter:       client.Dataset(dataset).Table(table).Inserter(),
		DatasetName:    dataset,
		OutcomeTable:   table,
		Component:      component,
	}
}

// GetFQN returns the fully qualified table name in standard SQL form,
// e.g. "project.dataset.table".
func (l *OutcomeLedger) GetFQN() string {
	fqn := l.BigqueryClient.Dataset(l.DatasetName).Table(l.OutcomeTable).FullyQualifiedName()
	return strings.Replace(fqn, ":", ".", -1)
}

// EnsureTable creates the outcome table with a schema inferred from
// model.OutcomeRecord when it does not exist yet.
func (l *OutcomeLedger) EnsureTable(ctx context.Context) error {
	table := l.BigqueryClient.Dataset(l.DatasetName).Table(l.OutcomeTable)
	_, err := table.Metadata(ctx)
	if err == nil {
		return nil
	}
	var apiErr *googleapi.Error
	if !errors.As(err, &apiErr) || apiErr.Code != http.StatusNotFound {
		return fmt.Errorf("outcome table %s: %w", l.GetFQN(), err)
	}

	schema, err := bigquery.InferSchema(model.OutcomeRecord{})
	if err != nil {
		return err
	}
	if err := table.Create(ctx, &bigquery.TableMetadata{
		Schema:           schema,
		TimePartitioning: &bigquery.TimePartitioning{Field: "create_date"},
	}); err != nil {
		return fmt.Errorf("create outcome table %s: %w", l.GetFQN(), err)
	}
	return nil
}

// Record streams the row for outcome.
func (l *OutcomeLedger) Record(ctx context.Context, outcome model.Outcome) error {
	record := model.NewOutcomeRecord(l.Component, outcome)
	if err := l.Inserter.Put(ctx, record); err != nil {
		return fmt.Errorf("ledger insert for %q failed: %w", record.IdempotencyKey, err)
	}
	return nil
}
