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

package commands

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/jaycherian/gcs-push-handler/internal/cloud"
	"github.com/jaycherian/gcs-push-handler/internal/core/cor"
	"github.com/jaycherian/gcs-push-handler/internal/core/model"
)

// ArtifactContentType is the content type of written results.
const ArtifactContentType = "application/json"

// Artifact is the document written for every processed object.
type Artifact struct {
	Result any    `json:"result"`
	Source string `json:"source"`
}

// MarshalArtifact renders the artifact as compact JSON without HTML escaping
// and without a trailing newline.
func MarshalArtifact(result any, source string) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(Artifact{Result: result, Source: source}); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// ResultPublish writes the processing result to
// "{prefix}{object}.gen{generation|live}.json" in the source bucket. A
// failed write fails the event even though processing succeeded; the
// redelivery processes the object again.
type ResultPublish struct {
	cor.BaseCommand
	store  cloud.ObjectStore
	prefix string
}

// NewResultPublish creates the publish command writing under prefix.
func NewResultPublish(name string, store cloud.ObjectStore, prefix string) *ResultPublish {
	return &ResultPublish{BaseCommand: *cor.NewBaseCommand(name), store: store, prefix: prefix}
}

func (c *ResultPublish) IsExecutable(context cor.Context) bool {
	if !c.BaseCommand.IsExecutable(context) {
		return false
	}
	_, ok := context.Get(EnvelopeParam).(*model.Envelope)
	return ok
}

func (c *ResultPublish) Execute(context cor.Context) {
	envelope := context.Get(EnvelopeParam).(*model.Envelope)
	result := context.Get(c.GetInputParam()).(ProcessingResult)
	ctx := context.GetContext()
	key := envelope.Key()

	data, err := MarshalArtifact(result.Value, key)
	if err != nil {
		stageErr := model.NewStageError(model.KindOutputWriteFailed, fmt.Errorf("serialize result for %s: %w", key, err))
		slog.ErrorContext(ctx, "output_write_failed", "idem_key", key, "error", err)
		c.Failed(context, stageErr)
		return
	}

	name := model.OutputObjectName(c.prefix, envelope.ObjectID, envelope.Generation)
	uri := fmt.Sprintf("gs://%s/%s", envelope.Bucket, name)
	if err := c.store.WriteObject(ctx, envelope.Bucket, name, data, ArtifactContentType); err != nil {
		slog.ErrorContext(ctx, "output_write_failed", "idem_key", key, "uri", uri, "error", err)
		c.Failed(context, model.NewStageError(model.KindOutputWriteFailed, fmt.Errorf("write %s: %w", uri, err)))
		return
	}

	slog.InfoContext(ctx, "output_written", "idem_key", key, "uri", uri)
	c.Succeeded(context)
	context.Add(OutputURIParam, uri)
	context.Add(c.GetOutputParam(), uri)
}
