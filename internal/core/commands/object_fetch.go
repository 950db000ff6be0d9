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
	"fmt"
	"log/slog"

	"github.com/jaycherian/gcs-push-handler/internal/cloud"
	"github.com/jaycherian/gcs-push-handler/internal/core/cor"
	"github.com/jaycherian/gcs-push-handler/internal/core/model"
)

// ObjectFetch reads the object named by the envelope. With a generation the
// read is pinned to it; without one the live object is read.
type ObjectFetch struct {
	cor.BaseCommand
	store cloud.ObjectStore
}

// NewObjectFetch creates the fetch command on top of store.
func NewObjectFetch(name string, store cloud.ObjectStore) *ObjectFetch {
	out := &ObjectFetch{BaseCommand: *cor.NewBaseCommand(name), store: store}
	out.InputParamName = EnvelopeParam
	return out
}

func (c *ObjectFetch) Execute(context cor.Context) {
	envelope := context.Get(c.GetInputParam()).(*model.Envelope)
	ctx := context.GetContext()

	content, err := c.store.ReadObject(ctx, envelope.Bucket, envelope.ObjectID, envelope.Generation)
	if err != nil {
		slog.ErrorContext(ctx, "download_failed",
			"bucket", envelope.Bucket,
			"object", envelope.ObjectID,
			"generation", model.GenerationLabel(envelope.Generation),
			"error", err)
		c.Failed(context, model.NewStageError(model.KindFetchFailed, fmt.Errorf("fetch %s: %w", envelope.Key(), err)))
		return
	}

	c.Succeeded(context)
	context.Add(ContentParam, content)
	context.Add(c.GetOutputParam(), content)
}
