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

	"github.com/jaycherian/gcs-push-handler/internal/core/cor"
	"github.com/jaycherian/gcs-push-handler/internal/core/model"
	"github.com/jaycherian/gcs-push-handler/internal/core/processor"
)

// ContentProcess runs the processor on the fetched content.
type ContentProcess struct {
	cor.BaseCommand
	processor processor.Processor
	component string
}

// NewContentProcess creates the processing command. component is reported to
// the processor in its ProcessingContext.
func NewContentProcess(name string, p processor.Processor, component string) *ContentProcess {
	return &ContentProcess{BaseCommand: *cor.NewBaseCommand(name), processor: p, component: component}
}

func (c *ContentProcess) IsExecutable(context cor.Context) bool {
	if !c.BaseCommand.IsExecutable(context) {
		return false
	}
	_, ok := context.Get(EnvelopeParam).(*model.Envelope)
	return ok
}

func (c *ContentProcess) Execute(context cor.Context) {
	envelope := context.Get(EnvelopeParam).(*model.Envelope)
	content, _ := context.Get(c.GetInputParam()).([]byte)
	ctx := context.GetContext()

	result, err := c.processor.Process(ctx, content, *model.NewProcessingContext(envelope, c.component))
	if err != nil {
		slog.ErrorContext(ctx, "processing_failed",
			"idem_key", envelope.Key(),
			"permanent", processor.IsPermanent(err),
			"error", err)
		stageErr := model.NewStageError(model.KindProcessingFailed, fmt.Errorf("process %s: %w", envelope.Key(), err))
		stageErr.Permanent = processor.IsPermanent(err)
		c.Failed(context, stageErr)
		return
	}

	c.Succeeded(context)
	out := ProcessingResult{Value: result}
	context.Add(ResultParam, out)
	context.Add(c.GetOutputParam(), out)
}
