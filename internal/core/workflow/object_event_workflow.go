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
// file builds the chain an accepted storage event runs through.
package workflow

import (
	"github.com/jaycherian/gcs-push-handler/internal/cloud"
	"github.com/jaycherian/gcs-push-handler/internal/core/commands"
	"github.com/jaycherian/gcs-push-handler/internal/core/cor"
	"github.com/jaycherian/gcs-push-handler/internal/core/processor"
)

// ObjectEventWorkflow fetches the object named by an envelope, processes it
// and, when an output prefix is configured, publishes the result. The chain
// is built once and shared by all requests.
type ObjectEventWorkflow struct {
	cor.BaseCommand
	store        cloud.ObjectStore
	processor    processor.Processor
	component    string
	outputPrefix string
	chain        cor.Chain
}

// NewObjectEventWorkflow creates the workflow for the given component
// settings. An empty output prefix leaves the publish step out.
func NewObjectEventWorkflow(component cloud.Component, store cloud.ObjectStore, p processor.Processor) *ObjectEventWorkflow {
	out := &ObjectEventWorkflow{
		BaseCommand:  *cor.NewBaseCommand("object-event-workflow"),
		store:        store,
		processor:    p,
		component:    component.Name,
		outputPrefix: component.ResolvedOutputPrefix(),
	}
	out.InputParamName = commands.EnvelopeParam
	out.initializeChain()
	return out
}

// Execute runs the chain. The context must hold the envelope under
// commands.EnvelopeParam.
func (w *ObjectEventWorkflow) Execute(context cor.Context) {
	w.chain.Execute(context)
}

// Chain returns the underlying chain.
func (w *ObjectEventWorkflow) Chain() cor.Chain {
	return w.chain
}

func (w *ObjectEventWorkflow) initializeChain() {
	out := cor.NewBaseChain(w.GetName())

	// Step 1: read the exact generation, or the live object when none is known.
	out.AddCommand(commands.NewObjectFetch("object-fetch", w.store))

	// Step 2: hand the bytes to the processor; the result is piped to step 3.
	out.AddCommand(commands.NewContentProcess("content-process", w.processor, w.component))

	// Step 3: write {result, source} next to the object.
	if w.outputPrefix != "" {
		out.AddCommand(commands.NewResultPublish("result-publish", w.store, w.outputPrefix))
	}

	w.chain = out
}
