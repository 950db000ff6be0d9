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

// Package commands provides the concrete commands the push handler chains
// together for every accepted event:
//
//  1. ObjectFetch reads the object bytes at the event's generation.
//  2. ContentProcess hands the bytes to the configured processor.
//  3. ResultPublish writes {result, source} next to the object.
//
// Each command records a *model.StageError on failure so the controller can
// classify the outcome without inspecting command names.
package commands

// Context keys shared by the commands.
const (
	EnvelopeParam  = "__ENVELOPE__"   // *model.Envelope of the event being handled.
	ContentParam   = "__CONTENT__"    // []byte fetched by ObjectFetch.
	ResultParam    = "__RESULT__"     // ProcessingResult returned by ContentProcess.
	OutputURIParam = "__OUTPUT_URI__" // gs:// URI written by ResultPublish.
)

// ProcessingResult wraps the processor's value so a nil result still flows
// through the chain.
type ProcessingResult struct {
	Value any
}
