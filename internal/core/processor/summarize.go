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

package processor

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/h2non/filetype"
	"github.com/jaycherian/gcs-push-handler/internal/core/model"
	"google.golang.org/genai"
)

// DefaultSummaryPrompt is used when the model configuration has no prompt.
const DefaultSummaryPrompt = "Summarize the attached object. Object: gs://{bucket}/{object} (generation {generation})."

// TextGenerator produces text from content. *cloud.QuotaAwareGenerativeAIModel
// implements it.
type TextGenerator interface {
	GenerateText(ctx context.Context, content []*genai.Content) (string, error)
}

// Summary is the result of the Summarizer. Summary holds the model output
// verbatim when it is valid JSON and as a JSON string otherwise.
type Summary struct {
	Kind    string          `json:"kind"`
	Size    int             `json:"size"`
	Model   string          `json:"model"`
	Summary json.RawMessage `json:"summary"`
}

// Summarizer sends the object content inline to a generative model.
type Summarizer struct {
	model     TextGenerator
	modelName string
	prompt    string
}

// NewSummarizer creates a Summarizer. The placeholders {bucket}, {object} and
// {generation} in prompt are replaced per object; all other text, including
// '%', is sent unchanged.
func NewSummarizer(model TextGenerator, modelName string, prompt string) *Summarizer {
	if prompt == "" {
		prompt = DefaultSummaryPrompt
	}
	return &Summarizer{model: model, modelName: modelName, prompt: prompt}
}

// Process implements Processor. Empty objects fail permanently; model errors
// are retryable.
func (s *Summarizer) Process(ctx context.Context, content []byte, pc model.ProcessingContext) (any, error) {
	if len(content) == 0 {
		return nil, Permanent(fmt.Errorf("cannot summarize empty object gs://%s/%s", pc.Bucket, pc.ObjectID))
	}

	parts := []*genai.Part{
		genai.NewPartFromText(s.renderPrompt(pc)),
		genai.NewPartFromBytes(content, sniffMIME(content)),
	}
	text, err := s.model.GenerateText(ctx, []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)})
	if err != nil {
		return nil, fmt.Errorf("model %s: %w", s.modelName, err)
	}

	summary := json.RawMessage(text)
	if !json.Valid(summary) {
		if summary, err = json.Marshal(text); err != nil {
			return nil, err
		}
	}
	return Summary{Kind: "summary", Size: len(content), Model: s.modelName, Summary: summary}, nil
}

func (s *Summarizer) renderPrompt(pc model.ProcessingContext) string {
	return strings.NewReplacer(
		"{bucket}", pc.Bucket,
		"{object}", pc.ObjectID,
		"{generation}", model.GenerationLabel(pc.Generation),
	).Replace(s.prompt)
}

func sniffMIME(content []byte) string {
	if kind, err := filetype.Match(content); err == nil && kind != filetype.Unknown {
		return kind.MIME.Value
	}
	if utf8.Valid(content) {
		return "text/plain"
	}
	return "application/octet-stream"
}
