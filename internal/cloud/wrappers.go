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

// Package cloud provides components for interacting with Google Cloud services.
// This file implements a wrapper around the Generative AI model that adds a
// request rate limit. Calls block until the limiter grants a token or the
// context ends. Failed calls are not retried here: a failed model call fails
// processing and the message bus redelivers the event.
//
// Structs:
//   - QuotaAwareGenerativeAIModel: A model name, its generation config and a rate limiter.
//
// Functions:
//   - NewQuotaAwareModel: A constructor to create a new instance of the wrapped model.
//   - GenerateContent: Waits for the limiter, then calls the model.
package cloud

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/time/rate"
	"google.golang.org/genai"
)

// ContentGenerator is the subset of *genai.Models used by the wrapper.
type ContentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// QuotaAwareGenerativeAIModel pairs a model with its configuration and a
// limiter shared by every request that uses it.
type QuotaAwareGenerativeAIModel struct {
	GenerativeContentConfig *genai.GenerateContentConfig
	ModelName               string
	ModelHandle             ContentGenerator
	RateLimit               *rate.Limiter
}

// NewQuotaAwareModel creates a rate-limited model. requestsPerSecond <= 0
// disables the limit.
//
// Inputs:
//   - config: The generation configuration applied to every call.
//   - name: The model name (e.g., "gemini-2.0-flash").
//   - handle: The genai model service, usually client.Models.
//   - requestsPerSecond: The sustained request rate, also used as the burst.
//
// Outputs:
//   - *QuotaAwareGenerativeAIModel: A pointer to the newly created wrapper.
func NewQuotaAwareModel(config *genai.GenerateContentConfig, name string, handle ContentGenerator, requestsPerSecond int) *QuotaAwareGenerativeAIModel {
	limiter := rate.NewLimiter(rate.Inf, 0)
	if requestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond)
	}
	return &QuotaAwareGenerativeAIModel{
		GenerativeContentConfig: config,
		ModelName:               name,
		ModelHandle:             handle,
		RateLimit:               limiter,
	}
}

// GenerateContent waits for the limiter and calls the model once.
func (q *QuotaAwareGenerativeAIModel) GenerateContent(ctx context.Context, content []*genai.Content) (*genai.GenerateContentResponse, error) {
	if err := q.RateLimit.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter for %s: %w", q.ModelName, err)
	}
	return q.ModelHandle.GenerateContent(ctx, q.ModelName, content, q.GenerativeContentConfig)
}

// GenerateText calls the model and concatenates the text parts of every
// candidate, stripping a surrounding ```json fence if the model added one.
func (q *QuotaAwareGenerativeAIModel) GenerateText(ctx context.Context, content []*genai.Content) (string, error) {
	resp, err := q.GenerateContent(ctx, content)
	if err != nil {
		return "", err
	}
	var value strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			value.WriteString(part.Text)
		}
	}
	out := strings.TrimSpace(value.String())
	out = strings.TrimPrefix(out, "```json")
	out = strings.TrimSuffix(out, "```")
	return strings.TrimSpace(out), nil
}
