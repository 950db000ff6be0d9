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
	"fmt"

	"github.com/jaycherian/gcs-push-handler/internal/cloud"
)

// New returns the processor named by config.Component.Processor: "inspect",
// or the key of an entry in config.AgentModels backed by one of models.
func New(config *cloud.Config, models map[string]*cloud.QuotaAwareGenerativeAIModel) (Processor, error) {
	name := config.Component.Processor
	if name == "" || name == InspectName {
		return Func(Inspect), nil
	}
	values, ok := config.AgentModels[name]
	if !ok {
		return nil, fmt.Errorf("unknown processor %q", name)
	}
	m, ok := models[name]
	if !ok || m == nil {
		return nil, fmt.Errorf("agent model %q is configured but not initialized", name)
	}
	return NewSummarizer(m, values.Model, values.Prompt), nil
}
