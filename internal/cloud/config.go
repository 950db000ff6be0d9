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

// Package cloud defines the data structures for application configuration,
// loaded from TOML files and overridden from the environment. It provides a
// structured way to manage settings for the push handler, its Google Cloud
// clients, and the optional pull listeners, ledger and AI models.
//
// Structs:
//   - Component: Settings of the event handling component itself.
//   - Auth: Push authentication settings.
//   - BigQueryDataSource: Configuration for the outcome ledger.
//   - VertexAiLLMModel: Configuration for a Vertex AI Large Language Model (LLM).
//   - TopicSubscription: Configuration for a single Pub/Sub pull subscription.
//   - Config: The top-level struct that aggregates all other configuration structs.
//
// Functions:
//   - NewConfig: A constructor that returns a Config populated with defaults.
package cloud

import "google.golang.org/genai"

// Defaults applied by NewConfig.
const (
	DefaultComponentName     = "ai-component"
	DefaultExpectedEventType = "OBJECT_FINALIZE"
	DefaultProcessor         = "inspect"
	DefaultPort              = 8080
)

// DefaultSafetySettings defines the default content safety thresholds for GenAI models.
var DefaultSafetySettings = []*genai.SafetySetting{
	{
		Category:  genai.HarmCategoryDangerousContent,
		Threshold: genai.HarmBlockThresholdBlockNone,
	},
	{
		Category:  genai.HarmCategoryHarassment,
		Threshold: genai.HarmBlockThresholdBlockNone,
	},
	{
		Category:  genai.HarmCategoryHateSpeech,
		Threshold: genai.HarmBlockThresholdBlockNone,
	},
	{
		Category:  genai.HarmCategorySexuallyExplicit,
		Threshold: genai.HarmBlockThresholdBlockNone,
	},
}

// Component holds the settings of the event handling component.
type Component struct {
	Name              string  `toml:"name"`                // The component name, used in logs, contexts and the default output prefix.
	ExpectedEventType string  `toml:"expected_event_type"` // Only this event type is processed; empty disables the gate.
	ObjectPrefix      string  `toml:"object_prefix"`       // Only objects under this prefix are processed; empty disables the gate.
	OutputPrefix      *string `toml:"output_prefix"`       // Where results are written; nil derives "outputs/{name}/", empty disables publishing.
	ReadChunkSize     int     `toml:"read_chunk_size"`     // Buffer size for object reads; 0 reads the object in one go.
	Processor         string  `toml:"processor"`           // "inspect" or the key of an entry in AgentModels.
	MalformedTopic    string  `toml:"malformed_topic"`     // Optional topic that receives the raw body of malformed envelopes.
}

// ResolvedOutputPrefix returns the configured output prefix, deriving it from
// the component name when none was configured.
func (c *Component) ResolvedOutputPrefix() string {
	if c.OutputPrefix == nil {
		return "outputs/" + c.Name + "/"
	}
	return *c.OutputPrefix
}

// Auth holds the push authentication settings.
type Auth struct {
	RequireJWT      bool   `toml:"require_jwt"`      // Verify the bearer OIDC token on every push.
	AllowedAudience string `toml:"allowed_audience"` // Expected token audience; empty uses the request URL.
	ServiceAccount  string `toml:"service_account"`  // Optional expected "email" claim of the token.
}

// BigQueryDataSource represents the configuration for the outcome ledger.
type BigQueryDataSource struct {
	DatasetName  string `toml:"dataset"`       // The name of the BigQuery dataset; empty disables the ledger.
	OutcomeTable string `toml:"outcome_table"` // The table receiving one row per handled event.
}

// Enabled reports whether the ledger is configured.
func (b BigQueryDataSource) Enabled() bool {
	return b.DatasetName != "" && b.OutcomeTable != ""
}

// VertexAiLLMModel represents the configuration for a Vertex AI large language model (LLM).
type VertexAiLLMModel struct {
	Model              string  `toml:"model"`               // The name of the Vertex AI LLM.
	SystemInstructions string  `toml:"system_instructions"` // The system instructions for the LLM.
	Prompt             string  `toml:"prompt"`              // Sent with the object content; {bucket}, {object} and {generation} are replaced.
	Temperature        float32 `toml:"temperature"`         // The temperature parameter for the LLM.
	TopP               float32 `toml:"top_p"`               // The top_p parameter for the LLM.
	TopK               float32 `toml:"top_k"`               // The top_k parameter for the LLM.
	MaxTokens          int32   `toml:"max_tokens"`          // The maximum number of tokens for the LLM output.
	OutputFormat       string  `toml:"output_format"`       // The desired output MIME type for the LLM.
	RateLimit          int     `toml:"rate_limit"`          // The rate limit for the LLM in requests per second.
}

// TopicSubscription represents the configuration for a Pub/Sub pull subscription.
type TopicSubscription struct {
	Name                   string `toml:"name"`                     // The name of the Pub/Sub subscription.
	MaxOutstandingMessages int    `toml:"max_outstanding_messages"` // Flow control; 0 keeps the library default.
}

// Config represents the overall configuration for the application.
type Config struct {
	// Application holds general application settings.
	Application struct {
		GoogleProjectId string `toml:"google_project_id"` // The Google Cloud project ID.
		GoogleLocation  string `toml:"location"`          // The Google Cloud location.
		Port            int    `toml:"port"`              // The HTTP port of the push endpoint.
		EnableTelemetry bool   `toml:"enable_telemetry"`  // Export traces and metrics to Google Cloud.
	} `toml:"application"`
	Component          Component                    `toml:"component"`
	Auth               Auth                         `toml:"auth"`
	BigQueryDataSource BigQueryDataSource           `toml:"big_query_data_source"` // Outcome ledger configuration.
	TopicSubscriptions map[string]TopicSubscription `toml:"topic_subscriptions"`   // Pull subscriptions for listen mode, keyed by a logical name.
	AgentModels        map[string]VertexAiLLMModel  `toml:"agent_models"`          // Vertex AI models usable as processors, keyed by a logical name.
}

// NewConfig creates a Config populated with defaults. The maps are
// initialized so the TOML decoder can populate them.
func NewConfig() *Config {
	c := &Config{
		Component: Component{
			Name:              DefaultComponentName,
			ExpectedEventType: DefaultExpectedEventType,
			Processor:         DefaultProcessor,
		},
		TopicSubscriptions: make(map[string]TopicSubscription),
		AgentModels:        make(map[string]VertexAiLLMModel),
	}
	c.Application.Port = DefaultPort
	return c
}
