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
// This file is responsible for initializing and holding all the client objects
// needed to communicate with Google Cloud. It acts as a dependency injection
// container: a single `ServiceClients` is built once at startup and handed,
// read-only, to every request handler.
//
// Logic Flow:
//  1. The `NewCloudServiceClients` function is called once at application startup.
//  2. The storage client is always created; it backs the ObjectStore.
//  3. Pub/Sub, BigQuery and GenAI clients are only created when the
//     configuration uses them (pull subscriptions or a malformed topic, the
//     ledger, agent models).
//  4. Agent models are wrapped in the rate-limited `QuotaAwareGenerativeAIModel`.
//
// Structs:
//   - ServiceClients: A container struct holding all initialized clients.
//
// Functions:
//   - Close: A convenience method to gracefully shut down all client connections.
//   - NewCloudServiceClients: A factory function that creates the clients the
//     configuration asks for.
package cloud

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
	"google.golang.org/genai"
)

// ServiceClients is a central container for all the clients that interact
// with external Google Cloud services. Fields for services the configuration
// does not use are nil. Every field is safe for concurrent use once built.
type ServiceClients struct {
	StorageClient   *storage.Client                         // Client for Google Cloud Storage (GCS).
	ObjectStore     ObjectStore                             // Generation-aware object access on top of StorageClient.
	PubsubClient    *pubsub.Client                          // Client for Google Cloud Pub/Sub; nil unless needed.
	BiqQueryClient  *bigquery.Client                        // Client for Google Cloud BigQuery; nil unless the ledger is enabled.
	GenAIClient     *genai.Client                           // Client for Vertex AI; nil unless agent models are configured.
	PubSubListeners map[string]*PubSubListener              // Pull listeners keyed by a logical name from the config.
	MalformedTopic  *TopicPublisher                         // Receives malformed deliveries; nil unless configured.
	AgentModels     map[string]*QuotaAwareGenerativeAIModel // Rate-limited agent models keyed by a logical name.
}

// Close gracefully shuts down all the active client connections.
func (c *ServiceClients) Close() error {
	var err error
	if c.MalformedTopic != nil {
		c.MalformedTopic.Stop()
	}
	if c.StorageClient != nil {
		err = errors.Join(err, c.StorageClient.Close())
	}
	if c.PubsubClient != nil {
		err = errors.Join(err, c.PubsubClient.Close())
	}
	if c.BiqQueryClient != nil {
		err = errors.Join(err, c.BiqQueryClient.Close())
	}
	return err
}

// NewCloudServiceClients initializes the Google Cloud service clients the
// configuration requires.
//
// Inputs:
//   - ctx: The root context.Context for the application, used to manage the lifecycle of the clients.
//   - config: A pointer to the loaded application configuration (`Config`).
//
// Outputs:
//   - *ServiceClients: A pointer to the initialized ServiceClients struct.
//   - error: An error if any of the clients fail to initialize.
func NewCloudServiceClients(ctx context.Context, config *Config) (cloud *ServiceClients, err error) {
	sc, err := storage.NewClient(ctx, option.WithUserAgent(UserAgent(config)))
	if err != nil {
		return nil, fmt.Errorf("storage client: %w", err)
	}
	cloud = &ServiceClients{
		StorageClient:   sc,
		ObjectStore:     NewGCSObjectStore(sc, config.Component.ReadChunkSize),
		PubSubListeners: make(map[string]*PubSubListener),
		AgentModels:     make(map[string]*QuotaAwareGenerativeAIModel),
	}
	defer func() {
		if err != nil {
			_ = cloud.Close()
			cloud = nil
		}
	}()

	if len(config.TopicSubscriptions) > 0 || config.Component.MalformedTopic != "" {
		cloud.PubsubClient, err = pubsub.NewClient(ctx, config.Application.GoogleProjectId)
		if err != nil {
			return cloud, fmt.Errorf("pubsub client: %w", err)
		}
		for subKey, values := range config.TopicSubscriptions {
			cloud.PubSubListeners[subKey] = NewPubSubListener(cloud.PubsubClient, values.Name, values.MaxOutstandingMessages, nil)
		}
		if config.Component.MalformedTopic != "" {
			cloud.MalformedTopic = NewTopicPublisher(cloud.PubsubClient, config.Component.MalformedTopic)
		}
	}

	if config.BigQueryDataSource.Enabled() {
		cloud.BiqQueryClient, err = bigquery.NewClient(ctx, config.Application.GoogleProjectId)
		if err != nil {
			return cloud, fmt.Errorf("bigquery client: %w", err)
		}
	}

	if len(config.AgentModels) > 0 {
		cloud.GenAIClient, err = genai.NewClient(ctx, &genai.ClientConfig{
			Project:  config.Application.GoogleProjectId,
			Location: config.Application.GoogleLocation,
			Backend:  genai.BackendVertexAI,
		})
		if err != nil {
			return cloud, fmt.Errorf("genai client: %w", err)
		}
		for amKey, values := range config.AgentModels {
			cloud.AgentModels[amKey] = NewQuotaAwareModel(NewGenerateContentConfig(values), values.Model, cloud.GenAIClient.Models, values.RateLimit)
			slog.Info("configured agent model", "key", amKey, "model", values.Model)
		}
	}

	return cloud, nil
}

// NewGenerateContentConfig converts a model configuration into the genai
// generation settings.
func NewGenerateContentConfig(values VertexAiLLMModel) *genai.GenerateContentConfig {
	out := &genai.GenerateContentConfig{
		Temperature:      genai.Ptr[float32](values.Temperature),
		TopP:             genai.Ptr[float32](values.TopP),
		TopK:             genai.Ptr[float32](values.TopK),
		MaxOutputTokens:  values.MaxTokens,
		SafetySettings:   DefaultSafetySettings,
		ResponseMIMEType: values.OutputFormat,
	}
	if values.SystemInstructions != "" {
		out.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: values.SystemInstructions}}}
	}
	return out
}

// UserAgent identifies the handler component in storage request logs.
func UserAgent(config *Config) string {
	return "gcs-push-handler/" + config.Component.Name
}
