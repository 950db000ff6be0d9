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

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/jaycherian/gcs-push-handler/internal/cloud"
	"github.com/jaycherian/gcs-push-handler/internal/core/processor"
	"github.com/jaycherian/gcs-push-handler/internal/core/services"
	"github.com/jaycherian/gcs-push-handler/internal/core/workflow"
	"github.com/jaycherian/gcs-push-handler/internal/telemetry"
)

// StateManager holds what is built once at startup and shared read-only by
// every request.
type StateManager struct {
	config   *cloud.Config
	cloud    *cloud.ServiceClients
	handler  *workflow.EventHandler
	shutdown func(context.Context) error
}

// LoadConfig applies the command line overrides and loads the configuration.
func LoadConfig() (*cloud.Config, error) {
	if configDir != "" {
		if err := os.Setenv(cloud.EnvConfigFilePrefix, configDir); err != nil {
			return nil, err
		}
	}
	if runtime != "" {
		if err := os.Setenv(cloud.EnvConfigRuntime, runtime); err != nil {
			return nil, err
		}
	}
	config := cloud.NewConfig()
	if err := cloud.LoadConfig(config); err != nil {
		return nil, err
	}
	return config, nil
}

// InitState sets up telemetry, the cloud clients and the event handler.
func InitState(ctx context.Context) (*StateManager, error) {
	telemetry.SetupLogging(true)

	config, err := LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("configuration: %w", err)
	}

	shutdown, err := telemetry.SetupOpenTelemetry(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}
	state := &StateManager{config: config, shutdown: shutdown}

	state.cloud, err = cloud.NewCloudServiceClients(ctx, config)
	if err != nil {
		_ = state.Close(ctx)
		return nil, fmt.Errorf("cloud clients: %w", err)
	}

	p, err := processor.New(config, state.cloud.AgentModels)
	if err != nil {
		_ = state.Close(ctx)
		return nil, err
	}

	var opts []workflow.Option
	if state.cloud.MalformedTopic != nil {
		opts = append(opts, workflow.WithMalformedPublisher(state.cloud.MalformedTopic))
	}
	if config.BigQueryDataSource.Enabled() {
		ledger := services.NewOutcomeLedger(state.cloud.BiqQueryClient,
			config.BigQueryDataSource.DatasetName,
			config.BigQueryDataSource.OutcomeTable,
			config.Component.Name)
		if err := ledger.EnsureTable(ctx); err != nil {
			slog.Warn("outcome ledger table check failed", "table", ledger.GetFQN(), "error", err)
		}
		opts = append(opts, workflow.WithOutcomeRecorder(ledger))
	}
	state.handler = workflow.NewEventHandler(config.Component, state.cloud.ObjectStore, p, opts...)

	slog.Info("initialized state",
		"component", config.Component.Name,
		"processor", config.Component.Processor,
		"expected_event_type", config.Component.ExpectedEventType,
		"object_prefix", config.Component.ObjectPrefix,
		"output_prefix", config.Component.ResolvedOutputPrefix(),
		"require_jwt", config.Auth.RequireJWT)
	return state, nil
}

// Close releases the clients and flushes telemetry.
func (s *StateManager) Close(ctx context.Context) error {
	var err error
	if s.cloud != nil {
		err = s.cloud.Close()
	}
	if s.shutdown != nil {
		if serr := s.shutdown(ctx); serr != nil && err == nil {
			err = serr
		}
	}
	return err
}
