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
// This file contains the hierarchical configuration loader.
//
// Functions:
//   - fileExists: A simple helper to check if a file exists.
//   - LoadConfig: Reads a base configuration file, then an environment-specific
//     file (e.g., .env.local.toml, .env.test.toml), then applies environment
//     variable overrides.
//   - ApplyEnvironment: Applies the environment variable overrides from a lookup
//     function, so tests can supply their own environment.
package cloud

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
)

// Cloud Constants define key strings used for configuration loading.
const (
	ConfigFileBaseName  = ".env"              // The base name for configuration files (e.g., ".env.toml").
	ConfigFileExtension = ".toml"             // The file extension for configuration files.
	ConfigSeparator     = "."                 // The separator used in config file names (e.g., ".env.local.toml").
	EnvConfigFilePrefix = "GCP_CONFIG_PREFIX" // The environment variable for specifying the config directory.
	EnvConfigRuntime    = "GCP_RUNTIME"       // The environment variable for specifying the runtime context (e.g., "local", "test", "prod").
)

// Environment variables that override file configuration.
const (
	EnvComponentName       = "COMPONENT_NAME"
	EnvExpectedEventType   = "EXPECTED_EVENT_TYPE"
	EnvObjectPrefix        = "OBJECT_PREFIX"
	EnvOutputPrefix        = "OUTPUT_PREFIX"
	EnvReadChunkSize       = "READ_CHUNK_SIZE"
	EnvProcessor           = "PROCESSOR"
	EnvMalformedTopic      = "MALFORMED_TOPIC"
	EnvRequireJWT          = "REQUIRE_JWT"
	EnvAllowedAudience     = "PUBSUB_ALLOWED_AUDIENCE"
	EnvServiceAccount      = "PUBSUB_SERVICE_ACCOUNT"
	EnvGoogleCloudProject  = "GOOGLE_CLOUD_PROJECT"
	EnvGoogleCloudLocation = "GOOGLE_CLOUD_LOCATION"
	EnvPort                = "PORT"
	EnvEnableTelemetry     = "ENABLE_TELEMETRY"
	EnvLedgerDataset       = "LEDGER_DATASET"
	EnvLedgerTable         = "LEDGER_TABLE"
)

const defaultRuntimeEnvironment = "local"

// fileExists checks if a file or directory exists at the given path.
func fileExists(in string) bool {
	_, err := os.Stat(in)
	return !errors.Is(err, os.ErrNotExist)
}

// LoadConfig provides a hierarchical configuration loading mechanism. It first loads a
// base configuration file, then merges an environment-specific file over it, and
// finally applies environment variable overrides. Missing files are skipped.
//
// Inputs:
//   - config: The configuration to populate; usually the result of NewConfig.
//
// Outputs:
//   - error: An error if a file exists but cannot be decoded, or if an
//     environment override has an invalid value.
func LoadConfig(config *Config) error {
	configurationFilePrefix := os.Getenv(EnvConfigFilePrefix)
	if len(configurationFilePrefix) > 0 && !strings.HasSuffix(configurationFilePrefix, string(os.PathSeparator)) {
		configurationFilePrefix = configurationFilePrefix + string(os.PathSeparator)
	}

	runtimeEnvironment := os.Getenv(EnvConfigRuntime)
	if runtimeEnvironment == "" {
		runtimeEnvironment = defaultRuntimeEnvironment
	}

	baseConfigFileName := configurationFilePrefix + ConfigFileBaseName + ConfigFileExtension
	envConfigFileName := configurationFilePrefix + ConfigFileBaseName + ConfigSeparator + runtimeEnvironment + ConfigFileExtension

	for _, fileName := range []string{baseConfigFileName, envConfigFileName} {
		if !fileExists(fileName) {
			continue
		}
		if _, err := toml.DecodeFile(fileName, config); err != nil {
			return fmt.Errorf("failed to decode configuration file %s: %w", fileName, err)
		}
		slog.Info("loaded configuration file", "file", fileName)
	}
	return ApplyEnvironment(config, os.LookupEnv)
}

// ApplyEnvironment overrides config values with the environment variables
// returned by lookup. A variable that is set to the empty string still
// overrides; this is how EXPECTED_EVENT_TYPE and OUTPUT_PREFIX are disabled.
func ApplyEnvironment(config *Config, lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvComponentName); ok && v != "" {
		config.Component.Name = v
	}
	if v, ok := lookup(EnvExpectedEventType); ok {
		config.Component.ExpectedEventType = v
	}
	if v, ok := lookup(EnvObjectPrefix); ok {
		config.Component.ObjectPrefix = v
	}
	if v, ok := lookup(EnvOutputPrefix); ok {
		prefix := v
		config.Component.OutputPrefix = &prefix
	}
	if v, ok := lookup(EnvReadChunkSize); ok && v != "" {
		size, err := strconv.Atoi(v)
		if err != nil || size < 0 {
			return fmt.Errorf("invalid %s %q: must be a non-negative integer", EnvReadChunkSize, v)
		}
		config.Component.ReadChunkSize = size
	}
	if v, ok := lookup(EnvProcessor); ok && v != "" {
		config.Component.Processor = v
	}
	if v, ok := lookup(EnvMalformedTopic); ok {
		config.Component.MalformedTopic = v
	}
	if v, ok := lookup(EnvRequireJWT); ok {
		config.Auth.RequireJWT = parseFlag(v)
	}
	if v, ok := lookup(EnvAllowedAudience); ok {
		config.Auth.AllowedAudience = v
	}
	if v, ok := lookup(EnvServiceAccount); ok {
		config.Auth.ServiceAccount = v
	}
	if v, ok := lookup(EnvGoogleCloudProject); ok && v != "" {
		config.Application.GoogleProjectId = v
	}
	if v, ok := lookup(EnvGoogleCloudLocation); ok && v != "" {
		config.Application.GoogleLocation = v
	}
	if v, ok := lookup(EnvPort); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil || port <= 0 || port > 65535 {
			return fmt.Errorf("invalid %s %q", EnvPort, v)
		}
		config.Application.Port = port
	}
	if v, ok := lookup(EnvEnableTelemetry); ok {
		config.Application.EnableTelemetry = parseFlag(v)
	}
	if v, ok := lookup(EnvLedgerDataset); ok {
		config.BigQueryDataSource.DatasetName = v
	}
	if v, ok := lookup(EnvLedgerTable); ok {
		config.BigQueryDataSource.OutcomeTable = v
	}
	return nil
}

// parseFlag accepts "1", "true" and "yes" in any case as true.
func parseFlag(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes":
		return true
	default:
		return false
	}
}
