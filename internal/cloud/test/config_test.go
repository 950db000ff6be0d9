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

// Package cloud_test contains the tests for the configuration loader and the
// storage helpers.
package cloud_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/jaycherian/gcs-push-handler/internal/cloud"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func env(values map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := values[key]
		return v, ok
	}
}

func TestNewConfigDefaults(t *testing.T) {
	config := cloud.NewConfig()

	assert.Equal(t, "ai-component", config.Component.Name)
	assert.Equal(t, "OBJECT_FINALIZE", config.Component.ExpectedEventType)
	assert.Equal(t, "", config.Component.ObjectPrefix)
	assert.Equal(t, "outputs/ai-component/", config.Component.ResolvedOutputPrefix())
	assert.Equal(t, 0, config.Component.ReadChunkSize)
	assert.Equal(t, "inspect", config.Component.Processor)
	assert.Equal(t, 8080, config.Application.Port)
	assert.False(t, config.Auth.RequireJWT)
	assert.False(t, config.BigQueryDataSource.Enabled())
}

func TestApplyEnvironmentOverrides(t *testing.T) {
	config := cloud.NewConfig()
	err := cloud.ApplyEnvironment(config, env(map[string]string{
		cloud.EnvComponentName:       "summarizer",
		cloud.EnvObjectPrefix:        "reports/",
		cloud.EnvReadChunkSize:       "65536",
		cloud.EnvRequireJWT:          "YES",
		cloud.EnvAllowedAudience:     "https://handler.example.com/",
		cloud.EnvServiceAccount:      "push@test-project.iam.gserviceaccount.com",
		cloud.EnvGoogleCloudProject:  "test-project",
		cloud.EnvPort:                "9090",
		cloud.EnvLedgerDataset:       "events",
		cloud.EnvLedgerTable:         "outcomes",
		cloud.EnvGoogleCloudLocation: "us-central1",
	}))
	require.NoError(t, err)

	assert.Equal(t, "summarizer", config.Component.Name)
	assert.Equal(t, "reports/", config.Component.ObjectPrefix)
	assert.Equal(t, "outputs/summarizer/", config.Component.ResolvedOutputPrefix())
	assert.Equal(t, 65536, config.Component.ReadChunkSize)
	assert.True(t, config.Auth.RequireJWT)
	assert.Equal(t, "https://handler.example.com/", config.Auth.AllowedAudience)
	assert.Equal(t, "push@test-project.iam.gserviceaccount.com", config.Auth.ServiceAccount)
	assert.Equal(t, "test-project", config.Application.GoogleProjectId)
	assert.Equal(t, "us-central1", config.Application.GoogleLocation)
	assert.Equal(t, 9090, config.Application.Port)
	assert.True(t, config.BigQueryDataSource.Enabled())
}

func TestApplyEnvironmentEmptyValuesDisableGates(t *testing.T) {
	config := cloud.NewConfig()
	err := cloud.ApplyEnvironment(config, env(map[string]string{
		cloud.EnvExpectedEventType: "",
		cloud.EnvOutputPrefix:      "",
	}))
	require.NoError(t, err)

	assert.Equal(t, "", config.Component.ExpectedEventType)
	assert.Equal(t, "", config.Component.ResolvedOutputPrefix())
}

func TestApplyEnvironmentFlags(t *testing.T) {
	for value, want := range map[string]bool{"1": true, "true": true, "True": true, "yes": true, "0": false, "false": false, "no": false, "": false} {
		config := cloud.NewConfig()
		require.NoError(t, cloud.ApplyEnvironment(config, env(map[string]string{cloud.EnvRequireJWT: value})))
		assert.Equal(t, want, config.Auth.RequireJWT, value)
	}
}

func TestApplyEnvironmentRejectsInvalidNumbers(t *testing.T) {
	for key, value := range map[string]string{
		cloud.EnvReadChunkSize: "lots",
		cloud.EnvPort:          "70000",
	} {
		err := cloud.ApplyEnvironment(cloud.NewConfig(), env(map[string]string{key: value}))
		assert.Error(t, err, key)
	}
	err := cloud.ApplyEnvironment(cloud.NewConfig(), env(map[string]string{cloud.EnvReadChunkSize: "-1"}))
	assert.Error(t, err)
}

func TestLoadConfigMergesFiles(t *testing.T) {
	dir := t.TempDir()
	base := `
[application]
google_project_id = "base-project"

[component]
name = "from-base"
object_prefix = "incoming/"

[topic_subscriptions.events]
name = "object-events-sub"
max_outstanding_messages = 4
`
	override := `
[component]
name = "from-runtime"
output_prefix = "results/"
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env.toml"), []byte(base), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env.unit.toml"), []byte(override), 0o600))
	t.Setenv(cloud.EnvConfigFilePrefix, dir)
	t.Setenv(cloud.EnvConfigRuntime, "unit")
	t.Setenv(cloud.EnvGoogleCloudProject, "")
	t.Setenv(cloud.EnvComponentName, "")

	config := cloud.NewConfig()
	require.NoError(t, cloud.LoadConfig(config))

	assert.Equal(t, "base-project", config.Application.GoogleProjectId)
	assert.Equal(t, "from-runtime", config.Component.Name)
	assert.Equal(t, "incoming/", config.Component.ObjectPrefix)
	assert.Equal(t, "results/", config.Component.ResolvedOutputPrefix())
	assert.Equal(t, "OBJECT_FINALIZE", config.Component.ExpectedEventType)
	require.Contains(t, config.TopicSubscriptions, "events")
	assert.Equal(t, 4, config.TopicSubscriptions["events"].MaxOutstandingMessages)
}

func TestLoadConfigEnvironmentWinsOverFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env.toml"), []byte("[component]\nname = \"from-file\"\n"), 0o600))
	t.Setenv(cloud.EnvConfigFilePrefix, dir)
	t.Setenv(cloud.EnvConfigRuntime, "missing")
	t.Setenv(cloud.EnvComponentName, "from-env")

	config := cloud.NewConfig()
	require.NoError(t, cloud.LoadConfig(config))
	assert.Equal(t, "from-env", config.Component.Name)
}

func TestLoadConfigInvalidFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env.toml"), []byte("[component\n"), 0o600))
	t.Setenv(cloud.EnvConfigFilePrefix, dir)

	assert.Error(t, cloud.LoadConfig(cloud.NewConfig()))
}
