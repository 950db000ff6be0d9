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

// Package main is the entry point of the push handler. The root command runs
// the push endpoint; "listen" runs the same handler on pull subscriptions.
package main

import (
	"fmt"
	"os"

	"github.com/jaycherian/gcs-push-handler/internal/cloud"
	"github.com/spf13/cobra"
)

var (
	configDir string
	runtime   string
)

var rootCmd = &cobra.Command{
	Use:   "gcs-push-handler",
	Short: "Cloud Storage event handler",
	Long: `gcs-push-handler receives Cloud Storage change notifications, reads the
exact object generation they name, processes it and writes the result back
next to the object.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveCmd.RunE(cmd, args)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir", "", "directory holding .env.toml files (overrides "+cloud.EnvConfigFilePrefix+")")
	rootCmd.PersistentFlags().StringVar(&runtime, "runtime", "", "runtime name selecting .env.<runtime>.toml (overrides "+cloud.EnvConfigRuntime+")")
	rootCmd.AddCommand(serveCmd, listenCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
