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
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var listenCmd = &cobra.Command{
	Use:   "listen",
	Short: "Pull storage events from the configured subscriptions",
	Long: `listen feeds every subscription in [topic_subscriptions] to the same handler
the push endpoint uses. Messages are acked when processed, ignored or
malformed, and nacked on retryable failures.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		state, err := InitState(ctx)
		if err != nil {
			return err
		}
		defer func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
			defer cancel()
			if err := state.Close(closeCtx); err != nil {
				slog.Error("shutdown failed", "error", err)
			}
		}()

		if len(state.cloud.PubSubListeners) == 0 {
			return fmt.Errorf("no topic_subscriptions configured")
		}
		g, gctx := errgroup.WithContext(ctx)
		for name, listener := range state.cloud.PubSubListeners {
			listener.SetHandler(state.handler)
			g.Go(func() error {
				if err := listener.Receive(gctx); err != nil {
					return fmt.Errorf("subscription %s: %w", name, err)
				}
				return nil
			})
		}
		return g.Wait()
	},
}
