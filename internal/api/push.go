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

// Package api contains the HTTP surface of the handler: the Pub/Sub push
// endpoint, the health endpoint and the push authentication middleware.
//
// The push endpoint answers every delivery with one of three codes. Pub/Sub
// treats 2xx as an acknowledgement and redelivers anything else:
//   - 204: processed, or ignored by a gate; no body.
//   - 400: malformed or permanently failed; retrying cannot help.
//   - 500: fetch, processing or output failure; retry.
package api

import (
	"context"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jaycherian/gcs-push-handler/internal/core/model"
)

// Dispatcher handles one push body. *workflow.EventHandler implements it.
type Dispatcher interface {
	Dispatch(ctx context.Context, body []byte) model.Outcome
}

// StatusFor maps an outcome to the push response code.
func StatusFor(outcome model.Outcome) int {
	switch outcome.Disposition {
	case model.Processed, model.Ignored:
		return http.StatusNoContent
	case model.Rejected:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// PushRouter registers the push endpoint at POST / on r.
func PushRouter(r gin.IRoutes, dispatcher Dispatcher) {
	r.POST("/", func(c *gin.Context) {
		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			slog.ErrorContext(c.Request.Context(), "failed to read push body", "error", err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"detail": "Failed to read request body"})
			return
		}

		outcome := dispatcher.Dispatch(c.Request.Context(), body)
		status := StatusFor(outcome)
		if status == http.StatusNoContent {
			c.Status(status)
			return
		}
		c.JSON(status, gin.H{"detail": outcome.Reason})
	})
}
