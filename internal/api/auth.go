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

package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/jaycherian/gcs-push-handler/internal/cloud"
	"google.golang.org/api/idtoken"
)

// TokenValidator validates a Google-signed OIDC token for an audience.
// *idtoken.Validator implements it.
type TokenValidator interface {
	Validate(ctx context.Context, idToken string, audience string) (*idtoken.Payload, error)
}

// PushAuth verifies the bearer token Pub/Sub attaches to push requests when
// auth.RequireJWT is set. The expected audience is auth.AllowedAudience, or
// the URL of the request when none is configured; Pub/Sub uses the push
// endpoint URL unless the subscription sets a custom audience. Failures are
// answered with 401 and the request goes no further.
func PushAuth(validator TokenValidator, auth cloud.Auth) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !auth.RequireJWT {
			c.Next()
			return
		}
		if err := verify(c.Request, validator, auth); err != nil {
			slog.WarnContext(c.Request.Context(), "push authentication failed", "error", err)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": "Unauthorized"})
			return
		}
		c.Next()
	}
}

func verify(r *http.Request, validator TokenValidator, auth cloud.Auth) error {
	token, err := BearerToken(r.Header.Get("Authorization"))
	if err != nil {
		return err
	}
	audience := auth.AllowedAudience
	if audience == "" {
		audience = RequestURL(r)
	}
	payload, err := validator.Validate(r.Context(), token, audience)
	if err != nil {
		return fmt.Errorf("invalid token for audience %q: %w", audience, err)
	}
	if auth.ServiceAccount != "" {
		email, _ := payload.Claims["email"].(string)
		if email != auth.ServiceAccount {
			return fmt.Errorf("token email %q is not %q", email, auth.ServiceAccount)
		}
	}
	return nil
}

// BearerToken extracts the token from an Authorization header value. The
// scheme is matched case-insensitively.
func BearerToken(header string) (string, error) {
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "bearer") || strings.TrimSpace(token) == "" {
		return "", fmt.Errorf("missing bearer token")
	}
	return strings.TrimSpace(token), nil
}

// RequestURL reconstructs the absolute URL the client called, honouring
// X-Forwarded-Proto set by the load balancer in front of the service.
func RequestURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme, _, _ = strings.Cut(proto, ",")
		scheme = strings.TrimSpace(scheme)
	}
	return scheme + "://" + r.Host + r.URL.RequestURI()
}
