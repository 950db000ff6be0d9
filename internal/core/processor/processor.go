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

// Package processor defines the processing collaborator the handler hands
// fetched object content to, and the processors shipped with the service.
//
// A processor receives the exact bytes of the object version named by the
// event and a ProcessingContext describing it, and returns a value that is
// serialized as the "result" member of the output artifact. Processors must be
// idempotent: an output write failure causes the whole event to be redelivered
// and processed again.
//
// Failures are retryable by default. A processor that knows retrying cannot
// help wraps its error with Permanent.
package processor

import (
	"context"
	"errors"

	"github.com/jaycherian/gcs-push-handler/internal/core/model"
)

// ErrPermanent marks a processing failure that redelivery will not fix.
var ErrPermanent = errors.New("permanent processing failure")

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }

func (e *permanentError) Unwrap() []error { return []error{e.err, ErrPermanent} }

// Permanent wraps err so that IsPermanent reports true. A nil err stays nil.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	return errors.Is(err, ErrPermanent)
}

// Processor turns object content into a JSON-serializable result. The result
// is marshalled with encoding/json; return structs or json.RawMessage rather
// than maps when member order matters.
type Processor interface {
	Process(ctx context.Context, content []byte, pc model.ProcessingContext) (any, error)
}

// Func adapts a function to Processor.
type Func func(ctx context.Context, content []byte, pc model.ProcessingContext) (any, error)

// Process calls f.
func (f Func) Process(ctx context.Context, content []byte, pc model.ProcessingContext) (any, error) {
	return f(ctx, content, pc)
}
