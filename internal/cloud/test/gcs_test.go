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

package cloud_test

import (
	"bytes"
	"errors"
	"net/http"
	"strings"
	"testing"
	"testing/iotest"

	"cloud.google.com/go/storage"
	"github.com/jaycherian/gcs-push-handler/internal/cloud"
	"github.com/jaycherian/gcs-push-handler/internal/core/model"
	"github.com/stretchr/testify/assert"
	"google.golang.org/api/googleapi"
)

func TestClassifyReadErrorPinned(t *testing.T) {
	gen := int64(42)

	err := cloud.ClassifyReadError(storage.ErrObjectNotExist, &gen)
	assert.ErrorIs(t, err, model.ErrGenerationMismatch)
	assert.ErrorIs(t, err, storage.ErrObjectNotExist)

	err = cloud.ClassifyReadError(&googleapi.Error{Code: http.StatusPreconditionFailed}, &gen)
	assert.ErrorIs(t, err, model.ErrGenerationMismatch)

	other := &googleapi.Error{Code: http.StatusForbidden}
	err = cloud.ClassifyReadError(other, &gen)
	assert.NotErrorIs(t, err, model.ErrGenerationMismatch)
	assert.Equal(t, other, err)

	assert.NoError(t, cloud.ClassifyReadError(nil, &gen))
}

func TestClassifyReadErrorLive(t *testing.T) {
	err := cloud.ClassifyReadError(storage.ErrObjectNotExist, nil)
	assert.NotErrorIs(t, err, model.ErrGenerationMismatch)
	assert.Equal(t, storage.ErrObjectNotExist, err)
}

func TestReadChunked(t *testing.T) {
	content := []byte(strings.Repeat("0123456789", 100))

	for _, chunkSize := range []int{0, 1, 7, 1000, 4096} {
		out, err := cloud.ReadChunked(bytes.NewReader(content), int64(len(content)), chunkSize)
		assert.NoError(t, err, chunkSize)
		assert.Equal(t, content, out, chunkSize)
	}

	out, err := cloud.ReadChunked(iotest.OneByteReader(bytes.NewReader(content)), 0, 64)
	assert.NoError(t, err)
	assert.Equal(t, content, out)
}

func TestReadChunkedEmpty(t *testing.T) {
	out, err := cloud.ReadChunked(bytes.NewReader(nil), 0, 16)
	assert.NoError(t, err)
	assert.Empty(t, out)
}

func TestReadChunkedError(t *testing.T) {
	boom := errors.New("connection reset")

	_, err := cloud.ReadChunked(iotest.ErrReader(boom), 0, 16)
	assert.ErrorIs(t, err, boom)

	_, err = cloud.ReadChunked(iotest.ErrReader(boom), 0, 0)
	assert.ErrorIs(t, err, boom)
}
