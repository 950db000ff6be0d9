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

// Package commands_test runs each command on its own against the in-memory
// object store.
package commands_test

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/jaycherian/gcs-push-handler/internal/core/commands"
	"github.com/jaycherian/gcs-push-handler/internal/core/cor"
	"github.com/jaycherian/gcs-push-handler/internal/core/model"
	"github.com/jaycherian/gcs-push-handler/internal/core/processor"
	test "github.com/jaycherian/gcs-push-handler/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envelope(generation *int64) *model.Envelope {
	return &model.Envelope{Bucket: "bkt", ObjectID: "obj", Generation: generation}
}

func newContext(env *model.Envelope, in any) cor.Context {
	ctx := cor.NewBaseContext(context.Background())
	ctx.Add(commands.EnvelopeParam, env)
	if in != nil {
		ctx.Add(cor.CtxIn, in)
	}
	return ctx
}

func stageError(t *testing.T, ctx cor.Context) *model.StageError {
	t.Helper()
	var stageErr *model.StageError
	require.True(t, errors.As(ctx.Err(), &stageErr))
	return stageErr
}

func TestMarshalArtifact(t *testing.T) {
	out, err := commands.MarshalArtifact(json.RawMessage(`{"a": 1, "b": [1, 2]}`), "bkt/obj#42")
	require.NoError(t, err)
	assert.Equal(t, `{"result":{"a":1,"b":[1,2]},"source":"bkt/obj#42"}`, string(out))

	out, err = commands.MarshalArtifact(map[string]string{"html": "<a href=\"x\">&</a>"}, "bkt/a&b#live")
	require.NoError(t, err)
	assert.Equal(t, `{"result":{"html":"<a href=\"x\">&</a>"},"source":"bkt/a&b#live"}`, string(out))

	out, err = commands.MarshalArtifact(nil, "bkt/obj#live")
	require.NoError(t, err)
	assert.Equal(t, `{"result":null,"source":"bkt/obj#live"}`, string(out))

	_, err = commands.MarshalArtifact(math.NaN(), "bkt/obj#live")
	assert.Error(t, err)
}

func TestObjectFetchPinned(t *testing.T) {
	store := test.NewObjectStore()
	store.Put("bkt", "obj", 42, []byte("payload"))
	gen := int64(42)

	ctx := newContext(envelope(&gen), nil)
	fetch := commands.NewObjectFetch("object-fetch", store)
	require.True(t, fetch.IsExecutable(ctx))
	fetch.Execute(ctx)

	require.NoError(t, ctx.Err())
	assert.Equal(t, []byte("payload"), ctx.Get(commands.ContentParam))
	require.Len(t, store.Reads, 1)
	assert.Equal(t, int64(42), *store.Reads[0].Generation)
}

func TestObjectFetchGenerationMismatch(t *testing.T) {
	store := test.NewObjectStore()
	store.Put("bkt", "obj", 43, []byte("newer"))
	gen := int64(42)

	ctx := newContext(envelope(&gen), nil)
	commands.NewObjectFetch("object-fetch", store).Execute(ctx)

	stageErr := stageError(t, ctx)
	assert.Equal(t, model.KindFetchFailed, stageErr.Kind)
	assert.True(t, stageErr.Retryable())
	assert.ErrorIs(t, ctx.Err(), model.ErrGenerationMismatch)
	assert.Nil(t, ctx.Get(commands.ContentParam))
}

func TestContentProcessPassesContext(t *testing.T) {
	gen := int64(7)
	var seen model.ProcessingContext
	p := processor.Func(func(_ context.Context, content []byte, pc model.ProcessingContext) (any, error) {
		seen = pc
		return string(content), nil
	})

	ctx := newContext(envelope(&gen), []byte("abc"))
	commands.NewContentProcess("content-process", p, "unit").Execute(ctx)

	require.NoError(t, ctx.Err())
	assert.Equal(t, commands.ProcessingResult{Value: "abc"}, ctx.Get(commands.ResultParam))
	assert.Equal(t, "bkt", seen.Bucket)
	assert.Equal(t, "obj", seen.ObjectID)
	assert.Equal(t, int64(7), *seen.Generation)
	assert.Equal(t, "unit", seen.Component)
	assert.Contains(t, seen.RawEvent, "attributes")
}

func TestContentProcessFailures(t *testing.T) {
	boom := errors.New("boom")
	for name, tc := range map[string]struct {
		err       error
		retryable bool
	}{
		"retryable": {err: boom, retryable: true},
		"permanent": {err: processor.Permanent(boom), retryable: false},
	} {
		t.Run(name, func(t *testing.T) {
			p := processor.Func(func(context.Context, []byte, model.ProcessingContext) (any, error) {
				return nil, tc.err
			})
			ctx := newContext(envelope(nil), []byte("abc"))
			commands.NewContentProcess("content-process", p, "unit").Execute(ctx)

			stageErr := stageError(t, ctx)
			assert.Equal(t, model.KindProcessingFailed, stageErr.Kind)
			assert.Equal(t, tc.retryable, stageErr.Retryable())
			assert.ErrorIs(t, stageErr, boom)
		})
	}
}

func TestResultPublishWritesArtifact(t *testing.T) {
	store := test.NewObjectStore()
	gen := int64(42)

	ctx := newContext(envelope(&gen), commands.ProcessingResult{Value: json.RawMessage(`{"ok":true}`)})
	commands.NewResultPublish("result-publish", store, "outputs/x/").Execute(ctx)

	require.NoError(t, ctx.Err())
	require.Len(t, store.Writes, 1)
	write := store.Writes[0]
	assert.Equal(t, "bkt", write.Bucket)
	assert.Equal(t, "outputs/x/obj.gen42.json", write.Name)
	assert.Equal(t, commands.ArtifactContentType, write.ContentType)
	assert.Equal(t, `{"result":{"ok":true},"source":"bkt/obj#42"}`, string(write.Data))
	assert.Equal(t, "gs://bkt/outputs/x/obj.gen42.json", ctx.Get(commands.OutputURIParam))
}

func TestResultPublishLiveName(t *testing.T) {
	store := test.NewObjectStore()

	ctx := newContext(envelope(nil), commands.ProcessingResult{})
	commands.NewResultPublish("result-publish", store, "outputs/x/").Execute(ctx)

	require.NoError(t, ctx.Err())
	assert.Equal(t, "outputs/x/obj.genlive.json", store.Writes[0].Name)
	assert.Equal(t, `{"result":null,"source":"bkt/obj#live"}`, string(store.Writes[0].Data))
}

func TestResultPublishFailures(t *testing.T) {
	store := test.NewObjectStore()
	store.WriteErr = errors.New("permission denied")

	ctx := newContext(envelope(nil), commands.ProcessingResult{Value: "ok"})
	commands.NewResultPublish("result-publish", store, "outputs/x/").Execute(ctx)
	stageErr := stageError(t, ctx)
	assert.Equal(t, model.KindOutputWriteFailed, stageErr.Kind)
	assert.True(t, stageErr.Retryable())

	ctx = newContext(envelope(nil), commands.ProcessingResult{Value: math.Inf(1)})
	commands.NewResultPublish("result-publish", test.NewObjectStore(), "outputs/x/").Execute(ctx)
	stageErr = stageError(t, ctx)
	assert.Equal(t, model.KindOutputWriteFailed, stageErr.Kind)
	assert.True(t, stageErr.Retryable())
}
