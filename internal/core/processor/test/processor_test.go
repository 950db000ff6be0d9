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

// Package processor_test covers the built-in processors and the registry.
package processor_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/jaycherian/gcs-push-handler/internal/cloud"
	"github.com/jaycherian/gcs-push-handler/internal/core/commands"
	"github.com/jaycherian/gcs-push-handler/internal/core/model"
	"github.com/jaycherian/gcs-push-handler/internal/core/processor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\x0dIHDR")

func pc(generation *int64) model.ProcessingContext {
	return model.ProcessingContext{Bucket: "bkt", ObjectID: "obj", Generation: generation, Component: "test"}
}

func inspect(t *testing.T, content []byte) processor.Inspection {
	t.Helper()
	out, err := processor.Inspect(context.Background(), content, pc(nil))
	require.NoError(t, err)
	inspection, ok := out.(processor.Inspection)
	require.True(t, ok)
	return inspection
}

func TestInspectObjectKeysInDocumentOrder(t *testing.T) {
	content := []byte(`{"z":1,"a":{"nested":[1,2]},"m":null}`)

	out := inspect(t, content)
	assert.Equal(t, "json", out.Kind)
	assert.Equal(t, len(content), out.Size)
	assert.Equal(t, []string{"z", "a", "m"}, out.Keys)
	assert.Nil(t, out.Items)
}

func TestInspectTruncatesKeys(t *testing.T) {
	var members []string
	for i := 0; i < 12; i++ {
		members = append(members, fmt.Sprintf(`"k%02d":%d`, i, i))
	}
	out := inspect(t, []byte("{"+strings.Join(members, ",")+"}"))

	require.Len(t, out.Keys, processor.MaxInspectKeys)
	assert.Equal(t, "k00", out.Keys[0])
	assert.Equal(t, "k09", out.Keys[9])
}

func TestInspectEmptyObject(t *testing.T) {
	out := inspect(t, []byte(`{}`))
	assert.Equal(t, "json", out.Kind)
	assert.Empty(t, out.Keys)

	encoded, err := json.Marshal(out)
	require.NoError(t, err)
	assert.Equal(t, `{"kind":"json","size":2,"keys":[]}`, string(encoded))

	artifact, err := commands.MarshalArtifact(out, "bkt/obj#live")
	require.NoError(t, err)
	assert.Equal(t, `{"result":{"kind":"json","size":2,"keys":[]},"source":"bkt/obj#live"}`, string(artifact))
}

func TestInspectObjectKeysUnescaped(t *testing.T) {
	artifact, err := commands.MarshalArtifact(inspect(t, []byte(`{"<a>":1,"b&c":2}`)), "bkt/obj#1")
	require.NoError(t, err)
	assert.Equal(t, `{"result":{"kind":"json","size":17,"keys":["<a>","b&c"]},"source":"bkt/obj#1"}`, string(artifact))
}

func TestInspectArray(t *testing.T) {
	out := inspect(t, []byte(`[1,{"a":2},[3]]`))
	assert.Equal(t, "json", out.Kind)
	require.NotNil(t, out.Items)
	assert.Equal(t, 3, *out.Items)

	encoded, err := json.Marshal(inspect(t, []byte(`[]`)))
	require.NoError(t, err)
	assert.Equal(t, `{"kind":"json","size":2,"items":0}`, string(encoded))
}

func TestInspectBytes(t *testing.T) {
	out := inspect(t, pngHeader)
	assert.Equal(t, "bytes", out.Kind)
	assert.Equal(t, len(pngHeader), out.Size)
	assert.Equal(t, "image/png", out.MIME)

	for _, content := range []string{"hello world", "42", `"text"`, "{not json", ""} {
		out := inspect(t, []byte(content))
		assert.Equal(t, "bytes", out.Kind, content)
		assert.Equal(t, len(content), out.Size, content)
		assert.Empty(t, out.MIME, content)
		assert.Empty(t, out.Keys, content)
		assert.Nil(t, out.Items, content)

		encoded, err := json.Marshal(out)
		require.NoError(t, err)
		assert.NotContains(t, string(encoded), `"keys"`, content)
		assert.NotContains(t, string(encoded), `"items"`, content)
	}
}

func TestPermanent(t *testing.T) {
	cause := errors.New("unsupported format")
	err := processor.Permanent(cause)

	assert.True(t, processor.IsPermanent(err))
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "unsupported format", err.Error())
	assert.True(t, processor.IsPermanent(fmt.Errorf("wrapped: %w", err)))

	assert.False(t, processor.IsPermanent(cause))
	assert.NoError(t, processor.Permanent(nil))
}

type fakeGenerator struct {
	text     string
	err      error
	contents []*genai.Content
}

func (f *fakeGenerator) GenerateText(_ context.Context, contents []*genai.Content) (string, error) {
	f.contents = contents
	return f.text, f.err
}

func TestSummarizerJSONOutput(t *testing.T) {
	gen := int64(42)
	llm := &fakeGenerator{text: `{"topic":"sales"}`}
	s := processor.NewSummarizer(llm, "gemini-2.0-flash", "")

	out, err := s.Process(context.Background(), []byte("q3 numbers"), pc(&gen))
	require.NoError(t, err)
	summary, ok := out.(processor.Summary)
	require.True(t, ok)
	assert.Equal(t, "summary", summary.Kind)
	assert.Equal(t, 10, summary.Size)
	assert.Equal(t, "gemini-2.0-flash", summary.Model)
	assert.JSONEq(t, `{"topic":"sales"}`, string(summary.Summary))

	require.Len(t, llm.contents, 1)
	parts := llm.contents[0].Parts
	require.Len(t, parts, 2)
	assert.Equal(t, "Summarize the attached object. Object: gs://bkt/obj (generation 42).", parts[0].Text)
	require.NotNil(t, parts[1].InlineData)
	assert.Equal(t, "text/plain", parts[1].InlineData.MIMEType)
	assert.Equal(t, []byte("q3 numbers"), parts[1].InlineData.Data)
}

func TestSummarizerTextOutput(t *testing.T) {
	s := processor.NewSummarizer(&fakeGenerator{text: "Quarterly sales figures."}, "gemini-2.0-flash", "Describe {bucket}/{object}@{generation}")

	out, err := s.Process(context.Background(), pngHeader, pc(nil))
	require.NoError(t, err)
	summary := out.(processor.Summary)
	assert.Equal(t, `"Quarterly sales figures."`, string(summary.Summary))
}

func TestSummarizerCustomPrompt(t *testing.T) {
	llm := &fakeGenerator{text: "ok"}
	s := processor.NewSummarizer(llm, "gemini-2.0-flash", "Describe {bucket}/{object}@{generation}")

	_, err := s.Process(context.Background(), pngHeader, pc(nil))
	require.NoError(t, err)
	parts := llm.contents[0].Parts
	assert.Equal(t, "Describe bkt/obj@live", parts[0].Text)
	assert.Equal(t, "image/png", parts[1].InlineData.MIMEType)
}

func TestSummarizerPromptSentVerbatim(t *testing.T) {
	for _, prompt := range []string{
		"Summarize this document.",
		"Rate 100% of the content; 50%s is not a verb.",
	} {
		llm := &fakeGenerator{text: "ok"}
		s := processor.NewSummarizer(llm, "gemini-2.0-flash", prompt)

		_, err := s.Process(context.Background(), []byte("data"), pc(nil))
		require.NoError(t, err)
		assert.Equal(t, prompt, llm.contents[0].Parts[0].Text)
	}
}

func TestSummarizerPromptRepeatedPlaceholders(t *testing.T) {
	gen := int64(7)
	llm := &fakeGenerator{text: "ok"}
	s := processor.NewSummarizer(llm, "gemini-2.0-flash", "{object} in {bucket}; {object} at {generation}, 100% done")

	_, err := s.Process(context.Background(), []byte("data"), pc(&gen))
	require.NoError(t, err)
	assert.Equal(t, "obj in bkt; obj at 7, 100% done", llm.contents[0].Parts[0].Text)
}

func TestSummarizerEmptyObjectIsPermanent(t *testing.T) {
	llm := &fakeGenerator{text: "unused"}
	s := processor.NewSummarizer(llm, "gemini-2.0-flash", "")

	_, err := s.Process(context.Background(), nil, pc(nil))
	assert.True(t, processor.IsPermanent(err))
	assert.Nil(t, llm.contents)
}

func TestSummarizerModelErrorIsRetryable(t *testing.T) {
	boom := errors.New("resource exhausted")
	s := processor.NewSummarizer(&fakeGenerator{err: boom}, "gemini-2.0-flash", "")

	_, err := s.Process(context.Background(), []byte("data"), pc(nil))
	assert.ErrorIs(t, err, boom)
	assert.False(t, processor.IsPermanent(err))
}

func TestNewRegistry(t *testing.T) {
	config := cloud.NewConfig()
	p, err := processor.New(config, nil)
	require.NoError(t, err)
	out, err := p.Process(context.Background(), []byte(`{"a":1}`), pc(nil))
	require.NoError(t, err)
	assert.Equal(t, "json", out.(processor.Inspection).Kind)

	config.Component.Processor = "summarizer"
	_, err = processor.New(config, nil)
	assert.ErrorContains(t, err, `unknown processor "summarizer"`)

	config.AgentModels["summarizer"] = cloud.VertexAiLLMModel{Model: "gemini-2.0-flash"}
	_, err = processor.New(config, nil)
	assert.ErrorContains(t, err, "not initialized")

	models := map[string]*cloud.QuotaAwareGenerativeAIModel{
		"summarizer": cloud.NewQuotaAwareModel(nil, "gemini-2.0-flash", nil, 0),
	}
	p, err = processor.New(config, models)
	require.NoError(t, err)
	assert.IsType(t, &processor.Summarizer{}, p)
}
