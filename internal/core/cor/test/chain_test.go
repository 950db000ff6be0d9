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

package cor_test

import (
	"context"
	"errors"
	"testing"

	"github.com/jaycherian/gcs-push-handler/internal/core/cor"
	"github.com/stretchr/testify/assert"
)

// step appends its name to the input slice and passes it on, or fails.
type step struct {
	cor.BaseCommand
	fail error
	ran  *[]string
}

func newStep(name string, ran *[]string, fail error) *step {
	return &step{BaseCommand: *cor.NewBaseCommand(name), fail: fail, ran: ran}
}

func (s *step) Execute(context cor.Context) {
	*s.ran = append(*s.ran, s.GetName())
	if s.fail != nil {
		s.Failed(context, s.fail)
		return
	}
	in, _ := context.Get(s.GetInputParam()).([]string)
	context.Add(s.GetOutputParam(), append(append([]string{}, in...), s.GetName()))
	s.Succeeded(context)
}

func TestChainPipesOutputToInput(t *testing.T) {
	var ran []string
	chain := cor.NewBaseChain("pipeline")
	chain.AddCommand(newStep("a", &ran, nil)).
		AddCommand(newStep("b", &ran, nil)).
		AddCommand(newStep("c", &ran, nil))

	ctx := cor.NewBaseContext(context.Background())
	ctx.Add(cor.CtxIn, []string{"start"})
	chain.Execute(ctx)

	assert.False(t, ctx.HasErrors())
	assert.NoError(t, ctx.Err())
	assert.Equal(t, []string{"a", "b", "c"}, ran)
	assert.Equal(t, []string{"start", "a", "b", "c"}, ctx.Get(cor.CtxIn))
	assert.Nil(t, ctx.Get(cor.CtxOut))
	assert.Len(t, chain.Commands(), 3)
}

func TestChainStopsOnFirstError(t *testing.T) {
	var ran []string
	boom := errors.New("boom")
	chain := cor.NewBaseChain("pipeline")
	chain.AddCommand(newStep("a", &ran, nil)).
		AddCommand(newStep("b", &ran, boom)).
		AddCommand(newStep("c", &ran, nil))

	ctx := cor.NewBaseContext(context.Background())
	ctx.Add(cor.CtxIn, []string{"start"})
	chain.Execute(ctx)

	assert.Equal(t, []string{"a", "b"}, ran)
	assert.True(t, ctx.HasErrors())
	assert.ErrorIs(t, ctx.Err(), boom)
	assert.ErrorIs(t, ctx.GetErrors()["b"], boom)
}

func TestChainContinueOnFailure(t *testing.T) {
	var ran []string
	first := errors.New("first")
	second := errors.New("second")
	chain := cor.NewBaseChain("pipeline")
	chain.ContinueOnFailure(true).
		AddCommand(newStep("a", &ran, first)).
		AddCommand(newStep("b", &ran, second))

	ctx := cor.NewBaseContext(context.Background())
	ctx.Add(cor.CtxIn, []string{"start"})
	chain.Execute(ctx)

	assert.Equal(t, []string{"a", "b"}, ran)
	assert.Len(t, ctx.GetErrors(), 2)
	assert.ErrorIs(t, ctx.Err(), first)
}

func TestChainRecordsNonExecutableCommand(t *testing.T) {
	var ran []string
	chain := cor.NewBaseChain("pipeline")
	chain.AddCommand(newStep("a", &ran, nil))

	ctx := cor.NewBaseContext(context.Background())
	chain.Execute(ctx)

	assert.Empty(t, ran)
	assert.EqualError(t, ctx.Err(), "command not executable: a")
}

func TestChainRestoresParentContext(t *testing.T) {
	type key struct{}
	parent := context.WithValue(context.Background(), key{}, "parent")
	var ran []string
	chain := cor.NewBaseChain("pipeline")
	chain.AddCommand(newStep("a", &ran, nil))

	ctx := cor.NewBaseContext(parent)
	ctx.Add(cor.CtxIn, []string{})
	chain.Execute(ctx)

	assert.Equal(t, parent, ctx.GetContext())
}

func TestBaseContextIgnoresNilErrors(t *testing.T) {
	ctx := cor.NewBaseContext(context.Background())
	ctx.AddError("a", nil)

	assert.False(t, ctx.HasErrors())
	assert.NoError(t, ctx.Err())
}
