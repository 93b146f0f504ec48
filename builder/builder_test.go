package builder

import (
	"testing"
	"time"

	"github.com/sicko7947/agentflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWorkflow_NoSteps(t *testing.T) {
	builder := NewWorkflow("empty", "1.0")

	def, err := builder.Build()
	require.Error(t, err)
	assert.Nil(t, def)
}

func TestWorkflowBuilder_SingleStep(t *testing.T) {
	def, err := NewWorkflow("single", "1.0").
		Step("fetch", "http", "get",
			WithInputs("url"),
			WithOutputs("body"),
		).
		Build()

	require.NoError(t, err)
	assert.Equal(t, "single", def.Name)
	require.Len(t, def.Steps, 1)
	assert.Equal(t, "http", def.Steps[0].Agent)
	assert.Equal(t, []string{"url"}, def.Steps[0].Inputs)
	assert.Equal(t, []string{"body"}, def.Steps[0].Outputs)
}

func TestWorkflowBuilder_Then_Chains(t *testing.T) {
	def, err := NewWorkflow("chain", "1.0").
		Then("a", "agent", "one", WithOutputs("x")).
		Then("b", "agent", "two", WithInputs("x"), WithOutputs("y")).
		Then("c", "agent", "three", WithInputs("y")).
		Build()

	require.NoError(t, err)
	require.Len(t, def.Steps, 3)
	assert.Empty(t, def.Steps[0].DependsOn)
	assert.Equal(t, []string{"a"}, def.Steps[1].DependsOn)
	assert.Equal(t, []string{"b"}, def.Steps[2].DependsOn)
}

func TestWorkflowBuilder_Parallel_FanOutFanIn(t *testing.T) {
	def, err := NewWorkflow("diamond", "1.0").
		Then("start", "agent", "seed", WithOutputs("n")).
		Parallel(
			ParallelStep{ID: "left", Agent: "agent", Action: "inc", Options: []StepOption{WithInputs("n"), WithOutputs("l")}},
			ParallelStep{ID: "right", Agent: "agent", Action: "dec", Options: []StepOption{WithInputs("n"), WithOutputs("r")}},
		).
		Then("join", "agent", "sum", WithInputs("l", "r")).
		Build()

	require.NoError(t, err)
	require.Len(t, def.Steps, 4)

	left := def.Step("left")
	require.NotNil(t, left)
	assert.Equal(t, []string{"start"}, left.DependsOn)
	assert.True(t, left.Parallel)

	join := def.Step("join")
	require.NotNil(t, join)
	assert.ElementsMatch(t, []string{"left", "right"}, join.DependsOn)
}

func TestWorkflowBuilder_StepOptions(t *testing.T) {
	policy := agentflow.RetryPolicy{MaxRetries: 5, DelayMs: 100, Backoff: agentflow.BackoffExponential}

	def, err := NewWorkflow("options", "1.0").
		WithTimeout(time.Minute).
		WithRetryPolicy(agentflow.RetryPolicy{MaxRetries: 1, DelayMs: 50, Backoff: agentflow.BackoffNone}).
		Step("guarded", "agent", "act",
			WithCondition("defined(flag) && flag == true"),
			WithStepTimeout(5*time.Second),
			WithStepRetryPolicy(policy),
		).
		Build()

	require.NoError(t, err)
	assert.EqualValues(t, 60000, def.TimeoutMs)
	require.NotNil(t, def.RetryPolicy)
	assert.Equal(t, 1, def.RetryPolicy.MaxRetries)

	step := def.Step("guarded")
	require.NotNil(t, step)
	assert.Equal(t, "defined(flag) && flag == true", step.Condition)
	assert.EqualValues(t, 5000, step.TimeoutMs)
	require.NotNil(t, step.RetryPolicy)
	assert.Equal(t, 5, step.RetryPolicy.MaxRetries)
}

func TestWorkflowBuilder_Build_RejectsCycle(t *testing.T) {
	def, err := NewWorkflow("cyclic", "1.0").
		Step("a", "agent", "act", WithDependsOn("b")).
		Step("b", "agent", "act", WithDependsOn("a")).
		Build()

	require.Error(t, err)
	assert.Nil(t, def)

	var defErr *agentflow.DefinitionError
	assert.ErrorAs(t, err, &defErr)
}

func TestWorkflowBuilder_Build_RejectsDuplicateID(t *testing.T) {
	_, err := NewWorkflow("dup", "1.0").
		Step("a", "agent", "act").
		Step("a", "agent", "act").
		Build()

	require.Error(t, err)
}

func TestWorkflowBuilder_MustBuild_Panics(t *testing.T) {
	assert.Panics(t, func() {
		NewWorkflow("bad", "1.0").
			Step("a", "agent", "act", WithDependsOn("missing")).
			MustBuild()
	})
}
