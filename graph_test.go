package agentflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defWithSteps(steps ...StepDefinition) *WorkflowDefinition {
	return &WorkflowDefinition{
		Name:    "test",
		Version: "1.0",
		Steps:   steps,
	}
}

func TestBuildGraph_Linear(t *testing.T) {
	def := defWithSteps(
		StepDefinition{ID: "a", Agent: "x"},
		StepDefinition{ID: "b", Agent: "x", DependsOn: []string{"a"}},
		StepDefinition{ID: "c", Agent: "x", DependsOn: []string{"b"}},
	)

	graph, err := BuildGraph(def)
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b", "c"}, graph.StepIDs())
	assert.Equal(t, []string{"a"}, graph.Roots())
	assert.Equal(t, []string{"a"}, graph.Dependencies("b"))
	assert.Equal(t, []string{"b"}, graph.Dependents("a"))
	assert.True(t, graph.Contains("c"))
	assert.False(t, graph.Contains("d"))
}

func TestBuildGraph_Diamond(t *testing.T) {
	def := defWithSteps(
		StepDefinition{ID: "a", Agent: "x"},
		StepDefinition{ID: "b", Agent: "x", DependsOn: []string{"a"}},
		StepDefinition{ID: "c", Agent: "x", DependsOn: []string{"a"}},
		StepDefinition{ID: "d", Agent: "x", DependsOn: []string{"b", "c"}},
	)

	graph, err := BuildGraph(def)
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"b", "c"}, graph.Dependents("a"))
	assert.ElementsMatch(t, []string{"b", "c"}, graph.Dependencies("d"))

	waves := graph.Waves()
	require.Len(t, waves, 3)
	assert.Equal(t, []string{"a"}, waves[0])
	assert.ElementsMatch(t, []string{"b", "c"}, waves[1])
	assert.Equal(t, []string{"d"}, waves[2])
}

func TestBuildGraph_NoSteps(t *testing.T) {
	_, err := BuildGraph(defWithSteps())
	require.Error(t, err)

	var defErr *DefinitionError
	assert.ErrorAs(t, err, &defErr)
}

func TestBuildGraph_DuplicateStepID(t *testing.T) {
	def := defWithSteps(
		StepDefinition{ID: "a", Agent: "x"},
		StepDefinition{ID: "a", Agent: "x"},
	)

	_, err := BuildGraph(def)
	require.Error(t, err)

	var defErr *DefinitionError
	require.ErrorAs(t, err, &defErr)
	assert.Equal(t, "a", defErr.Step)
}

func TestBuildGraph_UnknownDependency(t *testing.T) {
	def := defWithSteps(
		StepDefinition{ID: "a", Agent: "x", DependsOn: []string{"ghost"}},
	)

	_, err := BuildGraph(def)
	require.Error(t, err)

	var defErr *DefinitionError
	require.ErrorAs(t, err, &defErr)
	assert.Equal(t, "a", defErr.Step)
	assert.Contains(t, defErr.Reason, "ghost")
}

func TestBuildGraph_SelfCycle(t *testing.T) {
	def := defWithSteps(
		StepDefinition{ID: "a", Agent: "x", DependsOn: []string{"a"}},
	)

	_, err := BuildGraph(def)
	require.Error(t, err)

	var defErr *DefinitionError
	require.ErrorAs(t, err, &defErr)
	assert.Contains(t, defErr.Reason, "cycle")
}

func TestBuildGraph_LongCycle(t *testing.T) {
	def := defWithSteps(
		StepDefinition{ID: "a", Agent: "x", DependsOn: []string{"c"}},
		StepDefinition{ID: "b", Agent: "x", DependsOn: []string{"a"}},
		StepDefinition{ID: "c", Agent: "x", DependsOn: []string{"b"}},
		StepDefinition{ID: "root", Agent: "x"},
	)

	_, err := BuildGraph(def)
	require.Error(t, err)

	var defErr *DefinitionError
	require.ErrorAs(t, err, &defErr)
	assert.Contains(t, defErr.Reason, "a, b, c")
}

func TestBuildGraph_IndependentSteps(t *testing.T) {
	def := defWithSteps(
		StepDefinition{ID: "a", Agent: "x"},
		StepDefinition{ID: "b", Agent: "x"},
		StepDefinition{ID: "c", Agent: "x"},
	)

	graph, err := BuildGraph(def)
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b", "c"}, graph.Roots())

	waves := graph.Waves()
	require.Len(t, waves, 1)
	assert.Equal(t, []string{"a", "b", "c"}, waves[0])
}

func TestDependencyGraph_AccessorsReturnCopies(t *testing.T) {
	def := defWithSteps(
		StepDefinition{ID: "a", Agent: "x"},
		StepDefinition{ID: "b", Agent: "x", DependsOn: []string{"a"}},
	)

	graph, err := BuildGraph(def)
	require.NoError(t, err)

	deps := graph.Dependencies("b")
	deps[0] = "mutated"
	assert.Equal(t, []string{"a"}, graph.Dependencies("b"))

	ids := graph.StepIDs()
	ids[0] = "mutated"
	assert.Equal(t, []string{"a", "b"}, graph.StepIDs())
}
