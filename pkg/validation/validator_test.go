package validation_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leadflow/flowd/pkg/models"
	"github.com/leadflow/flowd/pkg/registry"
	"github.com/leadflow/flowd/pkg/testutil"
	"github.com/leadflow/flowd/pkg/validation"
)

func blockOptions(t *testing.T) validation.Options {
	t.Helper()

	reg := registry.NewRegistry()
	require.NoError(t, reg.RegisterDefaultBlocks())

	return validation.Options{Registry: reg, CheckBlocks: true}
}

func issueKinds(issues []validation.Issue) []string {
	kinds := make([]string, 0, len(issues))
	for _, issue := range issues {
		kinds = append(kinds, issue.Kind)
	}

	return kinds
}

func TestValidate_EmptyWorkflow(t *testing.T) {
	t.Parallel()

	result := validation.Validate(&models.WorkflowDefinition{}, validation.Options{})

	assert.False(t, result.Valid)
	assert.Contains(t, issueKinds(result.Errors), validation.KindEmptyWorkflow)
}

func TestValidate_NilWorkflow(t *testing.T) {
	t.Parallel()

	result := validation.Validate(nil, validation.Options{})

	assert.False(t, result.Valid)
}

func TestValidate_DuplicateNodeIDs(t *testing.T) {
	t.Parallel()

	def := testutil.CreateTestWorkflow(testutil.WithNodes(
		testutil.CreateTestNode(testutil.WithID("same")),
		testutil.CreateTestNode(testutil.WithID("same")),
	))

	result := validation.Validate(def, validation.Options{})

	assert.False(t, result.Valid)
	assert.Contains(t, issueKinds(result.Errors), validation.KindDuplicateNode)
}

func TestValidate_DanglingEdge(t *testing.T) {
	t.Parallel()

	def := testutil.CreateTestWorkflow(
		testutil.WithNodes(testutil.CreateTestNode(testutil.WithID("only"))),
		testutil.WithEdges(testutil.CreateTestEdge("only", "ghost")),
	)

	result := validation.Validate(def, validation.Options{})

	assert.False(t, result.Valid)

	require.NotEmpty(t, result.Errors)
	assert.Equal(t, validation.KindUnknownNode, result.Errors[0].Kind)
	assert.Equal(t, "ghost", result.Errors[0].NodeID)
}

func TestValidate_CycleDetected(t *testing.T) {
	t.Parallel()

	def := testutil.CreateTestWorkflow(
		testutil.WithNodes(
			testutil.CreateTestNode(testutil.WithID("a")),
			testutil.CreateTestNode(testutil.WithID("b")),
		),
		testutil.WithEdges(
			testutil.CreateTestEdge("a", "b"),
			testutil.CreateTestEdge("b", "a"),
		),
	)

	result := validation.Validate(def, validation.Options{})

	assert.False(t, result.Valid)
	assert.Contains(t, issueKinds(result.Errors), validation.KindCycleDetected)
}

func TestValidate_OrphanNodeIsWarning(t *testing.T) {
	t.Parallel()

	def := testutil.CreateTestWorkflow(
		testutil.WithNodes(
			testutil.CreateTestNode(testutil.WithID("entry")),
			testutil.CreateTestNode(testutil.WithID("next")),
			testutil.CreateTestNode(testutil.WithID("loose")),
		),
		testutil.WithEdges(testutil.CreateTestEdge("entry", "next")),
	)

	result := validation.Validate(def, validation.Options{})

	// A disconnected node does not invalidate the workflow.
	assert.True(t, result.Valid)
	assert.Contains(t, issueKinds(result.Warnings), validation.KindOrphanNode)
}

func TestValidate_OptionalOrphanIsSilent(t *testing.T) {
	t.Parallel()

	loose := testutil.CreateTestNode(testutil.WithID("loose"))
	loose.Optional = true

	def := testutil.CreateTestWorkflow(
		testutil.WithNodes(
			testutil.CreateTestNode(testutil.WithID("entry")),
			testutil.CreateTestNode(testutil.WithID("next")),
			loose,
		),
		testutil.WithEdges(testutil.CreateTestEdge("entry", "next")),
	)

	result := validation.Validate(def, validation.Options{})

	assert.True(t, result.Valid)
	assert.Empty(t, result.Warnings)
}

func TestValidate_UnknownBlockType(t *testing.T) {
	t.Parallel()

	def := testutil.CreateTestWorkflow(testutil.WithNodes(
		testutil.CreateTestNode(testutil.WithID("n1"), testutil.WithType("custom.unknown")),
	))

	result := validation.Validate(def, blockOptions(t))

	assert.False(t, result.Valid)

	require.NotEmpty(t, result.Errors)
	assert.Equal(t, validation.KindUnknownBlockType, result.Errors[0].Kind)
	assert.Equal(t, "n1", result.Errors[0].NodeID)
}

func TestValidate_ConfigSchemaViolation(t *testing.T) {
	t.Parallel()

	def := testutil.CreateTestWorkflow(testutil.WithNodes(
		testutil.CreateTestNode(
			testutil.WithID("bad-filter"),
			testutil.WithType("transform.filter"),
			testutil.WithConfig(map[string]any{"collection": "leads"}),
		),
	))

	result := validation.Validate(def, blockOptions(t))

	assert.False(t, result.Valid)
	assert.Contains(t, issueKinds(result.Errors), validation.KindInvalidConfig)
}

func TestValidate_MissingIONodesAreWarnings(t *testing.T) {
	t.Parallel()

	def := testutil.CreateTestWorkflow(testutil.WithNodes(
		testutil.CreateTestNode(
			testutil.WithID("only"),
			testutil.WithType("transform.template"),
			testutil.WithConfig(map[string]any{"expression": "x"}),
		),
	))

	result := validation.Validate(def, blockOptions(t))

	assert.True(t, result.Valid)

	kinds := issueKinds(result.Warnings)
	assert.Contains(t, kinds, validation.KindMissingInput)
	assert.Contains(t, kinds, validation.KindMissingOutput)
}

func TestValidate_RequireIONodesEscalates(t *testing.T) {
	t.Parallel()

	opts := blockOptions(t)
	opts.RequireIONodes = true

	def := testutil.CreateTestWorkflow(testutil.WithNodes(
		testutil.CreateTestNode(
			testutil.WithID("only"),
			testutil.WithType("transform.template"),
			testutil.WithConfig(map[string]any{"expression": "x"}),
		),
	))

	result := validation.Validate(def, opts)

	assert.False(t, result.Valid)
	assert.Contains(t, issueKinds(result.Errors), validation.KindMissingInput)
}

func TestValidate_HealthyWorkflow(t *testing.T) {
	t.Parallel()

	def := testutil.LinearWorkflow(
		testutil.CreateTestNode(testutil.WithID("in")),
		testutil.CreateTestNode(
			testutil.WithID("log"),
			testutil.WithType("output.logger"),
			testutil.WithConfig(map[string]any{"message": "done"}),
		),
	)

	result := validation.Validate(def, blockOptions(t))

	assert.True(t, result.Valid)
	assert.Empty(t, result.Errors)
	assert.Empty(t, result.Warnings)
}
