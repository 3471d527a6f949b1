// Package validation performs static analysis of workflow definitions:
// structural integrity, cycle detection, reachability and block schema checks.
package validation

import (
	"fmt"
	"sort"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/leadflow/flowd/pkg/models"
	"github.com/leadflow/flowd/pkg/registry"
)

// Issue kinds reported by Validate.
const (
	KindEmptyWorkflow    = "empty_workflow"
	KindDuplicateNode    = "duplicate_node"
	KindUnknownNode      = "unknown_node"
	KindCycleDetected    = "cycle_detected"
	KindUnreachableNode  = "unreachable_node"
	KindOrphanNode       = "orphan_node"
	KindUnknownBlockType = "unknown_block_type"
	KindInvalidConfig    = "invalid_config"
	KindMissingInput     = "missing_input_node"
	KindMissingOutput    = "missing_output_node"
)

// Issue is a single validation error or warning.
type Issue struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
	NodeID  string `json:"node_id,omitempty"`
	EdgeID  string `json:"edge_id,omitempty"`
}

// Result is the outcome of validating one workflow definition.
type Result struct {
	Valid    bool    `json:"valid"`
	Errors   []Issue `json:"errors"`
	Warnings []Issue `json:"warnings"`
}

// Options control the optional semantic checks.
type Options struct {
	// Registry is the block catalog snapshot to cross-reference. Required
	// when CheckBlocks is set.
	Registry *registry.Registry

	// CheckBlocks enables block-type and config-schema checks.
	CheckBlocks bool

	// RequireIONodes escalates the missing input/output namespace warnings
	// to errors.
	RequireIONodes bool
}

// Validate inspects a workflow definition without executing any node logic.
// It is read-only and idempotent.
func Validate(def *models.WorkflowDefinition, opts Options) Result {
	result := Result{Errors: []Issue{}, Warnings: []Issue{}}

	if def == nil || len(def.Nodes) == 0 {
		result.Errors = append(result.Errors, Issue{
			Kind:    KindEmptyWorkflow,
			Message: "workflow has no nodes",
		})
		result.Valid = false

		return result
	}

	nodesByID := checkStructure(def, &result)

	if structurallySound(&result) {
		checkGraph(def, nodesByID, &result)
	}

	if opts.CheckBlocks && opts.Registry != nil {
		checkBlocks(def, opts, &result)
	}

	result.Valid = len(result.Errors) == 0

	return result
}

// checkStructure verifies node uniqueness and edge endpoint integrity.
func checkStructure(def *models.WorkflowDefinition, result *Result) map[string]*models.WorkflowNode {
	nodesByID := make(map[string]*models.WorkflowNode, len(def.Nodes))

	for _, node := range def.Nodes {
		if node.ID == "" {
			result.Errors = append(result.Errors, Issue{
				Kind:    KindDuplicateNode,
				Message: "node has empty ID",
			})

			continue
		}

		if _, seen := nodesByID[node.ID]; seen {
			result.Errors = append(result.Errors, Issue{
				Kind:    KindDuplicateNode,
				Message: fmt.Sprintf("duplicate node ID %q", node.ID),
				NodeID:  node.ID,
			})

			continue
		}

		nodesByID[node.ID] = node
	}

	for _, edge := range def.Edges {
		if _, ok := nodesByID[edge.Source]; !ok {
			result.Errors = append(result.Errors, Issue{
				Kind:    KindUnknownNode,
				Message: fmt.Sprintf("edge references non-existent source node %q", edge.Source),
				NodeID:  edge.Source,
				EdgeID:  edge.ID,
			})
		}

		if _, ok := nodesByID[edge.Target]; !ok {
			result.Errors = append(result.Errors, Issue{
				Kind:    KindUnknownNode,
				Message: fmt.Sprintf("edge references non-existent target node %q", edge.Target),
				NodeID:  edge.Target,
				EdgeID:  edge.ID,
			})
		}
	}

	return nodesByID
}

func structurallySound(result *Result) bool {
	return len(result.Errors) == 0
}

// checkGraph detects cycles and unreachable or orphan nodes.
func checkGraph(def *models.WorkflowDefinition, nodesByID map[string]*models.WorkflowNode, result *Result) {
	successors := make(map[string][]string, len(def.Nodes))
	connected := make(map[string]bool, len(def.Nodes))

	for _, edge := range def.Edges {
		successors[edge.Source] = append(successors[edge.Source], edge.Target)
		connected[edge.Source] = true
		connected[edge.Target] = true
	}

	if cycle := findCycle(def, successors); len(cycle) > 0 {
		result.Errors = append(result.Errors, Issue{
			Kind:    KindCycleDetected,
			Message: "workflow contains a cycle: " + strings.Join(cycle, " -> "),
			NodeID:  cycle[0],
		})

		return
	}

	if len(def.Edges) == 0 {
		return
	}

	reachable := make(map[string]bool, len(def.Nodes))

	for _, entry := range def.EntryNodes() {
		if connected[entry.ID] {
			markReachable(entry.ID, successors, reachable)
		}
	}

	for _, node := range def.Nodes {
		if !connected[node.ID] {
			// A node with no edges at all, in a workflow that otherwise has
			// them, is usually an editing leftover.
			if node.Optional {
				continue
			}

			result.Warnings = append(result.Warnings, Issue{
				Kind:    KindOrphanNode,
				Message: fmt.Sprintf("node %q is not connected to the graph", node.ID),
				NodeID:  node.ID,
			})

			continue
		}

		if !reachable[node.ID] {
			result.Errors = append(result.Errors, Issue{
				Kind:    KindUnreachableNode,
				Message: fmt.Sprintf("node %q is not reachable from any entry node", node.ID),
				NodeID:  node.ID,
			})
		}
	}
}

// findCycle runs a depth-first traversal with a recursion stack and returns
// the participating nodes of the first back-edge found, or nil.
func findCycle(def *models.WorkflowDefinition, successors map[string][]string) []string {
	const (
		unvisited = 0
		inStack   = 1
		done      = 2
	)

	state := make(map[string]int, len(def.Nodes))
	stack := []string{}

	var cycle []string

	var visit func(id string) bool

	visit = func(id string) bool {
		state[id] = inStack
		stack = append(stack, id)

		for _, next := range successors[id] {
			switch state[next] {
			case inStack:
				// Back-edge: everything from next to the stack top is in the cycle.
				for i, member := range stack {
					if member == next {
						cycle = append([]string{}, stack[i:]...)
						cycle = append(cycle, next)

						break
					}
				}

				return true
			case unvisited:
				if visit(next) {
					return true
				}
			}
		}

		stack = stack[:len(stack)-1]
		state[id] = done

		return false
	}

	for _, node := range def.Nodes {
		if state[node.ID] == unvisited {
			if visit(node.ID) {
				return cycle
			}
		}
	}

	return nil
}

func markReachable(id string, successors map[string][]string, reachable map[string]bool) {
	if reachable[id] {
		return
	}

	reachable[id] = true

	for _, next := range successors[id] {
		markReachable(next, successors, reachable)
	}
}

// checkBlocks cross-references node types with the registry snapshot and
// validates node configs against the registered block schemas.
func checkBlocks(def *models.WorkflowDefinition, opts Options, result *Result) {
	namespaces := make(map[string]bool)

	for _, node := range def.Nodes {
		namespaces[node.Namespace()] = true

		meta, registered := opts.Registry.Metadata(node.Type)
		if !registered {
			result.Errors = append(result.Errors, Issue{
				Kind:    KindUnknownBlockType,
				Message: fmt.Sprintf("node %q references unregistered block type %q", node.ID, node.Type),
				NodeID:  node.ID,
			})

			continue
		}

		if issue := validateConfig(node, meta.Schema); issue != nil {
			result.Errors = append(result.Errors, *issue)
		}
	}

	if !namespaces[models.BlockCategoryInput] {
		appendIOIssue(result, opts, Issue{
			Kind:    KindMissingInput,
			Message: "workflow has no input.* node",
		})
	}

	if !namespaces[models.BlockCategoryOutput] {
		appendIOIssue(result, opts, Issue{
			Kind:    KindMissingOutput,
			Message: "workflow has no output.* node",
		})
	}
}

func appendIOIssue(result *Result, opts Options, issue Issue) {
	if opts.RequireIONodes {
		result.Errors = append(result.Errors, issue)
	} else {
		result.Warnings = append(result.Warnings, issue)
	}
}

// validateConfig checks a node's config against the block's JSON schema.
func validateConfig(node *models.WorkflowNode, schema map[string]any) *Issue {
	if len(schema) == 0 {
		return nil
	}

	config := node.Config
	if config == nil {
		config = map[string]any{}
	}

	documentLoader := gojsonschema.NewGoLoader(config)
	schemaLoader := gojsonschema.NewGoLoader(schema)

	outcome, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return &Issue{
			Kind:    KindInvalidConfig,
			Message: fmt.Sprintf("node %q config could not be validated: %v", node.ID, err),
			NodeID:  node.ID,
		}
	}

	if outcome.Valid() {
		return nil
	}

	details := make([]string, 0, len(outcome.Errors()))
	for _, desc := range outcome.Errors() {
		details = append(details, desc.String())
	}

	sort.Strings(details)

	return &Issue{
		Kind:    KindInvalidConfig,
		Message: fmt.Sprintf("node %q config is invalid: %s", node.ID, strings.Join(details, "; ")),
		NodeID:  node.ID,
	}
}
