package graph

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// ProcessDef is the YAML structure for declaring a hiring process graph.
// Nodes are referenced by name inside the file; the store assigns ids
// when the definition is materialized into a draft process.
type ProcessDef struct {
	Process     string            `yaml:"process"`
	Description string            `yaml:"description,omitempty"`
	Settings    map[string]string `yaml:"settings,omitempty"`
	Nodes       []NodeDef         `yaml:"nodes"`
	Connections []ConnectionDef   `yaml:"connections"`
}

// NodeDef declares one stage.
type NodeDef struct {
	Name     string `yaml:"name"`
	Type     string `yaml:"type"`
	Title    string `yaml:"title,omitempty"`
	Sequence int    `yaml:"sequence,omitempty"`
	Required bool   `yaml:"required,omitempty"`

	Interviewers    []int64 `yaml:"interviewers,omitempty"`
	DurationMinutes int     `yaml:"duration_minutes,omitempty"`
	DueInDays       int     `yaml:"due_in_days,omitempty"`
	SubmissionKind  string  `yaml:"submission_kind,omitempty"`
	Deciders        []int64 `yaml:"deciders,omitempty"`
}

// ConnectionDef declares one conditioned edge between two named nodes.
type ConnectionDef struct {
	From      string  `yaml:"from"`
	To        string  `yaml:"to"`
	Kind      string  `yaml:"kind"`
	Threshold float64 `yaml:"threshold,omitempty"`
	Default   bool    `yaml:"default,omitempty"`
	Label     string  `yaml:"label,omitempty"`
}

// LoadDef parses a YAML process definition.
func LoadDef(data []byte) (*ProcessDef, error) {
	var def ProcessDef
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("parse process YAML: %w", err)
	}
	return &def, nil
}

// MarshalYAML serializes a ProcessDef back to YAML.
func (def *ProcessDef) MarshalYAML() ([]byte, error) {
	return yaml.Marshal(def)
}

// Validate checks referential integrity of the definition:
//   - process name is non-empty
//   - at least one node exists
//   - node names are unique and types are known
//   - all connection endpoints reference declared nodes
//   - conditional kinds are known
//
// Structural soundness (entry node, exhaustive branches) is checked by
// Validate on the materialized graph, not here.
func (def *ProcessDef) Validate() error {
	if strings.TrimSpace(def.Process) == "" {
		return fmt.Errorf("process name is required")
	}
	if len(def.Nodes) == 0 {
		return fmt.Errorf("at least one node is required")
	}
	names := make(map[string]bool, len(def.Nodes))
	for _, n := range def.Nodes {
		if n.Name == "" {
			return fmt.Errorf("node with empty name")
		}
		if names[n.Name] {
			return fmt.Errorf("duplicate node name %q", n.Name)
		}
		names[n.Name] = true
		switch NodeType(n.Type) {
		case NodeInterview, NodeTask, NodeDecision:
		default:
			return fmt.Errorf("node %q: unknown type %q", n.Name, n.Type)
		}
	}
	for i, c := range def.Connections {
		if !names[c.From] {
			return fmt.Errorf("connection %d references unknown source %q", i, c.From)
		}
		if !names[c.To] {
			return fmt.Errorf("connection %d references unknown target %q", i, c.To)
		}
		switch ConditionKind(c.Kind) {
		case CondSuccess, CondFail, CondConditional:
		default:
			if !c.Default || c.Kind != "" {
				return fmt.Errorf("connection %d (%s -> %s): unknown kind %q", i, c.From, c.To, c.Kind)
			}
		}
	}
	return nil
}

// NodeFor converts a NodeDef into a Node (ids are assigned by the store).
func (n NodeDef) NodeFor(processID int64) *Node {
	title := n.Title
	if title == "" {
		title = n.Name
	}
	return &Node{
		ProcessID: processID,
		Type:      NodeType(n.Type),
		Title:     title,
		Sequence:  n.Sequence,
		Required:  n.Required,
		Config: NodeConfig{
			InterviewerIDs:  n.Interviewers,
			DurationMinutes: n.DurationMinutes,
			DueInDays:       n.DueInDays,
			SubmissionKind:  n.SubmissionKind,
			DeciderIDs:      n.Deciders,
		},
	}
}
