package statements

import (
	"fmt"
	"strings"
)

// planNode is one line of the dry-run tree.
type planNode struct {
	label    string
	details  []string
	children []*planNode
}

// FormatText renders the dry-run summary as an ASCII tree.
func (s *DryRunStats) FormatText() string {
	root := &planNode{
		label:   fmt.Sprintf("Run %q", s.Model),
		details: []string{fmt.Sprintf("workers=%d", s.Workers), fmt.Sprintf("max_retries=%d", s.MaxRetries)},
		children: []*planNode{
			{label: "Items", details: []string{fmt.Sprintf("count=%d", s.Items)}, children: []*planNode{
				{label: "Prompts", details: []string{fmt.Sprintf("count=%d", s.Prompts), fmt.Sprintf("tokens(in=%d)", s.EstimatedInputTokens)}},
				{label: "Skipped", details: []string{fmt.Sprintf("count=%d", s.Skipped)}},
				{label: "Errors", details: []string{fmt.Sprintf("count=%d", s.Errors)}},
			}},
			{label: "Calls", details: []string{fmt.Sprintf("min=%d", s.Prompts), fmt.Sprintf("max=%d", s.MaxCalls)}},
		},
	}

	var sb strings.Builder
	sb.WriteString("Extraction Plan (estimated)\n")
	formatNodeAsText(root, "", true, &sb)
	return sb.String()
}

// formatNodeAsText recursively formats a node and its children as text.
func formatNodeAsText(node *planNode, prefix string, isLast bool, sb *strings.Builder) {
	// Choose the appropriate tree connector
	connector := "├─ "
	if isLast {
		connector = "└─ "
	}
	if prefix == "" {
		connector = ""
	}

	line := node.label
	if len(node.details) > 0 {
		line += fmt.Sprintf(" (%s)", strings.Join(node.details, ", "))
	}
	sb.WriteString(fmt.Sprintf("%s%s%s\n", prefix, connector, line))

	childPrefix := prefix
	if prefix == "" {
		// First level children get "  " as prefix to properly indent them
		childPrefix = "  "
	} else {
		if isLast {
			childPrefix += "   "
		} else {
			childPrefix += "│  "
		}
	}

	for i, child := range node.children {
		formatNodeAsText(child, childPrefix, i == len(node.children)-1, sb)
	}
}
