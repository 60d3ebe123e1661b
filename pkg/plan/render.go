package plan

import (
	"fmt"
	"strings"
)

// Render draws the tree as indented text, one line per operator, for reports
// and terminal output.
func Render(root *PlanNode) string {
	var sb strings.Builder
	renderNode(&sb, root, "", "")
	return sb.String()
}

func renderNode(sb *strings.Builder, n *PlanNode, selfPrefix, childIndent string) {
	sb.WriteString(selfPrefix)
	sb.WriteString(nodeLabel(n))
	sb.WriteByte('\n')
	for i, child := range n.Children {
		if i == len(n.Children)-1 {
			renderNode(sb, child, childIndent+"└─", childIndent+"  ")
		} else {
			renderNode(sb, child, childIndent+"├─", childIndent+"│ ")
		}
	}
}

func nodeLabel(n *PlanNode) string {
	label := fmt.Sprintf("%s || Cost: %.2f || Rows: %d", n.Operator, n.SelfCost(), n.EstimatedRows)
	if n.Relation != "" {
		label += " || Relation: " + n.Relation
	}
	if !n.Recognized {
		label += " (unrecognized)"
	}
	return label
}
