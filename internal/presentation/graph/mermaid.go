package graph

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/TM9657/flow-like-sub010/pkg/domain"
)

// GraphOverlay contains run state to visualize on the graph.
type GraphOverlay struct {
	VisitedNodes []string
	FailedNodes  []string
	CurrentNode  string
}

// OverlayFromRun builds an overlay from a finished run: every executed node is
// visited, and nodes whose trace logged an error are failed.
func OverlayFromRun(meta *domain.LogMeta, traces []*domain.Trace) *GraphOverlay {
	overlay := &GraphOverlay{}
	if meta != nil {
		overlay.VisitedNodes = slices.Clone(meta.Nodes)
	}
	for _, t := range traces {
		if t.MaxLevel() >= domain.LogLevelError && !slices.Contains(overlay.FailedNodes, t.NodeID) {
			overlay.FailedNodes = append(overlay.FailedNodes, t.NodeID)
		}
	}
	return overlay
}

// GenerateMermaid produces a Mermaid flowchart for a board.
// It applies semantic styling:
// - Start: ((Circle))
// - Pure (no exec pins): ([Rounded])
// - Layer: {{Hexagon}}
// - Default: [Rectangle]
// Execution edges are solid, data edges are dotted and labelled with pin names.
// It also applies overlay styles (Visited/Failed/Current) if provided.
func GenerateMermaid(board *domain.Board, overlay *GraphOverlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	owners := make(map[string]string)

	for _, id := range slices.Sorted(maps.Keys(board.Nodes)) {
		node := board.Nodes[id]
		safeID := sanitizeMermaidID(node.ID)
		for pinID := range node.Pins {
			owners[pinID] = safeID
		}

		opener, closer := "[", "]"
		switch {
		case node.Start:
			opener, closer = "((", "))"
		case node.IsPure():
			opener, closer = "([", "])"
		}
		fmt.Fprintf(&sb, "    %s%s\"%s\"%s\n", safeID, opener, nodeLabel(node), closer)
	}

	for _, id := range slices.Sorted(maps.Keys(board.Layers)) {
		layer := board.Layers[id]
		safeID := sanitizeMermaidID(layer.ID)
		for pinID := range layer.Pins {
			owners[pinID] = safeID
		}
		fmt.Fprintf(&sb, "    %s{{\"%s\"}}\n", safeID, escapeLabel(layer.Name))
	}

	for _, conn := range board.Connections() {
		from, okFrom := owners[conn.From]
		to, okTo := owners[conn.To]
		if !okFrom || !okTo {
			// Dangling links are reported by the validator, not drawn.
			continue
		}
		pin, _, _ := board.PinByID(conn.From)
		if pin.DataType == domain.VariableTypeExecution {
			fmt.Fprintf(&sb, "    %s --> %s\n", from, to)
			continue
		}
		fmt.Fprintf(&sb, "    %s -. \"%s: %s\" .-> %s\n", from, pinName(conn.From), pinName(conn.To), to)
	}

	if overlay != nil {
		sb.WriteString("\n    %% Overlay Styles\n")
		// Force black text (color:#000) for contrast in both light and dark themes
		sb.WriteString("    classDef visited fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef failed fill:#ffcdd2,stroke:#b71c1c,stroke-width:3px,color:#000;\n")
		sb.WriteString("    classDef current fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")

		writeClass(&sb, board, overlay.VisitedNodes, "visited")
		writeClass(&sb, board, overlay.FailedNodes, "failed")
		if overlay.CurrentNode != "" {
			writeClass(&sb, board, []string{overlay.CurrentNode}, "current")
		}
	}

	return sb.String()
}

// writeClass styles each known node once, skipping ids that are not on the board.
func writeClass(sb *strings.Builder, board *domain.Board, ids []string, class string) {
	seen := make(map[string]bool)
	for _, id := range ids {
		if _, ok := board.Nodes[id]; !ok || seen[id] {
			continue
		}
		seen[id] = true
		fmt.Fprintf(sb, "    class %s %s;\n", sanitizeMermaidID(id), class)
	}
}

func nodeLabel(n *domain.Node) string {
	name := n.FriendlyName
	if name == "" {
		name = n.Name
	}
	if name == "" || name == n.ID {
		return escapeLabel(n.ID)
	}
	return escapeLabel(name) + " <br/> " + escapeLabel(n.ID)
}

// pinName strips the owner prefix from a "node/pin" id.
func pinName(id string) string {
	if i := strings.LastIndex(id, "/"); i >= 0 {
		return id[i+1:]
	}
	return id
}

func escapeLabel(s string) string {
	return strings.ReplaceAll(s, "\"", "'")
}

func sanitizeMermaidID(id string) string {
	s := strings.ReplaceAll(id, ".", "_")
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	s = strings.ReplaceAll(s, " ", "_")
	return s
}
