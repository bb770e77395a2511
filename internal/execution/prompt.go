package execution

import (
	"fmt"

	"github.com/zjrosen/nodegraph/internal/graph"
	"github.com/zjrosen/nodegraph/internal/log"
)

// PromptNode is one engine-facing node. Linked inputs are encoded as
// [originID, originSlot]; everything else is a literal value.
type PromptNode struct {
	ClassType string         `json:"class_type" yaml:"class_type"`
	Inputs    map[string]any `json:"inputs" yaml:"inputs"`
	Meta      PromptMeta     `json:"_meta" yaml:"_meta"`
}

type PromptMeta struct {
	Title string `json:"title" yaml:"title"`
}

// Prompt is the flattened program keyed by execution id.
type Prompt map[ExecutionID]PromptNode

// BuildPrompt resolves every input of every runnable node in p. Nodes that
// are virtual, muted or bypassed are left out.
func BuildPrompt(p *Program) (Prompt, error) {
	prompt := make(Prompt, len(p.Nodes))
	for _, n := range p.Nodes {
		if !runnable(n) {
			continue
		}

		inputs := make(map[string]any)
		for _, w := range n.Node().Base().Widgets {
			inputs[w.Name] = w.Value
		}

		for i, in := range n.inputs {
			r, err := n.ResolveInput(i)
			if err != nil {
				return nil, fmt.Errorf("failed to resolve input %q of node %s: %w", in.Name, n.id, err)
			}
			switch {
			case r == nil:
			case r.Widget != nil:
				inputs[in.Name] = r.Widget.Value
			case r.Node.Mode() == graph.ModeNever:
				log.Debug(log.CatResolve, "dropping input fed by muted node", "node", n.id, "input", in.Name, "origin", r.OriginID)
			default:
				inputs[in.Name] = []any{string(r.OriginID), r.OriginSlot}
			}
		}

		prompt[n.id] = PromptNode{
			ClassType: n.Type(),
			Inputs:    inputs,
			Meta:      PromptMeta{Title: n.Title()},
		}
	}
	return prompt, nil
}

func runnable(n *ExecutableNode) bool {
	if n.IsVirtual() {
		return false
	}
	switch n.Mode() {
	case graph.ModeNever, graph.ModeBypass:
		return false
	}
	return true
}
