package graph

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/zjrosen/nodegraph/internal/log"
)

// WorkflowVersion is the document format version written by Serialize.
const WorkflowVersion = 1

// Version is a format version. Any JSON number or numeric string decodes;
// anything else decodes as zero.
type Version float64

// UnmarshalJSON implements json.Unmarshaler.
func (v *Version) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil
	}
	switch x := raw.(type) {
	case float64:
		*v = Version(x)
	case string:
		if f, err := strconv.ParseFloat(x, 64); err == nil {
			*v = Version(f)
		}
	}
	return nil
}

// Int returns the version truncated to an integer.
func (v Version) Int() int {
	return int(v)
}

// UnmarshalJSON accepts a string, a number or a list of strings.
func (t *SlotType) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch x := raw.(type) {
	case string:
		*t = SlotType(x)
	case float64:
		*t = SlotType(strconv.FormatFloat(x, 'f', -1, 64))
	case []any:
		parts := make([]string, 0, len(x))
		for _, p := range x {
			parts = append(parts, fmt.Sprint(p))
		}
		*t = SlotType(strings.Join(parts, ","))
	default:
		*t = ""
	}
	return nil
}

// Vec2 is a position or size. Decodes from [x, y] or {"0": x, "1": y}.
type Vec2 [2]float64

// UnmarshalJSON implements json.Unmarshaler.
func (v *Vec2) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || string(trimmed) == "null" {
		return nil
	}
	if trimmed[0] == '{' {
		var m map[string]float64
		if err := json.Unmarshal(trimmed, &m); err != nil {
			return err
		}
		*v = Vec2{m["0"], m["1"]}
		return nil
	}
	var arr []float64
	if err := json.Unmarshal(trimmed, &arr); err != nil {
		return err
	}
	for i := 0; i < len(arr) && i < 2; i++ {
		v[i] = arr[i]
	}
	return nil
}

// SerialisedInput is the persisted form of an input slot.
type SerialisedInput struct {
	Name          string     `json:"name"`
	Label         string     `json:"label,omitempty"`
	LocalizedName string     `json:"localized_name,omitempty"`
	Type          SlotType   `json:"type"`
	Link          *LinkID    `json:"link"`
	Widget        *WidgetRef `json:"widget,omitempty"`
}

// SerialisedOutput is the persisted form of an output slot.
type SerialisedOutput struct {
	Name          string   `json:"name"`
	Label         string   `json:"label,omitempty"`
	LocalizedName string   `json:"localized_name,omitempty"`
	Type          SlotType `json:"type"`
	Links         []LinkID `json:"links"`
}

// SerialisedNode is the persisted form of a node. For a SubgraphNode the
// type is the definition id.
type SerialisedNode struct {
	ID            NodeID             `json:"id"`
	Type          string             `json:"type"`
	Title         string             `json:"title,omitempty"`
	Pos           Vec2               `json:"pos"`
	Size          Vec2               `json:"size"`
	Flags         map[string]any     `json:"flags"`
	Order         int                `json:"order"`
	Mode          NodeMode           `json:"mode"`
	Inputs        []SerialisedInput  `json:"inputs,omitempty"`
	Outputs       []SerialisedOutput `json:"outputs,omitempty"`
	Properties    map[string]any     `json:"properties"`
	WidgetsValues []any              `json:"widgets_values,omitempty"`
}

// SerialisedLink is the persisted form of a link.
type SerialisedLink struct {
	ID         LinkID   `json:"id"`
	OriginID   NodeID   `json:"origin_id"`
	OriginSlot int      `json:"origin_slot"`
	TargetID   NodeID   `json:"target_id"`
	TargetSlot int      `json:"target_slot"`
	Type       SlotType `json:"type"`
}

// LinkList encodes as an array of link objects. It decodes from an array of
// objects, an array of [id, origin, originSlot, target, targetSlot, type]
// tuples, or an object keyed by link id.
type LinkList []SerialisedLink

// UnmarshalJSON implements json.Unmarshaler.
func (l *LinkList) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || string(trimmed) == "null" {
		*l = nil
		return nil
	}

	var items []json.RawMessage
	if trimmed[0] == '{' {
		var keyed map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &keyed); err != nil {
			return err
		}
		for _, raw := range keyed {
			items = append(items, raw)
		}
	} else if err := json.Unmarshal(trimmed, &items); err != nil {
		return err
	}

	out := make(LinkList, 0, len(items))
	for _, raw := range items {
		link, err := decodeLink(raw)
		if err != nil {
			return err
		}
		out = append(out, link)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	*l = out
	return nil
}

func decodeLink(raw json.RawMessage) (SerialisedLink, error) {
	var link SerialisedLink
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		err := json.Unmarshal(trimmed, &link)
		return link, err
	}

	var tuple []json.RawMessage
	if err := json.Unmarshal(trimmed, &tuple); err != nil {
		return link, err
	}
	if len(tuple) < 5 {
		return link, fmt.Errorf("link tuple has %d fields, want at least 5", len(tuple))
	}
	targets := []any{&link.ID, &link.OriginID, &link.OriginSlot, &link.TargetID, &link.TargetSlot}
	for i, target := range targets {
		if err := json.Unmarshal(tuple[i], target); err != nil {
			return link, fmt.Errorf("link tuple field %d: %w", i, err)
		}
	}
	if len(tuple) > 5 {
		_ = json.Unmarshal(tuple[5], &link.Type)
	}
	return link, nil
}

// SerialisedGroup is the persisted form of a group.
type SerialisedGroup struct {
	ID       int        `json:"id"`
	Title    string     `json:"title"`
	Bounding [4]float64 `json:"bounding"`
	Color    string     `json:"color,omitempty"`
	FontSize int        `json:"font_size,omitempty"`
}

// ExportedSlot is the persisted form of a boundary slot.
type ExportedSlot struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Type    SlotType `json:"type"`
	LinkIDs []LinkID `json:"linkIds"`
	Label   string   `json:"label,omitempty"`
}

// ExportedIONode is the persisted form of a boundary node.
type ExportedIONode struct {
	ID       NodeID     `json:"id"`
	Bounding [4]float64 `json:"bounding"`
}

// ExportedSubgraph is the persisted form of a subgraph definition.
type ExportedSubgraph struct {
	Version    Version           `json:"version"`
	ID         string            `json:"id"`
	Name       string            `json:"name"`
	Nodes      []SerialisedNode  `json:"nodes"`
	Links      LinkList          `json:"links"`
	Groups     []SerialisedGroup `json:"groups"`
	Inputs     []ExportedSlot    `json:"inputs"`
	Outputs    []ExportedSlot    `json:"outputs"`
	InputNode  ExportedIONode    `json:"inputNode"`
	OutputNode ExportedIONode    `json:"outputNode"`
	Widgets    []ExposedWidget   `json:"widgets"`
	Extra      map[string]any    `json:"extra,omitempty"`
}

// Definitions holds the subgraph definitions used by a workflow.
type Definitions struct {
	Subgraphs []ExportedSubgraph `json:"subgraphs"`
}

// Workflow is the persisted form of a whole document.
type Workflow struct {
	ID          string            `json:"id,omitempty"`
	Revision    int               `json:"revision,omitempty"`
	Version     Version           `json:"version"`
	LastNodeID  NodeID            `json:"last_node_id"`
	LastLinkID  LinkID            `json:"last_link_id"`
	Nodes       []SerialisedNode  `json:"nodes"`
	Links       LinkList          `json:"links"`
	Groups      []SerialisedGroup `json:"groups"`
	Definitions *Definitions      `json:"definitions,omitempty"`
	Config      map[string]any    `json:"config,omitempty"`
	Extra       map[string]any    `json:"extra,omitempty"`
}

// ParseWorkflow decodes a workflow document.
func ParseWorkflow(data []byte) (*Workflow, error) {
	var wf Workflow
	if err := json.Unmarshal(data, &wf); err != nil {
		return nil, fmt.Errorf("failed to parse workflow: %w", err)
	}
	if wf.Version.Int() > WorkflowVersion {
		log.Debug(log.CatSerialise, "newer workflow version", "version", wf.Version)
	}
	return &wf, nil
}

// SubgraphTypes returns the node types used by wf, in first-use order,
// that none of its own definitions supply. Callers use it to find
// definitions to fetch from elsewhere.
func (wf *Workflow) SubgraphTypes() []string {
	seen := map[string]bool{}
	if wf.Definitions != nil {
		for _, def := range wf.Definitions.Subgraphs {
			seen[def.ID] = true
		}
	}
	var types []string
	add := func(nodes []SerialisedNode) {
		for _, n := range nodes {
			if !seen[n.Type] {
				seen[n.Type] = true
				types = append(types, n.Type)
			}
		}
	}
	add(wf.Nodes)
	if wf.Definitions != nil {
		for _, def := range wf.Definitions.Subgraphs {
			add(def.Nodes)
		}
	}
	return types
}

// Serialize encodes a document with the definitions its nodes use.
func (g *Graph) Serialize() *Workflow {
	wf := &Workflow{
		Version:    WorkflowVersion,
		LastNodeID: g.lastNodeID,
		LastLinkID: g.lastLinkID,
		Nodes:      serialiseNodes(g),
		Links:      serialiseLinks(g),
		Groups:     serialiseGroups(g),
		Extra:      g.Extra,
	}
	if ids := g.Registry().UsedSubgraphIDs(g); len(ids) > 0 {
		wf.Definitions = &Definitions{}
		for _, id := range ids {
			sg, err := g.Registry().Subgraph(id)
			if err != nil {
				// Instances keep definitions removed from the registry alive.
				sg = findInstanceDefinition(g, id)
			}
			if sg != nil {
				wf.Definitions.Subgraphs = append(wf.Definitions.Subgraphs, *sg.Export())
			}
		}
	}
	return wf
}

func findInstanceDefinition(g *Graph, id string) *Subgraph {
	for _, n := range g.nodes {
		if sn, ok := n.(*SubgraphNode); ok {
			if sn.subgraph.ID == id {
				return sn.subgraph
			}
			if found := findInstanceDefinition(&sn.subgraph.Graph, id); found != nil {
				return found
			}
		}
	}
	return nil
}

// Export encodes the definition.
func (s *Subgraph) Export() *ExportedSubgraph {
	return &ExportedSubgraph{
		Version:    Version(s.Version),
		ID:         s.ID,
		Name:       s.Name,
		Nodes:      serialiseNodes(&s.Graph),
		Links:      serialiseLinks(&s.Graph),
		Groups:     serialiseGroups(&s.Graph),
		Inputs:     exportSlots(s.Inputs()),
		Outputs:    exportSlots(s.Outputs()),
		InputNode:  ExportedIONode{ID: s.InputNode.ID, Bounding: s.InputNode.Bounding},
		OutputNode: ExportedIONode{ID: s.OutputNode.ID, Bounding: s.OutputNode.Bounding},
		Widgets:    append([]ExposedWidget{}, s.Widgets...),
	}
}

// Serialize encodes the instance. Promoted values are first written through
// to the inner widgets they forward to.
func (n *SubgraphNode) Serialize() SerialisedNode {
	n.syncPromotedWidgets()

	proxies := make([][2]string, 0, len(n.Widgets))
	for _, w := range n.Widgets {
		if w.Source != nil {
			proxies = append(proxies, [2]string{w.Source.NodeID.String(), w.Source.WidgetName})
		}
	}
	if len(proxies) > 0 {
		n.Properties["proxyWidgets"] = proxies
	} else {
		delete(n.Properties, "proxyWidgets")
	}

	sn := serialiseBase(&n.NodeBase)
	if n.SerializeWidgets {
		sn.WidgetsValues = n.WidgetValues()
	}
	return sn
}

// Serialize encodes the node.
func (n *LeafNode) Serialize() SerialisedNode {
	sn := serialiseBase(&n.NodeBase)
	if values := n.WidgetValues(); len(values) > 0 {
		sn.WidgetsValues = values
	}
	return sn
}

func serialiseBase(b *NodeBase) SerialisedNode {
	sn := SerialisedNode{
		ID:         b.ID,
		Type:       b.Type,
		Title:      b.Title,
		Pos:        Vec2(b.Pos),
		Size:       Vec2(b.Size),
		Flags:      b.Flags,
		Order:      b.Order,
		Mode:       b.Mode,
		Properties: b.Properties,
	}
	for _, in := range b.Inputs {
		si := SerialisedInput{Name: in.Name, Label: in.Label, Type: in.Type, Widget: in.Widget}
		if in.Linked() {
			id := in.Link
			si.Link = &id
		}
		sn.Inputs = append(sn.Inputs, si)
	}
	for _, out := range b.Outputs {
		sn.Outputs = append(sn.Outputs, SerialisedOutput{
			Name:  out.Name,
			Label: out.Label,
			Type:  out.Type,
			Links: append([]LinkID{}, out.Links...),
		})
	}
	return sn
}

func serialiseNodes(g *Graph) []SerialisedNode {
	nodes := make([]SerialisedNode, 0, len(g.nodes))
	for _, n := range g.nodes {
		switch node := n.(type) {
		case *SubgraphNode:
			nodes = append(nodes, node.Serialize())
		case *LeafNode:
			nodes = append(nodes, node.Serialize())
		}
	}
	return nodes
}

func serialiseLinks(g *Graph) LinkList {
	links := make(LinkList, 0, len(g.links))
	for _, l := range g.Links() {
		links = append(links, SerialisedLink{
			ID:         l.ID,
			OriginID:   l.OriginID,
			OriginSlot: l.OriginSlot,
			TargetID:   l.TargetID,
			TargetSlot: l.TargetSlot,
			Type:       l.Type,
		})
	}
	return links
}

func serialiseGroups(g *Graph) []SerialisedGroup {
	groups := make([]SerialisedGroup, 0, len(g.Groups))
	for _, gr := range g.Groups {
		groups = append(groups, SerialisedGroup{
			ID:       gr.ID,
			Title:    gr.Title,
			Bounding: gr.Bounding,
			Color:    gr.Color,
			FontSize: gr.FontSize,
		})
	}
	return groups
}

func exportSlots(slots []*BoundarySlot) []ExportedSlot {
	out := make([]ExportedSlot, 0, len(slots))
	for _, s := range slots {
		out = append(out, ExportedSlot{
			ID:      s.ID,
			Name:    s.Name,
			Type:    s.Type,
			LinkIDs: append([]LinkID{}, s.LinkIDs...),
			Label:   s.Label,
		})
	}
	return out
}

// Load builds a document from a workflow. Definitions in the workflow replace
// registered definitions with the same id.
func Load(wf *Workflow, reg *Registry) (*Graph, error) {
	g := New(reg)
	if wf.Definitions != nil {
		if _, err := g.ImportSubgraphs(wf.Definitions.Subgraphs...); err != nil {
			return nil, err
		}
	}
	if err := g.configure(wf.Nodes, wf.Links, wf.Groups); err != nil {
		return nil, err
	}
	if wf.LastNodeID > g.lastNodeID {
		g.lastNodeID = wf.LastNodeID
	}
	if wf.LastLinkID > g.lastLinkID {
		g.lastLinkID = wf.LastLinkID
	}
	if wf.Extra != nil {
		g.Extra = wf.Extra
	}
	return g, nil
}

// ImportSubgraphs registers definitions and builds their bodies. A definition
// is built after the definitions it instantiates.
func (g *Graph) ImportSubgraphs(defs ...ExportedSubgraph) ([]*Subgraph, error) {
	reg := g.Registry()
	byID := make(map[string]*ExportedSubgraph, len(defs))
	shells := make([]*Subgraph, 0, len(defs))

	for i := range defs {
		def := &defs[i]
		if def.ID == "" {
			return nil, fmt.Errorf("%w: missing id", ErrInvalidDefinition)
		}
		if _, dup := byID[def.ID]; dup {
			return nil, fmt.Errorf("%w: subgraph %s", ErrDuplicateKey, def.ID)
		}
		byID[def.ID] = def
		if def.Version.Int() > SubgraphVersion {
			log.Debug(log.CatSerialise, "newer subgraph version", "subgraph", def.ID, "version", def.Version)
		}

		sg := newSubgraph(g, def.ID, def.Name)
		if v := def.Version.Int(); v > 0 {
			sg.Version = v
		}
		sg.InputNode.Bounding = def.InputNode.Bounding
		sg.OutputNode.Bounding = def.OutputNode.Bounding
		sg.InputNode.Slots = importSlots(def.Inputs, sg.InputNode)
		sg.OutputNode.Slots = importSlots(def.Outputs, sg.OutputNode)
		sg.Widgets = append([]ExposedWidget{}, def.Widgets...)
		if def.Extra != nil {
			sg.Extra = def.Extra
		}

		reg.RemoveSubgraph(def.ID)
		if err := reg.AddSubgraph(sg); err != nil {
			return nil, err
		}
		shells = append(shells, sg)
	}

	built := make(map[string]bool, len(shells))
	var build func(sg *Subgraph) error
	build = func(sg *Subgraph) error {
		if built[sg.ID] {
			return nil
		}
		built[sg.ID] = true
		def := byID[sg.ID]
		for _, n := range def.Nodes {
			if _, ok := byID[n.Type]; ok {
				dep, _ := reg.Subgraph(n.Type)
				if err := build(dep); err != nil {
					return err
				}
			}
		}
		if err := sg.configure(def.Nodes, def.Links, def.Groups); err != nil {
			return fmt.Errorf("failed to build subgraph %s: %w", sg.ID, err)
		}
		return nil
	}
	for _, sg := range shells {
		if err := build(sg); err != nil {
			return nil, err
		}
	}
	return shells, nil
}

func importSlots(slots []ExportedSlot, parent *BoundaryIONode) []*BoundarySlot {
	out := make([]*BoundarySlot, 0, len(slots))
	for _, s := range slots {
		id := s.ID
		if id == "" {
			id = uuid.NewString()
		}
		out = append(out, &BoundarySlot{ID: id, Name: s.Name, Label: s.Label, Type: s.Type, parent: parent})
	}
	return out
}

func (g *Graph) configure(nodes []SerialisedNode, links LinkList, groups []SerialisedGroup) error {
	for _, sn := range nodes {
		if err := g.Add(g.decodeNode(sn)); err != nil {
			return fmt.Errorf("failed to add node %d: %w", sn.ID, err)
		}
	}
	for _, l := range links {
		g.restoreLink(l)
	}
	for _, gr := range groups {
		g.Groups = append(g.Groups, &Group{
			ID:       gr.ID,
			Title:    gr.Title,
			Bounding: gr.Bounding,
			Color:    gr.Color,
			FontSize: gr.FontSize,
		})
	}
	return nil
}

func (g *Graph) decodeNode(sn SerialisedNode) Node {
	reg := g.Registry()
	if sg, err := reg.Subgraph(sn.Type); err == nil {
		n := NewSubgraphNode(sg, sn.ID)
		applyCommon(&n.NodeBase, sn)
		for i, in := range sn.Inputs {
			if i < len(n.Inputs) && n.Inputs[i].Name == in.Name && in.Label != "" {
				n.Inputs[i].Label = in.Label
			}
		}
		for i, v := range sn.WidgetsValues {
			if i < len(n.Widgets) {
				n.Widgets[i].Value = v
			}
		}
		return n
	}

	n, registered := reg.CreateNode(sn.Type)
	if !registered {
		n = NewLeafNode(sn.Type)
		log.Debug(log.CatSerialise, "unregistered node type", "type", sn.Type, "node", sn.ID)
	}
	applyCommon(&n.NodeBase, sn)

	if len(sn.Inputs) > 0 || !registered {
		n.Inputs = make([]*InputSlot, 0, len(sn.Inputs))
		for _, in := range sn.Inputs {
			n.Inputs = append(n.Inputs, &InputSlot{Name: in.Name, Label: in.Label, Type: in.Type, Widget: in.Widget})
		}
	}
	if len(sn.Outputs) > 0 || !registered {
		n.Outputs = make([]*OutputSlot, 0, len(sn.Outputs))
		for _, out := range sn.Outputs {
			n.Outputs = append(n.Outputs, &OutputSlot{Name: out.Name, Label: out.Label, Type: out.Type})
		}
	}

	if !registered {
		// Widget names are only known when every value has a bound input.
		var bound []*InputSlot
		for _, in := range n.Inputs {
			if in.Widget != nil {
				bound = append(bound, in)
			}
		}
		if len(bound) > 0 && len(bound) == len(sn.WidgetsValues) {
			for i, in := range bound {
				n.AddWidget(in.Widget.Name, string(in.Type), sn.WidgetsValues[i])
			}
		} else {
			n.rawWidgetValues = sn.WidgetsValues
		}
		return n
	}
	for i, v := range sn.WidgetsValues {
		if i < len(n.Widgets) {
			n.Widgets[i].Value = v
		}
	}
	return n
}

func applyCommon(b *NodeBase, sn SerialisedNode) {
	b.ID = sn.ID
	if sn.Title != "" {
		b.Title = sn.Title
	}
	b.Pos = sn.Pos
	b.Size = sn.Size
	b.Order = sn.Order
	b.Mode = sn.Mode
	if sn.Flags != nil {
		b.Flags = sn.Flags
	}
	if sn.Properties != nil {
		b.Properties = sn.Properties
	}
}

// restoreLink re-creates a persisted link. Links whose endpoints do not
// exist are dropped.
func (g *Graph) restoreLink(sl SerialisedLink) {
	var (
		originSlot *BoundarySlot
		output     *OutputSlot
		targetSlot *BoundarySlot
		input      *InputSlot
	)

	if sl.OriginID == InputNodeID && g.subgraph != nil {
		originSlot = g.subgraph.InputNode.slot(sl.OriginSlot)
	} else if n, ok := g.byID[sl.OriginID]; ok {
		outs := n.Base().Outputs
		if sl.OriginSlot >= 0 && sl.OriginSlot < len(outs) {
			output = outs[sl.OriginSlot]
		}
	}
	if sl.TargetID == OutputNodeID && g.subgraph != nil {
		targetSlot = g.subgraph.OutputNode.slot(sl.TargetSlot)
	} else if n, ok := g.byID[sl.TargetID]; ok {
		ins := n.Base().Inputs
		if sl.TargetSlot >= 0 && sl.TargetSlot < len(ins) {
			input = ins[sl.TargetSlot]
		}
	}

	if (originSlot == nil && output == nil) || (targetSlot == nil && input == nil) {
		log.Warn(log.CatSerialise, "dropping dangling link",
			"link", sl.ID, "origin", sl.OriginID, "target", sl.TargetID)
		return
	}

	g.links[sl.ID] = &Link{
		ID:         sl.ID,
		OriginID:   sl.OriginID,
		OriginSlot: sl.OriginSlot,
		TargetID:   sl.TargetID,
		TargetSlot: sl.TargetSlot,
		Type:       sl.Type,
	}
	if originSlot != nil {
		originSlot.LinkIDs = append(originSlot.LinkIDs, sl.ID)
	} else {
		output.Links = append(output.Links, sl.ID)
	}
	if targetSlot != nil {
		targetSlot.LinkIDs = append(targetSlot.LinkIDs, sl.ID)
	} else {
		input.Link = sl.ID
	}
	if sl.ID > g.lastLinkID {
		g.lastLinkID = sl.ID
	}
}
