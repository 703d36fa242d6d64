package schema

// Workflow is the JSON-serializable aggregate the editor operates on:
// the nodes, connections, variables and triggers that are validated,
// executed and persisted as one consistent unit.
type Workflow struct {
	ID          string       `json:"id,omitempty"`
	Name        string       `json:"name,omitempty"`
	Nodes       []Node       `json:"nodes"`
	Connections []Connection `json:"connections"`
	Variables   []Variable   `json:"variables,omitempty"`
	Triggers    []Trigger    `json:"triggers,omitempty"`
}

// NodeKind enumerates the kinds of nodes on the canvas.
type NodeKind string

const (
	NodeStart    NodeKind = "start"
	NodeEnd      NodeKind = "end"
	NodeTask     NodeKind = "task"
	NodeDecision NodeKind = "decision"
	NodeParallel NodeKind = "parallel"
	NodeMerge    NodeKind = "merge"
	NodeDelay    NodeKind = "delay"
	NodeWebhook  NodeKind = "webhook"
	NodeEmail    NodeKind = "email"
	NodeApproval NodeKind = "approval"
	NodeCustom   NodeKind = "custom"
)

// ValidNodeKinds is the set of recognized node kinds.
var ValidNodeKinds = map[NodeKind]bool{
	NodeStart:    true,
	NodeEnd:      true,
	NodeTask:     true,
	NodeDecision: true,
	NodeParallel: true,
	NodeMerge:    true,
	NodeDelay:    true,
	NodeWebhook:  true,
	NodeEmail:    true,
	NodeApproval: true,
	NodeCustom:   true,
}

// Position is a point in graph-space coordinates.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Node is a unit of work on the canvas.
// Run status is deliberately not part of the node: it lives in the
// per-run status map owned by the execution engine and is never persisted.
type Node struct {
	ID       string      `json:"id"`
	Kind     NodeKind    `json:"kind"`
	Label    string      `json:"label,omitempty"`
	Position Position    `json:"position"`
	Width    float64     `json:"width,omitempty"`
	Height   float64     `json:"height,omitempty"`
	Config   *NodeConfig `json:"config,omitempty"`
}

// NodeConfig is the kind-specific configuration bag.
type NodeConfig struct {
	Timeout         string         `json:"timeout,omitempty"`          // per-node execution timeout (e.g. "30s")
	Retries         int            `json:"retries,omitempty"`          // data only: not interpreted by the engine
	Rules           []string       `json:"rules,omitempty"`            // decision rules (CEL expressions)
	Assignees       []string       `json:"assignees,omitempty"`        // approval assignee list
	RequestTemplate map[string]any `json:"request_template,omitempty"` // webhook request template
	Expression      string         `json:"expression,omitempty"`       // custom node expression (expr)
	Extract         string         `json:"extract,omitempty"`          // webhook payload extraction (jq)
	Delay           string         `json:"delay,omitempty"`            // delay node duration (e.g. "500ms")
}

// Handle names an attachment point on a node, disambiguating multiple
// connections from the same node.
type Handle string

const (
	HandleTop    Handle = "top"
	HandleBottom Handle = "bottom"
	HandleLeft   Handle = "left"
	HandleRight  Handle = "right"
)

// Connection is a directed edge between two nodes.
type Connection struct {
	ID           string `json:"id"`
	Source       string `json:"source"`
	Target       string `json:"target"`
	SourceHandle Handle `json:"sourceHandle,omitempty"`
	TargetHandle Handle `json:"targetHandle,omitempty"`
	Label        string `json:"label,omitempty"` // decision condition (CEL), free-form otherwise
	Animated     bool   `json:"animated,omitempty"`
}

// VariableType enumerates the declared types of workflow variables.
type VariableType string

const (
	VarString  VariableType = "string"
	VarNumber  VariableType = "number"
	VarBoolean VariableType = "boolean"
	VarObject  VariableType = "object"
	VarArray   VariableType = "array"
)

// Variable is a named value available to node configuration and
// decision conditions. Scope is empty for global variables, otherwise
// the ID of the owning node.
type Variable struct {
	Name  string       `json:"name"`
	Type  VariableType `json:"type"`
	Scope string       `json:"scope,omitempty"`
	Value any          `json:"value,omitempty"`
}

// TriggerKind enumerates workflow entry conditions.
type TriggerKind string

const (
	TriggerManual   TriggerKind = "manual"
	TriggerSchedule TriggerKind = "schedule"
	TriggerWebhook  TriggerKind = "webhook"
	TriggerEvent    TriggerKind = "event"
	TriggerFile     TriggerKind = "file"
	TriggerEmail    TriggerKind = "email"
)

// Trigger is an entry condition descriptor. Schedule triggers carry a
// cron spec in Config["cron"]. Triggers are persisted with the workflow
// but not interpreted by the execution engine, which starts from an
// explicit node.
type Trigger struct {
	ID      string         `json:"id"`
	Kind    TriggerKind    `json:"kind"`
	Config  map[string]any `json:"config,omitempty"`
	Enabled bool           `json:"enabled"`
}

// NodeByID returns the node with the given ID, or nil.
func (w *Workflow) NodeByID(id string) *Node {
	for i := range w.Nodes {
		if w.Nodes[i].ID == id {
			return &w.Nodes[i]
		}
	}
	return nil
}

// ConnectionByID returns the connection with the given ID, or nil.
func (w *Workflow) ConnectionByID(id string) *Connection {
	for i := range w.Connections {
		if w.Connections[i].ID == id {
			return &w.Connections[i]
		}
	}
	return nil
}

// Outgoing returns the connections whose source is the given node, in
// declaration order.
func (w *Workflow) Outgoing(nodeID string) []Connection {
	var out []Connection
	for _, c := range w.Connections {
		if c.Source == nodeID {
			out = append(out, c)
		}
	}
	return out
}

// StartNode returns the single start node, or nil if there are zero or
// more than one.
func (w *Workflow) StartNode() *Node {
	var start *Node
	for i := range w.Nodes {
		if w.Nodes[i].Kind != NodeStart {
			continue
		}
		if start != nil {
			return nil
		}
		start = &w.Nodes[i]
	}
	return start
}

// GlobalVariables returns the workflow variables with global scope as a
// name → value map, for use as an expression environment.
func (w *Workflow) GlobalVariables() map[string]any {
	vars := make(map[string]any, len(w.Variables))
	for _, v := range w.Variables {
		if v.Scope == "" {
			vars[v.Name] = v.Value
		}
	}
	return vars
}

// Clone returns a deep copy. Mutation operations clone their input so
// callers can treat every returned snapshot as immutable.
func (w *Workflow) Clone() *Workflow {
	if w == nil {
		return nil
	}
	out := &Workflow{
		ID:          w.ID,
		Name:        w.Name,
		Nodes:       make([]Node, len(w.Nodes)),
		Connections: append([]Connection(nil), w.Connections...),
	}
	for i, n := range w.Nodes {
		out.Nodes[i] = n
		if n.Config != nil {
			cfg := *n.Config
			cfg.Rules = append([]string(nil), n.Config.Rules...)
			cfg.Assignees = append([]string(nil), n.Config.Assignees...)
			if n.Config.RequestTemplate != nil {
				cfg.RequestTemplate = make(map[string]any, len(n.Config.RequestTemplate))
				for k, v := range n.Config.RequestTemplate {
					cfg.RequestTemplate[k] = v
				}
			}
			out.Nodes[i].Config = &cfg
		}
	}
	if w.Variables != nil {
		out.Variables = append([]Variable(nil), w.Variables...)
	}
	if w.Triggers != nil {
		out.Triggers = make([]Trigger, len(w.Triggers))
		for i, t := range w.Triggers {
			out.Triggers[i] = t
			if t.Config != nil {
				cfg := make(map[string]any, len(t.Config))
				for k, v := range t.Config {
					cfg[k] = v
				}
				out.Triggers[i].Config = cfg
			}
		}
	}
	return out
}
