// Package dash is a small reactive widget framework. An App is a layout of
// components plus callbacks that recompute one component property whenever
// an input property changes. Apps are registered once by name so host pages
// can mount them.
package dash

import "encoding/json"

// Component is a node of an app layout. Props holds the current property
// values keyed by property name.
type Component struct {
	Type     string         `json:"type"`
	ID       string         `json:"id,omitempty"`
	Props    map[string]any `json:"props"`
	Children []Component    `json:"children,omitempty"`
}

func Div(children ...Component) Component {
	return Component{Type: "Div", Props: map[string]any{}, Children: children}
}

func Graph(id string, figure any) Component {
	return Component{Type: "Graph", ID: id, Props: map[string]any{"figure": figure}}
}

func HiddenInput(id, value string) Component {
	return Component{Type: "Input", ID: id, Props: map[string]any{"type": "hidden", "value": value}}
}

func Store(id string, data any) Component {
	return Component{Type: "Store", ID: id, Props: map[string]any{"data": data}}
}

// Find returns the component with the given id, searching depth first.
func (c Component) Find(id string) (Component, bool) {
	if c.ID == id && id != "" {
		return c, true
	}
	for _, child := range c.Children {
		if found, ok := child.Find(id); ok {
			return found, true
		}
	}
	return Component{}, false
}

// withProps returns a copy of c in which every component named in initial
// has those props replaced. c itself is not modified.
func (c Component) withProps(initial InitialArguments) Component {
	out := Component{Type: c.Type, ID: c.ID, Props: make(map[string]any, len(c.Props))}
	for k, v := range c.Props {
		out.Props[k] = v
	}
	if c.ID != "" {
		for k, v := range initial[c.ID] {
			out.Props[k] = v
		}
	}
	if len(c.Children) > 0 {
		out.Children = make([]Component, len(c.Children))
		for i, child := range c.Children {
			out.Children[i] = child.withProps(initial)
		}
	}
	return out
}

// InitialArguments overrides layout props at mount time:
// {"<component id>": {"<prop>": value}}.
type InitialArguments map[string]map[string]any

// currentValue returns the JSON encoding of a layout prop.
func (c Component) currentValue(id, prop string) (json.RawMessage, bool) {
	found, ok := c.Find(id)
	if !ok {
		return nil, false
	}
	v, ok := found.Props[prop]
	if !ok {
		return nil, false
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, false
	}
	return b, true
}
