package dash

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUnknownApp    = errors.New("unknown app")
	ErrUnknownOutput = errors.New("unknown callback output")
	ErrBadRequest    = errors.New("bad update request")
	// ErrForbidden is wrapped by callbacks that refuse the caller.
	ErrForbidden = errors.New("forbidden")
)

// Dependency names one property of one component.
type Dependency struct {
	ID       string `json:"id"`
	Property string `json:"property"`
}

func (d Dependency) String() string { return d.ID + "." + d.Property }

func Input(id, property string) Dependency  { return Dependency{ID: id, Property: property} }
func State(id, property string) Dependency  { return Dependency{ID: id, Property: property} }
func Output(id, property string) Dependency { return Dependency{ID: id, Property: property} }

// Args carries the values a callback was triggered with.
type Args struct {
	values map[string]json.RawMessage
}

// Get decodes the value of id.property into v.
func (a Args) Get(id, property string, v any) error {
	raw, ok := a.values[Dependency{ID: id, Property: property}.String()]
	if !ok {
		return fmt.Errorf("%w: no value for %s.%s", ErrBadRequest, id, property)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: decode %s.%s: %v", ErrBadRequest, id, property, err)
	}
	return nil
}

type CallbackFunc func(ctx context.Context, args Args) (any, error)

type Callback struct {
	Output Dependency
	Inputs []Dependency
	State  []Dependency
	Func   CallbackFunc
}

type App struct {
	Name      string
	Layout    Component
	callbacks map[string]Callback
}

func NewApp(name string, layout Component) *App {
	return &App{Name: name, Layout: layout, callbacks: map[string]Callback{}}
}

// Callback binds fn to output. Every dependency must name a component in
// the layout, so the layout has to be set first.
func (a *App) Callback(output Dependency, inputs, state []Dependency, fn CallbackFunc) {
	for _, d := range append(append([]Dependency{output}, inputs...), state...) {
		if _, ok := a.Layout.Find(d.ID); !ok {
			panic(fmt.Sprintf("dash: app %s: callback references unknown component %q", a.Name, d.ID))
		}
	}
	if _, dup := a.callbacks[output.String()]; dup {
		panic(fmt.Sprintf("dash: app %s: duplicate callback output %s", a.Name, output))
	}
	a.callbacks[output.String()] = Callback{Output: output, Inputs: inputs, State: state, Func: fn}
}

// InitialLayout returns the layout with initial applied.
func (a *App) InitialLayout(initial InitialArguments) Component {
	return a.Layout.withProps(initial)
}

// Value is one dependency and its current value on the client.
type Value struct {
	ID       string          `json:"id"`
	Property string          `json:"property"`
	Value    json.RawMessage `json:"value"`
}

type UpdateRequest struct {
	Output string  `json:"output"`
	Inputs []Value `json:"inputs"`
	State  []Value `json:"state"`
}

// UpdateResponse maps component id to the updated props.
type UpdateResponse struct {
	Response map[string]map[string]any `json:"response"`
}

// Dispatch runs the callback bound to req.Output. Inputs and state the
// client did not send fall back to the layout's values.
func (a *App) Dispatch(ctx context.Context, req UpdateRequest) (UpdateResponse, error) {
	cb, ok := a.callbacks[strings.TrimSpace(req.Output)]
	if !ok {
		return UpdateResponse{}, fmt.Errorf("%w: %s", ErrUnknownOutput, req.Output)
	}

	sent := make(map[string]json.RawMessage, len(req.Inputs)+len(req.State))
	for _, v := range append(append([]Value{}, req.Inputs...), req.State...) {
		if len(v.Value) > 0 {
			sent[Dependency{ID: v.ID, Property: v.Property}.String()] = v.Value
		}
	}

	args := Args{values: make(map[string]json.RawMessage, len(cb.Inputs)+len(cb.State))}
	for _, d := range append(append([]Dependency{}, cb.Inputs...), cb.State...) {
		if raw, ok := sent[d.String()]; ok {
			args.values[d.String()] = raw
			continue
		}
		if raw, ok := a.Layout.currentValue(d.ID, d.Property); ok {
			args.values[d.String()] = raw
		}
	}

	out, err := cb.Func(ctx, args)
	if err != nil {
		return UpdateResponse{}, err
	}
	return UpdateResponse{Response: map[string]map[string]any{
		cb.Output.ID: {cb.Output.Property: out},
	}}, nil
}
