package domain

import (
	"encoding/json"
	"fmt"
	"slices"
)

// Pin is the stored definition of a node input or output.
// Edges are kept as pin ids on both ends: DependsOn lists upstream pins and
// ConnectedTo lists downstream pins. Order is registration order.
type Pin struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	FriendlyName string          `json:"friendly_name"`
	Description  string          `json:"description"`
	PinType      PinType         `json:"pin_type"`
	DataType     VariableType    `json:"data_type"`
	ValueType    ValueType       `json:"value_type"`
	Schema       string          `json:"schema,omitempty"`
	Index        uint16          `json:"index"`
	DefaultValue json.RawMessage `json:"default_value,omitempty"`
	DependsOn    []string        `json:"depends_on"`
	ConnectedTo  []string        `json:"connected_to"`
}

// IsExec reports whether the pin carries control flow.
func (p *Pin) IsExec() bool { return p.DataType == VariableTypeExecution }

// IsInput reports whether the pin is an input.
func (p *Pin) IsInput() bool { return p.PinType == PinTypeInput }

// IsOutput reports whether the pin is an output.
func (p *Pin) IsOutput() bool { return p.PinType == PinTypeOutput }

// WithDefault stores v as the JSON default value.
// It panics if v cannot be marshalled; defaults are declared statically by node templates.
func (p *Pin) WithDefault(v any) *Pin {
	data, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("pin %s: invalid default value: %v", p.Name, err))
	}
	p.DefaultValue = data
	return p
}

// WithValueType sets the container shape.
func (p *Pin) WithValueType(vt ValueType) *Pin {
	p.ValueType = vt
	return p
}

// WithSchema attaches a JSON schema describing accepted values.
func (p *Pin) WithSchema(schema string) *Pin {
	p.Schema = schema
	return p
}

// Default decodes the JSON default value. ok is false when none is set.
func (p *Pin) Default() (v any, ok bool, err error) {
	if len(p.DefaultValue) == 0 {
		return nil, false, nil
	}
	if err := json.Unmarshal(p.DefaultValue, &v); err != nil {
		return nil, false, fmt.Errorf("failed to decode default of pin %s: %w", p.ID, err)
	}
	return v, true, nil
}

// Copy returns a deep copy of the pin.
func (p *Pin) Copy() *Pin {
	cp := *p
	cp.DefaultValue = slices.Clone(p.DefaultValue)
	cp.DependsOn = slices.Clone(p.DependsOn)
	cp.ConnectedTo = slices.Clone(p.ConnectedTo)
	return &cp
}

func (p *Pin) addDependsOn(id string) {
	if !slices.Contains(p.DependsOn, id) {
		p.DependsOn = append(p.DependsOn, id)
	}
}

func (p *Pin) addConnectedTo(id string) {
	if !slices.Contains(p.ConnectedTo, id) {
		p.ConnectedTo = append(p.ConnectedTo, id)
	}
}

func removeID(ids []string, id string) []string {
	return slices.DeleteFunc(ids, func(s string) bool { return s == id })
}

// Compatible reports whether an edge from out to in is type-correct.
// Generic matches any data type, never an execution pin.
func Compatible(out, in *Pin) bool {
	if out.IsExec() || in.IsExec() {
		return out.IsExec() && in.IsExec()
	}
	if out.DataType == VariableTypeGeneric || in.DataType == VariableTypeGeneric {
		return true
	}
	if out.DataType != in.DataType {
		return false
	}
	return out.ValueType == in.ValueType || out.ValueType == "" || in.ValueType == ""
}
