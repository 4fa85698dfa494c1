package domain

import (
	"encoding/json"
	"fmt"
	"slices"

	"github.com/google/uuid"
)

// Variable is a named, typed value scoped to a board.
type Variable struct {
	ID                string          `json:"id"`
	Name              string          `json:"name"`
	Category          string          `json:"category,omitempty"`
	Description       string          `json:"description,omitempty"`
	DefaultValue      json.RawMessage `json:"default_value,omitempty"`
	DataType          VariableType    `json:"data_type"`
	ValueType         ValueType       `json:"value_type"`
	Exposed           bool            `json:"exposed"`
	Secret            bool            `json:"secret"`
	Editable          bool            `json:"editable"`
	RuntimeConfigured bool            `json:"runtime_configured,omitempty"`
	Schema            string          `json:"schema,omitempty"`
}

// NewVariable creates an editable variable with a fresh id.
func NewVariable(name string, dataType VariableType, valueType ValueType) *Variable {
	return &Variable{
		ID:        uuid.NewString(),
		Name:      name,
		DataType:  dataType,
		ValueType: valueType,
		Editable:  true,
	}
}

// WithDefault stores v as the JSON default value. It panics if v cannot be marshalled.
func (v *Variable) WithDefault(value any) *Variable {
	data, err := json.Marshal(value)
	if err != nil {
		panic(fmt.Sprintf("variable %s: invalid default value: %v", v.Name, err))
	}
	v.DefaultValue = data
	return v
}

// Default decodes the JSON default value, returning nil when none is set.
func (v *Variable) Default() (any, error) {
	if len(v.DefaultValue) == 0 {
		return nil, nil
	}
	var out any
	if err := json.Unmarshal(v.DefaultValue, &out); err != nil {
		return nil, fmt.Errorf("failed to decode default of variable %s: %w", v.ID, err)
	}
	return out, nil
}

// Copy returns a deep copy of the variable.
func (v *Variable) Copy() *Variable {
	cp := *v
	cp.DefaultValue = slices.Clone(v.DefaultValue)
	return &cp
}
