package flow

import (
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/TM9657/flow-like-sub010/pkg/domain"
)

// RunVariable is a board variable with its value for the current run.
type RunVariable struct {
	def     *domain.Variable
	initial any
	added   bool

	mu    sync.RWMutex
	value any
}

// Definition returns the variable definition.
func (v *RunVariable) Definition() *domain.Variable { return v.def }

// Value returns the current value.
func (v *RunVariable) Value() any {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.value
}

// Set replaces the current value.
func (v *RunVariable) Set(value any) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.value = value
}

type variableSet struct {
	mu   sync.RWMutex
	byID map[string]*RunVariable
}

// resolveVariables picks each variable's starting value. Runtime variables win
// for runtime-configured variables (and secret ones when secrets are not
// filtered), trigger event variables win for exposed variables, and the board
// default applies otherwise.
func resolveVariables(board *domain.Board, payload *domain.RunPayload, event *domain.TriggerEvent) (*variableSet, error) {
	set := &variableSet{byID: make(map[string]*RunVariable, len(board.Variables))}
	filterSecrets := payload.FiltersSecrets()

	var runtime map[string]any
	if payload != nil {
		runtime = payload.RuntimeVariables
	}
	var fromEvent map[string]any
	if event != nil {
		fromEvent = event.Variables
	}

	for _, id := range slices.Sorted(maps.Keys(board.Variables)) {
		def := board.Variables[id].Copy()
		value, err := def.Default()
		if err != nil {
			return nil, err
		}

		if v, ok := runtime[id]; ok && (def.RuntimeConfigured || (def.Secret && !filterSecrets)) {
			value = v
		} else if v, ok := fromEvent[id]; ok && def.Exposed {
			value = v
		}

		set.byID[id] = &RunVariable{def: def, initial: value, value: value}
	}
	return set, nil
}

func (s *variableSet) get(id string) (*RunVariable, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if v, ok := s.byID[id]; ok {
		return v, nil
	}
	return nil, fmt.Errorf("%w: %s", domain.ErrVariableNotFound, id)
}

func (s *variableSet) byName(name string) (*RunVariable, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, id := range slices.Sorted(maps.Keys(s.byID)) {
		if v := s.byID[id]; v.def.Name == name {
			return v, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", domain.ErrVariableNotFound, name)
}

func (s *variableSet) put(def *domain.Variable, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.byID[def.ID]; ok && !prev.added {
		s.byID[def.ID] = &RunVariable{def: def, initial: prev.initial, value: value}
		return
	}
	s.byID[def.ID] = &RunVariable{def: def, initial: value, value: value, added: true}
}

// reset restores every board variable to the value it started the run with
// and forgets variables added while running.
func (s *variableSet) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, v := range s.byID {
		if v.added {
			delete(s.byID, id)
			continue
		}
		v.Set(v.initial)
	}
}

func (s *variableSet) snapshot() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]any, len(s.byID))
	for id, v := range s.byID {
		out[id] = v.Value()
	}
	return out
}
