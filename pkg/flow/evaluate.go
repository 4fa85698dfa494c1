package flow

// Evaluate resolves the effective value of a pin.
//
// At each pin of the chain a per-call override wins, then the stored value,
// then the first live dependency is followed, then the default applies.
// Reaching a pin with none of these fails with ErrNoValue; revisiting a pin
// fails with ErrCircularDependency. Overrides never touch stored state, and
// the visited set lives only for this call.
func Evaluate(pin *Pin, overrides map[string]any) (any, error) {
	visited := make(map[string]struct{})
	current := pin

	for {
		if _, seen := visited[current.id]; seen {
			return nil, &EvalError{Kind: ErrCircularDependency, PinID: pin.id, PinName: pin.name, AtPinID: current.id}
		}
		visited[current.id] = struct{}{}

		if v, ok := overrides[current.id]; ok {
			return v, nil
		}
		if v, ok := current.Value(); ok {
			return v, nil
		}
		if next, ok := current.firstDependency(); ok {
			current = next
			continue
		}
		if v, ok := current.Default(); ok {
			return v, nil
		}
		return nil, &EvalError{Kind: ErrNoValue, PinID: pin.id, PinName: pin.name, AtPinID: current.id}
	}
}
