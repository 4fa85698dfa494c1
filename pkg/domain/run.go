package domain

// RunPayload is the trigger input of a run.
type RunPayload struct {
	// ID is the id of the start node.
	ID      string `json:"id"`
	Payload any    `json:"payload,omitempty"`
	// RuntimeVariables override board variables by id. They apply to
	// runtime-configured variables, and to secret ones when FilterSecrets is false.
	RuntimeVariables map[string]any `json:"runtime_variables,omitempty"`
	FilterSecrets    *bool          `json:"filter_secrets,omitempty"`
}

// FiltersSecrets reports whether secret variables must keep their board values.
// It defaults to true.
func (p *RunPayload) FiltersSecrets() bool {
	return p == nil || p.FilterSecrets == nil || *p.FilterSecrets
}

// TriggerEvent describes the external event that started a run.
// Its variables override exposed board variables.
type TriggerEvent struct {
	ID        string         `json:"id"`
	BoardID   string         `json:"board_id"`
	NodeID    string         `json:"node_id"`
	Version   *Version       `json:"board_version,omitempty"`
	Variables map[string]any `json:"variables,omitempty"`
}

// Profile selects user preferences such as model providers. Opaque to the engine.
type Profile struct {
	ID       string         `json:"id"`
	Name     string         `json:"name"`
	Settings map[string]any `json:"settings,omitempty"`
}

// Credentials scope storage and service access for a run. Opaque to the engine.
type Credentials struct {
	Provider string            `json:"provider"`
	Values   map[string]string `json:"values,omitempty"`
}

// RunUpdateMethod tells listeners whether nodes started or stopped running.
type RunUpdateMethod string

const (
	RunUpdateAdd    RunUpdateMethod = "add"
	RunUpdateRemove RunUpdateMethod = "remove"
)

// RunUpdateEvent is streamed when nodes change execution state.
type RunUpdateEvent struct {
	RunID   string          `json:"run_id"`
	NodeIDs []string        `json:"node_ids"`
	Method  RunUpdateMethod `json:"method"`
}

// RunUpdateTopic is the stream event type for run state updates.
func RunUpdateTopic(runID string) string {
	return "run:" + runID
}
