package domain

import "time"

// LogMessage is a single log line produced while a node executes.
type LogMessage struct {
	Message string    `json:"message"`
	Level   LogLevel  `json:"log_level"`
	NodeID  string    `json:"node_id,omitempty"`
	Start   time.Time `json:"start"`
	End     time.Time `json:"end"`
}

// Trace collects the log output of one node invocation.
type Trace struct {
	ID     string       `json:"id"`
	NodeID string       `json:"node_id"`
	Logs   []LogMessage `json:"logs"`
	Start  time.Time    `json:"start"`
	End    time.Time    `json:"end"`
}

// MaxLevel returns the most severe level logged in the trace.
func (t *Trace) MaxLevel() LogLevel {
	var lvl LogLevel
	for _, l := range t.Logs {
		if l.Level > lvl {
			lvl = l.Level
		}
	}
	return lvl
}

// LogMeta summarizes a finished run for log storage and listing.
type LogMeta struct {
	AppID        string    `json:"app_id"`
	RunID        string    `json:"run_id"`
	BoardID      string    `json:"board_id"`
	Version      string    `json:"version"`
	Start        time.Time `json:"start"`
	End          time.Time `json:"end"`
	LogLevel     LogLevel  `json:"log_level"`
	Logs         int       `json:"logs"`
	Nodes        []string  `json:"nodes"`
	NodeID       string    `json:"node_id"`
	EventID      string    `json:"event_id,omitempty"`
	Payload      []byte    `json:"payload,omitempty"`
	Status       RunStatus `json:"status"`
	ErrorMessage string    `json:"error_message,omitempty"`
}

// Duration is the wall time of the run.
func (m *LogMeta) Duration() time.Duration {
	return m.End.Sub(m.Start)
}
