package domain

import (
	"fmt"
	"strings"
)

// VariableType is the declared data type of a pin or variable.
type VariableType string

const (
	VariableTypeExecution VariableType = "Execution"
	VariableTypeString    VariableType = "String"
	VariableTypeInteger   VariableType = "Integer"
	VariableTypeFloat     VariableType = "Float"
	VariableTypeBoolean   VariableType = "Boolean"
	VariableTypeDate      VariableType = "Date"
	VariableTypePathBuf   VariableType = "PathBuf"
	VariableTypeGeneric   VariableType = "Generic"
	VariableTypeStruct    VariableType = "Struct"
	VariableTypeByte      VariableType = "Byte"
)

// ValueType is the container shape of a pin or variable value.
type ValueType string

const (
	ValueTypeNormal  ValueType = "Normal"
	ValueTypeArray   ValueType = "Array"
	ValueTypeHashMap ValueType = "HashMap"
	ValueTypeHashSet ValueType = "HashSet"
)

// PinType is the direction of a pin.
type PinType string

const (
	PinTypeInput  PinType = "Input"
	PinTypeOutput PinType = "Output"
)

// LayerType describes how a layer groups its nodes.
type LayerType string

const (
	LayerTypeFunction  LayerType = "Function"
	LayerTypeMacro     LayerType = "Macro"
	LayerTypeCollapsed LayerType = "Collapsed"
)

// ExecutionStage is the release stage a board is published to.
type ExecutionStage string

const (
	StageDev     ExecutionStage = "Dev"
	StageInt     ExecutionStage = "Int"
	StageQA      ExecutionStage = "QA"
	StagePreProd ExecutionStage = "PreProd"
	StageProd    ExecutionStage = "Prod"
)

// ExecutionMode tells hosts where a board is allowed to run.
type ExecutionMode string

const (
	ExecutionModeHybrid ExecutionMode = "Hybrid"
	ExecutionModeRemote ExecutionMode = "Remote"
	ExecutionModeLocal  ExecutionMode = "Local"
)

// LogLevel orders log messages by severity. The zero value is Debug.
type LogLevel uint8

const (
	LogLevelDebug LogLevel = iota
	LogLevelInfo
	LogLevelWarn
	LogLevelError
	LogLevelFatal
)

var logLevelNames = [...]string{"Debug", "Info", "Warn", "Error", "Fatal"}

func (l LogLevel) String() string {
	if int(l) < len(logLevelNames) {
		return logLevelNames[l]
	}
	return fmt.Sprintf("LogLevel(%d)", l)
}

// ParseLogLevel accepts level names case-insensitively ("warn", "WARNING", "Info").
func ParseLogLevel(s string) (LogLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LogLevelDebug, nil
	case "info", "":
		return LogLevelInfo, nil
	case "warn", "warning":
		return LogLevelWarn, nil
	case "error":
		return LogLevelError, nil
	case "fatal":
		return LogLevelFatal, nil
	}
	return LogLevelInfo, fmt.Errorf("unknown log level %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (l LogLevel) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (l *LogLevel) UnmarshalText(text []byte) error {
	parsed, err := ParseLogLevel(string(text))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// NodeState is the execution state of a node within a run.
type NodeState uint8

const (
	NodeStateIdle NodeState = iota
	NodeStateRunning
	NodeStateSuccess
	NodeStateError
)

func (s NodeState) String() string {
	switch s {
	case NodeStateIdle:
		return "idle"
	case NodeStateRunning:
		return "running"
	case NodeStateSuccess:
		return "success"
	case NodeStateError:
		return "error"
	}
	return fmt.Sprintf("NodeState(%d)", s)
}

// RunStatus is the outcome of a run.
type RunStatus string

const (
	RunStatusRunning RunStatus = "Running"
	RunStatusSuccess RunStatus = "Success"
	RunStatusFailed  RunStatus = "Failed"
	RunStatusStopped RunStatus = "Stopped"
)
