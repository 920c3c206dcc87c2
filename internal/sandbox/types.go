package sandbox

import (
	"fmt"
	"time"

	"github.com/nfrund/sandscript/internal/format"
)

// TrustLevel controls which host capabilities a sandboxed script may reach.
// Levels are ordered strictly by permissiveness.
type TrustLevel int

const (
	TrustMinimal TrustLevel = iota
	TrustStandard
	TrustElevated
	TrustMaximum
)

// String returns the canonical name for the trust level.
func (l TrustLevel) String() string {
	switch l {
	case TrustMinimal:
		return "Minimal"
	case TrustStandard:
		return "Standard"
	case TrustElevated:
		return "Elevated"
	case TrustMaximum:
		return "Maximum"
	default:
		return fmt.Sprintf("TrustLevel(%d)", int(l))
	}
}

// ParseTrustLevel converts a wire-format trust level name into a TrustLevel.
func ParseTrustLevel(name string) (TrustLevel, error) {
	switch name {
	case "Minimal":
		return TrustMinimal, nil
	case "Standard", "":
		return TrustStandard, nil
	case "Elevated":
		return TrustElevated, nil
	case "Maximum":
		return TrustMaximum, nil
	default:
		return TrustStandard, fmt.Errorf("unknown trust level %q", name)
	}
}

// State tracks whether a pooled interpreter is checked out.
type State string

const (
	StateIdle   State = "idle"
	StateActive State = "active"
)

// ErrorKind categorizes sandbox errors.
type ErrorKind string

const (
	KindCreation    ErrorKind = "creation"
	KindCompilation ErrorKind = "compilation"
	KindExecution   ErrorKind = "execution"
	KindTimeout     ErrorKind = "timeout"
	KindMemoryLimit ErrorKind = "memory_limit"
	KindValidation  ErrorKind = "validation"
	KindPoolTimeout ErrorKind = "pool_timeout"
	KindPoolClosed  ErrorKind = "pool_closed"
)

// Error is the sandbox error type carrying a kind for classification and the
// interpreter it relates to, when one exists.
type Error struct {
	Kind          ErrorKind
	InterpreterID string
	Message       string
	Cause         error
	Timestamp     time.Time
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a sandbox Error with the given classification.
func NewError(kind ErrorKind, interpreterID, message string, cause error) *Error {
	return &Error{
		Kind:          kind,
		InterpreterID: interpreterID,
		Message:       message,
		Cause:         cause,
		Timestamp:     time.Now(),
	}
}

// IsKind reports whether err is a sandbox Error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	e, ok := err.(*Error)
	return ok && e.Kind == kind
}

// Metrics tracks performance data for a single execution.
type Metrics struct {
	CompilationTime  time.Duration
	ExecutionTime    time.Duration
	CommandsExecuted int64
	MemoryUsedBytes  int64
	Success          bool
	ErrorKind        ErrorKind
}

// Request contains everything needed to run one script.
type Request struct {
	Script               string
	Variables            map[string]interface{}
	SessionID            string
	TrustLevel           TrustLevel
	Timeout              time.Duration
	OutputFormat         format.Format
	ImportedPackages     []string
	WorkingDirectory     string
	EnvironmentVariables map[string]string
}

// Result is the structured outcome of a run. Every run, success or failure,
// produces one; script failures never escape as process-level errors.
type Result struct {
	ExecutionID  string
	Success      bool
	Result       string
	ErrorMessage string
	StartTime    time.Time
	EndTime      time.Time
	ExitCode     int
	Metrics      Metrics
	Formatted    *format.Output
}
