package dispatch

import "fmt"

// Level is the severity of a diagnostic log signal delivered through
// reserved id 0 (spec §3, §7).
type Level byte

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarning
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarning:
		return "warning"
	default:
		return "error"
	}
}

// LogSignal is the payload posted to id 0: a severity plus message,
// exactly the shape spec §7 describes as "the only log sink observable
// by the driver".
type LogSignal struct {
	Severity Level
	Message  string
}

// DiagnosticID is the reserved slot id carrying log signals (spec §3).
const DiagnosticID = 0

// Logf posts a formatted diagnostic at the given severity to id 0. Named
// per-level helpers below mirror original_source's
// ChangedValues::{debug,info,warning,error} convenience methods
// (SUPPLEMENTED FEATURES in SPEC_FULL.md).
func (d *Dispatcher) Logf(level Level, format string, args ...any) {
	d.Post(DiagnosticID, LogSignal{Severity: level, Message: fmt.Sprintf(format, args...)})
}

func (d *Dispatcher) Debugf(format string, args ...any)   { d.Logf(LevelDebug, format, args...) }
func (d *Dispatcher) Infof(format string, args ...any)    { d.Logf(LevelInfo, format, args...) }
func (d *Dispatcher) Warningf(format string, args ...any) { d.Logf(LevelWarning, format, args...) }
func (d *Dispatcher) Errorf(format string, args ...any)   { d.Logf(LevelError, format, args...) }
