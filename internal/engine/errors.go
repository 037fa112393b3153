package engine

import "fmt"

// ErrorKind classifies an engine-level failure into spec.md §7's six
// categories, so callers (the MCP adapter, the CLI) can decide whether a
// failure is retry-safe without parsing the message.
type ErrorKind string

const (
	KindValidation           ErrorKind = "validation"
	KindScope                ErrorKind = "scope"
	KindNotReady             ErrorKind = "not_ready"
	KindIO                   ErrorKind = "io"
	KindInternalConsistency  ErrorKind = "internal_consistency"
	KindEnvironment          ErrorKind = "environment"
)

// EngineError is the single error type every engine operation returns on
// failure. Error() produces the human-readable message the JSON-RPC
// envelope's isError text carries; Kind lets callers branch (e.g. the
// not-ready kind is retry-safe, scope is not).
type EngineError struct {
	Kind       ErrorKind
	Op         string
	Param      string
	Underlying error
	msg        string
}

func (e *EngineError) Error() string {
	if e.msg != "" {
		return e.msg
	}
	if e.Underlying != nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Underlying)
	}
	return e.Op
}

func (e *EngineError) Unwrap() error {
	return e.Underlying
}

// validationf builds a Validation-kind error naming the offending param.
func validationf(param, format string, args ...any) *EngineError {
	return &EngineError{Kind: KindValidation, Param: param, msg: fmt.Sprintf(format, args...)}
}

func scopef(root, format string, args ...any) *EngineError {
	msg := fmt.Sprintf(format, args...) + fmt.Sprintf(" (server root: %s)", root)
	return &EngineError{Kind: KindScope, msg: msg}
}

// notReady reports the literal phrase spec.md §4.8/§7 requires so tools
// can recognize a retry-safe failure: "being built in the background".
func notReady(what string) *EngineError {
	return &EngineError{Kind: KindNotReady, msg: fmt.Sprintf("%s is being built in the background, retry shortly", what)}
}

func ioErrorf(op string, err error) *EngineError {
	return &EngineError{Kind: KindIO, Op: op, Underlying: err, msg: fmt.Sprintf("%s: %v", op, err)}
}

func environmentf(format string, args ...any) *EngineError {
	return &EngineError{Kind: KindEnvironment, msg: fmt.Sprintf(format, args...)}
}
