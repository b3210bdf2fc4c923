package provider

import "fmt"

// ExecErrorKind classifies execution failures
type ExecErrorKind int

const (
	SpawnFailed ExecErrorKind = iota + 1
	Aborted
	IOError
	JSONError
	ProcessError
	CLINotFound
	NotSupported
)

// ExecutorError is returned when running a CLI fails
type ExecutorError struct {
	Kind   ExecErrorKind
	Detail string
	Err    error
}

func (e *ExecutorError) Error() string {
	detail := e.Detail
	if detail == "" && e.Err != nil {
		detail = e.Err.Error()
	}
	switch e.Kind {
	case SpawnFailed:
		return fmt.Sprintf("Failed to spawn process: %s", detail)
	case Aborted:
		return "Process was aborted"
	case IOError:
		return fmt.Sprintf("IO error: %s", detail)
	case JSONError:
		if detail == "" {
			return "JSON parse error"
		}
		return fmt.Sprintf("JSON parse error: %s", detail)
	case ProcessError:
		return fmt.Sprintf("Process exited with error: %s", detail)
	case CLINotFound:
		return fmt.Sprintf("CLI not found: %s", detail)
	case NotSupported:
		return fmt.Sprintf("Feature not supported: %s", detail)
	}
	return detail
}

func (e *ExecutorError) Unwrap() error { return e.Err }

// Is matches any ExecutorError of the same kind
func (e *ExecutorError) Is(target error) bool {
	t, ok := target.(*ExecutorError)
	return ok && t.Kind == e.Kind
}

// Sentinels for errors.Is
var (
	ErrSpawnFailed  = &ExecutorError{Kind: SpawnFailed}
	ErrAborted      = &ExecutorError{Kind: Aborted}
	ErrIO           = &ExecutorError{Kind: IOError}
	ErrJSON         = &ExecutorError{Kind: JSONError}
	ErrProcess      = &ExecutorError{Kind: ProcessError}
	ErrCLINotFound  = &ExecutorError{Kind: CLINotFound}
	ErrNotSupported = &ExecutorError{Kind: NotSupported}
)

// ErrProcessNotFound reports an abort for a request with no running process
func ErrProcessNotFound(requestID string) error {
	return &ExecutorError{Kind: ProcessError, Detail: "No active process for request " + requestID}
}

// DetectErrorKind classifies detection failures
type DetectErrorKind int

const (
	NotFound DetectErrorKind = iota + 1
	ExecutionFailed
	InvalidVersion
	DetectIOError
)

// DetectionError is returned when a CLI cannot be located or validated
type DetectionError struct {
	Kind   DetectErrorKind
	Detail string
	Err    error
}

func (e *DetectionError) Error() string {
	detail := e.Detail
	if detail == "" && e.Err != nil {
		detail = e.Err.Error()
	}
	switch e.Kind {
	case NotFound:
		if detail != "" {
			return fmt.Sprintf("CLI not found in PATH: %s", detail)
		}
		return "CLI not found in PATH"
	case ExecutionFailed:
		return fmt.Sprintf("Failed to execute command: %s", detail)
	case InvalidVersion:
		return fmt.Sprintf("Invalid CLI version: %s", detail)
	case DetectIOError:
		return fmt.Sprintf("IO error: %s", detail)
	}
	return detail
}

func (e *DetectionError) Unwrap() error { return e.Err }

// Is matches any DetectionError of the same kind
func (e *DetectionError) Is(target error) bool {
	t, ok := target.(*DetectionError)
	return ok && t.Kind == e.Kind
}

var (
	ErrNotFound       = &DetectionError{Kind: NotFound}
	ErrExecution      = &DetectionError{Kind: ExecutionFailed}
	ErrInvalidVersion = &DetectionError{Kind: InvalidVersion}
	ErrDetectIO       = &DetectionError{Kind: DetectIOError}
)
