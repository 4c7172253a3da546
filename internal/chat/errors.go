package chat

import "fmt"

// ConfigurationError indicates a missing or unusable provider credential.
// Fatal to the adapter being initialized, not to the process.
type ConfigurationError struct {
	Provider string
	Message  string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration: %s: %s", e.Provider, e.Message)
}

// TransportError indicates a network or provider failure. Surfaced to the
// caller, never retried inside an adapter.
type TransportError struct {
	Provider string
	Message  string
	Code     int // HTTP-like status code when known (401, 429, 500, ...)
	Err      error
}

func (e *TransportError) Error() string {
	if e.Code > 0 {
		return fmt.Sprintf("%s: %d %s", e.Provider, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ValidationError indicates tool input outside its contract. Returned to the
// model as a failed Result, never raised through the registry.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// NotFoundError indicates a lookup for a turn or conversation that does not exist.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

// InvalidOperationError indicates misuse of the conversation log, such as
// editing a non-user turn. Programmer error; fails loudly rather than
// silently corrupting history.
type InvalidOperationError struct {
	Message string
}

func (e *InvalidOperationError) Error() string { return e.Message }

// ToolLoopExceededError is returned when the tool follow-up cycle hits its
// configured depth cap without converging to a plain answer.
type ToolLoopExceededError struct {
	Depth int
}

func (e *ToolLoopExceededError) Error() string {
	return fmt.Sprintf("tool follow-up loop exceeded %d rounds", e.Depth)
}
