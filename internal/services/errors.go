package services

import "fmt"

type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string { return "Validation error" }

// EmptyInputError is returned when a blank question reaches the ask flow.
type EmptyInputError struct{}

func (e *EmptyInputError) Error() string { return "Please enter a question." }

// NothingToSaveError is returned when save or abandon runs on an empty session.
type NothingToSaveError struct{}

func (e *NothingToSaveError) Error() string { return "There is no answer to save. Ask a question first." }

// CompletionServiceError wraps a failed completion call. The message is the
// upstream failure reason, unchanged.
type CompletionServiceError struct {
	Provider string
	Err      error
}

func (e *CompletionServiceError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s completion failed", e.Provider)
	}
	return e.Err.Error()
}

func (e *CompletionServiceError) Unwrap() error { return e.Err }

// DatabaseNotFoundError is returned when the target database pre-check fails.
type DatabaseNotFoundError struct {
	DatabaseID string
	Err        error
}

func (e *DatabaseNotFoundError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("database %s was not found", e.DatabaseID)
	}
	return fmt.Sprintf("database %s is not reachable: %v", e.DatabaseID, e.Err)
}

func (e *DatabaseNotFoundError) Unwrap() error { return e.Err }

// StoreWriteError wraps a failed create-record call.
type StoreWriteError struct {
	Err error
}

func (e *StoreWriteError) Error() string {
	if e.Err == nil {
		return "failed to save record"
	}
	return fmt.Sprintf("failed to save record: %v", e.Err)
}

func (e *StoreWriteError) Unwrap() error { return e.Err }
