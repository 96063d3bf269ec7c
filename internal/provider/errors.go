package provider

import "fmt"

// CLIError describes a failure from a CLI-backed provider.
type CLIError struct {
	Provider string
	Message  string
	Err      error
}

func (e *CLIError) Error() string {
	return fmt.Sprintf("provider %s: %s", e.Provider, e.Message)
}

func (e *CLIError) Unwrap() error {
	return e.Err
}
