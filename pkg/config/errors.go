package config

import (
	"errors"
	"fmt"
)

var (
	ErrConfigNotFound       = errors.New("configuration file not found")
	ErrInvalidYAML          = errors.New("invalid YAML syntax")
	ErrAgentNotFound        = errors.New("agent not found")
	ErrChainNotFound        = errors.New("chain not found")
	ErrMCPServerNotFound    = errors.New("MCP server not found")
	ErrLLMProviderNotFound  = errors.New("LLM provider not found")
	ErrUnknownField         = errors.New("unknown configuration field")
)

// ValidationError wraps a configuration validation failure with the
// component/id/field it was found on.
type ValidationError struct {
	Component string
	ID        string
	Field     string
	Err       error
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s %q: field %q: %v", e.Component, e.ID, e.Field, e.Err)
	}
	return fmt.Sprintf("%s %q: %v", e.Component, e.ID, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

func NewValidationError(component, id, field string, err error) *ValidationError {
	return &ValidationError{Component: component, ID: id, Field: field, Err: err}
}

// LoadError wraps a configuration file load failure with its path.
type LoadError struct {
	File string
	Err  error
}

func (e *LoadError) Error() string { return fmt.Sprintf("failed to load %s: %v", e.File, e.Err) }
func (e *LoadError) Unwrap() error { return e.Err }

func NewLoadError(file string, err error) *LoadError { return &LoadError{File: file, Err: err} }
