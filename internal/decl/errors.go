package decl

import (
	"fmt"

	"github.com/hashicorp/hcl/v2"
)

// ParseError reports a structurally invalid declaration: bad syntax,
// unknown blocks or attributes, duplicate names, type mismatches, or
// dependency cycles.
type ParseError struct {
	Message string
	Diags   hcl.Diagnostics
}

func (e *ParseError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Diags.Error()
}

// ParseErrorf builds a ParseError from a format string.
func ParseErrorf(format string, args ...any) *ParseError {
	return &ParseError{Message: fmt.Sprintf(format, args...)}
}

// NewParseError wraps HCL diagnostics in a ParseError.
func NewParseError(diags hcl.Diagnostics) *ParseError {
	return &ParseError{Diags: diags}
}

// UnresolvedVariableError reports a variable that has neither a default
// nor a supplied value.
type UnresolvedVariableError struct {
	Name string
}

func (e *UnresolvedVariableError) Error() string {
	return fmt.Sprintf("variable %q has no value; declare a default or supply one with --var, a var-file, or GP_VAR_%s",
		e.Name, e.Name)
}

// FileNotFoundError reports a file-content read that failed while an
// interpolation function was evaluating.
type FileNotFoundError struct {
	Path string
	Err  error
}

func (e *FileNotFoundError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("cannot read %s: file not found", e.Path)
	}
	return fmt.Sprintf("cannot read %s: %v", e.Path, e.Err)
}

func (e *FileNotFoundError) Unwrap() error { return e.Err }

// ReferenceError reports an interpolation that names an undeclared
// variable, local, or resource.
type ReferenceError struct {
	Ref     string
	Subject hcl.Range
}

func (e *ReferenceError) Error() string {
	if e.Subject.Filename == "" {
		return fmt.Sprintf("reference to undeclared name %q", e.Ref)
	}
	return fmt.Sprintf("%s: reference to undeclared name %q", e.Subject, e.Ref)
}
