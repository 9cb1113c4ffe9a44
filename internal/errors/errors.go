// Package errors defines the typed error kinds used throughout the
// lexer, parser, compiler and VM.
package errors

import (
	"fmt"
	"strings"
)

// Kind distinguishes the error categories callers need to tell apart:
// syntax (lexer, parser or compiler), type, runtime, memory, and generic
// failures.
type Kind string

const (
	Syntax  Kind = "syntax error"
	Type    Kind = "type error"
	Runtime Kind = "runtime error"
	Memory  Kind = "memory error"
	Generic Kind = "error"
)

// Location is a position in source text.
type Location struct {
	Source string
	Line   int
}

// Frame is one entry of a Lua-visible call stack, used for pcall
// diagnostics and uncaught-error reporting.
type Frame struct {
	FuncName string
	Source   string
	Line     int
}

// LuaError is the error type that flows from the lexer/parser/compiler/VM
// up to a pcall boundary or the CLI's top-level handler.
type LuaError struct {
	Kind    Kind
	Message string
	Where   Location
	Stack   []Frame
	Cause   error
	// Value, when set, is the raw Lua value passed to error(), which may
	// be a non-string (pcall must hand it back unmodified).
	Value interface{}
}

func (e *LuaError) Error() string {
	var sb strings.Builder
	if e.Where.Source != "" {
		sb.WriteString(fmt.Sprintf("%s:%d: ", e.Where.Source, e.Where.Line))
	}
	sb.WriteString(e.Message)
	for _, f := range e.Stack {
		sb.WriteString("\n\tat ")
		if f.FuncName != "" {
			sb.WriteString(f.FuncName)
			sb.WriteString(" ")
		}
		sb.WriteString(fmt.Sprintf("(%s:%d)", f.Source, f.Line))
	}
	return sb.String()
}

func (e *LuaError) Unwrap() error { return e.Cause }

func New(kind Kind, source string, line int, format string, args ...interface{}) *LuaError {
	return &LuaError{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
		Where:   Location{Source: source, Line: line},
	}
}

func NewSyntax(source string, line int, format string, args ...interface{}) *LuaError {
	return New(Syntax, source, line, format, args...)
}

func NewType(source string, line int, format string, args ...interface{}) *LuaError {
	return New(Type, source, line, format, args...)
}

func NewRuntime(source string, line int, format string, args ...interface{}) *LuaError {
	return New(Runtime, source, line, format, args...)
}

// WithStack attaches a call-stack trace for error() tracebacks.
func (e *LuaError) WithStack(stack []Frame) *LuaError {
	e.Stack = stack
	return e
}

// WithCause chains a lower-level Go error (e.g. a malformed bytecode
// header) as the underlying cause.
func (e *LuaError) WithCause(cause error) *LuaError {
	e.Cause = cause
	return e
}
