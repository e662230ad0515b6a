// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package errors defines the coded error type shared by agents, retrieval,
// workflows and the orchestrator.
//
// Every code belongs to one of three categories:
//
//   - CategoryInput: the caller or workflow author must fix something
//     (missing task key, unresolved reference, unknown agent).
//   - CategoryCollaborator: an external service failed (retrieval, model,
//     timeout). Only these are retried.
//   - CategoryDomain: the agent ran but could not produce a meaningful answer.
//
// Import it under an alias to avoid shadowing the standard library:
//
//	xerrors "github.com/wongivan852/legal-ai-vault-sub000/pkg/errors"
package errors

import (
	stderrors "errors"
	"fmt"
	"sync"
)

// Code identifies an error condition.
type Code string

// Category groups codes by who has to act on them.
type Category string

const (
	CategoryInput        Category = "input"
	CategoryCollaborator Category = "collaborator"
	CategoryDomain       Category = "domain"
	CategoryInternal     Category = "internal"
)

const (
	CodeUnknown             Code = "UNKNOWN"
	CodeInvalidArgument     Code = "INVALID_ARGUMENT"
	CodeMissingField        Code = "MISSING_FIELD"
	CodeUnresolvedReference Code = "UNRESOLVED_REFERENCE"
	CodeAgentNotFound       Code = "AGENT_NOT_FOUND"
	CodeWorkflowNotFound    Code = "WORKFLOW_NOT_FOUND"
	CodeToolNotFound        Code = "TOOL_NOT_FOUND"
	CodeAlreadyExists       Code = "ALREADY_EXISTS"

	CodeRetrievalUnavailable Code = "RETRIEVAL_UNAVAILABLE"
	CodeModelFailure         Code = "MODEL_FAILURE"
	CodeTimeout              Code = "TIMEOUT"
	CodeStorageFailure       Code = "STORAGE_FAILURE"

	CodeNoRelevantPassages Code = "NO_RELEVANT_PASSAGES"
	CodeDomainFailure      Code = "DOMAIN_FAILURE"

	CodeCancelled Code = "CANCELLED"
)

// Attributes describe the default behaviour of a code.
type Attributes struct {
	Message   string
	Category  Category
	Retryable bool
}

var (
	registryMu sync.RWMutex
	registry   = map[Code]Attributes{
		CodeUnknown:             {Message: "unknown error", Category: CategoryInternal},
		CodeInvalidArgument:     {Message: "invalid argument", Category: CategoryInput},
		CodeMissingField:        {Message: "missing required field", Category: CategoryInput},
		CodeUnresolvedReference: {Message: "unresolved reference", Category: CategoryInput},
		CodeAgentNotFound:       {Message: "agent not found", Category: CategoryInput},
		CodeWorkflowNotFound:    {Message: "workflow not found", Category: CategoryInput},
		CodeToolNotFound:        {Message: "tool not found", Category: CategoryInput},
		CodeAlreadyExists:       {Message: "already registered", Category: CategoryInput},

		CodeRetrievalUnavailable: {Message: "retrieval unavailable", Category: CategoryCollaborator, Retryable: true},
		CodeModelFailure:         {Message: "language model failure", Category: CategoryCollaborator, Retryable: true},
		CodeTimeout:              {Message: "operation timed out", Category: CategoryCollaborator, Retryable: true},
		CodeStorageFailure:       {Message: "storage failure", Category: CategoryCollaborator, Retryable: true},

		CodeNoRelevantPassages: {Message: "no relevant passages found", Category: CategoryDomain},
		CodeDomainFailure:      {Message: "unable to produce an answer", Category: CategoryDomain},

		CodeCancelled: {Message: "operation cancelled", Category: CategoryInternal},
	}
)

// Sentinel errors for errors.Is matching. Matching compares codes only, so
// any *Error carrying the same code satisfies errors.Is against these.
var (
	ErrMissingField         = New(CodeMissingField, "")
	ErrUnresolvedReference  = New(CodeUnresolvedReference, "")
	ErrAgentNotFound        = New(CodeAgentNotFound, "")
	ErrWorkflowNotFound     = New(CodeWorkflowNotFound, "")
	ErrToolNotFound         = New(CodeToolNotFound, "")
	ErrRetrievalUnavailable = New(CodeRetrievalUnavailable, "")
	ErrModelFailure         = New(CodeModelFailure, "")
	ErrTimeout              = New(CodeTimeout, "")
	ErrNoRelevantPassages   = New(CodeNoRelevantPassages, "")
	ErrCancelled            = New(CodeCancelled, "")
)

// Register adds or replaces the attributes of a code.
func Register(code Code, attr Attributes) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[code] = attr
}

// AttributesOf returns the attributes of code, falling back to CodeUnknown.
func AttributesOf(code Code) Attributes {
	registryMu.RLock()
	defer registryMu.RUnlock()
	if attr, ok := registry[code]; ok {
		return attr
	}
	return registry[CodeUnknown]
}

// Error is the coded error type.
type Error struct {
	code      Code
	message   string
	cause     error
	metadata  map[string]string
	retryable *bool
}

// Option customises an Error.
type Option func(*Error)

// WithMetadata attaches a key/value pair.
func WithMetadata(key, value string) Option {
	return func(e *Error) {
		if e.metadata == nil {
			e.metadata = make(map[string]string)
		}
		e.metadata[key] = value
	}
}

// WithRetryable overrides the retryable attribute of the code.
func WithRetryable(retryable bool) Option {
	return func(e *Error) {
		e.retryable = &retryable
	}
}

// New creates an Error. An empty message uses the code's default message.
func New(code Code, message string, opts ...Option) *Error {
	if message == "" {
		message = AttributesOf(code).Message
	}
	e := &Error{code: code, message: message}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

// Newf creates an Error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return New(code, fmt.Sprintf(format, args...))
}

// Wrap creates an Error around cause.
func Wrap(code Code, cause error, message string, opts ...Option) *Error {
	e := New(code, message, opts...)
	e.cause = cause
	return e
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// Is reports whether target is an *Error with the same code.
func (e *Error) Is(target error) bool {
	if e == nil || target == nil {
		return false
	}
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.code == t.code
}

// Code returns the error code.
func (e *Error) Code() Code {
	if e == nil {
		return CodeUnknown
	}
	return e.code
}

// Message returns the message without the cause.
func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

// Category returns the category of the code.
func (e *Error) Category() Category {
	if e == nil {
		return CategoryInternal
	}
	return AttributesOf(e.code).Category
}

// Metadata returns a copy of the attached metadata.
func (e *Error) Metadata() map[string]string {
	if e == nil || len(e.metadata) == 0 {
		return nil
	}
	clone := make(map[string]string, len(e.metadata))
	for k, v := range e.metadata {
		clone[k] = v
	}
	return clone
}

// Retryable reports whether the error may succeed on a later attempt.
func (e *Error) Retryable() bool {
	if e == nil {
		return false
	}
	if e.retryable != nil {
		return *e.retryable
	}
	return AttributesOf(e.code).Retryable
}

// From extracts the outermost *Error from err's chain.
func From(err error) (*Error, bool) {
	if err == nil {
		return nil, false
	}
	var target *Error
	if stderrors.As(err, &target) {
		return target, true
	}
	return nil, false
}

// CodeOf returns the code of err or CodeUnknown.
func CodeOf(err error) Code {
	if e, ok := From(err); ok {
		return e.Code()
	}
	return CodeUnknown
}

// CategoryOf returns the category of err or CategoryInternal.
func CategoryOf(err error) Category {
	if e, ok := From(err); ok {
		return e.Category()
	}
	return CategoryInternal
}

// IsRetryable reports whether err is a retryable collaborator failure.
func IsRetryable(err error) bool {
	if e, ok := From(err); ok {
		return e.Retryable() && e.Category() == CategoryCollaborator
	}
	return false
}

// IsInput reports whether err is an input error.
func IsInput(err error) bool {
	return CategoryOf(err) == CategoryInput
}
