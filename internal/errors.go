// Copyright (c) 2026 tasquencer authors.
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.

package internal

import (
	"errors"
	"fmt"
)

// Code is a closed taxonomy of error categories the engine can raise, per
// the structural/not-found/invalid-state/payload/policy/migration split.
// User-facing code should switch on Code rather than string-match messages.
type Code string

const (
	CodeUnreachableNode        Code = "UNREACHABLE_NODE"
	CodeUnknownArcTarget       Code = "UNKNOWN_ARC_TARGET"
	CodeMissingRouteCallback   Code = "MISSING_ROUTE_CALLBACK"
	CodeDuplicateName          Code = "DUPLICATE_NAME"
	CodeWorkflowNotFound       Code = "WORKFLOW_NOT_FOUND"
	CodeTaskNotFound           Code = "TASK_NOT_FOUND"
	CodeWorkItemNotFound       Code = "WORK_ITEM_NOT_FOUND"
	CodeConditionNotFound      Code = "CONDITION_NOT_FOUND"
	CodeInvalidWorkItemState   Code = "INVALID_WORK_ITEM_STATE"
	CodeInvalidWorkflowState   Code = "INVALID_WORKFLOW_STATE"
	CodeInvalidTaskState       Code = "INVALID_TASK_STATE"
	CodePayloadValidationError Code = "PAYLOAD_VALIDATION_ERROR"
	CodePolicyRouteEmpty       Code = "POLICY_ROUTE_EMPTY"
	CodeXorJoinAmbiguous       Code = "XOR_JOIN_AMBIGUOUS"
	CodeAndJoinUnsatisfied     Code = "AND_JOIN_UNSATISFIED"
	CodeMigrationChainNotFound Code = "MIGRATION_CHAIN_NOT_FOUND"
	CodeMigrationHalted        Code = "MIGRATION_HALTED_BY_TASK_MIGRATOR"
)

// EngineError is the single concrete error type the engine returns to
// callers. It exposes Code() and Message() only; internal causes travel via
// Unwrap() for errors.As/errors.Is, never through the message string, so a
// host can log the full chain without leaking it to end users.
type EngineError struct {
	code    Code
	message string
	cause   error
}

func newErr(code Code, cause error, format string, args ...any) *EngineError {
	return &EngineError{code: code, message: fmt.Sprintf(format, args...), cause: cause}
}

func (e *EngineError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.code, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.code, e.message)
}

func (e *EngineError) Code() Code    { return e.code }
func (e *EngineError) Message() string { return e.message }
func (e *EngineError) Unwrap() error  { return e.cause }

func NewStructuralError(code Code, format string, args ...any) *EngineError {
	return newErr(code, nil, format, args...)
}

func NewNotFoundError(code Code, format string, args ...any) *EngineError {
	return newErr(code, nil, format, args...)
}

func NewInvalidStateError(code Code, format string, args ...any) *EngineError {
	return newErr(code, nil, format, args...)
}

func NewPayloadValidationError(cause error, format string, args ...any) *EngineError {
	return newErr(CodePayloadValidationError, cause, format, args...)
}

func NewPolicyError(code Code, format string, args ...any) *EngineError {
	return newErr(code, nil, format, args...)
}

func NewMigrationError(code Code, cause error, format string, args ...any) *EngineError {
	return newErr(code, cause, format, args...)
}

// IsCode reports whether err is an *EngineError of the given code.
func IsCode(err error, code Code) bool {
	var ee *EngineError
	if !errors.As(err, &ee) {
		return false
	}
	return ee.code == code
}
