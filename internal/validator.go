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
	"encoding/json"

	govalidator "github.com/go-playground/validator/v10"
)

// Validator is the opaque payload contract from §6.3: the engine never
// interprets payload bytes, it only asks the host-declared validator to
// accept or reject them before an activity handler sees them.
type Validator interface {
	Validate(payload []byte) ([]byte, error)
}

// ValidatorFunc adapts a plain function to Validator.
type ValidatorFunc func(payload []byte) ([]byte, error)

func (f ValidatorFunc) Validate(payload []byte) ([]byte, error) { return f(payload) }

// NoopValidator accepts every payload unchanged.
var NoopValidator Validator = ValidatorFunc(func(payload []byte) ([]byte, error) { return payload, nil })

// StructValidator builds a Validator that JSON-decodes the payload into a
// fresh value of T and runs go-playground/validator struct tags over it,
// the same library kubernaut and openchoreo use for request validation.
// It returns the re-marshaled, canonicalized payload on success.
func StructValidator[T any](v *govalidator.Validate) Validator {
	if v == nil {
		v = govalidator.New(govalidator.WithRequiredStructEnabled())
	}
	return ValidatorFunc(func(payload []byte) ([]byte, error) {
		var target T
		if err := json.Unmarshal(payload, &target); err != nil {
			return nil, NewPayloadValidationError(err, "decode payload")
		}
		if err := v.Struct(target); err != nil {
			return nil, NewPayloadValidationError(err, "validate payload")
		}
		out, err := json.Marshal(target)
		if err != nil {
			return nil, NewPayloadValidationError(err, "re-encode payload")
		}
		return out, nil
	})
}

func validate(v Validator, payload []byte) ([]byte, error) {
	if v == nil {
		return payload, nil
	}
	return v.Validate(payload)
}
