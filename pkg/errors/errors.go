/*
Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package errors

import (
	"errors"
	"fmt"
)

// Kind classifies orchestrator failures so that callers can pick a retry
// policy without string-matching provider messages.
type Kind string

const (
	KindInvalidCircuit     Kind = "InvalidCircuit"
	KindInvalidJob         Kind = "InvalidJob"
	KindNoEligibleDevice   Kind = "NoEligibleDevice"
	KindUnroutableCircuit  Kind = "UnroutableCircuit"
	KindAuthFailure        Kind = "AuthFailure"
	KindNetworkTransient   Kind = "NetworkTransient"
	KindNotFound           Kind = "NotFound"
	KindQuotaExceeded      Kind = "QuotaExceeded"
	KindPersistenceFailure Kind = "PersistenceFailure"
	KindTimeout            Kind = "Timeout"
)

// Error carries a Kind alongside the wrapped cause.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New constructs a classified error from a format string.
func New(kind Kind, format string, args ...interface{}) error {
	return &Error{Kind: kind, Err: fmt.Errorf(format, args...)}
}

// Wrap classifies an existing error, preserving it for errors.Is/As.
func Wrap(kind Kind, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Err: err}
}

// KindOf returns the Kind of err, or the empty Kind if err is unclassified.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsKind returns true if err (even if wrapped) carries the given Kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

func IsInvalidCircuit(err error) bool    { return IsKind(err, KindInvalidCircuit) }
func IsInvalidJob(err error) bool        { return IsKind(err, KindInvalidJob) }
func IsNoEligibleDevice(err error) bool  { return IsKind(err, KindNoEligibleDevice) }
func IsUnroutableCircuit(err error) bool { return IsKind(err, KindUnroutableCircuit) }
func IsAuthFailure(err error) bool       { return IsKind(err, KindAuthFailure) }
func IsNotFound(err error) bool          { return IsKind(err, KindNotFound) }
func IsQuotaExceeded(err error) bool     { return IsKind(err, KindQuotaExceeded) }
func IsTimeout(err error) bool           { return IsKind(err, KindTimeout) }

// IsTransient reports whether err is worth retrying with back-off. Timeouts
// during polling are treated the same way as transient network failures.
func IsTransient(err error) bool {
	k := KindOf(err)
	return k == KindNetworkTransient || k == KindTimeout
}
