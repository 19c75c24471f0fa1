package model

import (
	"encoding/json"
	"fmt"
)

type OutcomeKind string

const (
	OutcomeOK    OutcomeKind = "ok"
	OutcomeError OutcomeKind = "error"
)

// Outcome is a success value or a human-readable failure message.
// Exactly one side is meaningful; check Kind (or use Get) before reading Value.
type Outcome[T any] struct {
	Kind   OutcomeKind
	Value  T
	ErrMsg string
}

func Ok[T any](v T) Outcome[T] {
	return Outcome[T]{Kind: OutcomeOK, Value: v}
}

func Fail[T any](msg string) Outcome[T] {
	return Outcome[T]{Kind: OutcomeError, ErrMsg: msg}
}

func (o Outcome[T]) IsOK() bool {
	return o.Kind == OutcomeOK
}

// Get returns the value and true for a success, the zero value and false otherwise.
func (o Outcome[T]) Get() (T, bool) {
	if o.Kind != OutcomeOK {
		var zero T
		return zero, false
	}
	return o.Value, true
}

// OrElse returns the success value, or fallback for a failure.
func (o Outcome[T]) OrElse(fallback T) T {
	if v, ok := o.Get(); ok {
		return v
	}
	return fallback
}

func (o Outcome[T]) MarshalJSON() ([]byte, error) {
	switch o.Kind {
	case OutcomeOK:
		return json.Marshal(struct {
			Kind  OutcomeKind `json:"kind"`
			Value T           `json:"value"`
		}{o.Kind, o.Value})
	case OutcomeError:
		return json.Marshal(struct {
			Kind   OutcomeKind `json:"kind"`
			ErrMsg string      `json:"errMsg"`
		}{o.Kind, o.ErrMsg})
	default:
		return nil, fmt.Errorf("marshal outcome: unknown kind %q", o.Kind)
	}
}
