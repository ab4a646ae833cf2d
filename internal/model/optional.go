package model

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// NotApplicable is the persisted form of an absent metric.
const NotApplicable = "N/A"

// Number is the set of value types an Optional can carry.
type Number interface {
	~int | ~int64 | ~uint64 | ~float64
}

// Optional holds a metric that may not apply to the observed protocol,
// e.g. retransmissions on a UDP-carried QUIC flow. The zero value is absent.
type Optional[T Number] struct {
	value T
	valid bool
}

// Some returns a present Optional holding v.
func Some[T Number](v T) Optional[T] {
	return Optional[T]{value: v, valid: true}
}

// None returns an absent Optional.
func None[T Number]() Optional[T] {
	return Optional[T]{}
}

// Get returns the value and whether it is present.
func (o Optional[T]) Get() (T, bool) {
	return o.value, o.valid
}

// Valid reports whether the value is present.
func (o Optional[T]) Valid() bool {
	return o.valid
}

// Map applies fn to a present value and leaves an absent one untouched.
func (o Optional[T]) Map(fn func(T) T) Optional[T] {
	if !o.valid {
		return o
	}
	return Some(fn(o.value))
}

// Ptr returns a pointer to the value, or nil when absent. Useful for
// nullable database columns.
func (o Optional[T]) Ptr() *T {
	if !o.valid {
		return nil
	}
	v := o.value
	return &v
}

// String formats the value with %v, or NotApplicable when absent.
func (o Optional[T]) String() string {
	if !o.valid {
		return NotApplicable
	}
	return fmt.Sprintf("%v", o.value)
}

// MarshalJSON encodes the value, or the string "N/A" when absent.
func (o Optional[T]) MarshalJSON() ([]byte, error) {
	if !o.valid {
		return json.Marshal(NotApplicable)
	}
	return json.Marshal(o.value)
}

// UnmarshalJSON accepts a number, null or the string "N/A".
func (o *Optional[T]) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if bytes.Equal(trimmed, []byte("null")) || len(trimmed) > 0 && trimmed[0] == '"' {
		var s string
		if trimmed[0] == '"' {
			if err := json.Unmarshal(trimmed, &s); err != nil {
				return err
			}
			if s != NotApplicable {
				return fmt.Errorf("unexpected metric string %q", s)
			}
		}
		*o = Optional[T]{}
		return nil
	}
	var v T
	if err := json.Unmarshal(trimmed, &v); err != nil {
		return err
	}
	*o = Some(v)
	return nil
}
