// Package predicate provides an immutable boolean predicate over values of a
// single type. A predicate may carry a human-readable description, which rule
// reporting uses to phrase what a predicate selects.
//
// Predicates are plain values. Every combinator returns a new predicate and
// never modifies its receiver, so a predicate can be shared freely between
// rule definitions and goroutines.
package predicate

import (
	"fmt"
	"strings"
)

// Predicate decides membership for values of type T.
//
// The zero value is an undescribed predicate that accepts every value, the
// same as All.
type Predicate[T any] struct {
	fn          func(T) bool
	description string
	described   bool
}

// New lifts fn into an undescribed predicate. A nil fn accepts every value.
func New[T any](fn func(T) bool) Predicate[T] {
	return Predicate[T]{fn: fn}
}

// Described lifts fn into a predicate carrying the given description.
func Described[T any](description string, fn func(T) bool) Predicate[T] {
	return Predicate[T]{fn: fn, description: description, described: true}
}

// All returns a predicate that accepts every value of T. It is the neutral
// starting point for "all members of a category".
func All[T any]() Predicate[T] {
	return Predicate[T]{}
}

// Is returns p unchanged so composed rule code reads naturally, as in
// predicate.Not(predicate.Is(public)).
func Is[T any](p Predicate[T]) Predicate[T] {
	return p
}

// Are is the plural form of Is.
func Are[T any](p Predicate[T]) Predicate[T] {
	return p
}

// Apply reports whether value satisfies the predicate. A panic raised by the
// underlying function propagates to the caller.
func (p Predicate[T]) Apply(value T) bool {
	if p.fn == nil {
		return true
	}
	return p.fn(value)
}

// Description returns the attached description and whether one is present.
func (p Predicate[T]) Description() (string, bool) {
	return p.description, p.described
}

// String returns the description, or an empty string when there is none.
func (p Predicate[T]) String() string {
	return p.description
}

// As returns a copy of p with the given description.
func (p Predicate[T]) As(description string) Predicate[T] {
	return Predicate[T]{fn: p.fn, description: description, described: true}
}

// Negate returns a predicate with the inverted decision. A described
// predicate yields "not <description>"; an undescribed one stays undescribed.
func (p Predicate[T]) Negate() Predicate[T] {
	negated := Predicate[T]{fn: func(v T) bool { return !p.Apply(v) }}
	if p.described {
		negated.description = "not " + p.description
		negated.described = true
	}
	return negated
}

// And is the method form of the package-level And.
func (p Predicate[T]) And(other Predicate[T]) Predicate[T] {
	return And(p, other)
}

// Or is the method form of the package-level Or.
func (p Predicate[T]) Or(other Predicate[T]) Predicate[T] {
	return Or(p, other)
}

// Not is the function form of Negate.
func Not[T any](p Predicate[T]) Predicate[T] {
	return p.Negate()
}

// Adapt returns a predicate over U that maps its input through mapper and
// then delegates to p. The description of p is kept as is.
func Adapt[U, T any](p Predicate[T], mapper func(U) T) Predicate[U] {
	return Predicate[U]{
		fn:          func(u U) bool { return p.Apply(mapper(u)) },
		description: p.description,
		described:   p.described,
	}
}

// Or accepts a value when any of preds accepts it. With no operands it
// accepts nothing. Operands are evaluated left to right and short-circuit.
func Or[T any](preds ...Predicate[T]) Predicate[T] {
	operands := append([]Predicate[T](nil), preds...)
	result := Predicate[T]{fn: func(v T) bool {
		for _, p := range operands {
			if p.Apply(v) {
				return true
			}
		}
		return false
	}}
	if description, ok := joinDescriptions(operands, " or "); ok {
		result.description = description
		result.described = true
	}
	return result
}

// And accepts a value when every one of preds accepts it. It is built as
// not(or(not p1, ..., not pn)), so it agrees with Or and Negate for every input.
// With no operands it accepts everything.
func And[T any](preds ...Predicate[T]) Predicate[T] {
	negated := make([]Predicate[T], len(preds))
	for i, p := range preds {
		negated[i] = New(p.Negate().fn)
	}
	result := New(Or(negated...).Negate().fn)
	if description, ok := joinDescriptions(preds, " and "); ok {
		return result.As(description)
	}
	return result
}

// Equal accepts values equal to want.
func Equal[T comparable](want T) Predicate[T] {
	return Described(fmt.Sprintf("equal to '%v'", want), func(v T) bool {
		return v == want
	})
}

// Filter returns the items accepted by p, in their original order.
func Filter[T any](items []T, p Predicate[T]) []T {
	result := make([]T, 0, len(items))
	for _, item := range items {
		if p.Apply(item) {
			result = append(result, item)
		}
	}
	return result
}

func joinDescriptions[T any](preds []Predicate[T], sep string) (string, bool) {
	if len(preds) == 0 {
		return "", false
	}
	parts := make([]string, 0, len(preds))
	for _, p := range preds {
		d, ok := p.Description()
		if !ok {
			return "", false
		}
		parts = append(parts, d)
	}
	return strings.Join(parts, sep), true
}
