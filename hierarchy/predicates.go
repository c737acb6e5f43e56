package hierarchy

import (
	"fmt"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/c360studio/semarch/predicate"
)

// Member predicates

// MemberNamed accepts members with exactly the given name.
func MemberNamed(name string) predicate.Predicate[*MemberDescriptor] {
	return predicate.Adapt(predicate.Equal(name), (*MemberDescriptor).Name).
		As(fmt.Sprintf("named '%s'", name))
}

// MemberNameMatching accepts members whose name matches a glob pattern such
// as "get*".
func MemberNameMatching(pattern string) (predicate.Predicate[*MemberDescriptor], error) {
	match, err := globPredicate(pattern)
	if err != nil {
		return predicate.Predicate[*MemberDescriptor]{}, err
	}
	return predicate.Adapt(match, (*MemberDescriptor).Name), nil
}

// HasModifier accepts members declaring the modifier, e.g. "public" or "static".
func HasModifier(modifier string) predicate.Predicate[*MemberDescriptor] {
	return predicate.Described(modifier, func(m *MemberDescriptor) bool {
		return m.HasModifier(modifier)
	})
}

// AnnotatedWith accepts members carrying the annotation. Either the qualified
// or the simple annotation name may be given.
func AnnotatedWith(annotation string) predicate.Predicate[*MemberDescriptor] {
	return predicate.Described(fmt.Sprintf("annotated with @%s", annotation), func(m *MemberDescriptor) bool {
		return hasAnnotation(m.annotations, annotation)
	})
}

// DeclaredIn accepts members whose declaring type has the qualified name.
func DeclaredIn(typeName string) predicate.Predicate[*MemberDescriptor] {
	owner := func(m *MemberDescriptor) *TypeDescriptor { return m.owner }
	return predicate.Adapt(TypeNamed(typeName), owner).
		As(fmt.Sprintf("declared in %s", typeName))
}

// OfCategory accepts members of the category.
func OfCategory(category MemberCategory) predicate.Predicate[*MemberDescriptor] {
	return predicate.Adapt(predicate.Equal(category), (*MemberDescriptor).Category).
		As(fmt.Sprintf("%ss", category))
}

// MemberTypeNamed accepts fields of the given type and methods returning it.
func MemberTypeNamed(typeName string) predicate.Predicate[*MemberDescriptor] {
	return predicate.Described(fmt.Sprintf("of type %s", typeName), func(m *MemberDescriptor) bool {
		return nameMatches(m.typeName, typeName)
	})
}

// Type predicates

// TypeNamed accepts the type with the qualified name.
func TypeNamed(name string) predicate.Predicate[*TypeDescriptor] {
	return predicate.Adapt(predicate.Equal(name), (*TypeDescriptor).Name).
		As(fmt.Sprintf("named '%s'", name))
}

// TypeNameMatching accepts types whose qualified name matches a glob pattern.
// Dots separate segments, so "com.acme.*" matches direct members of the
// package and "com.acme.**" matches every subpackage as well.
func TypeNameMatching(pattern string) (predicate.Predicate[*TypeDescriptor], error) {
	match, err := globPredicate(dotsToSlashes(pattern))
	if err != nil {
		return predicate.Predicate[*TypeDescriptor]{}, err
	}
	name := func(t *TypeDescriptor) string { return dotsToSlashes(t.name) }
	return predicate.Adapt(match, name).As(fmt.Sprintf("matching '%s'", pattern)), nil
}

// ResidesInPackage accepts types declared directly in the package.
func ResidesInPackage(pkg string) predicate.Predicate[*TypeDescriptor] {
	return predicate.Adapt(predicate.Equal(pkg), (*TypeDescriptor).Package).
		As(fmt.Sprintf("residing in package '%s'", pkg))
}

// AssignableTo accepts types whose closure contains the named type, i.e. the
// type itself and every subtype of it.
func AssignableTo(name string) predicate.Predicate[*TypeDescriptor] {
	return predicate.Described(fmt.Sprintf("assignable to %s", name), func(t *TypeDescriptor) bool {
		return ClosureOf(t).Contains(name)
	})
}

// TypeAnnotatedWith accepts types carrying the annotation.
func TypeAnnotatedWith(annotation string) predicate.Predicate[*TypeDescriptor] {
	return predicate.Described(fmt.Sprintf("annotated with @%s", annotation), func(t *TypeDescriptor) bool {
		return hasAnnotation(t.annotations, annotation)
	})
}

// TypeHasModifier accepts types declaring the modifier.
func TypeHasModifier(modifier string) predicate.Predicate[*TypeDescriptor] {
	return predicate.Described(modifier, func(t *TypeDescriptor) bool {
		return t.HasModifier(modifier)
	})
}

// OfKind accepts types of the kind.
func OfKind(kind TypeKind) predicate.Predicate[*TypeDescriptor] {
	return predicate.Adapt(predicate.Equal(kind), (*TypeDescriptor).Kind).
		As(fmt.Sprintf("%ss", kind))
}

func globPredicate(pattern string) (predicate.Predicate[string], error) {
	if !doublestar.ValidatePattern(pattern) {
		return predicate.Predicate[string]{}, fmt.Errorf("invalid pattern %q: %w", pattern, doublestar.ErrBadPattern)
	}
	return predicate.Described(fmt.Sprintf("matching '%s'", pattern), func(s string) bool {
		matched, _ := doublestar.Match(pattern, s)
		return matched
	}), nil
}

func dotsToSlashes(s string) string {
	return strings.ReplaceAll(s, ".", "/")
}

func hasAnnotation(annotations []string, want string) bool {
	return slices.ContainsFunc(annotations, func(a string) bool {
		return nameMatches(a, want)
	})
}

// nameMatches compares a possibly qualified name with a qualified or simple one.
func nameMatches(name, want string) bool {
	if name == want {
		return true
	}
	if strings.Contains(want, ".") {
		return false
	}
	return name[strings.LastIndex(name, ".")+1:] == want
}
