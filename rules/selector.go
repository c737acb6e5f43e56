package rules

import (
	"fmt"

	"github.com/c360studio/semarch/hierarchy"
	"github.com/c360studio/semarch/predicate"
)

type (
	typePred   = predicate.Predicate[*hierarchy.TypeDescriptor]
	memberPred = predicate.Predicate[*hierarchy.MemberDescriptor]
)

var typeKinds = map[string]hierarchy.TypeKind{
	"class":     hierarchy.KindClass,
	"interface": hierarchy.KindInterface,
	"enum":      hierarchy.KindEnum,
	"record":    hierarchy.KindRecord,
}

// typePredicate builds the conjunction of a type selector's criteria. An
// empty selector accepts every type.
func typePredicate(s Selector) (typePred, error) {
	if s.Type != "" || s.DeclaredIn != "" {
		return typePred{}, fmt.Errorf("type and declared_in only apply to members")
	}

	var preds []typePred
	if s.Name != "" {
		p, err := hierarchy.TypeNameMatching(s.Name)
		if err != nil {
			return typePred{}, fmt.Errorf("name %q: %w", s.Name, err)
		}
		preds = append(preds, p)
	}
	if s.Package != "" {
		preds = append(preds, hierarchy.ResidesInPackage(s.Package))
	}
	if s.Implements != "" {
		preds = append(preds, hierarchy.AssignableTo(s.Implements))
	}
	if s.Kind != "" {
		kind, ok := typeKinds[s.Kind]
		if !ok {
			return typePred{}, fmt.Errorf("unknown kind %q", s.Kind)
		}
		preds = append(preds, hierarchy.OfKind(kind))
	}
	if s.Modifier != "" {
		preds = append(preds, hierarchy.TypeHasModifier(s.Modifier))
	}
	if s.Annotation != "" {
		preds = append(preds, hierarchy.TypeAnnotatedWith(s.Annotation))
	}
	if s.Not != nil {
		inner, err := typePredicate(*s.Not)
		if err != nil {
			return typePred{}, fmt.Errorf("not: %w", err)
		}
		preds = append(preds, inner.Negate())
	}

	return combine(preds, "types"), nil
}

// memberPredicate builds the conjunction of a member selector's criteria.
// An empty selector accepts every member.
func memberPredicate(s Selector) (memberPred, error) {
	if s.Package != "" || s.Implements != "" || s.Kind != "" {
		return memberPred{}, fmt.Errorf("package, implements and kind only apply to types")
	}

	var preds []memberPred
	if s.Name != "" {
		p, err := hierarchy.MemberNameMatching(s.Name)
		if err != nil {
			return memberPred{}, fmt.Errorf("name %q: %w", s.Name, err)
		}
		preds = append(preds, p)
	}
	if s.Modifier != "" {
		preds = append(preds, hierarchy.HasModifier(s.Modifier))
	}
	if s.Annotation != "" {
		preds = append(preds, hierarchy.AnnotatedWith(s.Annotation))
	}
	if s.Type != "" {
		preds = append(preds, hierarchy.MemberTypeNamed(s.Type))
	}
	if s.DeclaredIn != "" {
		preds = append(preds, hierarchy.DeclaredIn(s.DeclaredIn))
	}
	if s.Not != nil {
		inner, err := memberPredicate(*s.Not)
		if err != nil {
			return memberPred{}, fmt.Errorf("not: %w", err)
		}
		preds = append(preds, inner.Negate())
	}

	return combine(preds, "members"), nil
}

// combine ands the criteria together. With no criteria the result accepts
// everything and is described as "all <what>".
func combine[T any](preds []predicate.Predicate[T], what string) predicate.Predicate[T] {
	switch len(preds) {
	case 0:
		return predicate.All[T]().As("all " + what)
	case 1:
		return preds[0]
	}
	return predicate.And(preds...)
}
