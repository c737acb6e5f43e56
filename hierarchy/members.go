package hierarchy

import "github.com/c360studio/semarch/predicate"

// CollectDeclared returns every member of category declared on any type in
// the closure of t. Members keep their declaration site: nothing is merged or
// overridden. Ancestors are visited in closure order and each contributes its
// members in declaration order. A nil t yields an empty slice.
func CollectDeclared(t *TypeDescriptor, category MemberCategory) []*MemberDescriptor {
	collected := make([]*MemberDescriptor, 0)
	for _, ancestor := range ClosureOf(t).types {
		collected = append(collected, ancestor.members[category]...)
	}
	return collected
}

// Query returns the members of CollectDeclared(t, category) accepted by p,
// in the same relative order. Nothing is cached between calls.
func Query(t *TypeDescriptor, category MemberCategory, p predicate.Predicate[*MemberDescriptor]) []*MemberDescriptor {
	return predicate.Filter(CollectDeclared(t, category), p)
}

// AllConstructors queries the constructors of t's closure.
func AllConstructors(t *TypeDescriptor, p predicate.Predicate[*MemberDescriptor]) []*MemberDescriptor {
	return Query(t, CategoryConstructor, p)
}

// AllFields queries the fields of t's closure.
func AllFields(t *TypeDescriptor, p predicate.Predicate[*MemberDescriptor]) []*MemberDescriptor {
	return Query(t, CategoryField, p)
}

// AllMethods queries the methods of t's closure.
func AllMethods(t *TypeDescriptor, p predicate.Predicate[*MemberDescriptor]) []*MemberDescriptor {
	return Query(t, CategoryMethod, p)
}
