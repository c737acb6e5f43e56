package hierarchy

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func field(name, typ string, modifiers ...string) MemberSpec {
	return MemberSpec{Category: CategoryField, Name: name, Type: typ, Modifiers: modifiers}
}

func method(name, returns string, modifiers ...string) MemberSpec {
	return MemberSpec{Category: CategoryMethod, Name: name, Type: returns, Modifiers: modifiers}
}

func build(t *testing.T, specs ...TypeSpec) *Registry {
	t.Helper()
	b := NewBuilder()
	for _, spec := range specs {
		require.NoError(t, b.Add(spec))
	}
	r, err := b.Build()
	require.NoError(t, err)
	return r
}

func lookup(t *testing.T, r *Registry, name string) *TypeDescriptor {
	t.Helper()
	td, ok := r.Lookup(name)
	require.True(t, ok, "type %s not found", name)
	return td
}

// zooRegistry builds Animal <- Mammal implements Named.
func zooRegistry(t *testing.T) *Registry {
	return build(t,
		TypeSpec{
			Name:    "zoo.Animal",
			Members: []MemberSpec{field("id", "long", "private")},
		},
		TypeSpec{
			Name:       "zoo.Mammal",
			Superclass: "zoo.Animal",
			Interfaces: []string{"zoo.Named"},
			Members: []MemberSpec{
				field("age", "int", "private"),
				{Category: CategoryConstructor, Name: "Mammal", Parameters: []string{"int"}, Modifiers: []string{"public"}},
				method("getName", "String", "public"),
			},
		},
		TypeSpec{
			Name:    "zoo.Named",
			Kind:    KindInterface,
			Members: []MemberSpec{method("getName", "String", "public", "abstract")},
		},
	)
}

// diamondRegistry builds Impl implements Left, Right; Left and Right extend Base.
func diamondRegistry(t *testing.T) *Registry {
	return build(t,
		TypeSpec{Name: "d.Base", Kind: KindInterface, Members: []MemberSpec{method("base", "void")}},
		TypeSpec{Name: "d.Left", Kind: KindInterface, Interfaces: []string{"d.Base"}, Members: []MemberSpec{method("left", "void")}},
		TypeSpec{Name: "d.Right", Kind: KindInterface, Interfaces: []string{"d.Base"}, Members: []MemberSpec{method("right", "void")}},
		TypeSpec{Name: "d.Impl", Interfaces: []string{"d.Left", "d.Right"}, Members: []MemberSpec{method("left", "void", "public"), method("right", "void", "public")}},
	)
}

func memberNames(members []*MemberDescriptor) []string {
	names := make([]string, len(members))
	for i, m := range members {
		names[i] = m.Name()
	}
	return names
}
