package hierarchy

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/semarch/predicate"
)

func TestCollectDeclared_FieldsInClosureOrder(t *testing.T) {
	r := zooRegistry(t)
	fields := CollectDeclared(lookup(t, r, "zoo.Mammal"), CategoryField)

	assert.Equal(t, []string{"age", "id"}, memberNames(fields))
	assert.Equal(t, "zoo.Mammal", fields[0].Owner().Name())
	assert.Equal(t, "zoo.Animal", fields[1].Owner().Name())
}

func TestCollectDeclared_NoOverrideMerging(t *testing.T) {
	r := zooRegistry(t)
	methods := CollectDeclared(lookup(t, r, "zoo.Mammal"), CategoryMethod)

	require.Len(t, methods, 2)
	assert.Equal(t, "zoo.Mammal.getName()", methods[0].String())
	assert.Equal(t, "zoo.Named.getName()", methods[1].String())
}

func TestCollectDeclared_CountEqualsSumOverClosure(t *testing.T) {
	r := diamondRegistry(t)
	for _, td := range r.Types() {
		for _, category := range Categories() {
			want := 0
			for _, ancestor := range ClosureOf(td).Types() {
				want += len(ancestor.DeclaredMembers(category))
			}
			assert.Len(t, CollectDeclared(td, category), want, "%s %s", td.Name(), category)
		}
	}
}

func TestCollectDeclared_DiamondVisitsSharedAncestorOnce(t *testing.T) {
	r := diamondRegistry(t)
	methods := CollectDeclared(lookup(t, r, "d.Impl"), CategoryMethod)

	assert.Equal(t, []string{"left", "right", "left", "base", "right"}, memberNames(methods))
}

func TestCollectDeclared_EmptyCases(t *testing.T) {
	r := zooRegistry(t)

	assert.Empty(t, CollectDeclared(nil, CategoryField))
	assert.NotNil(t, CollectDeclared(nil, CategoryField))
	assert.Empty(t, CollectDeclared(lookup(t, r, "zoo.Animal"), CategoryMethod))
}

func TestQuery(t *testing.T) {
	r := zooRegistry(t)
	mammal := lookup(t, r, "zoo.Mammal")

	got := Query(mammal, CategoryField, MemberNamed("age"))
	require.Len(t, got, 1)
	assert.Equal(t, "age", got[0].Name())
	assert.Same(t, mammal, got[0].Owner())
}

func TestQuery_NegatedAllIsEmpty(t *testing.T) {
	r := zooRegistry(t)
	mammal := lookup(t, r, "zoo.Mammal")

	for _, category := range Categories() {
		assert.Empty(t, Query(mammal, category, predicate.All[*MemberDescriptor]().Negate()))
	}
}

func TestQuery_AllEqualsCollectDeclared(t *testing.T) {
	r := zooRegistry(t)
	mammal := lookup(t, r, "zoo.Mammal")

	assert.Equal(t,
		CollectDeclared(mammal, CategoryMethod),
		Query(mammal, CategoryMethod, predicate.All[*MemberDescriptor]()))
}

func TestQuery_RefilterEqualsConjunction(t *testing.T) {
	r := diamondRegistry(t)
	impl := lookup(t, r, "d.Impl")

	p := MemberNamed("left")
	q := HasModifier("public")

	refiltered := predicate.Filter(Query(impl, CategoryMethod, p), q)
	assert.Equal(t, refiltered, Query(impl, CategoryMethod, p.And(q)))
	require.Len(t, refiltered, 1)
	assert.Equal(t, "d.Impl", refiltered[0].Owner().Name())
}

func TestQuery_PanicPropagates(t *testing.T) {
	r := zooRegistry(t)
	boom := predicate.New(func(*MemberDescriptor) bool { panic("boom") })

	assert.PanicsWithValue(t, "boom", func() {
		Query(lookup(t, r, "zoo.Mammal"), CategoryField, boom)
	})
}

func TestAllHelpers(t *testing.T) {
	r := zooRegistry(t)
	mammal := lookup(t, r, "zoo.Mammal")
	all := predicate.All[*MemberDescriptor]()

	assert.Len(t, AllConstructors(mammal, all), 1)
	assert.Len(t, AllFields(mammal, all), 2)
	assert.Len(t, AllMethods(mammal, all), 2)
}

func TestQuery_ConcurrentUse(t *testing.T) {
	r := diamondRegistry(t)
	impl := lookup(t, r, "d.Impl")
	p := MemberNamed("right")

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.Len(t, Query(impl, CategoryMethod, p), 2)
		}()
	}
	wg.Wait()
}
