package property

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeSubject struct {
	id    uint64
	props Properties
}

func (s fakeSubject) ServiceID() uint64 { return s.id }

func (s fakeSubject) Property(key string) (Value, bool) {
	v, ok := s.props[key]
	return v, ok
}

func TestNilFilterMatchesEverything(t *testing.T) {
	var f *Filter
	assert.True(t, f.Matches(fakeSubject{id: 1}))
}

func TestEmptyFilterMatchesEverything(t *testing.T) {
	assert.True(t, NewFilter().Matches(fakeSubject{id: 1}))
}

func TestServiceIDPredicate(t *testing.T) {
	f := ByServiceID(7)
	assert.True(t, f.Matches(fakeSubject{id: 7}))
	assert.False(t, f.Matches(fakeSubject{id: 8}))
}

func TestPropertyPredicate(t *testing.T) {
	f := NewFilter(PropertyPredicate{Key: "zone", Value: String("edge")})

	assert.True(t, f.Matches(fakeSubject{props: Properties{"zone": String("edge")}}))
	assert.False(t, f.Matches(fakeSubject{props: Properties{"zone": String("core")}}))
	assert.False(t, f.Matches(fakeSubject{props: Properties{}}))
}

func TestConjunctionAndDisjunction(t *testing.T) {
	and := NewFilter(AndPredicate{Children: []Predicate{
		ServiceIDPredicate{ID: 7},
		PropertyPredicate{Key: "zone", Value: String("edge")},
	}})
	assert.True(t, and.Matches(fakeSubject{id: 7, props: Properties{"zone": String("edge")}}))
	assert.False(t, and.Matches(fakeSubject{id: 7, props: Properties{"zone": String("core")}}))

	or := NewFilter(OrPredicate{Children: []Predicate{
		ServiceIDPredicate{ID: 1},
		ServiceIDPredicate{ID: 2},
	}})
	assert.True(t, or.Matches(fakeSubject{id: 2}))
	assert.False(t, or.Matches(fakeSubject{id: 3}))

	// Empty conjunction matches, empty disjunction does not.
	assert.True(t, NewFilter(AndPredicate{}).Matches(fakeSubject{id: 1}))
	assert.False(t, NewFilter(OrPredicate{}).Matches(fakeSubject{id: 1}))
}
