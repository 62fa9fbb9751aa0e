package property

// Subject is what a Filter evaluates against: a candidate service's id and
// properties. The container's lifecycle records implement it.
type Subject interface {
	ServiceID() uint64
	Property(key string) (Value, bool)
}

// Predicate is one clause of a Filter.
type Predicate interface {
	Matches(s Subject) bool
}

// Filter is an injection predicate stored under the "Filter" property key.
// On a provider it scopes which consumers the provider is wired into; on a
// consumer it scopes which providers the consumer accepts. A Filter with no
// predicates matches everything.
type Filter struct {
	predicates []Predicate
}

// NewFilter builds a filter that matches when every predicate matches.
func NewFilter(predicates ...Predicate) *Filter {
	return &Filter{predicates: predicates}
}

// Matches reports whether the subject satisfies every predicate.
func (f *Filter) Matches(s Subject) bool {
	if f == nil {
		return true
	}
	for _, p := range f.predicates {
		if !p.Matches(s) {
			return false
		}
	}
	return true
}

// ServiceIDPredicate matches a single service id.
type ServiceIDPredicate struct {
	ID uint64
}

// Matches implements Predicate.
func (p ServiceIDPredicate) Matches(s Subject) bool {
	return s.ServiceID() == p.ID
}

// PropertyPredicate matches when the subject has the key with an equal value.
type PropertyPredicate struct {
	Key   string
	Value Value
}

// Matches implements Predicate.
func (p PropertyPredicate) Matches(s Subject) bool {
	v, ok := s.Property(p.Key)
	return ok && v.Equal(p.Value)
}

// AndPredicate matches when all children match. An empty conjunction matches.
type AndPredicate struct {
	Children []Predicate
}

// Matches implements Predicate.
func (p AndPredicate) Matches(s Subject) bool {
	for _, c := range p.Children {
		if !c.Matches(s) {
			return false
		}
	}
	return true
}

// OrPredicate matches when at least one child matches. An empty disjunction
// does not match.
type OrPredicate struct {
	Children []Predicate
}

// Matches implements Predicate.
func (p OrPredicate) Matches(s Subject) bool {
	for _, c := range p.Children {
		if c.Matches(s) {
			return true
		}
	}
	return false
}

// ByServiceID is shorthand for a filter matching exactly one service id.
// Trackers use it to scope runtime-created providers to their requester.
func ByServiceID(id uint64) *Filter {
	return NewFilter(ServiceIDPredicate{ID: id})
}
