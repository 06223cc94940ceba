package feature

// Selector chooses the entities a Remove, Hide or Show call applies to.
// Ids and attribute objects must name existing entities; a predicate may
// match none.
type Selector struct {
	ids   []string
	attrs []Attributes
	pred  func(*Feature) bool
}

// IDs selects entities by id.
func IDs(ids ...string) Selector {
	return Selector{ids: ids}
}

// Attrs selects entities by the id derived from each attribute object.
func Attrs(attrs ...Attributes) Selector {
	return Selector{attrs: attrs}
}

// Where selects every entity the predicate accepts.
func Where(pred func(*Feature) bool) Selector {
	return Selector{pred: pred}
}

// Features selects the given entities by id.
func Features(fs ...*Feature) Selector {
	ids := make([]string, len(fs))
	for i, f := range fs {
		ids[i] = f.id
	}
	return Selector{ids: ids}
}

func (s Selector) isPredicate() bool {
	return s.pred != nil
}
