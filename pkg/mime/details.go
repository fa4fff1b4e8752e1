package mime

import "strings"

// IsSubClassOf Test if the current item is a subclass of the type
func (m *Details) IsSubClassOf(class string) bool {
	for _, sc := range m.SubClass {
		if strings.EqualFold(class, sc) {
			return true
		}
	}
	return false
}

// IsSubClass Is this mime type a subclass type
func (m *Details) IsSubClass() bool {
	return len(m.SubClass) > 0
}

// Matches Test if the type is covered by any of the given types
//
// An entry matches on the exact type, on any parent type, on the
// catagory (`text` or `text/*`) or on the wildcard `*`.
func (m *Details) Matches(types []string) bool {
	for _, t := range types {
		t = strings.TrimSpace(t)
		switch {
		case t == "*":
			return true
		case strings.EqualFold(t, m.Type):
			return true
		case m.IsSubClassOf(t):
			return true
		case strings.EqualFold(strings.TrimSuffix(t, "/*"), m.Catagory):
			return true
		}
	}
	return false
}
