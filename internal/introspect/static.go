package introspect

import "github.com/jward/sceneref/internal/model"

// StaticType is an in-memory TypeIntrospectable, for symbol tables built by
// hand or by an ecosystem without runtime reflection.
type StaticType struct {
	ID         model.TypeIdentity
	Base       string // empty means no base type
	Fields     []FieldInfo
	Methods    []MethodInfo
	Properties []PropertyInfo

	// Faults makes the accessor for the given member kind and index fail.
	Faults map[model.MemberKind]map[int]error
}

var _ TypeIntrospectable = (*StaticType)(nil)

func (s *StaticType) Identity() model.TypeIdentity { return s.ID }

func (s *StaticType) BaseType() (string, bool) { return s.Base, s.Base != "" }

func (s *StaticType) fault(kind model.MemberKind, i int) error {
	return s.Faults[kind][i]
}

func (s *StaticType) NumField() int { return len(s.Fields) }

func (s *StaticType) Field(i int) (FieldInfo, error) {
	if err := s.fault(model.Field, i); err != nil {
		return FieldInfo{}, err
	}
	return s.Fields[i], nil
}

func (s *StaticType) NumMethod() int { return len(s.Methods) }

func (s *StaticType) Method(i int) (MethodInfo, error) {
	if err := s.fault(model.Method, i); err != nil {
		return MethodInfo{}, err
	}
	return s.Methods[i], nil
}

func (s *StaticType) NumProperty() int { return len(s.Properties) }

func (s *StaticType) Property(i int) (PropertyInfo, error) {
	if err := s.fault(model.Property, i); err != nil {
		return PropertyInfo{}, err
	}
	return s.Properties[i], nil
}
