package decl

// File holds the declarations parsed from one source file.
type File struct {
	Variables []*Variable
	Locals    []*Local
	Resources []*Resource
	Backends  []*Backend
}

// Set is the merged view of every declaration file in a directory.
// Resources keep their declaration order; lookups go through the
// address index.
type Set struct {
	Variables map[string]*Variable
	Locals    map[string]*Local
	Resources []*Resource
	Backend   *Backend

	byAddress map[string]*Resource
}

// BuildSet merges parsed files into a single set, rejecting duplicate
// names and multiple backend blocks.
func BuildSet(files []*File) (*Set, error) {
	s := &Set{
		Variables: map[string]*Variable{},
		Locals:    map[string]*Local{},
		byAddress: map[string]*Resource{},
	}

	for _, f := range files {
		for _, v := range f.Variables {
			if prev, ok := s.Variables[v.Name]; ok {
				return nil, ParseErrorf("%s: variable %q already declared at %s", v.DeclRange, v.Name, prev.DeclRange)
			}
			s.Variables[v.Name] = v
		}
		for _, l := range f.Locals {
			if prev, ok := s.Locals[l.Name]; ok {
				return nil, ParseErrorf("%s: local %q already declared at %s", l.DeclRange, l.Name, prev.DeclRange)
			}
			s.Locals[l.Name] = l
		}
		for _, r := range f.Resources {
			if prev, ok := s.byAddress[r.Address()]; ok {
				return nil, ParseErrorf("%s: resource %q already declared at %s", r.DeclRange, r.Address(), prev.DeclRange)
			}
			s.byAddress[r.Address()] = r
			s.Resources = append(s.Resources, r)
		}
		for _, b := range f.Backends {
			if s.Backend != nil {
				return nil, ParseErrorf("%s: duplicate backend block; %q already configured at %s", b.DeclRange, s.Backend.Type, s.Backend.DeclRange)
			}
			s.Backend = b
		}
	}

	return s, nil
}

// Resource looks up a resource by its type.name address.
func (s *Set) Resource(addr string) (*Resource, bool) {
	r, ok := s.byAddress[addr]
	return r, ok
}

// HasResourceType reports whether any resource declares the given type.
func (s *Set) HasResourceType(typ string) bool {
	for _, r := range s.Resources {
		if r.Type == typ {
			return true
		}
	}
	return false
}
