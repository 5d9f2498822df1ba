package max

// Symbol is an interned string handle. Hosts hand out exactly one *Symbol per
// distinct name, so symbols compare by pointer.
type Symbol struct {
	name string
}

// NewSymbol creates an uninterned symbol. Only Runtime implementations should
// call it; everyone else goes through Runtime.Gensym.
func NewSymbol(name string) *Symbol {
	return &Symbol{name: name}
}

// Name returns the symbol text. The nil symbol reads as the empty string.
func (s *Symbol) Name() string {
	if s == nil {
		return ""
	}
	return s.name
}

func (s *Symbol) String() string {
	return s.Name()
}
