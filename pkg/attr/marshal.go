package attr

import "github.com/justyntemme/gomedian/pkg/max"

// Get answers a host get request with the atom produced by fn. When the host
// passes no storage, one atom is allocated through the host allocator. The
// atom lands in host memory, so see max.AtomsAt for what it may point at.
func Get(alloc max.Allocator, ac *int64, av **max.Atom, fn func() max.Atom) max.Err {
	if ac == nil || av == nil {
		return max.ErrInvalidPtr
	}
	if *ac == 0 || *av == nil {
		p := alloc.SysmemNewPtr(max.AtomSize)
		if p == nil {
			return max.ErrOutOfMem
		}
		*av = (*max.Atom)(p)
		*ac = 1
	}
	**av = fn()
	return max.ErrNone
}

// Set hands the first atom of a host set request to fn. A request with no
// atoms or no atom storage is ignored.
func Set(ac int64, av *max.Atom, fn func(*max.Atom) error) max.Err {
	if ac == 0 || av == nil {
		return max.ErrNone
	}
	return max.ToErr(fn(av))
}
