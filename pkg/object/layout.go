// Package object maps host instance memory to Go payloads.
//
// A host instance is laid out as {host header}{handle slot}. The slot holds a
// uintptr handle into a Table; Go values are never stored in host memory.
// Recover is the only code that reads the slot.
package object

import (
	"unsafe"

	"github.com/justyntemme/gomedian/pkg/max"
)

// Layout is the byte layout shared by every instance of one class. It is
// computed once when the class is registered and never changes.
type Layout struct {
	Kind          max.HeaderKind
	HeaderSize    uintptr
	PayloadOffset uintptr
	InstanceSize  uintptr
}

const (
	slotSize  = unsafe.Sizeof(uintptr(0))
	slotAlign = unsafe.Alignof(uintptr(0))
)

// NewLayout computes the layout for instances headed by a host struct of kind.
func NewLayout(rt max.Classes, kind max.HeaderKind) Layout {
	header := rt.HeaderSize(kind)
	off := alignUp(header, slotAlign)
	return Layout{
		Kind:          kind,
		HeaderSize:    header,
		PayloadOffset: off,
		InstanceSize:  off + slotSize,
	}
}

func alignUp(n, align uintptr) uintptr {
	return (n + align - 1) &^ (align - 1)
}

func (l Layout) slot(self unsafe.Pointer) *uintptr {
	return (*uintptr)(unsafe.Add(self, l.PayloadOffset))
}
