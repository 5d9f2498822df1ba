package simhost

import (
	"sync"
	"unsafe"

	"github.com/justyntemme/gomedian/pkg/max"
)

// NamespaceJitter is the namespace Jitter classes register in.
const NamespaceJitter = "jitter"

type mop struct {
	inputs, outputs int
}

type matrix struct {
	info max.MatrixInfo
	data []uint64
	lock int64
}

type matrixList struct {
	items []unsafe.Pointer
}

// ElemSize returns the byte size of a matrix element type, or 0.
func ElemSize(typ string) int64 {
	switch typ {
	case max.SymChar:
		return 1
	case max.SymLong, max.SymFloat32:
		return 4
	case max.SymFloat64:
		return 8
	}
	return 0
}

// JitClassNew creates an unregistered Jitter class.
func (h *Host) JitClassNew(name string, newFn max.JitNewMethod, freeFn max.FreeMethod, size uintptr) max.Class {
	if name == "" || newFn == nil {
		return 0
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	c := h.newClass(name, size)
	c.jit = true
	c.jitNew = newFn
	c.freeFn = freeFn
	return c.handle
}

// JitClassAddMethod adds a method to a Jitter class.
func (h *Host) JitClassAddMethod(c max.Class, name string, m max.Method, kinds ...max.AtomType) max.Err {
	return h.addMethod(c, name, m, kinds)
}

// JitClassAddAttr adds an attribute to a Jitter class.
func (h *Host) JitClassAddAttr(c max.Class, a max.Attr) max.Err {
	return h.ClassAddAttr(c, a)
}

// JitMOPNew creates a matrix operator adornment. A negative count means a
// variable number of matrices.
func (h *Host) JitMOPNew(inputs, outputs int) max.MOP {
	h.mu.Lock()
	defer h.mu.Unlock()
	m := max.MOP(h.handle())
	h.mops[m] = &mop{inputs: inputs, outputs: outputs}
	return m
}

// JitClassAddAdornment attaches a matrix operator adornment to a class.
func (h *Host) JitClassAddAdornment(c max.Class, m max.MOP) max.Err {
	h.mu.Lock()
	defer h.mu.Unlock()
	cl, ok := h.classes[c]
	if !ok {
		return max.ErrInvalidPtr
	}
	ad, ok := h.mops[m]
	if !ok {
		return max.ErrInvalidPtr
	}
	cl.mop = ad
	return max.ErrNone
}

// JitClassRegister registers a Jitter class.
func (h *Host) JitClassRegister(c max.Class) max.Err {
	return h.ClassRegister(h.Gensym(NamespaceJitter), c)
}

// JitObjectAlloc allocates a Jitter instance.
func (h *Host) JitObjectAlloc(c max.Class) unsafe.Pointer {
	return h.allocObject(c)
}

// JitObjectFree destroys a Jitter instance.
func (h *Host) JitObjectFree(obj unsafe.Pointer) {
	h.ObjectFree(obj)
}

// NewJitObject instantiates a registered Jitter class.
func (h *Host) NewJitObject(name string) (unsafe.Pointer, error) {
	h.mu.Lock()
	cl, ok := h.byName[NamespaceJitter+"/"+name]
	h.mu.Unlock()
	if !ok {
		return nil, errorf("no jitter class named %q", name)
	}
	var p unsafe.Pointer
	h.onThread(ThreadMain, func() { p = cl.jitNew() })
	if p == nil {
		return nil, errorf("could not create %q", name)
	}
	return p, nil
}

// MOPCounts returns the matrix operator input and output counts of a class.
func (h *Host) MOPCounts(className string) (inputs, outputs int, ok bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	cl, found := h.byName[NamespaceJitter+"/"+className]
	if !found || cl.mop == nil {
		return 0, 0, false
	}
	return cl.mop.inputs, cl.mop.outputs, true
}

// NewMatrix allocates a packed matrix.
func (h *Host) NewMatrix(typ string, planecount int, dims ...int) unsafe.Pointer {
	return h.NewMatrixPadded(typ, planecount, 0, dims...)
}

// NewMatrixPadded allocates a matrix whose rows carry rowPad bytes of padding.
func (h *Host) NewMatrixPadded(typ string, planecount int, rowPad int, dims ...int) unsafe.Pointer {
	info := max.MatrixInfo{
		Type:       h.Gensym(typ),
		DimCount:   int64(len(dims)),
		PlaneCount: int64(planecount),
	}
	for i, d := range dims {
		info.Dim[i] = int64(d)
	}
	m := &matrix{}
	m.setInfo(info, int64(rowPad))
	h.mu.Lock()
	defer h.mu.Unlock()
	p := unsafe.Pointer(m)
	h.matrices[p] = m
	return p
}

func (m *matrix) setInfo(info max.MatrixInfo, rowPad int64) {
	stride := ElemSize(info.Type.Name()) * info.PlaneCount
	for i := int64(0); i < info.DimCount; i++ {
		info.DimStride[i] = stride
		stride *= info.Dim[i]
		if i == 0 {
			stride += rowPad
		}
	}
	for i := info.DimCount; i < max.MatrixMaxDimCount; i++ {
		info.DimStride[i] = 0
	}
	info.Size = stride
	m.info = info
	m.data = nil
	if stride > 0 {
		m.data = make([]uint64, (stride+7)/8)
	}
}

func (h *Host) matrix(p unsafe.Pointer) *matrix {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.matrices[p]
}

// FreeMatrix releases a matrix.
func (h *Host) FreeMatrix(p unsafe.Pointer) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.matrices, p)
}

// MatrixBytes exposes the backing bytes of a matrix.
func (h *Host) MatrixBytes(p unsafe.Pointer) []byte {
	m := h.matrix(p)
	if m == nil || m.data == nil {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(&m.data[0])), m.info.Size)
}

// DropMatrixData detaches the backing buffer so the matrix reports a nil
// data pointer.
func (h *Host) DropMatrixData(p unsafe.Pointer) {
	if m := h.matrix(p); m != nil {
		m.data = nil
	}
}

// MatrixLockState returns the current lock value of a matrix.
func (h *Host) MatrixLockState(p unsafe.Pointer) int64 {
	if m := h.matrix(p); m != nil {
		return m.lock
	}
	return 0
}

// MatrixLock sets the lock value and returns the previous one.
func (h *Host) MatrixLock(p unsafe.Pointer, lock int64) int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	m, ok := h.matrices[p]
	if !ok {
		return 0
	}
	prev := m.lock
	m.lock = lock
	return prev
}

// MatrixGetInfo copies out a matrix description.
func (h *Host) MatrixGetInfo(p unsafe.Pointer, info *max.MatrixInfo) max.Err {
	m := h.matrix(p)
	if m == nil || info == nil {
		return max.ErrInvalidPtr
	}
	*info = m.info
	return max.ErrNone
}

// MatrixSetInfo reshapes a matrix, reallocating packed storage.
func (h *Host) MatrixSetInfo(p unsafe.Pointer, info *max.MatrixInfo) max.Err {
	m := h.matrix(p)
	if m == nil || info == nil {
		return max.ErrInvalidPtr
	}
	if ElemSize(info.Type.Name()) == 0 || info.DimCount < 1 || info.DimCount > max.MatrixMaxDimCount || info.PlaneCount < 1 || info.PlaneCount > max.MatrixMaxPlaneCount {
		return max.ErrGeneric
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	m.setInfo(*info, 0)
	return max.ErrNone
}

// MatrixGetData returns the matrix buffer, or nil when it has none.
func (h *Host) MatrixGetData(p unsafe.Pointer) unsafe.Pointer {
	m := h.matrix(p)
	if m == nil || m.data == nil {
		return nil
	}
	return unsafe.Pointer(&m.data[0])
}

// NewMatrixList bundles matrices the way matrix_calc receives them.
func (h *Host) NewMatrixList(ms ...unsafe.Pointer) unsafe.Pointer {
	l := &matrixList{items: append([]unsafe.Pointer(nil), ms...)}
	p := unsafe.Pointer(l)
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lists[p] = l
	return p
}

// FreeMatrixList releases a list made by NewMatrixList.
func (h *Host) FreeMatrixList(p unsafe.Pointer) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.lists, p)
}

// MatrixListSize returns the number of matrices in a list.
func (h *Host) MatrixListSize(list unsafe.Pointer) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	if l, ok := h.lists[list]; ok {
		return len(l.items)
	}
	return 0
}

// MatrixListIndex returns the i-th matrix of a list, or nil.
func (h *Host) MatrixListIndex(list unsafe.Pointer, i int) unsafe.Pointer {
	h.mu.Lock()
	defer h.mu.Unlock()
	l, ok := h.lists[list]
	if !ok || i < 0 || i >= len(l.items) {
		return nil
	}
	return l.items[i]
}

// CalcMatrix runs the matrix_calc method of a Jitter instance.
func (h *Host) CalcMatrix(obj unsafe.Pointer, inputs, outputs []unsafe.Pointer) (max.JitErr, error) {
	o, err := h.object(obj)
	if err != nil {
		return max.JitErrInvalidPtr, err
	}
	m := o.class.lookup(max.SymMatrixCalc)
	if m == nil {
		return max.JitErrGeneric, errorf("%s has no matrix_calc method", o.class.name)
	}
	fn, ok := m.fn.(max.MatrixCalcMethod)
	if !ok {
		return max.JitErrGeneric, errorf("%s: matrix_calc has the wrong shape", o.class.name)
	}
	in := h.NewMatrixList(inputs...)
	out := h.NewMatrixList(outputs...)
	defer h.FreeMatrixList(in)
	defer h.FreeMatrixList(out)
	var code max.JitErr
	h.onThread(ThreadMain, func() { code = fn(obj, in, out) })
	return code, nil
}

type span struct{ start, n int64 }

// split divides the outermost dimension into at most h.workers spans.
func (h *Host) split(dimcount int, dim []int64) (int, []span) {
	sd := dimcount - 1
	total := dim[sd]
	workers := int64(h.workers)
	if workers > total {
		workers = total
	}
	if workers < 1 {
		return sd, nil
	}
	spans := make([]span, 0, workers)
	base, rem := total/workers, total%workers
	var start int64
	for i := int64(0); i < workers; i++ {
		n := base
		if i < rem {
			n++
		}
		spans = append(spans, span{start: start, n: n})
		start += n
	}
	return sd, spans
}

func offset(bp unsafe.Pointer, mi *max.MatrixInfo, sd int, start int64, flags int) unsafe.Pointer {
	if bp == nil || flags&max.ParallelFullMatrix != 0 {
		return bp
	}
	return unsafe.Add(bp, start*mi.DimStride[sd])
}

// ParallelNDimSimpleCalc2 splits the outermost dimension across the worker
// pool and calls fn once per slab.
func (h *Host) ParallelNDimSimpleCalc2(fn max.ParallelCalc2, dimcount int, dim []int64, planecount int, mi0 *max.MatrixInfo, bp0 unsafe.Pointer, mi1 *max.MatrixInfo, bp1 unsafe.Pointer, flags0, flags1 int) {
	if dimcount < 1 {
		return
	}
	sd, spans := h.split(dimcount, dim)
	var wg sync.WaitGroup
	for _, s := range spans {
		sub := append([]int64(nil), dim[:dimcount]...)
		sub[sd] = s.n
		a := offset(bp0, mi0, sd, s.start, flags0)
		b := offset(bp1, mi1, sd, s.start, flags1)
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn(dimcount, sub, planecount, mi0, a, mi1, b)
		}()
	}
	wg.Wait()
}

// ParallelNDimSimpleCalc3 is the three operand form of ParallelNDimSimpleCalc2.
func (h *Host) ParallelNDimSimpleCalc3(fn max.ParallelCalc3, dimcount int, dim []int64, planecount int, mi0 *max.MatrixInfo, bp0 unsafe.Pointer, mi1 *max.MatrixInfo, bp1 unsafe.Pointer, mi2 *max.MatrixInfo, bp2 unsafe.Pointer, flags0, flags1, flags2 int) {
	if dimcount < 1 {
		return
	}
	sd, spans := h.split(dimcount, dim)
	var wg sync.WaitGroup
	for _, s := range spans {
		sub := append([]int64(nil), dim[:dimcount]...)
		sub[sd] = s.n
		a := offset(bp0, mi0, sd, s.start, flags0)
		b := offset(bp1, mi1, sd, s.start, flags1)
		c := offset(bp2, mi2, sd, s.start, flags2)
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn(dimcount, sub, planecount, mi0, a, mi1, b, mi2, c)
		}()
	}
	wg.Wait()
}
