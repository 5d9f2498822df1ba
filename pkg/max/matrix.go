package max

// Jitter matrix limits.
const (
	MatrixMaxDimCount   = 32
	MatrixMaxPlaneCount = 32
)

// Parallel calculation flags, one per operand.
const (
	// ParallelFullMatrix keeps an operand whole instead of splitting it
	// across workers.
	ParallelFullMatrix = 1
)

// MatrixInfo mirrors t_jit_matrix_info. It describes a matrix buffer without
// owning it.
type MatrixInfo struct {
	Size       int64
	Type       *Symbol
	Flags      int64
	DimCount   int64
	Dim        [MatrixMaxDimCount]int64
	DimStride  [MatrixMaxDimCount]int64
	PlaneCount int64
}
