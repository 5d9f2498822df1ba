package external

// Block is the audio block handed to Perform. Its channel slices view host
// memory and are only valid until Perform returns.
type Block struct {
	Input      [][]float64
	Output     [][]float64
	Frames     int
	SampleRate float64

	// Views sized at construction to the instance's signal topology.
	inputs  [][]float64
	outputs [][]float64
}

func newBlock(ins, outs int) Block {
	return Block{
		inputs:  make([][]float64, ins),
		outputs: make([][]float64, outs),
	}
}

// NumInputs returns the number of input channels in this block.
func (b *Block) NumInputs() int { return len(b.Input) }

// NumOutputs returns the number of output channels in this block.
func (b *Block) NumOutputs() int { return len(b.Output) }

// PassThrough copies each input to the output of the same index.
func (b *Block) PassThrough() {
	n := min(len(b.Input), len(b.Output))
	for ch := 0; ch < n; ch++ {
		copy(b.Output[ch], b.Input[ch])
	}
}

// Clear zeroes the outputs.
func (b *Block) Clear() {
	for _, out := range b.Output {
		clear(out)
	}
}

// release drops every view so no host memory outlives the call.
func (b *Block) release() {
	clear(b.inputs)
	clear(b.outputs)
	b.Input = nil
	b.Output = nil
	b.Frames = 0
}
