// Package dma provides the scatter-gather descriptor table and the DMA
// reader and writer engine components.
package dma

// A Descriptor describes one scatter-gather transfer unit.
type Descriptor struct {
	Address uint64
	Length  uint32
}

// PackDescriptor encodes a descriptor into the single value used on the
// descriptor programming bus. The low 32 bits hold the address and the bits
// above hold the length.
func PackDescriptor(d Descriptor) uint64 {
	return (d.Address & 0xffffffff) | (uint64(d.Length) << 32)
}

// UnpackDescriptor decodes a programming-bus value into a descriptor.
func UnpackDescriptor(v uint64) Descriptor {
	return Descriptor{
		Address: v & 0xffffffff,
		Length:  uint32(v >> 32),
	}
}
