package dma

import "errors"

// TableMode selects how the read pointer behaves after the programmed
// entries are exhausted.
type TableMode int

// The two descriptor table modes.
const (
	// ModeProgramming consumes each programmed descriptor once, in order.
	ModeProgramming TableMode = iota

	// ModeLoop replays the programmed sequence cyclically forever.
	ModeLoop
)

// Errors returned by descriptor table operations.
var (
	ErrTableFull  = errors.New("descriptor table is full")
	ErrZeroLength = errors.New("descriptor length is zero")
	ErrNotFlushed = errors.New("descriptor table not flushed")
)

// A DescriptorTable is a circular table of descriptors owned by one engine.
//
// The table must be flushed after construction and after every mode change
// before descriptors can be programmed.
type DescriptorTable struct {
	capacity    int
	mode        TableMode
	descriptors []Descriptor
	readPtr     int
	flushed     bool
}

// NewDescriptorTable creates a descriptor table with a fixed capacity.
func NewDescriptorTable(capacity int) *DescriptorTable {
	t := new(DescriptorTable)
	t.capacity = capacity
	return t
}

// SetMode selects programming or loop mode. A flush is required before the
// table can be programmed again.
func (t *DescriptorTable) SetMode(mode TableMode) {
	t.mode = mode
	t.flushed = false
}

// Mode returns the current table mode.
func (t *DescriptorTable) Mode() TableMode {
	return t.mode
}

// Flush resets the read and write pointers and discards all programmed
// descriptors, including any in-flight replay position.
func (t *DescriptorTable) Flush() {
	t.descriptors = t.descriptors[:0]
	t.readPtr = 0
	t.flushed = true
}

// Program appends a descriptor at the write pointer.
func (t *DescriptorTable) Program(d Descriptor) error {
	if !t.flushed {
		return ErrNotFlushed
	}

	if d.Length == 0 {
		return ErrZeroLength
	}

	if len(t.descriptors) >= t.capacity {
		return ErrTableFull
	}

	t.descriptors = append(t.descriptors, d)

	return nil
}

// Count returns the number of programmed descriptors.
func (t *DescriptorTable) Count() int {
	return len(t.descriptors)
}

// Next returns the descriptor at the read pointer and advances it. In
// programming mode the table is exhausted once every programmed descriptor
// has been returned. In loop mode the read pointer wraps modulo the
// programmed count and the table never exhausts as long as at least one
// descriptor was programmed.
func (t *DescriptorTable) Next() (Descriptor, bool) {
	if len(t.descriptors) == 0 {
		return Descriptor{}, false
	}

	if t.readPtr >= len(t.descriptors) {
		if t.mode != ModeLoop {
			return Descriptor{}, false
		}

		t.readPtr = 0
	}

	d := t.descriptors[t.readPtr]
	t.readPtr++

	return d, true
}
