package compute

import "unsafe"

// Typed views over allocator-backed byte regions. Each wrapper is a plain
// record of the raw bytes and an element count; element access goes through
// one unsafe reinterpretation at construction time and is ordinary slice
// indexing afterwards. There is no dynamic dispatch on element type.

// U32Buffer is an n-element uint32 buffer.
type U32Buffer struct {
	raw []byte
	s   []uint32
}

// U64Buffer is an n-element uint64 buffer.
type U64Buffer struct {
	raw []byte
	s   []uint64
}

// U16Buffer is an n-element uint16 buffer (f16 lanes are stored here).
type U16Buffer struct {
	raw []byte
	s   []uint16
}

// NewU32 allocates an n-element uint32 buffer from a.
func NewU32(a Allocator, n int) (*U32Buffer, error) {
	raw, err := a.AllocBytes(4 * n)
	if err != nil {
		return nil, err
	}
	return &U32Buffer{raw: raw, s: castSlice[uint32](raw, n)}, nil
}

// NewU64 allocates an n-element uint64 buffer from a.
func NewU64(a Allocator, n int) (*U64Buffer, error) {
	raw, err := a.AllocBytes(8 * n)
	if err != nil {
		return nil, err
	}
	return &U64Buffer{raw: raw, s: castSlice[uint64](raw, n)}, nil
}

// NewU16 allocates an n-element uint16 buffer from a.
func NewU16(a Allocator, n int) (*U16Buffer, error) {
	raw, err := a.AllocBytes(2 * n)
	if err != nil {
		return nil, err
	}
	return &U16Buffer{raw: raw, s: castSlice[uint16](raw, n)}, nil
}

// Slice returns the element view. The slice aliases the buffer; it is valid
// until the backing allocator releases its region.
func (b *U32Buffer) Slice() []uint32 { return b.s }

// Slice returns the element view.
func (b *U64Buffer) Slice() []uint64 { return b.s }

// Slice returns the element view.
func (b *U16Buffer) Slice() []uint16 { return b.s }

// Len returns the element count.
func (b *U32Buffer) Len() int { return len(b.s) }

// Len returns the element count.
func (b *U64Buffer) Len() int { return len(b.s) }

// Len returns the element count.
func (b *U16Buffer) Len() int { return len(b.s) }

func castSlice[T any](raw []byte, n int) []T {
	if n == 0 {
		return nil
	}
	return unsafe.Slice((*T)(unsafe.Pointer(&raw[0])), n)
}
