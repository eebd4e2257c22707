package compute

import "github.com/simkit/collide/geom"

// Caller-supplied element layouts. The encoding tag is resolved to a
// monomorphised reader function once, at dispatch setup, so kernels index
// with a fixed stride and never branch on layout.

// Encoding names a position element layout.
type Encoding uint8

const (
	// Float32x3 is three consecutive f32 per element (12-byte stride).
	Float32x3 Encoding = iota
	// Float32x3Aligned is f32x3 with one f32 of lane padding (16-byte
	// stride); the fourth lane is never read.
	Float32x3Aligned
	// Float32x4 is four f32 per element with w unused (16-byte stride).
	Float32x4
)

func (e Encoding) String() string {
	switch e {
	case Float32x3:
		return "f32x3"
	case Float32x3Aligned:
		return "f32x3-aligned"
	case Float32x4:
		return "f32x4"
	}
	return "invalid"
}

// stride returns the f32 lane count per element, or 0 for unknown tags.
func (e Encoding) stride() int {
	switch e {
	case Float32x3:
		return 3
	case Float32x3Aligned, Float32x4:
		return 4
	}
	return 0
}

// Positions is a caller-owned position buffer plus its layout. The indexes
// read it only for the duration of one build or find call.
type Positions struct {
	Data []float32
	Enc  Encoding
	N    int
}

// Reader validates the buffer shape and returns an element accessor bound to
// the encoding. Only the x, y, z lanes are ever consumed.
func (p Positions) Reader() (func(i int) geom.Vec3, error) {
	stride := p.Enc.stride()
	if stride == 0 {
		return nil, EncodingUnsupportedf("position encoding tag %d", p.Enc)
	}
	if p.N < 0 {
		return nil, BufferShapef("negative position count %d", p.N)
	}
	if len(p.Data) < stride*p.N {
		return nil, BufferShapef("position buffer holds %d f32, need %d for %d %s elements",
			len(p.Data), stride*p.N, p.N, p.Enc)
	}
	d := p.Data
	if stride == 3 {
		return func(i int) geom.Vec3 {
			j := 3 * i
			return geom.Vec3{X: d[j], Y: d[j+1], Z: d[j+2]}
		}, nil
	}
	return func(i int) geom.Vec3 {
		j := 4 * i
		return geom.Vec3{X: d[j], Y: d[j+1], Z: d[j+2]}
	}, nil
}

// TriEncoding names a triangle index-triple layout.
type TriEncoding uint8

const (
	// U32x3 is three consecutive u32 per triangle.
	U32x3 TriEncoding = iota
	// U32x3Aligned is u32x3 with one u32 of lane padding.
	U32x3Aligned
)

// Triangles is a caller-owned triangle index buffer plus its layout. Each
// triple references elements of a companion Positions buffer.
type Triangles struct {
	Data []uint32
	Enc  TriEncoding
	M    int
}

// Reader validates the buffer shape and returns a triple accessor.
func (t Triangles) Reader() (func(g int) (a, b, c uint32), error) {
	var stride int
	switch t.Enc {
	case U32x3:
		stride = 3
	case U32x3Aligned:
		stride = 4
	default:
		return nil, EncodingUnsupportedf("triangle encoding tag %d", t.Enc)
	}
	if t.M < 0 {
		return nil, BufferShapef("negative triangle count %d", t.M)
	}
	if len(t.Data) < stride*t.M {
		return nil, BufferShapef("triangle buffer holds %d u32, need %d for %d triangles",
			len(t.Data), stride*t.M, t.M)
	}
	d := t.Data
	if stride == 3 {
		return func(g int) (uint32, uint32, uint32) {
			j := 3 * g
			return d[j], d[j+1], d[j+2]
		}, nil
	}
	return func(g int) (uint32, uint32, uint32) {
		j := 4 * g
		return d[j], d[j+1], d[j+2]
	}, nil
}
