package geom

import "github.com/x448/float16"

// The indexes mirror positions as 3×f16 to halve the memory traffic of the
// candidate scans. Helpers below are the only code that touches the f16 bit
// patterns; everything else works in float32.

// PackHalf3 stores v as three consecutive f16 lanes at dst[3i:3i+3].
func PackHalf3(dst []uint16, i int, v Vec3) {
	j := 3 * i
	dst[j] = uint16(float16.Fromfloat32(v.X))
	dst[j+1] = uint16(float16.Fromfloat32(v.Y))
	dst[j+2] = uint16(float16.Fromfloat32(v.Z))
}

// UnpackHalf3 loads the three f16 lanes at src[3i:3i+3].
func UnpackHalf3(src []uint16, i int) Vec3 {
	j := 3 * i
	return Vec3{
		float16.Float16(src[j]).Float32(),
		float16.Float16(src[j+1]).Float32(),
		float16.Float16(src[j+2]).Float32(),
	}
}

// RoundHalf returns v after a round trip through f16 storage. Tests use it to
// predict exactly what the candidate scans will read back.
func RoundHalf(v Vec3) Vec3 {
	return Vec3{
		float16.Fromfloat32(v.X).Float32(),
		float16.Fromfloat32(v.Y).Float32(),
		float16.Fromfloat32(v.Z).Float32(),
	}
}
