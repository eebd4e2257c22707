package geom

// This file holds the two distance kernels the candidate searches are built
// on: unsigned squared point-to-triangle distance and the conservative
// squared box-vs-point test used for cell pruning.

func sign(v float32) float32 {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}

// edgeDistSq returns the squared distance from p to the segment a+t*e with t
// clamped to [0, 1]. e is the precomputed edge vector, pa = p - a.
func edgeDistSq(e, pa Vec3) float32 {
	den := e.LengthSq()
	var t float32
	if den > 0 {
		t = clamp01(e.Dot(pa) / den)
	}
	return e.Scale(t).Sub(pa).LengthSq()
}

// USDTriangle returns the unsigned squared distance from p to triangle abc.
//
// Region classification follows the Quilez formulation: if the signs of the
// three edge-plane tests sum below 2, the closest feature is an edge (or
// vertex) and the result is the minimum clamped edge projection; otherwise
// the foot of the perpendicular lies inside the face.
func USDTriangle(p, a, b, c Vec3) float32 {
	ba := b.Sub(a)
	pa := p.Sub(a)
	cb := c.Sub(b)
	pb := p.Sub(b)
	ac := a.Sub(c)
	pc := p.Sub(c)
	n := ba.Cross(ac)

	inside := sign(ba.Cross(n).Dot(pa)) +
		sign(cb.Cross(n).Dot(pb)) +
		sign(ac.Cross(n).Dot(pc))
	if inside < 2 {
		d := edgeDistSq(ba, pa)
		if e := edgeDistSq(cb, pb); e < d {
			d = e
		}
		if e := edgeDistSq(ac, pc); e < d {
			d = e
		}
		return d
	}
	nn := n.LengthSq()
	if nn == 0 {
		// Degenerate triangle; every foot is an edge foot.
		return edgeDistSq(ba, pa)
	}
	t := n.Dot(pa)
	return t * t / nn
}

// SDSBox is the squared-distance box test used for cell pruning: d is the
// offset from the query point to the box centre, halfExtent the box
// half-width. The result compares against a squared search diameter; it is
// negative-biased inside the box so interior cells always pass.
func SDSBox(d Vec3, halfExtent float32) float32 {
	q := Vec3{absf(d.X) - halfExtent, absf(d.Y) - halfExtent, absf(d.Z) - halfExtent}
	outside := q.Max(Vec3{}).LengthSq()
	inside := min(max(q.X, max(q.Y, q.Z)), 0)
	return outside + inside
}

func absf(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}
