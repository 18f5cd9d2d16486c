package mathx

func FloorDiv(a, b int) int {
	// b > 0
	q := a / b
	r := a % b
	if r < 0 {
		q--
	}
	return q
}

func Mod(a, b int) int {
	// b > 0
	m := a % b
	if m < 0 {
		m += b
	}
	return m
}

func AbsInt(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

// DistSq3 is the squared euclidean distance between two integer points.
func DistSq3(ax, ay, az, bx, by, bz int) int {
	dx := ax - bx
	dy := ay - by
	dz := az - bz
	return dx*dx + dy*dy + dz*dz
}
