package geom

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

// ChunkOf returns the 16x16 column a block belongs to.
func ChunkOf(x, z int) (cx, cz int) {
	return FloorDiv(x, 16), FloorDiv(z, 16)
}
