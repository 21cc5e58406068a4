package world

// lateralOrder returns the four lateral sides in a pseudo-random permutation
// keyed by (seed, position). Horizontal spreading scans sides in this order
// so flow is not biased toward a fixed compass direction, while remaining
// reproducible for the same position across runs and platforms.
func lateralOrder(seed int64, pos Vec3i) [4]Side {
	order := SideLateral
	r := hash3(seed, pos.X, pos.Y, pos.Z)
	// Fisher-Yates over 4 entries, consuming the hash as a bit source.
	for i := len(order) - 1; i > 0; i-- {
		j := int(r % uint64(i+1))
		r /= uint64(i + 1)
		order[i], order[j] = order[j], order[i]
	}
	return order
}
