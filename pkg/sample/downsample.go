package sample

// Downsample reduces src to at most maxPoints elements by decimation.
// Destination-based: reuses dst if it has sufficient capacity, otherwise allocates new.
// The first element is always kept; when decimating, the last one is too.
func Downsample[T any](dst []T, src []T, maxPoints int) []T {
	if maxPoints <= 0 {
		return dst[:0]
	}

	if len(src) <= maxPoints {
		if cap(dst) >= len(src) {
			dst = dst[:len(src)]
			copy(dst, src)
			return dst
		}
		result := make([]T, len(src))
		copy(result, src)
		return result
	}

	if cap(dst) >= maxPoints {
		dst = dst[:0]
	} else {
		dst = make([]T, 0, maxPoints)
	}

	if maxPoints == 1 {
		return append(dst, src[0])
	}

	// Spread maxPoints indices evenly over [0, len(src)-1].
	step := float64(len(src)-1) / float64(maxPoints-1)
	for i := 0; i < maxPoints; i++ {
		idx := int(float64(i)*step + 0.5)
		if idx >= len(src) {
			idx = len(src) - 1
		}
		dst = append(dst, src[idx])
	}

	return dst
}
