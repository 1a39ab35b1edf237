package detection

// Filter returns the boxes whose confidence is at least threshold, preserving
// input order. The result never aliases boxes.
func Filter(boxes []Box, threshold float64) []Box {
	out := make([]Box, 0, len(boxes))
	for _, b := range boxes {
		if b.Confidence >= threshold {
			out = append(out, b)
		}
	}
	return out
}

// CountVisible returns how many boxes pass threshold.
func CountVisible(boxes []Box, threshold float64) int {
	n := 0
	for _, b := range boxes {
		if b.Confidence >= threshold {
			n++
		}
	}
	return n
}

// UniqueLabels returns the distinct labels of boxes in first-seen order.
func UniqueLabels(boxes []Box) []string {
	seen := make(map[string]struct{}, len(boxes))
	labels := make([]string, 0, len(boxes))
	for _, b := range boxes {
		if _, ok := seen[b.Label]; ok {
			continue
		}
		seen[b.Label] = struct{}{}
		labels = append(labels, b.Label)
	}
	return labels
}
