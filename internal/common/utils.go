package common

// SliceToChunks splits values into consecutive chunks of at most chunkSize elements.
func SliceToChunks[T any](values []T, chunkSize int) [][]T {
	if chunkSize >= len(values) || chunkSize <= 0 {
		return [][]T{values}
	}
	var chunks [][]T
	for i := 0; i < len(values); i += chunkSize {
		end := i + chunkSize
		if end > len(values) {
			end = len(values)
		}
		chunks = append(chunks, values[i:end])
	}
	return chunks
}

// Distinct returns the unique values in first-seen order.
func Distinct[T comparable](values []T) []T {
	seen := NewSet[T]()
	result := make([]T, 0, len(values))
	for _, v := range values {
		if seen.Contains(v) {
			continue
		}
		seen.Add(v)
		result = append(result, v)
	}
	return result
}
