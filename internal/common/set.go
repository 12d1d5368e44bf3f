package common

// Set is an unordered collection of unique values. It is not safe for
// concurrent use.
type Set[T comparable] struct {
	elements map[T]struct{}
}

func NewSet[T comparable](values ...T) *Set[T] {
	s := &Set[T]{
		elements: make(map[T]struct{}, len(values)),
	}
	for _, v := range values {
		s.Add(v)
	}
	return s
}

func (s *Set[T]) Add(value T) {
	s.elements[value] = struct{}{}
}

// AddIfAbsent inserts value and reports whether it was not present before.
func (s *Set[T]) AddIfAbsent(value T) bool {
	if _, found := s.elements[value]; found {
		return false
	}
	s.elements[value] = struct{}{}
	return true
}

func (s *Set[T]) Contains(value T) bool {
	_, found := s.elements[value]
	return found
}

func (s *Set[T]) Size() int {
	return len(s.elements)
}
