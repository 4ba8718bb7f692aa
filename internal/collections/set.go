package collections

import "github.com/roach88/stm/internal/stm"

// TSet is a transactional set backed by a TMap.
type TSet[A comparable] struct {
	m *TMap[A, struct{}]
}

// NewSet allocates an empty, already committed set.
func NewSet[A comparable]() *TSet[A] {
	return &TSet[A]{m: NewMap[A, struct{}](DefaultMapCapacity)}
}

// MakeSet allocates a set holding values inside a transaction.
func MakeSet[A comparable](values ...A) stm.STM[*TSet[A]] {
	entries := make(map[A]struct{}, len(values))
	for _, v := range values {
		entries[v] = struct{}{}
	}
	return stm.Map(MakeMap(entries), func(m *TMap[A, struct{}]) *TSet[A] {
		return &TSet[A]{m: m}
	})
}

// Add inserts a. Reports whether it was newly added.
func (s *TSet[A]) Add(a A) stm.STM[bool] {
	return s.m.PutIfAbsent(a, struct{}{})
}

// Remove deletes a. Reports whether it was present.
func (s *TSet[A]) Remove(a A) stm.STM[bool] {
	return s.m.Delete(a)
}

// Has reports whether a is a member.
func (s *TSet[A]) Has(a A) stm.STM[bool] {
	return s.m.Has(a)
}

// Size returns the number of members.
func (s *TSet[A]) Size() stm.STM[int] {
	return s.m.Size()
}

// ToSlice returns the members in unspecified order.
func (s *TSet[A]) ToSlice() stm.STM[[]A] {
	return s.m.Keys()
}

// Union adds every member of other to s.
func (s *TSet[A]) Union(other *TSet[A]) stm.STM[struct{}] {
	return stm.FlatMap(other.ToSlice(), func(members []A) stm.STM[struct{}] {
		return stm.ForEachDiscard(members, s.Add)
	})
}

// Retain removes every member not satisfying keep.
func (s *TSet[A]) Retain(keep func(A) bool) stm.STM[struct{}] {
	return stm.FlatMap(s.ToSlice(), func(members []A) stm.STM[struct{}] {
		return stm.ForEachDiscard(members, func(a A) stm.STM[bool] {
			if keep(a) {
				return stm.Succeed(false)
			}
			return s.Remove(a)
		})
	})
}
