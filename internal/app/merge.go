package app

import "hoshizora/internal/domain"

// MergedSet accumulates accommodation records keyed by id. It is owned by a
// single merge call and is not safe for concurrent use.
type MergedSet struct {
	byID  map[string]domain.Accommodation
	order []string
}

func NewMergedSet() *MergedSet {
	return &MergedSet{byID: map[string]domain.Accommodation{}}
}

// Add folds a into the set. For a repeated id, rooms are summed, the higher
// rating and clear-sky probability win, the lexicographically smaller
// next-new-moon string wins, and every other field stays as first seen.
func (s *MergedSet) Add(a domain.Accommodation) {
	prev, ok := s.byID[a.ID]
	if !ok {
		s.byID[a.ID] = a
		s.order = append(s.order, a.ID)
		return
	}
	prev.AvailableRooms += a.AvailableRooms
	if a.Rating > prev.Rating {
		prev.Rating = a.Rating
	}
	if a.ClearSkyProbability > prev.ClearSkyProbability {
		prev.ClearSkyProbability = a.ClearSkyProbability
	}
	if a.NextNewMoon < prev.NextNewMoon {
		prev.NextNewMoon = a.NextNewMoon
	}
	s.byID[a.ID] = prev
}

func (s *MergedSet) Len() int { return len(s.byID) }

func (s *MergedSet) Get(id string) (domain.Accommodation, bool) {
	a, ok := s.byID[id]
	return a, ok
}

// List returns the records in first-seen order.
func (s *MergedSet) List() []domain.Accommodation {
	out := make([]domain.Accommodation, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.byID[id])
	}
	return out
}

// Merge combines per-date result lists into one deduplicated list.
func Merge(lists ...[]domain.Accommodation) []domain.Accommodation {
	s := NewMergedSet()
	for _, l := range lists {
		for _, a := range l {
			s.Add(a)
		}
	}
	return s.List()
}
