package chat

// SummaryList keeps one entry per conversation, most recently touched first.
// Same-tick updates are ordered by processing order: the later one wins the front.
type SummaryList struct {
	entries []SummaryEntry
}

func (s *SummaryList) Len() int { return len(s.entries) }

func (s *SummaryList) index(key SessionKey) int {
	for i := range s.entries {
		if s.entries[i].Key == key {
			return i
		}
	}
	return -1
}

func (s *SummaryList) Contains(key SessionKey) bool { return s.index(key) >= 0 }

// Insert puts a new entry at the front. Present keys are left untouched.
func (s *SummaryList) Insert(e SummaryEntry) bool {
	if s.Contains(e.Key) {
		return false
	}
	s.entries = append(s.entries, SummaryEntry{})
	copy(s.entries[1:], s.entries)
	s.entries[0] = e
	return true
}

// Touch sets the last message of key and moves it to the front.
func (s *SummaryList) Touch(key SessionKey, lastMessage string) bool {
	i := s.index(key)
	if i < 0 {
		return false
	}
	e := s.entries[i]
	e.LastMessage = lastMessage
	copy(s.entries[1:i+1], s.entries[:i])
	s.entries[0] = e
	return true
}

func (s *SummaryList) Get(key SessionKey) (SummaryEntry, bool) {
	i := s.index(key)
	if i < 0 {
		return SummaryEntry{}, false
	}
	return s.entries[i], true
}

// Rename rewrites display names in place without reordering.
func (s *SummaryList) Rename(name func(SessionKey) string) {
	for i := range s.entries {
		s.entries[i].DisplayName = name(s.entries[i].Key)
	}
}

// Entries returns a copy, front first.
func (s *SummaryList) Entries() []SummaryEntry {
	out := make([]SummaryEntry, len(s.entries))
	copy(out, s.entries)
	return out
}
