package dataset

// Store holds the four loaded tables. It is never mutated after Load, so
// it can be shared between goroutines without locking. Accessors return
// the backing slices; callers must not modify them.
type Store struct {
	trials       []Trial
	subjectLevel []SubjectLevelStat
	groupLevel   []GroupLevelStat
	participants ParticipantTable
	subjects     []Subject
	info         LoadInfo
}

func newStore(trials []Trial, subjectLevel []SubjectLevelStat, groupLevel []GroupLevelStat, participants ParticipantTable, info LoadInfo) *Store {
	s := &Store{
		trials:       trials,
		subjectLevel: subjectLevel,
		groupLevel:   groupLevel,
		participants: participants,
		info:         info,
	}

	seen := make(map[int]bool)
	for _, row := range subjectLevel {
		if seen[row.Subject] {
			continue
		}
		seen[row.Subject] = true
		s.subjects = append(s.subjects, Subject{ID: row.Subject, Group: row.Group})
	}
	return s
}

// NewStore builds a store from tables already in memory. It is meant for
// tests and tools; ISI=0 trials are dropped as Load would.
func NewStore(trials []Trial, subjectLevel []SubjectLevelStat, groupLevel []GroupLevelStat, participants ParticipantTable) *Store {
	kept := make([]Trial, 0, len(trials))
	for _, t := range trials {
		if t.ISI != 0 {
			kept = append(kept, t)
		}
	}
	info := LoadInfo{
		Source: "memory",
		Rows: map[string]int{
			TableTrials:       len(kept),
			TableSubjectLevel: len(subjectLevel),
			TableGroupLevel:   len(groupLevel),
			TableParticipants: len(participants.Rows),
		},
		TrialsDropped: len(trials) - len(kept),
	}
	return newStore(kept, subjectLevel, groupLevel, participants, info)
}

func (s *Store) Trials() []Trial                  { return s.trials }
func (s *Store) SubjectLevel() []SubjectLevelStat { return s.subjectLevel }
func (s *Store) GroupLevel() []GroupLevelStat     { return s.groupLevel }
func (s *Store) Participants() ParticipantTable   { return s.participants }

// Subjects lists the distinct subjects of the subject-level table in order
// of first appearance.
func (s *Store) Subjects() []Subject {
	out := make([]Subject, len(s.subjects))
	copy(out, s.subjects)
	return out
}

// Info returns a copy of the load record.
func (s *Store) Info() LoadInfo {
	info := s.info
	info.Rows = make(map[string]int, len(s.info.Rows))
	for k, v := range s.info.Rows {
		info.Rows[k] = v
	}
	return info
}
