package dataset

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"time"
)

// Column names, case-sensitive.
const (
	ColSubject       = "Subject"
	ColSessionType   = "SessionType"
	ColISI           = "ISI"
	ColEMGPeakToPeak = "EMGPeakToPeak"
	ColRA            = "RA"
	ColARA           = "ARA"
	ColLabel         = "Label"
	ColGroup         = "Group"
	ColMeanRA        = "MeanRA"
	ColWMedianRA     = "WMedianRA"
)

// commentsColumn is the blank header cell of the participants sheet.
const commentsColumn = "Unnamed: 4"

// LoadInfo describes one completed load.
type LoadInfo struct {
	Source        string         `json:"source"`
	LoadedAt      time.Time      `json:"loaded_at"`
	Rows          map[string]int `json:"rows"`
	TrialsDropped int            `json:"trials_dropped"`
	Checksum      string         `json:"checksum"`
}

// Load reads the four tables from src. Any schema problem is returned as a
// *SchemaError and no store is produced.
func Load(ctx context.Context, src Source, files Files) (*Store, error) {
	sum := sha256.New()

	var (
		trials       []Trial
		dropped      int
		subjectLevel []SubjectLevelStat
		groupLevel   []GroupLevelStat
		participants ParticipantTable
	)

	steps := []struct {
		name string
		read func(io.Reader) error
	}{
		{files.Trials, func(r io.Reader) (err error) {
			trials, dropped, err = readTrials(r)
			return err
		}},
		{files.SubjectLevel, func(r io.Reader) (err error) {
			subjectLevel, err = readSubjectLevel(r)
			return err
		}},
		{files.GroupLevel, func(r io.Reader) (err error) {
			groupLevel, err = readGroupLevel(r)
			return err
		}},
		{files.Participants, func(r io.Reader) (err error) {
			participants, err = readParticipants(r)
			return err
		}},
	}

	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := readOne(ctx, src, step.name, sum, step.read); err != nil {
			return nil, err
		}
	}

	info := LoadInfo{
		Source:   src.Describe(),
		LoadedAt: time.Now().UTC(),
		Rows: map[string]int{
			TableTrials:       len(trials),
			TableSubjectLevel: len(subjectLevel),
			TableGroupLevel:   len(groupLevel),
			TableParticipants: len(participants.Rows),
		},
		TrialsDropped: dropped,
		Checksum:      hex.EncodeToString(sum.Sum(nil)),
	}
	return newStore(trials, subjectLevel, groupLevel, participants, info), nil
}

func readOne(ctx context.Context, src Source, name string, sum hash.Hash, read func(io.Reader) error) error {
	rc, err := src.Open(ctx, name)
	if err != nil {
		return err
	}
	defer rc.Close()

	if err := read(io.TeeReader(rc, sum)); err != nil {
		var se *SchemaError
		if errors.As(err, &se) {
			return err
		}
		return fmt.Errorf("failed to load %s: %w", name, err)
	}
	return nil
}

// readTrials parses the main dataset and drops rows with ISI == 0. The
// remaining rows keep their file order.
func readTrials(r io.Reader) ([]Trial, int, error) {
	t, err := newTableReader(TableTrials, r)
	if err != nil {
		return nil, 0, err
	}
	if err := t.require(ColSubject, ColSessionType, ColISI, ColEMGPeakToPeak, ColRA, ColLabel, ColGroup); err != nil {
		return nil, 0, err
	}

	var (
		out     []Trial
		dropped int
	)
	for {
		if err := t.next(); err != nil {
			if errors.Is(err, io.EOF) {
				return out, dropped, nil
			}
			return nil, 0, err
		}
		var tr Trial
		if tr.Subject, err = t.integer(ColSubject); err != nil {
			return nil, 0, err
		}
		if tr.SessionType, err = t.session(ColSessionType); err != nil {
			return nil, 0, err
		}
		if tr.ISI, err = t.key(ColISI); err != nil {
			return nil, 0, err
		}
		if tr.EMGPeakToPeak, err = t.measure(ColEMGPeakToPeak); err != nil {
			return nil, 0, err
		}
		if tr.RA, err = t.measure(ColRA); err != nil {
			return nil, 0, err
		}
		if tr.Group, err = t.group(ColGroup); err != nil {
			return nil, 0, err
		}
		tr.Label = t.cell(ColLabel)

		if tr.ISI == 0 {
			dropped++
			continue
		}
		out = append(out, tr)
	}
}

func readSubjectLevel(r io.Reader) ([]SubjectLevelStat, error) {
	t, err := newTableReader(TableSubjectLevel, r)
	if err != nil {
		return nil, err
	}
	if err := t.require(ColSubject, ColSessionType, ColGroup, ColISI, ColRA, ColARA); err != nil {
		return nil, err
	}

	var out []SubjectLevelStat
	for {
		if err := t.next(); err != nil {
			if errors.Is(err, io.EOF) {
				return out, nil
			}
			return nil, err
		}
		var s SubjectLevelStat
		if s.Subject, err = t.integer(ColSubject); err != nil {
			return nil, err
		}
		if s.SessionType, err = t.session(ColSessionType); err != nil {
			return nil, err
		}
		if s.Group, err = t.group(ColGroup); err != nil {
			return nil, err
		}
		if s.ISI, err = t.key(ColISI); err != nil {
			return nil, err
		}
		if s.RA, err = t.measure(ColRA); err != nil {
			return nil, err
		}
		if s.ARA, err = t.measure(ColARA); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
}

func readGroupLevel(r io.Reader) ([]GroupLevelStat, error) {
	t, err := newTableReader(TableGroupLevel, r)
	if err != nil {
		return nil, err
	}
	if err := t.require(ColGroup, ColSessionType, ColISI, ColMeanRA, ColWMedianRA); err != nil {
		return nil, err
	}

	var out []GroupLevelStat
	for {
		if err := t.next(); err != nil {
			if errors.Is(err, io.EOF) {
				return out, nil
			}
			return nil, err
		}
		var g GroupLevelStat
		if g.Group, err = t.group(ColGroup); err != nil {
			return nil, err
		}
		if g.SessionType, err = t.session(ColSessionType); err != nil {
			return nil, err
		}
		if g.ISI, err = t.key(ColISI); err != nil {
			return nil, err
		}
		if g.MeanRA, err = t.measure(ColMeanRA); err != nil {
			return nil, err
		}
		if g.WMedianRA, err = t.measure(ColWMedianRA); err != nil {
			return nil, err
		}
		out = append(out, g)
	}
}

// readParticipants keeps the sheet as text. Short rows are padded so every
// row has one cell per column.
func readParticipants(r io.Reader) (ParticipantTable, error) {
	t, err := newTableReader(TableParticipants, r)
	if err != nil {
		return ParticipantTable{}, err
	}

	columns := make([]string, len(t.header))
	copy(columns, t.header)
	for i, c := range columns {
		if c == commentsColumn {
			columns[i] = "Comments"
		}
	}

	table := ParticipantTable{Columns: columns, Rows: [][]string{}}
	for {
		if err := t.next(); err != nil {
			if errors.Is(err, io.EOF) {
				return table, nil
			}
			return ParticipantTable{}, err
		}
		row := make([]string, len(columns))
		for i := range row {
			if i < len(t.record) {
				row[i] = t.record[i]
			}
		}
		table.Rows = append(table.Rows, row)
	}
}
