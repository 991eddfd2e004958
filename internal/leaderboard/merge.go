package leaderboard

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

var (
	ErrNotImproved  = errors.New("leaderboard contains a better score entry for this player")
	ErrInvalidEntry = errors.New("invalid score entry")
)

// Entry is one player's best time on a leaderboard.
type Entry struct {
	Name string  `json:"name"`
	Time float64 `json:"time"`
}

func (e Entry) Validate() error {
	if e.Name == "" {
		return fmt.Errorf("%w: player name is empty", ErrInvalidEntry)
	}
	if math.IsNaN(e.Time) || math.IsInf(e.Time, 0) {
		return fmt.Errorf("%w: time is not a finite number", ErrInvalidEntry)
	}
	if e.Time < 0 {
		return fmt.Errorf("%w: time is negative", ErrInvalidEntry)
	}
	return nil
}

// Merge computes the next state of a leaderboard after a submission.
// current is never modified; on ErrNotImproved the caller keeps its list.
//
// Equal times keep their relative order, so whoever reached a time first
// stays ahead of a later submission with the same time.
func Merge(current []Entry, e Entry) ([]Entry, error) {
	if err := e.Validate(); err != nil {
		return nil, err
	}

	next := make([]Entry, 0, len(current)+1)
	for _, cur := range current {
		if cur.Name != e.Name {
			next = append(next, cur)
			continue
		}
		if e.Time >= cur.Time {
			return nil, ErrNotImproved
		}
	}
	next = append(next, e)
	sortByTime(next)
	return next, nil
}

// Normalize keeps the best entry per player (the earliest one on ties)
// and returns the result sorted. Used on lists that did not go through Merge.
func Normalize(entries []Entry) []Entry {
	out := make([]Entry, 0, len(entries))
	idx := make(map[string]int, len(entries))
	for _, e := range entries {
		if e.Validate() != nil {
			continue
		}
		if i, ok := idx[e.Name]; ok {
			if e.Time < out[i].Time {
				out[i] = e
			}
			continue
		}
		idx[e.Name] = len(out)
		out = append(out, e)
	}
	sortByTime(out)
	return out
}

func sortByTime(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Time < entries[j].Time
	})
}

// Standing is an entry together with its 1-based position.
type Standing struct {
	Position int `json:"position"`
	Entry
}

func Standings(entries []Entry) []Standing {
	out := make([]Standing, len(entries))
	for i, e := range entries {
		out[i] = Standing{Position: i + 1, Entry: e}
	}
	return out
}
