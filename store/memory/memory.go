// Package memory is the in-process OI store used for development and tests.
// It mirrors the relational upsert semantics over plain maps.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"optionflow/models"
)

type intradayKey struct {
	symbol     string
	ts         int64
	strike     float64
	optionType models.OptionType
}

type dailyKey struct {
	symbol     string
	day        string
	strike     float64
	optionType models.OptionType
}

type archiveKey struct {
	day      string
	symbol   string
	dataType string
}

type Store struct {
	mu       sync.RWMutex
	intraday map[intradayKey]models.IntradayOIRow
	daily    map[dailyKey]models.DailyOIRow
	deltas   []models.OIDeltaRecord
	archives map[archiveKey]models.RawArchiveRecord
}

func New() *Store {
	return &Store{
		intraday: make(map[intradayKey]models.IntradayOIRow),
		daily:    make(map[dailyKey]models.DailyOIRow),
		archives: make(map[archiveKey]models.RawArchiveRecord),
	}
}

func dayString(t time.Time) string {
	return t.Format("2006-01-02")
}

func (s *Store) UpsertIntraday(_ context.Context, rows []models.IntradayOIRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range rows {
		key := intradayKey{r.Symbol, r.Timestamp.UnixNano(), r.Strike, r.OptionType}
		s.intraday[key] = r
	}
	return nil
}

func (s *Store) UpsertDaily(_ context.Context, rows []models.DailyOIRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range rows {
		key := dailyKey{r.Symbol, dayString(r.Date), r.Strike, r.OptionType}
		s.daily[key] = r
	}
	return nil
}

func (s *Store) InsertDeltas(_ context.Context, records []models.OIDeltaRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deltas = append(s.deltas, records...)
	return nil
}

func (s *Store) IntradayOI(_ context.Context, symbol string, from, to time.Time) ([]models.IntradayOIRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.IntradayOIRow
	for _, r := range s.intraday {
		if r.Symbol == symbol && !r.Timestamp.Before(from) && r.Timestamp.Before(to) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Timestamp.Before(out[j].Timestamp)
		}
		if out[i].Strike != out[j].Strike {
			return out[i].Strike < out[j].Strike
		}
		return out[i].OptionType < out[j].OptionType
	})
	return out, nil
}

func (s *Store) DailyOI(_ context.Context, symbol string, from, to time.Time) ([]models.DailyOIRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.DailyOIRow
	for _, r := range s.daily {
		if r.Symbol == symbol && !r.Date.Before(from) && r.Date.Before(to) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		if out[i].Strike != out[j].Strike {
			return out[i].Strike < out[j].Strike
		}
		return out[i].OptionType < out[j].OptionType
	})
	return out, nil
}

func (s *Store) OIDeltas(_ context.Context, symbol string, from, to time.Time) ([]models.OIDeltaRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.OIDeltaRecord
	for _, r := range s.deltas {
		if r.Symbol == symbol && !r.Timestamp.Before(from) && r.Timestamp.Before(to) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *Store) IntradayRowCount(_ context.Context, symbol string, day time.Time) (int, error) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	end := start.AddDate(0, 0, 1)

	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, r := range s.intraday {
		if r.Symbol == symbol && !r.Timestamp.Before(start) && r.Timestamp.Before(end) {
			count++
		}
	}
	return count, nil
}

func (s *Store) InsertArchive(_ context.Context, rec models.RawArchiveRecord) error {
	if rec.Symbol == "" || rec.DataType == "" {
		return fmt.Errorf("archive record missing symbol or data type")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.archives[archiveKey{dayString(rec.Date), rec.Symbol, rec.DataType}] = rec
	return nil
}

func (s *Store) Archives(_ context.Context, symbol string, day time.Time) ([]models.RawArchiveRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.RawArchiveRecord
	for _, r := range s.archives {
		if r.Symbol == symbol && dayString(r.Date) == dayString(day) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *Store) Close() {}
