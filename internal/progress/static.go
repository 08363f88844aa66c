package progress

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/wonny/surveyprogress/internal/contracts"
)

// StaticSource in-memory records keyed by item; the empty item is the
// whole project
type StaticSource struct {
	mu    sync.RWMutex
	items map[string][]contracts.DailyRecord
}

// NewStaticSource creates an empty source
func NewStaticSource() *StaticSource {
	return &StaticSource{items: make(map[string][]contracts.DailyRecord)}
}

// Set replaces the records of one item
func (s *StaticSource) Set(itemID string, records []contracts.DailyRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := make([]contracts.DailyRecord, len(records))
	copy(cp, records)
	s.items[itemID] = cp
}

// Append adds records to one item (real-time ingestion)
func (s *StaticSource) Append(itemID string, records ...contracts.DailyRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items[itemID] = append(s.items[itemID], records...)
}

// Items returns the item ids with records
func (s *StaticSource) Items() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.items))
	for id := range s.items {
		if id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

// Load implements contracts.SeriesSource. Without an item scope, records of
// every item are returned; NewSeries merges same-day records.
func (s *StaticSource) Load(_ context.Context, scope contracts.Scope, from, to time.Time) ([]contracts.DailyRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	from, to = contracts.TruncateDay(from), contracts.TruncateDay(to)
	inWindow := func(r contracts.DailyRecord) bool {
		d := contracts.TruncateDay(r.Date)
		return !d.Before(from) && !d.After(to)
	}

	var out []contracts.DailyRecord
	if scope.ItemID != "" {
		for _, r := range s.items[scope.ItemID] {
			if inWindow(r) {
				out = append(out, r)
			}
		}
		return out, nil
	}

	for _, records := range s.items {
		for _, r := range records {
			if inWindow(r) {
				out = append(out, r)
			}
		}
	}
	return out, nil
}

// fileRecords file format keyed by item id:
// {"item_id": [{date, daily_points, teams_active}]}
type fileRecords map[string][]feedRecord

// LoadJSON reads a source from a JSON document keyed by item id
func LoadJSON(r io.Reader) (*StaticSource, error) {
	var raw fileRecords
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode progress file: %w", err)
	}
	return raw.source()
}

// LoadYAML reads the same layout as LoadJSON from YAML; unknown fields fail
func LoadYAML(r io.Reader) (*StaticSource, error) {
	var raw fileRecords
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode progress file: %w", err)
	}
	return raw.source()
}

func (raw fileRecords) source() (*StaticSource, error) {
	src := NewStaticSource()
	for item, entries := range raw {
		records := make([]contracts.DailyRecord, 0, len(entries))
		for i, e := range entries {
			date, err := time.Parse(dateLayout, e.Date)
			if err != nil {
				return nil, fmt.Errorf("item %q record %d: invalid date %q: %w", item, i, e.Date, err)
			}
			records = append(records, contracts.DailyRecord{Date: date, DailyPoints: e.DailyPoints, TeamsActive: e.TeamsActive})
		}
		src.Set(item, records)
	}
	return src, nil
}

// LoadFile opens path and decodes it by extension (.yaml/.yml, else JSON)
func LoadFile(path string) (*StaticSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open progress file: %w", err)
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return LoadYAML(f)
	default:
		return LoadJSON(f)
	}
}

// Records returns a copy of one item's records
func (s *StaticSource) Records(itemID string) []contracts.DailyRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cp := make([]contracts.DailyRecord, len(s.items[itemID]))
	copy(cp, s.items[itemID])
	return cp
}

// ListItems item ids with at least one record in the window, sorted
func (s *StaticSource) ListItems(_ context.Context, from, to time.Time) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	from, to = contracts.TruncateDay(from), contracts.TruncateDay(to)

	var ids []string
	for id, records := range s.items {
		if id == "" {
			continue
		}
		for _, r := range records {
			d := contracts.TruncateDay(r.Date)
			if !d.Before(from) && !d.After(to) {
				ids = append(ids, id)
				break
			}
		}
	}
	sort.Strings(ids)
	return ids, nil
}
