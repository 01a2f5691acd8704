// Package catalog loads the static parking reference data: borough
// street-cleaning schedules (with prohibition entries), meter zone
// definitions, and the holiday calendar.
//
// The catalogue is read once into an immutable snapshot. A missing or
// malformed data file degrades that category to empty with a warning;
// it never fails startup. Reload installs a whole new snapshot
// atomically, so readers never observe a half-updated rule set.
package catalog

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync/atomic"

	"curbside/internal/model"
)

const (
	cleaningFile = "nyc_cleaning.json"
	meterFile    = "meter_zones.json"
	holidayFile  = "holidays.json"
)

// Bounds is an axis-aligned bounding box in degrees.
type Bounds struct {
	MinLat float64 `json:"minLat"`
	MaxLat float64 `json:"maxLat"`
	MinLng float64 `json:"minLng"`
	MaxLng float64 `json:"maxLng"`
}

// Contains reports whether the point falls inside the box.
func (b Bounds) Contains(lat, lng float64) bool {
	return lat >= b.MinLat && lat <= b.MaxLat && lng >= b.MinLng && lng <= b.MaxLng
}

// MeterZone is a bounded paid-parking region.
type MeterZone struct {
	Code   string
	Name   string
	Bounds Bounds
	Rule   model.Rule
}

// Snapshot is one immutable catalogue generation.
type Snapshot struct {
	cleaning        map[string][]model.Rule
	restrictions    map[string][]model.Rule
	defaultCleaning []model.Rule
	zones           []MeterZone
	holidays        map[string]model.Holiday
	meterFreeDay    int
}

// Catalog holds the current snapshot and knows how to rebuild it.
type Catalog struct {
	dir  string
	snap atomic.Pointer[Snapshot]
}

// Load builds a catalogue from the JSON files in dir. Always returns a
// usable catalogue; categories whose file is absent or corrupt are empty.
func Load(dir string) *Catalog {
	c := &Catalog{dir: dir}
	c.snap.Store(buildSnapshot(dir))
	return c
}

// Snapshot returns the current immutable generation.
func (c *Catalog) Snapshot() *Snapshot { return c.snap.Load() }

// Reload rebuilds from disk and swaps the snapshot in one step.
func (c *Catalog) Reload() { c.snap.Store(buildSnapshot(c.dir)) }

// Summary reports per-category sizes for the admin surface.
func (c *Catalog) Summary() map[string]any {
	s := c.Snapshot()
	cleaning := 0
	for _, rs := range s.cleaning {
		cleaning += len(rs)
	}
	restrictions := 0
	for _, rs := range s.restrictions {
		restrictions += len(rs)
	}
	return map[string]any{
		"boroughs":     len(s.cleaning),
		"cleaningRules": cleaning,
		"restrictions": restrictions,
		"meterZones":   len(s.zones),
		"holidays":     len(s.holidays),
	}
}

// CleaningRules returns the borough's street-cleaning rules for a weekday
// (0=Monday), in catalogue order. Boroughs without any schedule fall back
// to the default schedule.
func (s *Snapshot) CleaningRules(borough string, weekday int) []model.Rule {
	src := s.cleaning[borough]
	if len(src) == 0 {
		src = s.defaultCleaning
	}
	var out []model.Rule
	for _, r := range src {
		if r.AppliesOn(weekday) {
			out = append(out, r)
		}
	}
	return out
}

// Restrictions returns the borough's prohibition rules for a weekday, in
// catalogue order. Prohibitions carry no enforced time window.
func (s *Snapshot) Restrictions(borough string, weekday int) []model.Rule {
	var out []model.Rule
	for _, r := range s.restrictions[borough] {
		if r.AppliesOn(weekday) {
			out = append(out, r)
		}
	}
	return out
}

// MeterZoneAt returns the first zone containing the point, in catalogue order.
func (s *Snapshot) MeterZoneAt(lat, lng float64) (MeterZone, bool) {
	for _, z := range s.zones {
		if z.Bounds.Contains(lat, lng) {
			return z, true
		}
	}
	return MeterZone{}, false
}

// MeterFreeDay is the weekday on which meters are not enforced (default Sunday).
func (s *Snapshot) MeterFreeDay() int { return s.meterFreeDay }

// Holiday looks up a calendar date formatted as YYYY-MM-DD.
func (s *Snapshot) Holiday(date string) (model.Holiday, bool) {
	h, ok := s.holidays[date]
	return h, ok
}

// file shapes

type cleaningData struct {
	Boroughs map[string]struct {
		Schedules []struct {
			Side      string `json:"side"`
			Days      []int  `json:"days"`
			StartTime string `json:"startTime"`
			EndTime   string `json:"endTime"`
		} `json:"schedules"`
		Restrictions []struct {
			Kind        string `json:"kind"`
			Description string `json:"description"`
			Days        []int  `json:"days"`
			Side        string `json:"side"`
		} `json:"restrictions"`
	} `json:"boroughs"`
}

type meterData struct {
	FreeDay *int `json:"freeDay"`
	Default struct {
		Rate        float64 `json:"rate"`
		MaxDuration int     `json:"maxDuration"`
		StartTime   string  `json:"startTime"`
		EndTime     string  `json:"endTime"`
	} `json:"default"`
	Zones []struct {
		Code        string  `json:"code"`
		Name        string  `json:"name"`
		Bounds      Bounds  `json:"bounds"`
		Days        []int   `json:"days"`
		StartTime   string  `json:"startTime"`
		EndTime     string  `json:"endTime"`
		Rate        float64 `json:"rate"`
		MaxDuration int     `json:"maxDuration"`
	} `json:"zones"`
}

type holidayData struct {
	Holidays []model.Holiday `json:"holidays"`
}

func buildSnapshot(dir string) *Snapshot {
	s := &Snapshot{
		cleaning:     map[string][]model.Rule{},
		restrictions: map[string][]model.Rule{},
		holidays:     map[string]model.Holiday{},
		meterFreeDay: 6, // Sunday
	}

	var cd cleaningData
	if readJSON(filepath.Join(dir, cleaningFile), &cd) {
		for borough, bd := range cd.Boroughs {
			for _, sch := range bd.Schedules {
				start, end := parseWindow(sch.StartTime, sch.EndTime, "cleaning/"+borough)
				r := model.Rule{
					ID:          fmt.Sprintf("cleaning-%s-%s", borough, orUnknown(sch.Side)),
					Kind:        model.KindStreetCleaning,
					Description: fmt.Sprintf("Alternate side parking - %s side", sch.Side),
					Days:        sch.Days,
					StartTime:   sch.StartTime,
					EndTime:     sch.EndTime,
					Side:        sch.Side,
					StartMin:    start,
					EndMin:      end,
				}
				s.cleaning[borough] = append(s.cleaning[borough], r)
			}
			for i, res := range bd.Restrictions {
				kind := model.RuleKind(res.Kind)
				if !kind.Prohibits() {
					log.Printf("catalog: skipping restriction %q in %s: unknown kind", res.Kind, borough)
					continue
				}
				desc := res.Description
				if desc == "" {
					desc = fmt.Sprintf("No %s zone", kindNoun(kind))
				}
				s.restrictions[borough] = append(s.restrictions[borough], model.Rule{
					ID:          fmt.Sprintf("restriction-%s-%d", borough, i),
					Kind:        kind,
					Description: desc,
					Days:        res.Days,
					Side:        res.Side,
				})
			}
		}
	}
	s.defaultCleaning = defaultSchedule()

	var md meterData
	if readJSON(filepath.Join(dir, meterFile), &md) {
		if md.FreeDay != nil && *md.FreeDay >= 0 && *md.FreeDay <= 6 {
			s.meterFreeDay = *md.FreeDay
		}
		for _, z := range md.Zones {
			rate := z.Rate
			if rate == 0 {
				rate = md.Default.Rate
			}
			maxDur := z.MaxDuration
			if maxDur == 0 {
				maxDur = md.Default.MaxDuration
			}
			startStr, endStr := z.StartTime, z.EndTime
			if startStr == "" {
				startStr = md.Default.StartTime
			}
			if endStr == "" {
				endStr = md.Default.EndTime
			}
			days := z.Days
			if len(days) == 0 {
				days = []int{0, 1, 2, 3, 4, 5}
			}
			start, end := parseWindow(startStr, endStr, "meter/"+z.Code)
			s.zones = append(s.zones, MeterZone{
				Code:   z.Code,
				Name:   z.Name,
				Bounds: z.Bounds,
				Rule: model.Rule{
					ID:          "meter-" + z.Code,
					Kind:        model.KindMeter,
					Description: fmt.Sprintf("Metered parking - %s", orUnknown(z.Name)),
					Days:        days,
					StartTime:   startStr,
					EndTime:     endStr,
					MaxDuration: maxDur,
					Rate:        rate,
					ZoneCode:    z.Code,
					StartMin:    start,
					EndMin:      end,
				},
			})
		}
	}

	var hd holidayData
	if readJSON(filepath.Join(dir, holidayFile), &hd) {
		for _, h := range hd.Holidays {
			s.holidays[h.Date] = h
		}
	}
	return s
}

// defaultSchedule is the fallback applied when a borough carries no
// cleaning schedule of its own (Manhattan-style alternating sides).
func defaultSchedule() []model.Rule {
	type def struct {
		day   int
		start string
		end   string
		side  string
	}
	defs := []def{
		{0, "08:30", "10:00", "North/East"},
		{1, "11:00", "12:30", "South/West"},
		{2, "08:30", "10:00", "North/East"},
		{3, "11:00", "12:30", "South/West"},
	}
	out := make([]model.Rule, 0, len(defs))
	for _, d := range defs {
		start, end := parseWindow(d.start, d.end, "cleaning/default")
		out = append(out, model.Rule{
			ID:          fmt.Sprintf("cleaning-default-%d", d.day),
			Kind:        model.KindStreetCleaning,
			Description: fmt.Sprintf("Alternate side parking - %s side", d.side),
			Days:        []int{d.day},
			StartTime:   d.start,
			EndTime:     d.end,
			Side:        d.side,
			StartMin:    start,
			EndMin:      end,
		})
	}
	return out
}

func readJSON(path string, v any) bool {
	data, err := os.ReadFile(path)
	if err != nil {
		log.Printf("catalog: %s unavailable, category empty: %v", filepath.Base(path), err)
		return false
	}
	if err := json.Unmarshal(data, v); err != nil {
		log.Printf("catalog: %s malformed, category empty: %v", filepath.Base(path), err)
		return false
	}
	return true
}

// parseWindow converts HH:MM strings to minutes since midnight. An
// unparsable or midnight-spanning window collapses to zero length so a
// bad entry can never activate; windows across midnight are out of scope.
func parseWindow(start, end, where string) (int, int) {
	sm, serr := ParseClock(start)
	em, eerr := ParseClock(end)
	if serr != nil || eerr != nil {
		log.Printf("catalog: bad time window %q-%q (%s); treated as never active", start, end, where)
		return 0, 0
	}
	if em < sm {
		log.Printf("catalog: window %q-%q spans midnight (%s); unsupported, treated as never active", start, end, where)
		return 0, 0
	}
	return sm, em
}

// ParseClock parses "HH:MM" into minutes since midnight.
func ParseClock(v string) (int, error) {
	var h, m int
	if _, err := fmt.Sscanf(v, "%d:%d", &h, &m); err != nil {
		return 0, fmt.Errorf("parse clock %q: %w", v, err)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, fmt.Errorf("clock %q out of range", v)
	}
	return h*60 + m, nil
}

func orUnknown(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}

func kindNoun(k model.RuleKind) string {
	switch k {
	case model.KindNoParking:
		return "parking"
	case model.KindNoStanding:
		return "standing"
	default:
		return string(k)
	}
}
