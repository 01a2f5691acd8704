package rules

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"curbside/internal/catalog"
	"curbside/internal/model"
)

var est = time.FixedZone("EST", -5*3600)

// Fixture geography: Times Square sits inside zone M1, the East Village
// point is metered-free Manhattan, and the Brooklyn point carries a
// standing prohibition.
const (
	timesSqLat = 40.7580
	timesSqLng = -73.9855
	eastVilLat = 40.7280
	eastVilLng = -73.9900
	bkLat      = 40.6500
	bkLng      = -73.9500
)

func writeFixtures(t *testing.T, dir string) {
	t.Helper()
	files := map[string]string{
		"nyc_cleaning.json": `{
  "boroughs": {
    "Manhattan": {
      "schedules": [
        {"side": "North/East", "days": [0, 2], "startTime": "08:30", "endTime": "10:00"},
        {"side": "South/West", "days": [0], "startTime": "14:00", "endTime": "15:30"}
      ]
    },
    "Brooklyn": {
      "schedules": [
        {"side": "North", "days": [4], "startTime": "09:00", "endTime": "10:30"}
      ],
      "restrictions": [
        {"kind": "no_standing", "description": "No standing - bus lane", "days": [0, 1, 2, 3, 4, 5, 6]}
      ]
    }
  }
}`,
		"meter_zones.json": `{
  "freeDay": 6,
  "default": {"rate": 3.5, "maxDuration": 120, "startTime": "07:00", "endTime": "19:00"},
  "zones": [
    {"code": "M1", "name": "Midtown Core",
     "bounds": {"minLat": 40.75, "maxLat": 40.77, "minLng": -74.00, "maxLng": -73.97},
     "days": [0, 1, 2, 3, 4, 5]}
  ]
}`,
		"holidays.json": `{
  "holidays": [
    {"date": "2026-01-19", "name": "Martin Luther King Jr. Day", "alternateSideSuspended": true},
    {"date": "2026-11-11", "name": "Veterans Day", "alternateSideSuspended": false}
  ]
}`,
	}
	for name, body := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
}

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	dir := t.TempDir()
	writeFixtures(t, dir)
	return NewEngine(catalog.Load(dir), est, 30, 60)
}

// 2026-01-05 is a Monday, 2026-01-06 a Tuesday, 2026-01-04 a Sunday,
// 2026-01-19 the suspended holiday (also a Monday).
func at(t *testing.T, day int, hour, min int) time.Time {
	t.Helper()
	return time.Date(2026, 1, day, hour, min, 0, 0, est)
}

func TestCheckActiveCleaningIsRed(t *testing.T) {
	e := newTestEngine(t)
	res := e.Check(eastVilLat, eastVilLng, at(t, 5, 8, 45))
	if res.Status != model.StatusRed {
		t.Fatalf("status = %s, want red (%s)", res.Status, res.Reason)
	}
	if res.Reason != "Street cleaning until 10:00" {
		t.Fatalf("reason = %q", res.Reason)
	}
	if res.ParkingType != model.TypeStreetCleaning {
		t.Fatalf("parkingType = %s", res.ParkingType)
	}
	want := time.Date(2026, 1, 5, 10, 0, 0, 0, est)
	if res.ExpiresAt == nil || !res.ExpiresAt.Equal(want) {
		t.Fatalf("expiresAt = %v, want %v", res.ExpiresAt, want)
	}
	if res.Borough != "Manhattan" {
		t.Fatalf("borough = %q", res.Borough)
	}
}

func TestCheckCleaningSoonIsYellow(t *testing.T) {
	e := newTestEngine(t)
	res := e.Check(eastVilLat, eastVilLng, at(t, 5, 8, 0))
	if res.Status != model.StatusYellow {
		t.Fatalf("status = %s, want yellow (%s)", res.Status, res.Reason)
	}
	if res.Reason != "Street cleaning in 30 min - move your car!" {
		t.Fatalf("reason = %q", res.Reason)
	}
	want := time.Date(2026, 1, 5, 8, 30, 0, 0, est)
	if res.ExpiresAt == nil || !res.ExpiresAt.Equal(want) {
		t.Fatalf("expiresAt = %v, want %v", res.ExpiresAt, want)
	}
}

func TestCheckCleaningWarnBand(t *testing.T) {
	e := newTestEngine(t)
	res := e.Check(eastVilLat, eastVilLng, at(t, 5, 7, 45))
	if res.Status != model.StatusYellow {
		t.Fatalf("status = %s, want yellow (%s)", res.Status, res.Reason)
	}
	if res.Reason != "Street cleaning in 45 min" {
		t.Fatalf("reason = %q", res.Reason)
	}
}

func TestCheckCleaningLaterTodayIsGreenAdvisory(t *testing.T) {
	e := newTestEngine(t)
	res := e.Check(eastVilLat, eastVilLng, at(t, 5, 6, 0))
	if res.Status != model.StatusGreen {
		t.Fatalf("status = %s, want green (%s)", res.Status, res.Reason)
	}
	if res.Reason != "OK for now - cleaning at 08:30" {
		t.Fatalf("reason = %q", res.Reason)
	}
	want := time.Date(2026, 1, 5, 8, 30, 0, 0, est)
	if res.ExpiresAt == nil || !res.ExpiresAt.Equal(want) {
		t.Fatalf("expiresAt = %v, want %v", res.ExpiresAt, want)
	}
	found := false
	for _, rec := range res.Recommendations {
		if rec == "Remember: cleaning at 08:30" {
			found = true
		}
	}
	if !found {
		t.Fatalf("missing advisory recommendation: %v", res.Recommendations)
	}
}

func TestCheckGreenAdvisoryMatchesReason(t *testing.T) {
	// Catalogue order deliberately reversed against start-time order:
	// the reason and the advisory must cite the same (soonest) window.
	dir := t.TempDir()
	files := map[string]string{
		"nyc_cleaning.json": `{
  "boroughs": {
    "Manhattan": {
      "schedules": [
        {"side": "South/West", "days": [0], "startTime": "14:00", "endTime": "15:30"},
        {"side": "North/East", "days": [0], "startTime": "08:30", "endTime": "10:00"}
      ]
    }
  }
}`,
		"meter_zones.json": `{"zones": []}`,
		"holidays.json":    `{"holidays": []}`,
	}
	for name, body := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	e := NewEngine(catalog.Load(dir), est, 30, 60)
	res := e.Check(eastVilLat, eastVilLng, at(t, 5, 6, 0))
	if res.Status != model.StatusGreen {
		t.Fatalf("status = %s, want green (%s)", res.Status, res.Reason)
	}
	if res.Reason != "OK for now - cleaning at 08:30" {
		t.Fatalf("reason = %q", res.Reason)
	}
	for _, rec := range res.Recommendations {
		if rec == "Remember: cleaning at 14:00" {
			t.Fatalf("advisory cites the wrong window: %v", res.Recommendations)
		}
	}
	found := false
	for _, rec := range res.Recommendations {
		if rec == "Remember: cleaning at 08:30" {
			found = true
		}
	}
	if !found {
		t.Fatalf("missing advisory recommendation: %v", res.Recommendations)
	}
}

func TestCheckSameDayTieBreakPrefersActive(t *testing.T) {
	e := newTestEngine(t)
	// Monday 14:30: the 08:30 window is over, the 14:00-15:30 one active.
	res := e.Check(eastVilLat, eastVilLng, at(t, 5, 14, 30))
	if res.Status != model.StatusRed {
		t.Fatalf("status = %s, want red (%s)", res.Status, res.Reason)
	}
	if res.Reason != "Street cleaning until 15:30" {
		t.Fatalf("reason = %q", res.Reason)
	}
}

func TestCheckMeterIsYellowWithMaxDuration(t *testing.T) {
	e := newTestEngine(t)
	res := e.Check(timesSqLat, timesSqLng, at(t, 6, 12, 0))
	if res.Status != model.StatusYellow {
		t.Fatalf("status = %s, want yellow (%s)", res.Status, res.Reason)
	}
	if res.Reason != "Metered zone - $3.50/hr (max 120 min)" {
		t.Fatalf("reason = %q", res.Reason)
	}
	if res.ParkingType != model.TypeMeter {
		t.Fatalf("parkingType = %s", res.ParkingType)
	}
	if res.ZoneCode != "M1" {
		t.Fatalf("zoneCode = %q", res.ZoneCode)
	}
	want := time.Date(2026, 1, 6, 14, 0, 0, 0, est)
	if res.ExpiresAt == nil || !res.ExpiresAt.Equal(want) {
		t.Fatalf("expiresAt = %v, want %v", res.ExpiresAt, want)
	}
	found := false
	for _, rec := range res.Recommendations {
		if rec == "Maximum parking time: 120 minutes" {
			found = true
		}
	}
	if !found {
		t.Fatalf("missing meter recommendation: %v", res.Recommendations)
	}
}

func TestCheckMeterWithoutDurationCapHasNoExpiry(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"nyc_cleaning.json": `{
  "boroughs": {
    "Manhattan": {
      "schedules": [
        {"side": "North", "days": [4], "startTime": "08:30", "endTime": "10:00"}
      ]
    }
  }
}`,
		"meter_zones.json": `{
  "default": {"rate": 2.0, "startTime": "07:00", "endTime": "19:00"},
  "zones": [
    {"code": "M1", "name": "Midtown Core",
     "bounds": {"minLat": 40.75, "maxLat": 40.77, "minLng": -74.00, "maxLng": -73.97}}
  ]
}`,
		"holidays.json": `{"holidays": []}`,
	}
	for name, body := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	e := NewEngine(catalog.Load(dir), est, 30, 60)
	res := e.Check(timesSqLat, timesSqLng, at(t, 6, 15, 0))
	if res.Status != model.StatusYellow || res.ParkingType != model.TypeMeter {
		t.Fatalf("got %s/%s, want yellow/meter (%s)", res.Status, res.ParkingType, res.Reason)
	}
	if res.Reason != "Metered zone - $2.00/hr" {
		t.Fatalf("reason = %q", res.Reason)
	}
	if res.ExpiresAt != nil {
		t.Fatalf("expiresAt = %v, want nil", res.ExpiresAt)
	}
	for _, rec := range res.Recommendations {
		if strings.HasPrefix(rec, "Maximum parking time") {
			t.Fatalf("unexpected duration cap recommendation: %v", res.Recommendations)
		}
	}
}

func TestCheckCleaningOutranksMeter(t *testing.T) {
	e := newTestEngine(t)
	// Monday 08:45 inside the meter zone: cleaning is active too.
	res := e.Check(timesSqLat, timesSqLng, at(t, 5, 8, 45))
	if res.Status != model.StatusRed || res.ParkingType != model.TypeStreetCleaning {
		t.Fatalf("got %s/%s, want red/street_cleaning", res.Status, res.ParkingType)
	}
}

func TestCheckSundayMetersFree(t *testing.T) {
	e := newTestEngine(t)
	res := e.Check(timesSqLat, timesSqLng, at(t, 4, 12, 0))
	if res.Status != model.StatusGreen || res.ParkingType != model.TypeFree {
		t.Fatalf("got %s/%s, want green/free (%s)", res.Status, res.ParkingType, res.Reason)
	}
	if res.Reason != "Free parking - no restrictions" {
		t.Fatalf("reason = %q", res.Reason)
	}
	if res.ExpiresAt != nil {
		t.Fatalf("expiresAt = %v, want nil", res.ExpiresAt)
	}
}

func TestCheckProhibitionDominates(t *testing.T) {
	e := newTestEngine(t)
	// Brooklyn carries a bus-lane standing prohibition every day; even
	// during Friday's cleaning window the prohibition wins.
	res := e.Check(bkLat, bkLng, at(t, 9, 9, 30))
	if res.Status != model.StatusRed {
		t.Fatalf("status = %s, want red (%s)", res.Status, res.Reason)
	}
	if res.ParkingType != model.TypeNoStanding {
		t.Fatalf("parkingType = %s, want no_standing", res.ParkingType)
	}
	if res.Reason != "No standing - bus lane" {
		t.Fatalf("reason = %q", res.Reason)
	}
	if res.ExpiresAt != nil {
		t.Fatalf("expiresAt = %v, want nil for prohibition", res.ExpiresAt)
	}
}

func TestCheckHolidaySuspendsCleaning(t *testing.T) {
	e := newTestEngine(t)
	// MLK Day is a Monday; cleaning would be active at 08:45 otherwise.
	res := e.Check(eastVilLat, eastVilLng, time.Date(2026, 1, 19, 8, 45, 0, 0, est))
	if res.Status != model.StatusGreen {
		t.Fatalf("status = %s, want green (%s)", res.Status, res.Reason)
	}
	if len(res.Recommendations) == 0 || res.Recommendations[0] != "Alternate side parking suspended (Martin Luther King Jr. Day)" {
		t.Fatalf("recommendations = %v", res.Recommendations)
	}
}

func TestCheckHolidayKeepsMeters(t *testing.T) {
	e := newTestEngine(t)
	res := e.Check(timesSqLat, timesSqLng, time.Date(2026, 1, 19, 12, 0, 0, 0, est))
	if res.Status != model.StatusYellow || res.ParkingType != model.TypeMeter {
		t.Fatalf("got %s/%s, want yellow/meter (%s)", res.Status, res.ParkingType, res.Reason)
	}
}

func TestCheckNonSuspendingHolidayStillCleans(t *testing.T) {
	e := newTestEngine(t)
	// Veterans Day 2026 is a Wednesday; day 2 cleaning runs as usual.
	res := e.Check(eastVilLat, eastVilLng, time.Date(2026, 11, 11, 9, 0, 0, 0, est))
	if res.Status != model.StatusRed {
		t.Fatalf("status = %s, want red (%s)", res.Status, res.Reason)
	}
}

func TestCheckEmptyCatalogueIsGreen(t *testing.T) {
	// A cleaning file naming no boroughs still applies the default
	// schedule, so use a Sunday where nothing matches.
	e := NewEngine(catalog.Load(t.TempDir()), est, 30, 60)
	res := e.Check(timesSqLat, timesSqLng, at(t, 4, 12, 0))
	if res.Status != model.StatusGreen || res.ParkingType != model.TypeFree {
		t.Fatalf("got %s/%s, want green/free", res.Status, res.ParkingType)
	}
	if res.Rules == nil || len(res.Rules) != 0 {
		t.Fatalf("rules = %#v, want empty non-nil slice", res.Rules)
	}
}

func TestCheckIsIdempotent(t *testing.T) {
	e := newTestEngine(t)
	ts := at(t, 5, 8, 45)
	a := e.Check(eastVilLat, eastVilLng, ts)
	b := e.Check(eastVilLat, eastVilLng, ts)
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("repeated evaluation differs:\n%#v\n%#v", a, b)
	}
}

func TestWeekdayIndex(t *testing.T) {
	cases := []struct {
		day  int
		want int
	}{
		{5, 0}, // Monday
		{6, 1},
		{10, 5}, // Saturday
		{4, 6},  // Sunday
	}
	for _, c := range cases {
		if got := weekdayIndex(at(t, c.day, 12, 0)); got != c.want {
			t.Fatalf("weekdayIndex(Jan %d) = %d, want %d", c.day, got, c.want)
		}
	}
}

func TestBoroughFor(t *testing.T) {
	cases := []struct {
		lat, lng float64
		want     string
	}{
		{40.86, -73.90, "Bronx"},
		{40.58, -74.10, "Staten Island"},
		{40.75, -73.80, "Queens"},
		{40.65, -73.95, "Brooklyn"},
		{40.7580, -73.9855, "Manhattan"},
	}
	for _, c := range cases {
		if got := boroughFor(c.lat, c.lng); got != c.want {
			t.Fatalf("boroughFor(%v, %v) = %q, want %q", c.lat, c.lng, got, c.want)
		}
	}
}
