package rules

import (
	"fmt"
	"time"

	"curbside/internal/catalog"
	"curbside/internal/model"
)

// weekdayIndex maps Go weekdays onto the catalogue convention 0=Monday..6=Sunday.
func weekdayIndex(t time.Time) int { return (int(t.Weekday()) + 6) % 7 }

// boroughFor classifies a point against a coarse fixed region set.
// Points outside every region fall back to Manhattan rather than erroring.
func boroughFor(lat, lng float64) string {
	switch {
	case lat > 40.85:
		return "Bronx"
	case lng < -73.97 && lat < 40.7:
		return "Staten Island"
	case lng > -73.87:
		return "Queens"
	case lat < 40.7 && lng > -74.04:
		return "Brooklyn"
	default:
		return "Manhattan"
	}
}

// resolveFacts derives the location facts and candidate rule set for one
// query. The returned rules preserve catalogue order; priority between
// them is the evaluator's job. All reads hit the in-memory snapshot.
func resolveFacts(snap *catalog.Snapshot, lat, lng float64, local time.Time) (model.LocationFacts, []model.Rule, *model.Holiday) {
	weekday := weekdayIndex(local)
	facts := model.LocationFacts{
		Borough: boroughFor(lat, lng),
		Address: fmt.Sprintf("%.4f, %.4f", lat, lng),
	}

	var matched []model.Rule
	var suspension *model.Holiday

	if h, ok := snap.Holiday(local.Format("2006-01-02")); ok && h.AlternateSideSuspended {
		suspension = &h
	} else {
		matched = append(matched, snap.CleaningRules(facts.Borough, weekday)...)
	}

	// Meters stay active on holidays; only the designated free day skips them.
	if weekday != snap.MeterFreeDay() {
		if zone, ok := snap.MeterZoneAt(lat, lng); ok && zone.Rule.AppliesOn(weekday) {
			nowMin := local.Hour()*60 + local.Minute()
			if zone.Rule.StartMin <= nowMin && nowMin < zone.Rule.EndMin {
				matched = append(matched, zone.Rule)
				facts.ZoneCode = zone.Code
			}
		}
	}

	// Prohibitions take no time-window test; matching one is always active.
	matched = append(matched, snap.Restrictions(facts.Borough, weekday)...)

	return facts, matched, suspension
}
