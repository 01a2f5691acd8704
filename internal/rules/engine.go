// Package rules implements the parking status engine: given coordinates
// and a timestamp it resolves the applicable restriction rules and
// reduces them to a single prioritized status with supporting detail.
//
// Every call is a pure function of (coordinates, timestamp, catalogue
// snapshot): the engine holds no per-call state, performs no I/O, and is
// safe for unbounded concurrent use.
package rules

import (
	"fmt"
	"time"

	"curbside/internal/catalog"
	"curbside/internal/model"
)

// Engine evaluates parking status against a rule catalogue.
type Engine struct {
	catalog *catalog.Catalog
	loc     *time.Location
	soonMin int
	warnMin int
}

// NewEngine wires an engine to a catalogue and a fixed jurisdiction zone.
// Thresholds are the "cleaning starts soon" warning bands in minutes.
func NewEngine(cat *catalog.Catalog, loc *time.Location, soonMin, warnMin int) *Engine {
	if soonMin <= 0 {
		soonMin = 30
	}
	if warnMin < soonMin {
		warnMin = 60
	}
	return &Engine{catalog: cat, loc: loc, soonMin: soonMin, warnMin: warnMin}
}

// Check returns the parking status for a point at a given instant. It
// never fails: degraded catalogue data and out-of-range coordinates both
// reduce to the canonical free/green result.
func (e *Engine) Check(lat, lng float64, at time.Time) model.StatusResult {
	local := at.In(e.loc)
	snap := e.catalog.Snapshot()

	facts, matched, suspension := resolveFacts(snap, lat, lng, local)
	status, reason, ptype, expires := evaluate(matched, local, e.soonMin, e.warnMin)

	recs := make([]string, 0, 4)
	if suspension != nil {
		recs = append(recs, fmt.Sprintf("Alternate side parking suspended (%s)", suspension.Name))
	}
	nowMin := local.Hour()*60 + local.Minute()
	recs = append(recs, recommend(status, ptype, matched, nowMin)...)

	if matched == nil {
		matched = []model.Rule{}
	}
	return model.StatusResult{
		Status:          status,
		Reason:          reason,
		ParkingType:     ptype,
		Rules:           matched,
		ExpiresAt:       expires,
		Address:         facts.Address,
		ZoneCode:        facts.ZoneCode,
		Borough:         facts.Borough,
		Recommendations: recs,
	}
}
