package rules

import (
	"fmt"
	"time"

	"curbside/internal/model"
)

// evaluate reduces the matched rule set to one status tuple. Fixed
// priority, first match wins:
//
//  1. prohibition present            -> red, no expiry
//  2. cleaning window active         -> red, expires at window end
//  3. cleaning starts within soonMin -> yellow countdown
//  4. cleaning starts within warnMin -> yellow countdown
//  5. meter rule present             -> yellow, expires after max duration
//  6. cleaning later today           -> green advisory, expires at start
//  7. nothing                        -> green / free
//
// Time math is minute-of-day on the query's calendar date; windows
// spanning midnight are rejected at catalogue load, never evaluated.
func evaluate(rules []model.Rule, local time.Time, soonMin, warnMin int) (model.Status, string, model.ParkingType, *time.Time) {
	if len(rules) == 0 {
		return model.StatusGreen, "Free parking - no restrictions", model.TypeFree, nil
	}

	for _, r := range rules {
		if r.Kind.Prohibits() {
			return model.StatusRed, r.Description, model.ParkingType(r.Kind), nil
		}
	}

	nowMin := local.Hour()*60 + local.Minute()

	cleaning, active, haveCleaning := pickCleaning(rules, nowMin)
	if haveCleaning {
		if active {
			expires := onDate(cleaning.EndMin, local)
			reason := fmt.Sprintf("Street cleaning until %s", cleaning.EndTime)
			return model.StatusRed, reason, model.TypeStreetCleaning, &expires
		}
		wait := cleaning.StartMin - nowMin
		if wait <= soonMin {
			expires := onDate(cleaning.StartMin, local)
			reason := fmt.Sprintf("Street cleaning in %d min - move your car!", wait)
			return model.StatusYellow, reason, model.TypeStreetCleaning, &expires
		}
		if wait <= warnMin {
			expires := onDate(cleaning.StartMin, local)
			reason := fmt.Sprintf("Street cleaning in %d min", wait)
			return model.StatusYellow, reason, model.TypeStreetCleaning, &expires
		}
	}

	for _, r := range rules {
		if r.Kind != model.KindMeter {
			continue
		}
		if r.MaxDuration > 0 {
			expires := local.Add(time.Duration(r.MaxDuration) * time.Minute)
			reason := fmt.Sprintf("Metered zone - $%.2f/hr (max %d min)", r.Rate, r.MaxDuration)
			return model.StatusYellow, reason, model.TypeMeter, &expires
		}
		reason := fmt.Sprintf("Metered zone - $%.2f/hr", r.Rate)
		return model.StatusYellow, reason, model.TypeMeter, nil
	}

	if haveCleaning {
		// Start is beyond the warning band; advisory only.
		expires := onDate(cleaning.StartMin, local)
		reason := fmt.Sprintf("OK for now - cleaning at %s", cleaning.StartTime)
		return model.StatusGreen, reason, model.TypeFree, &expires
	}

	return model.StatusGreen, "Free parking - no restrictions", model.TypeFree, nil
}

// pickCleaning selects the relevant street-cleaning rule when several
// match the same day: a window containing now wins, otherwise the one
// starting soonest after now; remaining ties keep catalogue order.
// Windows already over for the day are ignored.
func pickCleaning(rules []model.Rule, nowMin int) (model.Rule, bool, bool) {
	var best model.Rule
	bestWait := 0
	found := false
	for _, r := range rules {
		if r.Kind != model.KindStreetCleaning {
			continue
		}
		if r.StartMin <= nowMin && nowMin < r.EndMin {
			return r, true, true
		}
		if nowMin < r.StartMin {
			wait := r.StartMin - nowMin
			if !found || wait < bestWait {
				best, bestWait, found = r, wait, true
			}
		}
	}
	return best, false, found
}

// onDate places a minute-of-day on ref's calendar date in ref's zone.
func onDate(min int, ref time.Time) time.Time {
	return time.Date(ref.Year(), ref.Month(), ref.Day(), min/60, min%60, 0, 0, ref.Location())
}
