package rules

import (
	"fmt"

	"curbside/internal/model"
)

// recommend maps the evaluator's output to advisory strings. Pure; it
// never re-reads the catalogue.
func recommend(status model.Status, ptype model.ParkingType, rules []model.Rule, nowMin int) []string {
	var out []string
	switch status {
	case model.StatusRed:
		if ptype == model.TypeStreetCleaning {
			out = append(out,
				"Find parking on the opposite side of the street",
				"Check nearby blocks for available spots")
		} else {
			out = append(out,
				"This location does not allow parking",
				"Look for legal parking nearby")
		}
	case model.StatusYellow:
		switch ptype {
		case model.TypeMeter:
			out = append(out,
				"Pay with ParkMobile or at the meter",
				"Set a reminder before time expires")
			for _, r := range rules {
				if r.Kind == model.KindMeter && r.MaxDuration > 0 {
					out = append(out, fmt.Sprintf("Maximum parking time: %d minutes", r.MaxDuration))
				}
			}
		case model.TypeStreetCleaning:
			out = append(out,
				"Move your car before cleaning begins",
				"Set a reminder to avoid a ticket")
		}
	case model.StatusGreen:
		// Cite the same rule the evaluator's reason names, not the
		// first one in catalogue order.
		if r, _, ok := pickCleaning(rules, nowMin); ok {
			out = append(out, fmt.Sprintf("Remember: cleaning at %s", r.StartTime))
		}
	}
	return out
}
