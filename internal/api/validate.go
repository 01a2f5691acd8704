package api

import (
	"fmt"

	"curbside/internal/model"
)

func validateCoordinates(c model.Coordinates) error {
	if c.Latitude < -90 || c.Latitude > 90 {
		return fmt.Errorf("latitude must be in [-90,90]")
	}
	if c.Longitude < -180 || c.Longitude > 180 {
		return fmt.Errorf("longitude must be in [-180,180]")
	}
	return nil
}

func validatePaymentRequest(req *model.ConfirmPaymentRequest) error {
	switch req.Method {
	case "parkmobile", "paybyphone", "coin", "other":
	default:
		return fmt.Errorf("invalid payment method: %s", req.Method)
	}
	if req.DurationMinutes <= 0 {
		return fmt.Errorf("durationMinutes must be > 0")
	}
	return nil
}

func validateDetectionMethod(m string) error {
	switch m {
	case "", "manual", "bluetooth", "activity_recognition":
		return nil
	}
	return fmt.Errorf("invalid detection method: %s", m)
}
