package config

import (
	"time"

	"aegis/internal/tracking"
)

// TrackerConfig converts the [tracking] section into tracker thresholds.
func (t Tracking) TrackerConfig() tracking.Config {
	return tracking.Config{
		StaleAfter:         time.Duration(t.StaleAfterSeconds * float64(time.Second)),
		MatchThreshold:     t.MatchThreshold,
		LabelBonus:         t.LabelBonus,
		CenterWeight:       t.CenterWeight,
		MinIoU:             t.MinIoU,
		MaxCenterDistance:  t.MaxCenterDistance,
		PersistencePeriods: t.PersistencePeriods,
		MergeIoU:           t.MergeIoU,
		ExpandRatio:        t.ExpandRatio,
		ExpandMinPixels:    t.ExpandMinPixels,
	}
}
