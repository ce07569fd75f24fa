package tracking

import "time"

// Config holds the tracker thresholds. The defaults were tuned empirically.
type Config struct {
	StaleAfter         time.Duration
	MatchThreshold     float64
	LabelBonus         float64
	CenterWeight       float64
	MinIoU             float64
	MaxCenterDistance  float64
	PersistencePeriods float64
	MergeIoU           float64
	ExpandRatio        float64
	ExpandMinPixels    int
}

// DefaultConfig returns the stock thresholds.
func DefaultConfig() Config {
	return Config{
		StaleAfter:         2 * time.Second,
		MatchThreshold:     0.3,
		LabelBonus:         0.3,
		CenterWeight:       0.5,
		MinIoU:             0.1,
		MaxCenterDistance:  0.2,
		PersistencePeriods: 3,
		MergeIoU:           0.3,
		ExpandRatio:        0.25,
		ExpandMinPixels:    15,
	}
}
