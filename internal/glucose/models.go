package glucose

import "time"

// TargetRange is the clinician-set band readings are classified against. Low < High.
type TargetRange struct {
	Low  float64 `json:"low"`
	High float64 `json:"high"`
}

// Reading is one glucose measurement. IsHigh/IsLow come from the server and are
// advisory only; Process recomputes the classification.
type Reading struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
	IsHigh    bool      `json:"isHigh"`
	IsLow     bool      `json:"isLow"`
}

// Batch is one fetch result. Range applies to these Readings only.
type Batch struct {
	Range    TargetRange
	Readings []Reading
}
