package glucose

import (
	"math"
	"time"
)

// Class is the locally computed position of a reading relative to the target range.
type Class string

const (
	Low     Class = "low"
	InRange Class = "in_range"
	High    Class = "high"
)

// Color is the point color the chart uses for the class.
func (c Class) Color() string {
	switch c {
	case Low:
		return "#ff0000"
	case High:
		return "#0000ff"
	}
	return "#ffffff"
}

// Classify ignores any server flags: Low iff v < low, High iff v > high.
func Classify(tr TargetRange, v float64) Class {
	switch {
	case v < tr.Low:
		return Low
	case v > tr.High:
		return High
	}
	return InRange
}

// Point is one plotted reading. Index is positional; Timestamp only feeds Label.
type Point struct {
	Index     int       `json:"index"`
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
	Class     Class     `json:"classification"`
	Label     string    `json:"label"`
	Color     string    `json:"color"`
}

// Axis holds the y bounds. Both are multiples of 10.
type Axis struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Series is the renderable model. Axis is nil when there are no points.
type Series struct {
	Points []Point     `json:"points"`
	Range  TargetRange `json:"targetRange"`
	Axis   *Axis       `json:"axis,omitempty"`
}

// Empty means "no data", not an error.
func (s Series) Empty() bool { return len(s.Points) == 0 }

const (
	axisMargin = 40
	axisGrid   = 10
)

// Process derives a Series from one fetched batch. It is pure.
func Process(tr TargetRange, readings []Reading) Series {
	out := Series{Points: make([]Point, 0, len(readings)), Range: tr}
	if len(readings) == 0 {
		return out
	}

	lo, hi := readings[0].Value, readings[0].Value
	for i, r := range readings {
		c := Classify(tr, r.Value)
		out.Points = append(out.Points, Point{
			Index:     i,
			Timestamp: r.Timestamp,
			Value:     r.Value,
			Class:     c,
			Label:     r.Timestamp.Format("15:04"),
			Color:     c.Color(),
		})
		lo = math.Min(lo, r.Value)
		hi = math.Max(hi, r.Value)
	}
	out.Axis = &Axis{
		Min: math.Floor(math.Max(0, lo-axisMargin)/axisGrid) * axisGrid,
		Max: math.Ceil((hi+axisMargin)/axisGrid) * axisGrid,
	}
	return out
}
