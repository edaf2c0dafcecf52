package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/glucoview/glucoview/internal/glucose"
	"github.com/glucoview/glucoview/internal/refresh"
)

const barWidth = 40

var marks = map[glucose.Class]string{
	glucose.Low:     "L",
	glucose.InRange: " ",
	glucose.High:    "H",
}

// render prints one row per point with a bar scaled to the axis bounds.
func render(out io.Writer, v refresh.View) {
	s := v.Series
	if s == nil || s.Empty() {
		fmt.Fprintln(out, "no glucose data")
		return
	}
	fmt.Fprintf(out, "updated %s  target %g-%g  axis %g-%g\n",
		v.UpdatedAt.Format("15:04:05"), s.Range.Low, s.Range.High, s.Axis.Min, s.Axis.Max)
	span := s.Axis.Max - s.Axis.Min
	for _, p := range s.Points {
		n := 0
		if span > 0 {
			n = int((p.Value - s.Axis.Min) / span * barWidth)
		}
		n = min(max(n, 0), barWidth)
		fmt.Fprintf(out, "%s %6.1f %s |%s\n", p.Label, p.Value, marks[p.Class], strings.Repeat("#", n))
	}
}
