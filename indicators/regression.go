package indicators

import "math"

// Line is a least-squares fit y = Intercept + Slope*x over x = 0..n-1.
type Line struct {
	Slope     float64
	Intercept float64
}

// At evaluates the line at x.
func (l Line) At(x float64) float64 { return l.Intercept + l.Slope*x }

// FitLine fits ys against their indexes. One point gives a flat line through
// it; no points gives the zero line.
func FitLine(ys []float64) Line {
	n := float64(len(ys))
	switch len(ys) {
	case 0:
		return Line{}
	case 1:
		return Line{Intercept: ys[0]}
	}

	var sumX, sumY, sumXY, sumXX float64
	for i, y := range ys {
		x := float64(i)
		sumX += x
		sumY += y
		sumXY += x * y
		sumXX += x * x
	}

	denom := n*sumXX - sumX*sumX
	if math.Abs(denom) < 1e-20 {
		return Line{Intercept: sumY / n}
	}
	slope := (n*sumXY - sumX*sumY) / denom
	return Line{Slope: slope, Intercept: (sumY - slope*sumX) / n}
}
