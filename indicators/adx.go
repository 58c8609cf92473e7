package indicators

import (
	"fmt"
	"math"

	"github.com/rustyeddy/backtester/market"
)

// ADX is Wilder's Average Directional Index, updated one bar at a time.
//
// The first bar only primes the previous high, low and close. The next n
// bars seed the smoothed true range and directional movement, and the first
// n DX values are averaged to seed the ADX. The first DX comes with the
// seeding bar, so Ready turns true on bar 2n.
type ADX struct {
	n    int
	name string

	prev    market.Bar
	hasPrev bool
	periods int
	ready   bool

	smTR, smPlusDM, smMinusDM float64
	plusDI, minusDI           float64
	lastDX                    float64
	dxSum                     float64
	dxCount                   int
	adx                       float64
}

func NewADX(period int) (*ADX, error) {
	if period <= 0 {
		return nil, fmt.Errorf("ADX period must be > 0, got %d", period)
	}
	return &ADX{n: period, name: fmt.Sprintf("ADX(%d)", period)}, nil
}

func (a *ADX) Name() string     { return a.name }
func (a *ADX) Warmup() int      { return 2 * a.n }
func (a *ADX) Ready() bool      { return a.ready }
func (a *ADX) Value() float64   { return a.adx }
func (a *ADX) PlusDI() float64  { return a.plusDI }
func (a *ADX) MinusDI() float64 { return a.minusDI }
func (a *ADX) DX() float64      { return a.lastDX }

func (a *ADX) Reset() {
	*a = ADX{n: a.n, name: a.name}
}

// Update consumes the next closed bar.
func (a *ADX) Update(b market.Bar) {
	if !a.hasPrev {
		a.prev, a.hasPrev = b, true
		return
	}
	prev := a.prev
	a.prev = b

	tr := max(b.High-b.Low, math.Abs(b.High-prev.Close), math.Abs(b.Low-prev.Close))

	up := b.High - prev.High
	down := prev.Low - b.Low
	var plusDM, minusDM float64
	if up > down && up > 0 {
		plusDM = up
	}
	if down > up && down > 0 {
		minusDM = down
	}

	a.periods++
	nf := float64(a.n)

	if a.periods <= a.n {
		a.smTR += tr
		a.smPlusDM += plusDM
		a.smMinusDM += minusDM
		if a.periods < a.n {
			return
		}
	} else {
		// Wilder smoothing: prior - prior/n + current
		a.smTR = a.smTR - a.smTR/nf + tr
		a.smPlusDM = a.smPlusDM - a.smPlusDM/nf + plusDM
		a.smMinusDM = a.smMinusDM - a.smMinusDM/nf + minusDM
	}

	a.plusDI, a.minusDI = di(a.smPlusDM, a.smMinusDM, a.smTR)
	a.lastDX = dx(a.plusDI, a.minusDI)

	if a.ready {
		a.adx = (a.adx*(nf-1) + a.lastDX) / nf
		return
	}
	a.dxSum += a.lastDX
	a.dxCount++
	if a.dxCount >= a.n {
		a.adx = a.dxSum / nf
		a.ready = true
	}
}

func di(smPlusDM, smMinusDM, smTR float64) (plus, minus float64) {
	if smTR <= 0 {
		return 0, 0
	}
	return 100 * smPlusDM / smTR, 100 * smMinusDM / smTR
}

func dx(plusDI, minusDI float64) float64 {
	den := plusDI + minusDI
	if den <= 0 {
		return 0
	}
	return 100 * math.Abs(plusDI-minusDI) / den
}

// RunningEMA is an exponential moving average fed one price at a time and
// seeded with the first price. It is ready once period prices were seen.
type RunningEMA struct {
	alpha float64
	n     int
	seen  int
	value float64
}

func NewRunningEMA(period int) (*RunningEMA, error) {
	if period <= 0 {
		return nil, fmt.Errorf("EMA period must be > 0, got %d", period)
	}
	return &RunningEMA{alpha: 2 / float64(period+1), n: period}, nil
}

func (e *RunningEMA) Update(x float64) float64 {
	e.seen++
	if e.seen == 1 {
		e.value = x
	} else {
		e.value = e.alpha*x + (1-e.alpha)*e.value
	}
	return e.value
}

func (e *RunningEMA) Ready() bool    { return e.seen >= e.n }
func (e *RunningEMA) Value() float64 { return e.value }
