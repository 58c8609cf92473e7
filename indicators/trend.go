package indicators

import "math"

// Kalman is a two-state (price, velocity) smoother with a fixed gain.
type Kalman struct {
	gain  float64
	price float64
	velo  float64
	ready bool
}

func NewKalman(gain float64) *Kalman {
	return &Kalman{gain: gain}
}

// Update feeds the next price and returns the smoothed value. The first
// price seeds the filter and is returned unchanged.
func (k *Kalman) Update(price float64) float64 {
	if !k.ready {
		k.price, k.velo, k.ready = price, 0, true
		return price
	}
	distance := price - k.price
	smooth := k.price + distance*math.Sqrt(k.gain/10000*2)
	k.velo += k.gain / 10000 * distance
	k.price = smooth + k.velo
	return k.price
}

func (k *Kalman) Value() float64 { return k.price }

func (k *Kalman) Reset() { *k = Kalman{gain: k.gain} }

// Trend direction of a Loft trailing level.
type Trend int

const (
	Down Trend = -1
	Up   Trend = 1
)

// Loft is a trailing stop-style trend follower. In an up trend the level
// trails price by DistPct percent and only ratchets up; each ratchet tightens
// the distance by the decrement down to the minimum. Price crossing the
// level flips the trend and resets the distance.
type Loft struct {
	init, min, decrement float64

	trend Trend
	level float64
	dist  float64
}

func NewLoft(start Trend, initPct, minPct, decrement float64) *Loft {
	return &Loft{init: initPct, min: minPct, decrement: decrement, trend: start, dist: initPct}
}

// Update feeds the next price. moved reports whether the level advanced in
// the trend direction on this update.
func (l *Loft) Update(price float64) (trend Trend, moved bool) {
	prev := l.level
	if l.trend == Up {
		l.level = price * (1 - l.dist/100)
		if l.level <= prev {
			l.level = prev
		} else {
			l.dist = math.Max(l.dist-l.decrement, l.min)
			moved = true
		}
		if price < l.level {
			l.trend = Down
			l.dist = l.init
			l.level = price * (1 + l.dist/100)
		}
		return l.trend, moved
	}

	l.level = price * (1 + l.dist/100)
	if l.level >= prev {
		l.level = prev
	} else {
		l.dist = math.Max(l.dist-l.decrement, l.min)
		moved = true
	}
	if price > l.level {
		l.trend = Up
		l.dist = l.init
		l.level = price * (1 - l.dist/100)
	}
	return l.trend, moved
}

func (l *Loft) Trend() Trend     { return l.trend }
func (l *Loft) Level() float64   { return l.level }
func (l *Loft) DistPct() float64 { return l.dist }
