package schedule

// Const keeps the same value for every step.
type Const float64

func (c Const) Value(int) float64 { return float64(c) }

// Linear interpolates from Start to End over Steps steps, then holds End.
type Linear struct {
	Start float64
	End   float64
	Steps int
}

func (l Linear) Value(t int) float64 {
	if l.Steps <= 0 || t >= l.Steps {
		return l.End
	}
	if t < 0 {
		t = 0
	}
	return l.Start + (l.End-l.Start)*float64(t)/float64(l.Steps)
}

// Point anchors a Piecewise schedule: at step T the schedule is worth V.
type Point struct {
	T int
	V float64
}

// Piecewise interpolates linearly between successive points, holding the
// first value before the first point and the last value after the last.
// Points must be ordered by T.
type Piecewise []Point

func (p Piecewise) Value(t int) float64 {
	if len(p) == 0 {
		return 0
	}
	if t <= p[0].T {
		return p[0].V
	}
	for i := 1; i < len(p); i++ {
		if t < p[i].T {
			lo, hi := p[i-1], p[i]
			frac := float64(t-lo.T) / float64(hi.T-lo.T)
			return lo.V + (hi.V-lo.V)*frac
		}
	}
	return p[len(p)-1].V
}
