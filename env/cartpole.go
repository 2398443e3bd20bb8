package env

import (
	"math"
	"math/rand"
)

const (
	gravity        = 9.81
	massCart       = 1.0
	massPole       = 0.1
	poleLength     = 0.5
	totalMass      = massCart + massPole
	poleMassLength = massPole * poleLength
	forceMax       = 10.0
	tau            = 0.02

	xThreshold     = 2.4
	thetaThreshold = 12.0 * math.Pi / 180.0
	cartEpisodeCap = 500
)

// CartPole wiring sizes.
const (
	CartPoleObsLen  = 4
	CartPoleActions = 2
)

// CartPole balances a pole on a moving cart. Observations are
// [x, xDot, theta, thetaDot]; action 0 pushes left, action 1 pushes right.
// An episode ends when the cart leaves the track, the pole tips past
// twelve degrees, or 500 steps pass.
type CartPole struct {
	x        float64
	xDot     float64
	theta    float64
	thetaDot float64
	steps    int
	rng      *rand.Rand
}

func NewCartPole(seed int64) *CartPole {
	return &CartPole{rng: rand.New(rand.NewSource(seed))}
}

func (e *CartPole) Reset() []float64 {
	e.x = e.rng.Float64()*0.1 - 0.05
	e.xDot = e.rng.Float64()*0.1 - 0.05
	e.theta = e.rng.Float64()*0.1 - 0.05
	e.thetaDot = e.rng.Float64()*0.1 - 0.05
	e.steps = 0
	return e.obs()
}

func (e *CartPole) Step(action int) ([]float64, float64, bool) {
	force := forceMax
	if action == 0 {
		force = -forceMax
	}

	cosTheta := math.Cos(e.theta)
	sinTheta := math.Sin(e.theta)

	temp := (force + poleMassLength*e.thetaDot*e.thetaDot*sinTheta) / totalMass
	thetaAcc := (gravity*sinTheta - cosTheta*temp) / (poleLength * (4.0/3.0 - massPole*cosTheta*cosTheta/totalMass))
	xAcc := temp - poleMassLength*thetaAcc*cosTheta/totalMass

	e.x += tau * e.xDot
	e.xDot += tau * xAcc
	e.theta += tau * e.thetaDot
	e.thetaDot += tau * thetaAcc
	e.steps++

	done := e.x < -xThreshold || e.x > xThreshold ||
		e.theta < -thetaThreshold || e.theta > thetaThreshold ||
		e.steps >= cartEpisodeCap
	reward := 1.0
	if done && e.steps < cartEpisodeCap {
		reward = 0.0
	}
	return e.obs(), reward, done
}

func (e *CartPole) obs() []float64 {
	return []float64{e.x, e.xDot, e.theta, e.thetaDot}
}
