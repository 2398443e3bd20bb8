package env

import (
	"math/rand"

	"github.com/Antonite/oware"
)

// Oware wiring sizes: the observation is the mover plus both scores plus
// all twelve pits; actions pick one of the six pits on the mover's side.
const (
	OwareObsLen  = 15
	OwareActions = 6
)

const (
	owareMoveCap   = 200
	illegalPenalty = -0.1
	seedScale      = 48.0
)

// Oware plays the learning agent as player 1 against a uniformly random
// opponent whose reply is folded into the same step. Illegal pit choices
// cost a small penalty and leave the board unchanged. Games reaching the
// move cap end with no reward.
type Oware struct {
	board *oware.Board
	moves int
	rng   *rand.Rand
}

func NewOware(seed int64) *Oware {
	return &Oware{
		board: oware.Initialize(),
		rng:   rand.New(rand.NewSource(seed)),
	}
}

func (e *Oware) Reset() []float64 {
	e.board = oware.Initialize()
	e.moves = 0
	return e.obs()
}

func (e *Oware) Step(action int) ([]float64, float64, bool) {
	e.moves++

	pit := e.validPit(action)
	if pit < 0 {
		if len(e.board.GetValidMoves()) == 0 {
			// The whole side is blocked, the game cannot continue.
			e.board.ForceEndGame()
			return e.obs(), e.outcome(), true
		}
		if e.moves >= owareMoveCap {
			return e.obs(), 0, true
		}
		return e.obs(), illegalPenalty, false
	}

	nb, err := e.board.Move(pit)
	if err != nil {
		panic(err)
	}
	e.board = nb

	// Random opponent reply.
	for e.board.Status == oware.InProgress && e.board.Player() == 1 {
		moves := e.board.GetValidMoves()
		if len(moves) == 0 {
			e.board.ForceEndGame()
			break
		}
		nb, err := e.board.Move(moves[e.rng.Intn(len(moves))])
		if err != nil {
			panic(err)
		}
		e.board = nb
	}

	if e.board.Status != oware.InProgress {
		return e.obs(), e.outcome(), true
	}
	if e.moves >= owareMoveCap {
		return e.obs(), 0, true
	}
	return e.obs(), 0, false
}

// validPit maps an action to the matching pit among the mover's legal
// moves, or -1 when the chosen pit cannot be played.
func (e *Oware) validPit(action int) int {
	for _, m := range e.board.GetValidMoves() {
		if m%OwareActions == action {
			return m
		}
	}
	return -1
}

// outcome scores a finished game from the agent's side of the board.
func (e *Oware) outcome() float64 {
	switch e.board.Status {
	case oware.Tie, oware.InProgress:
		return 0
	case oware.Player1Won:
		return 1
	default:
		return -1
	}
}

func (e *Oware) obs() []float64 {
	o := make([]float64, 0, OwareObsLen)
	o = append(o, float64(e.board.Player()))
	for _, s := range e.board.Scores() {
		o = append(o, float64(s)/seedScale)
	}
	for _, p := range e.board.Pits() {
		o = append(o, float64(p)/seedScale)
	}
	return o
}
