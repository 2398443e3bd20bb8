package env

import (
	"math/rand"
	"testing"
)

func TestOwareResetShape(t *testing.T) {
	e := NewOware(1)
	obs := e.Reset()
	if len(obs) != OwareObsLen {
		t.Fatalf("observation length = %d, want %d", len(obs), OwareObsLen)
	}
	if obs[0] != 0 {
		t.Errorf("mover at reset = %v, want 0", obs[0])
	}
	if obs[1] != 0 || obs[2] != 0 {
		t.Errorf("scores at reset = %v %v, want 0 0", obs[1], obs[2])
	}
	for i := 3; i < OwareObsLen; i++ {
		if obs[i] != 4.0/seedScale {
			t.Errorf("pit obs[%d] = %v, want %v", i, obs[i], 4.0/seedScale)
		}
	}
}

func TestOwareGamesTerminate(t *testing.T) {
	e := NewOware(2)
	rng := rand.New(rand.NewSource(3))

	for game := 0; game < 5; game++ {
		e.Reset()
		done := false
		var reward float64
		for step := 0; step <= owareMoveCap; step++ {
			var obs []float64
			obs, reward, done = e.Step(rng.Intn(OwareActions))
			if len(obs) != OwareObsLen {
				t.Fatalf("observation length = %d, want %d", len(obs), OwareObsLen)
			}
			if done {
				break
			}
		}
		if !done {
			t.Fatalf("game %d still running after the move cap", game)
		}
		if reward < -1 || reward > 1 {
			t.Errorf("game %d terminal reward = %v, want within [-1, 1]", game, reward)
		}
	}
}
