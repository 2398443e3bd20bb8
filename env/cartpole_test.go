package env

import (
	"reflect"
	"testing"
)

func TestCartPoleResetBounds(t *testing.T) {
	e := NewCartPole(1)
	obs := e.Reset()
	if len(obs) != CartPoleObsLen {
		t.Fatalf("observation length = %d, want %d", len(obs), CartPoleObsLen)
	}
	for i, v := range obs {
		if v < -0.05 || v > 0.05 {
			t.Errorf("reset obs[%d] = %v, want within [-0.05, 0.05]", i, v)
		}
	}
}

func TestCartPoleBalancedStepRewards(t *testing.T) {
	e := NewCartPole(2)
	e.Reset()
	obs, reward, done := e.Step(1)
	if len(obs) != CartPoleObsLen {
		t.Fatalf("observation length = %d, want %d", len(obs), CartPoleObsLen)
	}
	if done {
		t.Fatal("episode ended on the first step from a near-upright start")
	}
	if reward != 1 {
		t.Errorf("reward while balanced = %v, want 1", reward)
	}
}

func TestCartPoleConstantPushFails(t *testing.T) {
	e := NewCartPole(3)
	e.Reset()
	var reward float64
	var done bool
	steps := 0
	for !done {
		if steps++; steps > cartEpisodeCap {
			t.Fatal("episode exceeded the step cap")
		}
		_, reward, done = e.Step(1)
	}
	if steps >= cartEpisodeCap {
		t.Fatalf("constant push survived %d steps", steps)
	}
	if reward != 0 {
		t.Errorf("losing terminal reward = %v, want 0", reward)
	}
}

func TestCartPoleDeterministicWithSeed(t *testing.T) {
	a := NewCartPole(7)
	b := NewCartPole(7)
	if !reflect.DeepEqual(a.Reset(), b.Reset()) {
		t.Fatal("same seed produced different reset observations")
	}
	for i := 0; i < 100; i++ {
		action := i % 2
		ao, ar, ad := a.Step(action)
		bo, br, bd := b.Step(action)
		if !reflect.DeepEqual(ao, bo) || ar != br || ad != bd {
			t.Fatalf("step %d diverged between seeded twins", i)
		}
		if ad {
			if !reflect.DeepEqual(a.Reset(), b.Reset()) {
				t.Fatal("post-episode resets diverged")
			}
		}
	}
}
