package telemetry

import (
	"math"
	"sync"

	"github.com/Antonite/deepq/agent"
)

const meanWindow = 100

// Monitor wraps an environment and accounts finished episodes. The
// training loop sees a plain pass-through; progress lines and the status
// server read the tallies from other goroutines, so they go through a
// mutex.
type Monitor struct {
	env agent.Environment

	mu       sync.Mutex
	current  float64
	rewards  []float64
	best     float64
	episodes int
}

// Wrap decorates env with episode accounting.
func Wrap(env agent.Environment) *Monitor {
	return &Monitor{env: env, best: math.Inf(-1)}
}

func (m *Monitor) Reset() []float64 {
	return m.env.Reset()
}

func (m *Monitor) Step(action int) ([]float64, float64, bool) {
	obs, reward, done := m.env.Step(action)
	m.mu.Lock()
	m.current += reward
	if done {
		m.rewards = append(m.rewards, m.current)
		m.current = 0
		m.episodes++
		if mean := m.meanLocked(); mean > m.best {
			m.best = mean
		}
	}
	m.mu.Unlock()
	return obs, reward, done
}

// MeanReward is the average total reward over the last hundred finished
// episodes, 0 before the first episode ends.
func (m *Monitor) MeanReward() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.meanLocked()
}

func (m *Monitor) meanLocked() float64 {
	if len(m.rewards) == 0 {
		return 0
	}
	start := len(m.rewards) - meanWindow
	if start < 0 {
		start = 0
	}
	sum := 0.0
	for _, r := range m.rewards[start:] {
		sum += r
	}
	return sum / float64(len(m.rewards)-start)
}

// BestMeanReward is the highest MeanReward seen at any episode end.
func (m *Monitor) BestMeanReward() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.episodes == 0 {
		return 0
	}
	return m.best
}

// Episodes is the number of finished episodes.
func (m *Monitor) Episodes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.episodes
}

// EpisodeRewards copies the per-episode reward totals, oldest first.
func (m *Monitor) EpisodeRewards() []float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]float64(nil), m.rewards...)
}
