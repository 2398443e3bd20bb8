package agent

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/Antonite/deepq/replay"
)

type fixedSched float64

func (f fixedSched) Value(int) float64 { return float64(f) }

// stepEnv is a deterministic environment whose episodes end every epLen
// steps. Observations carry the running step count so stored frames are
// distinguishable.
type stepEnv struct {
	obsLen int
	epLen  int
	delay  time.Duration
	inEp   int
	steps  int
	resets int
}

func (e *stepEnv) Reset() []float64 {
	e.resets++
	e.inEp = 0
	return e.obs()
}

func (e *stepEnv) Step(action int) ([]float64, float64, bool) {
	if e.delay > 0 {
		time.Sleep(e.delay)
	}
	e.steps++
	e.inEp++
	return e.obs(), 1, e.inEp%e.epLen == 0
}

func (e *stepEnv) obs() []float64 {
	o := make([]float64, e.obsLen)
	for i := range o {
		o[i] = float64(e.steps)
	}
	return o
}

// countingModel records every use and flags overlapping calls, which the
// lockstep protocol must never allow.
type countingModel struct {
	inFlight  int32
	overlaps  int32
	infers    int32
	optimizes int32
	refreshes int32
	delay     time.Duration
}

func (m *countingModel) enter() {
	if atomic.AddInt32(&m.inFlight, 1) > 1 {
		atomic.AddInt32(&m.overlaps, 1)
	}
	if m.delay > 0 {
		time.Sleep(m.delay)
	}
}

func (m *countingModel) exit() { atomic.AddInt32(&m.inFlight, -1) }

func (m *countingModel) InferAction(state []float64) int {
	m.enter()
	defer m.exit()
	atomic.AddInt32(&m.infers, 1)
	return 0
}

func (m *countingModel) Optimize(batch replay.Batch, learnRate float64) {
	m.enter()
	defer m.exit()
	atomic.AddInt32(&m.optimizes, 1)
}

func (m *countingModel) RefreshTarget() {
	m.enter()
	defer m.exit()
	atomic.AddInt32(&m.refreshes, 1)
}

type recordingCheckpointer struct {
	steps []int
}

func (c *recordingCheckpointer) SaveCheckpoint(t int) {
	c.steps = append(c.steps, t)
}

type recordingTelemetry struct {
	steps []int
}

func (r *recordingTelemetry) LogProgress(t int) {
	r.steps = append(r.steps, t)
}

func runWithin(t *testing.T, a *Agent, d time.Duration) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		a.Run()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(d):
		t.Fatal("training run did not finish in time")
	}
}

func TestRunLockstepCadence(t *testing.T) {
	cfg := Config{
		BufferCapacity: 64,
		HistoryLen:     4,
		BatchSize:      8,
		TrainStart:     20,
		TrainFreq:      4,
		TargetSyncFreq: 12,
		CheckpointFreq: 25,
		MaxSteps:       200,
		ObsLen:         3,
		ActionCount:    2,
		Seed:           7,
	}
	env := &stepEnv{obsLen: 3, epLen: 9, delay: 50 * time.Microsecond}
	model := &countingModel{delay: 100 * time.Microsecond}
	ck := &recordingCheckpointer{}
	tel := &recordingTelemetry{}

	a, err := New(cfg, model, env, fixedSched(0), fixedSched(0.001))
	if err != nil {
		t.Fatal(err)
	}
	a.Checkpoints = ck
	a.Telemetry = tel
	runWithin(t, a, 30*time.Second)

	if got := atomic.LoadInt32(&model.overlaps); got != 0 {
		t.Fatalf("model was used concurrently %d times", got)
	}

	// Training steps are t in [20,200] with t%4 == 0: 46 of them.
	if got := atomic.LoadInt32(&model.optimizes); got != 46 {
		t.Errorf("optimize calls = %d, want 46", got)
	}
	// Target syncs land on training steps with t%12 == 0: 24..192.
	if got := atomic.LoadInt32(&model.refreshes); got != 15 {
		t.Errorf("target refresh calls = %d, want 15", got)
	}

	// With epsilon 0 every step after training starts is greedy. Step 20
	// itself races the learner's first optimization, so it may go either
	// way.
	infers := atomic.LoadInt32(&model.infers)
	if infers != 180 && infers != 181 {
		t.Errorf("greedy inference calls = %d, want 180 or 181", infers)
	}

	if env.steps != 200 {
		t.Errorf("environment steps = %d, want 200", env.steps)
	}
	// Episodes end every 9 steps: 22 resets mid-run plus the initial one.
	if env.resets != 23 {
		t.Errorf("environment resets = %d, want 23", env.resets)
	}

	if len(ck.steps) != 8 {
		t.Fatalf("checkpoint calls = %d, want 8", len(ck.steps))
	}
	for i, step := range ck.steps {
		if step != (i+1)*25 {
			t.Errorf("checkpoint %d at step %d, want %d", i, step, (i+1)*25)
		}
	}

	if len(tel.steps) != 200 {
		t.Fatalf("telemetry calls = %d, want 200", len(tel.steps))
	}
	for i, step := range tel.steps {
		if step != i+1 {
			t.Fatalf("telemetry call %d reported step %d, want %d", i, step, i+1)
		}
	}
}

func TestRunBeforeTrainStartStaysRandom(t *testing.T) {
	cfg := Config{
		BufferCapacity: 32,
		HistoryLen:     2,
		BatchSize:      4,
		TrainStart:     1000,
		TrainFreq:      4,
		TargetSyncFreq: 8,
		MaxSteps:       50,
		ObsLen:         2,
		ActionCount:    3,
		Seed:           11,
	}
	env := &stepEnv{obsLen: 2, epLen: 7}
	model := &countingModel{}

	a, err := New(cfg, model, env, fixedSched(0), fixedSched(0.001))
	if err != nil {
		t.Fatal(err)
	}
	runWithin(t, a, 10*time.Second)

	if got := atomic.LoadInt32(&model.infers); got != 0 {
		t.Errorf("inference calls before training started = %d, want 0", got)
	}
	if got := atomic.LoadInt32(&model.optimizes); got != 0 {
		t.Errorf("optimize calls = %d, want 0", got)
	}
	if got := atomic.LoadInt32(&model.refreshes); got != 0 {
		t.Errorf("target refresh calls = %d, want 0", got)
	}
	if env.steps != 50 {
		t.Errorf("environment steps = %d, want 50", env.steps)
	}
}

func TestRunLongLockstep(t *testing.T) {
	// A longer run with tight cadences wraps the replay ring many times
	// while sampling every other step.
	cfg := Config{
		BufferCapacity: 128,
		HistoryLen:     4,
		BatchSize:      16,
		TrainStart:     50,
		TrainFreq:      2,
		TargetSyncFreq: 100,
		MaxSteps:       5000,
		ObsLen:         2,
		ActionCount:    2,
		Seed:           3,
	}
	env := &stepEnv{obsLen: 2, epLen: 13}
	model := &countingModel{}

	a, err := New(cfg, model, env, fixedSched(0.5), fixedSched(0.001))
	if err != nil {
		t.Fatal(err)
	}
	runWithin(t, a, 60*time.Second)

	if got := atomic.LoadInt32(&model.overlaps); got != 0 {
		t.Fatalf("model was used concurrently %d times", got)
	}
	// Training steps are t in [50,5000] with t%2 == 0: 2476 of them.
	if got := atomic.LoadInt32(&model.optimizes); got != 2476 {
		t.Errorf("optimize calls = %d, want 2476", got)
	}
	if got := atomic.LoadInt32(&model.refreshes); got != 50 {
		t.Errorf("target refresh calls = %d, want 50", got)
	}
	if env.steps != 5000 {
		t.Errorf("environment steps = %d, want 5000", env.steps)
	}
}
