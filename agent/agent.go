package agent

import (
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"

	"github.com/Antonite/deepq/replay"
)

// Model is the value network being trained. The lockstep protocol
// guarantees its methods are never called concurrently, so implementations
// need no locking of their own.
type Model interface {
	// InferAction returns the greedy action for a stacked state.
	InferAction(state []float64) int
	// Optimize runs one gradient step on a sampled batch.
	Optimize(batch replay.Batch, learnRate float64)
	// RefreshTarget copies the online weights into the target network.
	RefreshTarget()
}

// Environment is a discrete-action environment. Reset begins a fresh
// episode and returns its first observation.
type Environment interface {
	Reset() []float64
	Step(action int) (obs []float64, reward float64, done bool)
}

// Schedule yields a step-dependent scalar such as an exploration rate.
type Schedule interface {
	Value(t int) float64
}

// Telemetry receives the step number after every environment step, on the
// actor goroutine.
type Telemetry interface {
	LogProgress(t int)
}

// Checkpointer persists training state. Called on the learner goroutine at
// the configured cadence, after that step's optimization.
type Checkpointer interface {
	SaveCheckpoint(t int)
}

// Agent drives one training run: an actor goroutine stepping the
// environment and a learner goroutine optimizing the model, in lockstep
// over a shared replay buffer. The two signals keep every model call and
// every conflicting buffer access on opposite sides of a step boundary,
// while the environment step and the optimization overlap in time.
type Agent struct {
	// Telemetry and Checkpoints may be set before Run; both are optional.
	Telemetry   Telemetry
	Checkpoints Checkpointer

	cfg         Config
	model       Model
	env         Environment
	exploration Schedule
	learnRate   Schedule

	buf *replay.Buffer
	rng *rand.Rand

	actChosen *signal
	trainDone *signal

	learnStarted uint32
}

// New validates cfg and assembles a run over the given collaborators.
func New(cfg Config, model Model, env Environment, exploration, learnRate Schedule) (*Agent, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if model == nil || env == nil || exploration == nil || learnRate == nil {
		return nil, errors.Wrap(ErrInvalidConfig, "model, environment and schedules are all required")
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	buf, err := replay.New(cfg.BufferCapacity, cfg.HistoryLen, cfg.ObsLen, seed)
	if err != nil {
		return nil, errors.Wrap(ErrInvalidConfig, err.Error())
	}
	return &Agent{
		cfg:         cfg,
		model:       model,
		env:         env,
		exploration: exploration,
		learnRate:   learnRate,
		buf:         buf,
		rng:         rand.New(rand.NewSource(seed + 1)),
		// trainDone starts raised so the actor can take step 1.
		actChosen: newSignal(false),
		trainDone: newSignal(true),
	}, nil
}

// Run executes the configured number of steps and returns once both loops
// finish. Protocol violations and environment faults panic; the run is not
// recoverable once the loops disagree about whose turn it is.
func (a *Agent) Run() {
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		a.runActor()
	}()
	go func() {
		defer wg.Done()
		a.runLearner()
	}()
	wg.Wait()
}

// runActor steps the environment. Within a step the actor owns the model
// from trainDone to actChosen and owns the buffer's write side throughout.
func (a *Agent) runActor() {
	obs := a.env.Reset()
	for t := 1; t <= a.cfg.MaxSteps; t++ {
		a.trainDone.wait()

		idx := a.buf.StoreFrame(obs)
		action := a.chooseAction(t)
		a.actChosen.raise()

		next, reward, done := a.env.Step(action)
		if err := a.buf.StoreEffect(idx, action, reward, done); err != nil {
			panic(err)
		}
		if done {
			next = a.env.Reset()
		}
		obs = next

		if a.Telemetry != nil {
			a.Telemetry.LogProgress(t)
		}
	}
}

// chooseAction is epsilon-greedy: random until the first optimization has
// happened, random with probability epsilon afterwards.
func (a *Agent) chooseAction(t int) int {
	if atomic.LoadUint32(&a.learnStarted) == 0 {
		return a.rng.Intn(a.cfg.ActionCount)
	}
	if a.rng.Float64() < a.exploration.Value(t) {
		return a.rng.Intn(a.cfg.ActionCount)
	}
	return a.model.InferAction(a.buf.EncodeRecentState())
}

// runLearner optimizes the model on training steps and idles in lockstep on
// the rest. The batch is sampled before waiting for the actor's action: the
// draw only touches slots the actor cannot reach this step, so the batch
// assembles while the actor is still picking.
func (a *Agent) runLearner() {
	for t := 1; t <= a.cfg.MaxSteps; t++ {
		if t >= a.cfg.TrainStart && t%a.cfg.TrainFreq == 0 {
			atomic.StoreUint32(&a.learnStarted, 1)
			batch, err := a.buf.SampleBatch(a.cfg.BatchSize)
			if err != nil {
				panic(err)
			}
			a.actChosen.wait()
			a.model.Optimize(batch, a.learnRate.Value(t))
			if t%a.cfg.TargetSyncFreq == 0 {
				a.model.RefreshTarget()
			}
		} else {
			a.actChosen.wait()
		}

		if a.Checkpoints != nil && a.cfg.CheckpointFreq > 0 && t%a.cfg.CheckpointFreq == 0 {
			a.Checkpoints.SaveCheckpoint(t)
		}
		a.trainDone.raise()
	}
}
