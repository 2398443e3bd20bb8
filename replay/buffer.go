package replay

import (
	"math/rand"
	"sync/atomic"

	"github.com/pkg/errors"
)

// Errors reported by the buffer. Both mean the calling loop broke its
// write or gating discipline; neither is retryable.
var (
	ErrInvalidSlot      = errors.New("replay: slot is not the pending frame")
	ErrInsufficientData = errors.New("replay: not enough stored transitions")
)

// Batch holds uniformly sampled transitions in parallel slices. States and
// NextStates are history-stacked frames, flattened oldest first.
type Batch struct {
	States     [][]float64
	Actions    []int
	Rewards    []float64
	NextStates [][]float64
	Dones      []bool
}

// Buffer is a fixed-capacity transition store written by a single actor
// goroutine in two phases: StoreFrame claims the next ring slot for an
// observation, StoreEffect completes it with the action outcome. A learner
// goroutine may call SampleBatch concurrently with the writer; every other
// method belongs to the writer.
type Buffer struct {
	capacity int
	history  int
	obsLen   int

	obs     []float64 // capacity * obsLen, slot-major
	actions []int
	rewards []float64
	dones   []bool

	frames    int64 // frames stored; frame g occupies slot g % capacity
	pending   int64 // frame awaiting its effect, -1 when none
	completed int64 // frames with effects stored, published to the sampler

	rng *rand.Rand
}

// New builds a buffer holding capacity frames, encoding states as history
// stacked observations of obsLen values each.
func New(capacity, history, obsLen int, seed int64) (*Buffer, error) {
	if capacity <= 0 || history <= 0 || obsLen <= 0 {
		return nil, errors.Errorf("replay: sizes must be positive, got capacity=%d history=%d obsLen=%d", capacity, history, obsLen)
	}
	if capacity < history {
		return nil, errors.Errorf("replay: capacity %d smaller than history length %d", capacity, history)
	}
	return &Buffer{
		capacity: capacity,
		history:  history,
		obsLen:   obsLen,
		obs:      make([]float64, capacity*obsLen),
		actions:  make([]int, capacity),
		rewards:  make([]float64, capacity),
		dones:    make([]bool, capacity),
		pending:  -1,
		rng:      rand.New(rand.NewSource(seed)),
	}, nil
}

// StoreFrame copies obs into the next ring slot, evicting whatever occupied
// it, and returns the slot index. The slot holds no complete transition
// until StoreEffect fills in the rest.
func (b *Buffer) StoreFrame(obs []float64) int {
	if len(obs) != b.obsLen {
		panic(errors.Errorf("replay: observation length %d, want %d", len(obs), b.obsLen))
	}
	g := b.frames
	slot := int(g % int64(b.capacity))
	copy(b.obs[slot*b.obsLen:(slot+1)*b.obsLen], obs)
	b.frames = g + 1
	b.pending = g
	return slot
}

// StoreEffect records the action taken after the frame in slot idx, the
// reward it produced, and whether the episode ended. It fails unless idx is
// the most recently stored frame and every earlier frame already has its
// effect.
func (b *Buffer) StoreEffect(idx, action int, reward float64, done bool) error {
	g := b.pending
	if g < 0 || int(g%int64(b.capacity)) != idx {
		return errors.Wrapf(ErrInvalidSlot, "slot %d", idx)
	}
	if g != atomic.LoadInt64(&b.completed) {
		return errors.Wrapf(ErrInvalidSlot, "frame %d completed out of order", g)
	}
	b.actions[idx] = action
	b.rewards[idx] = reward
	b.dones[idx] = done
	b.pending = -1
	// Release store: the sampler may now read everything below g+1.
	atomic.StoreInt64(&b.completed, g+1)
	return nil
}

// EncodeRecentState returns the stacked state ending at the most recently
// stored frame, zero-padded where history is missing. Writer-side only; the
// sampler encodes from its own snapshot.
func (b *Buffer) EncodeRecentState() []float64 {
	if b.frames == 0 {
		return make([]float64, b.history*b.obsLen)
	}
	floor := b.frames - int64(b.capacity)
	if floor < 0 {
		floor = 0
	}
	return b.encode(b.frames-1, floor)
}

// encode builds the history window ending at frame g, oldest first. Frames
// below floor have been evicted from the ring and encode as zeros, as do
// frames from earlier episodes: a done flag at j inside the window cuts off
// j and everything before it.
func (b *Buffer) encode(g, floor int64) []float64 {
	state := make([]float64, b.history*b.obsLen)
	start := g - int64(b.history) + 1
	if start < floor {
		start = floor
	}
	for j := g - 1; j >= start; j-- {
		if b.dones[j%int64(b.capacity)] {
			start = j + 1
			break
		}
	}
	pad := int64(b.history) - (g - start + 1)
	for k := int64(0); k <= g-start; k++ {
		slot := int((start + k) % int64(b.capacity))
		copy(state[(pad+k)*int64(b.obsLen):], b.obs[slot*b.obsLen:(slot+1)*b.obsLen])
	}
	return state
}

// SampleBatch draws n transitions independently and uniformly from the
// eligible frames. A frame is eligible once its own effect and its successor
// frame are stored, and while it sits at least two slots clear of the write
// head, so nothing a draw reads can be overwritten by the one frame the
// actor may store while the call runs. Safe to call from the learner
// goroutine while the actor keeps writing.
func (b *Buffer) SampleBatch(n int) (Batch, error) {
	if n <= 0 {
		return Batch{}, errors.Errorf("replay: batch size must be positive, got %d", n)
	}
	c := atomic.LoadInt64(&b.completed)
	if c < int64(b.history) {
		return Batch{}, errors.Wrapf(ErrInsufficientData, "%d transitions stored, history needs %d", c, b.history)
	}
	floor := c + 2 - int64(b.capacity)
	if floor < 0 {
		floor = 0
	}
	hi := c - 2
	if hi < floor || hi-floor+1 < int64(n) {
		eligible := hi - floor + 1
		if eligible < 0 {
			eligible = 0
		}
		return Batch{}, errors.Wrapf(ErrInsufficientData, "%d eligible transitions, batch wants %d", eligible, n)
	}
	batch := Batch{
		States:     make([][]float64, n),
		Actions:    make([]int, n),
		Rewards:    make([]float64, n),
		NextStates: make([][]float64, n),
		Dones:      make([]bool, n),
	}
	span := hi - floor + 1
	for i := 0; i < n; i++ {
		g := floor + b.rng.Int63n(span)
		slot := int(g % int64(b.capacity))
		batch.States[i] = b.encode(g, floor)
		batch.NextStates[i] = b.encode(g+1, floor)
		batch.Actions[i] = b.actions[slot]
		batch.Rewards[i] = b.rewards[slot]
		batch.Dones[i] = b.dones[slot]
	}
	return batch, nil
}

// Completed reports the total number of transitions stored over the run,
// including ones since evicted.
func (b *Buffer) Completed() int64 {
	return atomic.LoadInt64(&b.completed)
}

// Capacity reports the ring size in frames.
func (b *Buffer) Capacity() int {
	return b.capacity
}

// StateLen reports the length of an encoded state vector.
func (b *Buffer) StateLen() int {
	return b.history * b.obsLen
}
