package qnet

import (
	"bytes"
	"encoding/gob"
	"math/rand"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/Antonite/deepq/replay"
)

// Network is a two-layer action-value network with a lagged target copy
// for bootstrap estimates. It is not safe for concurrent use; the training
// loops serialize every call.
type Network struct {
	stateLen int
	hidden   int
	actions  int
	gamma    float64

	layer1Weights *mat.Dense
	layer2Weights *mat.Dense
	target1       *mat.Dense
	target2       *mat.Dense
}

// New builds a network mapping stateLen inputs to one value per action,
// with the target weights starting as a copy of the online ones.
func New(stateLen, hidden, actions int, gamma float64, seed int64) (*Network, error) {
	if stateLen <= 0 || hidden <= 0 || actions <= 0 {
		return nil, errors.Errorf("qnet: sizes must be positive, got state=%d hidden=%d actions=%d", stateLen, hidden, actions)
	}
	if gamma < 0 || gamma > 1 {
		return nil, errors.Errorf("qnet: discount %v outside [0,1]", gamma)
	}

	rng := rand.New(rand.NewSource(seed))
	l1w := make([]float64, stateLen*hidden)
	for i := range l1w {
		l1w[i] = rng.Float64() - 0.5
	}
	l2w := make([]float64, hidden*actions)
	for i := range l2w {
		l2w[i] = rng.Float64() - 0.5
	}

	n := &Network{
		stateLen:      stateLen,
		hidden:        hidden,
		actions:       actions,
		gamma:         gamma,
		layer1Weights: mat.NewDense(stateLen, hidden, l1w),
		layer2Weights: mat.NewDense(hidden, actions, l2w),
		target1:       mat.NewDense(stateLen, hidden, nil),
		target2:       mat.NewDense(hidden, actions, nil),
	}
	n.RefreshTarget()
	return n, nil
}

// InferAction returns the action with the highest online value estimate.
func (n *Network) InferAction(state []float64) int {
	if len(state) != n.stateLen {
		panic(errors.Errorf("qnet: state length %d, want %d", len(state), n.stateLen))
	}
	inputL := mat.NewDense(1, n.stateLen, state)
	_, _, outputL := forward(inputL, n.layer1Weights, n.layer2Weights)
	return argmax(outputL.RawRowView(0))
}

// Optimize runs one gradient step toward the one-step bootstrap targets
// reward + gamma * max over the target network's values for the next
// state; terminal transitions keep only the reward.
func (n *Network) Optimize(batch replay.Batch, learnRate float64) {
	rows := len(batch.Actions)
	if rows == 0 {
		return
	}

	inputVector := make([]float64, 0, rows*n.stateLen)
	nextVector := make([]float64, 0, rows*n.stateLen)
	for i := 0; i < rows; i++ {
		inputVector = append(inputVector, batch.States[i]...)
		nextVector = append(nextVector, batch.NextStates[i]...)
	}
	inputL := mat.NewDense(rows, n.stateLen, inputVector)
	nextL := mat.NewDense(rows, n.stateLen, nextVector)

	// Bootstrap values come from the lagged target weights.
	_, _, nextQ := forward(nextL, n.target1, n.target2)
	hiddenRaw, hiddenL, outputL := forward(inputL, n.layer1Weights, n.layer2Weights)

	// Error on the taken action only; the other outputs carry no gradient.
	errL := mat.NewDense(rows, n.actions, nil)
	for i := 0; i < rows; i++ {
		target := batch.Rewards[i]
		if !batch.Dones[i] {
			target += n.gamma * rowMax(nextQ, i)
		}
		a := batch.Actions[i]
		errL.Set(i, a, outputL.At(i, a)-target)
	}

	scale := learnRate / float64(rows)

	// Change output weights
	chngOut := mat.NewDense(n.hidden, n.actions, nil)
	chngOut.Mul(hiddenL.T(), errL)
	chngOut.Apply(func(i, j int, v float64) float64 { return -scale * v }, chngOut)

	// Change L1 weights: error pushed back through the output weights and
	// the activation derivative.
	backL := mat.NewDense(rows, n.hidden, nil)
	backL.Mul(errL, n.layer2Weights.T())
	applyReluDeriv(hiddenRaw)
	backL.MulElem(backL, hiddenRaw)

	chngL1 := mat.NewDense(n.stateLen, n.hidden, nil)
	chngL1.Mul(inputL.T(), backL)
	chngL1.Apply(func(i, j int, v float64) float64 { return -scale * v }, chngL1)

	// Apply weight changes
	n.layer2Weights.Add(n.layer2Weights, chngOut)
	n.layer1Weights.Add(n.layer1Weights, chngL1)
}

// RefreshTarget copies the online weights into the target copy.
func (n *Network) RefreshTarget() {
	n.target1.Copy(n.layer1Weights)
	n.target2.Copy(n.layer2Weights)
}

// forward runs a batch of rows through one set of weights and returns the
// hidden pre-activations, hidden activations and output values.
func forward(inputs, w1, w2 *mat.Dense) (*mat.Dense, *mat.Dense, *mat.Dense) {
	rows := inputs.RawMatrix().Rows
	_, hidden := w1.Dims()
	_, outputs := w2.Dims()

	hiddenL := mat.NewDense(rows, hidden, nil)
	hiddenL.Mul(inputs, w1)

	hiddenRaw := mat.NewDense(rows, hidden, nil)
	hiddenRaw.Copy(hiddenL)
	applyRelu(hiddenL)

	outputL := mat.NewDense(rows, outputs, nil)
	outputL.Mul(hiddenL, w2)

	return hiddenRaw, hiddenL, outputL
}

func applyRelu(matrix *mat.Dense) {
	matrix.Apply(func(i, j int, v float64) float64 {
		return relu(v)
	}, matrix)
}

func applyReluDeriv(matrix *mat.Dense) {
	matrix.Apply(func(i, j int, v float64) float64 {
		return reluDeriv(v)
	}, matrix)
}

func relu(x float64) float64 {
	if x < 0 {
		return 0
	}

	return x
}

func reluDeriv(x float64) float64 {
	if x < 0 {
		return 0
	}

	return 1
}

func rowMax(m *mat.Dense, row int) float64 {
	vals := m.RawRowView(row)
	max := vals[0]
	for _, v := range vals[1:] {
		if v > max {
			max = v
		}
	}
	return max
}

func argmax(vals []float64) int {
	best := 0
	for i, v := range vals {
		if v > vals[best] {
			best = i
		}
	}
	return best
}

// netSnapshot is the serialized form of all four weight matrices.
type netSnapshot struct {
	StateLen int
	Hidden   int
	Actions  int
	Gamma    float64
	Layer1   []float64
	Layer2   []float64
	Target1  []float64
	Target2  []float64
}

// Snapshot serializes the online and target weights.
func (n *Network) Snapshot() ([]byte, error) {
	snap := netSnapshot{
		StateLen: n.stateLen,
		Hidden:   n.hidden,
		Actions:  n.actions,
		Gamma:    n.gamma,
		Layer1:   append([]float64(nil), n.layer1Weights.RawMatrix().Data...),
		Layer2:   append([]float64(nil), n.layer2Weights.RawMatrix().Data...),
		Target1:  append([]float64(nil), n.target1.RawMatrix().Data...),
		Target2:  append([]float64(nil), n.target2.RawMatrix().Data...),
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(snap); err != nil {
		return nil, errors.Wrap(err, "qnet: encode weights")
	}
	return buf.Bytes(), nil
}

// Restore replaces all weights from a Snapshot payload, which must match
// the network's dimensions.
func (n *Network) Restore(data []byte) error {
	var snap netSnapshot
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&snap); err != nil {
		return errors.Wrap(err, "qnet: decode weights")
	}
	if snap.StateLen != n.stateLen || snap.Hidden != n.hidden || snap.Actions != n.actions {
		return errors.Errorf("qnet: snapshot shape %d/%d/%d does not match network %d/%d/%d",
			snap.StateLen, snap.Hidden, snap.Actions, n.stateLen, n.hidden, n.actions)
	}
	if len(snap.Layer1) != n.stateLen*n.hidden || len(snap.Layer2) != n.hidden*n.actions ||
		len(snap.Target1) != n.stateLen*n.hidden || len(snap.Target2) != n.hidden*n.actions {
		return errors.New("qnet: snapshot weight lengths do not match its shape")
	}
	n.layer1Weights = mat.NewDense(n.stateLen, n.hidden, snap.Layer1)
	n.layer2Weights = mat.NewDense(n.hidden, n.actions, snap.Layer2)
	n.target1 = mat.NewDense(n.stateLen, n.hidden, snap.Target1)
	n.target2 = mat.NewDense(n.hidden, n.actions, snap.Target2)
	return nil
}
