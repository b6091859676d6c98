package dqn

import (
	"context"
	"encoding/gob"
	"fmt"
	"math"
	"os"
	"sync"

	"github.com/aunum/log"
	"github.com/samuelfneumann/godqn/network"
	"github.com/samuelfneumann/godqn/replay"
	"github.com/samuelfneumann/godqn/utils/floatutils"
	"gonum.org/v1/gonum/floats"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// huberDelta is the point at which the Huber loss becomes linear
const huberDelta = 1.0

// BatchIterator produces batches of sampled transitions
type BatchIterator interface {
	Next(ctx context.Context) (replay.Batch, error)
	BatchSize() int

	// Ready returns whether Next would return without waiting for
	// more data
	Ready() bool
}

// Learner implements double Q-learning with a Huber loss on batches
// sampled from a prioritized replay table.
//
// Each step, a batch (s, a, R, D, s') is sampled and the update
// target is computed as
//
//	R + γD Q_target(s', argmax_a' Q(s', a'))
//
// The Huber loss of the TD error of each transition is weighted by
// its importance sampling weight
//
//	w_i = (1 / P(i))^β / max_j (1 / P(j))^β
//
// and the mean weighted loss is minimized. The absolute TD errors are
// written back to the replay table as the new priorities of the
// sampled transitions.
//
// The Learner holds three networks, each on its own computational
// graph with its own VM: the online network being trained, a target
// network which is set to the online network every targetUpdatePeriod
// steps, and a selector network which is set to the online network
// before each step and selects the greedy actions in s'.
type Learner struct {
	mu sync.Mutex

	trainNet   network.NeuralNet
	trainNetVM G.VM
	solver     G.Solver

	targetNet   network.NeuralNet
	targetNetVM G.VM

	selectorNet   network.NeuralNet
	selectorNetVM G.VM

	// Input nodes on the graph of trainNet
	selectedActions *G.Node // One-hot actions taken in s
	targetValues    *G.Node // Q_target(s', ·)
	greedyActions   *G.Node // One-hot argmax_a' Q(s', a')
	rewards         *G.Node
	discounts       *G.Node
	weights         *G.Node // Importance sampling weights

	tdErrorVal G.Value
	lossVal    G.Value
	loss       float64

	iterator BatchIterator
	client   replay.Client

	discount                   float64
	importanceSamplingExponent float64
	targetUpdatePeriod         int
	steps                      int

	batchSize  int
	numActions int
}

// NewLearner returns a new Learner which trains a copy of net with
// the batch size of iterator. The weights of net are not modified.
func NewLearner(net network.NeuralNet, solver G.Solver, discount,
	importanceSamplingExponent float64, targetUpdatePeriod int,
	iterator BatchIterator, client replay.Client) (*Learner, error) {
	if net == nil || solver == nil || iterator == nil || client == nil {
		return nil, fmt.Errorf("newLearner: network, solver, iterator and " +
			"client cannot be nil")
	}
	if targetUpdatePeriod < 1 {
		return nil, fmt.Errorf("newLearner: target networks must be "+
			"updated at positive step intervals \n\twant(>0) \n\thave(%v)",
			targetUpdatePeriod)
	}
	if discount < 0 || discount > 1 {
		return nil, fmt.Errorf("newLearner: discount must be in [0, 1] "+
			"but got %v", discount)
	}
	if importanceSamplingExponent < 0 {
		return nil, fmt.Errorf("newLearner: importance sampling exponent "+
			"must be non-negative but got %v", importanceSamplingExponent)
	}

	batchSize := iterator.BatchSize()
	numActions := net.Outputs()

	trainNet, err := net.CloneWithBatch(batchSize)
	if err != nil {
		return nil, fmt.Errorf("newLearner: could not create learning "+
			"network: %v", err)
	}
	targetNet, err := net.CloneWithBatch(batchSize)
	if err != nil {
		return nil, fmt.Errorf("newLearner: could not create target "+
			"network: %v", err)
	}
	selectorNet, err := net.CloneWithBatch(batchSize)
	if err != nil {
		return nil, fmt.Errorf("newLearner: could not create selector "+
			"network: %v", err)
	}

	l := &Learner{
		trainNet:                   trainNet,
		solver:                     solver,
		targetNet:                  targetNet,
		targetNetVM:                G.NewTapeMachine(targetNet.Graph()),
		selectorNet:                selectorNet,
		selectorNetVM:              G.NewTapeMachine(selectorNet.Graph()),
		iterator:                   iterator,
		client:                     client,
		discount:                   discount,
		importanceSamplingExponent: importanceSamplingExponent,
		targetUpdatePeriod:         targetUpdatePeriod,
		batchSize:                  batchSize,
		numActions:                 numActions,
	}

	if err := l.buildLoss(); err != nil {
		l.Close()
		return nil, fmt.Errorf("newLearner: %v", err)
	}

	return l, nil
}

// buildLoss adds the loss and its gradient to the graph of trainNet and
// compiles the graph into a VM
func (l *Learner) buildLoss() error {
	g := l.trainNet.Graph()
	batch, actions := l.batchSize, l.numActions

	matrix := func(name string) *G.Node {
		return G.NewMatrix(g, tensor.Float64, G.WithShape(batch, actions),
			G.WithName(name), G.WithInit(G.Zeroes()))
	}
	vector := func(name string) *G.Node {
		return G.NewVector(g, tensor.Float64, G.WithShape(batch),
			G.WithName(name), G.WithInit(G.Zeroes()))
	}
	l.selectedActions = matrix("selectedActions")
	l.targetValues = matrix("targetActionValues")
	l.greedyActions = matrix("greedyNextActions")
	l.rewards = vector("rewards")
	l.discounts = vector("discounts")
	l.weights = vector("importanceWeights")

	// Q(s, a)
	actionValues := G.Must(G.HadamardProd(l.trainNet.Prediction(),
		l.selectedActions))
	actionValues = G.Must(G.Sum(actionValues, 1))

	// R + γD Q_target(s', argmax_a' Q(s', a'))
	nextValues := G.Must(G.HadamardProd(l.targetValues, l.greedyActions))
	nextValues = G.Must(G.Sum(nextValues, 1))
	updateTarget := G.Must(G.HadamardProd(l.discounts, nextValues))
	updateTarget = G.Must(G.Add(l.rewards, updateTarget))

	tdError := G.Must(G.Sub(updateTarget, actionValues))
	G.Read(tdError, &l.tdErrorVal)

	// Huber loss: 0.5 q² + δ(|x| - q) with q = min(|x|, δ)
	delta := G.NewConstant(huberDelta)
	absError := G.Must(G.Abs(tdError))
	linear := G.Must(G.Rectify(G.Must(G.Sub(absError, delta))))
	quadratic := G.Must(G.Sub(absError, linear))
	huber := G.Must(G.Mul(G.NewConstant(0.5), G.Must(G.Square(quadratic))))
	huber = G.Must(G.Add(huber, G.Must(G.Mul(delta, linear))))

	cost := G.Must(G.Mean(G.Must(G.HadamardProd(l.weights, huber))))
	G.Read(cost, &l.lossVal)

	if _, err := G.Grad(cost, l.trainNet.Learnables()...); err != nil {
		return fmt.Errorf("could not compute gradient: %v", err)
	}

	l.trainNetVM = G.NewTapeMachine(g,
		G.BindDualValues(l.trainNet.Learnables()...))
	return nil
}

// Step performs a single update to the online network
func (l *Learner) Step(ctx context.Context) error {
	batch, err := l.iterator.Next(ctx)
	if err != nil {
		return fmt.Errorf("step: could not sample batch: %w", err)
	}
	if batch.Len() != l.batchSize {
		return fmt.Errorf("step: expected a batch of %v transitions but "+
			"got %v", l.batchSize, batch.Len())
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	// Q_target(s', ·)
	targetValues, err := l.run(l.targetNet, l.targetNetVM, batch.NextStates)
	if err != nil {
		return fmt.Errorf("step: target network: %v", err)
	}

	// argmax_a' Q(s', a') using the current online weights
	if err := l.selectorNet.Set(l.trainNet); err != nil {
		return fmt.Errorf("step: could not set selector network: %v", err)
	}
	nextValues, err := l.run(l.selectorNet, l.selectorNetVM,
		batch.NextStates)
	if err != nil {
		return fmt.Errorf("step: selector network: %v", err)
	}
	greedy := make([]int, l.batchSize)
	for i := range greedy {
		row := nextValues[i*l.numActions : (i+1)*l.numActions]
		greedy[i] = floatutils.Argmax(row)
	}
	greedyActions, err := l.oneHot(greedy)
	if err != nil {
		return fmt.Errorf("step: %v", err)
	}

	discounts := make([]float64, l.batchSize)
	copy(discounts, batch.Discounts)
	floats.Scale(l.discount, discounts)

	selected, err := l.oneHot(batch.Actions)
	if err != nil {
		return fmt.Errorf("step: %v", err)
	}

	inputs := []struct {
		node  *G.Node
		value []float64
	}{
		{l.selectedActions, selected},
		{l.targetValues, targetValues},
		{l.greedyActions, greedyActions},
		{l.rewards, batch.Rewards},
		{l.discounts, discounts},
		{l.weights, l.importanceWeights(batch.Probabilities)},
	}
	for _, in := range inputs {
		t := tensor.New(tensor.WithShape(in.node.Shape()...),
			tensor.WithBacking(in.value))
		if err := G.Let(in.node, t); err != nil {
			return fmt.Errorf("step: could not set %v: %v", in.node.Name(),
				err)
		}
	}
	if err := l.trainNet.SetInput(batch.States); err != nil {
		return fmt.Errorf("step: could not set learning network input: %v",
			err)
	}

	// Run the learning step
	if err := l.trainNetVM.RunAll(); err != nil {
		l.trainNetVM.Reset()
		return fmt.Errorf("step: could not run learning network: %v", err)
	}
	if err := l.solver.Step(l.trainNet.Model()); err != nil {
		l.trainNetVM.Reset()
		return fmt.Errorf("step: could not step solver: %v", err)
	}
	priorities := make([]float64, l.batchSize)
	for i, td := range l.tdErrorVal.Data().([]float64) {
		priorities[i] = math.Abs(td)
	}
	l.loss = l.lossVal.Data().(float64)
	l.trainNetVM.Reset()

	if err := l.client.MutatePriorities(batch.Keys, priorities); err != nil {
		return fmt.Errorf("step: could not update priorities: %w", err)
	}

	// Update the target network by setting its weights to the newly
	// learned weights, once every targetUpdatePeriod steps
	l.steps++
	if l.steps%l.targetUpdatePeriod == 0 {
		if err := l.targetNet.Set(l.trainNet); err != nil {
			return fmt.Errorf("step: could not update target network: %v",
				err)
		}
		log.Debugf("learner step %v: target network updated, loss %.5f",
			l.steps, l.loss)
	}

	return nil
}

// run computes the outputs of net on a batch of inputs
func (l *Learner) run(net network.NeuralNet, vm G.VM,
	input []float64) ([]float64, error) {
	if err := net.SetInput(input); err != nil {
		return nil, err
	}

	defer vm.Reset()
	if err := vm.RunAll(); err != nil {
		return nil, err
	}
	return append([]float64(nil), net.Output().Data().([]float64)...), nil
}

// oneHot returns a batch of one-hot encoded actions, stored row-major
func (l *Learner) oneHot(actions []int) ([]float64, error) {
	encoded := make([]float64, l.batchSize*l.numActions)
	for i, a := range actions {
		if a < 0 || a >= l.numActions {
			return nil, fmt.Errorf("illegal action %v for %v actions", a,
				l.numActions)
		}
		encoded[i*l.numActions+a] = 1.0
	}
	return encoded, nil
}

// importanceWeights returns the importance sampling weights of
// transitions sampled with the argument probabilities
func (l *Learner) importanceWeights(probabilities []float64) []float64 {
	weights := make([]float64, len(probabilities))
	for i, p := range probabilities {
		weights[i] = math.Pow(1/p, l.importanceSamplingExponent)
	}
	floats.Scale(1/floats.Max(weights), weights)
	return weights
}

// Variables returns copies of the current weights of the online
// network
func (l *Learner) Variables() ([]*tensor.Dense, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.trainNet.Weights(), nil
}

// TargetVariables returns copies of the current weights of the target
// network
func (l *Learner) TargetVariables() []*tensor.Dense {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.targetNet.Weights()
}

// Ready returns whether the learner has data to take a step on
func (l *Learner) Ready() bool {
	return l.iterator.Ready()
}

// Steps returns the number of steps the learner has taken
func (l *Learner) Steps() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.steps
}

// Loss returns the loss of the latest step
func (l *Learner) Loss() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.loss
}

// checkpoint is the serialized state of a Learner
type checkpoint struct {
	Steps  int
	Online []weight
	Target []weight
}

type weight struct {
	Shape []int
	Data  []float64
}

func toWeights(tensors []*tensor.Dense) []weight {
	w := make([]weight, len(tensors))
	for i, t := range tensors {
		w[i] = weight{
			Shape: append([]int(nil), t.Shape()...),
			Data:  append([]float64(nil), t.Data().([]float64)...),
		}
	}
	return w
}

func fromWeights(w []weight) []*tensor.Dense {
	tensors := make([]*tensor.Dense, len(w))
	for i := range w {
		tensors[i] = tensor.New(tensor.WithShape(w[i].Shape...),
			tensor.WithBacking(w[i].Data))
	}
	return tensors
}

// Save writes the step count and the weights of the online and target
// networks to a file. The state of the solver is not saved.
func (l *Learner) Save(filename string) error {
	l.mu.Lock()
	c := checkpoint{
		Steps:  l.steps,
		Online: toWeights(l.trainNet.Weights()),
		Target: toWeights(l.targetNet.Weights()),
	}
	l.mu.Unlock()

	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("save: could not create file: %v", err)
	}
	defer file.Close()

	if err := gob.NewEncoder(file).Encode(c); err != nil {
		return fmt.Errorf("save: could not encode learner: %v", err)
	}
	return nil
}

// Load restores a Learner from a file written by Save
func (l *Learner) Load(filename string) error {
	file, err := os.Open(filename)
	if err != nil {
		return fmt.Errorf("load: could not open file: %v", err)
	}
	defer file.Close()

	var c checkpoint
	if err := gob.NewDecoder(file).Decode(&c); err != nil {
		return fmt.Errorf("load: could not decode learner: %v", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.trainNet.SetWeights(fromWeights(c.Online)); err != nil {
		return fmt.Errorf("load: online network: %v", err)
	}
	if err := l.targetNet.SetWeights(fromWeights(c.Target)); err != nil {
		return fmt.Errorf("load: target network: %v", err)
	}
	l.steps = c.Steps
	return nil
}

// Close releases the VMs of the learner
func (l *Learner) Close() error {
	for _, vm := range []G.VM{l.trainNetVM, l.targetNetVM, l.selectorNetVM} {
		if vm == nil {
			continue
		}
		if err := vm.Close(); err != nil {
			return fmt.Errorf("close: %v", err)
		}
	}
	return nil
}
