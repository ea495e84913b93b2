package routing

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/lightningnetwork/inboundfee/fn"
	"github.com/lightningnetwork/inboundfee/lnwire"
	"github.com/lightningnetwork/inboundfee/routing/route"
	"github.com/shopspring/decimal"
)

const (
	// rateParts is the number of parts that fee and cost rates are
	// expressed in.
	rateParts = 1e6

	// maxRatePpm caps the rates that cost calculations accept.
	maxRatePpm = 10 * rateParts

	// minCost is the lowest cost that a pair can be charged, path finding
	// can't deal with negative edge weights.
	minCost = 0
)

var (
	// errNamespaceNotFound is returned when a requested namespace does not
	// exist in the ImputedCostManager.
	errNamespaceNotFound = errors.New("imputed cost namespace not found")

	// errInsufficientCostLimit is returned when the imputed cost exceeds
	// the specified limit.
	errInsufficientCostLimit = errors.New("imputed cost exceeds limit")

	// errInsufficientAttemptCostLimit is returned when the imputed attempt
	// cost exceeds the specified limit.
	errInsufficientAttemptCostLimit = errors.New("imputed attempt cost " +
		"exceeds limit")

	rateDivisor = decimal.NewFromInt(rateParts)
)

// imputedCostModel provides imputed costs for sending between node pairs.
// There are two kinds of cost: one that only applies when a payment succeeds
// and an attempt cost that applies regardless of outcome.
type imputedCostModel interface {
	// getCost returns the imputed cost of a successful payment of amount
	// from fromNode to toNode.
	getCost(fromNode, toNode route.Vertex,
		amount lnwire.MilliSatoshi) (lnwire.MilliSatoshi, error)

	// getAttemptCost returns the imputed cost of attempting a payment of
	// amount from fromNode to toNode.
	getAttemptCost(fromNode, toNode route.Vertex,
		amount lnwire.MilliSatoshi) (lnwire.MilliSatoshi, error)
}

// ImputedCostParameters defines the imputed cost of sending between a pair of
// nodes. Rates are in parts per million of the amount sent, base costs are in
// milli-satoshis. Negative values are allowed, but the total cost for a pair
// never drops below zero.
type ImputedCostParameters struct {
	// CostRatePpm is the cost rate that applies to successful payments.
	CostRatePpm int64

	// CostBaseMsat is the base cost that applies to successful payments.
	CostBaseMsat int64

	// AttemptCostRatePpm is the cost rate that applies to every attempt.
	AttemptCostRatePpm int64

	// AttemptCostBaseMsat is the base cost that applies to every attempt.
	AttemptCostBaseMsat int64
}

// imputedCostNamespace holds default parameters and per pair overrides.
type imputedCostNamespace struct {
	defaultParams ImputedCostParameters
	pairParams    map[DirectedNodePair]ImputedCostParameters
}

func (c *imputedCostNamespace) getNodePairParams(fromNode,
	toNode route.Vertex) ImputedCostParameters {

	pair := NewDirectedNodePair(fromNode, toNode)
	if params, ok := c.pairParams[pair]; ok {
		return params
	}

	return c.defaultParams
}

// linearCostModel implements the imputedCostModel interface with costs that
// are linear in the amount sent.
type linearCostModel struct {
	ns *imputedCostNamespace
}

// A compile time check to ensure linearCostModel implements the
// imputedCostModel interface.
var _ imputedCostModel = (*linearCostModel)(nil)

// calcCost returns rate * amount / 1e6 + base, truncated towards zero. The
// rate is capped at maxRatePpm and the result is clamped at minCost. An error
// is returned if the cost does not fit in a MilliSatoshi.
func calcCost(baseMsat, ratePpm int64,
	amount lnwire.MilliSatoshi) (lnwire.MilliSatoshi, error) {

	if ratePpm > maxRatePpm {
		ratePpm = maxRatePpm
	}

	cost := decimal.NewFromInt(ratePpm).Mul(MsatToDecimal(amount)).
		Div(rateDivisor).Truncate(0).Add(decimal.NewFromInt(baseMsat))

	if cost.LessThanOrEqual(decimal.NewFromInt(minCost)) {
		return minCost, nil
	}

	msat, err := RoundMsat(cost)
	if err != nil {
		return 0, fmt.Errorf("imputed cost: %w", err)
	}

	return msat, nil
}

func (l *linearCostModel) getCost(fromNode, toNode route.Vertex,
	amount lnwire.MilliSatoshi) (lnwire.MilliSatoshi, error) {

	p := l.ns.getNodePairParams(fromNode, toNode)

	return calcCost(p.CostBaseMsat, p.CostRatePpm, amount)
}

func (l *linearCostModel) getAttemptCost(fromNode, toNode route.Vertex,
	amount lnwire.MilliSatoshi) (lnwire.MilliSatoshi, error) {

	p := l.ns.getNodePairParams(fromNode, toNode)

	return calcCost(p.AttemptCostBaseMsat, p.AttemptCostRatePpm, amount)
}

// ImputedCostControl checks the imputed costs of a route against optional
// limits while the route is walked pair by pair.
type ImputedCostControl struct {
	model            imputedCostModel
	costLimit        fn.Option[lnwire.MilliSatoshi]
	attemptCostLimit fn.Option[lnwire.MilliSatoshi]
}

// exceedsLimit reports whether total is above the limit, if one is set.
func exceedsLimit(limit fn.Option[lnwire.MilliSatoshi],
	total decimal.Decimal) bool {

	return fn.MapOptionZ(limit, func(l lnwire.MilliSatoshi) bool {
		return total.GreaterThan(MsatToDecimal(l))
	})
}

// processPair adds the imputed costs of sending amount from fromNode to toNode
// to the running totals. If adding them would exceed either limit, or a total
// would no longer fit in a MilliSatoshi, an error is returned and the totals
// are left untouched.
func (c *ImputedCostControl) processPair(fromNode, toNode route.Vertex,
	amount lnwire.MilliSatoshi, totalFee int64, absoluteAttemptCost float64,
	imputedCost, imputedAttemptCost *lnwire.MilliSatoshi) error {

	if totalFee < 0 {
		return fmt.Errorf("%w: total fee %v", ErrNegativeAmount,
			totalFee)
	}

	if math.IsNaN(absoluteAttemptCost) ||
		math.IsInf(absoluteAttemptCost, 0) || absoluteAttemptCost < 0 {

		return fmt.Errorf("%w: attempt cost %v", ErrNegativeAmount,
			absoluteAttemptCost)
	}

	costPair, err := c.model.getCost(fromNode, toNode, amount)
	if err != nil {
		return err
	}

	costTotal := MsatToDecimal(*imputedCost).Add(MsatToDecimal(costPair))
	if exceedsLimit(
		c.costLimit, costTotal.Add(decimal.NewFromInt(totalFee)),
	) {

		return errInsufficientCostLimit
	}

	attemptCostPair, err := c.model.getAttemptCost(fromNode, toNode, amount)
	if err != nil {
		return err
	}

	attemptCostTotal := MsatToDecimal(*imputedAttemptCost).Add(
		MsatToDecimal(attemptCostPair),
	)
	absAttemptCost := decimal.NewFromFloat(absoluteAttemptCost).Truncate(0)
	if exceedsLimit(
		c.attemptCostLimit, attemptCostTotal.Add(absAttemptCost),
	) {

		return errInsufficientAttemptCostLimit
	}

	newCost, err := RoundMsat(costTotal)
	if err != nil {
		return fmt.Errorf("imputed cost total: %w", err)
	}

	newAttemptCost, err := RoundMsat(attemptCostTotal)
	if err != nil {
		return fmt.Errorf("imputed attempt cost total: %w", err)
	}

	*imputedCost = newCost
	*imputedAttemptCost = newAttemptCost

	return nil
}

// ImputedCostManager manages imputed cost namespaces.
type ImputedCostManager struct {
	namespaces map[string]*imputedCostNamespace

	// mu protects the namespaces map and the namespaces it holds.
	mu sync.RWMutex
}

// NewImputedCostManager creates a new ImputedCostManager instance with an
// empty set of namespaces.
func NewImputedCostManager() *ImputedCostManager {
	return &ImputedCostManager{
		namespaces: make(map[string]*imputedCostNamespace),
	}
}

// AddNamespace creates or replaces a namespace with the default parameters
// provided. Any pair parameters previously set for the namespace are dropped.
func (m *ImputedCostManager) AddNamespace(ns string,
	defaults ImputedCostParameters) {

	m.mu.Lock()
	defer m.mu.Unlock()

	m.namespaces[ns] = &imputedCostNamespace{
		defaultParams: defaults,
		pairParams: make(
			map[DirectedNodePair]ImputedCostParameters,
		),
	}

	log.Debugf("Set imputed cost namespace %v defaults: %+v", ns,
		defaults)
}

// SetPairParams overrides the parameters for a directed node pair within an
// existing namespace.
func (m *ImputedCostManager) SetPairParams(ns string, pair DirectedNodePair,
	params ImputedCostParameters) error {

	m.mu.Lock()
	defer m.mu.Unlock()

	namespace, ok := m.namespaces[ns]
	if !ok {
		return errNamespaceNotFound
	}

	namespace.pairParams[pair] = params

	log.Debugf("Set imputed cost for %v in namespace %v: %+v", pair, ns,
		params)

	return nil
}

// getNamespacedModel returns an imputedCostModel for the namespace provided.
func (m *ImputedCostManager) getNamespacedModel(ns string) (
	imputedCostModel, error) {

	m.mu.RLock()
	defer m.mu.RUnlock()

	namespace, ok := m.namespaces[ns]
	if !ok {
		return nil, errNamespaceNotFound
	}

	// Take a copy of the namespace so that the model is not affected by
	// later updates.
	pairParams := make(
		map[DirectedNodePair]ImputedCostParameters,
		len(namespace.pairParams),
	)
	for pair, params := range namespace.pairParams {
		pairParams[pair] = params
	}

	return &linearCostModel{
		ns: &imputedCostNamespace{
			defaultParams: namespace.defaultParams,
			pairParams:    pairParams,
		},
	}, nil
}

// GetNamespacedControl returns a cost control for the namespace provided that
// enforces the limits given, if set.
func (m *ImputedCostManager) GetNamespacedControl(ns string,
	costLimit, attemptCostLimit fn.Option[lnwire.MilliSatoshi]) (
	*ImputedCostControl, error) {

	model, err := m.getNamespacedModel(ns)
	if err != nil {
		return nil, err
	}

	return &ImputedCostControl{
		model:            model,
		costLimit:        costLimit,
		attemptCostLimit: attemptCostLimit,
	}, nil
}
