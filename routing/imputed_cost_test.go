package routing

import (
	"math"
	"testing"

	"github.com/lightningnetwork/inboundfee/fn"
	"github.com/lightningnetwork/inboundfee/lnwire"
	"github.com/lightningnetwork/inboundfee/routing/route"
	"github.com/stretchr/testify/require"
)

var (
	testNode1 = route.Vertex{1}
	testNode2 = route.Vertex{2}
	testNode3 = route.Vertex{3}
	testNode4 = route.Vertex{4}
)

// setupTestManager creates a manager with two namespaces that have a mix of
// default and pair specific parameters.
func setupTestManager(t *testing.T) *ImputedCostManager {
	manager := NewImputedCostManager()

	manager.AddNamespace("namespace1", ImputedCostParameters{
		CostRatePpm:         1000,
		CostBaseMsat:        100,
		AttemptCostRatePpm:  500,
		AttemptCostBaseMsat: 50,
	})

	pairs := []struct {
		ns     string
		pair   DirectedNodePair
		params ImputedCostParameters
	}{
		{
			ns:   "namespace1",
			pair: NewDirectedNodePair(testNode1, testNode2),
			params: ImputedCostParameters{
				CostRatePpm:         2000,
				CostBaseMsat:        200,
				AttemptCostRatePpm:  1000,
				AttemptCostBaseMsat: 100,
			},
		},
		{
			ns:   "namespace1",
			pair: NewDirectedNodePair(testNode2, testNode1),
			params: ImputedCostParameters{
				CostRatePpm:        10000,
				AttemptCostRatePpm: 20000,
			},
		},
		// testNode3 -> testNode4 keeps the defaults, the reverse
		// direction gets negative costs.
		{
			ns:   "namespace1",
			pair: NewDirectedNodePair(testNode4, testNode3),
			params: ImputedCostParameters{
				CostRatePpm:         -1000,
				CostBaseMsat:        -5,
				AttemptCostRatePpm:  -2000,
				AttemptCostBaseMsat: -10,
			},
		},
		{
			ns:   "namespace2",
			pair: NewDirectedNodePair(testNode3, testNode4),
			params: ImputedCostParameters{
				CostRatePpm:         4000,
				CostBaseMsat:        400,
				AttemptCostRatePpm:  2000,
				AttemptCostBaseMsat: 200,
			},
		},
		{
			ns:   "namespace2",
			pair: NewDirectedNodePair(testNode4, testNode3),
			params: ImputedCostParameters{
				CostRatePpm:  maxRatePpm + 1000,
				CostBaseMsat: 1,
			},
		},
	}

	manager.AddNamespace("namespace2", ImputedCostParameters{
		CostRatePpm:         3000,
		CostBaseMsat:        300,
		AttemptCostRatePpm:  1500,
		AttemptCostBaseMsat: 150,
	})

	for _, p := range pairs {
		require.NoError(t, manager.SetPairParams(p.ns, p.pair, p.params))
	}

	return manager
}

// TestImputedCostManager tests imputed cost lookups and limit enforcement.
func TestImputedCostManager(t *testing.T) {
	t.Parallel()

	emptyManager := NewImputedCostManager()
	populatedManager := setupTestManager(t)

	type modelTest struct {
		expectedError       error
		expectedImputedCost lnwire.MilliSatoshi
		expectedAttemptCost lnwire.MilliSatoshi
	}

	type controlTest struct {
		totalFee                   int64
		absoluteAttemptCost        float64
		imputedCost                lnwire.MilliSatoshi
		imputedAttemptCost         lnwire.MilliSatoshi
		costLimit                  fn.Option[lnwire.MilliSatoshi]
		attemptCostLimit           fn.Option[lnwire.MilliSatoshi]
		expectedError              error
		expectedImputedCost        lnwire.MilliSatoshi
		expectedImputedAttemptCost lnwire.MilliSatoshi
	}

	limitUnset := fn.None[lnwire.MilliSatoshi]()
	limitBig := fn.Some(lnwire.MilliSatoshi(100_000_000))
	limitSmall := fn.Some(lnwire.MilliSatoshi(100_000))

	testCases := []struct {
		name      string
		manager   *ImputedCostManager
		namespace string
		fromNode  route.Vertex
		toNode    route.Vertex
		amount    lnwire.MilliSatoshi
		model     modelTest
		control   *controlTest
	}{
		{
			name:      "empty manager - non-existent ns",
			manager:   emptyManager,
			namespace: "non-existent",
			fromNode:  testNode1,
			toNode:    testNode2,
			amount:    100000,
			model: modelTest{
				expectedError: errNamespaceNotFound,
			},
		},
		{
			name:      "populated manager - empty ns name",
			manager:   populatedManager,
			namespace: "",
			fromNode:  testNode1,
			toNode:    testNode2,
			amount:    100000,
			model: modelTest{
				expectedError: errNamespaceNotFound,
			},
		},
		{
			name:      "namespace1 - default params",
			manager:   populatedManager,
			namespace: "namespace1",
			fromNode:  testNode3,
			toNode:    testNode4,
			amount:    100000,
			model: modelTest{
				// (1000 ppm * 100000 / 1000000) + 100 = 200
				expectedImputedCost: 200,
				// (500 ppm * 100000 / 1000000) + 50 = 100
				expectedAttemptCost: 100,
			},
			control: &controlTest{
				totalFee:                   10000,
				absoluteAttemptCost:        10000,
				imputedCost:                2000,
				imputedAttemptCost:         1000,
				costLimit:                  limitUnset,
				attemptCostLimit:           limitUnset,
				expectedImputedCost:        2200,
				expectedImputedAttemptCost: 1100,
			},
		},
		{
			name:      "namespace1 - specific pair params",
			manager:   populatedManager,
			namespace: "namespace1",
			fromNode:  testNode1,
			toNode:    testNode2,
			amount:    100000,
			model: modelTest{
				// (2000 ppm * 100000 / 1000000) + 200 = 400
				expectedImputedCost: 400,
				// (1000 ppm * 100000 / 1000000) + 100 = 200
				expectedAttemptCost: 200,
			},
			control: &controlTest{
				totalFee:                   10000,
				absoluteAttemptCost:        10000,
				imputedCost:                2000,
				imputedAttemptCost:         1000,
				costLimit:                  limitBig,
				attemptCostLimit:           limitBig,
				expectedImputedCost:        2400,
				expectedImputedAttemptCost: 1200,
			},
		},
		{
			name:      "namespace1 - reverse pair params",
			manager:   populatedManager,
			namespace: "namespace1",
			fromNode:  testNode2,
			toNode:    testNode1,
			amount:    100000,
			model: modelTest{
				// (10000 ppm * 100000 / 1000000) + 0 = 1000
				expectedImputedCost: 1000,
				// (20000 ppm * 100000 / 1000000) + 0 = 2000
				expectedAttemptCost: 2000,
			},
			// 1000 + 97500 + 2000 breaks the small cost limit.
			control: &controlTest{
				totalFee:                   97500,
				absoluteAttemptCost:        10000,
				imputedCost:                2000,
				imputedAttemptCost:         1000,
				costLimit:                  limitSmall,
				attemptCostLimit:           limitBig,
				expectedError:              errInsufficientCostLimit,
				expectedImputedCost:        2000,
				expectedImputedAttemptCost: 1000,
			},
		},
		{
			name:      "namespace2 - default params",
			manager:   populatedManager,
			namespace: "namespace2",
			fromNode:  testNode1,
			toNode:    testNode2,
			amount:    100000,
			model: modelTest{
				// (3000 ppm * 100000 / 1000000) + 300 = 600
				expectedImputedCost: 600,
				// (1500 ppm * 100000 / 1000000) + 150 = 300
				expectedAttemptCost: 300,
			},
			// 300 + 99990 + 1 breaks the small attempt limit.
			control: &controlTest{
				totalFee:                   10000,
				absoluteAttemptCost:        99990,
				imputedCost:                2000,
				imputedAttemptCost:         1,
				costLimit:                  limitBig,
				attemptCostLimit:           limitSmall,
				expectedError:              errInsufficientAttemptCostLimit,
				expectedImputedCost:        2000,
				expectedImputedAttemptCost: 1,
			},
		},
		{
			name:      "namespace2 - both limits broken",
			manager:   populatedManager,
			namespace: "namespace2",
			fromNode:  testNode3,
			toNode:    testNode4,
			amount:    100000,
			model: modelTest{
				// (4000 ppm * 100000 / 1000000) + 400 = 800
				expectedImputedCost: 800,
				// (2000 ppm * 100000 / 1000000) + 200 = 400
				expectedAttemptCost: 400,
			},
			// The cost limit is checked first.
			control: &controlTest{
				totalFee:                   99990,
				absoluteAttemptCost:        99990,
				imputedCost:                1,
				imputedAttemptCost:         1,
				costLimit:                  limitSmall,
				attemptCostLimit:           limitSmall,
				expectedError:              errInsufficientCostLimit,
				expectedImputedCost:        1,
				expectedImputedAttemptCost: 1,
			},
		},
		{
			name:      "zero amount",
			manager:   populatedManager,
			namespace: "namespace1",
			fromNode:  testNode1,
			toNode:    testNode2,
			amount:    0,
			model: modelTest{
				expectedImputedCost: 200,
				expectedAttemptCost: 100,
			},
		},
		{
			name:      "small amount",
			manager:   populatedManager,
			namespace: "namespace1",
			fromNode:  testNode1,
			toNode:    testNode2,
			amount:    1000,
			model: modelTest{
				// (2000 ppm * 1000 / 1000000) + 200 = 202
				expectedImputedCost: 202,
				// (1000 ppm * 1000 / 1000000) + 100 = 101
				expectedAttemptCost: 101,
			},
		},
		{
			name:      "fractional cost truncated",
			manager:   populatedManager,
			namespace: "namespace1",
			fromNode:  testNode1,
			toNode:    testNode2,
			amount:    1999,
			model: modelTest{
				// 2000 * 1999 / 1000000 = 3.998 -> 3
				expectedImputedCost: 203,
				// 1000 * 1999 / 1000000 = 1.999 -> 1
				expectedAttemptCost: 101,
			},
		},
		{
			name:      "large amount",
			manager:   populatedManager,
			namespace: "namespace1",
			fromNode:  testNode1,
			toNode:    testNode2,
			amount:    1000000000,
			model: modelTest{
				expectedImputedCost: 2000200,
				expectedAttemptCost: 1000100,
			},
		},
		{
			name:      "rate above maximum gets capped",
			manager:   populatedManager,
			namespace: "namespace2",
			fromNode:  testNode4,
			toNode:    testNode3,
			amount:    1000000,
			model: modelTest{
				// (maxRatePpm * 1000000 / 1000000) + 1
				expectedImputedCost: 10000001,
				expectedAttemptCost: 0,
			},
		},
		{
			name:      "capped rate does not overflow",
			manager:   populatedManager,
			namespace: "namespace2",
			fromNode:  testNode4,
			toNode:    testNode3,
			amount:    100_000_000_000_000,
			model: modelTest{
				// 10 * 1e14 + 1
				expectedImputedCost: 1_000_000_000_000_001,
				expectedAttemptCost: 0,
			},
		},
		{
			name:      "negative costs clamp at zero",
			manager:   populatedManager,
			namespace: "namespace1",
			fromNode:  testNode4,
			toNode:    testNode3,
			amount:    100000,
			model: modelTest{
				expectedImputedCost: 0,
				expectedAttemptCost: 0,
			},
		},
	}

	for _, tc := range testCases {
		tc := tc

		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			model, err := tc.manager.getNamespacedModel(
				tc.namespace,
			)
			if tc.model.expectedError != nil {
				require.ErrorIs(t, err, tc.model.expectedError)
				require.Nil(t, model)

				_, err := tc.manager.GetNamespacedControl(
					tc.namespace, limitUnset, limitUnset,
				)
				require.ErrorIs(t, err, tc.model.expectedError)

				return
			}
			require.NoError(t, err)

			cost, err := model.getCost(
				tc.fromNode, tc.toNode, tc.amount,
			)
			require.NoError(t, err)
			require.Equal(t, tc.model.expectedImputedCost, cost)

			attemptCost, err := model.getAttemptCost(
				tc.fromNode, tc.toNode, tc.amount,
			)
			require.NoError(t, err)
			require.Equal(t, tc.model.expectedAttemptCost, attemptCost)

			if tc.control == nil {
				return
			}

			control, err := tc.manager.GetNamespacedControl(
				tc.namespace, tc.control.costLimit,
				tc.control.attemptCostLimit,
			)
			require.NoError(t, err)

			imputedCost := tc.control.imputedCost
			imputedAttemptCost := tc.control.imputedAttemptCost

			err = control.processPair(
				tc.fromNode, tc.toNode, tc.amount,
				tc.control.totalFee,
				tc.control.absoluteAttemptCost,
				&imputedCost, &imputedAttemptCost,
			)
			require.ErrorIs(t, err, tc.control.expectedError)

			// Totals are only updated when neither limit is
			// exceeded.
			require.Equal(
				t, tc.control.expectedImputedCost, imputedCost,
			)
			require.Equal(
				t, tc.control.expectedImputedAttemptCost,
				imputedAttemptCost,
			)
		})
	}
}

// TestImputedCostNamespaceUpdates tests that pair parameters can only be set
// on existing namespaces, and that models keep the parameters they were
// created with.
func TestImputedCostNamespaceUpdates(t *testing.T) {
	t.Parallel()

	manager := NewImputedCostManager()
	pair := NewDirectedNodePair(testNode1, testNode2)
	params := ImputedCostParameters{CostBaseMsat: 10}

	err := manager.SetPairParams("missing", pair, params)
	require.ErrorIs(t, err, errNamespaceNotFound)

	manager.AddNamespace("ns", ImputedCostParameters{CostBaseMsat: 1})
	model, err := manager.getNamespacedModel("ns")
	require.NoError(t, err)

	require.NoError(t, manager.SetPairParams("ns", pair, params))

	// The model was created before the pair was set, so still uses the
	// default.
	require.EqualValues(t, 1, requireCost(t, model, testNode1, testNode2))

	model, err = manager.getNamespacedModel("ns")
	require.NoError(t, err)
	require.EqualValues(t, 10, requireCost(t, model, testNode1, testNode2))
	require.EqualValues(
		t, 1, requireCost(t, model, pair.Reverse().From,
			pair.Reverse().To),
	)

	// Replacing the namespace drops its pair parameters.
	manager.AddNamespace("ns", ImputedCostParameters{CostBaseMsat: 2})
	model, err = manager.getNamespacedModel("ns")
	require.NoError(t, err)
	require.EqualValues(t, 2, requireCost(t, model, testNode1, testNode2))
}

// requireCost returns the cost of sending a zero amount between two nodes.
func requireCost(t *testing.T, model imputedCostModel,
	from, to route.Vertex) lnwire.MilliSatoshi {

	t.Helper()

	cost, err := model.getCost(from, to, 0)
	require.NoError(t, err)

	return cost
}

// TestImputedCostOverflow tests that costs and running totals that don't fit
// in a MilliSatoshi are reported as errors rather than wrapping around, and
// that the totals are left untouched when that happens.
func TestImputedCostOverflow(t *testing.T) {
	t.Parallel()

	manager := NewImputedCostManager()
	manager.AddNamespace("capped", ImputedCostParameters{
		CostRatePpm:         maxRatePpm,
		AttemptCostRatePpm:  maxRatePpm,
		AttemptCostBaseMsat: 1,
	})
	manager.AddNamespace("base", ImputedCostParameters{
		CostBaseMsat:        1,
		AttemptCostBaseMsat: 1,
	})

	testCases := []struct {
		name                string
		namespace           string
		amount              lnwire.MilliSatoshi
		totalFee            int64
		absoluteAttemptCost float64
		imputedCost         lnwire.MilliSatoshi
		imputedAttemptCost  lnwire.MilliSatoshi
		costLimit           fn.Option[lnwire.MilliSatoshi]
		expectedError       error
	}{
		{
			// 10 * MaxUint64/5 doesn't fit in a uint64.
			name:          "pair cost overflows",
			namespace:     "capped",
			amount:        math.MaxUint64 / 5,
			totalFee:      1,
			costLimit:     fn.Some(lnwire.MilliSatoshi(10)),
			expectedError: ErrAmountOverflow,
		},
		{
			name:          "pair cost overflows without limit",
			namespace:     "capped",
			amount:        math.MaxUint64 / 5,
			costLimit:     fn.None[lnwire.MilliSatoshi](),
			expectedError: ErrAmountOverflow,
		},
		{
			name:          "running total overflows",
			namespace:     "base",
			amount:        1000,
			imputedCost:   math.MaxUint64,
			costLimit:     fn.None[lnwire.MilliSatoshi](),
			expectedError: ErrAmountOverflow,
		},
		{
			name:               "running attempt total overflows",
			namespace:          "base",
			amount:             1000,
			imputedAttemptCost: math.MaxUint64,
			costLimit:          fn.None[lnwire.MilliSatoshi](),
			expectedError:      ErrAmountOverflow,
		},
		{
			// The sum is above the limit even though it would
			// wrap to a small value in uint64.
			name:          "limit checked on full sum",
			namespace:     "base",
			amount:        1000,
			totalFee:      10,
			imputedCost:   math.MaxUint64 - 1,
			costLimit:     fn.Some(lnwire.MilliSatoshi(100)),
			expectedError: errInsufficientCostLimit,
		},
		{
			name:          "negative total fee",
			namespace:     "base",
			amount:        1000,
			totalFee:      -1,
			costLimit:     fn.Some(lnwire.MilliSatoshi(100)),
			expectedError: ErrNegativeAmount,
		},
		{
			name:                "negative attempt cost",
			namespace:           "base",
			amount:              1000,
			absoluteAttemptCost: -0.5,
			costLimit:           fn.None[lnwire.MilliSatoshi](),
			expectedError:       ErrNegativeAmount,
		},
		{
			name:                "nan attempt cost",
			namespace:           "base",
			amount:              1000,
			absoluteAttemptCost: math.NaN(),
			costLimit:           fn.None[lnwire.MilliSatoshi](),
			expectedError:       ErrNegativeAmount,
		},
	}

	for _, testCase := range testCases {
		testCase := testCase

		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			control, err := manager.GetNamespacedControl(
				testCase.namespace, testCase.costLimit,
				fn.None[lnwire.MilliSatoshi](),
			)
			require.NoError(t, err)

			imputedCost := testCase.imputedCost
			imputedAttemptCost := testCase.imputedAttemptCost

			err = control.processPair(
				testNode1, testNode2, testCase.amount,
				testCase.totalFee, testCase.absoluteAttemptCost,
				&imputedCost, &imputedAttemptCost,
			)
			require.ErrorIs(t, err, testCase.expectedError)

			require.Equal(t, testCase.imputedCost, imputedCost)
			require.Equal(
				t, testCase.imputedAttemptCost,
				imputedAttemptCost,
			)
		})
	}

	// The pair cost itself is reported as an overflow by the model.
	model, err := manager.getNamespacedModel("capped")
	require.NoError(t, err)

	_, err = model.getCost(testNode1, testNode2, math.MaxUint64/5)
	require.ErrorIs(t, err, ErrAmountOverflow)

	// The largest amount whose capped cost fits is still accepted.
	cost, err := model.getCost(testNode1, testNode2, math.MaxUint64/10)
	require.NoError(t, err)
	require.EqualValues(t, uint64(math.MaxUint64/10)*10, cost)
}
