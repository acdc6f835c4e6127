package broker

import (
	"math"

	"statarb/internal/domain"
)

// Compile-time interface check.
var _ Broker = (*SimulatorBroker)(nil)

// FeeModel is the execution cost configuration of the simulator.
type FeeModel struct {
	TransactionCostBps float64
	SlippageBpsMin     float64
	SlippageBpsMax     float64
}

// SimulatorBroker fills orders against bar prices. Each fill draws a slippage
// in basis points from its RandomSource and applies it against the trader.
type SimulatorBroker struct {
	fees FeeModel
	rng  RandomSource
}

// NewSimulatorBroker creates a SimulatorBroker with the given fee model and
// slippage source.
func NewSimulatorBroker(fees FeeModel, rng RandomSource) *SimulatorBroker {
	return &SimulatorBroker{fees: fees, rng: rng}
}

// Name returns "simulator".
func (b *SimulatorBroker) Name() string {
	return "simulator"
}

// Fill executes order at bar. Both legs are slipped by the same multiplier;
// the fee is charged on the notional of the first leg.
func (b *SimulatorBroker) Fill(order domain.OrderEvent, bar int, px [2]float64, held domain.Side) domain.FillEvent {
	slip := b.rng.Uniform(b.fees.SlippageBpsMin, b.fees.SlippageBpsMax)
	mult := 1 + slip/1e4*float64(SlipDirection(order.Side, held))
	fill := [2]float64{px[0] * mult, px[1] * mult}
	fee := math.Abs(order.Quantity*fill[0]) * b.fees.TransactionCostBps / 1e4

	return domain.FillEvent{
		Bar:        bar,
		Pair:       order.Pair,
		Side:       order.Side,
		Quantity:   order.Quantity,
		FillPrices: fill,
		Fee:        fee,
	}
}

// SlipDirection returns +1 when the fill buys the first leg and -1 when it
// sells it. Opening long buys, opening short sells and a close trades against
// the held side. A close with nothing held has no direction.
func SlipDirection(side, held domain.Side) int {
	if side != domain.SideFlat {
		return int(side)
	}
	return -int(held)
}
