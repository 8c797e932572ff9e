package txbuilder

import (
	"math/big"
)

type ExUnits struct {
	Mem   uint64 `json:"memory"`
	Steps uint64 `json:"cpu"`
}

func (e ExUnits) Add(o ExUnits) ExUnits {
	return ExUnits{Mem: e.Mem + o.Mem, Steps: e.Steps + o.Steps}
}

// ProtocolParams holds the ledger parameters the builder prices a
// transaction with.
type ProtocolParams struct {
	MinFeeA           uint64
	MinFeeB           uint64
	CoinsPerUtxoByte  uint64
	StakeKeyDeposit   uint64
	MaxTxSize         uint64
	MaxTxExUnits      ExUnits
	CollateralPercent uint64
	PriceMem          *big.Rat
	PriceSteps        *big.Rat

	// Tiered reference script fee: the first RefScriptRange bytes cost
	// RefScriptBase per byte, each following tier costs Multiplier times more.
	RefScriptBase       *big.Rat
	RefScriptRange      uint64
	RefScriptMultiplier *big.Rat

	CostModelV3 []int64
}

// DefaultParams mirrors the preprod parameters at the start of the Conway era.
// Used by tests and as a fallback for offline builds.
func DefaultParams() *ProtocolParams {
	return &ProtocolParams{
		MinFeeA:             44,
		MinFeeB:             155381,
		CoinsPerUtxoByte:    4310,
		StakeKeyDeposit:     2_000_000,
		MaxTxSize:           16384,
		MaxTxExUnits:        ExUnits{Mem: 14_000_000, Steps: 10_000_000_000},
		CollateralPercent:   150,
		PriceMem:            big.NewRat(577, 10000),
		PriceSteps:          big.NewRat(721, 10000000),
		RefScriptBase:       big.NewRat(15, 1),
		RefScriptRange:      25600,
		RefScriptMultiplier: big.NewRat(12, 10),
	}
}

func ceilRat(r *big.Rat) uint64 {
	q, m := new(big.Int).QuoRem(r.Num(), r.Denom(), new(big.Int))
	if m.Sign() > 0 {
		q.Add(q, big.NewInt(1))
	}
	return q.Uint64()
}

func floorRat(r *big.Rat) uint64 {
	return new(big.Int).Quo(r.Num(), r.Denom()).Uint64()
}

// ExUnitsFee is the script execution cost of the given budget, rounded up.
func (p *ProtocolParams) ExUnitsFee(units ExUnits) uint64 {
	mem := new(big.Rat).Mul(p.PriceMem, new(big.Rat).SetInt(new(big.Int).SetUint64(units.Mem)))
	steps := new(big.Rat).Mul(p.PriceSteps, new(big.Rat).SetInt(new(big.Int).SetUint64(units.Steps)))
	return ceilRat(mem.Add(mem, steps))
}

// RefScriptFee prices size bytes of reference scripts touched by a transaction.
func (p *ProtocolParams) RefScriptFee(size int) uint64 {
	if size <= 0 || p.RefScriptBase == nil || p.RefScriptRange == 0 {
		return 0
	}
	total := new(big.Rat)
	price := new(big.Rat).Set(p.RefScriptBase)
	remaining := uint64(size)
	for remaining > 0 {
		chunk := p.RefScriptRange
		if remaining < chunk {
			chunk = remaining
		}
		total.Add(total, new(big.Rat).Mul(price, new(big.Rat).SetInt64(int64(chunk))))
		remaining -= chunk
		price.Mul(price, p.RefScriptMultiplier)
	}
	return floorRat(total)
}

// MinUtxo is the minimum lovelace an output of the given serialized size
// must hold.
func (p *ProtocolParams) MinUtxo(outputSize int) uint64 {
	return p.CoinsPerUtxoByte * uint64(160+outputSize)
}
