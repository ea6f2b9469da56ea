package fifo

import (
	"github.com/shopspring/decimal"
	"github.com/username/steuerfolio/src/models"
)

// inventory is one asset's ordered queue of open lots. All open lots share a
// sign at any time: positive quantities for a long position, negative for a
// short one. Disposals consume oldest-first, splitting the head lot when the
// disposal is smaller than its remaining quantity.
type inventory struct {
	lots []models.Lot
}

// lotMatch is one lot-consumption: quantity is always positive, the matched
// portion of the head lot.
type lotMatch struct {
	acquisitionDate string
	quantity        decimal.Decimal
	unitCostEUR     decimal.Decimal
	costEUR         decimal.Decimal
}

// position is the signed running quantity.
func (inv *inventory) position() decimal.Decimal {
	total := decimal.Zero
	for _, lot := range inv.lots {
		total = total.Add(lot.Quantity)
	}
	return total
}

func (inv *inventory) isShort() bool {
	return len(inv.lots) > 0 && inv.lots[0].Quantity.IsNegative()
}

func (inv *inventory) isLong() bool {
	return len(inv.lots) > 0 && inv.lots[0].Quantity.IsPositive()
}

// open appends a new lot. quantity is signed; unitCost is the per-unit cost
// (long) or per-unit proceeds (short), always non-negative.
func (inv *inventory) open(date string, quantity, unitCost decimal.Decimal) {
	if quantity.IsZero() {
		return
	}
	inv.lots = append(inv.lots, models.Lot{
		AcquisitionDate: date,
		Quantity:        quantity,
		UnitCostEUR:     unitCost,
		CostEUR:         quantity.Mul(unitCost),
	})
}

// consume takes up to want units (positive) from the queue oldest-first,
// regardless of the position's sign, and returns one match per lot touched.
// It consumes at most the open quantity; the second return is the quantity
// actually consumed.
func (inv *inventory) consume(want decimal.Decimal) ([]lotMatch, decimal.Decimal) {
	var matches []lotMatch
	consumed := decimal.Zero

	for want.GreaterThan(consumed) && len(inv.lots) > 0 {
		head := &inv.lots[0]
		headAbs := head.Quantity.Abs()
		need := want.Sub(consumed)

		matched := decimal.Min(need, headAbs)
		matches = append(matches, lotMatch{
			acquisitionDate: head.AcquisitionDate,
			quantity:        matched,
			unitCostEUR:     head.UnitCostEUR,
			costEUR:         matched.Mul(head.UnitCostEUR),
		})
		consumed = consumed.Add(matched)

		if matched.Equal(headAbs) {
			inv.lots = inv.lots[1:]
			continue
		}
		// Split: shrink the head lot in place, keeping its sign.
		sign := decimal.NewFromInt(1)
		if head.Quantity.IsNegative() {
			sign = decimal.NewFromInt(-1)
		}
		head.Quantity = headAbs.Sub(matched).Mul(sign)
		head.CostEUR = head.Quantity.Mul(head.UnitCostEUR)
	}
	return matches, consumed
}

// rescale adjusts every open lot for a split: quantities multiply by ratio,
// unit costs divide by it, total cost is preserved.
func (inv *inventory) rescale(ratio decimal.Decimal, precision int32) {
	if ratio.IsZero() || ratio.Equal(decimal.NewFromInt(1)) {
		return
	}
	for i := range inv.lots {
		lot := &inv.lots[i]
		lot.Quantity = lot.Quantity.Mul(ratio)
		lot.UnitCostEUR = lot.UnitCostEUR.DivRound(ratio, precision)
		lot.CostEUR = lot.Quantity.Mul(lot.UnitCostEUR)
	}
}
