package sorting

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/username/steuerfolio/src/assets"
	"github.com/username/steuerfolio/src/logger"
	"github.com/username/steuerfolio/src/models"
	"github.com/username/steuerfolio/src/utils"
)

// FIFO correctness depends entirely on one unambiguous chronological
// ordering. The total order is:
//
//	parsed date
//	→ event-kind priority (within a day: conversions and corporate actions
//	  first, then buy-direction trades, option lifecycle, income,
//	  withholding tax, sell-direction trades, fees)
//	→ asset identifier string (resolver-supplied, run-stable)
//	→ absolute original-currency amount
//	→ broker transaction id
//
// Two events agreeing on every component are indistinguishable, which the
// validation pass treats as a data-integrity failure: silent duplicate
// ordering corrupts lot matching irrecoverably.
var kindPriority = map[models.EventKind]int{
	models.KindCurrencyConversion: 0,
	models.KindSplit:              1,
	models.KindMerger:             1,
	models.KindStockDividend:      1,
	models.KindRightsIssue:        1,
	models.KindRightsExpiry:       1,
	models.KindCapitalRepay:       1,
	models.KindBuyOpen:            2,
	models.KindBuyClose:           2,
	models.KindOptionExercise:     3,
	models.KindOptionAssignment:   3,
	models.KindOptionExpiry:       3,
	models.KindDividend:           4,
	models.KindDistribution:       4,
	models.KindInterest:           4,
	models.KindPaymentInLieu:      4,
	models.KindWithholdingTax:     5,
	models.KindSellOpen:           6,
	models.KindSellClose:          6,
	models.KindFee:                7,
}

// Key is one event's position in the total order.
type Key struct {
	Date          time.Time
	KindPriority  int
	Kind          models.EventKind
	AssetIdent    string
	AbsAmount     string // decimal string; ordering only needs determinism, not numeric order
	TransactionID string
}

func (k Key) String() string {
	return fmt.Sprintf("%s/%d/%s/%s/%s",
		k.Date.Format("2006-01-02"), k.KindPriority, k.AssetIdent, k.AbsAmount, k.TransactionID)
}

// Sorter derives keys with asset context from the resolver.
type Sorter struct {
	resolver *assets.Resolver
}

func NewSorter(resolver *assets.Resolver) *Sorter {
	return &Sorter{resolver: resolver}
}

// keyFor derives the sort key. An unparseable date yields the earliest
// possible date as sentinel; validation later verifies every sentinel is
// genuinely justified by its raw field.
func (s *Sorter) keyFor(ev *models.FinancialEvent) Key {
	day, err := utils.ParseDate(ev.Date)
	if err != nil {
		day = time.Time{}
	}
	ev.ParsedDate = day

	ident := ""
	if a := s.resolver.GetAssetByID(ev.AssetID); a != nil {
		ident = a.SortIdentifier()
	}
	return Key{
		Date:          day,
		KindPriority:  priorityOf(ev.Kind),
		Kind:          ev.Kind,
		AssetIdent:    ident,
		AbsAmount:     ev.Amount.Abs().String(),
		TransactionID: ev.TransactionID,
	}
}

func priorityOf(kind models.EventKind) int {
	if p, ok := kindPriority[kind]; ok {
		return p
	}
	return 8
}

func less(a, b Key) bool {
	if !a.Date.Equal(b.Date) {
		return a.Date.Before(b.Date)
	}
	if a.KindPriority != b.KindPriority {
		return a.KindPriority < b.KindPriority
	}
	if a.AssetIdent != b.AssetIdent {
		return a.AssetIdent < b.AssetIdent
	}
	if a.AbsAmount != b.AbsAmount {
		return a.AbsAmount < b.AbsAmount
	}
	return a.TransactionID < b.TransactionID
}

// equalKeys ignores Kind itself: two different kinds can share a priority
// class, and within one class ordering them by name would be arbitrary, so
// identical tuples are a conflict even across kinds.
func equalKeys(a, b Key) bool {
	return a.Date.Equal(b.Date) &&
		a.KindPriority == b.KindPriority &&
		a.AssetIdent == b.AssetIdent &&
		a.AbsAmount == b.AbsAmount &&
		a.TransactionID == b.TransactionID
}

// SortAndValidate produces the globally ordered event sequence and verifies
// the ordering is trustworthy: a duplicate key or an unjustified sentinel
// date aborts the pipeline, enumerating every conflicting event.
func (s *Sorter) SortAndValidate(events []*models.FinancialEvent) ([]*models.FinancialEvent, error) {
	sorted := make([]*models.FinancialEvent, len(events))
	copy(sorted, events)

	keys := make(map[string]Key, len(sorted))
	for _, ev := range sorted {
		keys[ev.ID] = s.keyFor(ev)
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		return less(keys[sorted[i].ID], keys[sorted[j].ID])
	})

	// Regenerate every key and verify the ordering invariants.
	var violations []string
	for i, ev := range sorted {
		key := s.keyFor(ev)

		if key.Date.IsZero() {
			if _, err := utils.ParseDate(ev.Date); err == nil {
				violations = append(violations, describeEvent("sentinel date without parse failure", ev, key))
			} else {
				logger.L.Warn("Event ordered at sentinel date, raw date unparseable",
					"eventID", ev.ID, "date", ev.Date, "transactionID", ev.TransactionID)
			}
		}

		if i > 0 {
			prev := sorted[i-1]
			if equalKeys(keys[prev.ID], key) {
				violations = append(violations,
					describeEvent("duplicate sort key", prev, keys[prev.ID]),
					describeEvent("duplicate sort key", ev, key))
			}
		}
	}

	if len(violations) > 0 {
		return nil, fmt.Errorf("event ordering cannot be trusted, %d violation(s):\n%s",
			len(violations), strings.Join(violations, "\n"))
	}
	logger.L.Info("Event stream sorted and validated", "events", len(sorted))
	return sorted, nil
}

func describeEvent(reason string, ev *models.FinancialEvent, key Key) string {
	return fmt.Sprintf("  %s: event=%s kind=%s desc=%q amount=%s %s txid=%s key=%s",
		reason, ev.ID, ev.Kind, ev.Description, ev.Amount, ev.Currency, ev.TransactionID, key)
}
