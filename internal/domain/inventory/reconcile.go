package inventory

import (
	"sort"

	"github.com/google/uuid"
)

// Drift describes a ledger entry whose recorded resulting quantity disagrees
// with the running sum of all changes up to and including it.
type Drift struct {
	EntryID  uuid.UUID `json:"entry_id"`
	Sequence int64     `json:"sequence"`
	Replayed int64     `json:"replayed"`
	Recorded int64     `json:"recorded"`
}

// ReconciliationReport is the outcome of replaying one item's ledger
type ReconciliationReport struct {
	StockItemID       uuid.UUID `json:"stock_item_id"`
	SKU               string    `json:"sku"`
	EntryCount        int       `json:"entry_count"`
	ReplayedQuantity  int64     `json:"replayed_quantity"`
	ProjectedQuantity int64     `json:"projected_quantity"`
	Drifts            []Drift   `json:"drifts,omitempty"`
	SequenceGaps      []int64   `json:"sequence_gaps,omitempty"`
}

// Balanced reports whether the ledger replays exactly onto the projection
func (r ReconciliationReport) Balanced() bool {
	return len(r.Drifts) == 0 && len(r.SequenceGaps) == 0 && r.ReplayedQuantity == r.ProjectedQuantity
}

// Replay sums quantity changes from zero in sequence order and returns the
// final quantity along with every entry whose resulting quantity disagrees
// with the running sum.
func Replay(entries []LedgerEntry) (int64, []Drift) {
	ordered := make([]LedgerEntry, len(entries))
	copy(ordered, entries)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Sequence < ordered[j].Sequence
	})

	var running int64
	var drifts []Drift
	for _, e := range ordered {
		running += e.QuantityChange
		if running != e.ResultingQuantity {
			drifts = append(drifts, Drift{
				EntryID:  e.ID,
				Sequence: e.Sequence,
				Replayed: running,
				Recorded: e.ResultingQuantity,
			})
		}
	}
	return running, drifts
}

// Reconcile checks the replay invariant for item against its entries
func Reconcile(item *StockItem, entries []LedgerEntry) ReconciliationReport {
	replayed, drifts := Replay(entries)
	report := ReconciliationReport{
		StockItemID:       item.ID,
		SKU:               item.SKU,
		EntryCount:        len(entries),
		ReplayedQuantity:  replayed,
		ProjectedQuantity: item.QuantityOnHand(),
		Drifts:            drifts,
	}

	seen := make(map[int64]bool, len(entries))
	for _, e := range entries {
		seen[e.Sequence] = true
	}
	for seq := int64(1); seq <= item.LedgerSequence(); seq++ {
		if !seen[seq] {
			report.SequenceGaps = append(report.SequenceGaps, seq)
		}
	}
	return report
}
