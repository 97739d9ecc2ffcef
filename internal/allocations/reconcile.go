package allocations

import "sort"

// Reconcile attributes delivered quantities back to the allocations that
// supplied them, oldest allocation first. need maps productID to the
// quantity still to attribute. Allocations are walked in (date, id) order;
// each matching item absorbs min(remaining, need) by growing its sold
// counter. Returns the allocations whose sold counters changed, with
// sales totals recomputed and status flipped to Delivered, plus whatever
// need could not be attributed.
//
// The input slice is not mutated; changed allocations are deep copies.
func Reconcile(allocs []DriverAllocation, need map[int64]int64) (changed []DriverAllocation, unmet map[int64]int64) {
	remaining := make(map[int64]int64, len(need))
	for productID, qty := range need {
		if qty > 0 {
			remaining[productID] = qty
		}
	}

	ordered := make([]DriverAllocation, len(allocs))
	copy(ordered, allocs)
	sort.SliceStable(ordered, func(i, j int) bool {
		if !ordered[i].Date.Equal(ordered[j].Date) {
			return ordered[i].Date.Before(ordered[j].Date)
		}
		return ordered[i].ID < ordered[j].ID
	})

	for _, alloc := range ordered {
		if len(remaining) == 0 {
			break
		}
		touched := false
		items := make([]AllocatedItem, len(alloc.Items))
		copy(items, alloc.Items)
		for i := range items {
			needQty, ok := remaining[items[i].ProductID]
			if !ok {
				continue
			}
			take := items[i].Remaining()
			if take > needQty {
				take = needQty
			}
			if take == 0 {
				continue
			}
			items[i].Sold += take
			touched = true
			if needQty == take {
				delete(remaining, items[i].ProductID)
			} else {
				remaining[items[i].ProductID] = needQty - take
			}
		}
		if !touched {
			continue
		}
		alloc.Items = items
		alloc.SalesTotal = alloc.computeSalesTotal()
		alloc.Status = StatusDelivered
		changed = append(changed, alloc)
	}
	return changed, remaining
}

// Available sums the sellable remainder per product across allocations.
func Available(allocs []DriverAllocation) map[int64]int64 {
	out := make(map[int64]int64)
	for _, alloc := range allocs {
		for _, item := range alloc.Items {
			if r := item.Remaining(); r > 0 {
				out[item.ProductID] += r
			}
		}
	}
	return out
}
