package core

// allocator hands out the smallest identifiers not already used in a batch.
type allocator struct {
	next ID
	used map[ID]struct{}
}

func newAllocator(batch Batch) *allocator {
	a := &allocator{next: 1, used: make(map[ID]struct{}, len(batch))}
	for _, rec := range batch {
		if id, ok := rec.ID(); ok {
			a.used[id] = struct{}{}
		}
	}
	return a
}

func (a *allocator) take() ID {
	for {
		id := a.next
		a.next++
		if _, taken := a.used[id]; !taken {
			a.used[id] = struct{}{}
			return id
		}
	}
}

// AssignIDs gives every record lacking a valid id the next unused identifier,
// counting from 1 in batch order. Records that already carry an id are left
// untouched, so running it twice changes nothing. Identifiers are positional:
// reordering the input reorders the assignment. It returns the number of
// records that received an id.
func AssignIDs(batch Batch) int {
	alloc := newAllocator(batch)
	assigned := 0
	for _, rec := range batch {
		if _, ok := rec.ID(); ok {
			continue
		}
		rec.SetID(alloc.take())
		assigned++
	}
	return assigned
}
