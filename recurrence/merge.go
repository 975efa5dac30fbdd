package recurrence

import (
	"iter"
)

// Merge combines any number of date-ordered occurrence sequences into one
// globally ordered sequence, lazily. It keeps a single head value per live
// input (O(1) additional state each) and repeatedly yields the head with the
// smallest start, so no input is ever materialized in full.
//
// Ties on start are broken stably by input registration order: the
// earlier-registered sequence wins. limit caps the total number of
// occurrences yielded; limit <= 0 means unlimited.
func Merge(seqs []iter.Seq[Occurrence], limit int) iter.Seq[Occurrence] {
	return func(yield func(Occurrence) bool) {
		type head struct {
			next func() (Occurrence, bool)
			stop func()
			cur  Occurrence
		}

		heads := make([]*head, 0, len(seqs))
		defer func() {
			for _, h := range heads {
				h.stop()
			}
		}()

		// Seed one head per non-empty input.
		for _, seq := range seqs {
			next, stop := iter.Pull(seq)
			cur, ok := next()
			if !ok {
				stop()
				continue
			}
			heads = append(heads, &head{next: next, stop: stop, cur: cur})
		}

		count := 0
		for len(heads) > 0 {
			if limit > 0 && count >= limit {
				return
			}

			// Select the earliest head; strict Before keeps ties stable.
			best := 0
			for i := 1; i < len(heads); i++ {
				if heads[i].cur.Start.Before(heads[best].cur.Start) {
					best = i
				}
			}

			if !yield(heads[best].cur) {
				return
			}
			count++

			// Refill the winning head, dropping it once exhausted.
			cur, ok := heads[best].next()
			if ok {
				heads[best].cur = cur
			} else {
				heads[best].stop()
				heads = append(heads[:best], heads[best+1:]...)
			}
		}
	}
}
