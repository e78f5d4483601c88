package anchor

// Result partitions a document's references after a scan. Active references
// have a marker in the current text (or are placeholders); orphaned
// references had a task id but their marker is gone.
type Result struct {
	Active   []Reference
	Orphaned []Reference
}

// Reconcile matches freshly scanned markers against the prior reference set
// for one document.
//
// Per marker, in priority order:
//
//  1. A prior reference starting at the marker's exact position is carried
//     forward: metadata kept, span refreshed, and the task id overwritten if
//     it differs (same line, different task picked — an edit in place, not a
//     new record). Position beats identity when both could match.
//  2. Otherwise a remaining prior with the same task id is carried forward
//     with only its span overwritten. This is the moved case: lines inserted
//     or deleted above the marker shift its position, and the fetched
//     metadata must survive the shift.
//  3. Otherwise the marker is brand new and yields a bare reference;
//     enrichment is a later, separate step.
//
// Priors left unconsumed become orphaned if they have a task id. Priors
// without a task id (placeholders) are always re-emitted as active: with no
// stable identity to track there is nothing to orphan, and only explicit
// user action retires them.
//
// Two priors sharing a task id should not happen, but if they do the first
// wins any match and the second orphans. Reconcile never fails: it runs on
// every display and save cycle and must be total.
//
// Reconcile is idempotent: feeding its active output back in against the
// same markers reproduces it.
func Reconcile(markers []RawMarker, prior []Reference) Result {
	consumed := make([]bool, len(prior))

	var res Result

	for _, m := range markers {
		if i, ok := matchPosition(prior, consumed, m.Span); ok {
			consumed[i] = true

			ref := prior[i].Clone()
			ref.Span = m.Span
			ref.TaskID = m.TaskID
			res.Active = append(res.Active, ref)

			continue
		}

		if i, ok := matchTaskID(prior, consumed, m.TaskID); ok {
			consumed[i] = true

			ref := prior[i].Clone()
			ref.Span = m.Span
			res.Active = append(res.Active, ref)

			continue
		}

		res.Active = append(res.Active, Reference{Span: m.Span, TaskID: m.TaskID})
	}

	for i, ref := range prior {
		if consumed[i] {
			continue
		}

		if ref.Placeholder() {
			res.Active = append(res.Active, ref.Clone())
		} else {
			res.Orphaned = append(res.Orphaned, ref.Clone())
		}
	}

	return res
}

// matchPosition finds the first unconsumed prior starting exactly at span's
// start, regardless of its task id.
func matchPosition(prior []Reference, consumed []bool, span Span) (int, bool) {
	for i, ref := range prior {
		if !consumed[i] && ref.Span.StartEquals(span) {
			return i, true
		}
	}

	return 0, false
}

// matchTaskID finds the first unconsumed prior carrying the given task id.
// Placeholders never match: an empty task id is not an identity.
func matchTaskID(prior []Reference, consumed []bool, taskID string) (int, bool) {
	if taskID == "" {
		return 0, false
	}

	for i, ref := range prior {
		if !consumed[i] && ref.TaskID == taskID {
			return i, true
		}
	}

	return 0, false
}
