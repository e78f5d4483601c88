// Package refstore holds the authoritative per-document reference sets and
// their persisted representation.
//
// The store is the only shared mutable resource in the pipeline: reads may
// run concurrently, writes are serialized, and every mutating operation
// leaves the two structural invariants intact — within one document no two
// references share a task id, and no two references share a span start
// position. There is no partial-write state observable from outside.
package refstore

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"clickref/internal/anchor"
)

// BlobKey is the persistence key under which the whole serialized store
// lives in a key-value backend.
const BlobKey = "clickup.taskReferences"

// Store maps document URIs to their reference sets.
type Store struct {
	mu    sync.RWMutex
	byURI map[string][]anchor.Reference
}

// New returns an empty store.
func New() *Store {
	return &Store{byURI: make(map[string][]anchor.Reference)}
}

// Get returns deep copies of the references for a document, in document
// order. The caller owns the returned slice.
func (s *Store) Get(uri string) []anchor.Reference {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return cloneRefs(s.byURI[uri])
}

// URIs returns every document with at least one reference, sorted.
func (s *Store) URIs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	uris := make([]string, 0, len(s.byURI))
	for uri := range s.byURI {
		uris = append(uris, uri)
	}

	sort.Strings(uris)

	return uris
}

// Count returns the total number of references across all documents.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, refs := range s.byURI {
		n += len(refs)
	}

	return n
}

// SetActive replaces the reference set for a document wholesale. Called
// after reconciliation. Input references violating the structural
// invariants are dropped first-wins rather than rejected: SetActive runs on
// every display cycle and must be total.
func (s *Store) SetActive(uri string, refs []anchor.Reference) {
	cleaned := dedupe(refs)

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(cleaned) == 0 {
		delete(s.byURI, uri)

		return
	}

	s.byURI[uri] = cleaned
}

// Patch is the partial update applied by UpsertByPosition. Zero-valued
// fields are left unchanged on the target reference.
type Patch struct {
	TaskID          string
	Meta            *anchor.Metadata
	OriginWorkspace string
}

// UpsertByPosition merges a patch into the reference at the given span
// start, creating the reference when absent. Used by explicit edit commands
// that know the exact position they are changing.
func (s *Store) UpsertByPosition(uri string, span anchor.Span, patch Patch) (anchor.Reference, error) {
	if uri == "" {
		return anchor.Reference{}, errEmptyURI
	}

	if !span.Valid() {
		return anchor.Reference{}, fmt.Errorf("upsert %s: %w", uri, ErrInvalidSpan)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	refs := s.byURI[uri]

	// Assigning a task id that another reference in this document already
	// carries would break the unique-task invariant.
	if patch.TaskID != "" {
		for _, ref := range refs {
			if ref.TaskID == patch.TaskID && !ref.Span.StartEquals(span) {
				return anchor.Reference{}, fmt.Errorf("upsert %s task %s: %w", uri, patch.TaskID, ErrDuplicateTask)
			}
		}
	}

	for i := range refs {
		if refs[i].Span.StartEquals(span) {
			applyPatch(&refs[i], span, patch)

			return refs[i].Clone(), nil
		}
	}

	created := anchor.Reference{Span: span}
	applyPatch(&created, span, patch)

	s.byURI[uri] = append(refs, created)
	sortRefs(s.byURI[uri])

	return created.Clone(), nil
}

// RemoveByPosition deletes the reference at the given span start. Returns
// whether a reference was removed.
func (s *Store) RemoveByPosition(uri string, span anchor.Span) (bool, error) {
	if !span.Valid() {
		return false, fmt.Errorf("remove %s: %w", uri, ErrInvalidSpan)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	refs := s.byURI[uri]

	for i := range refs {
		if refs[i].Span.StartEquals(span) {
			refs = append(refs[:i], refs[i+1:]...)

			if len(refs) == 0 {
				delete(s.byURI, uri)
			} else {
				s.byURI[uri] = refs
			}

			return true, nil
		}
	}

	return false, nil
}

// Encode serializes the store to its stable persisted form: a JSON object
// mapping document URI to an array of plain reference records, spans as
// four integers. Round-trips losslessly through Decode.
func (s *Store) Encode() ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := json.Marshal(s.byURI)
	if err != nil {
		return nil, fmt.Errorf("encode store: %w", err)
	}

	return data, nil
}

// Decode deserializes a persisted blob produced by Encode. Structural
// invariants are re-enforced on the way in, so a hand-edited or stale blob
// cannot smuggle duplicates into memory.
func Decode(data []byte) (*Store, error) {
	var byURI map[string][]anchor.Reference

	err := json.Unmarshal(data, &byURI)
	if err != nil {
		return nil, fmt.Errorf("decode store: %w", err)
	}

	s := New()
	for uri, refs := range byURI {
		s.SetActive(uri, refs)
	}

	return s, nil
}

// applyPatch mutates ref in place under the store lock.
func applyPatch(ref *anchor.Reference, span anchor.Span, patch Patch) {
	ref.Span = span

	if patch.TaskID != "" {
		ref.TaskID = patch.TaskID
	}

	if patch.Meta != nil {
		ref.MergeMeta(*patch.Meta)
	}

	if patch.OriginWorkspace != "" {
		ref.OriginWorkspace = patch.OriginWorkspace
	}
}

// dedupe clones refs in document order, dropping later entries that repeat
// a task id or a span start position.
func dedupe(refs []anchor.Reference) []anchor.Reference {
	if len(refs) == 0 {
		return nil
	}

	cleaned := cloneRefs(refs)
	sortRefs(cleaned)

	seenTask := make(map[string]struct{}, len(cleaned))
	seenPos := make(map[[2]int]struct{}, len(cleaned))

	out := cleaned[:0]

	for _, ref := range cleaned {
		pos := [2]int{ref.Span.StartLine, ref.Span.StartCol}
		if _, dup := seenPos[pos]; dup {
			continue
		}

		if ref.TaskID != "" {
			if _, dup := seenTask[ref.TaskID]; dup {
				continue
			}

			seenTask[ref.TaskID] = struct{}{}
		}

		seenPos[pos] = struct{}{}
		out = append(out, ref)
	}

	return out
}

func cloneRefs(refs []anchor.Reference) []anchor.Reference {
	if refs == nil {
		return nil
	}

	out := make([]anchor.Reference, len(refs))
	for i, ref := range refs {
		out[i] = ref.Clone()
	}

	return out
}

func sortRefs(refs []anchor.Reference) {
	sort.SliceStable(refs, func(i, j int) bool {
		return refs[i].Span.Before(refs[j].Span)
	})
}
