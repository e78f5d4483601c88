// Package anchor implements the reference position tracking core: comment
// syntax resolution, marker scanning, and reconciliation of scanned markers
// against previously known references.
//
// An anchor is a single comment line of the form
//
//	<line-comment-prefix> clickup:<taskId>
//
// tying one document position to one external task. The scanner finds these
// markers in document text; the reconciler matches them against the prior
// reference set for the document, classifying every reference as active or
// orphaned without losing fetched metadata when a marker moves.
package anchor

import "time"

// Span is a half-open line/column range locating a marker in a document.
// Lines and columns are zero-based. Spans serialize as four plain integers
// so the persisted format is stable across hosts.
type Span struct {
	StartLine int `json:"startLine"`
	StartCol  int `json:"startCol"`
	EndLine   int `json:"endLine"`
	EndCol    int `json:"endCol"`
}

// Valid reports whether the span has non-negative coordinates and a
// non-inverted range.
func (s Span) Valid() bool {
	if s.StartLine < 0 || s.StartCol < 0 || s.EndLine < 0 || s.EndCol < 0 {
		return false
	}

	if s.EndLine < s.StartLine {
		return false
	}

	return s.EndLine != s.StartLine || s.EndCol >= s.StartCol
}

// StartEquals reports whether two spans begin at the same position.
// Reconciliation and store invariants key off the start position only;
// the end moves whenever the marker text is reformatted.
func (s Span) StartEquals(o Span) bool {
	return s.StartLine == o.StartLine && s.StartCol == o.StartCol
}

// Before reports document order of span starts (line, then column).
func (s Span) Before(o Span) bool {
	if s.StartLine != o.StartLine {
		return s.StartLine < o.StartLine
	}

	return s.StartCol < o.StartCol
}

// RawMarker is one anchor occurrence found by a scan: the captured task id
// and where the marker text sits right now. Raw markers carry no metadata;
// enrichment happens after reconciliation.
type RawMarker struct {
	TaskID string
	Span   Span
}

// Metadata is the enrichment fetched from the task repository. All fields
// are additive: a merge only ever overwrites a field with a non-empty
// incoming value, so temporarily unavailable data never erases known data.
type Metadata struct {
	Name              string    `json:"name,omitempty"`
	Description       string    `json:"description,omitempty"`
	Status            string    `json:"status,omitempty"`
	StatusColor       string    `json:"statusColor,omitempty"`
	Assignee          string    `json:"assignee,omitempty"`
	ParentID          string    `json:"parentId,omitempty"`
	ParentName        string    `json:"parentName,omitempty"`
	ParentDescription string    `json:"parentDescription,omitempty"`
	ListID            string    `json:"listId,omitempty"`
	ListName          string    `json:"listName,omitempty"`
	FolderID          string    `json:"folderId,omitempty"`
	FolderName        string    `json:"folderName,omitempty"`
	LastUpdated       time.Time `json:"lastUpdated,omitzero"`
}

// Merge returns a copy of m with every non-empty field of incoming applied
// on top. Empty incoming fields leave the existing value untouched.
func (m Metadata) Merge(incoming Metadata) Metadata {
	merged := m

	apply := func(dst *string, src string) {
		if src != "" {
			*dst = src
		}
	}

	apply(&merged.Name, incoming.Name)
	apply(&merged.Description, incoming.Description)
	apply(&merged.Status, incoming.Status)
	apply(&merged.StatusColor, incoming.StatusColor)
	apply(&merged.Assignee, incoming.Assignee)
	apply(&merged.ParentID, incoming.ParentID)
	apply(&merged.ParentName, incoming.ParentName)
	apply(&merged.ParentDescription, incoming.ParentDescription)
	apply(&merged.ListID, incoming.ListID)
	apply(&merged.ListName, incoming.ListName)
	apply(&merged.FolderID, incoming.FolderID)
	apply(&merged.FolderName, incoming.FolderName)

	if !incoming.LastUpdated.IsZero() {
		merged.LastUpdated = incoming.LastUpdated
	}

	return merged
}

// IsZero reports whether no metadata field is populated.
func (m Metadata) IsZero() bool {
	return m == Metadata{}
}

// Reference is one annotated point in one document. The owning document URI
// is the store key, never embedded here. Identity for reconciliation is the
// task id when present; a reference without a task id is a placeholder whose
// identity is its position.
type Reference struct {
	Span            Span      `json:"span"`
	TaskID          string    `json:"taskId,omitempty"`
	Meta            *Metadata `json:"metadata,omitempty"`
	OriginWorkspace string    `json:"originWorkspacePath,omitempty"`
}

// Placeholder reports whether the reference has no task id yet.
// Placeholders never orphan; their lifecycle is driven by explicit user
// action, not by scanning.
func (r Reference) Placeholder() bool {
	return r.TaskID == ""
}

// Clone returns a deep copy. References share no mutable state with their
// clones, so a caller can hand out copies without aliasing the metadata.
func (r Reference) Clone() Reference {
	cloned := r

	if r.Meta != nil {
		meta := *r.Meta
		cloned.Meta = &meta
	}

	return cloned
}

// MergeMeta applies non-empty fields of incoming onto the reference's
// metadata, allocating it when absent. The span is never touched.
func (r *Reference) MergeMeta(incoming Metadata) {
	if r.Meta == nil {
		r.Meta = &Metadata{}
	}

	merged := r.Meta.Merge(incoming)
	r.Meta = &merged
}
