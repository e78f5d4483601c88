package anchor_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"clickref/internal/anchor"
)

func marker(taskID string, line int) anchor.RawMarker {
	return anchor.RawMarker{TaskID: taskID, Span: span(line, 0, line, 20)}
}

func ref(taskID string, line int) anchor.Reference {
	return anchor.Reference{TaskID: taskID, Span: span(line, 0, line, 20)}
}

func refWithName(taskID string, line int, name string) anchor.Reference {
	r := ref(taskID, line)
	r.Meta = &anchor.Metadata{Name: name}

	return r
}

func Test_Reconcile_New_Marker_Against_Empty_Prior_Is_Bare_Active(t *testing.T) {
	t.Parallel()

	res := anchor.Reconcile([]anchor.RawMarker{marker("abc123", 1)}, nil)

	want := []anchor.Reference{ref("abc123", 1)}

	if diff := cmp.Diff(want, res.Active); diff != "" {
		t.Fatalf("active mismatch (-want +got):\n%s", diff)
	}

	if len(res.Orphaned) != 0 {
		t.Fatalf("orphaned = %d, want 0", len(res.Orphaned))
	}

	if res.Active[0].Meta != nil {
		t.Fatal("new reference must carry no metadata")
	}
}

func Test_Reconcile_Moved_Marker_Keeps_Metadata_And_Updates_Span(t *testing.T) {
	t.Parallel()

	// Five lines inserted above the marker: same task, new position.
	prior := []anchor.Reference{refWithName("T1", 10, "Foo")}
	markers := []anchor.RawMarker{marker("T1", 15)}

	res := anchor.Reconcile(markers, prior)

	if len(res.Active) != 1 || len(res.Orphaned) != 0 {
		t.Fatalf("active = %d, orphaned = %d, want 1, 0", len(res.Active), len(res.Orphaned))
	}

	got := res.Active[0]

	if got.Span != span(15, 0, 15, 20) {
		t.Fatalf("span = %+v, want start line 15", got.Span)
	}

	if got.Meta == nil || got.Meta.Name != "Foo" {
		t.Fatalf("metadata lost across move: %+v", got.Meta)
	}
}

func Test_Reconcile_Position_Match_Overwrites_TaskID_In_Place(t *testing.T) {
	t.Parallel()

	// Same line, user picked a different task: an edit, not a new record.
	prior := []anchor.Reference{refWithName("old", 3, "Old name")}
	markers := []anchor.RawMarker{marker("new", 3)}

	res := anchor.Reconcile(markers, prior)

	if len(res.Active) != 1 || len(res.Orphaned) != 0 {
		t.Fatalf("active = %d, orphaned = %d, want 1, 0", len(res.Active), len(res.Orphaned))
	}

	got := res.Active[0]

	if got.TaskID != "new" {
		t.Fatalf("task id = %q, want %q", got.TaskID, "new")
	}

	if got.Meta == nil || got.Meta.Name != "Old name" {
		t.Fatal("position match must carry prior metadata forward")
	}
}

func Test_Reconcile_Position_Match_Wins_Over_Identity_Match(t *testing.T) {
	t.Parallel()

	// T1's old slot now holds T2, and T1 reappears further down. The slot
	// is treated as an in-place edit; T1 at its new position is brand new.
	prior := []anchor.Reference{refWithName("T1", 3, "Foo")}
	markers := []anchor.RawMarker{marker("T2", 3), marker("T1", 8)}

	res := anchor.Reconcile(markers, prior)

	if len(res.Active) != 2 || len(res.Orphaned) != 0 {
		t.Fatalf("active = %d, orphaned = %d, want 2, 0", len(res.Active), len(res.Orphaned))
	}

	if res.Active[0].TaskID != "T2" || res.Active[0].Meta == nil {
		t.Fatalf("slot reference = %+v, want T2 with carried metadata", res.Active[0])
	}

	if res.Active[1].TaskID != "T1" || res.Active[1].Meta != nil {
		t.Fatalf("reappeared reference = %+v, want bare T1", res.Active[1])
	}
}

func Test_Reconcile_Missing_Marker_Orphans_Reference(t *testing.T) {
	t.Parallel()

	prior := []anchor.Reference{
		refWithName("T1", 1, "kept"),
		refWithName("T2", 5, "gone"),
	}
	markers := []anchor.RawMarker{marker("T1", 1)}

	res := anchor.Reconcile(markers, prior)

	if len(res.Active) != 1 || res.Active[0].TaskID != "T1" {
		t.Fatalf("active = %+v, want only T1", res.Active)
	}

	if len(res.Orphaned) != 1 || res.Orphaned[0].TaskID != "T2" {
		t.Fatalf("orphaned = %+v, want only T2", res.Orphaned)
	}
}

func Test_Reconcile_Placeholder_Never_Orphans(t *testing.T) {
	t.Parallel()

	placeholder := anchor.Reference{Span: span(7, 0, 7, 0)}
	res := anchor.Reconcile(nil, []anchor.Reference{placeholder})

	if len(res.Orphaned) != 0 {
		t.Fatalf("orphaned = %+v, want none", res.Orphaned)
	}

	if diff := cmp.Diff([]anchor.Reference{placeholder}, res.Active); diff != "" {
		t.Fatalf("active mismatch (-want +got):\n%s", diff)
	}
}

func Test_Reconcile_Marker_At_Placeholder_Position_Fills_In_TaskID(t *testing.T) {
	t.Parallel()

	prior := []anchor.Reference{{Span: span(2, 0, 2, 0), OriginWorkspace: "/w"}}
	markers := []anchor.RawMarker{marker("filled", 2)}

	res := anchor.Reconcile(markers, prior)

	if len(res.Active) != 1 {
		t.Fatalf("active = %d, want 1", len(res.Active))
	}

	got := res.Active[0]

	if got.TaskID != "filled" || got.OriginWorkspace != "/w" {
		t.Fatalf("reference = %+v, want filled task id with origin kept", got)
	}
}

func Test_Reconcile_Duplicate_TaskID_Priors_First_Wins_Second_Orphans(t *testing.T) {
	t.Parallel()

	// Should not happen per store invariants; resolved deterministically
	// instead of failing.
	prior := []anchor.Reference{
		refWithName("dup", 1, "first"),
		refWithName("dup", 9, "second"),
	}
	markers := []anchor.RawMarker{marker("dup", 4)}

	res := anchor.Reconcile(markers, prior)

	if len(res.Active) != 1 || res.Active[0].Meta.Name != "first" {
		t.Fatalf("active = %+v, want first prior carried", res.Active)
	}

	if len(res.Orphaned) != 1 || res.Orphaned[0].Meta.Name != "second" {
		t.Fatalf("orphaned = %+v, want second prior", res.Orphaned)
	}
}

func Test_Reconcile_Pasted_Duplicate_Markers_Yield_One_Carry_One_New(t *testing.T) {
	t.Parallel()

	prior := []anchor.Reference{refWithName("dup", 1, "carried")}
	markers := []anchor.RawMarker{marker("dup", 1), marker("dup", 6)}

	res := anchor.Reconcile(markers, prior)

	if len(res.Active) != 2 {
		t.Fatalf("active = %d, want 2", len(res.Active))
	}

	if res.Active[0].Meta == nil || res.Active[0].Meta.Name != "carried" {
		t.Fatalf("first duplicate = %+v, want carried metadata", res.Active[0])
	}

	if res.Active[1].Meta != nil {
		t.Fatalf("second duplicate = %+v, want bare", res.Active[1])
	}
}

func Test_Reconcile_Is_Idempotent_On_Unchanged_Input(t *testing.T) {
	t.Parallel()

	prior := []anchor.Reference{
		refWithName("T1", 1, "one"),
		refWithName("T2", 4, "two"),
		{Span: span(9, 2, 9, 2)}, // placeholder
	}
	markers := []anchor.RawMarker{marker("T1", 1), marker("T2", 4)}

	first := anchor.Reconcile(markers, prior)
	second := anchor.Reconcile(markers, first.Active)

	if diff := cmp.Diff(first.Active, second.Active); diff != "" {
		t.Fatalf("active not idempotent (-first +second):\n%s", diff)
	}

	if len(second.Orphaned) != 0 {
		t.Fatalf("second pass orphaned = %+v, want none", second.Orphaned)
	}
}

func Test_Reconcile_Does_Not_Alias_Prior_Metadata(t *testing.T) {
	t.Parallel()

	prior := []anchor.Reference{refWithName("T1", 1, "original")}
	res := anchor.Reconcile([]anchor.RawMarker{marker("T1", 5)}, prior)

	res.Active[0].Meta.Name = "mutated"

	if prior[0].Meta.Name != "original" {
		t.Fatal("reconcile output aliases prior metadata")
	}
}
