package refstore_test

import (
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"clickref/internal/anchor"
	"clickref/internal/refstore"
)

func span(startLine, startCol, endLine, endCol int) anchor.Span {
	return anchor.Span{StartLine: startLine, StartCol: startCol, EndLine: endLine, EndCol: endCol}
}

func ref(taskID string, line int) anchor.Reference {
	return anchor.Reference{TaskID: taskID, Span: span(line, 0, line, 20)}
}

const uri = "file:///src/main.go"

func Test_Store_Get_Returns_Copies_In_Document_Order(t *testing.T) {
	t.Parallel()

	s := refstore.New()
	s.SetActive(uri, []anchor.Reference{ref("b", 9), ref("a", 2)})

	got := s.Get(uri)

	if len(got) != 2 || got[0].TaskID != "a" || got[1].TaskID != "b" {
		t.Fatalf("refs = %+v, want document order a, b", got)
	}

	got[0].TaskID = "mutated"

	if s.Get(uri)[0].TaskID != "a" {
		t.Fatal("Get returned an aliased reference")
	}
}

func Test_Store_SetActive_Drops_Duplicate_TaskIDs_First_Wins(t *testing.T) {
	t.Parallel()

	s := refstore.New()
	s.SetActive(uri, []anchor.Reference{ref("dup", 1), ref("dup", 5), ref("other", 3)})

	got := s.Get(uri)

	if len(got) != 2 {
		t.Fatalf("refs = %+v, want 2", got)
	}

	if got[0].TaskID != "dup" || got[0].Span.StartLine != 1 {
		t.Fatalf("first ref = %+v, want dup at line 1", got[0])
	}
}

func Test_Store_SetActive_Drops_Duplicate_Positions(t *testing.T) {
	t.Parallel()

	s := refstore.New()
	s.SetActive(uri, []anchor.Reference{ref("x", 4), ref("y", 4)})

	if got := s.Get(uri); len(got) != 1 {
		t.Fatalf("refs = %+v, want 1", got)
	}
}

func Test_Store_SetActive_Empty_Removes_URI(t *testing.T) {
	t.Parallel()

	s := refstore.New()
	s.SetActive(uri, []anchor.Reference{ref("a", 1)})
	s.SetActive(uri, nil)

	if uris := s.URIs(); len(uris) != 0 {
		t.Fatalf("uris = %v, want none", uris)
	}
}

func Test_Store_UpsertByPosition_Creates_Then_Merges(t *testing.T) {
	t.Parallel()

	s := refstore.New()

	created, err := s.UpsertByPosition(uri, span(3, 0, 3, 0), refstore.Patch{OriginWorkspace: "/w"})
	if err != nil {
		t.Fatal(err)
	}

	if !created.Placeholder() || created.OriginWorkspace != "/w" {
		t.Fatalf("created = %+v, want placeholder with origin", created)
	}

	updated, err := s.UpsertByPosition(uri, span(3, 0, 3, 18), refstore.Patch{
		TaskID: "T1",
		Meta:   &anchor.Metadata{Status: "open"},
	})
	if err != nil {
		t.Fatal(err)
	}

	if updated.TaskID != "T1" || updated.Meta == nil || updated.Meta.Status != "open" {
		t.Fatalf("updated = %+v, want task and status merged", updated)
	}

	if updated.OriginWorkspace != "/w" {
		t.Fatal("upsert dropped the existing origin workspace")
	}

	if got := s.Get(uri); len(got) != 1 {
		t.Fatalf("refs = %+v, want single merged record", got)
	}
}

func Test_Store_UpsertByPosition_Rejects_Invalid_Span(t *testing.T) {
	t.Parallel()

	s := refstore.New()

	_, err := s.UpsertByPosition(uri, span(5, 10, 5, 2), refstore.Patch{TaskID: "T1"})
	if !errors.Is(err, refstore.ErrInvalidSpan) {
		t.Fatalf("err = %v, want ErrInvalidSpan", err)
	}

	if len(s.Get(uri)) != 0 {
		t.Fatal("rejected upsert still mutated the store")
	}
}

func Test_Store_UpsertByPosition_Rejects_TaskID_Held_Elsewhere(t *testing.T) {
	t.Parallel()

	s := refstore.New()
	s.SetActive(uri, []anchor.Reference{ref("T1", 1)})

	_, err := s.UpsertByPosition(uri, span(8, 0, 8, 0), refstore.Patch{TaskID: "T1"})
	if !errors.Is(err, refstore.ErrDuplicateTask) {
		t.Fatalf("err = %v, want ErrDuplicateTask", err)
	}
}

func Test_Store_RemoveByPosition_Removes_Only_Exact_Start(t *testing.T) {
	t.Parallel()

	s := refstore.New()
	s.SetActive(uri, []anchor.Reference{ref("a", 1), ref("b", 2)})

	removed, err := s.RemoveByPosition(uri, span(2, 0, 2, 0))
	if err != nil {
		t.Fatal(err)
	}

	if !removed {
		t.Fatal("expected a removal")
	}

	removed, err = s.RemoveByPosition(uri, span(9, 0, 9, 0))
	if err != nil {
		t.Fatal(err)
	}

	if removed {
		t.Fatal("removed a reference that does not exist")
	}

	if got := s.Get(uri); len(got) != 1 || got[0].TaskID != "a" {
		t.Fatalf("refs = %+v, want only a", got)
	}
}

func Test_Store_Encode_Decode_Round_Trips_All_Field_Shapes(t *testing.T) {
	t.Parallel()

	placeholder := anchor.Reference{Span: span(0, 4, 0, 4), OriginWorkspace: "/workspace"}

	enriched := anchor.Reference{
		Span:   span(12, 2, 12, 30),
		TaskID: "abc123",
		Meta: &anchor.Metadata{
			Name:        "Fix parser",
			Status:      "in review",
			StatusColor: "#ff0",
			Assignee:    "ren",
			ListID:      "L9",
			ListName:    "Sprint 14",
			FolderID:    "F2",
			FolderName:  "Backend",
			LastUpdated: time.Date(2026, 5, 2, 9, 30, 0, 0, time.UTC),
		},
	}

	withParent := anchor.Reference{
		Span:   span(40, 0, 40, 22),
		TaskID: "child1",
		Meta: &anchor.Metadata{
			Name:              "Subtask",
			ParentID:          "parent1",
			ParentName:        "Epic",
			ParentDescription: "The big one",
		},
	}

	s := refstore.New()
	s.SetActive("file:///a.go", []anchor.Reference{placeholder, enriched})
	s.SetActive("file:///b.py", []anchor.Reference{withParent})

	data, err := s.Encode()
	if err != nil {
		t.Fatal(err)
	}

	decoded, err := refstore.Decode(data)
	if err != nil {
		t.Fatal(err)
	}

	for _, u := range []string{"file:///a.go", "file:///b.py"} {
		if diff := cmp.Diff(s.Get(u), decoded.Get(u)); diff != "" {
			t.Fatalf("%s round trip mismatch (-orig +decoded):\n%s", u, diff)
		}
	}
}

func Test_Store_Decode_Rejects_Malformed_Blob(t *testing.T) {
	t.Parallel()

	for _, blob := range []string{"not json", `["wrong","shape"]`, `{"uri": {}}`} {
		_, err := refstore.Decode([]byte(blob))
		if err == nil {
			t.Fatalf("Decode(%q) = nil error, want failure", blob)
		}
	}
}

func Test_Store_Decode_Enforces_Invariants_On_Stale_Blob(t *testing.T) {
	t.Parallel()

	blob := `{"file:///a.go":[
		{"span":{"startLine":1,"startCol":0,"endLine":1,"endCol":5},"taskId":"dup"},
		{"span":{"startLine":7,"startCol":0,"endLine":7,"endCol":5},"taskId":"dup"}
	]}`

	decoded, err := refstore.Decode([]byte(blob))
	if err != nil {
		t.Fatal(err)
	}

	if got := decoded.Get("file:///a.go"); len(got) != 1 {
		t.Fatalf("refs = %+v, want duplicate task collapsed", got)
	}
}
