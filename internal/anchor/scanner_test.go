package anchor_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"clickref/internal/anchor"
)

func span(startLine, startCol, endLine, endCol int) anchor.Span {
	return anchor.Span{StartLine: startLine, StartCol: startCol, EndLine: endLine, EndCol: endCol}
}

func Test_Scan_Finds_Single_Line_Marker(t *testing.T) {
	t.Parallel()

	text := "function a() {}\n// clickup:abc123\nfunction b() {}\n"
	pats := anchor.ResolvePatterns("javascript", "a.js")

	got := anchor.Scan(text, pats)

	want := []anchor.RawMarker{
		{TaskID: "abc123", Span: span(1, 0, 1, 17)},
	}

	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("markers mismatch (-want +got):\n%s", diff)
	}
}

func Test_Scan_Reports_Column_Of_Trailing_Comment(t *testing.T) {
	t.Parallel()

	text := "let x = 1; // clickup:t1\n"
	pats := anchor.ResolvePatterns("javascript", "a.js")

	got := anchor.Scan(text, pats)

	if len(got) != 1 {
		t.Fatalf("markers = %d, want 1", len(got))
	}

	if got[0].Span.StartCol != 11 {
		t.Fatalf("start col = %d, want 11", got[0].Span.StartCol)
	}
}

func Test_Scan_Returns_Markers_In_Document_Order(t *testing.T) {
	t.Parallel()

	text := "// clickup:first\ncode()\n// clickup:second\n// clickup:third\n"
	pats := anchor.ResolvePatterns("go", "a.go")

	got := anchor.Scan(text, pats)

	ids := make([]string, 0, len(got))
	for _, m := range got {
		ids = append(ids, m.TaskID)
	}

	if diff := cmp.Diff([]string{"first", "second", "third"}, ids); diff != "" {
		t.Fatalf("order mismatch (-want +got):\n%s", diff)
	}
}

func Test_Scan_Keeps_Duplicate_TaskID_At_Distinct_Positions(t *testing.T) {
	t.Parallel()

	// A pasted duplicate is the reconciler's problem, not the scanner's.
	text := "// clickup:dup\ncode()\n// clickup:dup\n"
	pats := anchor.ResolvePatterns("go", "a.go")

	got := anchor.Scan(text, pats)

	if len(got) != 2 {
		t.Fatalf("markers = %d, want 2", len(got))
	}

	if got[0].TaskID != "dup" || got[1].TaskID != "dup" {
		t.Fatalf("task ids = %q, %q, want dup twice", got[0].TaskID, got[1].TaskID)
	}

	if got[0].Span.StartEquals(got[1].Span) {
		t.Fatal("duplicate markers share a start position")
	}
}

func Test_Scan_Block_Pass_Skips_TaskID_Already_Found_By_Line_Pass(t *testing.T) {
	t.Parallel()

	// The same task via line and block comment: line pass wins, block pass
	// must not contribute a second raw marker for it.
	text := "// clickup:both\n/* clickup:both */\n/* clickup:blockonly */\n"
	pats := anchor.ResolvePatterns("c", "a.c")

	got := anchor.Scan(text, pats)

	if len(got) != 2 {
		t.Fatalf("markers = %d, want 2", len(got))
	}

	if got[0].TaskID != "both" || got[1].TaskID != "blockonly" {
		t.Fatalf("task ids = %q, %q", got[0].TaskID, got[1].TaskID)
	}
}

func Test_Scan_Block_Marker_Position_Is_Line_And_Column(t *testing.T) {
	t.Parallel()

	text := "int main() {\n    /* clickup:cblock */\n}\n"
	pats := anchor.ResolvePatterns("c", "a.c")

	got := anchor.Scan(text, pats)

	if len(got) != 1 {
		t.Fatalf("markers = %d, want 1", len(got))
	}

	want := span(1, 4, 1, 21)
	if got[0].Span != want {
		t.Fatalf("span = %+v, want %+v", got[0].Span, want)
	}
}

func Test_Scan_At_Most_One_Marker_Per_Start_Position(t *testing.T) {
	t.Parallel()

	// Adversarial: line and block pattern both fire at column 0 of the same
	// line with different ids. The position set must keep only the first.
	text := "/* clickup:one */ // clickup:two\n"
	pats := anchor.Patterns{
		Line:  anchor.ResolvePatterns("c", "a.c").Block,
		Block: anchor.ResolvePatterns("c", "a.c").Block,
	}

	got := anchor.Scan(text, pats)

	seen := make(map[[2]int]int)
	for _, m := range got {
		seen[[2]int{m.Span.StartLine, m.Span.StartCol}]++
	}

	for pos, n := range seen {
		if n > 1 {
			t.Fatalf("position %v has %d markers", pos, n)
		}
	}
}

func Test_Scan_Handles_CRLF_Line_Endings(t *testing.T) {
	t.Parallel()

	text := "code()\r\n// clickup:windows\r\n"
	pats := anchor.ResolvePatterns("go", "a.go")

	got := anchor.Scan(text, pats)

	if len(got) != 1 {
		t.Fatalf("markers = %d, want 1", len(got))
	}

	want := span(1, 0, 1, 18)
	if got[0].Span != want {
		t.Fatalf("span = %+v, want %+v", got[0].Span, want)
	}
}

func Test_Scan_Empty_Text_And_No_Markers_Yield_Nil(t *testing.T) {
	t.Parallel()

	pats := anchor.ResolvePatterns("go", "a.go")

	if got := anchor.Scan("", pats); got != nil {
		t.Fatalf("scan of empty text = %v, want nil", got)
	}

	if got := anchor.Scan("func main() {}\n", pats); got != nil {
		t.Fatalf("scan without markers = %v, want nil", got)
	}
}

func Test_Scan_Is_Deterministic_Across_Repeated_Calls(t *testing.T) {
	t.Parallel()

	text := "// clickup:a1\n/* clickup:b2 */\nx := 1 // clickup:c3\n"
	pats := anchor.ResolvePatterns("go", "a.go")

	first := anchor.Scan(text, pats)
	second := anchor.Scan(text, pats)

	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatalf("repeat scan differs (-first +second):\n%s", diff)
	}
}
