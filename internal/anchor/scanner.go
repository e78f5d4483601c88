package anchor

import (
	"regexp"
	"sort"
	"strings"
)

// Scan finds every anchor marker in the document text, in document order.
//
// The line pattern is applied freshly to each line, one match per line (an
// anchor is a line of text, not a delimited span). The block pattern, when
// present, runs once across the whole text and its matches are folded in.
// Two de-duplication rules apply within a single pass:
//
//   - a marker whose start position was already recorded is skipped, so a
//     language that triggers both patterns on the same text cannot register
//     the same marker twice;
//   - a block-pass marker whose task id was already found by the line pass
//     is skipped, so the two passes never both contribute one task.
//
// The same task id at two distinct positions is kept twice: identity-level
// de-duplication is the reconciler's job, because only the reconciler knows
// the prior store.
//
// Scan is a total function: any text and any patterns yield a (possibly
// empty) marker list, never an error.
func Scan(text string, pats Patterns) []RawMarker {
	if pats.Line == nil {
		return nil
	}

	lines, starts := splitLines(text)

	var (
		markers   []RawMarker
		seenStart = make(map[[2]int]struct{})
		seenTask  = make(map[string]struct{})
	)

	for lineNo, line := range lines {
		// One fresh application per line. Stateful global-match cursors
		// shared across lines are a known source of skipped matches.
		loc := pats.Line.FindStringSubmatchIndex(line)
		if loc == nil {
			continue
		}

		span := Span{
			StartLine: lineNo,
			StartCol:  loc[0],
			EndLine:   lineNo,
			EndCol:    loc[1],
		}

		key := [2]int{span.StartLine, span.StartCol}
		if _, dup := seenStart[key]; dup {
			continue
		}

		seenStart[key] = struct{}{}
		seenTask[line[loc[2]:loc[3]]] = struct{}{}

		markers = append(markers, RawMarker{
			TaskID: line[loc[2]:loc[3]],
			Span:   span,
		})
	}

	if pats.Block != nil {
		markers = appendBlockMarkers(markers, text, starts, pats.Block, seenStart, seenTask)

		sort.SliceStable(markers, func(i, j int) bool {
			return markers[i].Span.Before(markers[j].Span)
		})
	}

	return markers
}

// appendBlockMarkers runs the whole-document block pass and folds new
// markers into out, honoring both de-duplication sets.
func appendBlockMarkers(out []RawMarker, text string, starts []int, block *regexp.Regexp, seenStart map[[2]int]struct{}, seenTask map[string]struct{}) []RawMarker {
	for _, loc := range block.FindAllStringSubmatchIndex(text, -1) {
		taskID := text[loc[2]:loc[3]]

		if _, dup := seenTask[taskID]; dup {
			continue
		}

		startLine, startCol := position(starts, loc[0])
		endLine, endCol := position(starts, loc[1])

		key := [2]int{startLine, startCol}
		if _, dup := seenStart[key]; dup {
			continue
		}

		seenStart[key] = struct{}{}
		seenTask[taskID] = struct{}{}

		out = append(out, RawMarker{
			TaskID: taskID,
			Span: Span{
				StartLine: startLine,
				StartCol:  startCol,
				EndLine:   endLine,
				EndCol:    endCol,
			},
		})
	}

	return out
}

// splitLines splits text on newlines, stripping trailing carriage returns,
// and returns the byte offset of each line start for offset→position
// conversion. Columns are byte offsets within the line.
func splitLines(text string) ([]string, []int) {
	raw := strings.Split(text, "\n")
	lines := make([]string, len(raw))
	starts := make([]int, len(raw))

	offset := 0

	for i, line := range raw {
		starts[i] = offset
		offset += len(line) + 1 // +1 for the split newline

		lines[i] = strings.TrimSuffix(line, "\r")
	}

	return lines, starts
}

// position converts a byte offset in the document to (line, column).
func position(starts []int, offset int) (line, col int) {
	line = sort.Search(len(starts), func(i int) bool {
		return starts[i] > offset
	}) - 1

	return line, offset - starts[line]
}
