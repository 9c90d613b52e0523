package difftrunc

import (
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"
)

// buildDiff constructs a git-style unified diff for a single file with the
// given hunk body lines. Hunk counts are derived from the body so the diff
// parses cleanly.
func buildDiff(path string, body []string) string {
	orig, updated := 0, 0
	for _, line := range body {
		switch {
		case strings.HasPrefix(line, "+"):
			updated++
		case strings.HasPrefix(line, "-"):
			orig++
		default:
			orig++
			updated++
		}
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "diff --git a/%s b/%s\n", path, path)
	sb.WriteString("index 0000000..1111111 100644\n")
	fmt.Fprintf(&sb, "--- a/%s\n", path)
	fmt.Fprintf(&sb, "+++ b/%s\n", path)
	fmt.Fprintf(&sb, "@@ -1,%d +1,%d @@\n", orig, updated)
	for _, line := range body {
		sb.WriteString(line)
		sb.WriteByte('\n')
	}
	return sb.String()
}

func TestTruncate_UnderBudgetIsIdentity(t *testing.T) {
	d := buildDiff("main.go", []string{" ctx", "-old", "+new", " ctx2"})

	res := Truncate(d, len(d)+100)
	if res.WasTruncated {
		t.Error("expected WasTruncated=false for diff within budget")
	}
	if res.Text != d {
		t.Error("expected identity for diff within budget")
	}
	if res.OriginalSize != len(d) || res.TruncatedSize != len(d) {
		t.Errorf("expected sizes %d/%d, got %d/%d", len(d), len(d), res.OriginalSize, res.TruncatedSize)
	}
}

func TestTruncate_ExactBudgetIsIdentity(t *testing.T) {
	d := buildDiff("main.go", []string{"-a", "+b"})
	res := Truncate(d, len(d))
	if res.WasTruncated {
		t.Error("expected no truncation at exact budget")
	}
}

func TestTruncate_KeepsFileHeaders(t *testing.T) {
	var body []string
	for i := 0; i < 200; i++ {
		body = append(body, fmt.Sprintf(" context line %d with some padding to inflate size", i))
	}
	body = append(body, "-removed line", "+added line")

	d := buildDiff("internal/server/server.go", body) + buildDiff("internal/client/client.go", body)

	res := Truncate(d, 1500)
	if !res.WasTruncated {
		t.Fatal("expected truncation")
	}
	for _, hdr := range []string{
		"diff --git a/internal/server/server.go b/internal/server/server.go",
		"diff --git a/internal/client/client.go b/internal/client/client.go",
		"--- a/internal/server/server.go",
		"+++ b/internal/client/client.go",
	} {
		if !strings.Contains(res.Text, hdr) {
			t.Errorf("expected header %q to survive truncation", hdr)
		}
	}
	if !strings.Contains(res.Text, "@@") {
		t.Error("expected hunk headers to survive")
	}
}

func TestTruncate_ChangedLinesOverContext(t *testing.T) {
	var body []string
	for i := 0; i < 100; i++ {
		body = append(body, fmt.Sprintf(" context filler line number %d aaaaaaaaaaaaaaaaaaaaaaaa", i))
	}
	body = append(body, "-the removed line of interest", "+the added line of interest")

	d := buildDiff("pkg/core/core.go", body)

	res := Truncate(d, 900)
	if !res.WasTruncated {
		t.Fatal("expected truncation")
	}
	if !strings.Contains(res.Text, "+the added line of interest") {
		t.Error("expected added line to survive while context is dropped")
	}
	if !strings.Contains(res.Text, "-the removed line of interest") {
		t.Error("expected removed line to survive while context is dropped")
	}
	if !strings.Contains(res.Text, "lines omitted") {
		t.Error("expected omission marker for dropped context")
	}
}

// Within a hunk, a retained context line while a changed line was dropped
// would hide the change signal the judge needs.
func TestTruncate_NoContextRetainedWhenChangedDropped(t *testing.T) {
	var body []string
	for i := 0; i < 50; i++ {
		body = append(body, fmt.Sprintf("+added line %d with enough padding to blow the budget quickly", i))
	}
	for i := 0; i < 50; i++ {
		body = append(body, fmt.Sprintf(" context line %d with enough padding to blow the budget quickly", i))
	}

	d := buildDiff("big.go", body)

	res := Truncate(d, 600)
	if !res.WasTruncated {
		t.Fatal("expected truncation")
	}

	keptChanged, keptContext := 0, 0
	for _, line := range strings.Split(res.Text, "\n") {
		if strings.HasPrefix(line, "+added line") {
			keptChanged++
		}
		if strings.HasPrefix(line, " context line") {
			keptContext++
		}
	}
	if keptChanged < 50 && keptContext > 0 {
		t.Errorf("context retained (%d lines) while changed lines were dropped (%d/50 kept)",
			keptContext, keptChanged)
	}
}

func TestTruncate_UnparsableFallsBackToFlatSlice(t *testing.T) {
	d := strings.Repeat("this is not a diff at all\n", 100)

	res := Truncate(d, 200)
	if !res.WasTruncated {
		t.Fatal("expected truncation")
	}
	if !strings.HasPrefix(res.Text, d[:200]) {
		t.Error("expected flat slice of the first maxSize characters")
	}
	if !strings.Contains(res.Text, "[diff truncated") {
		t.Error("expected truncation marker")
	}
}

func TestTruncate_FlatSliceKeepsRunesWhole(t *testing.T) {
	// Unparsable multi-byte content with a budget that lands mid-rune.
	d := strings.Repeat("é", 200)

	res := Truncate(d, 101)
	if !res.WasTruncated {
		t.Fatal("expected truncation")
	}
	if !utf8.ValidString(res.Text) {
		t.Error("expected the cut to land on a rune boundary")
	}
	if !strings.Contains(res.Text, "[diff truncated") {
		t.Error("expected truncation marker")
	}
}

func TestTruncate_ReportsSizes(t *testing.T) {
	var body []string
	for i := 0; i < 300; i++ {
		body = append(body, fmt.Sprintf("+line %d padded out to take up space in the diff body", i))
	}
	d := buildDiff("x.go", body)

	res := Truncate(d, 1000)
	if !res.WasTruncated {
		t.Fatal("expected truncation")
	}
	if res.OriginalSize != len(d) {
		t.Errorf("expected original size %d, got %d", len(d), res.OriginalSize)
	}
	if res.TruncatedSize != len(res.Text) {
		t.Errorf("expected truncated size %d, got %d", len(res.Text), res.TruncatedSize)
	}
	if !strings.Contains(res.Text, fmt.Sprintf("of %d characters", len(d))) {
		t.Error("expected trailing size note")
	}
}

func TestTruncate_ZeroBudgetUsesDefault(t *testing.T) {
	d := buildDiff("y.go", []string{"-a", "+b"})
	res := Truncate(d, 0)
	if res.WasTruncated {
		t.Error("small diff should fit the default budget")
	}
}
