// Package verify orchestrates a verification run: automated checks driven
// by the detected capability profile, an AI judgment pass over the diff and
// acceptance criteria, and the defensive merge of both into a verdict.
package verify

import (
	"bytes"
	"fmt"
	"text/template"
	"unicode/utf8"

	"github.com/vouch-dev/vouch/internal/difftrunc"
	"github.com/vouch-dev/vouch/internal/types"
)

const (
	// DefaultRelatedFileCap bounds each related file embedded in a prompt.
	DefaultRelatedFileCap = 5000
)

// judgePromptTemplate is the structured prompt for criterion-level judgment.
// The response shape is demanded verbatim so parsing stays mechanical.
const judgePromptTemplate = `You are a rigorous software acceptance judge. Decide whether a code change
satisfies a feature's acceptance criteria, based only on the evidence below.

# FEATURE

**ID**: {{.Feature.ID}}
{{if .Feature.Module -}}
**Module**: {{.Feature.Module}}
{{end -}}
**Description**: {{.Feature.Description}}

## Acceptance Criteria
{{range $i, $c := .Feature.Acceptance}}{{add1 $i}}. {{$c}}
{{end}}
{{- if .ChangedFiles}}
# CHANGED FILES
{{range .ChangedFiles}}- {{.}}
{{end}}
{{- end}}
# DIFF
{{if .Diff}}{{.Diff}}{{else}}(no diff available){{end}}

{{- if .Checks}}

# AUTOMATED CHECK RESULTS
{{range .Checks}}
## {{.Kind}} ({{.Command}}) - {{if .Success}}PASSED{{else}}FAILED{{end}}
Duration: {{.Duration}}
{{- if .Output}}
Output:
{{truncate .Output 1500}}
{{- end}}
{{end}}
{{- end}}

{{- if .RelatedFiles}}

# RELATED FILES
{{range $path, $content := .RelatedFiles}}
## {{$path}}
` + "```" + `
{{$content}}
` + "```" + `
{{end}}
{{- end}}

{{- if .Autonomous}}

# EXPLORATION
You may explore the working tree to gather additional evidence: read files,
inspect tests, and run read-only commands. Do not modify anything.
{{- end}}

# YOUR RESPONSE

Respond with ONLY a JSON object in exactly this shape:
{
  "criteria": [
    {"index": <criterion number as listed above, starting at 1>,
     "satisfied": bool,
     "reasoning": "<why>",
     "evidence": ["<file or check reference>", ...],
     "confidence": 0.0-1.0}
  ],
  "verdict": "pass" | "fail" | "needs_review",
  "reasoning": "<overall assessment>",
  "suggestions": ["<improvement>", ...],
  "quality_notes": ["<code quality observation>", ...]
}

Verdict semantics:
- "pass": every criterion is satisfied and average confidence exceeds 0.8.
- "fail": at least one criterion is clearly unsatisfied.
- "needs_review": the evidence is insufficient to decide either way.

Include one entry per criterion. Failed automated checks are evidence, not
an automatic fail; weigh them against what the criteria actually require.`

// Builder constructs judgment prompts. The diff is passed through the
// truncator so arbitrarily large changes stay within the prompt budget.
type Builder struct {
	template       *template.Template
	diffBudget     int
	relatedFileCap int
}

// BuildInput carries everything a judgment prompt embeds.
type BuildInput struct {
	Feature      *types.Feature
	Diff         string
	ChangedFiles []string
	Checks       []types.AutomatedCheckResult
	RelatedFiles map[string]string
	Autonomous   bool
}

// NewBuilder creates a prompt builder. diffBudget <= 0 uses the default.
func NewBuilder(diffBudget int) (*Builder, error) {
	if diffBudget <= 0 {
		diffBudget = difftrunc.DefaultBudget
	}

	tmpl := template.New("judge").Funcs(template.FuncMap{
		"add1":     func(i int) int { return i + 1 },
		"truncate": truncateTail,
	})
	tmpl, err := tmpl.Parse(judgePromptTemplate)
	if err != nil {
		return nil, fmt.Errorf("failed to parse judge prompt template: %w", err)
	}

	return &Builder{
		template:       tmpl,
		diffBudget:     diffBudget,
		relatedFileCap: DefaultRelatedFileCap,
	}, nil
}

// Build renders the prompt. It returns the truncation outcome so the engine
// can record the diff summary.
func (b *Builder) Build(in BuildInput) (string, difftrunc.Result, error) {
	if in.Feature == nil {
		return "", difftrunc.Result{}, fmt.Errorf("feature is required")
	}
	if err := in.Feature.Validate(); err != nil {
		return "", difftrunc.Result{}, err
	}

	truncated := difftrunc.Truncate(in.Diff, b.diffBudget)

	related := in.RelatedFiles
	if len(related) > 0 {
		capped := make(map[string]string, len(related))
		for path, content := range related {
			if len(content) > b.relatedFileCap {
				content = content[:b.relatedFileCap] + "\n... (truncated)"
			}
			capped[path] = content
		}
		related = capped
	}

	data := struct {
		Feature      *types.Feature
		Diff         string
		ChangedFiles []string
		Checks       []types.AutomatedCheckResult
		RelatedFiles map[string]string
		Autonomous   bool
	}{
		Feature:      in.Feature,
		Diff:         truncated.Text,
		ChangedFiles: in.ChangedFiles,
		Checks:       in.Checks,
		RelatedFiles: related,
		Autonomous:   in.Autonomous,
	}

	var buf bytes.Buffer
	if err := b.template.Execute(&buf, data); err != nil {
		return "", truncated, fmt.Errorf("failed to execute judge prompt template: %w", err)
	}
	return buf.String(), truncated, nil
}

// truncateTail keeps the end of the output: for check output the failure
// summary is usually at the bottom. The cut advances to a rune start so a
// multi-byte character is never split.
func truncateTail(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	start := len(s) - maxLen
	for start < len(s) && !utf8.RuneStart(s[start]) {
		start++
	}
	return "..." + s[start:]
}
