package core

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Kind identifies which import produced a log.
type Kind string

const (
	KindItems   Kind = "items"
	KindBOMTree Kind = "bom_tree"
)

// Outcome is the fate of one file row.
type Outcome string

const (
	OutcomeCreated   Outcome = "created"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeSkipped   Outcome = "skipped"
	OutcomeFailed    Outcome = "failed"
)

// Row outcome reasons as they appear in the import log.
const (
	ReasonMissingCode  = "missing item code"
	ReasonMissingGroup = "missing part type / item group"
	ReasonGroupFailed  = "could not create item group"
	ReasonExists       = "already exists"
	ReasonSeeErrorLog  = "see error log"
	ReasonNoParent     = "no parent found"
	ReasonItemNotFound = "item not found"
)

// RowResult records what happened to one row. Err holds the underlying
// failure for OutcomeFailed rows; it goes to the server log, never the import log.
type RowResult struct {
	Row      int     `json:"row" csv:"row"`
	ItemCode string  `json:"item_code,omitempty" csv:"item_code"`
	Outcome  Outcome `json:"outcome" csv:"outcome"`
	Reason   string  `json:"reason,omitempty" csv:"reason"`
	Err      error   `json:"-" csv:"-"`
}

// Line renders the result the way the import log shows it, e.g.
// "Row 4: skipped BRK-7 (no parent found)."
func (r RowResult) Line() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Row %d: %s", r.Row, r.Outcome)
	if r.ItemCode != "" {
		b.WriteString(" ")
		b.WriteString(r.ItemCode)
	}
	if r.Reason != "" {
		fmt.Fprintf(&b, " (%s)", r.Reason)
	}
	b.WriteString(".")
	return b.String()
}

// ImportLog accumulates row results and the counters derived from them.
type ImportLog struct {
	Kind       Kind        `json:"kind"`
	TreeName   string      `json:"bom_tree,omitempty"`
	Results    []RowResult `json:"results"`
	Created    int         `json:"created"`
	Duplicates int         `json:"duplicates"`
	Skipped    int         `json:"skipped"`
	Errors     int         `json:"errors"`
}

// NewImportLog returns an empty log for kind.
func NewImportLog(kind Kind) *ImportLog {
	return &ImportLog{Kind: kind}
}

// Record appends r and bumps the matching counter.
func (l *ImportLog) Record(r RowResult) {
	l.Results = append(l.Results, r)
	switch r.Outcome {
	case OutcomeCreated:
		l.Created++
	case OutcomeDuplicate:
		l.Duplicates++
	case OutcomeSkipped:
		l.Skipped++
	case OutcomeFailed:
		l.Errors++
	}
}

// Summary is the one-line counters header.
func (l *ImportLog) Summary() string {
	if l.Kind == KindBOMTree {
		return fmt.Sprintf("Created BOM tree %s. Items: %d, Skipped: %d, Errors: %d.",
			l.TreeName, l.Created, l.Skipped, l.Errors)
	}
	return fmt.Sprintf("Created: %d, Duplicates: %d, Skipped: %d, Errors: %d.",
		l.Created, l.Duplicates, l.Skipped, l.Errors)
}

// Lines returns one line per affected row. BOM tree logs only list rows that
// did not make it into the tree.
func (l *ImportLog) Lines() []string {
	lines := make([]string, 0, len(l.Results))
	for _, r := range l.Results {
		if l.Kind == KindBOMTree && r.Outcome == OutcomeCreated {
			continue
		}
		lines = append(lines, r.Line())
	}
	return lines
}

// String renders the persisted form: summary first, then the row lines.
func (l *ImportLog) String() string {
	return strings.Join(append([]string{l.Summary()}, l.Lines()...), "\n")
}

// logLine matches a rendered RowResult. An item code never starts with "(",
// so a reason-only line does not parse as a code.
var logLine = regexp.MustCompile(`^Row (\d+): (created|duplicate|skipped|failed)(?: ([^(].*?))?(?: \(([^()]*)\))?\.$`)

// ParseLog reads a persisted log back into its summary line and row results.
// Lines that are not row lines are ignored.
func ParseLog(text string) (summary string, results []RowResult) {
	lines := strings.Split(strings.TrimSpace(text), "\n")
	if len(lines) == 0 {
		return "", nil
	}
	summary = strings.TrimSpace(lines[0])

	for _, line := range lines[1:] {
		m := logLine.FindStringSubmatch(strings.TrimSpace(line))
		if m == nil {
			continue
		}
		row, _ := strconv.Atoi(m[1])
		results = append(results, RowResult{
			Row:      row,
			Outcome:  Outcome(m[2]),
			ItemCode: m[3],
			Reason:   m[4],
		})
	}
	return summary, results
}

// skipped, failed and created build RowResults for the common cases.
func skipped(row int, code, reason string) RowResult {
	return RowResult{Row: row, ItemCode: code, Outcome: OutcomeSkipped, Reason: reason}
}

func failed(row int, code, reason string, err error) RowResult {
	return RowResult{Row: row, ItemCode: code, Outcome: OutcomeFailed, Reason: reason, Err: err}
}

func created(row int, code string) RowResult {
	return RowResult{Row: row, ItemCode: code, Outcome: OutcomeCreated}
}
