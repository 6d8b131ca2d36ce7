package core

import (
	"errors"
	"strings"
	"testing"
)

func TestRowResultLine(t *testing.T) {
	tests := []struct {
		r    RowResult
		want string
	}{
		{RowResult{Row: 4, ItemCode: "BRK-7", Outcome: OutcomeSkipped, Reason: ReasonNoParent}, "Row 4: skipped BRK-7 (no parent found)."},
		{RowResult{Row: 3, Outcome: OutcomeSkipped, Reason: ReasonMissingCode}, "Row 3: skipped (missing item code)."},
		{RowResult{Row: 2, ItemCode: "A", Outcome: OutcomeCreated}, "Row 2: created A."},
		{RowResult{Row: 9, ItemCode: "B", Outcome: OutcomeFailed, Reason: ReasonSeeErrorLog, Err: errors.New("boom")}, "Row 9: failed B (see error log)."},
	}

	for _, tt := range tests {
		if got := tt.r.Line(); got != tt.want {
			t.Errorf("Line() = %q, want %q", got, tt.want)
		}
	}
}

func TestImportLogCounters(t *testing.T) {
	l := NewImportLog(KindItems)
	l.Record(created(2, "A"))
	l.Record(created(3, "B"))
	l.Record(RowResult{Row: 4, ItemCode: "C", Outcome: OutcomeDuplicate, Reason: ReasonExists})
	l.Record(skipped(5, "", ReasonMissingCode))
	l.Record(failed(6, "D", ReasonSeeErrorLog, errors.New("disk quota exceeded")))

	if got, want := l.Summary(), "Created: 2, Duplicates: 1, Skipped: 1, Errors: 1."; got != want {
		t.Errorf("Summary() = %q, want %q", got, want)
	}
	if got := len(l.Lines()); got != 5 {
		t.Errorf("len(Lines()) = %d, want 5", got)
	}
	if got := l.String(); !strings.HasPrefix(got, l.Summary()+"\nRow 2: created A.") {
		t.Errorf("String() = %q", got)
	}
	if strings.Contains(l.String(), "disk quota") {
		t.Error("technical error leaked into the import log")
	}
}

func TestImportLogTree(t *testing.T) {
	l := NewImportLog(KindBOMTree)
	l.TreeName = "ASM-1-REV1"
	l.Record(created(3, "A"))
	l.Record(skipped(4, "B", ReasonItemNotFound))
	l.Record(skipped(5, "C", ReasonNoParent))

	want := "Created BOM tree ASM-1-REV1. Items: 1, Skipped: 2, Errors: 0.\n" +
		"Row 4: skipped B (item not found).\n" +
		"Row 5: skipped C (no parent found)."
	if got := l.String(); got != want {
		t.Errorf("String() =\n%s\nwant\n%s", got, want)
	}
}

func TestImportLogEmpty(t *testing.T) {
	l := NewImportLog(KindItems)
	if got, want := l.String(), "Created: 0, Duplicates: 0, Skipped: 0, Errors: 0."; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestParseLog(t *testing.T) {
	l := NewImportLog(KindItems)
	l.Record(created(2, "A-1"))
	l.Record(skipped(3, "", ReasonMissingCode))
	l.Record(skipped(4, "B 2", ReasonMissingGroup))
	l.Record(RowResult{Row: 5, ItemCode: "C", Outcome: OutcomeDuplicate, Reason: ReasonExists})
	l.Record(failed(6, "D", ReasonSeeErrorLog, errors.New("boom")))

	summary, results := ParseLog(l.String())
	if summary != l.Summary() {
		t.Errorf("summary = %q, want %q", summary, l.Summary())
	}
	if len(results) != len(l.Results) {
		t.Fatalf("len(results) = %d, want %d", len(results), len(l.Results))
	}
	for i, want := range l.Results {
		want.Err = nil
		if results[i] != want {
			t.Errorf("results[%d] = %+v, want %+v", i, results[i], want)
		}
	}
}

func TestParseLogIgnoresOtherLines(t *testing.T) {
	summary, results := ParseLog("Created: 0, Duplicates: 0, Skipped: 0, Errors: 0.\nnot a row line\n")
	if summary != "Created: 0, Duplicates: 0, Skipped: 0, Errors: 0." {
		t.Errorf("summary = %q", summary)
	}
	if len(results) != 0 {
		t.Errorf("results = %v, want none", results)
	}
}
