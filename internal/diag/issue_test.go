package diag

import (
	"bytes"
	"errors"
	"fmt"
	"testing"
)

func TestReport_OrderAndLevels(t *testing.T) {
	var r Report
	r.Warn(2, "first warning")
	r.Fail(ValidationError, 3, "bad %s", "price")
	r.Either(false, ValidationError, 4, "lenient conflict")
	r.Either(true, ValidationError, 5, "strict conflict")

	if got := len(r.Issues()); got != 4 {
		t.Fatalf("len(Issues) = %d, want 4", got)
	}
	warnings := r.Warnings()
	if len(warnings) != 2 || warnings[0].Row != 2 || warnings[1].Row != 4 {
		t.Errorf("Warnings = %+v, want rows 2 and 4", warnings)
	}
	errs := r.Errors()
	if len(errs) != 2 || errs[0].Row != 3 || errs[1].Row != 5 {
		t.Errorf("Errors = %+v, want rows 3 and 5", errs)
	}
	if !r.HasErrors() {
		t.Error("HasErrors = false, want true")
	}
}

func TestReport_ErrMatchesKind(t *testing.T) {
	var r Report
	if r.Err() != nil {
		t.Fatal("empty report should have nil Err")
	}
	r.Fail(MergeConflictError, 7, "Duplicate product slug %q", "a")
	err := r.Err()
	if !errors.Is(err, MergeConflictError) {
		t.Errorf("errors.Is(err, MergeConflictError) = false")
	}
	if errors.Is(err, RemoteError) {
		t.Errorf("errors.Is(err, RemoteError) = true")
	}
}

func TestReport_AddErrorKeepsClassification(t *testing.T) {
	var r Report
	r.AddError(New(ResolutionError, "file not found").AtRow(9).WithSource("a.jpg"))
	r.AddError(fmt.Errorf("plain failure"))

	errs := r.Errors()
	if len(errs) != 2 {
		t.Fatalf("len(Errors) = %d, want 2", len(errs))
	}
	if errs[0].Kind != ResolutionError || errs[0].Row != 9 {
		t.Errorf("first issue = %+v, want resolution error at row 9", errs[0])
	}
	if errs[0].Message != "file not found (a.jpg)" {
		t.Errorf("first message = %q", errs[0].Message)
	}
	if errs[1].Kind != IOError {
		t.Errorf("unclassified error kind = %q, want %q", errs[1].Kind, IOError)
	}
}

func TestReport_Write(t *testing.T) {
	var r Report
	r.Fail(ValidationError, 3, "bad")
	r.Warn(2, "meh")

	var buf bytes.Buffer
	r.Write(&buf, "Products: 1 | Errors: 1")

	want := "warning: row 2: meh\nerror: row 3: bad\nProducts: 1 | Errors: 1\n"
	if buf.String() != want {
		t.Errorf("Write() = %q, want %q", buf.String(), want)
	}
}

func TestError_IsKind(t *testing.T) {
	err := Wrap(RemoteError, errors.New("503"), "upload failed")
	if !errors.Is(err, RemoteError) {
		t.Error("errors.Is(RemoteError) = false")
	}
	if KindOf(fmt.Errorf("outer: %w", err)) != RemoteError {
		t.Error("KindOf did not find wrapped kind")
	}
	if Wrap(IOError, nil, "x") != nil {
		t.Error("Wrap(nil) should be nil")
	}
	if got := New(ValidationError, "oops").AtRow(4).Error(); got != "row 4: oops" {
		t.Errorf("Error() = %q", got)
	}
}
