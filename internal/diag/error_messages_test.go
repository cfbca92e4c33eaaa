package diag

import (
	"errors"
	"fmt"
	"testing"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode string
	}{
		{"nil error returns empty", nil, ""},
		{"missing field", errors.New(`row 3: Missing required field "description"`), "VAL001"},
		{"enum", errors.New(`row 2: invalid enum value "kids" for department`), "VAL004"},
		{"too small", errors.New("image is too small (800x600)"), "RES002"},
		{"changed file", errors.New("file changed since last upload for jacket"), "CACHE001"},
		{"slug mismatch", errors.New(`Slug mismatch for id "X"`), "MRG001"},
		{"duplicate slug", errors.New(`Duplicate product slug "a"`), "MRG004"},
		{"credentials", New(RemoteError, "image host credentials are missing"), "REM001"},
		{"wrapped", fmt.Errorf("run: %w", New(IOError, "write catalog")), "IO002"},
		{"unknown", errors.New("something odd"), "ERR000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MapError(tt.err)
			if got.Code != tt.wantCode {
				t.Errorf("MapError().Code = %q, want %q", got.Code, tt.wantCode)
			}
		})
	}
}

func TestFormatUserError(t *testing.T) {
	if got := FormatUserError(nil); got != "" {
		t.Errorf("FormatUserError(nil) = %q, want empty", got)
	}
	got := FormatUserError(errors.New("Duplicate product id \"7\""))
	want := "Two rows use the same product id (Code: MRG005). Give each product a distinct id"
	if got != want {
		t.Errorf("FormatUserError() = %q, want %q", got, want)
	}
}

func TestIsUserFacing(t *testing.T) {
	if IsUserFacing(nil) {
		t.Error("IsUserFacing(nil) = true, want false")
	}
	if !IsUserFacing(errors.New("invalid number \"abc\"")) {
		t.Error("IsUserFacing(invalid number) = false, want true")
	}
	if IsUserFacing(errors.New("boom")) {
		t.Error("IsUserFacing(boom) = true, want false")
	}
}
