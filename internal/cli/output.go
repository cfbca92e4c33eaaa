package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/JonMunkholm/catalogsync/internal/diag"
)

// finish prints report and summary to w and converts the outcome into the
// command's return value. An error the report already describes becomes
// ErrReported; anything else (credentials, remote or local I/O) is returned
// for Execute to print.
func finish(w io.Writer, report *diag.Report, summary string, err error) error {
	if report == nil {
		report = &diag.Report{}
	}
	if codes := report.Codes(); len(codes) > 0 {
		summary += " | Codes: " + strings.Join(codes, ", ")
	}
	report.Write(w, summary)

	switch {
	case err == nil:
		return nil
	case report.HasErrors():
		return ErrReported
	default:
		return err
	}
}

func dryRunSuffix(dryRun bool) string {
	if dryRun {
		return " | Dry run: nothing written"
	}
	return ""
}

func countLine(label string, n int) string {
	return fmt.Sprintf("%s: %d", label, n)
}
