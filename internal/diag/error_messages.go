package diag

// error_messages.go maps technical failures to stable support codes.
//
// Codes are grouped by the stage that raises them:
//
//	VAL001-VAL099   row validation (missing field, bad number, bad enum, ...)
//	RES001-RES099   file resolution and image checks
//	CACHE001-099    upload cache consistency
//	MRG001-MRG099   catalog merge conflicts
//	REM001-REM099   remote image host and bucket access
//	IO001-IO099     local file reads and writes
//	ERR000          fallback when nothing matches
//
// Patterns are matched case-insensitively with strings.Contains and the first
// match wins, so specific patterns come before general ones.

import (
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

type errorPattern struct {
	pattern string
	msg     UserMessage
}

var errorPatterns = []errorPattern{
	// Validation
	{"missing required field", UserMessage{"A required field is empty", "Fill in the column named in the message or run without --strict", "VAL001"}},
	{"invalid number", UserMessage{"A numeric field could not be parsed", "Use plain decimal numbers such as 180 or 1,250.00", "VAL002"}},
	{"invalid date", UserMessage{"A date field could not be parsed", "Use YYYY-MM-DD or an RFC 3339 timestamp", "VAL003"}},
	{"invalid enum", UserMessage{"A taxonomy value is not in the allowed list", "Check the allowed values printed with the error", "VAL004"}},
	{"conflicts with", UserMessage{"Handle and label columns disagree", "Make brand/collection handle and label refer to the same record", "VAL005"}},
	{"invalid boolean", UserMessage{"A yes/no field could not be parsed", "Use true/false, yes/no or 1/0", "VAL006"}},
	{"duplicate image row", UserMessage{"The same image is listed twice for a product", "Remove the repeated row from the images sheet", "VAL007"}},

	// Resolution
	{"image is too small", UserMessage{"An image is below the minimum resolution", "Export the image at a larger size or lower --min-image-edge", "RES002"}},
	{"unreadable image", UserMessage{"An image is corrupt or in an unsupported format", "Re-export the file as JPEG, PNG or WebP", "RES003"}},
	{"no files matched", UserMessage{"A file pattern matched nothing", "Check the pattern and the base directory", "RES001"}},
	{"file not found", UserMessage{"A referenced file does not exist", "Check the path relative to the base directory", "RES001"}},
	{"empty file", UserMessage{"A referenced file is empty", "Replace the file or remove it from the sheet", "RES004"}},

	// Cache
	{"changed since last upload", UserMessage{"A source image changed after it was uploaded", "Re-run with --replace to upload the new version", "CACHE001"}},
	{"upload state", UserMessage{"The upload state file could not be used", "Fix or delete the state file to force a full re-upload", "CACHE002"}},

	// Merge
	{"slug mismatch", UserMessage{"A row's slug does not match the existing product", "Use the existing slug or omit the slug column", "MRG001"}},
	{"id mismatch", UserMessage{"A row's id does not match the existing product", "Use the existing id or omit the id column", "MRG002"}},
	{"already exists", UserMessage{"A new row collides with an existing product", "Provide the existing id/slug to update it instead", "MRG003"}},
	{"duplicate product slug", UserMessage{"Two rows produce the same product slug", "Give each product a distinct title or slug", "MRG004"}},
	{"duplicate update row", UserMessage{"Two rows update the same product", "Combine the rows into one", "MRG004"}},
	{"duplicate product id", UserMessage{"Two rows use the same product id", "Give each product a distinct id", "MRG005"}},
	{"requires id or slug", UserMessage{"Merge mode needs an id or slug on every row", "Add an id or slug column", "MRG006"}},
	{"unknown product slugs", UserMessage{"The media map names products that are not in the catalog", "Remove the extra slugs or add the products", "MRG007"}},

	// Remote
	{"credentials", UserMessage{"Image host credentials are missing", "Set XA_CLOUDFLARE_ACCOUNT_ID and XA_CLOUDFLARE_IMAGES_TOKEN", "REM001"}},
	{"upload failed", UserMessage{"The image host rejected an upload", "Check the token permissions and retry", "REM002"}},
	{"list objects", UserMessage{"The submission bucket could not be listed", "Check bucket name, endpoint and keys", "REM003"}},
	{"get object", UserMessage{"A submission could not be downloaded", "Retry; the object is not marked processed", "REM004"}},
	{"context deadline exceeded", UserMessage{"A remote call timed out", "Retry or raise the timeout", "REM005"}},
	{"context canceled", UserMessage{"The operation was cancelled", "Start it again when ready", "REM006"}},
	{"sync already running", UserMessage{"A sync is already in progress", "Wait for it to finish", "REM007"}},
	{"sync is not configured", UserMessage{"No submission bucket is configured", "Set XA_BUCKET and the bucket keys", "REM008"}},

	// Local I/O
	{"read catalog", UserMessage{"The catalog document could not be read", "Check the file is valid JSON", "IO001"}},
	{"write catalog", UserMessage{"The catalog document could not be written", "Check permissions on the output directory", "IO002"}},
	{"backup", UserMessage{"The previous catalog could not be backed up", "Check permissions on the backup directory", "IO003"}},
	{"invalid csv", UserMessage{"The sheet is not valid CSV", "Ensure the file is comma-separated with one header row", "IO004"}},
	{"zip", UserMessage{"The submission bundle could not be extracted", "Re-create the zip archive", "IO005"}},
}

var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Check the log output for details",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-facing message. It returns
// the zero UserMessage for a nil error and ERR000 when nothing matches.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}
	return MapMessage(err.Error())
}

// MapMessage is MapError for an already rendered message.
func MapMessage(s string) UserMessage {
	s = strings.ToLower(s)
	for _, ep := range errorPatterns {
		if strings.Contains(s, ep.pattern) {
			return ep.msg
		}
	}
	return defaultMessage
}

// FormatUserError renders "Message (Code: XXX). Action".
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err matches a known pattern.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

// Codes returns the distinct codes of the fatal issues in r, in order of
// first appearance.
func (r *Report) Codes() []string {
	seen := make(map[string]bool)
	var codes []string
	for _, i := range r.Errors() {
		c := MapMessage(i.Message).Code
		if !seen[c] {
			seen[c] = true
			codes = append(codes, c)
		}
	}
	return codes
}
