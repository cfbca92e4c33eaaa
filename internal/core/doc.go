// Package core sequences the catalog pipeline.
//
// The stages live in their own packages; this package wires them together
// for the command-line tool and the daemon. It has no transport concerns and
// reads no environment, so it can be driven from cobra commands, HTTP
// handlers or tests without modification.
//
// # Operations
//
//   - [Service.Validate]: parse a products sheet and report every issue.
//   - [Service.UploadImages]: upload the images sheet through the cache and
//     return the media map.
//   - [Service.Import]: merge a products sheet (and optional media map) into
//     the catalog.
//   - [Service.Run]: validate, upload and merge in one pass, then write the
//     media index next to the catalog.
//   - [Service.Sync]: poll the submission bucket and run every new
//     submission.
//
// # Failure model
//
// Row and file problems accumulate in a [diag.Report]; a stage returns the
// report together with report.Err() once its pass is complete, and the next
// stage does not start. Missing credentials and remote failures return
// immediately. Nothing is written unless every stage succeeded.
//
// # Run history
//
// When a database is configured every import, run and sync submission is
// recorded through [History]. History is optional; a nil History records
// nothing.
package core
