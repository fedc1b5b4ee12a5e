// Package core turns spreadsheet rows into QR code images.
//
// The package holds all domain logic independent of any UI or transport
// layer. The HTTP server and the sheetqr CLI both drive it through the same
// types.
//
// # Pipeline
//
// A batch moves through fixed stages, each with its own type:
//
//  1. [Loader] reads a .xlsx/.xlsm workbook or a CSV file into a [Workbook]
//     of [RowSet] sheets. Cells keep a tri-state [CellKind] so a blank cell
//     is never confused with a missing one.
//  2. [Classify] samples each column and lists the ones that look like URLs.
//  3. [Derive] builds one filename per row with a URL, replacing reserved
//     characters and resolving duplicates with a short content hash.
//  4. [Generator] renders the rows concurrently into PNG codes. Row failures
//     are recorded and never stop the batch.
//  5. [Packager] writes the codes into a deterministic zip archive.
//  6. [BatchReport] reconciles source rows against archive entries.
//
// [Pipeline.Run] chains these stages; [Service] adds sessions, a batch
// limiter and optional archive export on top.
//
// # Error Handling
//
// Technical errors are mapped to user-friendly messages using [MapError].
// Each error category has a unique code for support reference:
//
//   - FILE001-FILE005: File errors (size, format, parse, empty)
//   - SET001-SET003: Settings errors (filename, render, sheet)
//   - QR001-QR002, ZIP001: Generation and packaging errors
//   - BAT001-BAT006: Batch and session errors
//
// Row level problems are reported as [RowError] values inside results rather
// than returned.
package core
