// Package core holds the import pipeline: row validation, entity
// resolution, the run orchestrator and the background dispatcher.
//
// # Pipeline
//
// A [Job] names one uploaded spreadsheet. The [Dispatcher] turns it into an
// [ImportRun], takes a worker slot from the [RunLimiter] and drives up to
// MaxAttempts attempts of [Importer.Run], each under its own timeout.
//
// One attempt reads every record with the tabular package, then runs the
// row loop inside a single transaction:
//
//  1. [RowValidator.Parse] checks and normalizes the record
//  2. [Resolver.Resolve] finds or creates Program, Lecturer, User, Student,
//     Evaluation and CoSupervisor in that order
//  3. The counter delta is added to the run and progress is published
//
// A row that fails validation or resolution becomes a [RowError] and the
// loop moves on; see [IsRowError]. Any other error rolls back the
// transaction and the run ends failed.
//
// # Natural keys
//
// Programs are keyed by code, lecturers and users by staff number, students
// by matric number, evaluations by (student, semester, academic year) and
// co-supervisors by (student, lecturer) or (student, external name).
// Resolving the same row twice changes nothing the second time.
//
// # Error Handling
//
// Technical errors are mapped to user-facing messages with [MapError]:
//
//   - FILE001-FILE005: input file errors
//   - DB001-DB007: database errors
//   - RUN001-RUN004: run scheduling errors
//
// The code is stored on the failed run as LastError and returned by the API.
package core
