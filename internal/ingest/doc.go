// Package ingest implements the file ingestion pipeline: an uploaded
// spreadsheet is validated, parsed into raw rows, profiled into a column
// schema, and assembled into a dataset descriptor. The package has no HTTP
// dependencies and can be driven by any frontend.
//
// # Architecture
//
// The pipeline is a fixed sequence of stages, each usable on its own:
//
//   - Validation: [Validator] checks the declared filename and size before
//     any bytes are read.
//   - Parsing: a [Parser] registered per file extension converts bytes into
//     headers plus raw rows. CSV and Excel parsers ship registered;
//     [RegisterParser] adds more.
//   - Inference: [Profiler] classifies every column by inspecting the
//     original string form of its values.
//   - Assembly: [Assemble] freezes the outcome into a dataset descriptor.
//
// [Pipeline.Run] chains the stages synchronously; [Service] hosts runs as
// tracked background jobs.
//
// # Type Inference
//
// Column types are decided over the non-null values only, in a fixed rule
// order: boolean, then integer or float, then date or datetime when at
// least 80% of the values parse, then category when fewer than 20 distinct
// values fill less than half the column, otherwise string. A column with
// no usable values stays string. Classification always works on the value
// as it appeared in the file, so an Excel cell already typed as a number
// and a CSV cell spelling the same number classify identically.
//
// # Asynchronous Ingestion
//
// [Service.Start] returns an ingest ID immediately. The flow is:
//
//  1. The upload is checked with [Pipeline.Validate]; failures return
//     synchronously and no job is created.
//  2. A limiter slot is acquired; saturation fails with [ErrTooManyIngests].
//  3. The pipeline runs on its own goroutine under a timeout. Progress is
//     observable through [Service.SubscribeProgress] (push) and
//     [Service.Progress] (snapshot).
//  4. On success the dataset slot is replaced atomically and a
//     dataset.created event is published. Failures never touch the slot.
//
// Finished jobs stay queryable for a retention window, then evaporate.
package ingest
