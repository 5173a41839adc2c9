// Package store persists projects, per-process progress, and segments in
// SQLite.
//
// The store is the only place pipeline state lives. Writers never
// read-modify-write a whole record: progress is one row per (project, process)
// key written with an upsert, project updates name the columns they change, and
// segment updates address a single (project, segment) row guarded by the
// segment's active caption process. Stage finalization is guarded by the
// project's active process so a superseded run cannot clobber its replacement.
package store
