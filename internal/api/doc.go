// Package api exposes the pipeline controller over HTTP using gin.
//
// Every route lives under /api. Stage starts answer 202 with the process
// identifier of the run they launched; the run itself continues in the
// background and is observed by polling the project. Request errors map onto
// status codes by sentinel: validation and precondition failures are 400,
// unknown projects and segments are 404, everything else is 500.
//
// DTOs use camelCase JSON tags and reuse the store records directly, so the
// wire format of a project or segment is the same one written to its JSON
// snapshot on disk.
package api
