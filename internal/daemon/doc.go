// Package daemon coordinates the long-running reelcast process.
//
// It ties configuration, the SQLite store, the pipeline controller, and the
// HTTP API into a single lifecycle with flock-based locking so only one
// daemon serves a root directory. Startup reconciles records left in-progress
// by a previous process; shutdown stops accepting requests before canceling
// pipeline work and releasing the store.
//
// Keep orchestration logic here: stage work belongs to the pipeline package
// while the daemon focuses on startup, shutdown, and health reporting.
package daemon
