// Package main hosts the reelcast CLI entrypoint and command graph.
//
// The Cobra command tree runs the daemon in the foreground and translates
// project commands into HTTP calls against it. It centralizes configuration
// resolution and server discovery so subcommands can focus on output.
//
// Keep this package lean: add functionality in the internal packages first,
// then surface it through a command here.
package main
