// Package main hosts the beacon CLI entrypoint and command graph.
//
// The Cobra-based command tree translates terminal invocations into HTTP
// calls against the discovery daemon, bootstrapping it on demand through the
// rendezvous record. It centralizes configuration resolution and daemon
// discovery so subcommands can focus on user experience instead of wiring.
//
// Keep this package lean: add new functionality by extending the internal
// packages first, then surface it through dedicated commands or flags here.
package main
