// Package application provides application initialization and dependency wiring.
// It loads the layered configuration, builds the HTTP handler chain and server,
// and runs the server alongside an optional file watcher until the context is
// cancelled, keeping the main package focused on CLI parsing.
package application
