// Package application wires storage, the packing runner, metrics, handlers
// and the HTTP server together so the main package only deals with CLI
// parsing and process lifecycle.
package application
