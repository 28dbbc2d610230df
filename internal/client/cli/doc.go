// Package cli provides the interactive vaultsync command-line client.
//
// It wires configuration, the local replica database, the server
// connection and a background SyncScheduler around client.App, then runs
// a read-eval-print loop over it. Item and sharing commands act on the
// selected vault (see "use"); the personal vault is selected after login.
//
// The REPL is started via App.Run, which blocks until the user exits.
// See runREPL for the command set.
package cli
