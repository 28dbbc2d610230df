// Package client is the device side of vaultsync.
//
// # Overview
//
// The package provides:
//  1. Transport, the request/response contract with the server, and two
//     implementations over the same gRPC method set: GRPCClient for a remote
//     server and NewDirectClient for a server in the same process.
//  2. App, the per-device session object. It owns one account and a working
//     set of vault replicas, mutates them locally, and converges them with
//     the server through SyncVault and Synchronize.
//  3. SyncScheduler, which runs Synchronize on a ticker.
//
// # Error Handling
//
// Server errors arrive as the sentinels of package common and can be
// matched with errors.Is. A locked App returns common.ErrLocked; an App with
// no account returns an error wrapping common.ErrorNotFound.
//
// Concurrency & Contexts
//
// App is safe for concurrent use. Local mutations never wait on the
// network. Syncs of one vault run one at a time, in call order. Every
// network call carries the transport's request timeout.
package client
