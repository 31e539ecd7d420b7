// SPDX-License-Identifier: MPL-2.0

// Package threadbare is a host-operations toolkit for driving interactive
// shell work against remote machines over SSH and against the local
// machine, including running the same work across many hosts concurrently.
//
// It is built around three cooperating pieces: a scoped, stack-like
// configuration context (Settings) that every operation reads its
// defaults from, a uniform command-shaping and execution layer (Local,
// Remote) for running shell or argv commands locally or over SSH, and a
// parallel runner (Execute) that dispatches a worker either serially or
// across a pool of isolated worker processes.
//
// File transfer helpers (upload/download, rsync/scp/sftp backends) are
// out of scope; this package only specifies the interfaces such helpers
// would consume.
package threadbare
