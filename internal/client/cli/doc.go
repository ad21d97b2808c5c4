// Package cli provides the interactive assetsync command-line client.
//
// It wires configuration, the local store, the upload pipeline and an
// interactive REPL. Uploads run in the background while the prompt stays
// usable; their events are printed as they arrive.
//
// Key features:
//   - add / queue files for parallel or one-at-a-time upload
//   - list stored requests and finished assets
//   - show per-request progress
//   - refresh an asset from the backend
//   - watch a directory and queue files dropped into it
//
// The REPL is started via App.Run(ctx), which blocks until the user exits.
// See App, StartOnlineStatusWatcher, and runREPL for details.
package cli
