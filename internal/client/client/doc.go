// Package client talks to the asset backend.
//
// # Overview
//
// The package provides:
//  1. A transport-agnostic API contract (see the Client interface): Ping and
//     RefreshAsset.
//  2. A concrete gRPC implementation (see GRPCClient) that manages a
//     connection, injects an access token via an interceptor and maps gRPC
//     status codes to sentinel errors.
//
// RefreshAsset carries the asset id and the returned asset document as
// google.protobuf.StringValue messages, so no generated stubs are needed.
//
// # Error Handling
//
// Common conditions are exposed as sentinel errors that callers can match with
// errors.Is: ErrUnavailable, ErrUnauthorized, ErrMalformedAsset.
//
// Concurrency & Contexts
//
// GRPCClient is safe for concurrent use. All operations accept
// context.Context and honor cancellation and timeouts.
package client
