// Package assets provides the persistence layer for finished, publicly
// readable assets. Read URLs are kept as a JSON object keyed by variant.
package assets
