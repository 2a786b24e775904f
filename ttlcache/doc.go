/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

// Package ttlcache provides an in-memory cache with per-entry expiration,
// optional LRU size bound and Prometheus metrics.
package ttlcache
