// corevta - Taekwondo VTA scoring/broadcast event pipeline core.
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cache provides the short-TTL, size-bounded caches the event
// distributor's stream processor keeps for match/athlete/tournament
// aggregates (§4.G): a plain TTL map and a capacity-bounded LRU cache, both
// safe for concurrent use. The LRU cache evicts the least recently used
// entry: Get and every write move an entry to the front, so eviction does
// not follow creation order.
package cache

import "time"

// Cacher is implemented by both Cache and LRUCache, letting callers choose
// an unbounded TTL map or a capacity-bounded LRU without changing call
// sites.
type Cacher interface {
	Get(key string) (interface{}, bool)
	Set(key string, value interface{})
	SetWithTTL(key string, value interface{}, ttl time.Duration)
	Delete(key string)
	Clear()
	GetStats() Stats
	HitRate() float64
}

var _ Cacher = (*Cache)(nil)
