package database

import (
	"github.com/bradfitz/gomemcache/memcache"
)

// NewMemcached returns a client for the memcached backend. Record
// expirations are set per item by the repository layer, so the client
// itself carries no default TTL.
func NewMemcached(addr string) *memcache.Client {
	return memcache.New(addr)
}
