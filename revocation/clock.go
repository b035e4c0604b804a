// Package revocation implements the per-principal revocation clock
// (§4.3): the oldest token "iat" a principal will still accept, cached
// in an LRU and persisted through the storage driver at the reserved
// key "<principal>/.authTimestamp".
package revocation

import (
	"bytes"
	"context"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	jsoniter "github.com/json-iterator/go"

	"github.com/zaharov-labs/stackhub/apierr"
	"github.com/zaharov-labs/stackhub/driver"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// AuthTimestampKey is the reserved per-principal object name the clock
// persists its value under.
const AuthTimestampKey = ".authTimestamp"

type timestampDoc struct {
	Timestamp int64 `json:"timestamp"`
}

// Clock is the revocation clock. A single Clock is shared across all
// requests; it is safe for concurrent use.
type Clock struct {
	drv driver.Driver
	mu  sync.Mutex
	lru *lru.Cache[string, int64]
}

// New creates a revocation clock backed by drv, with an LRU cache of
// the given size.
func New(drv driver.Driver, cacheSize int) (*Clock, error) {
	c, err := lru.New[string, int64](cacheSize)
	if err != nil {
		return nil, err
	}
	return &Clock{drv: drv, lru: c}, nil
}

func key(principal string) string {
	return principal + "/" + AuthTimestampKey
}

// Get returns the oldest acceptable "iat" for principal: the cached
// value if present, else the value read from the driver (0 if the
// driver reports DoesNotExist). The result is cached either way.
func (c *Clock) Get(ctx context.Context, principal string) (int64, error) {
	c.mu.Lock()
	if v, ok := c.lru.Get(principal); ok {
		c.mu.Unlock()
		return v, nil
	}
	c.mu.Unlock()

	fi, err := c.drv.PerformRead(ctx, principal, AuthTimestampKey)
	if err != nil {
		return 0, apierr.NewDriverError("revocation.Get", err)
	}
	var ts int64
	if fi.Exists {
		defer fi.ReadStream.Close()
		var doc timestampDoc
		if err := json.NewDecoder(fi.ReadStream).Decode(&doc); err != nil {
			return 0, apierr.NewDriverError("revocation.Get.decode", err)
		}
		ts = doc.Timestamp
	}

	c.mu.Lock()
	c.lru.Add(principal, ts)
	c.mu.Unlock()
	return ts, nil
}

// Set bumps the revocation clock for principal to ts. Lower values are
// silently ignored (monotonicity, §4.3/§8).
func (c *Clock) Set(ctx context.Context, principal string, ts int64) error {
	current, err := c.Get(ctx, principal)
	if err != nil {
		return err
	}
	if ts < current {
		return nil
	}

	body, err := json.Marshal(timestampDoc{Timestamp: ts})
	if err != nil {
		return err
	}
	_, err = c.drv.PerformWrite(ctx, driver.WriteInput{
		StorageTopLevel: principal,
		Path:            AuthTimestampKey,
		Stream:          bytes.NewReader(body),
		ContentType:     "application/json",
		ContentLength:   int64(len(body)),
	})
	if err != nil {
		return apierr.NewDriverError("revocation.Set", err)
	}

	c.mu.Lock()
	c.lru.Add(principal, ts)
	c.mu.Unlock()
	return nil
}
