/*
Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package atomic

import (
	"context"
	"sync"
	"time"
)

// CachedVal memoizes a remotely resolved value with an expiry. Provider
// adapters use it for credit balances so that scoring does not hammer the
// vendor account endpoint.
type CachedVal[T any] struct {
	mu        sync.RWMutex
	value     *T
	fetchedAt time.Time

	// TTL bounds how long a resolved value is served before Resolve runs
	// again. Zero means cache forever until Invalidate.
	TTL time.Duration
	// Resolve fetches the value on miss or expiry.
	Resolve func(context.Context) (T, error)
}

// Set stores v, resetting the expiry window.
func (c *CachedVal[T]) Set(v T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.value = &v
	c.fetchedAt = time.Now()
}

// Invalidate drops the cached value so the next Get resolves fresh.
func (c *CachedVal[T]) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.value = nil
}

// Get returns the cached value, resolving it when missing or expired. On a
// resolve failure a previously cached (possibly stale) value is returned
// alongside the error so callers can degrade gracefully.
func (c *CachedVal[T]) Get(ctx context.Context) (T, error) {
	c.mu.RLock()
	if v := c.value; v != nil && !c.expiredLocked() {
		ret := *v
		c.mu.RUnlock()
		return ret, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	// another caller may have resolved while we waited for the write lock
	if v := c.value; v != nil && !c.expiredLocked() {
		return *v, nil
	}
	if c.Resolve == nil {
		return *new(T), nil
	}
	ret, err := c.Resolve(ctx)
	if err != nil {
		if c.value != nil {
			return *c.value, err
		}
		return *new(T), err
	}
	v := ret
	c.value = &v
	c.fetchedAt = time.Now()
	return ret, nil
}

func (c *CachedVal[T]) expiredLocked() bool {
	return c.TTL > 0 && time.Since(c.fetchedAt) > c.TTL
}
