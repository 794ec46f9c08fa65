// Package cache provides a generic keyed cache used to memoize GPU resource
// creation: pipelines, layouts, bind group layouts, and shader modules keyed
// by their descriptors.
//
//	c := cache.New[key, *Pipeline](256)
//	pipeline := c.GetOrCreate(key, func() *Pipeline { return build(key) })
//
// Cache uses a soft limit with 25% eviction (oldest-accessed first) when
// capacity is exceeded. It is safe for concurrent use and must not be
// copied after creation.
package cache
