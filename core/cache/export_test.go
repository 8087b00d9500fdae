package cache

import "time"

func SetClock(c *Cache, now func() time.Time) { c.now = now }
