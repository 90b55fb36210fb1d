// cache.go — LRU-кэш бандлов по внешнему идентификатору (hash) с TTL.
// Обёртка над hashicorp/golang-lru/v2/expirable.
package service

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/SwartzMss/Rain/internal/domain/model"
)

// Prometheus-метрики кэша.
var (
	cacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rb_bundle_cache_hits_total",
		Help: "Общее количество попаданий в кэш бандлов.",
	})
	cacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rb_bundle_cache_misses_total",
		Help: "Общее количество промахов кэша бандлов.",
	})
)

// BundleCache — кэш бандлов в конечном статусе (READY, FAILED).
// Бандл в обработке не кэшируется: его статус ещё изменится.
type BundleCache struct {
	cache *expirable.LRU[string, *model.Bundle]
}

// NewBundleCache создаёт кэш на maxSize записей со временем жизни ttl.
func NewBundleCache(maxSize int, ttl time.Duration) *BundleCache {
	return &BundleCache{cache: expirable.NewLRU[string, *model.Bundle](maxSize, nil, ttl)}
}

// Get возвращает бандл по hash.
func (c *BundleCache) Get(hash string) (*model.Bundle, bool) {
	b, ok := c.cache.Get(hash)
	if ok {
		cacheHitsTotal.Inc()
		return b, true
	}
	cacheMissesTotal.Inc()
	return nil, false
}

// Set добавляет бандл, если его статус конечный.
func (c *BundleCache) Set(b *model.Bundle) {
	if b == nil || !b.Status.Terminal() {
		return
	}
	c.cache.Add(b.Hash, b)
}
