package webhook

import (
	"time"

	"github.com/patrickmn/go-cache"
)

// deliveryDeduper drops GitHub redeliveries of a webhook it already acted on.
type deliveryDeduper struct {
	seen *cache.Cache
}

func newDeliveryDeduper(ttl time.Duration) *deliveryDeduper {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &deliveryDeduper{seen: cache.New(ttl, ttl)}
}

// markIfNew returns true the first time id is seen within the TTL.
// Empty IDs are never deduplicated.
func (d *deliveryDeduper) markIfNew(id string) bool {
	if id == "" {
		return true
	}
	return d.seen.Add(id, struct{}{}, cache.DefaultExpiration) == nil
}

// forget allows a delivery to be retried, e.g. after the run was rejected.
func (d *deliveryDeduper) forget(id string) {
	if id != "" {
		d.seen.Delete(id)
	}
}
