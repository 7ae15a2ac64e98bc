package delivery

import (
	"context"
	"time"

	"ridehail-identity/internal/devotp"
	"ridehail-identity/internal/otp/domain"
)

// DevDeliverer records codes in a devotp.Store instead of calling a gateway.
type DevDeliverer struct {
	store devotp.Store
	ttl   time.Duration
	now   func() time.Time
}

// NewDevDeliverer returns a deliverer that keeps each code readable for ttl.
func NewDevDeliverer(store devotp.Store, ttl time.Duration) *DevDeliverer {
	return &DevDeliverer{store: store, ttl: ttl, now: func() time.Time { return time.Now().UTC() }}
}

func (d *DevDeliverer) Deliver(ctx context.Context, target, code string) error {
	d.store.Put(ctx, target, code, d.now().Add(d.ttl))
	return nil
}

// DevRegistry routes every channel to the same dev deliverer.
func DevRegistry(d *DevDeliverer) Registry {
	return Registry{
		domain.ChannelSMS:  d,
		domain.ChannelCall: d,
		domain.ChannelPush: d,
	}
}
