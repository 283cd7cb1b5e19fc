// Package delivery sends issued one-time codes to the payer out of band. The channel itself is
// external; this package only hands the code to it.
package delivery

import (
	"context"
	"errors"
	"log"
	"time"

	"payshield/backend/internal/devotp"
)

// Message is one code to deliver.
type Message struct {
	MerchantID string
	OrderID    string
	Code       string
	ExpiresAt  time.Time
}

// Deliverer hands a code to an out-of-band channel. Implementations must not log the code.
type Deliverer interface {
	Deliver(ctx context.Context, msg Message) error
}

// LogDeliverer records that a code was issued without revealing it. Used when no channel is configured.
type LogDeliverer struct{}

// Deliver logs the order and expiry only.
func (LogDeliverer) Deliver(ctx context.Context, msg Message) error {
	log.Printf("delivery: code issued for order %s (expires %s); no delivery channel configured",
		msg.OrderID, msg.ExpiresAt.Format(time.RFC3339))
	return nil
}

// DevStoreDeliverer keeps the plain code in the dev OTP store so it can be fetched from /dev/otp.
// Only wired when dev OTP mode is enabled and APP_ENV is not production.
type DevStoreDeliverer struct {
	Store devotp.Store
}

// Deliver stores the code until it expires.
func (d DevStoreDeliverer) Deliver(ctx context.Context, msg Message) error {
	d.Store.Put(ctx, msg.OrderID, msg.Code, msg.ExpiresAt)
	log.Printf("delivery: DEV MODE code for order %s available at /dev/otp/%s", msg.OrderID, msg.OrderID)
	return nil
}

// Multi delivers to every channel in order. It fails if any channel fails, after trying all of them.
type Multi []Deliverer

// Deliver implements Deliverer.
func (m Multi) Deliver(ctx context.Context, msg Message) error {
	var errs []error
	for _, d := range m {
		if err := d.Deliver(ctx, msg); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
