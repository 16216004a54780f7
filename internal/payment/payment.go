// Package payment wraps the payment collaborator behind a small interface
// so checkout logic can be exercised without network calls.
package payment

import "context"

// Intent statuses we act on. The collaborator reports more granular
// states; everything that is not succeeded blocks order recording.
const (
	StatusSucceeded      = "succeeded"
	StatusRequiresAction = "requires_action"
	StatusFailed         = "failed"
)

// Intent is the authorization handle for an in-progress or completed
// charge. Amount is in minor units.
type Intent struct {
	ID           string
	ClientSecret string
	Amount       int64
	Currency     string
	Status       string
}

type Provider interface {
	CreateIntent(ctx context.Context, amount int64, currency string, metadata map[string]string) (*Intent, error)
	GetIntent(ctx context.Context, id string) (*Intent, error)
}
