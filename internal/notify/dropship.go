package notify

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/three-sisters-oyster/api/internal/enum"
)

// DropshipSender submits merchandise orders to the fulfillment partner.
// The partner API accepts the order payload as-is; it is responsible for
// picking out the merch lines it fulfills.
type DropshipSender struct {
	client *http.Client
	url    string
}

func NewDropshipSender(url string) *DropshipSender {
	return &DropshipSender{
		client: &http.Client{Timeout: 15 * time.Second},
		url:    url,
	}
}

func (s *DropshipSender) Kind() string {
	return enum.NotificationKindDropship
}

func (s *DropshipSender) Send(ctx context.Context, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build dropship request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("submit dropship order: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("submit dropship order: partner status %d", resp.StatusCode)
	}
	return nil
}
