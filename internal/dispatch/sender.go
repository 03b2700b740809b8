package dispatch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"payhook/internal/sentinel"
	"payhook/internal/signature"
)

const DeliveryHeader = "X-Payhook-Delivery"

type Sender interface {
	Deliver(ctx context.Context, d Delivery) error
}

// HTTPSender posts the event JSON to the sink, signed with the outbound
// secret. Permanent failures come back wrapped in sentinel.Guardian.
type HTTPSender struct {
	client *http.Client
	secret []byte
	now    func() time.Time
}

func NewHTTPSender(client *http.Client, secret []byte) *HTTPSender {
	return &HTTPSender{
		client: client,
		secret: secret,
		now:    time.Now,
	}
}

func (s *HTTPSender) Deliver(ctx context.Context, d Delivery) error {
	body, err := json.Marshal(d.Event)
	if err != nil {
		return sentinel.NewGuardian(true, fmt.Sprintf("failed to marshal event: %v", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.Sink, bytes.NewReader(body))
	if err != nil {
		return sentinel.NewGuardian(true, fmt.Sprintf("failed to create request: %v", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(DeliveryHeader, d.ID)
	req.Header.Set(signature.Header, signature.Sign(s.secret, s.now(), body))

	res, err := s.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("sink timed out: %w", err)
		}
		return fmt.Errorf("sink request failed: %w", err)
	}
	defer res.Body.Close()

	switch {
	case res.StatusCode >= 200 && res.StatusCode < 300:
		return nil
	case res.StatusCode == http.StatusRequestTimeout,
		res.StatusCode == http.StatusTooManyRequests,
		res.StatusCode >= 500:
		return fmt.Errorf("sink returned status %d", res.StatusCode)
	default:
		// remaining 4xx: the sink saw the request and refused it
		return sentinel.NewGuardian(true, fmt.Sprintf("sink rejected delivery with status %d", res.StatusCode))
	}
}
