// Package relay requests connection-relay rooms from the external
// provisioning service. Provisioning is best effort: the chat flow never
// fails because a room could not be prepared.
package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Provisioner requests a relay room keyed by chat.
type Provisioner interface {
	ProvisionRoom(ctx context.Context, chatID string) error
}

// HTTPProvisioner posts room requests to the relay service.
type HTTPProvisioner struct {
	url    string
	client *http.Client
}

func NewHTTPProvisioner(url string) *HTTPProvisioner {
	return &HTTPProvisioner{
		url: strings.TrimRight(strings.TrimSpace(url), "/") + "/rooms",
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (p *HTTPProvisioner) ProvisionRoom(ctx context.Context, chatID string) error {
	payload, err := json.Marshal(map[string]string{"chat_id": chatID})
	if err != nil {
		return fmt.Errorf("marshal room request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create room request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("send room request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))
		return fmt.Errorf("relay service status %d: %s", res.StatusCode, string(body))
	}
	return nil
}

// NoopProvisioner stands in when no relay service is configured.
type NoopProvisioner struct{}

func (NoopProvisioner) ProvisionRoom(context.Context, string) error { return nil }
