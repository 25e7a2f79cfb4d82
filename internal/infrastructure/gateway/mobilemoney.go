package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// Client talks to the mobile-money provider's collection API. The provider
// confirms asynchronously; a successful initiation only means the subscriber
// was prompted.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	log     *logrus.Logger
}

func NewClient(baseURL, apiKey string, timeout time.Duration, log *logrus.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: timeout},
		log:     log,
	}
}

type collectionReq struct {
	Phone     string          `json:"phone"`
	Amount    decimal.Decimal `json:"amount"`
	Reference string          `json:"reference"`
}

type collectionResp struct {
	ProviderRef string `json:"provider_ref"`
	Message     string `json:"message"`
}

func (c *Client) InitiatePaymentRequest(ctx context.Context, phone string, amount decimal.Decimal, reference string) (string, error) {
	payload, err := json.Marshal(collectionReq{Phone: phone, Amount: amount, Reference: reference})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/collections", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		c.log.WithFields(logrus.Fields{
			"status":    resp.StatusCode,
			"reference": reference,
		}).Warn("gateway: collection request rejected")
		return "", fmt.Errorf("gateway returned status %d", resp.StatusCode)
	}

	var out collectionResp
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("gateway: malformed response: %w", err)
	}
	if out.ProviderRef == "" {
		return "", fmt.Errorf("gateway: response missing provider_ref")
	}
	return out.ProviderRef, nil
}
