package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cardlinkhq/cardlink/internal/pkg/env"
)

const defaultMercadoPagoAPIBaseURL = "https://api.mercadopago.com"

// Gateway is the outbound payment-gateway surface the reconciler depends on.
// Non-2xx responses surface as errors and are treated as "no data" by callers.
type Gateway interface {
	GetPayment(ctx context.Context, paymentID string) (*GatewayPayment, error)
	SearchByExternalReference(ctx context.Context, externalReference string) ([]GatewayPayment, error)
	CreatePreference(ctx context.Context, req PreferenceRequest) (*Preference, error)
}

type MercadoPagoClient struct {
	AccessToken string
	APIBaseURL  string

	HTTPClient *http.Client
}

// PreferenceRequest describes one checkout session to create. The external
// reference carries the internal payment UUID so asynchronous callbacks can
// be joined back to local state.
type PreferenceRequest struct {
	Title             string
	Amount            float64
	Currency          string
	PayerEmail        string
	ExternalReference string
	NotificationURL   string
	BackURL           string
}

type Preference struct {
	ID        string
	InitPoint string
}

func NewMercadoPagoClientFromEnv() *MercadoPagoClient {
	return &MercadoPagoClient{
		AccessToken: strings.TrimSpace(env.GetEnv("MP_ACCESS_TOKEN", "")),
		APIBaseURL:  strings.TrimRight(env.GetEnv("MP_API_BASE_URL", defaultMercadoPagoAPIBaseURL), "/"),
		HTTPClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

type rawGatewayPayment struct {
	ID                json.Number `json:"id"`
	Status            string      `json:"status"`
	ExternalReference string      `json:"external_reference"`
	CurrencyID        string      `json:"currency_id"`
	TransactionAmount float64     `json:"transaction_amount"`
	DateApproved      *time.Time  `json:"date_approved"`
	Payer             struct {
		Email string `json:"email"`
	} `json:"payer"`
}

func (p rawGatewayPayment) normalized(raw []byte) GatewayPayment {
	return GatewayPayment{
		ID:                p.ID.String(),
		Status:            strings.TrimSpace(p.Status),
		ExternalReference: strings.TrimSpace(p.ExternalReference),
		PayerEmail:        strings.TrimSpace(p.Payer.Email),
		Amount:            p.TransactionAmount,
		Currency:          strings.TrimSpace(p.CurrencyID),
		DateApproved:      p.DateApproved,
		RawJSON:           string(raw),
	}
}

// GetPayment reads the authoritative payment object from the gateway.
func (c *MercadoPagoClient) GetPayment(ctx context.Context, paymentID string) (*GatewayPayment, error) {
	id := strings.TrimSpace(paymentID)
	if id == "" {
		return nil, errors.New("payment id is required")
	}

	body, err := c.doGet(ctx, "/v1/payments/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, err
	}

	var raw rawGatewayPayment
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, err
	}
	if raw.ID.String() == "" {
		return nil, errors.New("gateway payment response missing id")
	}
	out := raw.normalized(body)
	return &out, nil
}

// SearchByExternalReference finds gateway payments created with the given
// external reference, newest first.
func (c *MercadoPagoClient) SearchByExternalReference(ctx context.Context, externalReference string) ([]GatewayPayment, error) {
	ref := strings.TrimSpace(externalReference)
	if ref == "" {
		return nil, errors.New("external reference is required")
	}

	q := url.Values{}
	q.Set("external_reference", ref)
	q.Set("sort", "date_created")
	q.Set("criteria", "desc")

	body, err := c.doGet(ctx, "/v1/payments/search", q)
	if err != nil {
		return nil, err
	}

	var raw struct {
		Results []json.RawMessage `json:"results"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, err
	}

	out := make([]GatewayPayment, 0, len(raw.Results))
	for _, item := range raw.Results {
		var rp rawGatewayPayment
		if err := json.Unmarshal(item, &rp); err != nil {
			continue
		}
		if rp.ID.String() == "" {
			continue
		}
		out = append(out, rp.normalized(item))
	}
	return out, nil
}

// CreatePreference opens a checkout session at the gateway.
func (c *MercadoPagoClient) CreatePreference(ctx context.Context, req PreferenceRequest) (*Preference, error) {
	if strings.TrimSpace(c.AccessToken) == "" {
		return nil, errors.New("MP_ACCESS_TOKEN is not configured")
	}
	if strings.TrimSpace(req.ExternalReference) == "" {
		return nil, errors.New("external reference is required")
	}

	payload := map[string]interface{}{
		"items": []map[string]interface{}{
			{
				"title":       req.Title,
				"quantity":    1,
				"unit_price":  req.Amount,
				"currency_id": req.Currency,
			},
		},
		"external_reference": req.ExternalReference,
	}
	if req.PayerEmail != "" {
		payload["payer"] = map[string]string{"email": req.PayerEmail}
	}
	if req.NotificationURL != "" {
		payload["notification_url"] = req.NotificationURL
	}
	if req.BackURL != "" {
		payload["back_urls"] = map[string]string{
			"success": req.BackURL,
			"pending": req.BackURL,
			"failure": req.BackURL,
		}
		payload["auto_return"] = "approved"
	}

	buf, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.APIBaseURL+"/checkout/preferences", bytes.NewReader(buf))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.AccessToken)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.HTTPClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("preference creation failed: status=%d body=%s", resp.StatusCode, string(body))
	}

	var out struct {
		ID        string `json:"id"`
		InitPoint string `json:"init_point"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, err
	}
	if strings.TrimSpace(out.ID) == "" {
		return nil, errors.New("preference response missing id")
	}
	return &Preference{ID: out.ID, InitPoint: out.InitPoint}, nil
}

func (c *MercadoPagoClient) doGet(ctx context.Context, path string, query url.Values) ([]byte, error) {
	if strings.TrimSpace(c.AccessToken) == "" {
		return nil, errors.New("MP_ACCESS_TOKEN is not configured")
	}

	u, err := url.Parse(c.APIBaseURL + path)
	if err != nil {
		return nil, err
	}
	if query != nil {
		u.RawQuery = query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.AccessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 2<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("gateway request failed: path=%s status=%d body=%s", path, resp.StatusCode, string(body))
	}
	return body, nil
}
