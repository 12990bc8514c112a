package yookassa

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker/v2"

	"github.com/kevin07696/subscription-service/internal/domain"
	"github.com/kevin07696/subscription-service/internal/domain/ports"
)

// Config holds gateway credentials and endpoint settings
type Config struct {
	BaseURL   string
	ShopID    string
	SecretKey string
	Timeout   time.Duration
}

// Client implements ports.PaymentGateway against the YooKassa REST API.
// Every call carries a freshly generated Idempotence-Key, which guards
// against provider-side duplicate charges on transport-level retries of the
// same call. The client itself never retries: only the lifecycle engine
// knows whether a retry risks a double charge.
type Client struct {
	config     Config
	httpClient ports.HTTPClient
	breaker    *gobreaker.CircuitBreaker[[]byte]
	logger     ports.Logger
}

// NewClient creates a gateway client with injected credentials and transport
func NewClient(config Config, httpClient ports.HTTPClient, logger ports.Logger) *Client {
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}

	breaker := gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:    "payment-gateway",
		Timeout: 60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("gateway circuit breaker state change",
				ports.String("breaker", name),
				ports.String("from", from.String()),
				ports.String("to", to.String()))
		},
	})

	return &Client{
		config:     config,
		httpClient: httpClient,
		breaker:    breaker,
		logger:     logger,
	}
}

// apiAmount is the provider's money shape
type apiAmount struct {
	Value    string `json:"value"`
	Currency string `json:"currency"`
}

// apiPayment is the provider's payment object
type apiPayment struct {
	ID           string            `json:"id"`
	Status       string            `json:"status"`
	Paid         bool              `json:"paid"`
	Amount       apiAmount         `json:"amount"`
	CreatedAt    time.Time         `json:"created_at"`
	Description  string            `json:"description"`
	Metadata     map[string]string `json:"metadata"`
	Confirmation *struct {
		Type            string `json:"type"`
		ConfirmationURL string `json:"confirmation_url"`
	} `json:"confirmation"`
	PaymentMethod *struct {
		ID    string `json:"id"`
		Saved bool   `json:"saved"`
	} `json:"payment_method"`
}

// apiRefund is the provider's refund object
type apiRefund struct {
	ID        string    `json:"id"`
	Status    string    `json:"status"`
	PaymentID string    `json:"payment_id"`
	Amount    apiAmount `json:"amount"`
	CreatedAt time.Time `json:"created_at"`
}

// apiError is the provider's error body
type apiError struct {
	Type        string `json:"type"`
	Code        string `json:"code"`
	Description string `json:"description"`
}

// CreatePayment initiates a redirect-based charge
func (c *Client) CreatePayment(ctx context.Context, req ports.CreatePaymentRequest) (*ports.PaymentResult, error) {
	if req.Amount.IsNegative() || req.Amount.IsZero() {
		return nil, domain.ErrValidationAmount.WithDetail("amount", req.Amount.String())
	}

	description := req.Description
	if description == "" {
		description = fmt.Sprintf("Payment for user %s", req.UserID)
	}

	body := map[string]interface{}{
		"amount": apiAmount{Value: req.Amount.StringFixed(2), Currency: req.Currency},
		"confirmation": map[string]string{
			"type":       "redirect",
			"return_url": req.ReturnURL,
		},
		"capture":             true,
		"description":         description,
		"save_payment_method": req.SaveMethod,
		"metadata":            map[string]string{"user_id": req.UserID},
	}

	var payment apiPayment
	if err := c.call(ctx, http.MethodPost, "/payments", body, &payment); err != nil {
		return nil, err
	}

	return toPaymentResult(&payment), nil
}

// ChargeStoredMethod performs an off-session charge with a saved method
func (c *Client) ChargeStoredMethod(ctx context.Context, req ports.ChargeStoredMethodRequest) (*ports.PaymentResult, error) {
	if req.StoredMethodID == "" {
		return nil, domain.ErrValidationMissingField.WithDetail("field", "stored_method_id")
	}

	body := map[string]interface{}{
		"amount":            apiAmount{Value: req.Amount.StringFixed(2), Currency: req.Currency},
		"capture":           true,
		"payment_method_id": req.StoredMethodID,
		"description":       req.Description,
		"metadata":          map[string]string{"user_id": req.UserID},
	}

	var payment apiPayment
	if err := c.call(ctx, http.MethodPost, "/payments", body, &payment); err != nil {
		return nil, err
	}

	// The provider answers 200 with a canceled payment when the off-session
	// charge is refused
	if payment.Status == "canceled" {
		return nil, domain.ErrGatewayDeclined.
			WithDetail("gateway_payment_id", payment.ID).
			WithDetail("stored_method_id", req.StoredMethodID)
	}

	return toPaymentResult(&payment), nil
}

// CancelPayment cancels a payment awaiting capture
func (c *Client) CancelPayment(ctx context.Context, paymentID string) (*ports.PaymentResult, error) {
	var payment apiPayment
	path := fmt.Sprintf("/payments/%s/cancel", paymentID)
	if err := c.call(ctx, http.MethodPost, path, struct{}{}, &payment); err != nil {
		return nil, err
	}
	return toPaymentResult(&payment), nil
}

// Refund refunds a captured payment
func (c *Client) Refund(ctx context.Context, req ports.RefundRequest) (*ports.RefundResult, error) {
	body := map[string]interface{}{
		"payment_id": req.PaymentID,
		"amount":     apiAmount{Value: req.Amount.StringFixed(2), Currency: req.Currency},
	}

	var refund apiRefund
	if err := c.call(ctx, http.MethodPost, "/refunds", body, &refund); err != nil {
		return nil, err
	}

	amount, err := decimal.NewFromString(refund.Amount.Value)
	if err != nil {
		return nil, domain.WrapError(domain.ErrorCodeGatewayError, "unparseable refund amount", err)
	}

	return &ports.RefundResult{
		RefundID:  refund.ID,
		PaymentID: refund.PaymentID,
		Status:    refund.Status,
		Amount:    amount,
		CreatedAt: refund.CreatedAt,
	}, nil
}

// GetPayment looks up the provider-side state of a payment
func (c *Client) GetPayment(ctx context.Context, paymentID string) (*ports.PaymentResult, error) {
	var payment apiPayment
	path := fmt.Sprintf("/payments/%s", paymentID)
	if err := c.call(ctx, http.MethodGet, path, nil, &payment); err != nil {
		return nil, err
	}
	return toPaymentResult(&payment), nil
}

// apiPaymentList is the provider's paginated list envelope
type apiPaymentList struct {
	Items []apiPayment `json:"items"`
}

// ListRecentPayments returns the user's recent provider-side payments. The
// provider cannot filter by metadata server-side, so the client fetches the
// newest page and filters on the user_id every charge call stamps into
// metadata.
func (c *Client) ListRecentPayments(ctx context.Context, userID string) ([]*ports.PaymentResult, error) {
	var list apiPaymentList
	if err := c.call(ctx, http.MethodGet, "/payments?limit=100", nil, &list); err != nil {
		return nil, err
	}

	var results []*ports.PaymentResult
	for i := range list.Items {
		if list.Items[i].Metadata["user_id"] != userID {
			continue
		}
		results = append(results, toPaymentResult(&list.Items[i]))
	}
	return results, nil
}

// call executes one provider request through the circuit breaker
func (c *Client) call(ctx context.Context, method, path string, body, out interface{}) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, c.config.BaseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.SetBasicAuth(c.config.ShopID, c.config.SecretKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotence-Key", uuid.New().String())

	respBody, err := c.breaker.Execute(func() ([]byte, error) {
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		data, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return nil, fmt.Errorf("read response: %w", readErr)
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, c.providerError(resp.StatusCode, data)
		}

		return data, nil
	})
	if err != nil {
		return c.normalizeError(ctx, method, path, err)
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return domain.WrapError(domain.ErrorCodeGatewayError, "unparseable gateway response", err)
	}

	return nil
}

// providerError maps a non-2xx provider response to a domain error
func (c *Client) providerError(statusCode int, body []byte) error {
	var apiErr apiError
	_ = json.Unmarshal(body, &apiErr)

	message := apiErr.Description
	if message == "" {
		message = fmt.Sprintf("gateway returned status %d", statusCode)
	}

	return domain.NewDomainError(domain.ErrorCodeGatewayError, message).
		WithDetail("status_code", statusCode).
		WithDetail("gateway_code", apiErr.Code)
}

// normalizeError classifies transport failures. A deadline expiry means the
// charge outcome is unknown, not that it failed; callers must treat it that
// way and reconcile via webhook or GetPayment.
func (c *Client) normalizeError(ctx context.Context, method, path string, err error) error {
	var domainErr *domain.DomainError
	if errors.As(err, &domainErr) {
		return err
	}

	c.logger.Error("gateway request failed",
		ports.String("method", method),
		ports.String("path", path),
		ports.Err(err))

	if errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
		return domain.ErrGatewayTimedOut
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return domain.ErrGatewayError.WithDetail("reason", "circuit_open")
	}

	return domain.ErrGatewayError.WithDetail("cause", err.Error())
}

// toPaymentResult normalizes the provider payment object
func toPaymentResult(p *apiPayment) *ports.PaymentResult {
	result := &ports.PaymentResult{
		PaymentID:   p.ID,
		Status:      p.Status,
		Paid:        p.Paid,
		CreatedAt:   p.CreatedAt,
		Description: p.Description,
		Metadata:    p.Metadata,
	}

	if amount, err := decimal.NewFromString(p.Amount.Value); err == nil {
		result.Amount = amount
	}
	if p.Confirmation != nil {
		result.ConfirmationURL = p.Confirmation.ConfirmationURL
	}
	if p.PaymentMethod != nil && p.PaymentMethod.Saved {
		result.StoredMethodID = p.PaymentMethod.ID
	}

	return result
}
