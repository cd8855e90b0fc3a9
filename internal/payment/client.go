// AngelaMos | 2026
// client.go

// Package payment speaks the YooKassa v3 REST API: creating payments,
// reading them back, and normalising webhook notifications.
package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/carterperez-dev/notesbot/internal/config"
	"github.com/carterperez-dev/notesbot/internal/metrics"
)

const maxResponseBytes = 1 << 20

const (
	StatusPending           = "pending"
	StatusWaitingForCapture = "waiting_for_capture"
	StatusSucceeded         = "succeeded"
	StatusCanceled          = "canceled"
)

// GatewayError carries the gateway's own explanation of a failed call.
type GatewayError struct {
	StatusCode  int
	Code        string
	Description string
}

func (e *GatewayError) Error() string {
	if e.Description != "" {
		return fmt.Sprintf("payment gateway: %s (%s, http %d)", e.Description, e.Code, e.StatusCode)
	}
	return fmt.Sprintf("payment gateway: http %d", e.StatusCode)
}

type Intent struct {
	Reference   string
	Status      string
	RedirectURL string
}

type PaymentStatus struct {
	Reference string
	Status    string
	Amount    float64
	Settled   bool
}

type Client struct {
	httpClient  *http.Client
	logger      *slog.Logger
	metrics     metrics.Recorder
	baseURL     string
	shopID      string
	secretKey   string
	currency    string
	description string
}

func NewClient(
	cfg config.YooKassaConfig,
	notes config.NotesConfig,
	logger *slog.Logger,
	rec metrics.Recorder,
) *Client {
	if rec == nil {
		rec = metrics.Noop()
	}

	return &Client{
		httpClient:  &http.Client{Timeout: cfg.Timeout},
		logger:      logger,
		metrics:     rec,
		baseURL:     strings.TrimRight(cfg.APIURL, "/"),
		shopID:      cfg.ShopID,
		secretKey:   cfg.SecretKey,
		currency:    notes.Currency,
		description: notes.PaymentDescription,
	}
}

type amountBody struct {
	Value    string `json:"value"    validate:"required,numeric"`
	Currency string `json:"currency" validate:"required,len=3"`
}

type confirmationBody struct {
	Type            string `json:"type"`
	ReturnURL       string `json:"return_url,omitempty"`
	ConfirmationURL string `json:"confirmation_url,omitempty"`
}

type createPaymentRequest struct {
	Amount       amountBody        `json:"amount"`
	Confirmation confirmationBody  `json:"confirmation"`
	Capture      bool              `json:"capture"`
	Description  string            `json:"description"`
	Metadata     map[string]string `json:"metadata"`
}

type paymentBody struct {
	ID           string            `json:"id"`
	Status       string            `json:"status"`
	Paid         bool              `json:"paid"`
	Amount       amountBody        `json:"amount"`
	Confirmation *confirmationBody `json:"confirmation,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

type errorBody struct {
	Type        string `json:"type"`
	Code        string `json:"code"`
	Description string `json:"description"`
}

// CreateIntent opens an auto-captured redirect payment for a note. The
// note id doubles as the idempotence key, so retrying the same note never
// charges twice.
func (c *Client) CreateIntent(
	ctx context.Context,
	amount float64,
	noteID, ownerID int64,
	returnURL string,
) (*Intent, error) {
	reqBody := createPaymentRequest{
		Amount: amountBody{
			Value:    FormatAmount(amount),
			Currency: c.currency,
		},
		Confirmation: confirmationBody{
			Type:      "redirect",
			ReturnURL: returnURL,
		},
		Capture:     true,
		Description: c.description,
		Metadata: map[string]string{
			"note_id": strconv.FormatInt(noteID, 10),
			"user_id": strconv.FormatInt(ownerID, 10),
		},
	}

	var resp paymentBody
	err := c.do(ctx, "create_payment", http.MethodPost, "/payments",
		strconv.FormatInt(noteID, 10), reqBody, &resp)
	if err != nil {
		return nil, err
	}

	intent := &Intent{Reference: resp.ID, Status: resp.Status}
	if resp.Confirmation != nil {
		intent.RedirectURL = resp.Confirmation.ConfirmationURL
	}

	return intent, nil
}

// QueryStatus reads a payment back from the gateway.
func (c *Client) QueryStatus(ctx context.Context, ref string) (*PaymentStatus, error) {
	var resp paymentBody
	err := c.do(ctx, "get_payment", http.MethodGet, "/payments/"+url.PathEscape(ref), "", nil, &resp)
	if err != nil {
		return nil, err
	}

	value, err := strconv.ParseFloat(resp.Amount.Value, 64)
	if err != nil {
		return nil, fmt.Errorf("query payment status: parse amount %q: %w", resp.Amount.Value, err)
	}

	return &PaymentStatus{
		Reference: resp.ID,
		Status:    resp.Status,
		Amount:    value,
		Settled:   resp.Paid && resp.Status == StatusSucceeded,
	}, nil
}

func (c *Client) do(
	ctx context.Context,
	operation, method, path, idempotenceKey string,
	in, out any,
) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%s: encode request: %w", operation, err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", operation, err)
	}

	req.SetBasicAuth(c.shopID, c.secretKey)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if idempotenceKey != "" {
		req.Header.Set("Idempotence-Key", idempotenceKey)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.GatewayCall(operation, false, time.Since(start))
		c.logger.Error("payment gateway request failed",
			"operation", operation,
			"error", err,
		)
		return fmt.Errorf("%s: %w", operation, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		c.metrics.GatewayCall(operation, false, time.Since(start))
		return fmt.Errorf("%s: read response: %w", operation, err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		c.metrics.GatewayCall(operation, false, time.Since(start))

		gwErr := &GatewayError{StatusCode: resp.StatusCode}
		var eb errorBody
		if json.Unmarshal(raw, &eb) == nil {
			gwErr.Code = eb.Code
			gwErr.Description = eb.Description
		}

		c.logger.Warn("payment gateway returned error",
			"operation", operation,
			"http_status", resp.StatusCode,
			"code", gwErr.Code,
		)
		return gwErr
	}

	c.metrics.GatewayCall(operation, true, time.Since(start))

	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%s: decode response: %w", operation, err)
	}

	return nil
}

func FormatAmount(amount float64) string {
	return strconv.FormatFloat(amount, 'f', 2, 64)
}
