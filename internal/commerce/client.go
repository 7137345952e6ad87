package commerce

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Client talks to the hosted commerce platform's external API. The platform
// owns the catalog, cart, checkout, and order history; this service only
// reads products and orders and pushes cart line items and post-checkout
// answers through it.
type Client struct {
	hc       *http.Client
	baseURL  string
	apiKey   string
	tenantID int64
}

type Config struct {
	BaseURL  string
	APIKey   string
	TenantID int64
	Timeout  time.Duration
}

func New(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		hc:       &http.Client{Timeout: timeout},
		baseURL:  cfg.BaseURL,
		apiKey:   cfg.APIKey,
		tenantID: cfg.TenantID,
	}
}

// Ping verifies the platform is reachable and the API key is accepted.
// Used by the readiness probe.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodGet, "/products", url.Values{"perPage": {"1"}}, nil)
	return err
}

// Products fetches the tenant's in-stock catalog, newest first.
func (c *Client) Products(ctx context.Context) ([]Product, error) {
	q := url.Values{
		"inStock":   {"true"},
		"sortBy":    {"createdAt"},
		"sortOrder": {"desc"},
	}
	body, err := c.do(ctx, http.MethodGet, "/products", q, nil)
	if err != nil {
		return nil, err
	}
	return decodeProducts(body)
}

// Orders fetches one page of the tenant's order history.
func (c *Client) Orders(ctx context.Context, page, perPage int) ([]Order, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 50
	}
	q := url.Values{
		"page":    {strconv.Itoa(page)},
		"perPage": {strconv.Itoa(perPage)},
	}
	body, err := c.do(ctx, http.MethodGet, "/orders", q, nil)
	if err != nil {
		return nil, err
	}
	return decodeOrders(body)
}

// CartItem is a line item pushed into the platform cart. ExtraData carries
// the consultation booking metadata the platform stores verbatim on the
// eventual order.
type CartItem struct {
	OfferingID   int64           `json:"offering_id"`
	OfferingName string          `json:"offering_name"`
	Quantity     int             `json:"quantity"`
	UnitPrice    float64         `json:"unit_price"`
	ImageURL     string          `json:"image_url,omitempty"`
	ExtraData    BookingMetadata `json:"extra_data"`
}

// AddCartItem pushes a line item into the tenant's platform cart.
func (c *Client) AddCartItem(ctx context.Context, item CartItem) error {
	_, err := c.do(ctx, http.MethodPost, "/cart/items", nil, item)
	return err
}

// QualifyingAnswers are the pre-consultation intake answers collected after
// checkout and stored against the platform order.
type QualifyingAnswers struct {
	Goals          string `json:"goals"`
	Targets        string `json:"targets"`
	BusinessNature string `json:"business_nature"`
	Struggles      string `json:"struggles"`
	SubmittedAt    string `json:"submitted_at"`
}

// SubmitQualifyingAnswers stores intake answers against an order.
func (c *Client) SubmitQualifyingAnswers(ctx context.Context, orderNumber string, answers QualifyingAnswers) error {
	path := "/orders/" + url.PathEscape(orderNumber) + "/qualifying-questions"
	_, err := c.do(ctx, http.MethodPost, path, nil, answers)
	return err
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, payload any) ([]byte, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reqBody io.Reader
	if payload != nil {
		buf, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		reqBody = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reqBody)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-API-Key", c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	if c.tenantID > 0 {
		req.Header.Set("X-Tenant-Id", strconv.FormatInt(c.tenantID, 10))
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		// The platform returns a message field on most errors.
		var e struct {
			Message string `json:"message"`
			Error   string `json:"error"`
		}
		_ = json.Unmarshal(body, &e)
		msg := e.Message
		if msg == "" {
			msg = e.Error
		}
		if msg != "" {
			return nil, fmt.Errorf("commerce %s %s: %s (status=%d)", method, path, msg, resp.StatusCode)
		}
		return nil, fmt.Errorf("commerce %s %s failed (status=%d)", method, path, resp.StatusCode)
	}
	return body, nil
}
