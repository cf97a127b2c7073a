package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go-funnel-metrics/internal/model"
	"go-funnel-metrics/internal/pipeline"

	"github.com/rotisserie/eris"
)

// maxPaymentPages bounds pagination of one fetch. Hitting it fails the
// fetch, a truncated charge list would skew the failure rate.
const maxPaymentPages = 50

// PaymentClient lists charges from a card processor's REST API
type PaymentClient struct {
	baseURL  string
	apiKey   string
	pageSize int
	maxPages int
	http     *http.Client
}

// NewPaymentClient creates a client for baseURL authenticated with apiKey
func NewPaymentClient(baseURL, apiKey string, httpClient *http.Client) *PaymentClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &PaymentClient{
		baseURL:  strings.TrimRight(baseURL, "/"),
		apiKey:   apiKey,
		pageSize: 100,
		maxPages: maxPaymentPages,
		http:     httpClient,
	}
}

type chargeWire struct {
	ID       string            `json:"id"`
	Status   string            `json:"status"`
	Amount   int64             `json:"amount"`
	Currency string            `json:"currency"`
	Created  int64             `json:"created"`
	Metadata map[string]string `json:"metadata"`
}

type chargePage struct {
	Data    []chargeWire `json:"data"`
	HasMore bool         `json:"has_more"`
}

// FetchPayments pages through charges created inside q
func (c *PaymentClient) FetchPayments(ctx context.Context, q pipeline.Query) ([]model.PaymentTransaction, error) {
	if c.baseURL == "" || c.apiKey == "" {
		return nil, eris.Wrap(pipeline.ErrSourceNotConfigured, "payments")
	}

	var out []model.PaymentTransaction
	cursor := ""
	for page := 0; page < c.maxPages; page++ {
		params := url.Values{}
		params.Set("limit", strconv.Itoa(c.pageSize))
		params.Set("created[gte]", strconv.FormatInt(q.Since.Unix(), 10))
		params.Set("created[lte]", strconv.FormatInt(q.Until.Unix(), 10))
		if cursor != "" {
			params.Set("starting_after", cursor)
		}

		var body chargePage
		if err := c.get(ctx, "/v1/charges?"+params.Encode(), &body); err != nil {
			return nil, err
		}
		for _, ch := range body.Data {
			out = append(out, model.PaymentTransaction{
				ID:        ch.ID,
				Status:    ch.Status,
				Amount:    ch.Amount,
				Currency:  ch.Currency,
				CreatedAt: time.Unix(ch.Created, 0).UTC(),
				JobRef:    ch.Metadata["jobId"],
			})
		}
		if !body.HasMore || len(body.Data) == 0 {
			return out, nil
		}
		cursor = body.Data[len(body.Data)-1].ID
	}
	return nil, eris.Wrapf(pipeline.ErrSourceUnavailable,
		"payments: page limit of %d reached with %d charges read", c.maxPages, len(out))
}

func (c *PaymentClient) get(ctx context.Context, path string, into interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return eris.Wrap(err, "payments: build request")
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return eris.Wrap(err, "payments: request")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return eris.Wrap(pipeline.ErrSourceUnavailable,
			fmt.Sprintf("payments: status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet))))
	}
	if err := json.NewDecoder(resp.Body).Decode(into); err != nil {
		return eris.Wrap(err, "payments: decode response")
	}
	return nil
}
