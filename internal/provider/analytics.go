package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go-funnel-metrics/internal/model"
	"go-funnel-metrics/internal/pipeline"

	"github.com/rotisserie/eris"
)

// AnalyticsClient reads visitor counts from a web-analytics reporting API
type AnalyticsClient struct {
	baseURL    string
	propertyID string
	token      string
	metric     string
	http       *http.Client
}

// NewAnalyticsClient creates a client for one analytics property
func NewAnalyticsClient(baseURL, propertyID, token string, httpClient *http.Client) *AnalyticsClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &AnalyticsClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		propertyID: propertyID,
		token:      token,
		metric:     "totalUsers",
		http:       httpClient,
	}
}

type runReportRequest struct {
	DateRanges []dateRange `json:"dateRanges"`
	Metrics    []metric    `json:"metrics"`
}

type dateRange struct {
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
}

type metric struct {
	Name string `json:"name"`
}

type runReportResponse struct {
	Rows []struct {
		MetricValues []struct {
			Value string `json:"value"`
		} `json:"metricValues"`
	} `json:"rows"`
}

// FetchVisitors returns the visitor total for the days covered by q
func (c *AnalyticsClient) FetchVisitors(ctx context.Context, q pipeline.Query) (model.VisitorStats, error) {
	if c.baseURL == "" || c.propertyID == "" {
		return model.VisitorStats{}, eris.Wrap(pipeline.ErrSourceNotConfigured, "analytics")
	}

	payload, err := json.Marshal(runReportRequest{
		DateRanges: []dateRange{{
			StartDate: q.Since.Format("2006-01-02"),
			EndDate:   q.Until.Format("2006-01-02"),
		}},
		Metrics: []metric{{Name: c.metric}},
	})
	if err != nil {
		return model.VisitorStats{}, eris.Wrap(err, "analytics: encode request")
	}

	endpoint := fmt.Sprintf("%s/v1/properties/%s:runReport", c.baseURL, c.propertyID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return model.VisitorStats{}, eris.Wrap(err, "analytics: build request")
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return model.VisitorStats{}, eris.Wrap(err, "analytics: request")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return model.VisitorStats{}, eris.Wrap(pipeline.ErrSourceUnavailable,
			fmt.Sprintf("analytics: status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet))))
	}

	var body runReportResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return model.VisitorStats{}, eris.Wrap(err, "analytics: decode response")
	}

	var total int64
	for _, row := range body.Rows {
		if len(row.MetricValues) == 0 {
			continue
		}
		n, err := strconv.ParseInt(row.MetricValues[0].Value, 10, 64)
		if err != nil {
			return model.VisitorStats{}, eris.Wrapf(err, "analytics: metric value %q", row.MetricValues[0].Value)
		}
		total += n
	}
	return model.VisitorStats{Visitors: total, From: q.Since, To: q.Until}, nil
}
