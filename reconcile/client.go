package reconcile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/contarapida/finance_backend/models"
)

type providerClient struct {
	provider  string
	baseURL   string
	apiKey    string
	apiKeyHdr string
	http      *http.Client
	limiter   <-chan time.Time
}

func newProviderClient(provider, apiKey string) (*providerClient, error) {
	var baseEnv, defaultBase string
	switch provider {
	case models.IntegrationProviderErp:
		baseEnv = "ERP_API_BASE_URL"
		defaultBase = "https://api.erp-gateway.com.br"
	case models.IntegrationProviderBankFeed:
		baseEnv = "BANK_FEED_API_BASE_URL"
		defaultBase = "https://api.openbanking-feed.com.br"
	default:
		return nil, fmt.Errorf("unknown provider %q", provider)
	}
	baseURL := strings.TrimSpace(os.Getenv(baseEnv))
	if baseURL == "" {
		baseURL = defaultBase
	}
	apiKeyHeader := strings.TrimSpace(os.Getenv("PROVIDER_API_KEY_HEADER"))
	if apiKeyHeader == "" {
		apiKeyHeader = "X-API-Key"
	}
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("provider api key is empty")
	}
	rateLimitPerMin := int64(10)
	if v := strings.TrimSpace(os.Getenv("PROVIDER_RATE_LIMIT_PER_MIN")); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			rateLimitPerMin = n
		}
	}
	interval := time.Minute / time.Duration(rateLimitPerMin)

	return &providerClient{
		provider:  provider,
		baseURL:   strings.TrimRight(baseURL, "/"),
		apiKey:    apiKey,
		apiKeyHdr: apiKeyHeader,
		http:      &http.Client{Timeout: 30 * time.Second},
		limiter:   time.Tick(interval),
	}, nil
}

type providerListResponse struct {
	Data       []json.RawMessage `json:"data"`
	Items      []json.RawMessage `json:"items"`
	NextCursor string            `json:"next_cursor"`
	HasMore    *bool             `json:"has_more"`
}

func (r providerListResponse) records() []json.RawMessage {
	if len(r.Data) > 0 {
		return r.Data
	}
	return r.Items
}

func (c *providerClient) getList(ctx context.Context, path string, params url.Values) (providerListResponse, error) {
	<-c.limiter
	endpoint := c.baseURL + path
	if len(params) > 0 {
		endpoint = endpoint + "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return providerListResponse{}, err
	}
	req.Header.Set(c.apiKeyHdr, c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return providerListResponse{}, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return providerListResponse{}, fmt.Errorf("%s api error %d: %s", c.provider, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var parsed providerListResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return providerListResponse{}, err
	}
	return parsed, nil
}

type wireRecord struct {
	ID          string `json:"id"`
	ExternalId  string `json:"external_id"`
	Amount      string `json:"amount"`
	Date        string `json:"date"`
	Status      string `json:"status"`
	Category    string `json:"category"`
	Description string `json:"description"`
	Deleted     bool   `json:"deleted"`
}

func decodeExternalRecord(raw json.RawMessage) (ExternalRecord, error) {
	var w wireRecord
	if err := json.Unmarshal(raw, &w); err != nil {
		return ExternalRecord{}, err
	}
	id := w.ExternalId
	if id == "" {
		id = w.ID
	}
	if id == "" {
		return ExternalRecord{}, errors.New("record has no external id")
	}
	amount, err := decimal.NewFromString(strings.TrimSpace(w.Amount))
	if err != nil {
		return ExternalRecord{}, fmt.Errorf("record %s has invalid amount %q", id, w.Amount)
	}
	date, err := parseRecordDate(w.Date)
	if err != nil {
		return ExternalRecord{}, fmt.Errorf("record %s has invalid date %q", id, w.Date)
	}
	return ExternalRecord{
		ExternalId:  id,
		Amount:      amount,
		Date:        date,
		Status:      strings.ToLower(strings.TrimSpace(w.Status)),
		Category:    strings.TrimSpace(w.Category),
		Description: strings.TrimSpace(w.Description),
		Deleted:     w.Deleted,
	}, nil
}

func parseRecordDate(v string) (time.Time, error) {
	v = strings.TrimSpace(v)
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if d, err := time.Parse(layout, v); err == nil {
			return d, nil
		}
	}
	return time.Time{}, fmt.Errorf("unsupported date format %q", v)
}

// fetchRecords pulls every page of records inside the date window,
// resuming from the stored cursor when the provider hands one back.
func (c *providerClient) fetchRecords(ctx context.Context, params RunParams, cursor CursorEntry) ([]ExternalRecord, []error, CursorEntry, error) {
	var records []ExternalRecord
	var recordErrors []error

	path := "/v1/records"
	if c.provider == models.IntegrationProviderBankFeed {
		path = "/v1/statement-lines"
	}

	// The updated_since cursor belongs to incremental imports only. A
	// windowed or single-record run must see every record in scope so
	// re-running the same window reproduces the same report.
	incremental := params.FromDate == "" && params.ToDate == "" && params.ExternalId == ""

	query := url.Values{}
	if params.FromDate != "" {
		query.Set("from_date", params.FromDate)
	}
	if params.ToDate != "" {
		query.Set("to_date", params.ToDate)
	}
	if params.ExternalId != "" {
		query.Set("external_id", params.ExternalId)
	}
	if incremental && cursor.UpdatedSince != "" {
		query.Set("updated_since", cursor.UpdatedSince)
	}
	nextCursor := cursor.Cursor

	for {
		if nextCursor != "" {
			query.Set("cursor", nextCursor)
		}
		page, err := c.getList(ctx, path, query)
		if err != nil {
			return records, recordErrors, CursorEntry{UpdatedSince: cursor.UpdatedSince, Cursor: nextCursor}, err
		}
		for _, raw := range page.records() {
			rec, decErr := decodeExternalRecord(raw)
			if decErr != nil {
				recordErrors = append(recordErrors, decErr)
				continue
			}
			records = append(records, rec)
		}
		nextCursor = page.NextCursor
		if nextCursor == "" || (page.HasMore != nil && !*page.HasMore) {
			break
		}
	}

	if !incremental {
		// scoped run; leave the incremental cursor untouched
		return records, recordErrors, cursor, nil
	}
	updated := CursorEntry{
		UpdatedSince: time.Now().UTC().Format(time.RFC3339),
		Cursor:       "",
	}
	return records, recordErrors, updated, nil
}
