package clickup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"
)

const (
	// DefaultBaseURL is the public ClickUp API endpoint.
	DefaultBaseURL = "https://api.clickup.com/api/v2"

	// defaultRequestsPerSecond keeps a refresh burst under ClickUp's
	// documented 100 requests/minute token limit with headroom.
	defaultRequestsPerSecond = 1.5

	defaultTimeout = 15 * time.Second

	maxErrorBodyBytes = 4096
)

var errTokenEmpty = errors.New("clickup: api token is empty")

// Client is an HTTP Repository implementation with client-side rate
// limiting. Safe for concurrent use.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// ClientConfig configures NewClient. Zero values get defaults; only Token
// is required.
type ClientConfig struct {
	Token             string
	BaseURL           string
	HTTPClient        *http.Client
	RequestsPerSecond float64
}

// NewClient creates a ClickUp API client.
func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.Token == "" {
		return nil, errTokenEmpty
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}

	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = defaultRequestsPerSecond
	}

	return &Client{
		baseURL:    baseURL,
		token:      cfg.Token,
		httpClient: httpClient,
		limiter:    rate.NewLimiter(rate.Limit(rps), 1),
	}, nil
}

// wireTask is the subset of the ClickUp task payload we consume.
type wireTask struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Status      struct {
		Status string `json:"status"`
		Color  string `json:"color"`
	} `json:"status"`
	Assignees []struct {
		Username string `json:"username"`
	} `json:"assignees"`
	List struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"list"`
	Folder struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"folder"`
	Parent      string `json:"parent"`
	DateUpdated string `json:"date_updated"` // epoch milliseconds as string
}

// GetTaskDetails fetches one task. Returns ErrTaskNotFound for a 404.
func (c *Client) GetTaskDetails(ctx context.Context, taskID string) (TaskRecord, error) {
	if taskID == "" {
		return TaskRecord{}, fmt.Errorf("get task: %w", ErrTaskNotFound)
	}

	err := c.limiter.Wait(ctx)
	if err != nil {
		return TaskRecord{}, fmt.Errorf("get task %s: %w", taskID, err)
	}

	endpoint := c.baseURL + "/task/" + url.PathEscape(taskID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return TaskRecord{}, fmt.Errorf("get task %s: %w", taskID, err)
	}

	req.Header.Set("Authorization", c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return TaskRecord{}, fmt.Errorf("get task %s: %w", taskID, err)
	}

	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return TaskRecord{}, fmt.Errorf("get task %s: %w", taskID, ErrTaskNotFound)
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))

		return TaskRecord{}, fmt.Errorf("get task %s: status %d: %s", taskID, resp.StatusCode, body)
	}

	var wire wireTask

	err = json.NewDecoder(resp.Body).Decode(&wire)
	if err != nil {
		return TaskRecord{}, fmt.Errorf("get task %s: decode: %w", taskID, err)
	}

	return wire.record(), nil
}

func (w wireTask) record() TaskRecord {
	rec := TaskRecord{
		ID:          w.ID,
		Name:        w.Name,
		Description: w.Description,
		Status:      TaskStatus{Status: w.Status.Status, Color: w.Status.Color},
		List:        NamedRef{ID: w.List.ID, Name: w.List.Name},
		Folder:      NamedRef{ID: w.Folder.ID, Name: w.Folder.Name},
		ParentID:    w.Parent,
	}

	for _, a := range w.Assignees {
		rec.Assignees = append(rec.Assignees, a.Username)
	}

	if ms, err := strconv.ParseInt(w.DateUpdated, 10, 64); err == nil {
		rec.Updated = time.UnixMilli(ms).UTC()
	}

	return rec
}
