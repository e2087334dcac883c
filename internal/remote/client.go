package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/kilupskalvis/mechmon/internal/history"
	"github.com/kilupskalvis/mechmon/internal/models"
)

// HTTPClient implements history.Store over HTTP against a mechmon server.
type HTTPClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

var _ history.Store = (*HTTPClient)(nil)

// NewHTTPClient creates an HTTP-based history client.
func NewHTTPClient(baseURL, token string) *HTTPClient {
	return &HTTPClient{
		baseURL:    baseURL,
		token:      token,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

func (c *HTTPClient) entityURL(entityID, path string) string {
	return fmt.Sprintf("%s/api/v1/entities/%s%s", c.baseURL, url.PathEscape(entityID), path)
}

func (c *HTTPClient) doJSON(ctx context.Context, method, rawURL string, reqBody, respBody any) error {
	var body io.Reader
	if reqBody != nil {
		data, err := json.Marshal(reqBody)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		io.Copy(io.Discard, resp.Body)
		return history.ErrNotFound
	}
	if resp.StatusCode >= 400 {
		return decodeError(resp)
	}

	if respBody != nil {
		if err := json.NewDecoder(resp.Body).Decode(respBody); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

// LatestSnapshot returns the most recent snapshot for the entity.
func (c *HTTPClient) LatestSnapshot(ctx context.Context, entityID string) (*models.Snapshot, error) {
	var s models.Snapshot
	if err := c.doJSON(ctx, http.MethodGet, c.entityURL(entityID, "/snapshots/latest"), nil, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// SnapshotAt returns the snapshot stored for an exact timestamp.
func (c *HTTPClient) SnapshotAt(ctx context.Context, entityID string, ts time.Time) (*models.Snapshot, error) {
	var s models.Snapshot
	u := c.entityURL(entityID, "/snapshots/"+url.PathEscape(ts.UTC().Format(time.RFC3339Nano)))
	if err := c.doJSON(ctx, http.MethodGet, u, nil, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// PutSnapshot uploads a snapshot.
func (c *HTTPClient) PutSnapshot(ctx context.Context, snapshot *models.Snapshot) error {
	return c.doJSON(ctx, http.MethodPost, c.entityURL(snapshot.EntityID, "/snapshots"), snapshot, nil)
}

// LatestDocument returns the most recent statistics document for the entity.
func (c *HTTPClient) LatestDocument(ctx context.Context, entityID string) (*models.StatsDocument, error) {
	return c.NthLatestDocument(ctx, entityID, 0)
}

// NthLatestDocument returns the n-th most recent document, n == 0 being
// the latest.
func (c *HTTPClient) NthLatestDocument(ctx context.Context, entityID string, n int) (*models.StatsDocument, error) {
	var d models.StatsDocument
	u := c.entityURL(entityID, "/documents/nth/"+strconv.Itoa(n))
	if err := c.doJSON(ctx, http.MethodGet, u, nil, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// DocumentAt returns the document stored for an exact timestamp.
func (c *HTTPClient) DocumentAt(ctx context.Context, entityID string, ts time.Time) (*models.StatsDocument, error) {
	var d models.StatsDocument
	u := c.entityURL(entityID, "/documents/"+url.PathEscape(ts.UTC().Format(time.RFC3339Nano)))
	if err := c.doJSON(ctx, http.MethodGet, u, nil, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// PutDocument uploads a statistics document.
func (c *HTTPClient) PutDocument(ctx context.Context, doc *models.StatsDocument) error {
	return c.doJSON(ctx, http.MethodPost, c.entityURL(doc.EntityID, "/documents"), doc, nil)
}

// ListDocuments returns document references for the entity, newest first.
func (c *HTTPClient) ListDocuments(ctx context.Context, entityID string, limit int) ([]history.DocumentRef, error) {
	var refs []history.DocumentRef
	u := c.entityURL(entityID, "/documents")
	if limit > 0 {
		u += "?limit=" + strconv.Itoa(limit)
	}
	if err := c.doJSON(ctx, http.MethodGet, u, nil, &refs); err != nil {
		if errors.Is(err, history.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return refs, nil
}

// Entities returns all entity IDs known to the server.
func (c *HTTPClient) Entities(ctx context.Context) ([]string, error) {
	var list EntityList
	if err := c.doJSON(ctx, http.MethodGet, c.baseURL+"/api/v1/entities", nil, &list); err != nil {
		return nil, err
	}
	return list.Entities, nil
}

// Info returns summary information about the server's history store.
func (c *HTTPClient) Info(ctx context.Context) (*history.Info, error) {
	var info history.Info
	if err := c.doJSON(ctx, http.MethodGet, c.baseURL+"/api/v1/info", nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// Close is a no-op for the HTTP client.
func (c *HTTPClient) Close() error {
	return nil
}
