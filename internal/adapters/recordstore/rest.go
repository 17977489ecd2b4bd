package recordstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"obsdash/internal/domain/report"
)

// maxItems is the fixed upper bound for a full list query; the store caps
// single requests at this count.
const maxItems = 5000

// RESTClient implements Client against the store's REST surface.
type RESTClient struct {
	baseURL string
	list    string
	http    *http.Client
}

// NewRESTClient creates a client for the reports list at the given site URL.
// PRE: baseURL is absolute; listName is the list's title
// POST: Returns a ready-to-use client with a 30s request timeout
func NewRESTClient(baseURL, listName string) *RESTClient {
	return &RESTClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		list:    listName,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// itemsResponse wraps a list query result.
type itemsResponse struct {
	Value []WireItem `json:"value"`
}

// fieldResponse wraps a field metadata result.
type fieldResponse struct {
	Choices []string `json:"Choices"`
}

// QueryReports fetches the full report set in one request.
// PRE: none
// POST: Returns every item up to the store's item cap, in store order
func (c *RESTClient) QueryReports(ctx context.Context) ([]report.Report, error) {
	path := fmt.Sprintf("/lists/%s/items?expand=ObservedBy,Editor,EmailRecipients&orderby=Status&top=%d",
		url.PathEscape(c.list), maxItems)
	var resp itemsResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, fmt.Errorf("query reports: %w", err)
	}
	items := make([]report.Report, 0, len(resp.Value))
	for _, w := range resp.Value {
		items = append(items, w.ToDomain())
	}
	return items, nil
}

// CreateReport adds a new item to the list.
// PRE: r has been validated
// POST: Returns the stored item with its assigned ID and audit fields
func (c *RESTClient) CreateReport(ctx context.Context, r report.Report) (report.Report, error) {
	path := fmt.Sprintf("/lists/%s/items", url.PathEscape(c.list))
	var out WireItem
	if err := c.do(ctx, http.MethodPost, path, FromDomain(r), &out); err != nil {
		return report.Report{}, fmt.Errorf("create report: %w", err)
	}
	return out.ToDomain(), nil
}

// UpdateReport replaces the fields of an existing item.
// PRE: r.ID identifies an existing item
// POST: Returns the stored item with refreshed audit fields
func (c *RESTClient) UpdateReport(ctx context.Context, r report.Report) (report.Report, error) {
	path := fmt.Sprintf("/lists/%s/items/%d", url.PathEscape(c.list), r.ID)
	var out WireItem
	if err := c.do(ctx, http.MethodPatch, path, FromDomain(r), &out); err != nil {
		return report.Report{}, fmt.Errorf("update report %d: %w", r.ID, err)
	}
	return out.ToDomain(), nil
}

// DeleteReport removes an item by id.
// PRE: id > 0
// POST: Item is gone from the store, or an error is returned
func (c *RESTClient) DeleteReport(ctx context.Context, id int) error {
	path := fmt.Sprintf("/lists/%s/items/%d", url.PathEscape(c.list), id)
	if err := c.do(ctx, http.MethodDelete, path, nil, nil); err != nil {
		return fmt.Errorf("delete report %d: %w", id, err)
	}
	return nil
}

// FieldChoices returns the ordered choice set for a choice-typed field.
// PRE: fieldName is a choice field on the reports list
// POST: Returns the choices in schema order
func (c *RESTClient) FieldChoices(ctx context.Context, fieldName string) ([]string, error) {
	path := fmt.Sprintf("/lists/%s/fields/%s", url.PathEscape(c.list), url.PathEscape(fieldName))
	var resp fieldResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, fmt.Errorf("field choices %s: %w", fieldName, err)
	}
	return resp.Choices, nil
}

// GroupMember probes membership of a named site group.
// PRE: groupName is non-empty
// POST: nil iff the user is a member; ErrNotFound wraps 404s
func (c *RESTClient) GroupMember(ctx context.Context, groupName string, userID int) error {
	path := fmt.Sprintf("/groups/byname/%s/users/%d", url.PathEscape(groupName), userID)
	return c.do(ctx, http.MethodGet, path, nil, nil)
}

// OwnerGroupMember probes membership of the site's default owner group.
// PRE: userID > 0
// POST: nil iff the user is a member; ErrNotFound wraps 404s
func (c *RESTClient) OwnerGroupMember(ctx context.Context, userID int) error {
	path := fmt.Sprintf("/groups/owners/users/%d", userID)
	return c.do(ctx, http.MethodGet, path, nil, nil)
}

// UserByID resolves a store user.
func (c *RESTClient) UserByID(ctx context.Context, id int) (report.UserRef, error) {
	var u WireUser
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/users/%d", id), nil, &u); err != nil {
		return report.UserRef{}, fmt.Errorf("user %d: %w", id, err)
	}
	return report.UserRef{ID: u.ID, Title: u.Title, Email: u.EMail}, nil
}

// FileContent fetches a site-relative file's raw bytes.
// PRE: path is site-relative
// POST: Returns the body verbatim; ErrNotFound wraps 404s
func (c *RESTClient) FileContent(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/files?path="+url.QueryEscape(path), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("file %s: %w", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("file %s: %w", path, ErrNotFound)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("file %s: status %d", path, resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// SendMail dispatches a single send-mail call via the store's utility
// endpoint.
// PRE: msg has at least one recipient and a subject
// POST: Message accepted by the store for delivery
func (c *RESTClient) SendMail(ctx context.Context, msg Message) error {
	body := struct {
		To      []string `json:"To"`
		Subject string   `json:"Subject"`
		Body    string   `json:"Body"`
	}{To: msg.To, Subject: msg.Subject, Body: msg.Body}
	if err := c.do(ctx, http.MethodPost, "/email/send", body, nil); err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	return nil
}

// do performs one JSON round trip. 404 responses map to ErrNotFound; other
// non-2xx statuses become errors carrying the status code.
func (c *RESTClient) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%s %s: status %d", method, path, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
