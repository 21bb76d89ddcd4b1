// Package backend provides a client for the platform REST API.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/fitwellhq/supportchat/internal/metrics"
	"github.com/fitwellhq/supportchat/internal/models"
)

// Client is a platform REST API client. BaseURL includes the API
// version segment (e.g. http://localhost:3002/api/v1).
type Client struct {
	BaseURL    string
	Token      string // service bearer token
	HTTPClient *http.Client
}

// NewClient creates a new backend client.
func NewClient(baseURL, token string) *Client {
	return &Client{
		BaseURL:    baseURL,
		Token:      token,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// apiError is the backend's JSON error envelope.
type apiError struct {
	Error string `json:"error"`
}

// doRequest performs an HTTP request against the backend. An empty
// token falls back to the client's service token.
func (c *Client) doRequest(ctx context.Context, method, path string, body []byte, contentType, token string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	if contentType == "" {
		contentType = "application/json"
	}
	req.Header.Set("Content-Type", contentType)
	if token == "" {
		token = c.Token
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.HTTPClient.Do(req)
	metrics.BackendLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= 400 {
		var errResp apiError
		json.Unmarshal(respBody, &errResp)
		return nil, fmt.Errorf("backend error %d: %s", resp.StatusCode, errResp.Error)
	}

	return respBody, nil
}

// CommandsResponse is the response from listing reply templates.
type CommandsResponse struct {
	Commands []models.Command `json:"data"`
}

// ListCommands retrieves the reply-template catalog.
func (c *Client) ListCommands(ctx context.Context) ([]models.Command, error) {
	respBody, err := c.doRequest(ctx, "GET", "/commands", nil, "", "")
	if err != nil {
		return nil, err
	}

	var resp CommandsResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, err
	}
	return resp.Commands, nil
}

// UsersResponse is the response from listing platform users.
type UsersResponse struct {
	Users []models.User `json:"data"`
}

// ListUsers retrieves the user directory.
func (c *Client) ListUsers(ctx context.Context) ([]models.User, error) {
	respBody, err := c.doRequest(ctx, "GET", "/users", nil, "", "")
	if err != nil {
		return nil, err
	}

	var resp UsersResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, err
	}
	return resp.Users, nil
}

// BranchesResponse is the response from listing branches.
type BranchesResponse struct {
	Branches []models.Branch `json:"data"`
}

// ListBranches retrieves all branches.
func (c *Client) ListBranches(ctx context.Context) ([]models.Branch, error) {
	respBody, err := c.doRequest(ctx, "GET", "/branches", nil, "", "")
	if err != nil {
		return nil, err
	}

	var resp BranchesResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, err
	}
	return resp.Branches, nil
}

// UploadResponse is the response from the upload endpoint. The backend
// returns a reference which callers still need to pass through the URL
// resolver before handing it to a player.
type UploadResponse struct {
	FileURL string `json:"fileUrl"`
}

// Upload submits a blob to the backend's upload endpoint and returns
// the backend-provided reference.
func (c *Client) Upload(ctx context.Context, data []byte, filename, mimeType string) (string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return "", err
	}
	if _, err := part.Write(data); err != nil {
		return "", err
	}
	if mimeType != "" {
		_ = mw.WriteField("type", mimeType)
	}
	if err := mw.Close(); err != nil {
		return "", err
	}

	respBody, err := c.doRequest(ctx, "POST", "/generate-url", buf.Bytes(), mw.FormDataContentType(), "")
	if err != nil {
		return "", err
	}

	var resp UploadResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return "", err
	}
	if resp.FileURL == "" {
		return "", fmt.Errorf("backend returned empty file reference")
	}
	return resp.FileURL, nil
}

// Me resolves the operator identity behind a console bearer token.
func (c *Client) Me(ctx context.Context, token string) (*models.Operator, error) {
	respBody, err := c.doRequest(ctx, "GET", "/auth/me", nil, "", token)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Operator models.Operator `json:"data"`
	}
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, err
	}
	if resp.Operator.ID == "" {
		return nil, fmt.Errorf("backend returned empty operator")
	}
	return &resp.Operator, nil
}
