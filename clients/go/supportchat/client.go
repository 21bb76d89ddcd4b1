// Package supportchat provides a client for the support chat gateway API.
package supportchat

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a support chat gateway API client.
type Client struct {
	BaseURL    string
	Token      string // operator bearer token
	HTTPClient *http.Client
}

// NewClient creates a new gateway client.
func NewClient(baseURL, token string) *Client {
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}
	return &Client{
		BaseURL:    baseURL,
		Token:      token,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// doRequest performs an HTTP request.
func (c *Client) doRequest(method, path string, body []byte) ([]byte, error) {
	req, err := http.NewRequest(method, c.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/json")
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= 400 {
		var errResp struct {
			Error string `json:"error"`
		}
		json.Unmarshal(respBody, &errResp)
		return nil, fmt.Errorf("gateway error %d: %s", resp.StatusCode, errResp.Error)
	}

	return respBody, nil
}

// Conversation is a roster entry.
type Conversation struct {
	ID          string `json:"id"`
	UserID      string `json:"user_id"`
	UserName    string `json:"user_name,omitempty"`
	Area        string `json:"area,omitempty"`
	LastMessage string `json:"last_message,omitempty"`
	UpdatedAt   int64  `json:"updated_at"`
}

// RosterResponse is the conversation list response.
type RosterResponse struct {
	Conversations []Conversation `json:"conversations"`
	Total         int            `json:"total"`
}

// Roster lists the operator's conversations.
func (c *Client) Roster(filter string) (*RosterResponse, error) {
	path := "/conversations"
	if filter != "" {
		path += "?q=" + url.QueryEscape(filter)
	}

	respBody, err := c.doRequest("GET", path, nil)
	if err != nil {
		return nil, err
	}

	var resp RosterResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Message is a chat message as returned by the gateway.
type Message struct {
	ID         string `json:"id"`
	SenderID   string `json:"from"`
	SenderName string `json:"from_name,omitempty"`
	Kind       string `json:"kind"`
	Text       string `json:"text,omitempty"`
	AudioURL   string `json:"audio_url,omitempty"`
	Status     string `json:"status"`
	Timestamp  int64  `json:"ts"`
}

// SendText sends a text message into a conversation.
func (c *Client) SendText(conversationID, text string) (*Message, error) {
	body, _ := json.Marshal(map[string]string{"text": text})

	respBody, err := c.doRequest("POST", "/conversations/"+conversationID+"/messages", body)
	if err != nil {
		return nil, err
	}

	var msg Message
	if err := json.Unmarshal(respBody, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// Command is a reply template.
type Command struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Kind  string `json:"kind"`
	Body  string `json:"body,omitempty"`
}

// CommandsResponse is the template catalog response.
type CommandsResponse struct {
	Commands []Command `json:"commands"`
	Total    int       `json:"total"`
}

// Commands lists the reply-template catalog.
func (c *Client) Commands() (*CommandsResponse, error) {
	respBody, err := c.doRequest("GET", "/commands", nil)
	if err != nil {
		return nil, err
	}

	var resp CommandsResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// HealthResponse is the health endpoint response.
type HealthResponse struct {
	Status    string                 `json:"status"`
	Version   string                 `json:"version"`
	Checks    map[string]interface{} `json:"checks"`
	Timestamp string                 `json:"timestamp"`
}

// Health checks gateway health.
func (c *Client) Health() (*HealthResponse, error) {
	respBody, err := c.doRequest("GET", "/health", nil)
	if err != nil {
		return nil, err
	}

	var resp HealthResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SnapshotFunc receives each feed snapshot while tailing a stream.
type SnapshotFunc func(messages []Message)

// Tail follows a conversation's SSE feed, invoking fn for every
// snapshot until the context is cancelled or the stream ends.
func (c *Client) Tail(ctx context.Context, conversationID string, fn SnapshotFunc) error {
	req, err := http.NewRequestWithContext(ctx, "GET", c.BaseURL+"/conversations/"+conversationID+"/stream", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	// streaming request: no client timeout
	httpClient := &http.Client{}
	resp, err := httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("gateway error %d", resp.StatusCode)
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	event := ""
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "event: "):
			event = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			data := strings.TrimPrefix(line, "data: ")
			if event == "error" {
				return fmt.Errorf("feed error: %s", data)
			}
			var messages []Message
			if err := json.Unmarshal([]byte(data), &messages); err == nil {
				fn(messages)
			}
		case line == "":
			event = ""
		}
	}
	return scanner.Err()
}
