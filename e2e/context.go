package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// TestContext carries HTTP state between the steps of one scenario.
type TestContext struct {
	baseURL    string
	client     *http.Client
	actorID    string
	actorRole  string
	status     int
	body       []byte
	parsed     any
	remembered map[string]string
}

func NewTestContext(baseURL string) *TestContext {
	return &TestContext{
		baseURL:    strings.TrimRight(baseURL, "/"),
		client:     &http.Client{Timeout: 10 * time.Second},
		remembered: make(map[string]string),
	}
}

// Reset clears per-scenario state.
func (tc *TestContext) Reset() {
	tc.actorID, tc.actorRole = "", ""
	tc.status, tc.body, tc.parsed = 0, nil, nil
	tc.remembered = make(map[string]string)
}

func (tc *TestContext) SetActor(id, role string) {
	tc.actorID, tc.actorRole = id, role
}

func (tc *TestContext) GET(path string) error {
	return tc.Do(http.MethodGet, path, nil)
}

func (tc *TestContext) POST(path string, body any) error {
	return tc.Do(http.MethodPost, path, body)
}

func (tc *TestContext) PATCH(path string, body any) error {
	return tc.Do(http.MethodPatch, path, body)
}

// Do sends a request after expanding {name} placeholders with remembered
// values.
func (tc *TestContext) Do(method, path string, body any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(context.Background(), method, tc.baseURL+tc.Expand(path), reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if tc.actorID != "" {
		req.Header.Set("X-Actor-ID", tc.actorID)
		req.Header.Set("X-Actor-Role", tc.actorRole)
	}

	resp, err := tc.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	tc.status = resp.StatusCode
	tc.body, err = io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	tc.parsed = nil
	if len(tc.body) > 0 {
		_ = json.Unmarshal(tc.body, &tc.parsed)
	}
	return nil
}

func (tc *TestContext) Status() int { return tc.status }

func (tc *TestContext) Body() string { return string(tc.body) }

// Field resolves a dotted path such as "lot.qr_id" or "timeline.0.event_type"
// in the last JSON response.
func (tc *TestContext) Field(path string) (any, error) {
	cur := tc.parsed
	for _, part := range strings.Split(path, ".") {
		switch node := cur.(type) {
		case map[string]any:
			v, ok := node[part]
			if !ok {
				return nil, fmt.Errorf("field %q not found in %s", path, tc.body)
			}
			cur = v
		case []any:
			var idx int
			if _, err := fmt.Sscanf(part, "%d", &idx); err != nil || idx < 0 || idx >= len(node) {
				return nil, fmt.Errorf("index %q out of range in %q", part, path)
			}
			cur = node[idx]
		default:
			return nil, fmt.Errorf("field %q not found in %s", path, tc.body)
		}
	}
	return cur, nil
}

func (tc *TestContext) Remember(name, value string) {
	tc.remembered[name] = value
}

func (tc *TestContext) Expand(s string) string {
	for k, v := range tc.remembered {
		s = strings.ReplaceAll(s, "{"+k+"}", v)
	}
	return s
}
