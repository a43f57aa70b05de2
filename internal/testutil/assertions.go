package testutil

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Envelope mirrors the API response body. Data is left raw so tests can decode
// it into the type they expect.
type Envelope struct {
	Success    bool            `json:"success"`
	Message    string          `json:"message"`
	Data       json.RawMessage `json:"data"`
	Pagination *struct {
		Page  int   `json:"page"`
		Limit int   `json:"limit"`
		Total int64 `json:"total"`
		Pages int   `json:"pages"`
	} `json:"pagination"`
	Errors []struct {
		Field   string `json:"field"`
		Message string `json:"message"`
	} `json:"errors"`
}

// DoJSON sends body as JSON with an optional bearer token
func DoJSON(t *testing.T, method, url, token string, body interface{}) *http.Response {
	t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err, "failed to marshal request body")
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err, "failed to build request")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err, "request failed")
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

// AssertStatusCode verifies the HTTP response status code
func AssertStatusCode(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	assert.Equal(t, expected, resp.StatusCode, "unexpected status code")
}

// DecodeEnvelope reads the response envelope and, when data is non-nil,
// decodes its data member into it
func DecodeEnvelope(t *testing.T, resp *http.Response, data interface{}) Envelope {
	t.Helper()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err, "failed to read response body")

	var env Envelope
	require.NoError(t, json.Unmarshal(body, &env), "failed to unmarshal response: %s", string(body))
	if data != nil {
		require.NotEmpty(t, env.Data, "response has no data: %s", string(body))
		require.NoError(t, json.Unmarshal(env.Data, data), "failed to unmarshal data: %s", string(env.Data))
	}
	return env
}

// AssertSuccess verifies status and a successful envelope, decoding data
func AssertSuccess(t *testing.T, resp *http.Response, expectedStatus int, data interface{}) Envelope {
	t.Helper()

	require.Equal(t, expectedStatus, resp.StatusCode, "unexpected status code")
	env := DecodeEnvelope(t, resp, data)
	assert.True(t, env.Success, "expected a successful envelope, got %q", env.Message)
	return env
}

// AssertErrorResponse verifies error response with expected status and message
func AssertErrorResponse(t *testing.T, resp *http.Response, expectedStatus int, expectedMessage string) Envelope {
	t.Helper()

	assert.Equal(t, expectedStatus, resp.StatusCode, "unexpected status code")
	env := DecodeEnvelope(t, resp, nil)
	assert.False(t, env.Success)
	assert.Contains(t, env.Message, expectedMessage, "error message mismatch")
	return env
}

// AssertFieldErrors verifies a 400 validation response naming every field
func AssertFieldErrors(t *testing.T, resp *http.Response, fields ...string) {
	t.Helper()

	env := AssertErrorResponse(t, resp, http.StatusBadRequest, "validation failed")
	got := make([]string, 0, len(env.Errors))
	for _, e := range env.Errors {
		got = append(got, e.Field)
	}
	for _, field := range fields {
		assert.Contains(t, got, field, "missing field error")
	}
}
