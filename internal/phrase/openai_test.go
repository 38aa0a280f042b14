package phrase

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAI_Extract(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "test-model", req.Model)
		require.Len(t, req.Messages, 1)
		assert.Contains(t, req.Messages[0].Content, "Extract the top 5 relevant keywords")
		assert.Contains(t, req.Messages[0].Content, "We handle car accident cases")

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"car accident lawyer, personal injury\n- wrongful death\n2. Car Accident Lawyer"}}]}`))
	}))
	defer ts.Close()

	o, err := NewOpenAI(OpenAIConfig{APIKey: "sk-test", BaseURL: ts.URL + "/v1/", Model: "test-model", MaxPhrases: 5}, nil)
	require.NoError(t, err)

	got, err := o.Extract(context.Background(), "We handle car accident cases")
	require.NoError(t, err)
	assert.Equal(t, []string{"car accident lawyer", "personal injury", "wrongful death"}, got)
}

func TestOpenAI_ErrorStatus(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"rate limited"}}`))
	}))
	defer ts.Close()

	o, err := NewOpenAI(OpenAIConfig{APIKey: "sk-test", BaseURL: ts.URL}, nil)
	require.NoError(t, err)

	_, err = o.Extract(context.Background(), "text")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

func TestOpenAI_EmptyChoices(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer ts.Close()

	o, err := NewOpenAI(OpenAIConfig{APIKey: "sk-test", BaseURL: ts.URL}, nil)
	require.NoError(t, err)

	_, err = o.Extract(context.Background(), "text")
	assert.ErrorContains(t, err, "empty response")
}

func TestParseKeywordList(t *testing.T) {
	got := parseKeywordList(" \"injury lawyer\", 3D printing ,\n1) free consultation\n* \n", 0)
	assert.Equal(t, []string{"injury lawyer", "3D printing", "free consultation"}, got)
}
