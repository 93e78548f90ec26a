package crawl

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xhad/company-agent/pkg/notice"
)

func TestParseDomains(t *testing.T) {
	assert.Equal(t, []string{"example.com", "openai.com"}, ParseDomains("  example.com\n\n openai.com \n"))
	assert.Empty(t, ParseDomains("\n  \n"))
}

func TestSubmit(t *testing.T) {
	var got map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"message":"Crawling started"}`))
	}))
	defer server.Close()

	c := NewWithConfig(ClientConfig{})
	resp, err := c.Submit(context.Background(), server.URL, Request{
		Domains: []string{"example.com"},
		Prompt:  "Find pricing pages",
	})
	require.NoError(t, err)
	assert.Equal(t, "Crawling started", resp.Message)
	assert.Equal(t, []string{"example.com"}, resp.Domains)
	assert.Equal(t, map[string]any{
		"company_domains": []any{"example.com"},
		"lite_crawl":      false,
		"prompt":          "Find pricing pages",
	}, got)
}

func TestSubmitLiteDropsPrompt(t *testing.T) {
	var got map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
	}))
	defer server.Close()

	resp, err := NewWithConfig(ClientConfig{}).Submit(context.Background(), server.URL, Request{
		Domains: []string{"a.com", "b.com"},
		Lite:    true,
		Prompt:  "ignored",
	})
	require.NoError(t, err)
	assert.Equal(t, defaultMessage, resp.Message)
	assert.NotContains(t, got, "prompt")
	assert.Equal(t, true, got["lite_crawl"])
}

func TestSubmitValidation(t *testing.T) {
	c := NewWithConfig(ClientConfig{})
	ctx := context.Background()

	_, err := c.Submit(ctx, "", Request{Domains: []string{"a.com"}, Lite: true})
	assert.ErrorIs(t, err, ErrNotConfigured)

	_, err = c.Submit(ctx, "http://crawler.local", Request{Lite: true})
	assert.ErrorIs(t, err, ErrNoDomains)

	_, err = c.Submit(ctx, "http://crawler.local", Request{Domains: []string{"a.com"}})
	assert.ErrorIs(t, err, ErrPromptRequired)
}

func TestSubmitRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"detail":"bad domain"}`))
	}))
	defer server.Close()

	_, err := NewWithConfig(ClientConfig{}).Submit(context.Background(), server.URL, Request{
		Domains: []string{"not a domain"},
		Lite:    true,
	})
	assert.ErrorIs(t, err, notice.ErrCrawlSubmissionFailed)
	assert.Contains(t, err.Error(), "422")
}
