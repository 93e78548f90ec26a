package knowledge

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xhad/company-agent/pkg/notice"
)

func TestGetKnowledge(t *testing.T) {
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`["Microsoft was founded in 1975.", "It makes Windows."]`))
	}))
	defer server.Close()

	items, err := New().GetKnowledge(context.Background(), server.URL+"/knowledge/", "microsoft.com")
	require.NoError(t, err)
	assert.Equal(t, "/knowledge/microsoft.com", gotPath)
	assert.Equal(t, []string{"Microsoft was founded in 1975.", "It makes Windows."}, items)
}

func TestEndpoint(t *testing.T) {
	tests := []struct {
		apiURL string
		domain string
		want   string
	}{
		{"http://kb.local/api", "microsoft.com", "http://kb.local/api/microsoft.com"},
		{"http://kb.local/api/", "microsoft.com", "http://kb.local/api/microsoft.com"},
		{"http://kb.local", "a b/c", "http://kb.local/a%20b%2Fc"},
	}

	for _, tt := range tests {
		t.Run(tt.domain, func(t *testing.T) {
			assert.Equal(t, tt.want, Endpoint(tt.apiURL, tt.domain))
		})
	}
}

func TestParse(t *testing.T) {
	items, err := Parse([]byte(`["a", 42, true, null, {"b": [1, 2]}, "a"]`))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "42", "true", "null", `{"b":[1,2]}`, "a"}, items)

	_, err = Parse([]byte(`{"items": []}`))
	assert.Error(t, err)

	_, err = Parse([]byte(`null`))
	assert.Error(t, err)
}

func TestGetKnowledgeWithoutURL(t *testing.T) {
	items, err := New().GetKnowledge(context.Background(), "", "apple.com")
	require.NoError(t, err)
	assert.Equal(t, DemoKnowledge("apple.com"), items)

	items, err = New().GetKnowledge(context.Background(), "", "unknown.example")
	assert.Empty(t, items)
	assert.ErrorIs(t, err, notice.ErrNoKnowledgeAvailable)
	assert.NotErrorIs(t, err, notice.ErrKnowledgeSourceUnavailable)
}

func TestGetKnowledgeFallback(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"not an array", http.StatusOK, `{"facts":["x"]}`},
		{"malformed", http.StatusOK, `[`},
		{"unauthorized", http.StatusUnauthorized, `{"detail":"nope"}`},
		{"server error", http.StatusBadGateway, ``},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			items, err := New().GetKnowledge(context.Background(), server.URL, "microsoft.com")
			assert.ErrorIs(t, err, notice.ErrKnowledgeSourceUnavailable)
			assert.NotErrorIs(t, err, notice.ErrNoKnowledgeAvailable)
			assert.Equal(t, DemoKnowledge("microsoft.com"), items)

			items, err = New().GetKnowledge(context.Background(), server.URL, "unknown.example")
			assert.ErrorIs(t, err, notice.ErrKnowledgeSourceUnavailable)
			assert.ErrorIs(t, err, notice.ErrNoKnowledgeAvailable)
			assert.Empty(t, items)
		})
	}
}

func TestGetKnowledgeTimeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	client := NewWithConfig(ClientConfig{Timeout: 50 * time.Millisecond})
	items, err := client.GetKnowledge(context.Background(), server.URL, "google.com")
	assert.ErrorIs(t, err, notice.ErrKnowledgeSourceUnavailable)
	assert.ErrorIs(t, err, notice.ErrTimeout)
	assert.Equal(t, DemoKnowledge("google.com"), items)
}

func TestGetKnowledgeEmptyLiveResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	}))
	defer server.Close()

	items, err := New().GetKnowledge(context.Background(), server.URL, "microsoft.com")
	assert.Empty(t, items)
	assert.ErrorIs(t, err, notice.ErrNoKnowledgeAvailable)
	assert.NotErrorIs(t, err, notice.ErrKnowledgeSourceUnavailable)
}
