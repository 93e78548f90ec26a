package directory

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

func serve(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestListDomains(t *testing.T) {
	server := serve(t, http.StatusOK, `[{"domain":"microsoft.com","name":"Microsoft"}]`)

	domains, err := New().ListDomains(context.Background(), server.URL)
	require.NoError(t, err)
	require.Len(t, domains, 1)
	assert.Equal(t, "microsoft.com", domains[0].Domain)
	assert.Equal(t, "Microsoft", domains[0].Name)
	assert.Empty(t, domains[0].Extra)
}

func TestListDomainsWithoutURL(t *testing.T) {
	domains, err := New().ListDomains(context.Background(), "  ")
	require.NoError(t, err)
	assert.Equal(t, DemoDomains(), domains)
}

func TestListDomainsSkipsInvalidElements(t *testing.T) {
	server := serve(t, http.StatusOK, `[
		{"name":"No Domain"},
		"openai.com",
		null,
		{"domain":"apple.com","name":"Apple","founded":1976,"hq":"Cupertino"},
		{"company_domain":"stripe.com","company_name":"Stripe"},
		{"domain":"netflix.com"}
	]`)

	domains, err := New().ListDomains(context.Background(), server.URL)
	require.NoError(t, err)
	require.Len(t, domains, 3)

	assert.Equal(t, "apple.com", domains[0].Domain)
	assert.Equal(t, map[string]string{"founded": "1976", "hq": "Cupertino"}, domains[0].Extra)
	assert.Equal(t, "stripe.com", domains[1].Domain)
	assert.Equal(t, "Stripe", domains[1].Name)
	assert.Equal(t, "Netflix", domains[2].Name)
}

func TestListDomainsFallback(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"not json", http.StatusOK, `<html>oops</html>`},
		{"object", http.StatusOK, `{"companies":[{"domain":"microsoft.com"}]}`},
		{"array of non-objects", http.StatusOK, `[1, "two", true]`},
		{"empty array", http.StatusOK, `[]`},
		{"no usable domain", http.StatusOK, `[{"name":"Nameless"}]`},
		{"server error", http.StatusInternalServerError, `{"error":"boom"}`},
		{"not found", http.StatusNotFound, ``},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := serve(t, tt.status, tt.body)

			domains, err := New().ListDomains(context.Background(), server.URL)
			require.Error(t, err)
			assert.ErrorIs(t, err, notice.ErrDirectorySourceUnavailable)
			assert.Equal(t, DemoDomains(), domains)
		})
	}
}

func TestListDomainsUnreachable(t *testing.T) {
	server := serve(t, http.StatusOK, `[]`)
	url := server.URL
	server.Close()

	domains, err := New().ListDomains(context.Background(), url)
	assert.ErrorIs(t, err, notice.ErrDirectorySourceUnavailable)
	assert.NotEmpty(t, domains)
}

func TestListDomainsTimeout(t *testing.T) {
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
	domains, err := client.ListDomains(context.Background(), server.URL)
	assert.ErrorIs(t, err, notice.ErrDirectorySourceUnavailable)
	assert.ErrorIs(t, err, notice.ErrTimeout)
	assert.Equal(t, DemoDomains(), domains)
}

func TestDemoDomainsIsACopy(t *testing.T) {
	first := DemoDomains()
	first[0].Domain = "changed.com"
	first[0].Extra["industry"] = "changed"

	second := DemoDomains()
	assert.Equal(t, "microsoft.com", second[0].Domain)
	assert.Equal(t, "Software", second[0].Extra["industry"])
}
