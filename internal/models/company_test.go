package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNameFromDomain(t *testing.T) {
	tests := []struct {
		domain string
		want   string
	}{
		{"microsoft.com", "Microsoft"},
		{"APPLE.com", "Apple"},
		{"ñandu.com", "Ñandu"},
		{"élan.fr", "Élan"},
		{"localhost", "Localhost"},
		{".com", ".com"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.domain, func(t *testing.T) {
			assert.Equal(t, tt.want, NameFromDomain(tt.domain))
		})
	}
}

func TestDisplayName(t *testing.T) {
	assert.Equal(t, "Alphabet", CompanyDomain{Domain: "google.com", Name: "Alphabet"}.DisplayName())
	assert.Equal(t, "Google", CompanyDomain{Domain: "google.com"}.DisplayName())
}
