package directory

import "github.com/xhad/company-agent/internal/models"

var demoDomains = []models.CompanyDomain{
	{Domain: "microsoft.com", Name: "Microsoft", Extra: map[string]string{"industry": "Software"}},
	{Domain: "apple.com", Name: "Apple", Extra: map[string]string{"industry": "Consumer Electronics"}},
	{Domain: "google.com", Name: "Google", Extra: map[string]string{"industry": "Internet Services"}},
	{Domain: "amazon.com", Name: "Amazon", Extra: map[string]string{"industry": "E-commerce"}},
}

// DemoDomains returns a fresh copy of the static demo list.
func DemoDomains() []models.CompanyDomain {
	out := make([]models.CompanyDomain, len(demoDomains))
	for i, d := range demoDomains {
		out[i] = d
		out[i].Extra = make(map[string]string, len(d.Extra))
		for k, v := range d.Extra {
			out[i].Extra[k] = v
		}
	}
	return out
}
