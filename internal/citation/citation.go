// Package citation reconciles the two shapes of source attribution a chat
// response can carry: structured citation objects and legacy bare URL lists.
package citation

import "strings"

// securePrefix is the only URL scheme citations may reference.
const securePrefix = "https://"

// Citation points at the material an answer was grounded on.
type Citation struct {
	Source string `json:"source"`
	Label  string `json:"label"`
	URL    string `json:"url"`
}

// Valid reports whether a citation passes the policy filter: all three
// fields non-empty after trimming and a secure URL.
func (c Citation) Valid() bool {
	return strings.TrimSpace(c.Source) != "" &&
		strings.TrimSpace(c.Label) != "" &&
		strings.HasPrefix(strings.TrimSpace(c.URL), securePrefix)
}

// Normalize trims, policy-filters, and de-duplicates a citation list.
// Duplicates collapse by URL, first occurrence wins; order is preserved.
// Invalid entries are dropped, never surfaced.
func Normalize(list []Citation) []Citation {
	var out []Citation
	seen := make(map[string]bool)
	for _, c := range list {
		c.Source = strings.TrimSpace(c.Source)
		c.Label = strings.TrimSpace(c.Label)
		c.URL = strings.TrimSpace(c.URL)
		if !c.Valid() || seen[c.URL] {
			continue
		}
		seen[c.URL] = true
		out = append(out, c)
	}
	return out
}

// Response is the citation-bearing part of a chat answer. Citations is the
// structured form; Sources is the legacy bare-URL form older backends emit.
type Response struct {
	Citations []Citation `json:"citations,omitempty"`
	Sources   []string   `json:"sources,omitempty"`
}

// Reconcile merges the two possible citation shapes into one canonical list.
// A structured list with at least one valid entry fully supersedes the
// legacy list; otherwise each secure legacy URL is synthesized into a
// citation with source = label = url. The two shapes are never mixed, and
// an absent or fully-invalid input yields an empty result.
func Reconcile(resp Response) []Citation {
	if structured := Normalize(resp.Citations); len(structured) > 0 {
		return structured
	}

	var out []Citation
	seen := make(map[string]bool)
	for _, raw := range resp.Sources {
		u := strings.TrimSpace(raw)
		if !strings.HasPrefix(u, securePrefix) || seen[u] {
			continue
		}
		seen[u] = true
		out = append(out, Citation{Source: u, Label: u, URL: u})
	}
	return out
}
