package source

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/ppiankov/verifact/internal/model"
)

// AuthorityClassifier assigns sources to authority tiers by URL
type AuthorityClassifier struct {
	domainMap    map[string]model.AuthorityTier
	primary      []string
	secondary    []string
	pathPatterns []compiledPattern
}

type compiledPattern struct {
	pattern *regexp.Regexp
	tier    model.AuthorityTier
}

// NewAuthorityClassifier creates a classifier. A nil config uses the defaults.
// Path patterns that fail to compile are skipped.
func NewAuthorityClassifier(config *model.AuthorityConfig) *AuthorityClassifier {
	if config == nil {
		config = &model.DefaultConfig().Authority
	}

	c := &AuthorityClassifier{
		domainMap: make(map[string]model.AuthorityTier, len(config.DomainMap)),
		primary:   normalizeDomains(config.PrimaryDomains),
		secondary: normalizeDomains(config.SecondaryDomains),
	}

	for host, tier := range config.DomainMap {
		c.domainMap[strings.ToLower(host)] = ParseTier(tier)
	}

	for _, pp := range config.PathPatterns {
		re, err := regexp.Compile(pp.Pattern)
		if err != nil {
			continue
		}
		c.pathPatterns = append(c.pathPatterns, compiledPattern{pattern: re, tier: ParseTier(pp.Tier)})
	}

	return c
}

// Classify returns the tier of rawURL. Unparseable URLs are tertiary.
func (c *AuthorityClassifier) Classify(rawURL string) model.AuthorityTier {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		return model.TierTertiary
	}

	host := strings.TrimPrefix(strings.ToLower(parsed.Hostname()), "www.")

	// Explicit mappings win
	if tier, ok := c.domainMap[host]; ok {
		return tier
	}

	if matchesDomain(host, c.primary) {
		return model.TierPrimary
	}
	if matchesDomain(host, c.secondary) {
		return model.TierSecondary
	}

	for _, cp := range c.pathPatterns {
		if cp.pattern.MatchString(parsed.Path) {
			return cp.tier
		}
	}

	// Government and academic hosts
	for _, suffix := range []string{".gov", ".mil", ".edu", ".ac.uk", ".gov.uk"} {
		if strings.HasSuffix(host, suffix) {
			return model.TierPrimary
		}
	}

	return model.TierTertiary
}

// ClassifySources returns the tiers of sources that carry a URL, in input order
func (c *AuthorityClassifier) ClassifySources(sources []model.SourceDocument) []model.SourceTier {
	var tiers []model.SourceTier
	for _, s := range sources {
		if strings.TrimSpace(s.URL) == "" {
			continue
		}
		tiers = append(tiers, model.SourceTier{Name: s.Name, URL: s.URL, Tier: c.Classify(s.URL)})
	}
	return tiers
}

// ParseTier converts a config tier name or number to a tier
func ParseTier(tier string) model.AuthorityTier {
	switch strings.ToLower(strings.TrimSpace(tier)) {
	case "primary", "1":
		return model.TierPrimary
	case "secondary", "2":
		return model.TierSecondary
	default:
		return model.TierTertiary
	}
}

func normalizeDomains(domains []string) []string {
	out := make([]string, 0, len(domains))
	for _, d := range domains {
		if d = strings.ToLower(strings.TrimSpace(d)); d != "" {
			out = append(out, d)
		}
	}
	return out
}

// matchesDomain reports whether host is one of domains or a subdomain of one
func matchesDomain(host string, domains []string) bool {
	for _, d := range domains {
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}
