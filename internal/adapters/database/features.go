package database

import (
	"fmt"
	"regexp"

	"github.com/hashicorp/go-version"

	"github.com/hazaarlabs/dbi/internal/core/query/domain"
)

var versionPattern = regexp.MustCompile(`\d+(?:\.\d+){0,2}`)

type featureGate struct {
	constraint string
	disable    func(*domain.Features)
}

// featureGates lists the minimum server versions of version dependent clauses.
var featureGates = map[domain.Dialect][]featureGate{
	domain.PostgreSQL: {
		{">= 9.5", func(f *domain.Features) { f.Upsert = false }},
		{">= 8.4", func(f *domain.Features) { f.FetchFirst = false }},
	},
	domain.SQLite: {
		{">= 3.24", func(f *domain.Features) { f.Upsert = false }},
		{">= 3.30", func(f *domain.Features) { f.NullsOrder = false }},
		{">= 3.35", func(f *domain.Features) { f.Returning = false }},
	},
}

// FeaturesFor returns the features of a dialect at the given server version. An empty
// version yields the features of a current server.
func FeaturesFor(dialect domain.Dialect, serverVersion string) (domain.Features, error) {
	features := domain.DefaultFeatures(dialect)
	if serverVersion == "" {
		return features, nil
	}

	v, err := ParseServerVersion(serverVersion)
	if err != nil {
		return features, err
	}
	for _, gate := range featureGates[dialect] {
		c, err := version.NewConstraint(gate.constraint)
		if err != nil {
			return features, fmt.Errorf("invalid feature constraint %q: %w", gate.constraint, err)
		}
		if !c.Check(v) {
			gate.disable(&features)
		}
	}
	return features, nil
}

// ParseServerVersion extracts the numeric version from a server version banner such as
// "16.2 (Debian 16.2-1.pgdg120+2)" or "8.0.36-0ubuntu0.22.04.1".
func ParseServerVersion(banner string) (*version.Version, error) {
	raw := versionPattern.FindString(banner)
	if raw == "" {
		return nil, fmt.Errorf("failed to parse server version %q", banner)
	}
	v, err := version.NewVersion(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to parse server version %q: %w", banner, err)
	}
	return v, nil
}
