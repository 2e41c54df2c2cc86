package tiergate

import "strings"

// CredentialResolver maps a model identifier to a bearer token. A candidate
// with no resolvable credential is skipped without consuming a retry.
type CredentialResolver interface {
	Resolve(identifier string) (credential string, ok bool)
}

// MapResolver resolves credentials in three layers: an exact per-model
// override, then a provider-family default matched by identifier prefix
// (e.g. "mistralai/"), then a global default.
type MapResolver struct {
	PerModel map[string]string `yaml:"per_model"`
	Family   map[string]string `yaml:"family"`
	Default  string            `yaml:"default"`
}

var _ CredentialResolver = MapResolver{}

func (r MapResolver) Resolve(identifier string) (string, bool) {
	if key, ok := r.PerModel[identifier]; ok && key != "" {
		return key, true
	}
	for prefix, key := range r.Family {
		if key != "" && strings.HasPrefix(identifier, prefix) {
			return key, true
		}
	}
	if r.Default != "" {
		return r.Default, true
	}
	return "", false
}

// overlayResolver layers per-request credentials over a base resolver.
// It exists for the lifetime of one query; the base is never mutated.
type overlayResolver struct {
	overrides map[string]string
	base      CredentialResolver
}

func (r overlayResolver) Resolve(identifier string) (string, bool) {
	if key, ok := r.overrides[identifier]; ok && key != "" {
		return key, true
	}
	if r.base == nil {
		return "", false
	}
	return r.base.Resolve(identifier)
}
