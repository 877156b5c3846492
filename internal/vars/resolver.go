package vars

import (
	"regexp"

	"github.com/unkn0wn-root/apiuse/internal/model"
)

// Provider resolves a variable name to its value. Lookup is exact-match and
// case-sensitive.
type Provider interface {
	Resolve(name string) (string, bool)
	Label() string
}

// Resolver substitutes {{identifier}} placeholders. A placeholder whose name
// no provider can resolve stays in the text untouched - unresolved variables
// are not an error.
type Resolver struct {
	providers []Provider
}

func NewResolver(providers ...Provider) *Resolver {
	return &Resolver{providers: providers}
}

var placeholderPattern = regexp.MustCompile(`\{\{(\w+)\}\}`)

func (r *Resolver) Resolve(name string) (string, bool) {
	if r == nil {
		return "", false
	}
	for _, provider := range r.providers {
		if value, ok := provider.Resolve(name); ok {
			return value, true
		}
	}
	return "", false
}

// Expand replaces every {{name}} occurrence that resolves, leaving the rest
// of the input byte-for-byte unchanged.
func (r *Resolver) Expand(input string) string {
	if r == nil || len(r.providers) == 0 {
		return input
	}
	return placeholderPattern.ReplaceAllStringFunc(input, func(match string) string {
		sub := placeholderPattern.FindStringSubmatch(match)
		if len(sub) < 2 {
			return match
		}
		if value, ok := r.Resolve(sub[1]); ok {
			return value
		}
		return match
	})
}

// EnvironmentProvider exposes an environment's enabled variables. Disabled
// entries are invisible to resolution; duplicate keys follow list order, the
// later entry winning.
type EnvironmentProvider struct {
	label  string
	values map[string]string
}

func NewEnvironmentProvider(env *model.Environment) Provider {
	if env == nil {
		return &EnvironmentProvider{}
	}
	values := make(map[string]string, len(env.Variables))
	for _, v := range env.Variables {
		if !v.Enabled || v.Key == "" {
			continue
		}
		values[v.Key] = v.Value
	}
	return &EnvironmentProvider{label: env.Name, values: values}
}

func (p *EnvironmentProvider) Resolve(name string) (string, bool) {
	value, ok := p.values[name]
	return value, ok
}

func (p *EnvironmentProvider) Label() string {
	return p.label
}
