package vars

import (
	"testing"

	"github.com/unkn0wn-root/apiuse/internal/model"
)

func devEnv() *model.Environment {
	return &model.Environment{
		Name: "dev",
		Variables: []model.KV{
			{Key: "base", Value: "https://dev.example.com", Enabled: true},
			{Key: "token", Value: "secret", Enabled: true},
			{Key: "off", Value: "hidden", Enabled: false},
		},
	}
}

func TestExpandReplacesKnownPlaceholders(t *testing.T) {
	r := NewResolver(NewEnvironmentProvider(devEnv()))

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"single", "{{base}}/users", "https://dev.example.com/users"},
		{"multiple", "{{base}}/{{token}}", "https://dev.example.com/secret"},
		{"unknown kept", "{{base}}/{{missing}}", "https://dev.example.com/{{missing}}"},
		{"disabled kept", "x={{off}}", "x={{off}}"},
		{"no placeholders", "plain text", "plain text"},
		{"case sensitive", "{{Base}}", "{{Base}}"},
		{"malformed single braces", "{base}", "{base}"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := r.Expand(tt.input); got != tt.want {
				t.Fatalf("Expand(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestExpandLaterDuplicateWins(t *testing.T) {
	env := &model.Environment{
		Name: "dup",
		Variables: []model.KV{
			{Key: "host", Value: "first", Enabled: true},
			{Key: "host", Value: "second", Enabled: true},
		},
	}
	r := NewResolver(NewEnvironmentProvider(env))
	if got := r.Expand("{{host}}"); got != "second" {
		t.Fatalf("Expand = %q, want %q", got, "second")
	}
}

func TestExpandNilResolverPassesThrough(t *testing.T) {
	var r *Resolver
	if got := r.Expand("{{base}}/x"); got != "{{base}}/x" {
		t.Fatalf("nil resolver changed input: %q", got)
	}
}

func TestExpandEmptyResolverPassesThrough(t *testing.T) {
	r := NewResolver()
	if got := r.Expand("{{base}}"); got != "{{base}}" {
		t.Fatalf("empty resolver changed input: %q", got)
	}
}

func TestResolveWalksProvidersInOrder(t *testing.T) {
	first := NewEnvironmentProvider(&model.Environment{
		Name:      "first",
		Variables: []model.KV{{Key: "shared", Value: "a", Enabled: true}},
	})
	second := NewEnvironmentProvider(&model.Environment{
		Name: "second",
		Variables: []model.KV{
			{Key: "shared", Value: "b", Enabled: true},
			{Key: "extra", Value: "c", Enabled: true},
		},
	})
	r := NewResolver(first, second)

	if got, ok := r.Resolve("shared"); !ok || got != "a" {
		t.Fatalf("Resolve(shared) = %q %v, want a", got, ok)
	}
	if got, ok := r.Resolve("extra"); !ok || got != "c" {
		t.Fatalf("Resolve(extra) = %q %v, want c", got, ok)
	}
	if _, ok := r.Resolve("nope"); ok {
		t.Fatalf("Resolve(nope) should miss")
	}
}

func TestNewEnvironmentProviderNil(t *testing.T) {
	p := NewEnvironmentProvider(nil)
	if _, ok := p.Resolve("anything"); ok {
		t.Fatalf("nil environment should resolve nothing")
	}
	if p.Label() != "" {
		t.Fatalf("nil environment label = %q", p.Label())
	}
}
