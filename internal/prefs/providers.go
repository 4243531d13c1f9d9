package prefs

import "strings"

type Provider struct {
	Kind  string
	Label string
	// Compatible providers talk the OpenAI wire format and need a base URL.
	Compatible bool
}

var Providers = []Provider{
	{Kind: "local", Label: "Local template"},
	{Kind: "openai", Label: "OpenAI compatible", Compatible: true},
	{Kind: "deepseek", Label: "DeepSeek (compatible)", Compatible: true},
	{Kind: "qwen", Label: "Qwen (compatible)", Compatible: true},
}

func Lookup(kind string) (Provider, bool) {
	kind = strings.ToLower(strings.TrimSpace(kind))
	for _, p := range Providers {
		if p.Kind == kind {
			return p, true
		}
	}
	return Provider{}, false
}

// Label names a provider for display. Unknown kinds show as typed.
func Label(kind string) string {
	if strings.TrimSpace(kind) == "" {
		return "Backend defaults"
	}
	if p, ok := Lookup(kind); ok {
		return p.Label
	}
	return kind
}
