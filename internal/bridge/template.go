package bridge

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"text/template"

	"github.com/tuannvm/ticket-actions/internal/config"
)

// TemplateDef is the declarative form of a request template. URL and header
// values are text/template strings evaluated against {{.context.<key>}} and
// {{.iparams.<key>}}.
type TemplateDef struct {
	Method  string
	URL     string
	Headers map[string]string
}

type compiledTemplate struct {
	name    string
	method  string
	url     *template.Template
	headers map[string]*template.Template
}

// Registry holds the compiled request templates of one installation
type Registry struct {
	templates map[string]*compiledTemplate
	iparams   map[string]string
}

var templateFuncs = template.FuncMap{
	// path escapes a value used as one URL path segment
	"path": url.PathEscape,
	"basic": func(user, pass string) string {
		return base64.StdEncoding.EncodeToString([]byte(user + ":" + pass))
	},
}

// DefaultTemplates returns the request templates of a Freshdesk installation
func DefaultTemplates() map[string]TemplateDef {
	platform := map[string]string{
		"Authorization": `Basic {{basic .iparams.api_key "X"}}`,
		"Content-Type":  "application/json",
	}
	external := map[string]string{
		"Content-Type": "application/json",
	}
	return map[string]TemplateDef{
		TemplateGetTicket: {
			Method:  http.MethodGet,
			URL:     "{{.iparams.base_url}}/api/v2/tickets/{{path .context.ticket_id}}",
			Headers: platform,
		},
		TemplateGetContact: {
			Method:  http.MethodGet,
			URL:     "{{.iparams.base_url}}/api/v2/contacts/{{path .context.contact_id}}",
			Headers: platform,
		},
		TemplateGetTicketFields: {
			Method:  http.MethodGet,
			URL:     "{{.iparams.base_url}}/api/v2/ticket_fields",
			Headers: platform,
		},
		TemplateUpdateTicket: {
			Method:  http.MethodPut,
			URL:     "{{.iparams.base_url}}/api/v2/tickets/{{path .context.ticket_id}}",
			Headers: platform,
		},
		TemplateGetRandomJoke: {
			Method:  http.MethodGet,
			URL:     "{{.iparams.joke_api_url}}",
			Headers: external,
		},
		TemplateCreatePost: {
			Method:  http.MethodPost,
			URL:     "{{.iparams.post_api_url}}",
			Headers: external,
		},
	}
}

// InstallationParams returns the values templates can reference as .iparams
func InstallationParams(cfg *config.Config) map[string]string {
	return map[string]string{
		"base_url":     cfg.FreshdeskURL,
		"api_key":      cfg.FreshdeskAPIKey,
		"joke_api_url": cfg.JokeAPIURL,
		"post_api_url": cfg.PostAPIURL,
	}
}

// TemplatesFromConfig merges configured overrides over the defaults
func TemplatesFromConfig(cfg *config.Config) map[string]TemplateDef {
	defs := DefaultTemplates()
	for name, override := range cfg.Templates {
		key := canonicalName(defs, name)
		def := defs[key]
		if override.Method != "" {
			def.Method = strings.ToUpper(override.Method)
		}
		if override.URL != "" {
			def.URL = override.URL
		}
		if len(override.Headers) > 0 {
			merged := make(map[string]string, len(def.Headers)+len(override.Headers))
			for k, v := range def.Headers {
				merged[k] = v
			}
			for k, v := range override.Headers {
				merged[http.CanonicalHeaderKey(k)] = v
			}
			def.Headers = merged
		}
		defs[key] = def
	}
	return defs
}

// canonicalName maps a case-folded name (viper lowercases keys) back to a known template
func canonicalName(defs map[string]TemplateDef, name string) string {
	for known := range defs {
		if strings.EqualFold(known, name) {
			return known
		}
	}
	return name
}

// NewRegistry compiles the template definitions
func NewRegistry(defs map[string]TemplateDef, iparams map[string]string) (*Registry, error) {
	r := &Registry{
		templates: make(map[string]*compiledTemplate, len(defs)),
		iparams:   iparams,
	}
	if r.iparams == nil {
		r.iparams = map[string]string{}
	}
	for name, def := range defs {
		ct := &compiledTemplate{
			name:    name,
			method:  strings.ToUpper(def.Method),
			headers: make(map[string]*template.Template, len(def.Headers)),
		}
		if ct.method == "" {
			ct.method = http.MethodGet
		}
		var err error
		if ct.url, err = parse(name+".url", def.URL); err != nil {
			return nil, fmt.Errorf("failed to parse template %s url: %w", name, err)
		}
		for key, value := range def.Headers {
			if ct.headers[key], err = parse(name+"."+key, value); err != nil {
				return nil, fmt.Errorf("failed to parse template %s header %s: %w", name, key, err)
			}
		}
		r.templates[strings.ToLower(name)] = ct
	}
	return r, nil
}

func parse(name, text string) (*template.Template, error) {
	return template.New(name).Funcs(templateFuncs).Option("missingkey=error").Parse(text)
}

// Has reports whether a template with the given name is defined
func (r *Registry) Has(name string) bool {
	_, ok := r.templates[strings.ToLower(name)]
	return ok
}

// NewRequest renders the named template into an HTTP request
func (r *Registry) NewRequest(ctx context.Context, name string, opts InvokeOptions) (*http.Request, error) {
	ct, ok := r.templates[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTemplate, name)
	}

	tctx := opts.Context
	if tctx == nil {
		tctx = map[string]string{}
	}
	data := map[string]interface{}{
		"context": tctx,
		"iparams": r.iparams,
	}

	target, err := render(ct.url, data)
	if err != nil {
		return nil, fmt.Errorf("failed to render %s url: %w", name, err)
	}
	if target == "" {
		return nil, fmt.Errorf("template %s rendered an empty url", name)
	}

	var body *bytes.Reader
	if len(opts.Body) > 0 {
		body = bytes.NewReader(opts.Body)
	}
	var req *http.Request
	if body != nil {
		req, err = http.NewRequestWithContext(ctx, ct.method, target, body)
	} else {
		req, err = http.NewRequestWithContext(ctx, ct.method, target, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	for key, tmpl := range ct.headers {
		value, err := render(tmpl, data)
		if err != nil {
			return nil, fmt.Errorf("failed to render %s header %s: %w", name, key, err)
		}
		req.Header.Set(key, value)
	}
	return req, nil
}

func render(t *template.Template, data interface{}) (string, error) {
	var sb strings.Builder
	if err := t.Execute(&sb, data); err != nil {
		return "", err
	}
	return sb.String(), nil
}
