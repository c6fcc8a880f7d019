package deploy

import (
	"context"
	"fmt"
	"net/url"
)

// Script is one entry of a site's custom-code configuration.
type Script struct {
	ID       string `json:"id"`
	Location string `json:"location"`
	Version  string `json:"version"`
}

// CustomCode is the custom-code configuration of a site.
type CustomCode struct {
	Scripts     []Script `json:"scripts"`
	LastUpdated string   `json:"lastUpdated,omitempty"`
	CreatedOn   string   `json:"createdOn,omitempty"`
}

// Contains reports whether a script with id and version is attached.
func (c *CustomCode) Contains(id, version string) bool {
	for _, s := range c.Scripts {
		if s.ID == id && (version == "" || s.Version == version) {
			return true
		}
	}
	return false
}

// ScriptOptions describes how hosted scripts are registered and attached.
type ScriptOptions struct {
	DisplayName string
	Location    string
	CanCopy     bool
}

// Scripts registers hosted scripts and manages a site's custom code.
type Scripts struct {
	api  API
	opts ScriptOptions
}

// NewScripts creates a script publisher.
func NewScripts(api API, opts ScriptOptions) *Scripts {
	if opts.DisplayName == "" {
		opts.DisplayName = "viteflow"
	}
	if opts.Location == "" {
		opts.Location = "footer"
	}
	return &Scripts{api: api, opts: opts}
}

// Register records assetURL as a hosted script and returns its identifier.
func (s *Scripts) Register(ctx context.Context, siteID, assetURL, digest, version string) (string, error) {
	body := map[string]interface{}{
		"hostedLocation": assetURL,
		"integrityHash":  digest,
		"canCopy":        s.opts.CanCopy,
		"version":        version,
		"displayName":    s.opts.DisplayName,
	}

	var resp struct {
		ID       string `json:"id"`
		LegacyID string `json:"_id"`
	}
	if err := s.api.DoPost(ctx, sitePath(siteID, "registered_scripts/hosted"), body, &resp); err != nil {
		return "", err
	}

	id := resp.ID
	if id == "" {
		id = resp.LegacyID
	}
	if id == "" {
		return "", fmt.Errorf("registration response has no script id")
	}
	return id, nil
}

// Attach places scriptID in the site's custom code at the configured location.
func (s *Scripts) Attach(ctx context.Context, siteID, scriptID, version string) error {
	body := CustomCode{
		Scripts: []Script{{
			ID:       scriptID,
			Location: s.opts.Location,
			Version:  version,
		}},
	}
	return s.api.DoPut(ctx, sitePath(siteID, "custom_code"), body, nil)
}

// CustomCode reads the site's attached scripts.
func (s *Scripts) CustomCode(ctx context.Context, siteID string) (*CustomCode, error) {
	var code CustomCode
	if err := s.api.DoGet(ctx, sitePath(siteID, "custom_code"), nil, &code); err != nil {
		return nil, err
	}
	return &code, nil
}

func sitePath(siteID, rest string) string {
	return "/sites/" + url.PathEscape(siteID) + "/" + rest
}
