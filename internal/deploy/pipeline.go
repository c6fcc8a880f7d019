// Package deploy publishes a built bundle to a site: it hashes the bundle,
// negotiates an upload ticket, uploads the file, registers it as a hosted
// script, attaches the script to the site and reads the attachment back.
package deploy

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// API is the subset of the site API client used by the pipeline.
type API interface {
	DoGet(ctx context.Context, path string, query url.Values, target interface{}) error
	DoPost(ctx context.Context, path string, body interface{}, target interface{}) error
	DoPut(ctx context.Context, path string, body interface{}, target interface{}) error
}

// Negotiator issues upload tickets.
type Negotiator interface {
	Negotiate(ctx context.Context, siteID, fileName, digest string) (*UploadTicket, error)
}

// Uploader sends a file against an upload ticket.
type Uploader interface {
	Upload(ctx context.Context, ticket *UploadTicket, path string) error
}

// Publisher registers, attaches and reads back hosted scripts.
type Publisher interface {
	Register(ctx context.Context, siteID, assetURL, digest, version string) (string, error)
	Attach(ctx context.Context, siteID, scriptID, version string) error
	CustomCode(ctx context.Context, siteID string) (*CustomCode, error)
}

// Step names a pipeline stage.
type Step string

const (
	StepHash      Step = "hash"
	StepNegotiate Step = "negotiate"
	StepUpload    Step = "upload"
	StepRegister  Step = "register"
	StepAttach    Step = "attach"
	StepVerify    Step = "verify"
)

// ErrNotAttached is returned by a verifying deploy when the read-back does
// not list the new script.
var ErrNotAttached = errors.New("script not found in site custom code")

// StepError is a failure at one pipeline stage. StatusCode and Body are set
// when the failure was an HTTP response.
type StepError struct {
	Step       Step
	StatusCode int
	Body       string
	Err        error
}

func (e *StepError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s failed", e.Step)
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, " (status %d)", e.StatusCode)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	if body := strings.TrimSpace(e.Body); body != "" && (e.Err == nil || !strings.Contains(e.Err.Error(), body)) {
		b.WriteString(": ")
		b.WriteString(body)
	}
	return b.String()
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// httpError is implemented by client errors that carry a response.
type httpError interface {
	HTTPStatus() int
	ResponseBody() string
}

func wrapStep(step Step, err error) error {
	var se *StepError
	if errors.As(err, &se) {
		return se
	}
	out := &StepError{Step: step, Err: err}
	var he httpError
	if errors.As(err, &he) {
		out.StatusCode = he.HTTPStatus()
		out.Body = he.ResponseBody()
	}
	return out
}

// Options configures one deploy.
type Options struct {
	SiteID     string
	BundlePath string
	FileName   string
	// RequireVerified fails the deploy when the read-back does not list the
	// attached script. When false the mismatch is only logged.
	RequireVerified bool
}

// Record describes a deploy. It is returned even on failure, filled up to
// the failed step.
type Record struct {
	BundlePath string        `json:"bundle_path"`
	Digest     string        `json:"digest"`
	Ticket     *UploadTicket `json:"-"`
	AssetID    string        `json:"asset_id,omitempty"`
	AssetURL   string        `json:"asset_url,omitempty"`
	ScriptID   string        `json:"script_id,omitempty"`
	Version    string        `json:"version,omitempty"`
	Verified   bool          `json:"verified"`
	Took       time.Duration `json:"took"`
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithVersionFunc replaces the version token generator.
func WithVersionFunc(fn func() string) Option {
	return func(p *Pipeline) {
		p.newVersion = fn
	}
}

// Pipeline runs the deploy steps in order.
type Pipeline struct {
	negotiator Negotiator
	uploader   Uploader
	publisher  Publisher
	opts       Options
	newVersion func() string
}

// New creates a deploy pipeline.
func New(n Negotiator, u Uploader, p Publisher, opts Options, options ...Option) *Pipeline {
	if opts.FileName == "" {
		opts.FileName = "main.js.txt"
	}
	pl := &Pipeline{
		negotiator: n,
		uploader:   u,
		publisher:  p,
		opts:       opts,
		newVersion: NewVersion,
	}
	for _, o := range options {
		o(pl)
	}
	return pl
}

// NewVersion returns a short random token correlating registration and
// attachment.
func NewVersion() string {
	return strings.SplitN(uuid.NewString(), "-", 2)[0]
}

// Run executes one deploy. A failing step stops the pipeline; completed steps
// are not rolled back.
func (p *Pipeline) Run(ctx context.Context) (*Record, error) {
	start := time.Now()
	rec := &Record{BundlePath: p.opts.BundlePath}
	defer func() { rec.Took = time.Since(start) }()

	if p.opts.SiteID == "" {
		return rec, errors.New("site id is required")
	}

	if _, err := os.Stat(p.opts.BundlePath); err != nil {
		return rec, &StepError{Step: StepHash, Err: fmt.Errorf("bundle %s not found, did the build run? %w", p.opts.BundlePath, err)}
	}
	digest, err := HashFile(p.opts.BundlePath)
	if err != nil {
		return rec, wrapStep(StepHash, err)
	}
	rec.Digest = digest
	log.Debug().Str("digest", digest).Str("path", p.opts.BundlePath).Msg("Hashed bundle")

	ticket, err := p.negotiator.Negotiate(ctx, p.opts.SiteID, p.opts.FileName, digest)
	if err != nil {
		return rec, wrapStep(StepNegotiate, err)
	}
	rec.Ticket = ticket
	rec.AssetID = ticket.ID
	rec.AssetURL = ticket.AssetURL

	if err := p.uploader.Upload(ctx, ticket, p.opts.BundlePath); err != nil {
		return rec, wrapStep(StepUpload, err)
	}
	log.Info().Str("asset", ticket.AssetURL).Msg("Bundle uploaded")

	rec.Version = p.newVersion()
	scriptID, err := p.publisher.Register(ctx, p.opts.SiteID, ticket.AssetURL, digest, rec.Version)
	if err != nil {
		return rec, wrapStep(StepRegister, err)
	}
	rec.ScriptID = scriptID
	log.Info().Str("script_id", scriptID).Str("version", rec.Version).Msg("Script registered")

	if err := p.publisher.Attach(ctx, p.opts.SiteID, scriptID, rec.Version); err != nil {
		log.Warn().Str("script_id", scriptID).Msg("Script is registered but not attached")
		return rec, wrapStep(StepAttach, err)
	}
	log.Info().Str("script_id", scriptID).Msg("Script attached to site")

	return rec, p.verify(ctx, rec)
}

func (p *Pipeline) verify(ctx context.Context, rec *Record) error {
	code, err := p.publisher.CustomCode(ctx, p.opts.SiteID)
	if err != nil {
		if p.opts.RequireVerified {
			return wrapStep(StepVerify, err)
		}
		log.Warn().Err(err).Msg("Failed to read back site custom code")
		return nil
	}

	rec.Verified = code.Contains(rec.ScriptID, rec.Version)
	if rec.Verified {
		log.Debug().Int("scripts", len(code.Scripts)).Msg("Attachment verified")
		return nil
	}
	if p.opts.RequireVerified {
		return &StepError{Step: StepVerify, Err: ErrNotAttached}
	}
	log.Warn().Str("script_id", rec.ScriptID).Msg("Script not listed in site custom code")
	return nil
}
