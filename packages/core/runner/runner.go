package runner

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/abdul-hamid-achik/capis/packages/capture"
	"github.com/abdul-hamid-achik/capis/packages/core/errs"
	"github.com/abdul-hamid-achik/capis/packages/core/parser"
	"github.com/abdul-hamid-achik/capis/packages/http"
)

// Stage is the last pipeline step a file reached
type Stage string

const (
	StageParse     Stage = "parse"
	StageBuild     Stage = "build"
	StageTransport Stage = "transport"
	StageDone      Stage = "done"
)

// Outcome classifies a finished file
type Outcome string

const (
	OutcomePassed  Outcome = "passed"
	OutcomeFailed  Outcome = "failed"
	OutcomeErrored Outcome = "errored"
	OutcomeSkipped Outcome = "skipped"
)

type Runner struct {
	client  *http.Client
	config  *Config
	log     *zap.Logger
	hooks   []Hook
	limiter *rate.Limiter
}

type Config struct {
	Verbose         bool
	Timeout         time.Duration
	FollowRedirects bool
	MaxRedirects    int
	MaxBodyBytes    int
	// Rate is the maximum number of files started per second, 0 for no limit
	Rate   float64
	DryRun bool
	// Select lists capture expressions evaluated against each response
	Select []string
	// DefaultHeaders are sent unless the descriptor sets the same header
	DefaultHeaders map[string]string
}

type Option func(*Runner)

func WithLogger(l *zap.Logger) Option {
	return func(r *Runner) {
		if l != nil {
			r.log = l
		}
	}
}

// WithHooks adds result hooks, called in the order given
func WithHooks(hooks ...Hook) Option {
	return func(r *Runner) {
		r.hooks = append(r.hooks, hooks...)
	}
}

// WithClient replaces the transport built from Config
func WithClient(c *http.Client) Option {
	return func(r *Runner) {
		r.client = c
	}
}

func NewRunner(cfg *Config, opts ...Option) *Runner {
	if cfg == nil {
		cfg = &Config{}
	}

	r := &Runner{
		config: cfg,
		log:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}

	if r.client == nil {
		clientOpts := []http.ClientOption{
			http.WithFollowRedirects(cfg.FollowRedirects),
			http.WithLogger(r.log),
		}
		if cfg.Timeout > 0 {
			clientOpts = append(clientOpts, http.WithTimeout(cfg.Timeout))
		}
		if cfg.MaxRedirects > 0 {
			clientOpts = append(clientOpts, http.WithMaxRedirects(cfg.MaxRedirects))
		}
		for k, v := range cfg.DefaultHeaders {
			clientOpts = append(clientOpts, http.WithDefaultHeader(k, v))
		}
		r.client = http.NewClient(clientOpts...)
	}

	if cfg.Rate > 0 {
		r.limiter = rate.NewLimiter(rate.Limit(cfg.Rate), 1)
	}

	return r
}

// Close releases idle connections
func (r *Runner) Close() {
	r.client.Close()
}

type RunResult struct {
	ID        string
	StartedAt time.Time
	Results   []*RequestResult
	Duration  time.Duration
	Passed    int
	Failed    int
	Errored   int
	Skipped   int
}

func (r *RunResult) Total() int {
	return len(r.Results)
}

func (r *RunResult) add(res *RequestResult) {
	r.Results = append(r.Results, res)
	switch res.Outcome() {
	case OutcomePassed:
		r.Passed++
	case OutcomeFailed:
		r.Failed++
	case OutcomeErrored:
		r.Errored++
	case OutcomeSkipped:
		r.Skipped++
	}
}

type RequestResult struct {
	File       string
	Descriptor *parser.Descriptor
	Request    *http.Request
	Response   *http.Response
	Duration   time.Duration
	Error      error
	Stage      Stage
	// Skipped is set for dry runs, which stop after building
	Skipped    bool
	Selections map[string]any
}

// Outcome reports passed for a 2xx or 3xx response, failed for a transport
// failure or any other status, and errored when the file never got past
// parsing or building.
func (r *RequestResult) Outcome() Outcome {
	switch {
	case r.Skipped:
		return OutcomeSkipped
	case r.Error != nil && (r.Stage == StageParse || r.Stage == StageBuild):
		return OutcomeErrored
	case r.Error != nil:
		return OutcomeFailed
	case r.Response != nil && (r.Response.IsSuccess() || r.Response.IsRedirect()):
		return OutcomePassed
	default:
		return OutcomeFailed
	}
}

func (r *RequestResult) Passed() bool {
	return r.Outcome() == OutcomePassed
}

// StatusCode returns the response status, or 0 when there is none
func (r *RequestResult) StatusCode() int {
	if r.Response == nil {
		return 0
	}
	return r.Response.StatusCode
}

// Run processes files in order. Cancelling ctx stops the batch before the
// next file; results gathered so far are returned.
func (r *Runner) Run(ctx context.Context, files []string) *RunResult {
	run := &RunResult{StartedAt: time.Now()}

	for _, h := range r.hooks {
		if err := h.BeforeRun(ctx, run); err != nil {
			r.log.Warn("Run hook failed", zap.Error(err))
		}
	}

	for seq, file := range files {
		if ctx.Err() != nil {
			break
		}
		if r.limiter != nil {
			if err := r.limiter.Wait(ctx); err != nil {
				break
			}
		}

		res := r.RunFile(ctx, file)
		run.add(res)

		for _, h := range r.hooks {
			if err := h.AfterRequest(ctx, seq, res); err != nil {
				r.log.Warn("Result hook failed", zap.String("file", file), zap.Error(err))
			}
		}
	}

	run.Duration = time.Since(run.StartedAt)

	finishCtx := context.WithoutCancel(ctx)
	for _, h := range r.hooks {
		if err := h.AfterRun(finishCtx, run); err != nil {
			r.log.Warn("Run hook failed", zap.Error(err))
		}
	}

	return run
}

// RunFile runs one descriptor file through the whole pipeline. Errors are
// recorded on the result together with the stage that produced them.
func (r *Runner) RunFile(ctx context.Context, path string) *RequestResult {
	result := &RequestResult{File: path, Stage: StageParse}
	start := time.Now()
	defer func() { result.Duration = time.Since(start) }()

	log := r.log.With(zap.String("file", path))
	log.Info("Processing descriptor")

	var parseOpts []parser.Option
	if r.config.Verbose {
		parseOpts = append(parseOpts, parser.WithLogger(log))
	}
	d, err := parser.ParseFile(path, parseOpts...)
	if err != nil {
		return r.fail(log, result, err)
	}
	result.Descriptor = d
	if r.config.Verbose {
		var dump strings.Builder
		d.Dump(&dump)
		log.Debug("Parsed descriptor", zap.String("descriptor", dump.String()))
	}

	result.Stage = StageBuild
	req, release, err := http.BuildRequest(d, http.BuildOptions{Debug: r.config.Verbose, Logger: log})
	if err != nil {
		return r.fail(log, result, err)
	}
	defer release()
	result.Request = req

	log.Info("Preparing request", zap.String("method", req.Method), zap.String("url", req.URL))
	if r.config.DryRun {
		result.Skipped = true
		result.Stage = StageDone
		return result
	}

	result.Stage = StageTransport
	var respOpts []http.ResponseOption
	if r.config.MaxBodyBytes > 0 {
		respOpts = append(respOpts, http.WithMaxBodyBytes(r.config.MaxBodyBytes))
	}
	resp := http.NewResponse(respOpts...)

	sent := time.Now()
	err = r.client.Do(ctx, req, resp)
	resp.Duration = time.Since(sent)
	if err != nil {
		return r.fail(log, result, err)
	}
	result.Response = resp
	result.Stage = StageDone

	log.Info("Request completed",
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", resp.Duration),
	)
	if r.config.Verbose {
		logResponse(log, resp)
	}

	if len(r.config.Select) > 0 {
		result.Selections = capture.SelectAll(resp, r.config.Select)
	}

	return result
}

func (r *Runner) fail(log *zap.Logger, result *RequestResult, err error) *RequestResult {
	result.Error = err
	log.Error("Request failed",
		zap.String("stage", string(result.Stage)),
		zap.String("kind", errs.KindOf(err).String()),
		zap.Error(err),
	)
	return result
}

func logResponse(log *zap.Logger, resp *http.Response) {
	for _, line := range strings.Split(string(resp.HeaderBlock), "\n") {
		if line = strings.TrimRight(line, "\r"); line != "" {
			log.Debug("Response header", zap.String("line", line))
		}
	}
	for _, c := range resp.SetCookies {
		log.Debug("Response cookie", zap.String("set-cookie", c))
	}
	log.Debug("Response body", zap.Int("length", len(resp.Body)), zap.ByteString("body", resp.Body))
}
