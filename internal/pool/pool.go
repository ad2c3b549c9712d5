// Package pool implements the bounded-concurrency provider orchestrator:
// lazy one-shot provider initialization, parallel
// per-provider fan-out bounded by a worker semaphore, per-provider
// session serialization, and the provider failure state machine
// (AuthenticationError/ServiceUnavailable/DownloadLimitExceeded/other
// ProviderError) translated into retry/discard transitions.
package pool

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"catalogizer/subtitles/internal/language"
	"catalogizer/subtitles/internal/metrics"
	"catalogizer/subtitles/internal/provider"
	"catalogizer/subtitles/internal/recovery"
	"catalogizer/subtitles/internal/subtitle"
	"catalogizer/subtitles/internal/video"
	"catalogizer/subtitles/pkg/lazy"
	"catalogizer/subtitles/pkg/semaphore"
)

// Config carries pool construction inputs: declaration-ordered provider
// names, per-provider settings, and the worker bound.
type Config struct {
	Providers        []string
	ProviderSettings map[string]map[string]any
	MaxWorkers       int
	TerminateTimeout time.Duration
}

// ErrDiscarded reports that a provider has been permanently discarded
// for the remainder of this pool's lifetime.
type ErrDiscarded struct {
	Provider string
}

func (e *ErrDiscarded) Error() string {
	return fmt.Sprintf("provider %s: discarded for this run", e.Provider)
}

type providerState struct {
	name      string
	mu        sync.Mutex // serializes list/download for this provider
	discarded bool
	lazy      *lazy.Service[provider.Provider]
	breaker   *recovery.CircuitBreaker
}

// Pool is the scoped resource managing every provider: it lazily
// initializes providers on first use and terminates all of them on
// Close.
type Pool struct {
	order   []string
	states  map[string]*providerState
	sem     *semaphore.Semaphore
	logger  *zap.Logger
	timeout time.Duration
}

// New constructs a Pool from cfg. Individual provider construction
// errors are deferred until first use (lazy init); only the semaphore
// and per-provider bookkeeping are set up eagerly.
func New(cfg Config, logger *zap.Logger) *Pool {
	if logger == nil {
		logger = zap.NewNop()
	}
	maxWorkers := cfg.MaxWorkers
	if maxWorkers < 1 {
		maxWorkers = 8
	}
	timeout := cfg.TerminateTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	breakers := recovery.NewCircuitBreakerManager(logger)

	p := &Pool{
		order:   append([]string{}, cfg.Providers...),
		states:  make(map[string]*providerState, len(cfg.Providers)),
		sem:     semaphore.New(maxWorkers),
		logger:  logger,
		timeout: timeout,
	}

	for _, name := range cfg.Providers {
		name := name
		settings := cfg.ProviderSettings[name]
		p.states[name] = &providerState{
			name:    name,
			breaker: breakers.GetOrCreate(name, recovery.CircuitBreakerConfig{MaxFailures: 2, ResetTimeout: time.Minute}),
			lazy: lazy.NewService(func() (provider.Provider, error) {
				prov, err := provider.New(name, settings)
				if err != nil {
					return nil, err
				}
				if err := prov.Initialize(context.Background()); err != nil {
					return nil, err
				}
				return prov, nil
			}),
		}
	}
	return p
}

// Close terminates every initialized provider, logging and swallowing
// terminate errors.
func (p *Pool) Close() {
	for _, name := range p.order {
		st := p.states[name]
		prov, err := st.lazy.Get()
		if err != nil || prov == nil {
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
		if err := prov.Terminate(ctx); err != nil {
			p.logger.Warn("provider terminate failed", zap.String("provider", name), zap.Error(err))
		}
		cancel()
	}
}

// retryServiceUnavailable retries fn once when it fails with
// provider.ServiceUnavailable, propagating every other failure after
// the first attempt. It is the retry half of the pool's failure state
// machine; classify (and the circuit breaker it drives) is the
// discard half.
func retryServiceUnavailable(ctx context.Context, fn func() error) error {
	cfg := recovery.RetryConfig{MaxAttempts: 2, BackoffFactor: 1}
	err := recovery.Retry(ctx, cfg, func() error {
		err := fn()
		if err == nil {
			return nil
		}
		var svcErr *provider.ServiceUnavailable
		return recovery.NewRetryableError(err, errors.As(err, &svcErr))
	})
	var retryable recovery.RetryableError
	if errors.As(err, &retryable) {
		return retryable.Err
	}
	return err
}

// classify decides whether st should be discarded for the rest of
// this pool's lifetime. ServiceUnavailable failures are routed through
// st's circuit breaker (MaxFailures: 2) so the first transient failure
// (already past retryServiceUnavailable's one retry) leaves the
// provider eligible for one more top-level call before the breaker
// opens; every other classified error is an immediate discard.
func (p *Pool) classify(st *providerState, err error) {
	var svcErr *provider.ServiceUnavailable
	if errors.As(err, &svcErr) {
		_ = st.breaker.Execute(func() error { return err })
		if st.breaker.GetState() == recovery.StateOpen {
			st.discarded = true
			metrics.ProviderDiscardsTotal.WithLabelValues(st.name, "service_unavailable").Inc()
		}
		return
	}

	reason := "provider_error"
	switch {
	case errors.As(err, new(*provider.AuthenticationError)):
		reason = "authentication_error"
	case errors.As(err, new(*provider.DownloadLimitExceeded)):
		reason = "download_limit_exceeded"
	case errors.As(err, new(*provider.TooManyRequests)):
		reason = "too_many_requests"
	}
	// AuthenticationError, DownloadLimitExceeded, TooManyRequests, and
	// the generic ProviderError are all treated as a discard for the
	// remainder of this run; re-authentication across runs is a
	// caller-level (new Pool) concern.
	st.discarded = true
	metrics.ProviderDiscardsTotal.WithLabelValues(st.name, reason).Inc()
}

func (p *Pool) eligible(ctx context.Context, name string, v *video.Video, languages []language.Language) (provider.Provider, []language.Language, bool) {
	st := p.states[name]
	if st.discarded {
		return nil, nil, false
	}

	prov, err := st.lazy.Get()
	if err != nil {
		p.logger.Warn("provider initialize failed", zap.String("provider", name), zap.Error(err))
		st.discarded = true
		return nil, nil, false
	}

	if !provider.Check(prov, v) {
		return nil, nil, false
	}
	provLangs := provider.CheckLanguages(prov, languages)
	if len(provLangs) == 0 {
		return nil, nil, false
	}
	return prov, provLangs, true
}

// ListSubtitles dispatches list_subtitles to every eligible, non-
// discarded provider in parallel, bounded by the pool's worker count,
// and returns the flat concatenation of successful outputs, preserving
// declaration order between providers.
func (p *Pool) ListSubtitles(ctx context.Context, v *video.Video, languages []language.Language) ([]*subtitle.Subtitle, error) {
	results := make([][]*subtitle.Subtitle, len(p.order))

	g, gctx := errgroup.WithContext(ctx)
	for i, name := range p.order {
		i, name := i, name

		prov, provLangs, ok := p.eligible(gctx, name, v, languages)
		if !ok {
			continue
		}

		if err := p.sem.Acquire(gctx); err != nil {
			break
		}
		g.Go(func() error {
			defer p.sem.Release()

			st := p.states[name]
			st.mu.Lock()
			defer st.mu.Unlock()

			metrics.ProviderRequestsTotal.WithLabelValues(name, "list").Inc()
			var subs []*subtitle.Subtitle
			err := retryServiceUnavailable(gctx, func() error {
				var err error
				subs, err = prov.ListSubtitles(gctx, v, provLangs)
				return err
			})
			if err != nil {
				p.logger.Warn("list_subtitles failed", zap.String("provider", name), zap.Error(err))
				p.classify(st, err)
				return nil
			}
			for _, s := range subs {
				s.EnsureID()
			}
			results[i] = subs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var flat []*subtitle.Subtitle
	for _, r := range results {
		flat = append(flat, r...)
	}
	return flat, nil
}

// DownloadSubtitle serializes access to the owning provider's session
// and invokes download_subtitle, applying the same failure-to-discard
// classification as ListSubtitles. It returns true iff the provider
// succeeded and the resulting content passes IsValid.
func (p *Pool) DownloadSubtitle(ctx context.Context, s *subtitle.Subtitle) (bool, error) {
	st, ok := p.states[s.ProviderName]
	if !ok || st.discarded {
		return false, &ErrDiscarded{Provider: s.ProviderName}
	}

	prov, err := st.lazy.Get()
	if err != nil {
		st.discarded = true
		return false, err
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	metrics.ProviderRequestsTotal.WithLabelValues(s.ProviderName, "download").Inc()
	if err := retryServiceUnavailable(ctx, func() error { return prov.DownloadSubtitle(ctx, s) }); err != nil {
		var invalid *provider.InvalidSubtitleError
		if errors.As(err, &invalid) {
			return false, nil
		}
		p.classify(st, err)
		return false, err
	}
	return s.IsValid(), nil
}

// Candidate pairs a subtitle with its precomputed score and the two
// preference matches DownloadBestSubtitles tie-breaks on, used by its
// sort/select pass.
type Candidate struct {
	Subtitle             *subtitle.Subtitle
	Score                int
	HearingImpairedMatch bool // matches["hearing_impaired"] for the caller's preference
	ForeignOnlyMatch     bool // matches["foreign_only"] for the caller's preference
	Order                int  // position in the declaration-ordered ListSubtitles result, for deterministic tie-break
}

// DownloadBestSubtitles implements the score/sort/greedy-
// select/download algorithm: candidates are sorted by (score desc,
// hearing-impaired match, foreign-only match, declaration order), then
// walked greedily, downloading through the pool and falling back to
// the next candidate for a language on failure.
func (p *Pool) DownloadBestSubtitles(
	ctx context.Context,
	candidates []Candidate,
	minScore int,
	onlyOne bool,
	ignoreIDs map[string]bool,
) ([]*subtitle.Subtitle, error) {
	sorted := append([]Candidate{}, candidates...)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.HearingImpairedMatch != b.HearingImpairedMatch {
			return a.HearingImpairedMatch
		}
		if a.ForeignOnlyMatch != b.ForeignOnlyMatch {
			return a.ForeignOnlyMatch
		}
		return a.Order < b.Order
	})

	accepted := map[language.Language]bool{}
	var downloaded []*subtitle.Subtitle

	for _, c := range sorted {
		if ignoreIDs[c.Subtitle.SubtitleID] {
			continue
		}
		if c.Score < minScore {
			continue
		}
		if accepted[c.Subtitle.Language] {
			continue
		}

		ok, err := p.DownloadSubtitle(ctx, c.Subtitle)
		if err != nil || !ok {
			continue
		}
		accepted[c.Subtitle.Language] = true
		downloaded = append(downloaded, c.Subtitle)
		metrics.PoolSelectedTotal.WithLabelValues(c.Subtitle.Language.ToIETF()).Inc()
		metrics.MatchScore.Observe(float64(c.Score))

		if onlyOne {
			break
		}
	}
	return downloaded, nil
}
