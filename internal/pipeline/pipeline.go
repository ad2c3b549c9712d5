// Package pipeline implements the top-level orchestrator: pre-check,
// refine, list, select-and-download, and persist, wired
// against a provider pool, a refiner pipeline, and a subtitle-file
// saver constructed from config.Options.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/redis/go-redis/v9"

	"catalogizer/subtitles/internal/config"
	"catalogizer/subtitles/internal/language"
	"catalogizer/subtitles/internal/pool"
	"catalogizer/subtitles/internal/scorer"
	"catalogizer/subtitles/internal/subtitle"
	"catalogizer/subtitles/internal/tokencache"
	"catalogizer/subtitles/internal/video"
	"catalogizer/subtitles/saver"
)

// Pipeline is the engine's single entry point, constructed once per
// run from a config.Options and reused across every video passed to
// DownloadBestSubtitles.
type Pipeline struct {
	pool     *pool.Pool
	refiners *video.Pipeline
	saver    saver.Saver
	cache    tokencache.Cache
	logger   *zap.Logger
	opts     *config.Options
}

// New constructs a Pipeline from opts: a provider pool in declaration
// order, a refiner pipeline in declaration order, and the configured
// saver backend. Every provider/refiner shares the same process-wide
// cache.
func New(opts *config.Options, logger *zap.Logger) (*Pipeline, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts == nil {
		opts = config.Default()
	}

	cache, err := newCache(opts.Cache)
	if err != nil {
		return nil, fmt.Errorf("pipeline: constructing cache: %w", err)
	}

	providerSettings := make(map[string]map[string]any, len(opts.Providers))
	for _, name := range opts.Providers {
		providerSettings[name] = withCache(opts.Provider[name], cache)
	}

	p := pool.New(pool.Config{
		Providers:        opts.Providers,
		ProviderSettings: providerSettings,
		MaxWorkers:       opts.MaxWorkers,
	}, logger)

	refiners, err := buildRefiners(opts.Refiners, opts.Refiner, cache, logger)
	if err != nil {
		return nil, err
	}

	sv, err := saver.NewFromConfig(opts.Saver.Protocol, opts.Saver.Settings)
	if err != nil {
		return nil, fmt.Errorf("pipeline: constructing saver: %w", err)
	}

	return &Pipeline{
		pool:     p,
		refiners: video.NewPipeline(logger, refiners...),
		saver:    sv,
		cache:    cache,
		logger:   logger,
		opts:     opts,
	}, nil
}

// Close terminates every initialized provider and closes the cache.
func (p *Pipeline) Close() {
	p.pool.Close()
	if err := p.cache.Close(); err != nil {
		p.logger.Warn("pipeline: closing cache", zap.Error(err))
	}
}

func newCache(c config.CacheOptions) (tokencache.Cache, error) {
	if c.Backend != "redis" {
		return tokencache.NewMemoryCache(), nil
	}
	opts, err := redis.ParseURL(c.RedisDSN)
	if err != nil {
		// Accept a bare host:port DSN (not a redis:// URL) the way
		// most TOML configs in the wild write it.
		opts = &redis.Options{Addr: c.RedisDSN}
	}
	return tokencache.NewRedisCache(redis.NewClient(opts)), nil
}

func withCache(settings map[string]any, cache tokencache.Cache) map[string]any {
	merged := make(map[string]any, len(settings)+1)
	for k, v := range settings {
		merged[k] = v
	}
	merged["cache"] = cache
	return merged
}

func buildRefiners(names []string, settings map[string]map[string]any, cache tokencache.Cache, logger *zap.Logger) ([]video.Refiner, error) {
	refiners := make([]video.Refiner, 0, len(names)+1)
	refiners = append(refiners, video.NewFilesystemRefiner(logger))

	for _, name := range names {
		switch name {
		case "filesystem":
			// already first, by construction
		case "metadata":
			refiners = append(refiners, video.NewMetadataRefiner(logger))
		case "omdb":
			apiKey, _ := settings["omdb"]["api_key"].(string)
			refiners = append(refiners, video.NewOMDBRefiner(apiKey, cache, logger))
		default:
			return nil, fmt.Errorf("pipeline: unknown refiner %q", name)
		}
	}
	return refiners, nil
}

// checkVideo is the pipeline's pre-check step: reject a video outright
// (without any network work) when every requested language is already
// satisfied, when it's older than age, or, under only_one, when an
// undefined-language subtitle already sits beside it. force bypasses
// every one of these checks and always accepts.
func checkVideo(v *video.Video, languages []language.Language, age time.Duration, onlyOne, force bool) bool {
	if force {
		return true
	}

	allSatisfied := len(languages) > 0
	for _, l := range languages {
		if !v.HasSubtitleLanguage(l) {
			allSatisfied = false
			break
		}
	}
	if allSatisfied {
		return false
	}

	if age > 0 {
		if info, err := os.Stat(v.Name); err == nil {
			if time.Since(info.ModTime()) > age {
				return false
			}
		}
	}

	if onlyOne {
		for _, l := range v.SubtitleLanguages {
			if l.IsUndefined() {
				return false
			}
		}
	}

	return true
}

func requestedLanguages(opts *config.Options, fallback []language.Language) []language.Language {
	if len(fallback) > 0 {
		return fallback
	}
	out := make([]language.Language, 0, len(opts.Languages))
	for _, tag := range opts.Languages {
		if l, err := language.FromIETF(tag); err == nil {
			out = append(out, l)
		}
	}
	return out
}

// DownloadBestSubtitles runs the full pipeline over videos: pre-check,
// refine, list, score, select-and-download, persist. The returned map
// has one entry per video that was not pre-check-rejected, even when
// no subtitle was ultimately downloaded for it.
func (p *Pipeline) DownloadBestSubtitles(ctx context.Context, videos []*video.Video, languages []language.Language) (map[*video.Video][]*subtitle.Subtitle, error) {
	languages = requestedLanguages(p.opts, languages)
	refineOpts := video.RefineOptions{Force: p.opts.Force}

	ignoreIDs := make(map[string]bool, len(p.opts.IgnoreSubtitles))
	for _, id := range p.opts.IgnoreSubtitles {
		ignoreIDs[id] = true
	}

	results := make(map[*video.Video][]*subtitle.Subtitle, len(videos))

	for _, v := range videos {
		if !checkVideo(v, languages, p.opts.Age, p.opts.OnlyOne, p.opts.Force) {
			continue
		}

		v = p.refiners.Refine(ctx, v, refineOpts)

		subs, err := p.pool.ListSubtitles(ctx, v, languages)
		if err != nil {
			p.logger.Warn("pipeline: list_subtitles failed", zap.String("video", v.Name), zap.Error(err))
			results[v] = nil
			continue
		}

		candidates := make([]pool.Candidate, 0, len(subs))
		for i, s := range subs {
			matches := s.GetMatches(v, p.opts.HearingImpaired, p.opts.ForeignOnly)
			candidates = append(candidates, pool.Candidate{
				Subtitle:             s,
				Score:                scorer.ComputeScore(matches, v.Kind),
				HearingImpairedMatch: matches["hearing_impaired"],
				ForeignOnlyMatch:     matches["foreign_only"],
				Order:                i,
			})
		}

		minScore := scorer.MinScoreScaled(p.opts.MinScore, v.Kind)
		downloaded, err := p.pool.DownloadBestSubtitles(ctx, candidates, minScore, p.opts.OnlyOne, ignoreIDs)
		if err != nil {
			p.logger.Warn("pipeline: download_best_subtitles failed", zap.String("video", v.Name), zap.Error(err))
		}

		for _, s := range downloaded {
			if err := p.persist(ctx, v, s); err != nil {
				p.logger.Warn("pipeline: persist failed",
					zap.String("video", v.Name), zap.String("language", s.Language.ToIETF()), zap.Error(err))
			}
		}

		results[v] = downloaded
	}

	return results, nil
}

func (p *Pipeline) persist(ctx context.Context, v *video.Video, s *subtitle.Subtitle) error {
	path := subtitle.PathFor(v.Name, s.Language, subtitle.SniffFormat(s.Content))
	return p.saver.Save(ctx, path, s.Content)
}
