// Package metrics exposes Prometheus instrumentation for the provider
// pool and pipeline, using the same promauto package-level
// registration idiom as the rest of the codebase, retargeted from
// request counters to provider/pool counters since this module has no
// HTTP surface.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ProviderRequestsTotal counts every list/download call issued to a provider.
	ProviderRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "subtitle_provider_requests_total",
			Help: "Total number of requests issued to a subtitle provider.",
		},
		[]string{"provider", "op"},
	)

	// ProviderDiscardsTotal counts provider discards by reason, one per
	// classify() transition.
	ProviderDiscardsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "subtitle_provider_discards_total",
			Help: "Total number of times a provider was discarded, by reason.",
		},
		[]string{"provider", "reason"},
	)

	// PoolSelectedTotal counts subtitles accepted by the greedy selection in
	// pool.DownloadBestSubtitles, per language.
	PoolSelectedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "subtitle_pool_selected_total",
			Help: "Total number of subtitles selected for download, by language.",
		},
		[]string{"language"},
	)

	// MatchScore records the score of every subtitle accepted for download.
	MatchScore = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "subtitle_match_score",
			Help:    "Score of subtitles accepted for download.",
			Buckets: []float64{0, 5, 10, 15, 20, 25, 30, 35, 40, 46},
		},
	)

	// CacheHits / CacheMisses track the process-wide token/show-id cache.
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "subtitle_cache_hits_total",
			Help: "Total number of cache hits, by cache name.",
		},
		[]string{"cache"},
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "subtitle_cache_misses_total",
			Help: "Total number of cache misses, by cache name.",
		},
		[]string{"cache"},
	)
)

// FamilySummary is a minimal summary row returned by Gather.
type FamilySummary struct {
	Name string
	Help string
}

// Gather returns the current metric family names from the default
// registry, for a cmd/ entrypoint to log on exit. Full exposition (the
// text format Prometheus scrapes) is available via promhttp.Handler, which
// this module does not wire up since it has no HTTP front end.
func Gather() ([]FamilySummary, error) {
	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		return nil, err
	}
	out := make([]FamilySummary, 0, len(families))
	for _, f := range families {
		out = append(out, FamilySummary{Name: f.GetName(), Help: f.GetHelp()})
	}
	return out, nil
}
