package video

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"

	"catalogizer/subtitles/internal/tokencache"
)

const omdbBaseURL = "https://www.omdbapi.com/"

// OMDBRefiner fills in IMDBID (movies) or SeriesIMDBID (episodes) by
// querying the OMDB API: OMDB's API is itself an IMDB proxy, so a
// single HTTP lookup by title/year covers both.
type OMDBRefiner struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	cache      tokencache.Cache
	logger     *zap.Logger
}

// NewOMDBRefiner constructs the OMDB refiner. cache is used to
// memoize title lookups for one hour per entry, avoiding a
// repeat network call for videos that share a title within one run.
func NewOMDBRefiner(apiKey string, cache tokencache.Cache, logger *zap.Logger) *OMDBRefiner {
	if cache == nil {
		cache = tokencache.NewMemoryCache()
	}
	return &OMDBRefiner{
		apiKey:     apiKey,
		baseURL:    omdbBaseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		cache:      cache,
		logger:     logger,
	}
}

func (r *OMDBRefiner) Name() string { return "omdb" }

type omdbResponse struct {
	ImdbID   string `json:"imdbID"`
	Response string `json:"Response"`
	Error    string `json:"Error"`
}

func (r *OMDBRefiner) Refine(ctx context.Context, v *Video, opts RefineOptions) *Video {
	switch v.Kind {
	case KindMovie:
		if v.IMDBID != "" && !opts.Force {
			return v
		}
		id, err := r.lookup(ctx, v.Title, v.Year, "movie")
		if err != nil {
			if r.logger != nil {
				r.logger.Warn("omdb refiner: movie lookup failed", zap.String("title", v.Title), zap.Error(err))
			}
			return v
		}
		v.IMDBID = id
	case KindEpisode:
		if v.SeriesIMDBID != "" && !opts.Force {
			return v
		}
		id, err := r.lookup(ctx, v.Series, v.Year, "series")
		if err != nil {
			if r.logger != nil {
				r.logger.Warn("omdb refiner: series lookup failed", zap.String("series", v.Series), zap.Error(err))
			}
			return v
		}
		v.SeriesIMDBID = id
	}
	return v
}

func (r *OMDBRefiner) lookup(ctx context.Context, title string, year int, kind string) (string, error) {
	if title == "" {
		return "", fmt.Errorf("omdb: empty title")
	}
	cacheKey := fmt.Sprintf("%s:%s:%d", kind, title, year)
	if id, ok := r.cache.Get(ctx, "omdb.imdb_id", cacheKey); ok {
		return id, nil
	}

	q := url.Values{}
	q.Set("apikey", r.apiKey)
	q.Set("t", title)
	q.Set("type", kind)
	if year > 0 {
		q.Set("y", strconv.Itoa(year))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return "", err
	}
	resp, err := r.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var out omdbResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("omdb: decode response: %w", err)
	}
	if out.Response == "False" {
		return "", fmt.Errorf("omdb: %s", out.Error)
	}
	if out.ImdbID == "" {
		return "", fmt.Errorf("omdb: no imdb id returned")
	}

	r.cache.Set(ctx, "omdb.imdb_id", cacheKey, out.ImdbID, time.Hour)
	return out.ImdbID, nil
}
