// Package scorer implements the weighted scoring function evaluated
// over a matcher match-set, one weight table per video kind.
package scorer

import "catalogizer/subtitles/internal/video"

// MovieWeights is the per-attribute score contribution for a Movie match.
var MovieWeights = map[string]int{
	"hash":             46,
	"title":            13,
	"year":             7,
	"country":          1,
	"imdb_id":          31,
	"tmdb_id":          20,
	"resolution":       2,
	"source":           2,
	"video_codec":      2,
	"audio_codec":      1,
	"release_group":    6,
	"edition":          2,
	"hearing_impaired": 1,
}

// EpisodeWeights is the per-attribute score contribution for an Episode
// match.
var EpisodeWeights = map[string]int{
	"hash":              46,
	"series":            23,
	"year":              2,
	"country":           1,
	"season":            6,
	"episode":           6,
	"title":             12,
	"release_group":     6,
	"source":            2,
	"resolution":        2,
	"video_codec":       2,
	"audio_codec":       1,
	"streaming_service": 1,
	"imdb_id":           35,
	"series_imdb_id":    30,
	"tvdb_id":           23,
	"series_tvdb_id":    20,
	"tmdb_id":           18,
	"series_tmdb_id":    15,
	"hearing_impaired":  1,
}

func weightsFor(kind video.Kind) map[string]int {
	if kind == video.KindEpisode {
		return EpisodeWeights
	}
	return MovieWeights
}

// MaxScore returns the maximum attainable score for kind: the sum of
// every weight in its table.
func MaxScore(kind video.Kind) int {
	total := 0
	for _, w := range weightsFor(kind) {
		total += w
	}
	return total
}

func dropAll(matchSet map[string]bool, attrs ...string) map[string]bool {
	reduced := map[string]bool{}
	for k, v := range matchSet {
		reduced[k] = v
	}
	for _, a := range attrs {
		delete(reduced, a)
	}
	return reduced
}

func intersect(matchSet map[string]bool, keep ...string) map[string]bool {
	reduced := map[string]bool{}
	for _, k := range keep {
		if matchSet[k] {
			reduced[k] = true
		}
	}
	return reduced
}

// ComputeScore applies the attribute-subsumption rules and sums the
// resulting attributes' weights for kind. The result is always bounded
// above by MaxScore(kind).
func ComputeScore(matchSet map[string]bool, kind video.Kind) int {
	reduced := matchSet

	if reduced["hash"] {
		reduced = intersect(reduced, "hash", "hearing_impaired", "foreign_only")
	}

	if kind == video.KindEpisode {
		switch {
		case reduced["series_imdb_id"]:
			reduced = dropAll(reduced, "series", "year", "country")
		case reduced["imdb_id"]:
			reduced = dropAll(reduced, "series", "year", "country", "season", "episode", "title")
		}
		switch {
		case reduced["series_tvdb_id"]:
			reduced = dropAll(reduced, "series", "year", "country")
		case reduced["tvdb_id"]:
			reduced = dropAll(reduced, "series", "year", "country", "season", "episode", "title")
		}
		switch {
		case reduced["series_tmdb_id"]:
			reduced = dropAll(reduced, "series", "year", "country")
		case reduced["tmdb_id"]:
			reduced = dropAll(reduced, "series", "year", "country", "season", "episode", "title")
		}
	} else {
		if reduced["imdb_id"] || reduced["tmdb_id"] {
			reduced = dropAll(reduced, "title", "year", "country")
		}
	}

	weights := weightsFor(kind)
	score := 0
	for attr := range reduced {
		score += weights[attr]
	}

	max := MaxScore(kind)
	if score > max {
		score = max
	}
	return score
}

// MinScoreScaled interprets minScore (0-100) as a percentage of kind's
// hash weight.
func MinScoreScaled(minScore int, kind video.Kind) int {
	hashWeight := weightsFor(kind)["hash"]
	return minScore * hashWeight / 100
}
