// Package matcher compares a Video against a filename guess dict and
// produces the match-set of attribute names that agree, drawn from a
// closed vocabulary. Strings are sanitized the same way before
// comparison regardless of which field they came from, generalized
// from filename-vs-filename comparison to field-vs-field comparison.
package matcher

import (
	"strings"
	"unicode"

	"catalogizer/subtitles/internal/video"
)

// releaseGroupEquivalents lists canonical sets of release-group names
// treated as interchangeable by releaseGroupMatches. Implementers
// extend this static table as new equivalences are discovered.
var releaseGroupEquivalents = [][]string{
	{"lol", "dimension"},
	{"ctrlhd", "eztv"},
	{"sva", "amiable"},
}

// sanitize normalizes a string for comparison: case-fold, strip
// punctuation, collapse whitespace. It mirrors the filename-normalization
// approach used to compare a video filename against a subtitle filename,
// applied here to individual attribute values.
func sanitize(s string) string {
	var b strings.Builder
	lastWasSpace := false
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastWasSpace = false
		default:
			if !lastWasSpace && b.Len() > 0 {
				b.WriteRune(' ')
				lastWasSpace = true
			}
		}
	}
	return strings.TrimSpace(b.String())
}

func equalSanitized(a, b string) bool {
	return sanitize(a) == sanitize(b)
}

func releaseGroupMatches(guessGroup, videoGroup string) bool {
	if equalSanitized(guessGroup, videoGroup) {
		return true
	}
	g, v := sanitize(guessGroup), sanitize(videoGroup)
	for _, set := range releaseGroupEquivalents {
		inSet := func(x string) bool {
			for _, s := range set {
				if s == x {
					return true
				}
			}
			return false
		}
		if inSet(g) && inSet(v) {
			return true
		}
	}
	return false
}

// GuessMatches compares every attribute present in g against the
// corresponding field of v under sanitize-normalization, returning the
// set of attribute names (drawn from the same closed vocabulary) that
// match. When partial is true, a video attribute that is absent counts
// as a match (the guess is known to be incomplete); when false, an
// attribute missing on either side never matches.
func GuessMatches(v *video.Video, g video.GuessDict, partial bool) map[string]bool {
	matches := map[string]bool{}

	check := func(attr string, guessPresent bool, guessVal, videoVal string) {
		videoPresent := videoVal != ""
		if !guessPresent {
			return
		}
		if !videoPresent {
			if partial {
				matches[attr] = true
			}
			return
		}
		if equalSanitized(guessVal, videoVal) {
			matches[attr] = true
		}
	}

	checkInt := func(attr string, guessPresent bool, guessVal, videoVal int) {
		videoPresent := videoVal != 0
		if !guessPresent {
			return
		}
		if !videoPresent {
			if partial {
				matches[attr] = true
			}
			return
		}
		if guessVal == videoVal {
			matches[attr] = true
		}
	}

	if v.IsMovie() {
		check("title", g.Title != "", g.Title, v.Title)
	} else {
		check("series", g.Series != "", g.Series, v.Series)
		checkInt("season", g.Season != 0, g.Season, v.Season)
		checkInt("episode", g.Episode != 0, g.Episode, v.Episode)
		check("title", g.EpisodeTitle != "", g.EpisodeTitle, v.Title)
	}

	checkInt("year", g.Year != 0, g.Year, v.Year)
	check("source", g.Source != "", g.Source, v.Source)
	check("video_codec", g.VideoCodec != "", g.VideoCodec, v.VideoCodec)
	check("audio_codec", g.AudioCodec != "", g.AudioCodec, v.AudioCodec)
	check("resolution", g.ScreenSize != "", g.ScreenSize, v.Resolution)
	check("streaming_service", g.StreamingService != "", g.StreamingService, "")
	check("edition", g.Edition != "", g.Edition, "")
	check("country", g.Country != "", g.Country, v.Country)

	if g.ReleaseGroup != "" && v.ReleaseGroup != "" && releaseGroupMatches(g.ReleaseGroup, v.ReleaseGroup) {
		matches["release_group"] = true
	} else if g.ReleaseGroup != "" && v.ReleaseGroup == "" && partial {
		matches["release_group"] = true
	}

	return matches
}
