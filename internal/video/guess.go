package video

import (
	"fmt"

	ptn "github.com/razsteinmetz/go-ptn"
)

// GuessDict is the structured feature dict produced by filename
// parsing, keyed by the closed vocabulary of attribute names
// matcher.GuessMatches compares against a Video.
type GuessDict struct {
	Type    string // "movie" or "episode"
	Title   string
	Year    int
	Series  string
	Season  int
	Episode int
	// Episodes holds every episode number in a multi-episode release
	// (e.g. "S01E01E02"), with Episode set to min(Episodes). go-ptn's
	// TorrentInfo exposes only a single Episode int, so Guess never
	// populates this; FromName's lowest-episode-number branch is
	// reachable only for a parser that does expose the full list.
	Episodes         []int
	EpisodeTitle     string
	ReleaseGroup     string
	ScreenSize       string // maps to Resolution
	Source           string
	VideoCodec       string
	AudioCodec       string
	StreamingService string
	Edition          string
	Country          string
}

// Guess runs the filename guess engine (go-ptn) over name and returns the
// structured feature dict. It never fails on its own; a low-information
// filename simply yields a sparse dict, and FromName decides whether that
// dict is usable.
func Guess(name string) GuessDict {
	info, err := ptn.Parse(name)
	if err != nil || info == nil {
		return GuessDict{}
	}

	g := GuessDict{
		Title:        info.Title,
		Year:         info.Year,
		Season:       info.Season,
		Episode:      info.Episode,
		EpisodeTitle: info.EpisodeName,
		ReleaseGroup: info.Group,
		ScreenSize:   info.Resolution,
		Source:       info.Quality,
		VideoCodec:   info.Codec,
		AudioCodec:   info.Audio,
	}

	if g.Season > 0 && (g.Episode > 0 || g.EpisodeTitle != "") {
		g.Type = "episode"
		g.Series = info.Title
		g.Title = ""
	} else if g.Title != "" {
		g.Type = "movie"
	}

	return g
}

// FromName parses path using the guess engine and constructs the
// appropriate Video variant based on the guess dict's discriminators.
func FromName(path string) (*Video, error) {
	g := Guess(stem(path))

	switch g.Type {
	case "episode":
		if g.Series == "" || g.Season == 0 || (g.Episode == 0 && g.EpisodeTitle == "") {
			return nil, &GuessingError{Name: path, Reason: "episode guess missing series, season, or episode/episode_title"}
		}
		episode := g.Episode
		if len(g.Episodes) > 0 {
			episode = minInt(g.Episodes)
		}
		v := NewEpisode(path, g.Series, g.Season, episode)
		v.Title = g.EpisodeTitle
		v.Year = g.Year
		v.ReleaseGroup = g.ReleaseGroup
		v.Resolution = g.ScreenSize
		v.Source = g.Source
		v.VideoCodec = g.VideoCodec
		v.AudioCodec = g.AudioCodec
		return v, nil
	case "movie":
		if g.Title == "" {
			return nil, &GuessingError{Name: path, Reason: "movie guess missing title"}
		}
		v := NewMovie(path, g.Title)
		v.Year = g.Year
		v.ReleaseGroup = g.ReleaseGroup
		v.Resolution = g.ScreenSize
		v.Source = g.Source
		v.VideoCodec = g.VideoCodec
		v.AudioCodec = g.AudioCodec
		return v, nil
	default:
		return nil, &GuessingError{Name: path, Reason: fmt.Sprintf("unrecognized guess type %q", g.Type)}
	}
}

func minInt(xs []int) int {
	m := xs[0]
	for _, x := range xs[1:] {
		if x < m {
			m = x
		}
	}
	return m
}
