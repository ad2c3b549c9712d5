// Package video implements the canonical feature record for a movie or
// episode: a common header plus either movie-only or episode-only
// fields, constructed by parsing a filename and mutated in place by
// the refiner pipeline (see refiner.go).
package video

import (
	"fmt"
	"strings"

	"catalogizer/subtitles/internal/language"
)

// Kind discriminates the two Video variants.
type Kind int

const (
	KindMovie Kind = iota
	KindEpisode
)

func (k Kind) String() string {
	switch k {
	case KindMovie:
		return "movie"
	case KindEpisode:
		return "episode"
	default:
		return "unknown"
	}
}

// Header holds the fields common to every Video, regardless of kind.
type Header struct {
	Name              string
	Source            string
	ReleaseGroup      string
	Resolution        string
	VideoCodec        string
	AudioCodec        string
	Hashes            map[string]string
	Size              int64
	SubtitleLanguages []language.Language
	FrameRate         float64
	Duration          float64
	IMDBID            string
	TMDBID            int
	TVDBID            int
}

// Video is a sum type: every instance carries a Header plus exactly
// the fields for its Kind. Movie-only and episode-only fields are
// zero-valued on the variant that doesn't use them.
type Video struct {
	Kind Kind
	Header

	// Movie-only
	Title             string
	Year              int
	AlternativeTitles []string

	// Episode-only (Title and Year above are also set for episodes: Title
	// holds the episode title, Year the year guessed from the name)
	Series            string
	Season            int
	Episode           int
	SeriesYear        int
	Country           string
	OriginalSeries    bool
	AlternativeSeries []string
	SeriesIMDBID      string
	SeriesTMDBID      int
	SeriesTVDBID      int
}

// GuessingError reports that a filename could not be resolved to a usable
// Video kind.
type GuessingError struct {
	Name   string
	Reason string
}

func (e *GuessingError) Error() string {
	return fmt.Sprintf("video: cannot guess kind of %q: %s", e.Name, e.Reason)
}

// IsEpisode reports whether v is the Episode variant.
func (v *Video) IsEpisode() bool { return v.Kind == KindEpisode }

// IsMovie reports whether v is the Movie variant.
func (v *Video) IsMovie() bool { return v.Kind == KindMovie }

// NewMovie constructs a Movie-kind Video with the given name and title.
func NewMovie(name, title string) *Video {
	return &Video{
		Kind:   KindMovie,
		Header: Header{Name: name, Hashes: map[string]string{}},
		Title:  title,
	}
}

// NewEpisode constructs an Episode-kind Video.
func NewEpisode(name, series string, season, episode int) *Video {
	return &Video{
		Kind:    KindEpisode,
		Header:  Header{Name: name, Hashes: map[string]string{}},
		Series:  series,
		Season:  season,
		Episode: episode,
	}
}

// HasSubtitleLanguage reports whether lang is already present in
// v.SubtitleLanguages, the video's "already satisfied" language set.
func (v *Video) HasSubtitleLanguage(lang language.Language) bool {
	for _, l := range v.SubtitleLanguages {
		if l == lang {
			return true
		}
	}
	return false
}

func stem(name string) string {
	base := name
	if idx := strings.LastIndexAny(base, `/\`); idx >= 0 {
		base = base[idx+1:]
	}
	if idx := strings.LastIndex(base, "."); idx > 0 {
		base = base[:idx]
	}
	return base
}
