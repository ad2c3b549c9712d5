// Package subtitle implements the provider-tagged candidate record:
// identity, content normalization and validation, and match-set
// computation against a Video.
package subtitle

import (
	"bytes"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"catalogizer/subtitles/internal/language"
	"catalogizer/subtitles/internal/matcher"
	"catalogizer/subtitles/internal/video"
)

// Subtitle is a single candidate surfaced by a provider during
// list_subtitles, optionally populated with downloaded content.
type Subtitle struct {
	ProviderName    string
	SubtitleID      string
	Language        language.Language
	HearingImpaired bool
	ForeignOnly     bool
	PageLink        string
	DownloadLink    string
	Encoding        string
	Content         []byte
	FPS             float64
	ProviderMatches map[string]bool // attributes the provider's API itself asserts, e.g. a hash match
	GuessDict       video.GuessDict // parsed from the subtitle's own release name, when known
}

// Identity returns the (provider_name, subtitle_id) pair that uniquely
// identifies this subtitle.
type Identity struct {
	ProviderName string
	SubtitleID   string
}

// ID returns s's identity.
func (s *Subtitle) ID() Identity {
	return Identity{ProviderName: s.ProviderName, SubtitleID: s.SubtitleID}
}

// NewSyntheticID generates a subtitle_id for providers whose API never
// hands back a stable identifier of its own (unlike opensubtitles's
// item.ID or napiprojekt's content hash).
func NewSyntheticID() string {
	return uuid.NewString()
}

// EnsureID backfills SubtitleID with a synthetic one when a provider
// left it empty, so downstream dedup/ignore-list logic always has a
// usable identity.
func (s *Subtitle) EnsureID() {
	if s.SubtitleID == "" {
		s.SubtitleID = NewSyntheticID()
	}
}

// HasContent reports whether download_subtitle has populated Content.
func (s *Subtitle) HasContent() bool {
	return s.Content != nil
}

var srtCueIndex = regexp.MustCompile(`(?m)^\s*\d+\s*$`)
var srtTimecode = regexp.MustCompile(`\d{2}:\d{2}:\d{2}[,.]\d{3}\s*-->\s*\d{2}:\d{2}:\d{2}[,.]\d{3}`)

// IsValid parses Content as SubRip and reports whether at least 80% of
// the declared cues (index line followed by a timecode line) parse
// successfully. An empty Content is never valid.
func (s *Subtitle) IsValid() bool {
	if len(s.Content) == 0 {
		return false
	}
	text := string(FixLineEndings(s.Content))
	indices := srtCueIndex.FindAllStringIndex(text, -1)
	if len(indices) == 0 {
		return false
	}
	valid := 0
	for _, loc := range indices {
		rest := text[loc[1]:]
		end := len(rest)
		if end > 200 {
			end = 200
		}
		if srtTimecode.MatchString(rest[:end]) {
			valid++
		}
	}
	return float64(valid)/float64(len(indices)) >= 0.8
}

// FixLineEndings normalizes CRLF and lone CR to LF, strips a UTF-8 BOM,
// and replaces invalid multi-byte sequences. It is idempotent: calling
// it on already-normalized content is a no-op.
func FixLineEndings(b []byte) []byte {
	b = bytes.TrimPrefix(b, []byte{0xEF, 0xBB, 0xBF})
	b = bytes.ReplaceAll(b, []byte("\r\n"), []byte("\n"))
	b = bytes.ReplaceAll(b, []byte("\r"), []byte("\n"))

	if utf8.Valid(b) {
		return b
	}
	var out bytes.Buffer
	for len(b) > 0 {
		r, size := utf8.DecodeRune(b)
		if r == utf8.RuneError && size <= 1 {
			out.WriteRune(utf8.RuneError)
			b = b[1:]
			continue
		}
		out.WriteRune(r)
		b = b[size:]
	}
	return out.Bytes()
}

// SniffFormat inspects the first 256 bytes of content and returns a
// best-guess subtitle format extension ("srt" unless a recognized
// alternative signature is found).
func SniffFormat(content []byte) string {
	head := content
	if len(head) > 256 {
		head = head[:256]
	}
	text := string(head)
	switch {
	case strings.Contains(text, "WEBVTT"):
		return "vtt"
	case strings.Contains(text, "[Script Info]"):
		return "ass"
	default:
		return "srt"
	}
}

// PathFor derives the on-disk subtitle path for videoPath and lang:
// "<stem>.<lang-suffix>.<ext>" where lang-suffix is the IETF tag for
// non-undefined languages and empty otherwise.
func PathFor(videoPath string, lang language.Language, ext string) string {
	if ext == "" {
		ext = "srt"
	}
	dir := filepath.Dir(videoPath)
	base := filepath.Base(videoPath)
	stem := strings.TrimSuffix(base, filepath.Ext(base))

	name := stem
	if !lang.IsUndefined() {
		name = fmt.Sprintf("%s.%s", stem, lang.ToIETF())
	}
	name = fmt.Sprintf("%s.%s", name, ext)
	return filepath.Join(dir, name)
}

// GetMatches computes the full match-set for s against v: the union of
// matcher.GuessMatches run over s's own release-name guess, the
// provider-asserted matches (e.g. a hash match the provider's API
// claims directly), and the hearing-impaired/foreign-only boolean
// preferences when they equal the caller's request.
func (s *Subtitle) GetMatches(v *video.Video, hearingImpaired, foreignOnly *bool) map[string]bool {
	matches := matcher.GuessMatches(v, s.GuessDict, false)

	for attr, ok := range s.ProviderMatches {
		if ok {
			matches[attr] = true
		}
	}

	if hearingImpaired != nil && *hearingImpaired == s.HearingImpaired {
		matches["hearing_impaired"] = true
	}
	if foreignOnly != nil && *foreignOnly == s.ForeignOnly {
		matches["foreign_only"] = true
	}

	return matches
}
