package provider

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"catalogizer/subtitles/internal/language"
	"catalogizer/subtitles/internal/subtitle"
	"catalogizer/subtitles/internal/video"
)

func init() {
	Register("napiprojekt", newNapiprojektProvider)
}

const napiprojektDownloadURL = "http://napiprojekt.pl/unit_napisy/dl.php"

// napiprojektProvider is an anonymous, hash-indexed provider: it never
// authenticates and serves at most one subtitle per video, keyed by the
// Napiprojekt MD5 hash. Its subtitle_id is the hash itself.
type napiprojektProvider struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	ready      bool
}

func newNapiprojektProvider(map[string]any) (Provider, error) {
	return &napiprojektProvider{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		limiter:    rate.NewLimiter(rate.Every(2*time.Second), 2),
	}, nil
}

func (p *napiprojektProvider) Name() string { return "napiprojekt" }

func (p *napiprojektProvider) Capabilities() Capabilities {
	pl, _ := language.FromIETF("pl")
	return Capabilities{
		Languages:    map[language.Language]bool{pl: true},
		VideoKinds:   map[video.Kind]bool{video.KindMovie: true, video.KindEpisode: true},
		RequiredHash: "napiprojekt",
	}
}

func (p *napiprojektProvider) Initialize(context.Context) error {
	p.ready = true
	return nil
}

func (p *napiprojektProvider) Terminate(context.Context) error {
	p.ready = false
	return nil
}

func (p *napiprojektProvider) ListSubtitles(ctx context.Context, v *video.Video, languages []language.Language) ([]*subtitle.Subtitle, error) {
	if !p.ready {
		return nil, &NotInitializedProviderError{Provider: p.Name()}
	}
	hash, ok := v.Hashes["napiprojekt"]
	if !ok || hash == "" {
		return nil, nil
	}
	if len(CheckLanguages(p, languages)) == 0 {
		return nil, nil
	}

	pl, _ := language.FromIETF("pl")
	sub := &subtitle.Subtitle{
		ProviderName:    p.Name(),
		SubtitleID:      hash,
		Language:        pl,
		ProviderMatches: map[string]bool{"hash": true},
	}
	return []*subtitle.Subtitle{sub}, nil
}

func (p *napiprojektProvider) DownloadSubtitle(ctx context.Context, s *subtitle.Subtitle) error {
	if !p.ready {
		return &NotInitializedProviderError{Provider: p.Name()}
	}
	if err := p.limiter.Wait(ctx); err != nil {
		return &ServiceUnavailable{Provider: p.Name(), Err: err}
	}

	hash := s.SubtitleID
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, napiprojektDownloadURL, nil)
	if err != nil {
		return &ProviderError{Provider: p.Name(), Err: err}
	}
	q := req.URL.Query()
	q.Set("l", "PL")
	q.Set("f", hash)
	q.Set("t", napiprojektAuthToken(hash))
	q.Set("v", "other")
	q.Set("kolejka", "false")
	q.Set("nick", "")
	q.Set("pass", "")
	q.Set("napios", "posix")
	req.URL.RawQuery = q.Encode()

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return &ServiceUnavailable{Provider: p.Name(), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return &TooManyRequests{Provider: p.Name()}
	}
	if resp.StatusCode >= 500 {
		return &ServiceUnavailable{Provider: p.Name(), Err: fmt.Errorf("status %d", resp.StatusCode)}
	}
	if resp.StatusCode >= 400 {
		return &ProviderError{Provider: p.Name(), Err: fmt.Errorf("status %d", resp.StatusCode)}
	}

	content, err := io.ReadAll(resp.Body)
	if err != nil {
		return &ServiceUnavailable{Provider: p.Name(), Err: err}
	}
	if len(content) < 16 || strings.Contains(string(content[:min(len(content), 32)]), "NPc") {
		// napiprojekt returns a short marker body when it has nothing for
		// this hash, rather than a 404.
		return &ProviderError{Provider: p.Name(), Err: fmt.Errorf("no subtitle for hash %s", hash)}
	}

	s.Content = subtitle.FixLineEndings(content)
	if !s.IsValid() {
		return &InvalidSubtitleError{Provider: p.Name(), SubtitleID: s.SubtitleID}
	}
	return nil
}

// napiprojektAuthToken derives the API's undocumented "t" parameter, an
// MD5 of a fixed salt concatenated with the subtitle hash.
func napiprojektAuthToken(hash string) string {
	const salt = "58313"
	sum := md5.Sum([]byte(salt + hash))
	return hex.EncodeToString(sum[:])
}
