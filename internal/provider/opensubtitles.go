package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/time/rate"

	"catalogizer/subtitles/internal/language"
	"catalogizer/subtitles/internal/subtitle"
	"catalogizer/subtitles/internal/tokencache"
	"catalogizer/subtitles/internal/video"
)

func init() {
	Register("opensubtitles", newOpenSubtitlesProvider)
}

const openSubtitlesBaseURL = "https://api.opensubtitles.com/api/v1"

// openSubtitlesProvider is a REST adapter for the OpenSubtitles v1 API.
// It hashes by the "opensubtitles" algorithm and authenticates with a
// username/password pair, caching the resulting JWT in a process-wide
// cache keyed by username.
type openSubtitlesProvider struct {
	apiKey     string
	username   string
	password   string
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	cache      tokencache.Cache

	mu    sync.Mutex
	token string
	ready bool
}

func newOpenSubtitlesProvider(settings map[string]any) (Provider, error) {
	apiKey := settingString(settings, "api_key", "")
	if apiKey == "" {
		return nil, &ConfigurationError{Provider: "opensubtitles", Detail: "api_key is required"}
	}

	cache, _ := settings["cache"].(tokencache.Cache)
	if cache == nil {
		cache = tokencache.NewMemoryCache()
	}

	return &openSubtitlesProvider{
		apiKey:     apiKey,
		username:   settingString(settings, "username", ""),
		password:   settingString(settings, "password", ""),
		baseURL:    settingString(settings, "base_url", openSubtitlesBaseURL),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		limiter:    rate.NewLimiter(rate.Every(time.Second), 5),
		cache:      cache,
	}, nil
}

func (p *openSubtitlesProvider) Name() string { return "opensubtitles" }

func (p *openSubtitlesProvider) Capabilities() Capabilities {
	return Capabilities{
		Languages:    allIETFLanguages(),
		VideoKinds:   map[video.Kind]bool{video.KindMovie: true, video.KindEpisode: true},
		RequiredHash: "",
	}
}

func (p *openSubtitlesProvider) Initialize(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.username == "" || p.password == "" {
		p.ready = true // anonymous mode, reduced capability
		return nil
	}

	if cached, ok := p.cache.Get(ctx, "opensubtitles.token", p.username); ok && !jwtExpired(cached) {
		p.token = cached
		p.ready = true
		return nil
	}

	body, _ := json.Marshal(map[string]string{"username": p.username, "password": p.password})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/login", bytes.NewReader(body))
	if err != nil {
		return &ConfigurationError{Provider: p.Name(), Detail: err.Error()}
	}
	p.applyCommonHeaders(req, true)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return &ServiceUnavailable{Provider: p.Name(), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return &AuthenticationError{Provider: p.Name(), Err: fmt.Errorf("status %d", resp.StatusCode)}
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		return &TooManyRequests{Provider: p.Name()}
	}
	if resp.StatusCode >= 500 {
		return &ServiceUnavailable{Provider: p.Name(), Err: fmt.Errorf("status %d", resp.StatusCode)}
	}
	if resp.StatusCode >= 400 {
		return &ProviderError{Provider: p.Name(), Err: fmt.Errorf("login failed: status %d", resp.StatusCode)}
	}

	var loginResp struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&loginResp); err != nil {
		return &ProviderError{Provider: p.Name(), Err: err}
	}

	p.token = loginResp.Token
	p.cache.Set(ctx, "opensubtitles.token", p.username, p.token, time.Hour)
	p.ready = true
	return nil
}

func (p *openSubtitlesProvider) Terminate(ctx context.Context) error {
	p.mu.Lock()
	token := p.token
	p.token = ""
	p.ready = false
	p.mu.Unlock()

	if token == "" {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, p.baseURL+"/logout", nil)
	if err != nil {
		return nil
	}
	p.applyCommonHeaders(req, false)
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil
	}
	defer resp.Body.Close()
	return nil
}

func (p *openSubtitlesProvider) ListSubtitles(ctx context.Context, v *video.Video, languages []language.Language) ([]*subtitle.Subtitle, error) {
	p.mu.Lock()
	ready := p.ready
	p.mu.Unlock()
	if !ready {
		return nil, &NotInitializedProviderError{Provider: p.Name()}
	}

	if err := p.limiter.Wait(ctx); err != nil {
		return nil, &ServiceUnavailable{Provider: p.Name(), Err: err}
	}

	params := map[string]string{}
	if hash, ok := v.Hashes["opensubtitles"]; ok && hash != "" {
		params["moviehash"] = hash
	}
	if v.IsMovie() {
		params["query"] = v.Title
		if v.Year != 0 {
			params["year"] = strconv.Itoa(v.Year)
		}
	} else {
		params["query"] = v.Series
		params["season_number"] = strconv.Itoa(v.Season)
		params["episode_number"] = strconv.Itoa(v.Episode)
	}
	if len(languages) > 0 {
		tags := make([]string, len(languages))
		for i, l := range languages {
			tags[i] = l.ToIETF()
		}
		params["languages"] = strings.Join(tags, ",")
	}

	body, status, err := p.get(ctx, "/subtitles", params)
	if err != nil {
		return nil, err
	}
	if status == http.StatusTooManyRequests {
		return nil, &TooManyRequests{Provider: p.Name()}
	}
	if status >= 500 {
		return nil, &ServiceUnavailable{Provider: p.Name(), Err: fmt.Errorf("status %d", status)}
	}
	if status >= 400 {
		return nil, &ProviderError{Provider: p.Name(), Err: fmt.Errorf("search failed: status %d", status)}
	}

	var search struct {
		Data []struct {
			ID         string `json:"id"`
			Attributes struct {
				Language         string `json:"language"`
				HearingImpaired  bool   `json:"hearing_impaired"`
				ForeignPartsOnly bool   `json:"foreign_parts_only"`
				Release          string `json:"release"`
				MoviehashMatch   bool   `json:"moviehash_match"`
				URL              string `json:"url"`
				Files            []struct {
					FileID int `json:"file_id"`
				} `json:"files"`
			} `json:"attributes"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &search); err != nil {
		return nil, &ProviderError{Provider: p.Name(), Err: err}
	}

	results := make([]*subtitle.Subtitle, 0, len(search.Data))
	for _, item := range search.Data {
		lang, err := language.FromIETF(item.Attributes.Language)
		if err != nil {
			continue
		}
		fileID := ""
		if len(item.Attributes.Files) > 0 {
			fileID = strconv.Itoa(item.Attributes.Files[0].FileID)
		}
		s := &subtitle.Subtitle{
			ProviderName:    p.Name(),
			SubtitleID:      item.ID,
			Language:        lang,
			HearingImpaired: item.Attributes.HearingImpaired,
			ForeignOnly:     item.Attributes.ForeignPartsOnly,
			PageLink:        item.Attributes.URL,
			DownloadLink:    fileID,
			GuessDict:       video.Guess(item.Attributes.Release),
		}
		if item.Attributes.MoviehashMatch {
			s.ProviderMatches = map[string]bool{"hash": true}
		}
		results = append(results, s)
	}
	return results, nil
}

func (p *openSubtitlesProvider) DownloadSubtitle(ctx context.Context, s *subtitle.Subtitle) error {
	p.mu.Lock()
	token, ready := p.token, p.ready
	p.mu.Unlock()
	if !ready {
		return &NotInitializedProviderError{Provider: p.Name()}
	}
	if token == "" {
		return &AuthenticationError{Provider: p.Name(), Err: fmt.Errorf("download requires authentication")}
	}

	if err := p.limiter.Wait(ctx); err != nil {
		return &ServiceUnavailable{Provider: p.Name(), Err: err}
	}

	fileID, err := strconv.Atoi(s.DownloadLink)
	if err != nil {
		return &ProviderError{Provider: p.Name(), Err: fmt.Errorf("no downloadable file for subtitle %s", s.SubtitleID)}
	}

	reqBody, _ := json.Marshal(map[string]any{"file_id": fileID})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/download", bytes.NewReader(reqBody))
	if err != nil {
		return &ProviderError{Provider: p.Name(), Err: err}
	}
	p.applyCommonHeaders(req, true)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return &ServiceUnavailable{Provider: p.Name(), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusForbidden {
		return &DownloadLimitExceeded{Provider: p.Name()}
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		return &TooManyRequests{Provider: p.Name()}
	}
	if resp.StatusCode >= 500 {
		return &ServiceUnavailable{Provider: p.Name(), Err: fmt.Errorf("status %d", resp.StatusCode)}
	}
	if resp.StatusCode >= 400 {
		return &ProviderError{Provider: p.Name(), Err: fmt.Errorf("download request failed: status %d", resp.StatusCode)}
	}

	var dl struct {
		Link string `json:"link"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&dl); err != nil {
		return &ProviderError{Provider: p.Name(), Err: err}
	}

	fileReq, err := http.NewRequestWithContext(ctx, http.MethodGet, dl.Link, nil)
	if err != nil {
		return &ProviderError{Provider: p.Name(), Err: err}
	}
	fileResp, err := p.httpClient.Do(fileReq)
	if err != nil {
		return &ServiceUnavailable{Provider: p.Name(), Err: err}
	}
	defer fileResp.Body.Close()

	// A 200 response carrying an HTML body (not the expected subtitle
	// text) usually means the CDN quietly rate-limited us; treat it as an
	// exhausted download quota.
	if ct := fileResp.Header.Get("Content-Type"); strings.Contains(ct, "text/html") {
		return &DownloadLimitExceeded{Provider: p.Name()}
	}

	content, err := io.ReadAll(fileResp.Body)
	if err != nil {
		return &ServiceUnavailable{Provider: p.Name(), Err: err}
	}

	s.Content = subtitle.FixLineEndings(content)
	if !s.IsValid() {
		return &InvalidSubtitleError{Provider: p.Name(), SubtitleID: s.SubtitleID}
	}
	return nil
}

func (p *openSubtitlesProvider) get(ctx context.Context, path string, params map[string]string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+path, nil)
	if err != nil {
		return nil, 0, &ProviderError{Provider: p.Name(), Err: err}
	}
	q := req.URL.Query()
	for k, v := range params {
		if v != "" {
			q.Set(k, v)
		}
	}
	req.URL.RawQuery = q.Encode()
	p.applyCommonHeaders(req, false)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, 0, &ServiceUnavailable{Provider: p.Name(), Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, &ProviderError{Provider: p.Name(), Err: err}
	}
	return body, resp.StatusCode, nil
}

func (p *openSubtitlesProvider) applyCommonHeaders(req *http.Request, jsonBody bool) {
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "catalogizer-subtitles/1.0")
	req.Header.Set("Api-Key", p.apiKey)
	if jsonBody {
		req.Header.Set("Content-Type", "application/json")
	}
}

// jwtExpired reports whether token's exp claim has passed. The cached
// token is never signature-verified here: api.opensubtitles.com is the
// only party holding the signing key, so all a client can do is read
// the exp claim to avoid presenting a token that's already stale.
// A token that fails to parse as a JWT at all is treated as expired.
func jwtExpired(token string) bool {
	parser := jwt.NewParser(jwt.WithoutClaimsValidation())
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return true
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return true
	}
	return time.Now().After(exp.Time)
}

func allIETFLanguages() map[language.Language]bool {
	tags := []string{"en", "fr", "de", "es", "it", "pt", "pt-BR", "ru", "ja", "zh-Hans", "ko", "pl", "nl", "sv", "tr", "ar"}
	out := make(map[language.Language]bool, len(tags))
	for _, t := range tags {
		if l, err := language.FromIETF(t); err == nil {
			out[l] = true
		}
	}
	return out
}
