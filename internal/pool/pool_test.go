package pool

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"catalogizer/subtitles/internal/language"
	"catalogizer/subtitles/internal/provider"
	"catalogizer/subtitles/internal/subtitle"
	"catalogizer/subtitles/internal/video"
)

// TestMain verifies that the pool's errgroup fan-out and semaphore
// bookkeeping leave no goroutine behind once every test's Pool has
// been closed.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var enLang = language.Language{Alpha3: "eng"}

// fakeProvider is an in-memory Provider used to exercise the pool without
// any network access. ListSubtitles calls are counted so tests can assert
// on fan-out and retry behavior.
type fakeProvider struct {
	name string
	caps provider.Capabilities

	mu           sync.Mutex
	initErr      error
	listErr      error
	downloadErr  error
	listCalls    int32
	downloadFunc func(s *subtitle.Subtitle) error
	subs         []*subtitle.Subtitle
}

func (p *fakeProvider) Name() string                        { return p.name }
func (p *fakeProvider) Capabilities() provider.Capabilities { return p.caps }

func (p *fakeProvider) Initialize(ctx context.Context) error { return p.initErr }
func (p *fakeProvider) Terminate(ctx context.Context) error  { return nil }

func (p *fakeProvider) ListSubtitles(ctx context.Context, v *video.Video, languages []language.Language) ([]*subtitle.Subtitle, error) {
	atomic.AddInt32(&p.listCalls, 1)
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.listErr != nil {
		return nil, p.listErr
	}
	return p.subs, nil
}

func (p *fakeProvider) DownloadSubtitle(ctx context.Context, s *subtitle.Subtitle) error {
	if p.downloadFunc != nil {
		return p.downloadFunc(s)
	}
	return p.downloadErr
}

func registerFake(t *testing.T, p *fakeProvider) {
	t.Helper()
	provider.Register(p.name, func(settings map[string]any) (provider.Provider, error) {
		return p, nil
	})
}

func movieCaps() provider.Capabilities {
	return provider.Capabilities{
		Languages:  map[language.Language]bool{enLang: true},
		VideoKinds: map[video.Kind]bool{video.KindMovie: true, video.KindEpisode: true},
	}
}

func TestPool_ListSubtitles_AggregatesAcrossProviders(t *testing.T) {
	a := &fakeProvider{name: "alpha-" + t.Name(), caps: movieCaps(), subs: []*subtitle.Subtitle{
		{ProviderName: "alpha", SubtitleID: "1", Language: enLang},
	}}
	b := &fakeProvider{name: "beta-" + t.Name(), caps: movieCaps(), subs: []*subtitle.Subtitle{
		{ProviderName: "beta", SubtitleID: "2", Language: enLang},
	}}
	registerFake(t, a)
	registerFake(t, b)

	p := New(Config{Providers: []string{a.name, b.name}, MaxWorkers: 4}, nil)
	defer p.Close()

	v := video.NewMovie("Movie.2020.mkv", "Movie")
	subs, err := p.ListSubtitles(context.Background(), v, []language.Language{enLang})
	require.NoError(t, err)
	assert.Len(t, subs, 2)
}

func TestPool_ListSubtitles_SkipsProviderWithUnsupportedKind(t *testing.T) {
	a := &fakeProvider{
		name: "movie-only-" + t.Name(),
		caps: provider.Capabilities{
			Languages:  map[language.Language]bool{enLang: true},
			VideoKinds: map[video.Kind]bool{video.KindMovie: true},
		},
		subs: []*subtitle.Subtitle{{ProviderName: "movie-only", SubtitleID: "1", Language: enLang}},
	}
	registerFake(t, a)

	p := New(Config{Providers: []string{a.name}, MaxWorkers: 2}, nil)
	defer p.Close()

	ep := video.NewEpisode("Show.S01E01.mkv", "Show", 1, 1)
	subs, err := p.ListSubtitles(context.Background(), ep, []language.Language{enLang})
	require.NoError(t, err)
	assert.Empty(t, subs)
	assert.Zero(t, atomic.LoadInt32(&a.listCalls))
}

func TestPool_ListSubtitles_DiscardsOnAuthenticationError(t *testing.T) {
	a := &fakeProvider{
		name:    "bad-auth-" + t.Name(),
		caps:    movieCaps(),
		listErr: &provider.AuthenticationError{Provider: "bad-auth", Err: assertError("denied")},
	}
	registerFake(t, a)

	p := New(Config{Providers: []string{a.name}, MaxWorkers: 2}, nil)
	defer p.Close()

	v := video.NewMovie("Movie.2020.mkv", "Movie")
	_, err := p.ListSubtitles(context.Background(), v, []language.Language{enLang})
	require.NoError(t, err)

	st := p.states[a.name]
	assert.True(t, st.discarded)

	// A second call must not reach the provider at all.
	_, err = p.ListSubtitles(context.Background(), v, []language.Language{enLang})
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&a.listCalls))
}

func TestPool_ListSubtitles_ServiceUnavailableAllowsOneRetryThenDiscards(t *testing.T) {
	a := &fakeProvider{
		name:    "flaky-" + t.Name(),
		caps:    movieCaps(),
		listErr: &provider.ServiceUnavailable{Provider: "flaky", Err: assertError("down")},
	}
	registerFake(t, a)

	p := New(Config{Providers: []string{a.name}, MaxWorkers: 2}, nil)
	defer p.Close()

	v := video.NewMovie("Movie.2020.mkv", "Movie")

	_, err := p.ListSubtitles(context.Background(), v, []language.Language{enLang})
	require.NoError(t, err)
	assert.False(t, p.states[a.name].discarded, "first failure should not discard")

	_, err = p.ListSubtitles(context.Background(), v, []language.Language{enLang})
	require.NoError(t, err)
	assert.True(t, p.states[a.name].discarded, "second consecutive failure should discard")
}

func TestPool_DownloadSubtitle_InvalidContentIsNotDiscarded(t *testing.T) {
	a := &fakeProvider{
		name: "invalid-" + t.Name(),
		caps: movieCaps(),
		downloadFunc: func(s *subtitle.Subtitle) error {
			return &provider.InvalidSubtitleError{Provider: "invalid", SubtitleID: s.SubtitleID}
		},
	}
	registerFake(t, a)

	p := New(Config{Providers: []string{a.name}}, nil)
	defer p.Close()

	ok, err := p.DownloadSubtitle(context.Background(), &subtitle.Subtitle{ProviderName: a.name, SubtitleID: "1"})
	require.NoError(t, err)
	assert.False(t, ok)
	assert.False(t, p.states[a.name].discarded)
}

func TestPool_DownloadSubtitle_DiscardedProviderReturnsErrDiscarded(t *testing.T) {
	a := &fakeProvider{name: "discarded-" + t.Name(), caps: movieCaps()}
	registerFake(t, a)

	p := New(Config{Providers: []string{a.name}}, nil)
	defer p.Close()

	p.states[a.name].discarded = true

	_, err := p.DownloadSubtitle(context.Background(), &subtitle.Subtitle{ProviderName: a.name, SubtitleID: "1"})
	require.Error(t, err)
	var discErr *ErrDiscarded
	assert.ErrorAs(t, err, &discErr)
}

func TestPool_DownloadBestSubtitles_GreedySelectsHighestScorePerLanguage(t *testing.T) {
	fr := language.Language{Alpha3: "fra"}

	a := &fakeProvider{name: "best-" + t.Name(), caps: movieCaps()}
	registerFake(t, a)

	p := New(Config{Providers: []string{a.name}}, nil)
	defer p.Close()

	low := &subtitle.Subtitle{ProviderName: a.name, SubtitleID: "low", Language: enLang}
	high := &subtitle.Subtitle{ProviderName: a.name, SubtitleID: "high", Language: enLang}
	other := &subtitle.Subtitle{ProviderName: a.name, SubtitleID: "fr", Language: fr}

	candidates := []Candidate{
		{Subtitle: low, Score: 10, Order: 0},
		{Subtitle: high, Score: 30, Order: 0},
		{Subtitle: other, Score: 20, Order: 0},
	}

	downloaded, err := p.DownloadBestSubtitles(context.Background(), candidates, 5, false, nil)
	require.NoError(t, err)
	require.Len(t, downloaded, 2)
	ids := map[string]bool{}
	for _, s := range downloaded {
		ids[s.SubtitleID] = true
	}
	assert.True(t, ids["high"])
	assert.True(t, ids["fr"])
	assert.False(t, ids["low"], "lower-scored duplicate language candidate should be skipped")
}

func TestPool_DownloadBestSubtitles_RespectsMinScoreAndIgnoreIDs(t *testing.T) {
	a := &fakeProvider{name: "filtered-" + t.Name(), caps: movieCaps()}
	registerFake(t, a)

	p := New(Config{Providers: []string{a.name}}, nil)
	defer p.Close()

	below := &subtitle.Subtitle{ProviderName: a.name, SubtitleID: "below", Language: enLang}
	ignored := &subtitle.Subtitle{ProviderName: a.name, SubtitleID: "ignored", Language: language.Language{Alpha3: "deu"}}

	candidates := []Candidate{
		{Subtitle: below, Score: 1, Order: 0},
		{Subtitle: ignored, Score: 100, Order: 0},
	}

	downloaded, err := p.DownloadBestSubtitles(context.Background(), candidates, 10, false, map[string]bool{"ignored": true})
	require.NoError(t, err)
	assert.Empty(t, downloaded)
}

func TestPool_DownloadBestSubtitles_OnlyOneStopsAfterFirstAccepted(t *testing.T) {
	a := &fakeProvider{name: "only-one-" + t.Name(), caps: movieCaps()}
	registerFake(t, a)

	p := New(Config{Providers: []string{a.name}}, nil)
	defer p.Close()

	first := &subtitle.Subtitle{ProviderName: a.name, SubtitleID: "first", Language: enLang}
	second := &subtitle.Subtitle{ProviderName: a.name, SubtitleID: "second", Language: language.Language{Alpha3: "deu"}}

	candidates := []Candidate{
		{Subtitle: first, Score: 40, Order: 0},
		{Subtitle: second, Score: 30, Order: 0},
	}

	downloaded, err := p.DownloadBestSubtitles(context.Background(), candidates, 0, true, nil)
	require.NoError(t, err)
	require.Len(t, downloaded, 1)
	assert.Equal(t, "first", downloaded[0].SubtitleID)
}

type simpleError string

func (e simpleError) Error() string { return string(e) }

func assertError(msg string) error { return simpleError(msg) }
