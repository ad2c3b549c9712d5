package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"catalogizer/subtitles/internal/config"
	"catalogizer/subtitles/internal/language"
	"catalogizer/subtitles/internal/provider"
	"catalogizer/subtitles/internal/subtitle"
	"catalogizer/subtitles/internal/video"
)

var enLang = language.Language{Alpha3: "eng"}

type fakeProvider struct {
	name string
	subs []*subtitle.Subtitle
}

func (f *fakeProvider) Name() string { return f.name }
func (f *fakeProvider) Capabilities() provider.Capabilities {
	return provider.Capabilities{
		Languages:  map[language.Language]bool{enLang: true},
		VideoKinds: map[video.Kind]bool{video.KindMovie: true, video.KindEpisode: true},
	}
}
func (f *fakeProvider) Initialize(context.Context) error { return nil }
func (f *fakeProvider) Terminate(context.Context) error  { return nil }
func (f *fakeProvider) ListSubtitles(context.Context, *video.Video, []language.Language) ([]*subtitle.Subtitle, error) {
	return f.subs, nil
}
func (f *fakeProvider) DownloadSubtitle(_ context.Context, s *subtitle.Subtitle) error {
	s.Content = []byte("1\n00:00:01,000 --> 00:00:02,000\nHi\n")
	return nil
}

func registerFake(t *testing.T, name string, subs []*subtitle.Subtitle) {
	t.Helper()
	provider.Register(name, func(map[string]any) (provider.Provider, error) {
		return &fakeProvider{name: name, subs: subs}, nil
	})
}

func TestCheckVideo_AllLanguagesSatisfiedRejectsVideo(t *testing.T) {
	v := video.NewMovie("x.mkv", "X")
	v.SubtitleLanguages = []language.Language{enLang}
	assert.False(t, checkVideo(v, []language.Language{enLang}, 0, false, false))
}

func TestCheckVideo_MissingLanguageAccepts(t *testing.T) {
	v := video.NewMovie("x.mkv", "X")
	assert.True(t, checkVideo(v, []language.Language{enLang}, 0, false, false))
}

func TestCheckVideo_OlderThanAgeRejects(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "x.mkv")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	old := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(path, old, old))

	v := video.NewMovie(path, "X")
	assert.False(t, checkVideo(v, []language.Language{enLang}, time.Hour, false, false))
}

func TestCheckVideo_OnlyOneWithExistingUndefinedSubtitleRejects(t *testing.T) {
	v := video.NewMovie("x.mkv", "X")
	v.SubtitleLanguages = []language.Language{{}}
	assert.False(t, checkVideo(v, []language.Language{enLang}, 0, true, false))
}

func TestCheckVideo_ForceBypassesEveryPreCheck(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "x.mkv")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	old := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(path, old, old))

	v := video.NewMovie(path, "X")
	v.SubtitleLanguages = []language.Language{enLang, {}}
	assert.True(t, checkVideo(v, []language.Language{enLang}, time.Hour, true, true))
}

func TestPipeline_DownloadBestSubtitles_DownloadsAndPersists(t *testing.T) {
	name := "fake-" + t.Name()
	registerFake(t, name, []*subtitle.Subtitle{
		{ProviderName: name, SubtitleID: "1", Language: enLang, ProviderMatches: map[string]bool{"title": true}},
	})

	dir := t.TempDir()
	videoPath := filepath.Join(dir, "movie.mkv")
	require.NoError(t, os.WriteFile(videoPath, []byte("data"), 0o644))

	opts := config.Default()
	opts.Providers = []string{name}
	opts.Refiners = nil
	opts.Languages = []string{"en"}
	opts.Saver = config.SaverOptions{Protocol: "local"}

	p, err := New(opts, zap.NewNop())
	require.NoError(t, err)
	defer p.Close()

	v := video.NewMovie(videoPath, "X")
	results, err := p.DownloadBestSubtitles(context.Background(), []*video.Video{v}, nil)
	require.NoError(t, err)

	downloaded := results[v]
	require.Len(t, downloaded, 1)

	expectedPath := subtitle.PathFor(videoPath, enLang, "srt")
	content, err := os.ReadFile(expectedPath)
	require.NoError(t, err)
	assert.Contains(t, string(content), "Hi")
}

func TestPipeline_DownloadBestSubtitles_SkipsPreCheckRejectedVideo(t *testing.T) {
	name := "fake-" + t.Name()
	registerFake(t, name, nil)

	opts := config.Default()
	opts.Providers = []string{name}
	opts.Refiners = nil
	opts.Languages = []string{"en"}

	p, err := New(opts, zap.NewNop())
	require.NoError(t, err)
	defer p.Close()

	v := video.NewMovie("x.mkv", "X")
	v.SubtitleLanguages = []language.Language{enLang}

	results, err := p.DownloadBestSubtitles(context.Background(), []*video.Video{v}, nil)
	require.NoError(t, err)
	_, ok := results[v]
	assert.False(t, ok)
}

func TestNew_UnknownRefinerErrors(t *testing.T) {
	opts := config.Default()
	opts.Providers = []string{"opensubtitles"}
	opts.Provider = map[string]map[string]any{"opensubtitles": {"api_key": "k"}}
	opts.Refiners = []string{"does-not-exist"}

	_, err := New(opts, zap.NewNop())
	assert.Error(t, err)
}
