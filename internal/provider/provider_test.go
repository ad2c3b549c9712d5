package provider

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"catalogizer/subtitles/internal/language"
	"catalogizer/subtitles/internal/subtitle"
	"catalogizer/subtitles/internal/video"
)

func TestRegisterAndNew(t *testing.T) {
	Register("stub-test", func(settings map[string]any) (Provider, error) {
		return &openSubtitlesProvider{apiKey: "key"}, nil
	})
	p, err := New("stub-test", nil)
	require.NoError(t, err)
	assert.Equal(t, "opensubtitles", p.Name())
}

func TestNew_UnregisteredName(t *testing.T) {
	_, err := New("does-not-exist-provider", nil)
	require.Error(t, err)
	var cfgErr *ConfigurationError
	assert.ErrorAs(t, err, &cfgErr)
}

func TestCheck_VideoKindMismatch(t *testing.T) {
	en, _ := language.FromIETF("en")
	p := &fakeProvider{caps: Capabilities{
		Languages:  map[language.Language]bool{en: true},
		VideoKinds: map[video.Kind]bool{video.KindMovie: true},
	}}
	v := video.NewEpisode("x.mkv", "Series", 1, 1)
	assert.False(t, Check(p, v))
}

func TestCheck_RequiredHashMissing(t *testing.T) {
	p := &fakeProvider{caps: Capabilities{
		VideoKinds:   map[video.Kind]bool{video.KindMovie: true},
		RequiredHash: "napiprojekt",
	}}
	v := video.NewMovie("x.mkv", "X")
	assert.False(t, Check(p, v))

	v.Hashes["napiprojekt"] = "abc"
	assert.True(t, Check(p, v))
}

func TestCheckLanguages_Intersection(t *testing.T) {
	en, _ := language.FromIETF("en")
	fr, _ := language.FromIETF("fr")
	p := &fakeProvider{caps: Capabilities{Languages: map[language.Language]bool{en: true}}}
	got := CheckLanguages(p, []language.Language{en, fr})
	assert.Equal(t, []language.Language{en}, got)
}

type fakeProvider struct {
	caps Capabilities
}

func (f *fakeProvider) Name() string                     { return "fake" }
func (f *fakeProvider) Capabilities() Capabilities       { return f.caps }
func (f *fakeProvider) Initialize(context.Context) error { return nil }
func (f *fakeProvider) Terminate(context.Context) error  { return nil }
func (f *fakeProvider) ListSubtitles(context.Context, *video.Video, []language.Language) ([]*subtitle.Subtitle, error) {
	return nil, nil
}
func (f *fakeProvider) DownloadSubtitle(context.Context, *subtitle.Subtitle) error { return nil }
