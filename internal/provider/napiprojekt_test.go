package provider

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"catalogizer/subtitles/internal/video"
)

func TestNapiprojekt_Capabilities(t *testing.T) {
	p, err := newNapiprojektProvider(nil)
	require.NoError(t, err)
	caps := p.Capabilities()
	assert.Equal(t, "napiprojekt", caps.RequiredHash)
	assert.True(t, caps.VideoKinds[video.KindMovie])
	assert.True(t, caps.VideoKinds[video.KindEpisode])
}

func TestNapiprojekt_ListSubtitles_NoHashReturnsEmpty(t *testing.T) {
	p, err := newNapiprojektProvider(nil)
	require.NoError(t, err)
	require.NoError(t, p.Initialize(context.Background()))

	v := video.NewMovie("x.mkv", "X")
	subs, err := p.ListSubtitles(context.Background(), v, nil)
	require.NoError(t, err)
	assert.Nil(t, subs)
}

func TestNapiprojekt_ListSubtitles_BeforeInitialize(t *testing.T) {
	p, err := newNapiprojektProvider(nil)
	require.NoError(t, err)
	v := video.NewMovie("x.mkv", "X")
	_, err = p.ListSubtitles(context.Background(), v, nil)
	require.Error(t, err)
	var niErr *NotInitializedProviderError
	assert.ErrorAs(t, err, &niErr)
}

func TestNapiprojekt_ListSubtitles_WithHashReturnsCandidate(t *testing.T) {
	p, err := newNapiprojektProvider(nil)
	require.NoError(t, err)
	require.NoError(t, p.Initialize(context.Background()))

	v := video.NewMovie("x.mkv", "X")
	v.Hashes["napiprojekt"] = "deadbeefdeadbeefdeadbeefdeadbeef"

	subs, err := p.ListSubtitles(context.Background(), v, nil)
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, "napiprojekt", subs[0].ProviderName)
	assert.True(t, subs[0].ProviderMatches["hash"])
}

func TestNapiprojektAuthToken_Deterministic(t *testing.T) {
	a := napiprojektAuthToken("abc123")
	b := napiprojektAuthToken("abc123")
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, napiprojektAuthToken("different"))
}
