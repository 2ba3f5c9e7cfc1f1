package browser

import (
	"testing"

	"github.com/go-rod/rod/lib/proto"
	"github.com/stretchr/testify/require"

	"github.com/PlayerYK/TweetSift/internal/errors"
	"github.com/PlayerYK/TweetSift/internal/gateway"
)

func TestCredentialsFrom(t *testing.T) {
	cookies := []*proto.NetworkCookie{
		{Name: "guest_id", Value: "g"},
		{Name: "ct0", Value: "csrf"},
		{Name: "auth_token", Value: "auth"},
	}
	c, err := credentialsFrom(cookies)
	require.NoError(t, err)
	require.Equal(t, gateway.Credentials{CSRFToken: "csrf", AuthToken: "auth"}, c)
}

func TestCredentialsFrom_LoggedOut(t *testing.T) {
	_, err := credentialsFrom([]*proto.NetworkCookie{{Name: "ct0", Value: "csrf"}})
	require.True(t, errors.Is(err, errors.ErrNotAuthenticated), "got %v", err)
}

func TestParseNativeState(t *testing.T) {
	saved, err := parseNativeState("1", "saved")
	require.NoError(t, err)
	require.True(t, saved)

	saved, err = parseNativeState("1", "unsaved")
	require.NoError(t, err)
	require.False(t, saved)

	_, err = parseNativeState("1", "")
	require.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestObservedRequest(t *testing.T) {
	url, body, ok := observedRequest(&proto.NetworkRequest{
		URL:      "https://x.com/i/api/graphql/abc123/CreateBookmark",
		Method:   "POST",
		PostData: `{"variables":{"tweet_id":"1"},"queryId":"abc123"}`,
	})
	require.True(t, ok)
	require.Equal(t, "https://x.com/i/api/graphql/abc123/CreateBookmark", url)
	require.NotNil(t, body)
	require.Contains(t, string(body.Raw), "queryId")

	_, body, ok = observedRequest(&proto.NetworkRequest{
		URL:    "https://x.com/i/api/graphql/def/BookmarkFoldersSlice?variables=%7B%7D",
		Method: "GET",
	})
	require.True(t, ok)
	require.Nil(t, body)

	_, _, ok = observedRequest(&proto.NetworkRequest{URL: "https://x.com/home"})
	require.False(t, ok)
	_, _, ok = observedRequest(nil)
	require.False(t, ok)
}

func TestIsHostURL(t *testing.T) {
	require.True(t, isHostURL("https://x.com/home"))
	require.True(t, isHostURL("https://twitter.com/i/bookmarks"))
	require.False(t, isHostURL("about:blank"))
}
