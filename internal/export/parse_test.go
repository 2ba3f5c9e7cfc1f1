package export

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

var scrapedAt = time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)

const fullPage = `{
  "data": {
    "bookmark_collection_timeline": {
      "timeline": {
        "instructions": [
          {
            "type": "TimelineAddEntries",
            "entries": [
              {"entryId": "cursor-top-1", "content": {"value": "TOP"}},
              {
                "entryId": "tweet-100",
                "content": {
                  "itemContent": {
                    "tweet_results": {
                      "result": {
                        "rest_id": "100",
                        "core": {"user_results": {"result": {
                          "rest_id": "u1",
                          "is_blue_verified": true,
                          "legacy": {"name": "Alice", "screen_name": "alice", "followers_count": 10, "verified": false, "created_at": "Mon Jan 01"},
                          "professional": {"professional_type": "Creator"}
                        }}},
                        "note_tweet": {"note_tweet_results": {"result": {"text": "long note"}}},
                        "views": {"count": "1234"},
                        "legacy": {
                          "id_str": "100",
                          "full_text": "short text",
                          "created_at": "Tue Feb 10",
                          "conversation_id_str": "100",
                          "favorite_count": 5,
                          "bookmarked": true,
                          "lang": "en",
                          "entities": {
                            "urls": [{"url": "https://t.co/x", "expanded_url": "https://example.com"}],
                            "hashtags": [{"text": "ai"}],
                            "user_mentions": [{"screen_name": "bob"}]
                          },
                          "extended_entities": {
                            "media": [
                              {"type": "video", "media_url_https": "https://pbs/thumb.jpg", "video_info": {"variants": [
                                {"content_type": "application/x-mpegURL", "url": "https://v/pl.m3u8"},
                                {"content_type": "video/mp4", "bitrate": 832000, "url": "https://v/low.mp4"},
                                {"content_type": "video/mp4", "bitrate": 2176000, "url": "https://v/high.mp4"}
                              ]}},
                              {"type": "photo", "media_url_https": "https://pbs/a.jpg"}
                            ]
                          }
                        }
                      }
                    }
                  }
                }
              },
              {
                "entryId": "tweet-200",
                "content": {
                  "itemContent": {
                    "tweet_results": {
                      "result": {
                        "__typename": "TweetWithVisibilityResults",
                        "tweet": {
                          "rest_id": "200",
                          "core": {"user_results": {"result": {"rest_id": "u2", "core": {"screen_name": "carol", "name": "Carol"}}}},
                          "legacy": {"full_text": "wrapped"}
                        }
                      }
                    }
                  }
                }
              },
              {
                "entryId": "tweet-300",
                "content": {"itemContent": {"tweet_results": {"result": {"rest_id": "300"}}}}
              },
              {
                "entryId": "cursor-bottom-1",
                "content": {"itemContent": {"value": "NEXT"}}
              }
            ]
          }
        ]
      }
    }
  }
}`

func TestParsePage(t *testing.T) {
	page, err := ParsePage(json.RawMessage(fullPage), scrapedAt)
	require.NoError(t, err)
	require.Equal(t, "NEXT", page.Cursor)
	require.Len(t, page.Tweets, 2, "entry without legacy is skipped")

	first := page.Tweets[0]
	require.Equal(t, "100", first.TweetID)
	require.Equal(t, "https://twitter.com/alice/status/100", first.TweetURL)
	require.Equal(t, "long note", first.Text())
	require.Equal(t, "1234", first.ViewCount)
	require.Equal(t, 5, first.FavoriteCount)
	require.True(t, first.Bookmarked)
	require.True(t, first.UserIsBlueVerified)
	require.Equal(t, "Creator", first.UserProfessionalType)
	require.Equal(t, scrapedAt, first.ScrapedAt)

	if diff := cmp.Diff([]string{"https://v/high.mp4", "https://pbs/a.jpg"}, first.MediaURLs); diff != "" {
		t.Errorf("MediaURLs mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"video", "photo"}, first.MediaTypes); diff != "" {
		t.Errorf("MediaTypes mismatch (-want +got):\n%s", diff)
	}
	require.Equal(t, 2, first.MediaCount)
	require.Equal(t, []string{"https://example.com"}, first.ExpandedURLs)
	require.Equal(t, []string{"ai"}, first.Hashtags)
	require.Equal(t, []string{"bob"}, first.UserMentions)

	second := page.Tweets[1]
	require.Equal(t, "200", second.TweetID)
	require.Equal(t, "wrapped", second.Text())
	require.Equal(t, "https://twitter.com/carol/status/200", second.TweetURL)
	require.Equal(t, "0", second.ViewCount)
	require.Empty(t, second.MediaURLs)
}

func TestParsePage_ModuleItemsAndV2(t *testing.T) {
	raw := `{"data": {"bookmark_collection_timeline_v2": {"timeline": {"instructions": [
	  {"moduleItems": [
	    {"entryId": "item-1", "content": {"items": [{"item": {"itemContent": {"tweet_results": {"result": {"legacy": {"id_str": "7", "full_text": "from module"}}}}}}]}},
	    {"entryId": "cursor-bottom-x", "content": {"value": "C2"}}
	  ]}
	]}}}}`

	page, err := ParsePage(json.RawMessage(raw), scrapedAt)
	require.NoError(t, err)
	require.Equal(t, "C2", page.Cursor)
	require.Len(t, page.Tweets, 1)
	require.Equal(t, "7", page.Tweets[0].TweetID)
	require.Equal(t, "https://twitter.com//status/7", page.Tweets[0].TweetURL)
}

func TestParsePage_NoTimeline(t *testing.T) {
	page, err := ParsePage(json.RawMessage(`{"data": {}}`), scrapedAt)
	require.NoError(t, err)
	require.Empty(t, page.Tweets)
	require.Empty(t, page.Cursor)
}

func TestParsePage_InvalidJSON(t *testing.T) {
	_, err := ParsePage(json.RawMessage(`{`), scrapedAt)
	require.Error(t, err)
}

func TestParsePage_MalformedTweetSkipped(t *testing.T) {
	raw := `{"data": {"bookmark_collection_timeline": {"timeline": {"instructions": [{"entries": [
	  {"entryId": "tweet-1", "content": {"itemContent": {"tweet_results": {"result": {"legacy": {"id_str": 12}}}}}},
	  {"entryId": "tweet-2", "content": {"itemContent": {"tweet_results": {"result": {"legacy": {"id_str": "2"}}}}}}
	]}]}}}}`

	page, err := ParsePage(json.RawMessage(raw), scrapedAt)
	require.NoError(t, err)
	require.Len(t, page.Tweets, 1)
	require.Equal(t, "2", page.Tweets[0].TweetID)
}

func TestMediaURL_FallsBackWithoutMP4(t *testing.T) {
	m := media{Type: "animated_gif", MediaURLHTTPS: "https://pbs/gif.jpg"}
	require.Equal(t, "https://pbs/gif.jpg", mediaURL(m))
}
