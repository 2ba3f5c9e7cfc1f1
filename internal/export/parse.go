package export

import (
	"cmp"
	"encoding/json"
	"strings"
	"time"
)

// Page is one parsed timeline response.
type Page struct {
	Tweets []TweetRecord
	// Cursor continues pagination. Empty means the folder is exhausted.
	Cursor string
}

type timelineResponse struct {
	Data struct {
		Timeline   *timelineWrapper `json:"bookmark_collection_timeline"`
		TimelineV2 *timelineWrapper `json:"bookmark_collection_timeline_v2"`
	} `json:"data"`
}

type timelineWrapper struct {
	Timeline struct {
		Instructions []instruction `json:"instructions"`
	} `json:"timeline"`
}

type instruction struct {
	Entries     []entry `json:"entries"`
	ModuleItems []entry `json:"moduleItems"`
}

type entry struct {
	EntryID string `json:"entryId"`
	Content struct {
		Value       string       `json:"value"`
		ItemContent *itemContent `json:"itemContent"`
		Items       []struct {
			Item struct {
				ItemContent *itemContent `json:"itemContent"`
			} `json:"item"`
		} `json:"items"`
	} `json:"content"`
}

type itemContent struct {
	Value        string `json:"value"`
	TweetResults struct {
		Result json.RawMessage `json:"result"`
	} `json:"tweet_results"`
}

type tweetResult struct {
	Tweet  *tweetResult `json:"tweet"`
	RestID string       `json:"rest_id"`
	Legacy *tweetLegacy `json:"legacy"`
	Core   struct {
		UserResults struct {
			Result *userResult `json:"result"`
		} `json:"user_results"`
	} `json:"core"`
	NoteTweet struct {
		NoteTweetResults struct {
			Result struct {
				Text string `json:"text"`
			} `json:"result"`
		} `json:"note_tweet_results"`
	} `json:"note_tweet"`
	Views struct {
		Count string `json:"count"`
	} `json:"views"`
}

type tweetLegacy struct {
	IDStr             string `json:"id_str"`
	FullText          string `json:"full_text"`
	CreatedAt         string `json:"created_at"`
	ConversationIDStr string `json:"conversation_id_str"`
	UserIDStr         string `json:"user_id_str"`
	ReplyCount        int    `json:"reply_count"`
	RetweetCount      int    `json:"retweet_count"`
	FavoriteCount     int    `json:"favorite_count"`
	QuoteCount        int    `json:"quote_count"`
	BookmarkCount     int    `json:"bookmark_count"`
	Favorited         bool   `json:"favorited"`
	Retweeted         bool   `json:"retweeted"`
	Bookmarked        bool   `json:"bookmarked"`
	IsQuoteStatus     bool   `json:"is_quote_status"`
	PossiblySensitive bool   `json:"possibly_sensitive"`
	Lang              string `json:"lang"`
	ExtendedEntities  *struct {
		Media []media `json:"media"`
	} `json:"extended_entities"`
	Entities struct {
		Media []media `json:"media"`
		URLs  []struct {
			URL         string `json:"url"`
			ExpandedURL string `json:"expanded_url"`
		} `json:"urls"`
		Hashtags []struct {
			Text string `json:"text"`
		} `json:"hashtags"`
		UserMentions []struct {
			ScreenName string `json:"screen_name"`
		} `json:"user_mentions"`
	} `json:"entities"`
}

type media struct {
	Type          string `json:"type"`
	URL           string `json:"url"`
	MediaURLHTTPS string `json:"media_url_https"`
	VideoInfo     *struct {
		Variants []struct {
			ContentType string `json:"content_type"`
			Bitrate     int    `json:"bitrate"`
			URL         string `json:"url"`
		} `json:"variants"`
	} `json:"video_info"`
}

type userResult struct {
	RestID         string `json:"rest_id"`
	IsBlueVerified bool   `json:"is_blue_verified"`
	Core           struct {
		Name       string `json:"name"`
		ScreenName string `json:"screen_name"`
		CreatedAt  string `json:"created_at"`
	} `json:"core"`
	Legacy struct {
		Name                 string `json:"name"`
		ScreenName           string `json:"screen_name"`
		Description          string `json:"description"`
		FollowersCount       int    `json:"followers_count"`
		FriendsCount         int    `json:"friends_count"`
		FavouritesCount      int    `json:"favourites_count"`
		StatusesCount        int    `json:"statuses_count"`
		ListedCount          int    `json:"listed_count"`
		ProfileImageURLHTTPS string `json:"profile_image_url_https"`
		ProfileBannerURL     string `json:"profile_banner_url"`
		Location             string `json:"location"`
		Verified             bool   `json:"verified"`
		Protected            bool   `json:"protected"`
		CreatedAt            string `json:"created_at"`
	} `json:"legacy"`
	Professional struct {
		ProfessionalType string `json:"professional_type"`
	} `json:"professional"`
}

// ParsePage extracts posts and the bottom cursor from a folder timeline
// response. Posts that cannot be decoded are skipped.
func ParsePage(raw json.RawMessage, scrapedAt time.Time) (*Page, error) {
	var resp timelineResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, err
	}

	wrapper := resp.Data.Timeline
	if wrapper == nil {
		wrapper = resp.Data.TimelineV2
	}
	page := &Page{}
	if wrapper == nil {
		return page, nil
	}

	for _, ins := range wrapper.Timeline.Instructions {
		items := ins.Entries
		if items == nil {
			items = ins.ModuleItems
		}
		for _, e := range items {
			switch {
			case strings.HasPrefix(e.EntryID, "cursor-bottom"):
				page.Cursor = e.Content.Value
				if page.Cursor == "" && e.Content.ItemContent != nil {
					page.Cursor = e.Content.ItemContent.Value
				}
				continue
			case strings.HasPrefix(e.EntryID, "cursor-top"):
				continue
			}

			result := entryResult(e)
			if len(result) == 0 {
				continue
			}
			if rec, ok := parseTweet(result, scrapedAt); ok {
				page.Tweets = append(page.Tweets, rec)
			}
		}
	}
	return page, nil
}

func entryResult(e entry) json.RawMessage {
	if ic := e.Content.ItemContent; ic != nil && !isNull(ic.TweetResults.Result) {
		return ic.TweetResults.Result
	}
	if len(e.Content.Items) > 0 {
		if ic := e.Content.Items[0].Item.ItemContent; ic != nil && !isNull(ic.TweetResults.Result) {
			return ic.TweetResults.Result
		}
	}
	return nil
}

func isNull(raw json.RawMessage) bool {
	return len(raw) == 0 || string(raw) == "null"
}

func parseTweet(raw json.RawMessage, scrapedAt time.Time) (TweetRecord, bool) {
	var res tweetResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return TweetRecord{}, false
	}
	tweet := &res
	if res.Tweet != nil {
		tweet = res.Tweet
	}
	legacy := tweet.Legacy
	if legacy == nil {
		return TweetRecord{}, false
	}
	id := cmp.Or(legacy.IDStr, tweet.RestID)
	if id == "" {
		return TweetRecord{}, false
	}

	var user userResult
	if u := tweet.Core.UserResults.Result; u != nil {
		user = *u
	}
	screenName := cmp.Or(user.Legacy.ScreenName, user.Core.ScreenName)

	mediaList := legacy.Entities.Media
	if legacy.ExtendedEntities != nil {
		mediaList = legacy.ExtendedEntities.Media
	}

	rec := TweetRecord{
		TweetID:           id,
		FullText:          legacy.FullText,
		NoteTweetText:     tweet.NoteTweet.NoteTweetResults.Result.Text,
		TweetURL:          "https://twitter.com/" + screenName + "/status/" + id,
		MediaURLs:         make([]string, 0, len(mediaList)),
		MediaTypes:        make([]string, 0, len(mediaList)),
		MediaCount:        len(mediaList),
		CreatedAt:         legacy.CreatedAt,
		ConversationID:    legacy.ConversationIDStr,
		ReplyCount:        legacy.ReplyCount,
		RetweetCount:      legacy.RetweetCount,
		FavoriteCount:     legacy.FavoriteCount,
		QuoteCount:        legacy.QuoteCount,
		BookmarkCount:     legacy.BookmarkCount,
		ViewCount:         cmp.Or(tweet.Views.Count, "0"),
		Favorited:         legacy.Favorited,
		Retweeted:         legacy.Retweeted,
		Bookmarked:        legacy.Bookmarked,
		IsQuoteStatus:     legacy.IsQuoteStatus,
		PossiblySensitive: legacy.PossiblySensitive,
		Language:          legacy.Lang,
		ExpandedURLs:      make([]string, 0, len(legacy.Entities.URLs)),
		Hashtags:          make([]string, 0, len(legacy.Entities.Hashtags)),
		UserMentions:      make([]string, 0, len(legacy.Entities.UserMentions)),

		UserID:               cmp.Or(user.RestID, legacy.UserIDStr),
		UserName:             cmp.Or(user.Legacy.Name, user.Core.Name),
		UserScreenName:       screenName,
		UserDescription:      user.Legacy.Description,
		UserFollowersCount:   user.Legacy.FollowersCount,
		UserFriendsCount:     user.Legacy.FriendsCount,
		UserFavouritesCount:  user.Legacy.FavouritesCount,
		UserStatusesCount:    user.Legacy.StatusesCount,
		UserListedCount:      user.Legacy.ListedCount,
		UserAvatarURL:        user.Legacy.ProfileImageURLHTTPS,
		UserProfileBannerURL: user.Legacy.ProfileBannerURL,
		UserLocation:         user.Legacy.Location,
		UserIsBlueVerified:   user.IsBlueVerified,
		UserIsVerified:       user.Legacy.Verified,
		UserIsProtected:      user.Legacy.Protected,
		UserProfessionalType: user.Professional.ProfessionalType,
		UserCreatedAt:        cmp.Or(user.Legacy.CreatedAt, user.Core.CreatedAt),

		ScrapedAt: scrapedAt.UTC(),
	}

	for _, m := range mediaList {
		rec.MediaURLs = append(rec.MediaURLs, mediaURL(m))
		rec.MediaTypes = append(rec.MediaTypes, cmp.Or(m.Type, "photo"))
	}
	for _, u := range legacy.Entities.URLs {
		rec.ExpandedURLs = append(rec.ExpandedURLs, cmp.Or(u.ExpandedURL, u.URL))
	}
	for _, h := range legacy.Entities.Hashtags {
		rec.Hashtags = append(rec.Hashtags, h.Text)
	}
	for _, u := range legacy.Entities.UserMentions {
		rec.UserMentions = append(rec.UserMentions, u.ScreenName)
	}
	return rec, true
}

// mediaURL picks the highest-bitrate mp4 for videos and GIFs.
func mediaURL(m media) string {
	if (m.Type == "video" || m.Type == "animated_gif") && m.VideoInfo != nil {
		var best string
		bestRate := -1
		for _, v := range m.VideoInfo.Variants {
			if v.ContentType == "video/mp4" && v.Bitrate > bestRate {
				best, bestRate = v.URL, v.Bitrate
			}
		}
		if best != "" {
			return best
		}
	}
	return cmp.Or(m.MediaURLHTTPS, m.URL)
}
