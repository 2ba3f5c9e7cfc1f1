package export

import "time"

// TweetRecord is a flattened snapshot of one bookmarked post. It is never
// modified after parsing.
type TweetRecord struct {
	TweetID        string   `json:"tweetId"`
	FullText       string   `json:"fullText"`
	NoteTweetText  string   `json:"noteTweetText"`
	TweetURL       string   `json:"tweetURL"`
	MediaURLs      []string `json:"mediaURLs"`
	MediaTypes     []string `json:"mediaTypes"`
	MediaCount     int      `json:"mediaCount"`
	CreatedAt      string   `json:"createdAt"`
	ConversationID string   `json:"conversationId"`

	ReplyCount    int    `json:"replyCount"`
	RetweetCount  int    `json:"retweetCount"`
	FavoriteCount int    `json:"favoriteCount"`
	QuoteCount    int    `json:"quoteCount"`
	BookmarkCount int    `json:"bookmarkCount"`
	ViewCount     string `json:"viewCount"`

	Favorited         bool   `json:"favorited"`
	Retweeted         bool   `json:"retweeted"`
	Bookmarked        bool   `json:"bookmarked"`
	IsQuoteStatus     bool   `json:"isQuoteStatus"`
	PossiblySensitive bool   `json:"possiblySensitive"`
	Language          string `json:"language"`

	ExpandedURLs []string `json:"expandedURLs"`
	Hashtags     []string `json:"hashtags"`
	UserMentions []string `json:"userMentions"`

	UserID               string `json:"userId"`
	UserName             string `json:"userName"`
	UserScreenName       string `json:"userScreenName"`
	UserDescription      string `json:"userDescription"`
	UserFollowersCount   int    `json:"userFollowersCount"`
	UserFriendsCount     int    `json:"userFriendsCount"`
	UserFavouritesCount  int    `json:"userFavouritesCount"`
	UserStatusesCount    int    `json:"userStatusesCount"`
	UserListedCount      int    `json:"userListedCount"`
	UserAvatarURL        string `json:"userAvatarUrl"`
	UserProfileBannerURL string `json:"userProfileBannerUrl"`
	UserLocation         string `json:"userLocation"`
	UserIsBlueVerified   bool   `json:"userIsBlueVerified"`
	UserIsVerified       bool   `json:"userIsVerified"`
	UserIsProtected      bool   `json:"userIsProtected"`
	UserProfessionalType string `json:"userProfessionalType"`
	UserCreatedAt        string `json:"userCreatedAt"`

	ScrapedAt time.Time `json:"scrapedAt"`
}

// Text returns the note text when present, else the full text.
func (r TweetRecord) Text() string {
	if r.NoteTweetText != "" {
		return r.NoteTweetText
	}
	return r.FullText
}
