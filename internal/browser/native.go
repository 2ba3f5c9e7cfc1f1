package browser

import (
	"context"

	"github.com/PlayerYK/TweetSift/internal/errors"
)

// nativeStateJS locates the post's article by its status link and reports
// the bookmark button state: "saved", "unsaved", or "" when not on screen.
const nativeStateJS = `(id) => {
	const positive = [/remove bookmark/i, /remove from bookmarks/i, /bookmarked/i];
	let article = null;
	for (const link of document.querySelectorAll('a[href*="/status/' + id + '"]')) {
		article = link.closest('article[data-testid="tweet"]');
		if (article) break;
	}
	if (!article) return "";
	if (article.querySelector('button[data-testid="removeBookmark"]')) return "saved";
	const button = article.querySelector('button[data-testid="bookmark"]');
	if (!button) return "";
	const label = button.getAttribute('aria-label') || '';
	return positive.some((re) => re.test(label)) ? "saved" : "unsaved";
}`

// nativePressJS clicks the post's bookmark button once. Returns false when
// the button is not on screen.
const nativePressJS = `(id) => {
	for (const link of document.querySelectorAll('a[href*="/status/' + id + '"]')) {
		const article = link.closest('article[data-testid="tweet"]');
		if (!article) continue;
		const button = article.querySelector('button[data-testid="removeBookmark"], button[data-testid="bookmark"]');
		if (!button) return false;
		button.click();
		return true;
	}
	return false;
}`

// Saved reports whether the post shows as bookmarked. Implements archive.NativeControl.
func (s *Session) Saved(ctx context.Context, tweetID string) (bool, error) {
	page, err := s.Page()
	if err != nil {
		return false, err
	}
	res, err := page.Context(ctx).Eval(nativeStateJS, tweetID)
	if err != nil {
		return false, s.lost(ctx, err)
	}
	return parseNativeState(tweetID, res.Value.Str())
}

// Press clicks the post's bookmark button. Implements archive.NativeControl.
func (s *Session) Press(ctx context.Context, tweetID string) error {
	page, err := s.Page()
	if err != nil {
		return err
	}
	res, err := page.Context(ctx).Eval(nativePressJS, tweetID)
	if err != nil {
		return s.lost(ctx, err)
	}
	if !res.Value.Bool() {
		return errors.NewNotFound("bookmark button for post " + tweetID)
	}
	s.logger.Debug("native bookmark pressed", "tweet_id", tweetID)
	return nil
}

func parseNativeState(tweetID, state string) (bool, error) {
	switch state {
	case "saved":
		return true, nil
	case "unsaved":
		return false, nil
	}
	return false, errors.NewNotFound("bookmark button for post " + tweetID)
}
