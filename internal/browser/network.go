package browser

import (
	"context"

	"github.com/go-rod/rod/lib/proto"

	"github.com/PlayerYK/TweetSift/internal/opcache"
)

// Observer receives GraphQL requests seen on the page. *opcache.Cache implements it.
type Observer interface {
	Observe(ctx context.Context, rawURL string, body *opcache.RequestBody) (bool, error)
}

// WatchNetwork forwards every GraphQL request the page sends to obs until
// ctx ends or the page goes away.
func (s *Session) WatchNetwork(ctx context.Context, obs Observer) error {
	page, err := s.Page()
	if err != nil {
		return err
	}
	if err := (proto.NetworkEnable{}).Call(page); err != nil {
		return s.lost(ctx, err)
	}
	s.logger.Info("watching network for operation ids")

	wait := page.Context(ctx).EachEvent(func(e *proto.NetworkRequestWillBeSent) {
		url, body, ok := observedRequest(e.Request)
		if !ok {
			return
		}
		if _, err := obs.Observe(ctx, url, body); err != nil {
			s.logger.Warn("observe request failed", "url", url, "error", err)
		}
	})
	wait()

	if ctx.Err() != nil {
		return ctx.Err()
	}
	return s.lost(ctx, errPageGone)
}

// observedRequest extracts the URL and payload of a GraphQL request.
func observedRequest(req *proto.NetworkRequest) (string, *opcache.RequestBody, bool) {
	if req == nil {
		return "", nil, false
	}
	if _, _, ok := opcache.ParseURL(req.URL); !ok {
		return "", nil, false
	}
	var body *opcache.RequestBody
	if req.PostData != "" {
		body = &opcache.RequestBody{Raw: []byte(req.PostData)}
	}
	return req.URL, body, true
}
