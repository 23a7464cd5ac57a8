// Package oembedsvc looks up YouTube video metadata through the oEmbed endpoint.
package oembedsvc

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"time"

	"github.com/pkg/errors"
	"github.com/sethvargo/go-retry"

	"github.com/trezcool/schoolhub/core"
	"github.com/trezcool/schoolhub/core/course"
)

const maxRetries = 2

var retryBase = 200 * time.Millisecond // mockable

type response struct {
	Title        string `json:"title"`
	ThumbnailURL string `json:"thumbnail_url"`
}

type youtubeResolver struct {
	endpoint string
	client   *http.Client
}

var _ course.VideoResolver = (*youtubeResolver)(nil) // interface compliance check

func NewYoutubeResolver(conf *core.Config) course.VideoResolver {
	return &youtubeResolver{
		endpoint: conf.Courses.OEmbedURL,
		client:   &http.Client{Timeout: conf.Courses.LookupTimeout},
	}
}

func (r *youtubeResolver) requestURL(videoID string) string {
	q := make(url.Values)
	q.Set("url", "https://www.youtube.com/watch?v="+videoID)
	q.Set("format", "json")
	return r.endpoint + "?" + q.Encode()
}

// Resolve fetches the title and thumbnail of a video, retrying on network and server errors.
func (r *youtubeResolver) Resolve(ctx context.Context, videoID string) (course.VideoInfo, error) {
	var info course.VideoInfo
	backoff := retry.WithMaxRetries(maxRetries, retry.NewFibonacci(retryBase))

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.requestURL(videoID), nil)
		if err != nil {
			return errors.Wrap(err, "building request")
		}
		resp, err := r.client.Do(req)
		if err != nil {
			return retry.RetryableError(errors.Wrap(err, "requesting oembed"))
		}
		defer func() { _ = resp.Body.Close() }()

		switch {
		case resp.StatusCode >= http.StatusInternalServerError:
			return retry.RetryableError(errors.Errorf("oembed: %s", resp.Status))
		case resp.StatusCode != http.StatusOK:
			return errors.Errorf("oembed: %s", resp.Status)
		}

		var body response
		if err = json.NewDecoder(resp.Body).Decode(&body); err != nil {
			return errors.Wrap(err, "decoding oembed response")
		}
		info = course.VideoInfo{Title: body.Title, ThumbnailURL: body.ThumbnailURL}
		return nil
	})
	if err != nil {
		return course.VideoInfo{}, err
	}
	return info, nil
}
