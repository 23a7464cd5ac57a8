package course

import "regexp"

const videoIDLen = 11

var youtubeRegex = regexp.MustCompile(`^.*(youtu\.be/|v/|u/\w/|embed/|watch\?v=|&v=)([^#&?]*).*`)

// VideoID extracts the id of a YouTube video from its link. ok is false when link is not a video link.
func VideoID(link string) (id string, ok bool) {
	m := youtubeRegex.FindStringSubmatch(link)
	if m == nil || len(m[2]) != videoIDLen {
		return "", false
	}
	return m[2], true
}

// ThumbnailURL returns the default thumbnail of a YouTube video.
func ThumbnailURL(videoID string) string {
	return "https://img.youtube.com/vi/" + videoID + "/hqdefault.jpg"
}
