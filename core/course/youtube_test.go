package course

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVideoID(t *testing.T) {
	tests := []struct {
		link   string
		wantID string
		wantOk bool
	}{
		{link: "https://www.youtube.com/watch?v=dQw4w9WgXcQ", wantID: "dQw4w9WgXcQ", wantOk: true},
		{link: "https://youtu.be/dQw4w9WgXcQ?t=42", wantID: "dQw4w9WgXcQ", wantOk: true},
		{link: "https://www.youtube.com/embed/dQw4w9WgXcQ", wantID: "dQw4w9WgXcQ", wantOk: true},
		{link: "https://www.youtube.com/watch?feature=share&v=dQw4w9WgXcQ", wantID: "dQw4w9WgXcQ", wantOk: true},
		{link: "https://www.youtube.com/watch?v=short"},
		{link: "https://vimeo.com/76979871"},
		{link: ""},
	}
	for _, tt := range tests {
		t.Run(tt.link, func(t *testing.T) {
			id, ok := VideoID(tt.link)
			assert.Equal(t, tt.wantOk, ok)
			assert.Equal(t, tt.wantID, id)
		})
	}
}

func TestTargets(t *testing.T) {
	got := Targets()
	assert.Equal(t, TargetGuest, got[0])
	assert.Contains(t, got, "Prep")
	assert.Contains(t, got, "10th")
	assert.Contains(t, got, "11th Physics")
	assert.Contains(t, got, "12th Computer Science")
	assert.Equal(t, "CS", got[len(got)-1])
	assert.NotContains(t, got, "11th")

	got[0] = "lol"
	assert.Equal(t, TargetGuest, Targets()[0], "a copy is returned")
}
