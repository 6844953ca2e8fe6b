package video

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mattjoyce/signbridge/internal/protocol"
)

func TestResourceIDIsPure(t *testing.T) {
	a := protocol.VideoArgs{URI: "videos/a.mp4", X: 10, Y: 20, Width: 640, Height: 360}
	assert.Equal(t, ResourceID(a), ResourceID(a))
	assert.Regexp(t, regexp.MustCompile(`^[0-9a-f]{16}_10x20-640x360$`), ResourceID(a))
}

func TestResourceIDChangesWithEachField(t *testing.T) {
	base := protocol.VideoArgs{URI: "videos/a.mp4", X: 10, Y: 20, Width: 640, Height: 360}
	variants := map[string]protocol.VideoArgs{
		"uri":    {URI: "videos/b.mp4", X: 10, Y: 20, Width: 640, Height: 360},
		"x":      {URI: "videos/a.mp4", X: 11, Y: 20, Width: 640, Height: 360},
		"y":      {URI: "videos/a.mp4", X: 10, Y: 21, Width: 640, Height: 360},
		"width":  {URI: "videos/a.mp4", X: 10, Y: 20, Width: 641, Height: 360},
		"height": {URI: "videos/a.mp4", X: 10, Y: 20, Width: 640, Height: 361},
	}
	for field, v := range variants {
		assert.NotEqual(t, ResourceID(base), ResourceID(v), "changing %s must change the id", field)
	}
}
