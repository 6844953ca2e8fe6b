package video

import (
	"encoding/hex"
	"fmt"

	"github.com/zeebo/blake3"

	"github.com/mattjoyce/signbridge/internal/protocol"
)

const uriDigestLen = 16

// ResourceID derives the identity of a playback region. Identical
// arguments always give the same id; a different geometry for the same
// URI is a different resource.
func ResourceID(args protocol.VideoArgs) string {
	sum := blake3.Sum256([]byte(args.URI))
	return fmt.Sprintf("%s_%dx%d-%dx%d",
		hex.EncodeToString(sum[:])[:uriDigestLen],
		args.X, args.Y, args.Width, args.Height)
}
