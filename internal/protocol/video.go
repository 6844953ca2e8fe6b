package protocol

// Video commands (client → server).
const (
	PrepareVideo  = "Video.Prepare"
	PlayVideo     = "Video.Play"
	StopVideo     = "Video.Stop"
	StopAllVideos = "Video.StopAll"
)

// Video events (server → client).
const (
	VideoPrepared    = "Video.Prepared"
	VideoStarted     = "Video.Started"
	VideoEnded       = "Video.Ended"
	VideoStopped     = "Video.Stopped"
	VideoError       = "Video.Error"
	AllVideosStopped = "Video.AllStopped"
)

// VideoArgs identifies a playback region. Events are matched to commands
// by comparing all five fields.
type VideoArgs struct {
	URI    string `json:"uri" cbor:"uri"`
	X      int    `json:"x" cbor:"x"`
	Y      int    `json:"y" cbor:"y"`
	Width  int    `json:"width" cbor:"width"`
	Height int    `json:"height" cbor:"height"`
}

type VideoCommand struct {
	VideoArgs
	IsStream bool `json:"isStream,omitempty" cbor:"isStream,omitempty"`
}

type VideoEvent struct {
	VideoArgs
	Data *VideoEventData `json:"data,omitempty" cbor:"data,omitempty"`
}

type VideoEventData struct {
	Message string `json:"message" cbor:"message"`
}
