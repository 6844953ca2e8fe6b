package overlay

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseParams(t *testing.T) {
	tests := []struct {
		name    string
		query   string
		want    Params
		wantErr string
	}{
		{
			name:  "static overlay",
			query: "id=logo&width=200&height=100&x=10&y=20",
			want:  Params{ID: "logo", Width: 200, Height: 100, X: 10, Y: 20},
		},
		{
			name:  "animated overlay",
			query: "id=a&width=1&height=1&x=0&y=0&animDuration=500&animKFCount=2&animKF0_percent=0&animKF0_x=0&animKF0_y=0&animKF1_percent=100&animKF1_x=50&animKF1_y=60",
			want: Params{ID: "a", Width: 1, Height: 1, Animation: &Animation{
				Duration:  500,
				Keyframes: []Keyframe{{0, 0, 0}, {100, 50, 60}},
			}},
		},
		{
			name:    "missing id",
			query:   "width=1&height=1&x=0&y=0",
			wantErr: "id",
		},
		{
			name:    "non numeric width",
			query:   "id=a&width=wide&height=1&x=0&y=0",
			wantErr: "width",
		},
		{
			name:    "keyframe missing y",
			query:   "id=a&width=1&height=1&x=0&y=0&animKFCount=2&animKF0_percent=0&animKF0_x=0&animKF0_y=0&animKF1_percent=100&animKF1_x=5",
			wantErr: "animKF1",
		},
		{
			name:    "negative keyframe count",
			query:   "id=a&width=1&height=1&x=0&y=0&animKFCount=-1",
			wantErr: "animKFCount",
		},
		{
			name:    "huge keyframe count",
			query:   "id=a&width=1&height=1&x=0&y=0&animKFCount=1000000000000",
			wantErr: "animKFCount",
		},
		{
			name:    "count above limit with no keyframes",
			query:   "id=a&width=1&height=1&x=0&y=0&animKFCount=257",
			wantErr: "animKFCount",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := url.ParseQuery(tt.query)
			require.NoError(t, err)

			got, err := ParseParams(q)
			if tt.wantErr != "" {
				var ve *ValidationError
				require.ErrorAs(t, err, &ve)
				assert.Contains(t, ve.Field, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestQueryRoundTrip(t *testing.T) {
	p := Params{ID: "x", Width: 3, Height: 4, X: 5, Y: 6, Animation: &Animation{
		Duration:  1000,
		Keyframes: []Keyframe{{0, 1, 2}, {50, 3, 4}, {100, 5, 6}},
	}}
	got, err := ParseParams(p.Query())
	require.NoError(t, err)
	assert.Equal(t, p, got)
}

func TestQueryDropsSingleKeyframeAnimation(t *testing.T) {
	p := Params{ID: "x", Width: 1, Height: 1, Animation: &Animation{Duration: 10, Keyframes: []Keyframe{{0, 0, 0}}}}
	q := p.Query()
	assert.Empty(t, q.Get("animKFCount"))
	assert.Empty(t, q.Get("animDuration"))
}
