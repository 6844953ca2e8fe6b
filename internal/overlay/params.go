package overlay

import (
	"fmt"
	"net/url"
	"strconv"
)

// Keyframe positions the overlay at Percent of the animation.
type Keyframe struct {
	Percent int `json:"percent"`
	X       int `json:"x"`
	Y       int `json:"y"`
}

type Animation struct {
	// Duration in milliseconds.
	Duration  int        `json:"duration"`
	Keyframes []Keyframe `json:"keyframes"`
}

// Params describes one overlay upload.
type Params struct {
	ID        string     `json:"id"`
	Width     int        `json:"width"`
	Height    int        `json:"height"`
	X         int        `json:"x"`
	Y         int        `json:"y"`
	Animation *Animation `json:"animation,omitempty"`
}

// MaxKeyframes bounds animKFCount.
const MaxKeyframes = 256

// ValidationError rejects malformed upload parameters.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid overlay parameter %s: %s", e.Field, e.Reason)
}

// ParseParams reads upload parameters from a query string. Every keyframe
// declared by animKFCount needs its _percent, _x and _y fields.
func ParseParams(q url.Values) (Params, error) {
	var p Params
	p.ID = q.Get("id")
	if p.ID == "" {
		return Params{}, &ValidationError{Field: "id", Reason: "required"}
	}

	var err error
	if p.Width, err = intParam(q, "width", true); err != nil {
		return Params{}, err
	}
	if p.Height, err = intParam(q, "height", true); err != nil {
		return Params{}, err
	}
	if p.X, err = intParam(q, "x", true); err != nil {
		return Params{}, err
	}
	if p.Y, err = intParam(q, "y", true); err != nil {
		return Params{}, err
	}
	if p.Width <= 0 || p.Height <= 0 {
		return Params{}, &ValidationError{Field: "width/height", Reason: "must be positive"}
	}

	count, err := intParam(q, "animKFCount", false)
	if err != nil {
		return Params{}, err
	}
	if count < 0 {
		return Params{}, &ValidationError{Field: "animKFCount", Reason: "must not be negative"}
	}
	if count == 0 {
		return p, nil
	}
	if count > MaxKeyframes {
		return Params{}, &ValidationError{Field: "animKFCount", Reason: fmt.Sprintf("must not exceed %d", MaxKeyframes)}
	}

	duration, err := intParam(q, "animDuration", false)
	if err != nil {
		return Params{}, err
	}
	anim := &Animation{Duration: duration}
	for i := 0; i < count; i++ {
		prefix := "animKF" + strconv.Itoa(i)
		pct, x, y := q.Get(prefix+"_percent"), q.Get(prefix+"_x"), q.Get(prefix+"_y")
		if pct == "" || x == "" || y == "" {
			return Params{}, &ValidationError{Field: prefix, Reason: "invalid animation keyframe"}
		}
		var kf Keyframe
		if kf.Percent, err = intParam(q, prefix+"_percent", true); err != nil {
			return Params{}, err
		}
		if kf.X, err = intParam(q, prefix+"_x", true); err != nil {
			return Params{}, err
		}
		if kf.Y, err = intParam(q, prefix+"_y", true); err != nil {
			return Params{}, err
		}
		anim.Keyframes = append(anim.Keyframes, kf)
	}
	p.Animation = anim
	return p, nil
}

func intParam(q url.Values, name string, required bool) (int, error) {
	v := q.Get(name)
	if v == "" {
		if required {
			return 0, &ValidationError{Field: name, Reason: "required"}
		}
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, &ValidationError{Field: name, Reason: "not an integer"}
	}
	return n, nil
}

// Query encodes p for the upload endpoint. Animations with fewer than two
// keyframes are not sent.
func (p Params) Query() url.Values {
	q := url.Values{}
	q.Set("id", p.ID)
	q.Set("width", strconv.Itoa(p.Width))
	q.Set("height", strconv.Itoa(p.Height))
	q.Set("x", strconv.Itoa(p.X))
	q.Set("y", strconv.Itoa(p.Y))
	if p.Animation != nil && len(p.Animation.Keyframes) > 1 {
		q.Set("animDuration", strconv.Itoa(p.Animation.Duration))
		q.Set("animKFCount", strconv.Itoa(len(p.Animation.Keyframes)))
		for i, kf := range p.Animation.Keyframes {
			prefix := "animKF" + strconv.Itoa(i)
			q.Set(prefix+"_percent", strconv.Itoa(kf.Percent))
			q.Set(prefix+"_x", strconv.Itoa(kf.X))
			q.Set(prefix+"_y", strconv.Itoa(kf.Y))
		}
	}
	return q
}
