// Package cut turns detected silences into a cut plan and runs the whole
// silence-removal pipeline over a sequence.
package cut

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/maauso/firstcut/internal/audio"
)

// Static errors for planning.
var (
	// ErrInvalidSettings is returned when a setting is out of range.
	ErrInvalidSettings = errors.New("invalid settings")
	// ErrEmptyCutPlan is returned when no speech survives filtering.
	ErrEmptyCutPlan = errors.New("empty cut plan")
)

// Default engine settings.
const (
	DefaultSilenceThreshold = 0.02
	DefaultMinSilence       = 0.35
	DefaultMinClip          = 0.5
	DefaultPadding          = 0.08
	DefaultFrameWindow      = 0.02
	DefaultSampleRate       = 16000
)

// Settings configures one run. Durations are in seconds.
type Settings struct {
	// SilenceThreshold is the linear RMS level below which a window is silent.
	// Zero disables detection.
	SilenceThreshold float64 `json:"silence_threshold" toml:"silence_threshold" validate:"gte=0,lte=1"`
	// MinSilence is the shortest pause that is cut.
	MinSilence float64 `json:"min_silence" toml:"min_silence" validate:"gte=0,lte=3600"`
	// MinClip is the shortest kept span.
	MinClip float64 `json:"min_clip" toml:"min_clip" validate:"gte=0,lte=3600"`
	// Padding is kept around speech on both sides.
	Padding float64 `json:"padding" toml:"padding" validate:"gte=0,lte=60"`
	// FrameWindow is the analysis window length.
	FrameWindow float64 `json:"frame_window" toml:"frame_window" validate:"gt=0,lte=10"`
	// SampleRate is the analysis rate in Hz.
	SampleRate int `json:"sample_rate" toml:"sample_rate" validate:"gte=1000,lte=192000"`
}

// DefaultSettings returns the stock settings.
func DefaultSettings() Settings {
	return Settings{
		SilenceThreshold: DefaultSilenceThreshold,
		MinSilence:       DefaultMinSilence,
		MinClip:          DefaultMinClip,
		Padding:          DefaultPadding,
		FrameWindow:      DefaultFrameWindow,
		SampleRate:       DefaultSampleRate,
	}
}

// WithThresholdDB returns a copy with the threshold given as a dBFS level.
func (s Settings) WithThresholdDB(db float64) Settings {
	s.SilenceThreshold = audio.DBToAmplitude(db)
	return s
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("toml"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return v
}

// Validate rejects out-of-range values and names the first offending setting.
func (s Settings) Validate() error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return fmt.Errorf("%w: %s=%v must satisfy %s %s", ErrInvalidSettings, fe.Field(), fe.Value(), fe.Tag(), fe.Param())
	}
	return fmt.Errorf("%w: %w", ErrInvalidSettings, err)
}

// samples converts seconds to the nearest whole number of samples.
func (s Settings) samples(seconds float64) int64 {
	return int64(math.Round(seconds * float64(s.SampleRate)))
}
