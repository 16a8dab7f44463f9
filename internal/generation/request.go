// Package generation holds the domain model for prompt-to-video generation:
// the validated request, the upstream job record, the client-side poll state
// and the error taxonomy shared by every component that talks to the upstream API.
package generation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Duration is the user-facing length option of a generated video.
type Duration string

// Supported durations.
const (
	Duration30Sec Duration = "30 sec"
	Duration1Min  Duration = "1 min"
)

// Seconds returns the duration in seconds as sent upstream.
// Unknown values map to 0.
func (d Duration) Seconds() int {
	switch d {
	case Duration30Sec:
		return 30
	case Duration1Min:
		return 60
	default:
		return 0
	}
}

// DurationFromSeconds is the inverse of Duration.Seconds.
func DurationFromSeconds(sec int) (Duration, bool) {
	switch sec {
	case 30:
		return Duration30Sec, true
	case 60:
		return Duration1Min, true
	default:
		return "", false
	}
}

// Orientation is the aspect of a generated video.
type Orientation string

// Supported orientations.
const (
	OrientationLandscape Orientation = "landscape"
	OrientationPortrait  Orientation = "portrait"
)

// Prompt length bounds, counted in characters (runes).
const (
	PromptMinLength = 10
	PromptMaxLength = 500
)

// GenerationRequest is what a user submits to start a video generation.
type GenerationRequest struct {
	// Prompt describes the video to generate.
	Prompt string `json:"prompt" validate:"required,min=10,max=500" jsonschema:"minLength=10,maxLength=500,description=Text description of the video"`
	// Duration is the requested video length.
	Duration Duration `json:"duration" validate:"required,oneof='30 sec' '1 min'" jsonschema:"enum=30 sec,enum=1 min"`
	// Orientation is the requested video aspect.
	Orientation Orientation `json:"orientation" validate:"required,oneof=landscape portrait" jsonschema:"enum=landscape,enum=portrait"`
}

// Payload is the JSON body sent to the generation endpoint.
type Payload struct {
	Prompt      string `json:"prompt"`
	DurationSec int    `json:"duration_sec"`
	Orientation string `json:"orientation"`
}

// Payload converts the request into its wire representation.
func (r GenerationRequest) Payload() Payload {
	return Payload{
		Prompt:      r.Prompt,
		DurationSec: r.Duration.Seconds(),
		Orientation: string(r.Orientation),
	}
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks every field of the request.
// It returns a *ValidationError with one message per invalid field.
func (r GenerationRequest) Validate() error {
	err := validate.Struct(r)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("generation: validate request: %w", err)
	}

	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = fieldMessage(fe)
	}
	return &ValidationError{Fields: fields}
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
	case "oneof":
		switch fe.Field() {
		case "duration":
			return fmt.Sprintf("duration must be one of: %s, %s", Duration30Sec, Duration1Min)
		case "orientation":
			return fmt.Sprintf("orientation must be one of: %s, %s", OrientationLandscape, OrientationPortrait)
		}
		return fmt.Sprintf("%s must be one of: %s", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s is invalid", fe.Field())
	}
}
