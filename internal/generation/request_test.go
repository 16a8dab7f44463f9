package generation

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validRequest() GenerationRequest {
	return GenerationRequest{
		Prompt:      "A calm lake at sunrise with birds flying",
		Duration:    Duration30Sec,
		Orientation: OrientationLandscape,
	}
}

func TestDuration_Seconds(t *testing.T) {
	assert.Equal(t, 30, Duration30Sec.Seconds())
	assert.Equal(t, 60, Duration1Min.Seconds())
	assert.Equal(t, 0, Duration("2 min").Seconds())

	d, ok := DurationFromSeconds(60)
	assert.True(t, ok)
	assert.Equal(t, Duration1Min, d)

	_, ok = DurationFromSeconds(45)
	assert.False(t, ok)
}

func TestGenerationRequest_Payload(t *testing.T) {
	p := validRequest().Payload()

	assert.Equal(t, "A calm lake at sunrise with birds flying", p.Prompt)
	assert.Equal(t, 30, p.DurationSec)
	assert.Equal(t, "landscape", p.Orientation)
}

func TestGenerationRequest_Validate(t *testing.T) {
	tests := []struct {
		name       string
		mutate     func(r *GenerationRequest)
		wantFields []string
	}{
		{"valid", func(r *GenerationRequest) {}, nil},
		{"valid one minute portrait", func(r *GenerationRequest) {
			r.Duration = Duration1Min
			r.Orientation = OrientationPortrait
		}, nil},
		{"prompt exactly 10 chars", func(r *GenerationRequest) { r.Prompt = strings.Repeat("a", 10) }, nil},
		{"prompt exactly 500 chars", func(r *GenerationRequest) { r.Prompt = strings.Repeat("a", 500) }, nil},
		{"prompt multibyte counted as characters", func(r *GenerationRequest) { r.Prompt = strings.Repeat("é", 10) }, nil},
		{"prompt too short", func(r *GenerationRequest) { r.Prompt = "short" }, []string{"prompt"}},
		{"prompt too long", func(r *GenerationRequest) { r.Prompt = strings.Repeat("a", 501) }, []string{"prompt"}},
		{"prompt missing", func(r *GenerationRequest) { r.Prompt = "" }, []string{"prompt"}},
		{"duration unsupported", func(r *GenerationRequest) { r.Duration = "2 min" }, []string{"duration"}},
		{"orientation unsupported", func(r *GenerationRequest) { r.Orientation = "square" }, []string{"orientation"}},
		{"everything missing", func(r *GenerationRequest) { *r = GenerationRequest{} }, []string{"prompt", "duration", "orientation"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validRequest()
			tt.mutate(&req)

			err := req.Validate()
			if tt.wantFields == nil {
				assert.NoError(t, err)
				return
			}

			var verr *ValidationError
			require.True(t, errors.As(err, &verr), "expected *ValidationError, got %T", err)
			assert.Len(t, verr.Fields, len(tt.wantFields))
			for _, f := range tt.wantFields {
				assert.Contains(t, verr.Fields, f)
			}
		})
	}
}

func TestGenerationRequest_Validate_Messages(t *testing.T) {
	req := validRequest()
	req.Prompt = "short"
	req.Duration = "5 min"

	err := req.Validate()

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "prompt must be at least 10 characters", verr.Fields["prompt"])
	assert.Equal(t, "duration must be one of: 30 sec, 1 min", verr.Fields["duration"])
	assert.Equal(t, "validation failed: duration: duration must be one of: 30 sec, 1 min; prompt: prompt must be at least 10 characters", err.Error())
}
