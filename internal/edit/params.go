package edit

import (
	"fmt"
	"strings"
)

// Official Qwen Image Edit recommendations.
const (
	DefaultSeed           = 12345
	DefaultWidth          = 1024
	DefaultHeight         = 1024
	DefaultSteps          = 40
	LightningSteps        = 4
	DefaultCFG            = 4.0
	DefaultNegativePrompt = " "

	MinDimension = 512
	MaxDimension = 2048
)

// Parameters are the user-facing knobs of one edit. Defaults are filled
// exactly once when a request is parsed, so a zero here is an explicit
// caller value, not "unset", and Validate judges it as such.
type Parameters struct {
	Prompt         string
	NegativePrompt string
	Seed           int
	Width          int
	Height         int
	Steps          int
	CFG            float64
	Lightning      bool
}

// DefaultParameters returns the documented defaults with an empty prompt.
func DefaultParameters() Parameters {
	return Parameters{
		NegativePrompt: DefaultNegativePrompt,
		Seed:           DefaultSeed,
		Width:          DefaultWidth,
		Height:         DefaultHeight,
		Steps:          DefaultSteps,
		CFG:            DefaultCFG,
	}
}

// Normalized applies the lightning override. It never substitutes
// defaults: an explicit out-of-range value (width 0 included) must reach
// Validate and be rejected there, not silently replaced.
func (p Parameters) Normalized() Parameters {
	if p.Lightning {
		p.Steps = LightningSteps
	}
	return p
}

// Validate rejects out-of-range values instead of clamping them. It
// expects normalized parameters.
func (p Parameters) Validate() error {
	if strings.TrimSpace(p.Prompt) == "" {
		return fmt.Errorf("%w: prompt is required", ErrInvalidParameter)
	}
	if err := validateDimension("width", p.Width); err != nil {
		return err
	}
	if err := validateDimension("height", p.Height); err != nil {
		return err
	}
	if p.Steps <= 0 {
		return fmt.Errorf("%w: steps must be positive, got %d", ErrInvalidParameter, p.Steps)
	}
	if p.CFG <= 0 {
		return fmt.Errorf("%w: cfg must be positive, got %g", ErrInvalidParameter, p.CFG)
	}
	return nil
}

func validateDimension(name string, v int) error {
	if v < MinDimension || v > MaxDimension {
		return fmt.Errorf("%w: %s %d outside [%d,%d]", ErrInvalidParameter, name, v, MinDimension, MaxDimension)
	}
	if v%8 != 0 {
		return fmt.Errorf("%w: %s %d is not a multiple of 8", ErrInvalidParameter, name, v)
	}
	return nil
}
