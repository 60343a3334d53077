package core

const (
	// MinFontScale and MaxFontScale bound the text scale factor.
	MinFontScale = 0.25
	MaxFontScale = 4.0
	// DefaultFontScale is the original text size.
	DefaultFontScale = 1.0
	// FontScaleStep is the increment used by step controls.
	FontScaleStep = 0.25
)

// ClampFontScale keeps scale within the supported range.
func ClampFontScale(scale float64) float64 {
	if scale < MinFontScale {
		return MinFontScale
	}
	if scale > MaxFontScale {
		return MaxFontScale
	}
	return scale
}

// StepFontScale moves current by delta steps and clamps the result.
func StepFontScale(current float64, delta int) float64 {
	return ClampFontScale(current + float64(delta)*FontScaleStep)
}
