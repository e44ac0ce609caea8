package irt

// Config holds the Newton-Raphson and early-stop settings.
type Config struct {
	// MaxIterations bounds the Newton-Raphson loop.
	MaxIterations int `yaml:"max_iterations"`

	// Tolerance is the damped step size below which iteration stops.
	Tolerance float64 `yaml:"tolerance"`

	// MinResponsesForStop is the fewest responses before early stop is allowed.
	MinResponsesForStop int `yaml:"min_responses_for_stop"`

	// StopHalfWidth is the 95% CI half-width (0-100 points) below which
	// the estimate is precise enough to stop early.
	StopHalfWidth float64 `yaml:"stop_half_width"`
}

// DefaultConfig returns the standard estimator settings.
func DefaultConfig() Config {
	return Config{
		MaxIterations:       10,
		Tolerance:           0.01,
		MinResponsesForStop: 3,
		StopHalfWidth:       10,
	}
}
