// Package config loads and validates the training and generation
// parameters from YAML, with environment variable overrides.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/lawnchairsociety/tilegen/internal/wfc"
)

// BorderFlagsConfig selects region borders in YAML form.
type BorderFlagsConfig struct {
	Top    bool `yaml:"top"`
	Bottom bool `yaml:"bottom"`
	Left   bool `yaml:"left"`
	Right  bool `yaml:"right"`
}

// Flags converts to the engine's border flag set.
func (b BorderFlagsConfig) Flags() wfc.BorderFlags {
	return wfc.BorderFlags{Top: b.Top, Bottom: b.Bottom, Left: b.Left, Right: b.Right}
}

// BuildConfig mirrors the parameters of a training run.
type BuildConfig struct {
	// Radius is the neighborhood radius of the classifier's receptive
	// field. Must be at least 1.
	Radius int `yaml:"radius"`

	// Connectivity is one of "four", "eight", or "hex".
	Connectivity string `yaml:"connectivity"`

	// EnforceBorders selects which borders constrain generated tiles to
	// those observed on the same border in the examples.
	EnforceBorders BorderFlagsConfig `yaml:"enforce_borders"`

	// AcknowledgeBounds selects which borders contribute a classifier
	// feature when the neighborhood extends past the region.
	AcknowledgeBounds BorderFlagsConfig `yaml:"acknowledge_bounds"`

	// EmptyAsTile treats empty cells as a learnable tile instead of
	// skipping them.
	EmptyAsTile bool `yaml:"empty_as_tile"`

	// LearnRateStart and LearnRateEnd bound the log-interpolated learning
	// rate schedule. Both must be positive.
	LearnRateStart float64 `yaml:"learn_rate_start"`
	LearnRateEnd   float64 `yaml:"learn_rate_end"`

	// Epochs is the number of training epochs. Must be at least 1; there
	// is no "train forever" mode, cap externally and continue instead.
	Epochs int `yaml:"epochs"`

	// Mode is one of "fresh", "overwrite", or "continue".
	Mode string `yaml:"mode"`

	// Seed fixes the training randomness.
	Seed int64 `yaml:"seed"`
}

// GenerateConfig mirrors the parameters of a generation call.
type GenerateConfig struct {
	// Temperature biases sampling, negative toward determinism and
	// positive toward randomness.
	Temperature float64 `yaml:"temperature"`

	// Forceful discards preset tiles and retries when they make the
	// problem unsatisfiable.
	Forceful bool `yaml:"forceful"`

	// Seed fixes the generation randomness; nil seeds from the clock.
	Seed *int64 `yaml:"seed"`

	// Region is the output rectangle.
	X int `yaml:"x"`
	Y int `yaml:"y"`
	W int `yaml:"w"`
	H int `yaml:"h"`
}

// fileConfig is the on-disk shape holding both sections.
type fileConfig struct {
	Build    BuildConfig    `yaml:"build"`
	Generate GenerateConfig `yaml:"generate"`
}

// DefaultBuildConfig returns the training defaults.
func DefaultBuildConfig() BuildConfig {
	return BuildConfig{
		Radius:         1,
		Connectivity:   "four",
		LearnRateStart: 0.05,
		LearnRateEnd:   0.005,
		Epochs:         1000,
		Mode:           "fresh",
		Seed:           1,
	}
}

// DefaultGenerateConfig returns the generation defaults.
func DefaultGenerateConfig() GenerateConfig {
	return GenerateConfig{
		Temperature: 0,
		Forceful:    false,
		W:           16,
		H:           16,
	}
}

// Validate checks the build parameters, returning a descriptive error for
// the first violation.
func (c BuildConfig) Validate() error {
	if c.Radius < 1 {
		return fmt.Errorf("config: radius must be at least 1, got %d", c.Radius)
	}
	if _, err := c.ConnectivityMode(); err != nil {
		return err
	}
	if c.LearnRateStart <= 0 || c.LearnRateEnd <= 0 {
		return fmt.Errorf("config: learning rates must be positive, got start=%g end=%g", c.LearnRateStart, c.LearnRateEnd)
	}
	if c.Epochs < 1 {
		return fmt.Errorf("config: epochs must be at least 1, got %d", c.Epochs)
	}
	if _, err := c.BuildMode(); err != nil {
		return err
	}
	return nil
}

// ConnectivityMode parses the connectivity string.
func (c BuildConfig) ConnectivityMode() (wfc.ConnectivityMode, error) {
	switch c.Connectivity {
	case "four", "":
		return wfc.ModeFour, nil
	case "eight":
		return wfc.ModeEight, nil
	case "hex":
		return wfc.ModeHex, nil
	default:
		return 0, fmt.Errorf("config: unknown connectivity %q (want four, eight, or hex)", c.Connectivity)
	}
}

// BuildMode parses the mode string.
func (c BuildConfig) BuildMode() (wfc.BuildMode, error) {
	switch c.Mode {
	case "fresh", "":
		return wfc.BuildFresh, nil
	case "overwrite":
		return wfc.BuildFreshOverwrite, nil
	case "continue":
		return wfc.BuildContinue, nil
	default:
		return 0, fmt.Errorf("config: unknown build mode %q (want fresh, overwrite, or continue)", c.Mode)
	}
}

// Options converts the validated config to engine build options.
func (c BuildConfig) Options() (wfc.BuildOptions, error) {
	if err := c.Validate(); err != nil {
		return wfc.BuildOptions{}, err
	}
	mode, _ := c.ConnectivityMode()
	buildMode, _ := c.BuildMode()
	return wfc.BuildOptions{
		Radius:            c.Radius,
		Connectivity:      mode,
		EnforceBorders:    c.EnforceBorders.Flags(),
		AcknowledgeBounds: c.AcknowledgeBounds.Flags(),
		EmptyAsTile:       c.EmptyAsTile,
		LearnRateStart:    c.LearnRateStart,
		LearnRateEnd:      c.LearnRateEnd,
		Epochs:            c.Epochs,
		Mode:              buildMode,
		Seed:              c.Seed,
	}, nil
}

// Validate checks the generation parameters.
func (c GenerateConfig) Validate() error {
	if c.W < 1 || c.H < 1 {
		return fmt.Errorf("config: region size must be at least 1x1, got %dx%d", c.W, c.H)
	}
	return nil
}

// Load reads both sections from a YAML file and applies environment
// overrides. A missing file yields the defaults.
func Load(path string) (BuildConfig, GenerateConfig, error) {
	fc := fileConfig{
		Build:    DefaultBuildConfig(),
		Generate: DefaultGenerateConfig(),
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return fc.Build, fc.Generate, err
			}
		} else if err := yaml.Unmarshal(data, &fc); err != nil {
			return DefaultBuildConfig(), DefaultGenerateConfig(), err
		}
	}

	applyEnvOverrides(&fc)
	return fc.Build, fc.Generate, nil
}

func applyEnvOverrides(fc *fileConfig) {
	if v := os.Getenv("TILEGEN_EPOCHS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			fc.Build.Epochs = n
		}
	}
	if v := os.Getenv("TILEGEN_RADIUS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			fc.Build.Radius = n
		}
	}
	if v := os.Getenv("TILEGEN_CONNECTIVITY"); v != "" {
		fc.Build.Connectivity = v
	}
	if v := os.Getenv("TILEGEN_SEED"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			fc.Build.Seed = n
		}
	}
	if v := os.Getenv("TILEGEN_TEMPERATURE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			fc.Generate.Temperature = f
		}
	}
}
