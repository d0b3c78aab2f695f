package affinity

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// CalibrationOverride adjusts the tunable constants of one context. Zero fields keep
// the compiled value.
type CalibrationOverride struct {
	Calibration    float64 `yaml:"calibration,omitempty"`
	BiasCap        float64 `yaml:"bias_cap,omitempty"`
	StrengthFactor float64 `yaml:"strength_factor,omitempty"`
}

// Apply returns p with the non-zero fields of o applied.
func (o CalibrationOverride) Apply(p ContextProfile) ContextProfile {
	out := p.clone()
	if o.Calibration > 0 {
		out.Calibration = o.Calibration
	}
	if o.BiasCap > 0 {
		out.BiasCap = o.BiasCap
	}
	if o.StrengthFactor > 0 {
		out.SharedStrength.Factor = o.StrengthFactor
	}
	return out
}

// CalibrationStore reads per-context overrides from <dir>/<context>.yaml.
type CalibrationStore struct {
	dataDir string
}

// NewCalibrationStore creates a new calibration store
func NewCalibrationStore(dataDir string) *CalibrationStore {
	return &CalibrationStore{dataDir: dataDir}
}

// LoadCalibration loads the override for ctx. A missing file yields the compiled defaults.
func (c *CalibrationStore) LoadCalibration(ctx Context) (CalibrationOverride, error) {
	filePath := filepath.Join(c.dataDir, fmt.Sprintf("%s.yaml", ctx))

	data, err := os.ReadFile(filePath)
	if os.IsNotExist(err) {
		return c.defaultCalibration(ctx), nil
	}
	if err != nil {
		return CalibrationOverride{}, fmt.Errorf("failed to read calibration file: %w", err)
	}

	var o CalibrationOverride
	if err := yaml.Unmarshal(data, &o); err != nil {
		return CalibrationOverride{}, fmt.Errorf("failed to decode calibration for %s: %w", ctx, err)
	}
	if o.Calibration < 0 || o.BiasCap < 0 || o.StrengthFactor < 0 {
		return CalibrationOverride{}, fmt.Errorf("calibration for %s has negative values", ctx)
	}
	return o, nil
}

// LoadAll loads overrides for every context.
func (c *CalibrationStore) LoadAll() (map[Context]CalibrationOverride, error) {
	out := make(map[Context]CalibrationOverride, len(Contexts))
	for _, ctx := range Contexts {
		o, err := c.LoadCalibration(ctx)
		if err != nil {
			return nil, err
		}
		out[ctx] = o
	}
	return out, nil
}

// SaveCalibration writes the override for ctx.
func (c *CalibrationStore) SaveCalibration(ctx Context, o CalibrationOverride) error {
	if err := os.MkdirAll(c.dataDir, 0755); err != nil {
		return fmt.Errorf("failed to create calibration directory: %w", err)
	}

	data, err := yaml.Marshal(o)
	if err != nil {
		return fmt.Errorf("failed to encode calibration data: %w", err)
	}

	filePath := filepath.Join(c.dataDir, fmt.Sprintf("%s.yaml", ctx))
	if err := os.WriteFile(filePath, data, 0644); err != nil {
		return fmt.Errorf("failed to write calibration file: %w", err)
	}
	return nil
}

func (c *CalibrationStore) defaultCalibration(ctx Context) CalibrationOverride {
	p := Profile(ctx)
	return CalibrationOverride{
		Calibration:    p.Calibration,
		BiasCap:        p.BiasCap,
		StrengthFactor: p.SharedStrength.Factor,
	}
}
