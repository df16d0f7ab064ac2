package cleaning

import "fmt"

// QualityWeights are the component weights of the quality score. They must
// sum to 1.0.
type QualityWeights struct {
	Length       float64 `yaml:"length"`
	Completeness float64 `yaml:"completeness"`
	Relevance    float64 `yaml:"relevance"`
	BrandBonus   float64 `yaml:"brand_bonus"`
}

// Limits are the text-size thresholds of the cleaning pipeline, in runes.
type Limits struct {
	// MinLength is the shortest response considered fully usable.
	MinLength int `yaml:"min_length"`
	// IdealLength is where the length score peaks.
	IdealLength int `yaml:"ideal_length"`
	// MaxLength is where the length score bottoms out again.
	MaxLength int `yaml:"max_length"`
	// TruncateAt hard-caps extracted text; longer inputs are cut with a
	// warning, never rejected.
	TruncateAt int `yaml:"truncate_at"`
	// WarnBelow flags suspiciously short responses.
	WarnBelow int `yaml:"warn_below"`
}

// NearDupOptions configures the chunked near-duplicate detector.
type NearDupOptions struct {
	// ChunkRunes is the window size of each hashed chunk; 0 disables the
	// near-duplicate mode.
	ChunkRunes int `yaml:"chunk_runes"`
	// Threshold is the fraction of a text's chunks that must have been seen
	// in earlier responses for the text to be flagged.
	Threshold float64 `yaml:"threshold"`
}

// Options configures one cleaning pipeline.
type Options struct {
	Weights QualityWeights `yaml:"weights"`
	Limits  Limits         `yaml:"limits"`
	NearDup NearDupOptions `yaml:"near_dup"`
}

// DefaultOptions returns the standard pipeline configuration.
func DefaultOptions() Options {
	return Options{
		Weights: QualityWeights{
			Length:       0.3,
			Completeness: 0.3,
			Relevance:    0.3,
			BrandBonus:   0.1,
		},
		Limits: Limits{
			MinLength:   50,
			IdealLength: 500,
			MaxLength:   2000,
			TruncateAt:  50000,
			WarnBelow:   10,
		},
		NearDup: NearDupOptions{
			ChunkRunes: 64,
			Threshold:  0.8,
		},
	}
}

const weightSumEpsilon = 1e-9

// Validate checks the weights sum to 1.0 and the length thresholds are
// ordered.
func (o *Options) Validate() error {
	sum := o.Weights.Length + o.Weights.Completeness + o.Weights.Relevance + o.Weights.BrandBonus
	if sum < 1.0-weightSumEpsilon || sum > 1.0+weightSumEpsilon {
		return fmt.Errorf("quality weights must sum to 1.0, got %v", sum)
	}
	l := o.Limits
	if !(0 < l.MinLength && l.MinLength < l.IdealLength && l.IdealLength < l.MaxLength) {
		return fmt.Errorf("length limits must satisfy 0 < min < ideal < max, got %d/%d/%d",
			l.MinLength, l.IdealLength, l.MaxLength)
	}
	if l.TruncateAt < l.MaxLength {
		return fmt.Errorf("truncate_at %d must not be below max_length %d", l.TruncateAt, l.MaxLength)
	}
	if n := o.NearDup; n.ChunkRunes > 0 && (n.Threshold <= 0 || n.Threshold > 1) {
		return fmt.Errorf("near-dup threshold must be in (0, 1], got %v", n.Threshold)
	}
	return nil
}
