package search

import (
	"fmt"
	"regexp"
	"slices"
)

// Field names of the index. The schema is fixed in shape — one key field,
// two searchable text fields, one vector field — while dimensionality and
// algorithm bindings come from IndexConfiguration.
const (
	FieldID      = "id"
	FieldTitle   = "title"
	FieldContent = "content"
	FieldVector  = "embedding"
)

// Metric is the distance metric for vector comparisons.
type Metric string

// Cosine is the default and currently the only supported metric; the
// operator class and the <=> operator in queries both assume it.
const MetricCosine Metric = "cosine"

// AlgorithmKind selects the nearest-neighbor strategy for a profile.
type AlgorithmKind string

const (
	// AlgorithmHNSW is graph-based approximate nearest neighbor.
	AlgorithmHNSW AlgorithmKind = "hnsw"

	// AlgorithmExhaustiveKNN is exact nearest neighbor with no ANN index.
	AlgorithmExhaustiveKNN AlgorithmKind = "exhaustiveKnn"
)

// AlgorithmConfig is one named vector-search algorithm configuration.
// The HNSW parameters are ignored for exhaustive configurations.
type AlgorithmConfig struct {
	Name string
	Kind AlgorithmKind

	// HNSW graph parameters.
	M              int // max connections per graph node
	EfConstruction int // candidate list size while building the graph
	EfSearch       int // candidate list size while searching

	Metric Metric
}

// VectorProfile binds the vector field to an algorithm configuration by name.
type VectorProfile struct {
	Name      string
	Algorithm string
}

// SemanticConfiguration names the title field and the prioritized content
// fields used for lexical re-ranking. Title terms are weighted above
// content terms in the generated tsvector; there are no keyword fields.
type SemanticConfiguration struct {
	Name          string
	TitleField    string
	ContentFields []string
}

// IndexConfiguration declares the full index schema. Provisioning it is
// idempotent: re-applying an identical configuration leaves the index
// unchanged and never deletes stored documents.
type IndexConfiguration struct {
	// Name is the index (table) name.
	Name string

	// Dimensions is the embedding dimensionality, fixed per index.
	Dimensions int

	Algorithms []AlgorithmConfig
	Profiles   []VectorProfile

	// DefaultProfile selects which profile queries run against.
	DefaultProfile string

	Semantic SemanticConfiguration
}

// DefaultIndexConfiguration returns the standard product index: an HNSW
// profile for serving plus an exhaustive fallback profile, both cosine,
// with title/content prioritized for lexical ranking.
func DefaultIndexConfiguration(name string, dimensions int) IndexConfiguration {
	return IndexConfiguration{
		Name:       name,
		Dimensions: dimensions,
		Algorithms: []AlgorithmConfig{
			{
				Name:           "hnswConfig",
				Kind:           AlgorithmHNSW,
				M:              4,
				EfConstruction: 1000,
				EfSearch:       1000,
				Metric:         MetricCosine,
			},
			{
				Name:   "eknnConfig",
				Kind:   AlgorithmExhaustiveKNN,
				Metric: MetricCosine,
			},
		},
		Profiles: []VectorProfile{
			{Name: "hnswProfile", Algorithm: "hnswConfig"},
			{Name: "eknnProfile", Algorithm: "eknnConfig"},
		},
		DefaultProfile: "hnswProfile",
		Semantic: SemanticConfiguration{
			Name:          "defaultConfig",
			TitleField:    FieldTitle,
			ContentFields: []string{FieldContent},
		},
	}
}

// identifierPattern restricts index names to safe SQL identifiers. Names
// are additionally quoted when interpolated, but there is no reason to
// allow anything fancier.
var identifierPattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// Validate checks the configuration for internal consistency.
func (c IndexConfiguration) Validate() error {
	if !identifierPattern.MatchString(c.Name) {
		return fmt.Errorf("index name %q: must match %s", c.Name, identifierPattern)
	}
	if c.Dimensions < 1 {
		return fmt.Errorf("dimensions must be >= 1, got %d", c.Dimensions)
	}
	if len(c.Algorithms) == 0 {
		return fmt.Errorf("at least one algorithm configuration is required")
	}

	algos := make(map[string]AlgorithmConfig, len(c.Algorithms))
	for _, a := range c.Algorithms {
		if a.Name == "" {
			return fmt.Errorf("algorithm configuration without a name")
		}
		if _, dup := algos[a.Name]; dup {
			return fmt.Errorf("duplicate algorithm configuration %q", a.Name)
		}
		switch a.Kind {
		case AlgorithmHNSW:
			if a.M < 2 {
				return fmt.Errorf("algorithm %q: hnsw m must be >= 2, got %d", a.Name, a.M)
			}
			if a.EfConstruction < a.M {
				return fmt.Errorf("algorithm %q: ef_construction must be >= m", a.Name)
			}
			if a.EfSearch < 1 {
				return fmt.Errorf("algorithm %q: ef_search must be >= 1", a.Name)
			}
		case AlgorithmExhaustiveKNN:
			// Metric is the only parameter.
		default:
			return fmt.Errorf("algorithm %q: unknown kind %q", a.Name, a.Kind)
		}
		if a.Metric != MetricCosine {
			return fmt.Errorf("algorithm %q: unsupported metric %q", a.Name, a.Metric)
		}
		algos[a.Name] = a
	}

	if len(c.Profiles) == 0 {
		return fmt.Errorf("at least one vector profile is required")
	}
	profiles := make(map[string]bool, len(c.Profiles))
	for _, p := range c.Profiles {
		if p.Name == "" {
			return fmt.Errorf("vector profile without a name")
		}
		if profiles[p.Name] {
			return fmt.Errorf("duplicate vector profile %q", p.Name)
		}
		if _, ok := algos[p.Algorithm]; !ok {
			return fmt.Errorf("profile %q references unknown algorithm %q", p.Name, p.Algorithm)
		}
		profiles[p.Name] = true
	}
	if !profiles[c.DefaultProfile] {
		return fmt.Errorf("default profile %q is not declared", c.DefaultProfile)
	}

	if c.Semantic.TitleField != FieldTitle {
		return fmt.Errorf("semantic title field must be %q, got %q", FieldTitle, c.Semantic.TitleField)
	}
	for _, f := range c.Semantic.ContentFields {
		if f != FieldTitle && f != FieldContent {
			return fmt.Errorf("semantic content field %q: unknown field", f)
		}
	}
	if !slices.Contains(c.Semantic.ContentFields, FieldContent) {
		return fmt.Errorf("semantic content fields must include %q", FieldContent)
	}

	return nil
}

// activeAlgorithm resolves the algorithm configuration behind the default
// profile. Validate must have passed.
func (c IndexConfiguration) activeAlgorithm() (AlgorithmConfig, error) {
	var algoName string
	for _, p := range c.Profiles {
		if p.Name == c.DefaultProfile {
			algoName = p.Algorithm
			break
		}
	}
	for _, a := range c.Algorithms {
		if a.Name == algoName {
			return a, nil
		}
	}
	return AlgorithmConfig{}, fmt.Errorf("default profile %q has no algorithm", c.DefaultProfile)
}

// hnswAlgorithms returns the HNSW configurations that are bound to at
// least one profile. Each gets its own ANN index at provisioning time.
func (c IndexConfiguration) hnswAlgorithms() []AlgorithmConfig {
	bound := make(map[string]bool)
	for _, p := range c.Profiles {
		bound[p.Algorithm] = true
	}

	var out []AlgorithmConfig
	for _, a := range c.Algorithms {
		if a.Kind == AlgorithmHNSW && bound[a.Name] {
			out = append(out, a)
		}
	}
	return out
}
