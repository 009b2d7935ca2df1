package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIndexConfiguration(t *testing.T) {
	cfg := DefaultIndexConfiguration("products", 1536)

	require.NoError(t, cfg.Validate())
	assert.Equal(t, "products", cfg.Name)
	assert.Equal(t, 1536, cfg.Dimensions)
	assert.Len(t, cfg.Algorithms, 2, "expected HNSW plus exhaustive fallback")
	assert.Len(t, cfg.Profiles, 2)
	assert.Equal(t, "hnswProfile", cfg.DefaultProfile)
	assert.Equal(t, FieldTitle, cfg.Semantic.TitleField)
	assert.Equal(t, []string{FieldContent}, cfg.Semantic.ContentFields)

	algo, err := cfg.activeAlgorithm()
	require.NoError(t, err)
	assert.Equal(t, AlgorithmHNSW, algo.Kind)
	assert.Equal(t, 4, algo.M)
	assert.Equal(t, 1000, algo.EfConstruction)
	assert.Equal(t, 1000, algo.EfSearch)
	assert.Equal(t, MetricCosine, algo.Metric)
}

func TestIndexConfiguration_Validate(t *testing.T) {
	valid := func() IndexConfiguration {
		return DefaultIndexConfiguration("products", 3)
	}

	tests := []struct {
		name    string
		mutate  func(*IndexConfiguration)
		wantErr string
	}{
		{
			name:   "valid",
			mutate: func(*IndexConfiguration) {},
		},
		{
			name:    "bad index name",
			mutate:  func(c *IndexConfiguration) { c.Name = "Products; DROP TABLE x" },
			wantErr: "index name",
		},
		{
			name:    "zero dimensions",
			mutate:  func(c *IndexConfiguration) { c.Dimensions = 0 },
			wantErr: "dimensions",
		},
		{
			name:    "no algorithms",
			mutate:  func(c *IndexConfiguration) { c.Algorithms = nil },
			wantErr: "at least one algorithm",
		},
		{
			name: "duplicate algorithm names",
			mutate: func(c *IndexConfiguration) {
				c.Algorithms = append(c.Algorithms, c.Algorithms[0])
			},
			wantErr: "duplicate algorithm",
		},
		{
			name: "hnsw m too small",
			mutate: func(c *IndexConfiguration) {
				c.Algorithms[0].M = 1
			},
			wantErr: "m must be >= 2",
		},
		{
			name: "unknown kind",
			mutate: func(c *IndexConfiguration) {
				c.Algorithms[0].Kind = "flat"
			},
			wantErr: "unknown kind",
		},
		{
			name: "non-cosine metric",
			mutate: func(c *IndexConfiguration) {
				c.Algorithms[1].Metric = "euclidean"
			},
			wantErr: "unsupported metric",
		},
		{
			name: "profile references unknown algorithm",
			mutate: func(c *IndexConfiguration) {
				c.Profiles[0].Algorithm = "missing"
			},
			wantErr: "unknown algorithm",
		},
		{
			name: "default profile not declared",
			mutate: func(c *IndexConfiguration) {
				c.DefaultProfile = "missing"
			},
			wantErr: "default profile",
		},
		{
			name: "semantic title field wrong",
			mutate: func(c *IndexConfiguration) {
				c.Semantic.TitleField = "name"
			},
			wantErr: "semantic title field",
		},
		{
			name: "semantic content fields missing content",
			mutate: func(c *IndexConfiguration) {
				c.Semantic.ContentFields = []string{FieldTitle}
			},
			wantErr: "must include",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestIndexConfiguration_HNSWAlgorithms(t *testing.T) {
	cfg := DefaultIndexConfiguration("products", 3)

	algos := cfg.hnswAlgorithms()
	require.Len(t, algos, 1, "only the profile-bound HNSW config gets an index")
	assert.Equal(t, "hnswConfig", algos[0].Name)

	// An HNSW config without a profile binding gets no index.
	cfg.Algorithms = append(cfg.Algorithms, AlgorithmConfig{
		Name: "unboundHnsw", Kind: AlgorithmHNSW,
		M: 8, EfConstruction: 64, EfSearch: 40, Metric: MetricCosine,
	})
	require.NoError(t, cfg.Validate())
	algos = cfg.hnswAlgorithms()
	assert.Len(t, algos, 1)
}

func TestIndexConfiguration_ExhaustiveProfile(t *testing.T) {
	cfg := DefaultIndexConfiguration("products", 3)
	cfg.DefaultProfile = "eknnProfile"
	require.NoError(t, cfg.Validate())

	algo, err := cfg.activeAlgorithm()
	require.NoError(t, err)
	assert.Equal(t, AlgorithmExhaustiveKNN, algo.Kind)
}

func TestProvisioningError(t *testing.T) {
	inner := assert.AnError
	err := &ProvisioningError{Index: "products", Err: inner}

	assert.Contains(t, err.Error(), "products")
	assert.ErrorIs(t, err, inner)
}
