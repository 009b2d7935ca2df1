package prompt

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/outfitter-ai/outfitter/internal/provider"
	"github.com/outfitter-ai/outfitter/internal/search"
)

func TestNewLoader_BuiltinTemplates(t *testing.T) {
	loader, err := NewLoader("")
	require.NoError(t, err)

	for _, name := range []string{QueryIntent, GroundedAnswer} {
		tpl, err := loader.Load(name)
		require.NoError(t, err, "built-in template %q must load", name)
		assert.Equal(t, name, tpl.Name)
		assert.GreaterOrEqual(t, tpl.Version, 1)
	}

	_, err = loader.Load("no-such-template")
	assert.Error(t, err)
}

func TestQueryIntent_Render(t *testing.T) {
	loader, err := NewLoader("")
	require.NoError(t, err)
	tpl, err := loader.Load(QueryIntent)
	require.NoError(t, err)

	msgs, err := tpl.Render(struct {
		Conversation []provider.Message
	}{
		Conversation: []provider.Message{
			{Role: provider.RoleUser, Content: "I liked that blue sleeping bag"},
			{Role: provider.RoleAssistant, Content: "The Cozy Nights bag is rated to -5C."},
			{Role: provider.RoleUser, Content: "is there anything warmer?"},
		},
	})
	require.NoError(t, err)
	require.Len(t, msgs, 2)

	assert.Equal(t, provider.RoleSystem, msgs[0].Role)
	assert.Equal(t, provider.RoleUser, msgs[1].Role)
	assert.Contains(t, msgs[1].Content, "is there anything warmer?")
	assert.Contains(t, msgs[1].Content, "user:")
	assert.Contains(t, msgs[1].Content, "assistant:")

	// The intent template keeps generation conservative.
	assert.InDelta(t, 0.2, tpl.Params.Temperature, 0.001)
}

func TestGroundedAnswer_Render(t *testing.T) {
	loader, err := NewLoader("")
	require.NoError(t, err)
	tpl, err := loader.Load(GroundedAnswer)
	require.NoError(t, err)

	msgs, err := tpl.Render(struct {
		Documents []search.Hit
	}{
		Documents: []search.Hit{
			{ID: "1", Title: "4-Person Tent", Content: "waterproof dome tent sleeps four"},
			{ID: "7", Title: "Trail Stove", Content: "compact camping stove"},
		},
	})
	require.NoError(t, err)
	require.Len(t, msgs, 1)

	system := msgs[0]
	assert.Equal(t, provider.RoleSystem, system.Role)
	assert.Contains(t, system.Content, "4-Person Tent")
	assert.Contains(t, system.Content, "waterproof dome tent sleeps four")
	assert.Contains(t, system.Content, "Trail Stove")
}

func TestNewLoader_DirOverridesBuiltin(t *testing.T) {
	dir := t.TempDir()
	override := `name: query-intent
version: 2
description: test override
parameters:
  temperature: 0.9
messages:
  - role: system
    content: overridden
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "query_intent.prompt"), []byte(override), 0o600))

	loader, err := NewLoader(dir)
	require.NoError(t, err)

	tpl, err := loader.Load(QueryIntent)
	require.NoError(t, err)
	assert.Equal(t, 2, tpl.Version)
	assert.InDelta(t, 0.9, tpl.Params.Temperature, 0.001)

	// Other built-ins stay intact.
	_, err = loader.Load(GroundedAnswer)
	assert.NoError(t, err)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantErr string
	}{
		{
			name:    "missing name",
			raw:     "version: 1\nmessages:\n  - role: system\n    content: hi\n",
			wantErr: "without a name",
		},
		{
			name:    "no messages",
			raw:     "name: x\nversion: 1\n",
			wantErr: "no messages",
		},
		{
			name:    "bad role",
			raw:     "name: x\nmessages:\n  - role: wizard\n    content: hi\n",
			wantErr: "unknown role",
		},
		{
			name:    "unknown parameter",
			raw:     "name: x\nparameters:\n  top_p: 0.9\nmessages:\n  - role: system\n    content: hi\n",
			wantErr: "unknown parameter",
		},
		{
			name:    "bad template syntax",
			raw:     "name: x\nmessages:\n  - role: system\n    content: '{{.Broken'\n",
			wantErr: "message 0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parse([]byte(tt.raw))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
