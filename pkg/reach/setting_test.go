package reach

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/l3aro/go-flow-query/pkg/graph"
)

func TestParseLength(t *testing.T) {
	tests := []struct {
		in      string
		want    Length
		wantErr bool
	}{
		{"0", 0, false},
		{"3", 3, false},
		{"*", LengthAny, false},
		{"+", LengthOneOrMore, false},
		{"-1", LengthAny, false},
		{"-3", 0, true},
		{"two", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLength(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidSetting)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSettings_YAML(t *testing.T) {
	doc := `
- name: parWrite
  startLabel: Argument
  length: 1
  attribute: [cfgInvoke]
- name: varInfluence
  length: "+"
`
	var settings Settings
	require.NoError(t, yaml.Unmarshal([]byte(doc), &settings))
	require.Len(t, settings, 2)
	assert.Equal(t, Length(1), settings[0].Length)
	assert.Equal(t, []string{graph.FlagInvoke}, settings[0].Attributes)
	assert.Equal(t, LengthOneOrMore, settings[1].Length)
	require.NoError(t, settings.Validate())

	out, err := yaml.Marshal(settings)
	require.NoError(t, err)
	var again Settings
	require.NoError(t, yaml.Unmarshal(out, &again))
	assert.Equal(t, settings, again)
}

func TestLength_JSON(t *testing.T) {
	var s Setting
	require.NoError(t, json.Unmarshal([]byte(`{"name":"varWrite","length":"*"}`), &s))
	assert.Equal(t, LengthAny, s.Length)

	require.NoError(t, json.Unmarshal([]byte(`{"name":"varWrite","length":2}`), &s))
	assert.Equal(t, Length(2), s.Length)

	out, err := json.Marshal(Setting{Name: "varWrite", Length: LengthOneOrMore})
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"varWrite","length":"+"}`, string(out))
}

func TestSettings_Lookup(t *testing.T) {
	settings := DefaultSettings().Merge(Settings{
		{Name: "parWrite", StartLabel: "Argument", Length: 2},
		{Name: "parWrite", StartLabel: "Argument", EndLabel: "Receiver", Length: 0},
	})

	s, ok := settings.Lookup([]string{"Variable"}, graph.EdgeParWrite, []string{"Parameter"})
	require.True(t, ok)
	assert.Equal(t, Length(1), s.Length, "falls back to the wildcard default")

	s, ok = settings.Lookup([]string{"Argument"}, graph.EdgeParWrite, []string{"Parameter"})
	require.True(t, ok)
	assert.Equal(t, Length(2), s.Length)

	s, ok = settings.Lookup([]string{"Argument"}, graph.EdgeParWrite, []string{"Receiver"})
	require.True(t, ok)
	assert.Equal(t, Length(0), s.Length, "most specific wins")

	_, ok = Settings{}.Lookup(nil, graph.EdgeVarWrite, nil)
	assert.False(t, ok)
}

func TestSettings_Merge(t *testing.T) {
	base := DefaultSettings()
	merged := base.Merge(Settings{{Name: "varWrite", StartLabel: "*", Length: LengthAny}})

	assert.Len(t, merged, len(base), "a '*' label overrides the wildcard default")
	s, ok := merged.Lookup(nil, graph.EdgeVarWrite, nil)
	require.True(t, ok)
	assert.Equal(t, LengthAny, s.Length)
	assert.Equal(t, Length(0), base[0].Length, "the receiver is not modified")
}

func TestSettings_Validate(t *testing.T) {
	tests := []struct {
		name    string
		setting Setting
	}{
		{"not dataflow", Setting{Name: "nextCFGBlock"}},
		{"unknown", Setting{Name: "calls"}},
		{"bad length", Setting{Name: "varWrite", Length: -5}},
		{"empty attribute", Setting{Name: "parWrite", Length: 1, Attributes: []string{" "}}},
		{"attributes on wildcard", Setting{Name: "parWrite", Length: LengthAny, Attributes: []string{"cfgInvoke"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, Settings{tt.setting}.Validate(), ErrInvalidSetting)
		})
	}

	assert.NoError(t, DefaultSettings().Validate())
}
