package match

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDerivePrefix(t *testing.T) {
	tests := []struct {
		name    string
		pattern string
		want    string
	}{
		{"empty", "", ""},
		{"exact", "raw/support.csv", "raw/support.csv"},
		{"root wildcard", "*.json", ""},
		{"double star", "raw/**", "raw/"},
		{"double star suffix", "raw/**/*.csv", "raw/"},
		{"braces", "raw/{a,b}/*.md", "raw/"},
		{"class", "raw/[0-9]*/x.csv", "raw/"},
		{"partial segment", "raw/2026-*/x.csv", "raw/"},
		{"leading double star", "**/x.csv", ""},
		{"escaped star", `raw/file\*.csv`, "raw/file*.csv"},
		{"escaped then glob", `raw/a\*/*.csv`, "raw/a*/"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DerivePrefix(tt.pattern))
		})
	}
}

func TestIsGlobPattern(t *testing.T) {
	assert.True(t, IsGlobPattern("raw/**/*.csv"))
	assert.True(t, IsGlobPattern("raw/file?.csv"))
	assert.False(t, IsGlobPattern(`raw/file\*.csv`))
	assert.False(t, IsGlobPattern("raw/file.csv"))
}

func TestPattern_Match(t *testing.T) {
	p, err := Compile("raw/**/*.csv", false)
	require.NoError(t, err)
	assert.Equal(t, "raw/", p.Prefix())
	assert.Equal(t, "raw/**/*.csv", p.String())

	assert.True(t, p.Match("raw/a.csv"))
	assert.True(t, p.Match("raw/x/y/a.csv"))
	assert.False(t, p.Match("raw/a.json"))
	assert.False(t, p.Match("other/a.csv"))
	assert.False(t, p.Match("raw/.cache/a.csv"))

	withHidden, err := Compile("raw/**/*.csv", true)
	require.NoError(t, err)
	assert.True(t, withHidden.Match("raw/.cache/a.csv"))
}

func TestCompile_Invalid(t *testing.T) {
	_, err := Compile("raw/[a", false)
	assert.ErrorIs(t, err, ErrInvalidPattern)
}

func TestIsHidden(t *testing.T) {
	assert.True(t, IsHidden(".env"))
	assert.True(t, IsHidden("a/.git/config"))
	assert.False(t, IsHidden("a/b.txt"))
	assert.False(t, IsHidden("a/b."))
}
