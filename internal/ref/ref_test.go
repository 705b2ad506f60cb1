// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Minerva Contributors

package ref_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minervacm/minerva/internal/ref"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name       string
		text       string
		wantType   string
		wantTitles []string
	}{
		{"bare type", `File`, "File", nil},
		{"single quoted title", `File['/etc/hosts']`, "File", []string{"/etc/hosts"}},
		{"raw title", `Notify[b]`, "Notify", []string{"b"}},
		{"raw path title", `File[/etc/hosts]`, "File", []string{"/etc/hosts"}},
		{"multiple titles", `File['/a', '/b']`, "File", []string{"/a", "/b"}},
		{"qualified type", `Foo::Bar[baz]`, "Foo::Bar", []string{"baz"}},
		{"anchored type", `::File[/a]`, "File", []string{"/a"}},
		{"class reference", `Class[foo]`, "Class", []string{"foo"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reference, err := ref.Parse(tt.text)
			require.NoError(t, err)
			assert.Equal(t, tt.wantType, reference.Type)
			assert.Equal(t, tt.wantTitles, reference.Titles)
		})
	}
}

func TestParse_Errors(t *testing.T) {
	for _, text := range []string{"", "lowercase[a]", "File['/a'", "[title]"} {
		t.Run(text, func(t *testing.T) {
			_, err := ref.Parse(text)
			assert.Error(t, err)
		})
	}
}

func TestString_RoundTrip(t *testing.T) {
	reference, err := ref.Parse(`File[/a, /b]`)
	require.NoError(t, err)
	assert.Equal(t, "File[/a, /b]", reference.String())
}
