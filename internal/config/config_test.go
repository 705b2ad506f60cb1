// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Minerva Contributors

package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minervacm/minerva/internal/config"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load("", false, nil)
	require.NoError(t, err)
	assert.Equal(t, "localhost", cfg.NodeName)
	assert.Equal(t, "production", cfg.Environment)
	assert.Equal(t, "text", cfg.LogFormat)
}

func TestLoad_FileAndFlagOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "minerva.yaml")
	require.NoError(t, os.WriteFile(path, []byte("node_name: web01.example.com\nenvironment: staging\n"), 0o600))

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("environment", "production", "")
	require.NoError(t, flags.Set("environment", "qa"))

	cfg, err := config.Load(path, true, flags)
	require.NoError(t, err)
	assert.Equal(t, "web01.example.com", cfg.NodeName)
	// Flags win over the file.
	assert.Equal(t, "qa", cfg.Environment)
}

func TestLoad_MissingExplicitFileFails(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "absent.yaml"), true, nil)
	require.Error(t, err)
}

func TestLoad_MissingDefaultFileIsFine(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "absent.yaml"), false, nil)
	require.NoError(t, err)
}

func TestValidateSettings(t *testing.T) {
	cfg := config.Defaults()
	cfg.LogFormat = "xml"
	require.Error(t, cfg.ValidateSettings())

	cfg = config.Defaults()
	cfg.NodeName = ""
	require.Error(t, cfg.ValidateSettings())
}

func TestCandidateNames(t *testing.T) {
	cfg := config.Config{NodeName: "web01.example.com"}
	assert.Equal(t, []string{"web01.example.com", "web01.example", "web01"}, cfg.CandidateNames())

	cfg = config.Config{NodeName: "plain"}
	assert.Equal(t, []string{"plain"}, cfg.CandidateNames())
}
