package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethpandaops/datas/pkg/config"
)

func TestApplyAnalyzeFlags(t *testing.T) {
	cfg, err := config.Load()
	require.NoError(t, err)

	flags := analyzeCmd.Flags()
	require.NoError(t, flags.Set("sessions", "s.xlsx"))
	require.NoError(t, flags.Set("threshold", "30"))
	require.NoError(t, flags.Set("school", "Lincoln"))
	require.NoError(t, flags.Set("grade", "3"))
	require.NoError(t, flags.Set("grade", "4"))
	require.NoError(t, flags.Set("ell", "false"))
	require.NoError(t, flags.Set("record", "true"))

	applyAnalyzeFlags(analyzeCmd, cfg)

	assert.Equal(t, "s.xlsx", cfg.Data.Sessions)
	assert.Equal(t, config.DefaultStudentsFile, cfg.Data.Students)
	assert.InDelta(t, 30.0, cfg.Analysis.FullDosageThreshold, 1e-9)
	assert.Equal(t, "Lincoln", cfg.Analysis.Filter.School)
	assert.Equal(t, []int{3, 4}, cfg.Analysis.Filter.Grades)
	require.NotNil(t, cfg.Analysis.Filter.ELL)
	assert.False(t, *cfg.Analysis.Filter.ELL)
	assert.Nil(t, cfg.Analysis.Filter.IEP)
	assert.True(t, cfg.Database.Enabled)
	assert.False(t, cfg.Upload.S3.Enabled)
}
