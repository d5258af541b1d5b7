package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = "../../configs/config.yaml"

func TestValidateSampleConfig(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, runValidate([]string{"-config", sampleConfig}, &out))
	assert.Contains(t, out.String(), "ok: 4 lots, 7 bidders")
	assert.Contains(t, out.String(), "Orchids")
	assert.Contains(t, out.String(), "budget_guard")
}

func TestValidateRejectsBadLot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
lots:
  - name: broken
    starting_price: 100
    floor_price: 200
    price_step: 10
bidders:
  - id: human
    human: true
`), 0o600))

	err := runValidate([]string{"-config", path}, &bytes.Buffer{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "floor_price")
}

func TestSimulateIsDeterministicPerSeed(t *testing.T) {
	run := func(seed string) string {
		var out bytes.Buffer
		require.NoError(t, runSimulate([]string{"-config", sampleConfig, "-rounds", "4", "-seed", seed}, &out))
		return out.String()
	}
	first := run("42")
	assert.Equal(t, first, run("42"))
	for _, lot := range []string{"Roses", "Sunflowers", "Orchids", "Tulips"} {
		assert.Contains(t, first, lot, "round robin visits every lot")
	}
}

func TestSimulateHumanBuysAtLimit(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, runSimulate([]string{"-config", sampleConfig, "-rounds", "3", "-human-buy-at", "1000000"}, &out))
	assert.Equal(t, 3, strings.Count(out.String(), "Player"), out.String())
}

func TestSimulateFlagErrors(t *testing.T) {
	assert.Error(t, runSimulate([]string{"-config", sampleConfig, "-rounds", "0"}, &bytes.Buffer{}))
	assert.Error(t, runSimulate([]string{"-config", sampleConfig, "-human-buy-at", "lots"}, &bytes.Buffer{}))
}
