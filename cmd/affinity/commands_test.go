package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cactuscomunidadcreativa/rowi-affinity/internal/affinity"
	"github.com/cactuscomunidadcreativa/rowi-affinity/internal/types"
)

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

const pairJSON = `{
  "subject": {
    "competencies": {"EL": 100, "RP": 100, "ACT": 100, "NE": 100, "IM": 100, "OP": 100, "EMP": 100, "NG": 100},
    "outcomes": {"influence": 100, "decisionMaking": 100, "network": 100, "community": 100, "balance": 100, "health": 100, "achievement": 100, "satisfaction": 100}
  },
  "counterpart": {
    "competencies": {"EL": "100", "RP": "100", "ACT": "100", "NE": "100", "IM": "100", "OP": "100", "EMP": "100", "NG": "100"},
    "outcomes": {"influence": 100, "decisionMaking": 100, "network": 100, "community": 100, "balance": 100, "health": 100, "achievement": 100, "satisfaction": 100}
  },
  "context": "execution",
  "closeness": "close"
}`

func TestScoreCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pair.json")
	require.NoError(t, os.WriteFile(path, []byte(pairJSON), 0o644))

	out, err := run(t, "", "score", "-f", path, "--detailed")
	require.NoError(t, err)

	var resp types.ScoreResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.InDelta(t, 104.24835, resp.Result.Composite, 0.1)
	assert.Equal(t, affinity.BandWarm, resp.Result.Band)
	assert.NotNil(t, resp.Details)

	out, err = run(t, pairJSON, "score", "--context", "leadership")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, affinity.ContextLeadership, resp.Result.Context)
}

func TestScoreCommandErrors(t *testing.T) {
	_, err := run(t, `{"subject": {}, "counterpart": {}}`, "score")
	assert.ErrorIs(t, err, affinity.ErrNoProfileData)

	_, err = run(t, `not json`, "score")
	assert.Error(t, err)

	_, err = run(t, "", "score", "-f", filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestContextsCommand(t *testing.T) {
	out, err := run(t, "", "contexts")
	require.NoError(t, err)
	for _, c := range affinity.Contexts {
		assert.Contains(t, out, string(c))
	}
	assert.Contains(t, out, "imagination+designing")

	out, err = run(t, "", "contexts", "--json")
	require.NoError(t, err)
	var profiles []affinity.ContextProfile
	require.NoError(t, json.Unmarshal([]byte(out), &profiles))
	assert.Len(t, profiles, len(affinity.Contexts))
}

func TestContextsCommandWithCalibration(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, affinity.NewCalibrationStore(dir).SaveCalibration(affinity.ContextDecision,
		affinity.CalibrationOverride{Calibration: 1.0, BiasCap: 1.05, StrengthFactor: 1.04}))

	out, err := run(t, "", "--calibration-dir", dir, "contexts", "--json")
	require.NoError(t, err)

	var profiles []affinity.ContextProfile
	require.NoError(t, json.Unmarshal([]byte(out), &profiles))
	for _, p := range profiles {
		if p.Context == affinity.ContextDecision {
			assert.Equal(t, 1.0, p.Calibration)
		}
	}
}

func TestBiasCommand(t *testing.T) {
	out, err := run(t, "Revenue grew 12% to 4.5 million in 2023\n\n", "bias")
	require.NoError(t, err)

	var bias affinity.PreferenceBias
	require.NoError(t, json.Unmarshal([]byte(out), &bias))
	assert.Equal(t, affinity.StyleNumeric, bias.Style)

	out, err = run(t, "", "bias")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), &bias))
	assert.Equal(t, affinity.NeutralBias(), bias)
}
