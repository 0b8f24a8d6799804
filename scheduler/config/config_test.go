package config

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/splitplan/splitplan/common/stats"
	"github.com/splitplan/splitplan/scheduler/admm"
)

var tests = []string{"default", "local.coarse", "local.exact"}

// Every named config parses and builds all of its parts.
func TestGettingConfigurations(t *testing.T) {
	for _, configSelector := range tests {
		configs, err := GetPlannerConfigs(configSelector)
		require.Nil(t, err, fmt.Sprintf("error getting planner config %s: %v", configSelector, err))

		_, err = configs.Planner.CreatePlannerConfig()
		assert.Nil(t, err, configSelector)
		_, err = configs.Solver.CreateSolver(stats.NilStatsReceiver())
		assert.Nil(t, err, configSelector)
		_, cancel, err := configs.Stats.CreateStatsReceiver()
		require.Nil(t, err, configSelector)
		cancel()
	}

	selector := "invalid.selector"
	configs, err := GetPlannerConfigs(selector)
	assert.NotNil(t, err, fmt.Sprintf("configuration returned for %s: %s", selector, configs))
}

func TestDefaultMatchesCoordinatorDefaults(t *testing.T) {
	configs, err := GetPlannerConfigs("default")
	require.NoError(t, err)
	c, err := configs.Planner.CreatePlannerConfig()
	require.NoError(t, err)
	assert.Equal(t, admm.DefaultConfig(), c)
}

// Untyped sections come from the default config.
func TestSectionsFallBackToDefault(t *testing.T) {
	configs, err := GetPlannerConfigs("local.exact")
	require.NoError(t, err)
	assert.Equal(t, 10, configs.Planner.Rounds)
	assert.Equal(t, 200000, configs.Solver.MaxNodes)
	assert.Equal(t, "latched", configs.Stats.Type)

	configs, err = GetPlannerConfigs(`{"Planner": {"Type": "admm", "Rounds": 2, "Rho": 1, "CoarseGap": 0.1, "FineGap": 0.01}}`)
	require.NoError(t, err)
	c, err := configs.Planner.CreatePlannerConfig()
	require.NoError(t, err)
	assert.Equal(t, 2, c.Rounds)
	assert.True(t, c.FinishCoupling)
	assert.Equal(t, "bnb", configs.Solver.Type)
}

// A typed section keeps the defaults of every field it omits.
func TestOmittedFieldsKeepDefaults(t *testing.T) {
	configs, err := GetPlannerConfigs(`{"Planner": {"Type": "admm", "Rounds": 7}, "Solver": {"Type": "bnb", "MaxNodes": 50}}`)
	require.NoError(t, err)
	c, err := configs.Planner.CreatePlannerConfig()
	require.NoError(t, err)

	want := admm.DefaultConfig()
	want.Rounds = 7
	assert.Equal(t, want, c)
	assert.Equal(t, 50, configs.Solver.MaxNodes)
	assert.Equal(t, 10000.0, configs.Solver.BigM)
	assert.Equal(t, "0s", configs.Stats.LatchInterval)

	configs, err = GetPlannerConfigs(`{"Planner": {"Type": ""}}`)
	require.NoError(t, err)
	assert.Equal(t, "admm", configs.Planner.Type)
}

func TestInvalidSections(t *testing.T) {
	_, err := GetPlannerConfigs(`{"Planner": `)
	assert.Error(t, err)

	pc := PlannerJSONConfig{Type: "admm", Rounds: 0, Rho: 3}
	_, err = pc.CreatePlannerConfig()
	assert.Error(t, err)

	pc = PlannerJSONConfig{Type: "gradient"}
	_, err = pc.CreatePlannerConfig()
	assert.Error(t, err)

	sc := SolverJSONConfig{Type: "gurobi"}
	_, err = sc.CreateSolver(nil)
	assert.Error(t, err)

	st := StatsJSONConfig{Type: "latched", LatchInterval: "soon"}
	_, _, err = st.CreateStatsReceiver()
	assert.Error(t, err)

	st = StatsJSONConfig{Type: "nil"}
	stat, cancel, err := st.CreateStatsReceiver()
	require.NoError(t, err)
	cancel()
	assert.Equal(t, []byte{}, stat.Render(false))
}
