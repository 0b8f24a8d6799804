// Package config holds the named planner configurations and turns a
// selected one into the coordinator, solver and stats settings.
package config

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/splitplan/splitplan/common/stats"
	"github.com/splitplan/splitplan/scheduler/admm"
	"github.com/splitplan/splitplan/scheduler/milp"
	"github.com/splitplan/splitplan/scheduler/milp/bnb"
)

// JSONConfigs is a complete configuration. Sections with an empty Type are
// taken from the default configuration.
type JSONConfigs struct {
	Planner PlannerJSONConfig `json:"Planner"`
	Solver  SolverJSONConfig  `json:"Solver"`
	Stats   StatsJSONConfig   `json:"Stats"`
}

func (c JSONConfigs) String() string {
	return fmt.Sprintf("\n%s\n%s\n%s", c.Planner, c.Solver, c.Stats)
}

type PlannerJSONConfig struct {
	Type           string  `json:"Type"`           // admm
	Rounds         int     `json:"Rounds"`         // default to 5
	Rho            float64 `json:"Rho"`            // default to 3
	CoarseGap      float64 `json:"CoarseGap"`      // default to 0.05
	FineGap        float64 `json:"FineGap"`        // default to 1e-4
	CoarseRounds   int     `json:"CoarseRounds"`   // default to 3
	AssignmentGap  float64 `json:"AssignmentGap"`  // default to 1e-4
	FinishCoupling bool    `json:"FinishCoupling"` // default to true
	ConvergenceGap float64 `json:"ConvergenceGap"` // default to 0, off
}

func (pc PlannerJSONConfig) String() string {
	return fmt.Sprintf("PlannerJSONConfig: Type: %s, Rounds: %d, Rho: %g, CoarseGap: %g, FineGap: %g, CoarseRounds: %d, "+
		"AssignmentGap: %g, FinishCoupling: %t, ConvergenceGap: %g",
		pc.Type, pc.Rounds, pc.Rho, pc.CoarseGap, pc.FineGap, pc.CoarseRounds, pc.AssignmentGap, pc.FinishCoupling, pc.ConvergenceGap)
}

type SolverJSONConfig struct {
	Type           string  `json:"Type"`           // bnb
	MaxNodes       int     `json:"MaxNodes"`       // default to 20000
	IntegralityTol float64 `json:"IntegralityTol"` // default to 1e-6
	SimplexTol     float64 `json:"SimplexTol"`     // default to 1e-10
	BigM           float64 `json:"BigM"`           // default to 1e4
}

func (sc SolverJSONConfig) String() string {
	return fmt.Sprintf("SolverJSONConfig: Type: %s, MaxNodes: %d, IntegralityTol: %g, SimplexTol: %g, BigM: %g",
		sc.Type, sc.MaxNodes, sc.IntegralityTol, sc.SimplexTol, sc.BigM)
}

type StatsJSONConfig struct {
	Type          string `json:"Type"`          // latched, nil
	LatchInterval string `json:"LatchInterval"` // default to 0, render live values
}

func (sc StatsJSONConfig) String() string {
	return fmt.Sprintf("StatsJSONConfig: Type: %s, LatchInterval: %s", sc.Type, sc.LatchInterval)
}

// GetConfigText returns the text of a named configuration. Text starting
// with '{' is taken as literal JSON.
func GetConfigText(configSelector string) ([]byte, error) {
	if strings.HasPrefix(strings.TrimSpace(configSelector), "{") {
		log.Infof("using literal JSON planner config")
		return []byte(configSelector), nil
	}
	configText, ok := PlannerConfigs[configSelector]
	if !ok {
		keys := make([]string, 0, len(PlannerConfigs))
		for k := range PlannerConfigs {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		return nil, fmt.Errorf("invalid configuration %s, supported values are %v", configSelector, keys)
	}
	return []byte(configText), nil
}

// GetPlannerConfigs parses the selected configuration over the default one.
// Omitted fields keep their default values and a section whose Type is set
// to "" is replaced by the default section.
func GetPlannerConfigs(configSelector string) (*JSONConfigs, error) {
	defaultConfigText, _ := GetConfigText("default")
	defaultConfig := &JSONConfigs{}
	if err := json.Unmarshal(defaultConfigText, defaultConfig); err != nil {
		return nil, fmt.Errorf("couldn't parse the default config: %v", err)
	}

	configText, err := GetConfigText(configSelector)
	if err != nil {
		return nil, err
	}
	// Fields a section leaves out keep their default values.
	seeded := *defaultConfig
	configs := &seeded
	if err := json.Unmarshal(configText, configs); err != nil {
		return nil, fmt.Errorf("couldn't parse top-level config: %v", err)
	}

	if configs.Planner.Type == "" {
		log.Infof("using default Planner config")
		configs.Planner = defaultConfig.Planner
	}
	if configs.Solver.Type == "" {
		log.Infof("using default Solver config")
		configs.Solver = defaultConfig.Solver
	}
	if configs.Stats.Type == "" {
		log.Infof("using default Stats config")
		configs.Stats = defaultConfig.Stats
	}
	return configs, nil
}

// CreatePlannerConfig converts the section into a validated coordinator config.
func (pc *PlannerJSONConfig) CreatePlannerConfig() (admm.Config, error) {
	if pc.Type != "admm" {
		return admm.Config{}, fmt.Errorf("unknown planner type %q", pc.Type)
	}
	c := admm.Config{
		Rounds:         pc.Rounds,
		Rho:            pc.Rho,
		CoarseGap:      pc.CoarseGap,
		FineGap:        pc.FineGap,
		CoarseRounds:   pc.CoarseRounds,
		AssignmentGap:  pc.AssignmentGap,
		FinishCoupling: pc.FinishCoupling,
		ConvergenceGap: pc.ConvergenceGap,
	}
	if err := c.Validate(); err != nil {
		return admm.Config{}, errors.Wrapf(err, "planner config %s", pc)
	}
	return c, nil
}

// CreateSolver builds the MILP engine. Zero fields take the engine defaults.
func (sc *SolverJSONConfig) CreateSolver(stat stats.StatsReceiver) (milp.Solver, error) {
	if sc.Type != "bnb" {
		return nil, fmt.Errorf("unknown solver type %q", sc.Type)
	}
	return bnb.NewSolver(bnb.Config{
		MaxNodes:       sc.MaxNodes,
		IntegralityTol: sc.IntegralityTol,
		SimplexTol:     sc.SimplexTol,
		BigM:           sc.BigM,
	}, stat), nil
}

// CreateStatsReceiver returns the receiver and the function that stops
// its latching goroutine.
func (sc *StatsJSONConfig) CreateStatsReceiver() (stats.StatsReceiver, func(), error) {
	switch sc.Type {
	case "nil":
		return stats.NilStatsReceiver(), func() {}, nil
	case "latched":
		var latch time.Duration
		if sc.LatchInterval != "" {
			var err error
			if latch, err = time.ParseDuration(sc.LatchInterval); err != nil {
				return nil, nil, errors.Wrapf(err, "stats latch interval %q", sc.LatchInterval)
			}
		}
		stat, cancel := stats.NewCustomStatsReceiver(stats.NewFinagleStatsRegistry, latch)
		return stat, cancel, nil
	}
	return nil, nil, fmt.Errorf("unknown stats type %q", sc.Type)
}
