package config

// PlannerConfigs the map of available configurations
var PlannerConfigs = map[string]string{
	"default":      defaultConfig,
	"local.coarse": localCoarse,
	"local.exact":  localExact,
}

// defaultConfig the values used for untyped sections of every other configuration
const defaultConfig = `{
 "Planner": {
  "Type": "admm",
  "Rounds": 5,
  "Rho": 3,
  "CoarseGap": 0.05,
  "FineGap": 0.0001,
  "CoarseRounds": 3,
  "AssignmentGap": 0.0001,
  "FinishCoupling": true,
  "ConvergenceGap": 0
 },
 "Solver": {
  "Type": "bnb",
  "MaxNodes": 20000,
  "IntegralityTol": 1e-6,
  "SimplexTol": 1e-10,
  "BigM": 10000
 },
 "Stats": {
  "Type": "latched",
  "LatchInterval": "0s"
 }
}`

// localCoarse config for local.coarse - !!! make sure this constant is added to PlannerConfigs map above !!!
// Loose gaps and a small node budget for quick looks at larger inputs.
const localCoarse = `{
 "Planner": {
  "Type": "admm",
  "Rounds": 5,
  "Rho": 3,
  "CoarseGap": 0.1,
  "FineGap": 0.05,
  "CoarseRounds": 3,
  "AssignmentGap": 0.05,
  "FinishCoupling": true,
  "ConvergenceGap": 0.5
 },
 "Solver": {
  "Type": "bnb",
  "MaxNodes": 2000
 }
}`

// localExact config for local.exact - !!! make sure this constant is added to PlannerConfigs map above !!!
// Every subproblem solved to optimality, ten rounds, no early exit.
const localExact = `{
 "Planner": {
  "Type": "admm",
  "Rounds": 10,
  "Rho": 3,
  "CoarseGap": 0,
  "FineGap": 0,
  "CoarseRounds": 0,
  "AssignmentGap": 0,
  "FinishCoupling": true
 },
 "Solver": {
  "Type": "bnb",
  "MaxNodes": 200000,
  "IntegralityTol": 1e-9
 }
}`
