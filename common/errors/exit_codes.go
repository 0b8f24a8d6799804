package errors

type ExitCode int

const (
	GenericFailureExitCode ExitCode = 1

	// Input problems, values follow sysexits.h
	InvalidParamsExitCode ExitCode = 64
	LoadFailureExitCode   ExitCode = 66
	ConfigFailureExitCode ExitCode = 78

	// Optimization failures
	InfeasibleExitCode    ExitCode = 70
	SolverFailureExitCode ExitCode = 71
)
