package constants

// Common string constants used throughout the codebase
const (
	// Log levels
	ErrorLevel = "error"

	// Environments
	ProdEnvironment = "prod"
	DevEnvironment  = "dev"
	TestEnvironment = "test"

	// Status values
	FailedStatus  = "failed"
	PendingStatus = "pending"
)
