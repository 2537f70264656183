package provisioner

// Stage is a step of the provisioning state machine.
type Stage string

// Provisioning stages in the order they are reached.
const (
	StageStart             Stage = "start"
	StagePlatformDetected  Stage = "platform-detected"
	StageArchivePresent    Stage = "archive-present"
	StageArchiveAcquired   Stage = "archive-acquired"
	StageTrustConfigured   Stage = "trust-configured"
	StagePluginsReconciled Stage = "plugins-reconciled"
	StageDone              Stage = "done"
	StageAborted           Stage = "aborted"
)
