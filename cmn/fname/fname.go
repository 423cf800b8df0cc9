// Package fname holds filesystem layout constants for the registry's
// on-disk rendezvous files (see external interfaces, §6).
package fname

const (
	HomeConfigsDir = ".config" // join(cos.HomeDir(), HomeConfigsDir)
	HomeShmbus     = "shmbus"  // join(cos.HomeDir(), HomeConfigsDir, HomeShmbus)
)

const (
	ServicesDir = "services"
	NodesDir    = "nodes"

	DefaultPrefix = "shmbus_"

	StaticSuffix  = ".service"
	DynamicSuffix = ".dynamic"
	DataSuffix    = ".data"
	NodeSuffix    = ".node"

	GlobalConfig   = ".shmbus.conf"
	OverrideConfig = ".shmbus.override_config"
)
