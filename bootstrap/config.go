package bootstrap

import (
	"github.com/kbukum/notify/config"
)

// Config is the constraint for application configuration types. Any struct
// embedding config.ServiceConfig satisfies it through promoted methods,
// as long as its own ApplyDefaults/Validate (if any) chain to the embedded
// ones.
type Config interface {
	GetServiceConfig() *config.ServiceConfig
	ApplyDefaults()
	Validate() error
}
