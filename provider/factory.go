package provider

import (
	"fmt"
	"time"

	"optionflow/models"
)

// GatewayConfig is the subset of provider configuration the factory needs;
// it mirrors config.ProviderConfig without importing the config package.
type GatewayConfig struct {
	Name        string
	Kind        string
	Priority    int
	Enabled     bool
	BaseURL     string
	MinInterval time.Duration
	Credentials models.ProviderCredentials
}

// Constructor builds a concrete gateway for one provider kind.
type Constructor func(cfg GatewayConfig, timeout time.Duration) (Gateway, error)

var constructors = map[string]Constructor{}

// RegisterKind installs a gateway constructor for a provider kind. Concrete
// gateway packages call this from init.
func RegisterKind(kind string, ctor Constructor) {
	constructors[kind] = ctor
}

// BuildRegistry instantiates every configured gateway and registers it with
// its static priority.
func BuildRegistry(cfgs []GatewayConfig, callTimeout time.Duration) (*Registry, error) {
	registry := NewRegistry()
	for _, pc := range cfgs {
		ctor, ok := constructors[pc.Kind]
		if !ok {
			return nil, fmt.Errorf("unknown provider kind '%s' for '%s'", pc.Kind, pc.Name)
		}
		gw, err := ctor(pc, callTimeout)
		if err != nil {
			return nil, fmt.Errorf("build provider '%s': %w", pc.Name, err)
		}
		registry.Register(gw, pc.Priority, pc.Enabled)
	}
	return registry, nil
}
