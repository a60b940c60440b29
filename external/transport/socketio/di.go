package socketio

import (
	"github.com/foxseedlab/streameval/internal/config"
	"github.com/foxseedlab/streameval/internal/transport"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (transport.Factory, error) {
		c := do.MustInvoke[*config.Config](i)
		return NewFactory(Config{
			Path:             c.GatewaySocketPath,
			HandshakeTimeout: c.ConnectTimeout(),
			WriteTimeout:     c.WriteTimeout(),
		}), nil
	})
}
