package metrics

import (
	"github.com/foxseedlab/streameval/internal/streaming"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*SessionObserver, error) {
		return NewSessionObserver(prometheus.NewRegistry()), nil
	})
	do.Provide(injector, func(i do.Injector) (streaming.Observer, error) {
		return do.MustInvoke[*SessionObserver](i), nil
	})
}
