package audio

import (
	"github.com/foxseedlab/streameval/internal/audio"
	"github.com/foxseedlab/streameval/internal/pipeline"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (audio.Loader, error) {
		seq := do.MustInvoke[*pipeline.TaskSequence](i)
		return NewFileLoader(seq.SamplingRate()), nil
	})
}
