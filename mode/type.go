package mode

import (
	"context"

	"github.com/clipsift/evidence-go/pipeline"
)

// Processor is a top-level run mode. main picks one by its CLI name and
// hands it the service factory plus the remaining arguments.
type Processor func(canxCtx context.Context, svcs pipeline.ServicesFactory, args []string) error
