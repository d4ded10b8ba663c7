// tagver derives a canonical version string for a source tree from its
// repository tags, falling back through archive keywords, frozen metadata
// and the parent directory name when live inspection is unavailable.
package main

import (
	"io"

	"github.com/tagver/tagver/cmd"
	"github.com/tagver/tagver/internal/adapters/git"
	"github.com/tagver/tagver/internal/adapters/keywords"
	"github.com/tagver/tagver/internal/adapters/logger"
	"github.com/tagver/tagver/internal/adapters/metadata"
	"github.com/tagver/tagver/internal/adapters/output"
	"github.com/tagver/tagver/internal/adapters/parentdir"
	"github.com/tagver/tagver/internal/domain"
	"github.com/tagver/tagver/internal/infrastructure/config"
	"github.com/tagver/tagver/internal/usecases"
)

func main() {
	cmd.SetDefaultDependencies(buildDependencies())
	cmd.Execute()
}

// buildDependencies wires the production implementations.
func buildDependencies() *cmd.Dependencies {
	return &cmd.Dependencies{
		LoggerFactory: func(verbose bool) (cmd.Logger, error) {
			return logger.New(verbose)
		},
		ConfigLoader: config.Load,
		ResolverFactory: func(cfg domain.Config, log cmd.Logger) domain.Resolver {
			inspector := git.NewInspector(log)
			trunk := git.NewTrunkCalculator(log)
			renderer := usecases.NewRenderer(trunk, log)

			return usecases.NewFallbackResolver(log,
				keywords.New(cfg.TagPrefix, log),
				usecases.NewDescribeStrategy(inspector, renderer, cfg),
				metadata.New(log),
				parentdir.New(cfg.ParentdirPrefix, log),
			)
		},
		WriterFactory: func(out io.Writer) cmd.VersionWriter {
			return output.NewWriterWithOutput(out)
		},
	}
}
