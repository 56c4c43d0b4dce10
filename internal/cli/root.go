// Package cli реализует консольный клиент formulactl.
package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/GGmuzem/formula-engine/internal/catalog"
	"github.com/GGmuzem/formula-engine/internal/config"
	"github.com/GGmuzem/formula-engine/internal/engine"
	"github.com/GGmuzem/formula-engine/internal/logger"
	"github.com/GGmuzem/formula-engine/internal/plot"
	"github.com/GGmuzem/formula-engine/pkg/enginerpc"
)

func Execute() {
	cmd := NewRootCmd()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// options - общие флаги команд
type options struct {
	catalogPath string
	remote      string
	token       string
	debug       bool
}

func NewRootCmd() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:          "formulactl",
		Short:        "Вычисление формул, систем уравнений и графиков",
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			level := "error"
			if opts.debug {
				level = "debug"
			}
			logger.Setup(logger.Config{Level: level, Output: cmd.ErrOrStderr()})
		},
	}

	cmd.PersistentFlags().StringVar(&opts.catalogPath, "catalog", "", "YAML catalog file (embedded catalog if omitted)")
	cmd.PersistentFlags().StringVar(&opts.remote, "remote", "", "formulad gRPC address; computes locally if omitted")
	cmd.PersistentFlags().StringVar(&opts.token, "token", "", "bearer token for remote calls")
	cmd.PersistentFlags().BoolVar(&opts.debug, "debug", false, "log to stderr")

	cmd.AddCommand(
		resolveCmd(opts),
		solveCmd(opts),
		plotCmd(opts),
		evalCmd(),
		catalogCmd(),
		tokenCmd(),
	)
	return cmd
}

// localEngine создаёт движок без хранилища истории
func (o *options) localEngine() (*engine.Engine, error) {
	snap, err := o.loadCatalog()
	if err != nil {
		return nil, err
	}
	return engine.New(engine.Options{
		Catalog:  catalog.NewStore(snap),
		Renderer: plot.NewRenderer(config.FromEnv().PlotSamples),
		Logger:   logger.L(),
	}), nil
}

func (o *options) loadCatalog() (*catalog.Snapshot, error) {
	if o.catalogPath == "" {
		return catalog.Default()
	}
	return catalog.LoadFile(o.catalogPath)
}

func (o *options) dial() (enginerpc.EngineClient, io.Closer, error) {
	conn, err := enginerpc.Dial(o.remote)
	if err != nil {
		return nil, nil, fmt.Errorf("error connecting to %s: %w", o.remote, err)
	}
	return enginerpc.NewEngineClient(conn), conn, nil
}

// parseAssignments разбирает значения вида name=value; значение может
// содержать запятые (пакетный режим)
func parseAssignments(items []string) (map[string]string, error) {
	values := make(map[string]string, len(items))
	for _, item := range items {
		name, value, ok := strings.Cut(item, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("expected name=value, got %q", item)
		}
		values[name] = value
	}
	return values, nil
}
