package hidracli

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/function61/gokit/envvar"
	"github.com/function61/gokit/logex"
	"github.com/function61/gokit/osutil"
	"github.com/function61/gokit/taskrunner"
	"github.com/hb2btools/hidractl/pkg/hidra"
	"github.com/hb2btools/hidractl/pkg/hidrapaths"
	"github.com/hb2btools/hidractl/pkg/hidraserver"
	"github.com/hb2btools/hidractl/pkg/livestatus"
	"github.com/hb2btools/hidractl/pkg/notify"
	"github.com/hb2btools/hidractl/pkg/peaks"
	"github.com/hb2btools/hidractl/pkg/projectfile"
	"github.com/hb2btools/hidractl/pkg/reduction"
	"github.com/hb2btools/hidractl/pkg/runcatalog"
	"github.com/spf13/cobra"
)

func serverEntrypoint() *cobra.Command {
	addr := ":8080"
	catalogPath := defaultCatalogPath
	redisAddr := "localhost:6379"
	mqttBroker := ""

	cmd := &cobra.Command{
		Use:   "server",
		Short: "Serve the reduction pipeline over HTTP",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			rootLogger := logex.StandardLogger()
			ctx := osutil.CancelOnInterruptOrTerminate(rootLogger)

			osutil.ExitIfError(runServer(ctx, addr, catalogPath, redisAddr, mqttBroker, rootLogger))
		},
	}
	cmd.Flags().StringVar(&addr, "addr", addr, "Listen address")
	cmd.Flags().StringVar(&catalogPath, "db", catalogPath, "Catalog database file")
	cmd.Flags().StringVar(&redisAddr, "redis", redisAddr, "Redis address for the status board")
	cmd.Flags().StringVar(&mqttBroker, "mqtt", mqttBroker, "MQTT broker URL for pipeline events (empty = no events)")

	return cmd
}

func runServer(
	ctx context.Context,
	addr string,
	catalogPath string,
	redisAddr string,
	mqttBroker string,
	logger *log.Logger,
) error {
	authToken, err := envvar.Required("HIDRA_API_TOKEN")
	if err != nil {
		return err
	}

	catalog, err := runcatalog.Open(catalogPath)
	if err != nil {
		return err
	}
	defer catalog.Close()

	board := livestatus.New(redisAddr)
	defer board.Close()

	tasks := taskrunner.New(ctx, logger)

	var notifier *notify.Notifier
	if mqttBroker != "" {
		notifier = notify.New(mqttBroker, func(task func(context.Context) error) {
			tasks.Start("notifier", task)
		}, logex.Prefix("notify", logger))
	}

	service := &pipelineService{
		catalog:  catalog,
		board:    board,
		notifier: notifier,
		logl:     logex.Levels(logex.Prefix("pipeline", logger)),
		logger:   logger,
	}

	tasks.Start("httpserver", func(ctx context.Context) error {
		return hidraserver.Server(ctx, addr, authToken, service, logger)
	})

	return tasks.Wait()
}

// runs the reduce-save-announce sequence for runs submitted over HTTP,
// keeping the catalog and the status board in step
type pipelineService struct {
	catalog  *runcatalog.Catalog
	board    *livestatus.Board
	notifier *notify.Notifier
	logl     *logex.Leveled
	logger   *log.Logger
}

var _ hidraserver.Service = (*pipelineService)(nil)

func (p *pipelineService) SubmitReduction(ctx context.Context, runNumber int) error {
	run, err := p.catalog.Run(ctx, runNumber)
	if err != nil {
		return err
	}

	if err := p.board.Set(ctx, runNumber, livestatus.StateQueued, 0, ""); err != nil {
		p.logl.Error.Printf("status board: %v", err)
	}

	// fire and forget: the submitter polls the status endpoint
	go func() {
		if err := p.reduce(context.Background(), run); err != nil {
			p.logl.Error.Printf("run %d: %v", run.RunNumber, err)
			p.setStatus(run.RunNumber, livestatus.StateFailed, 1, err.Error())
			p.announce(notify.Event{
				Kind:      notify.RunFailed,
				RunNumber: run.RunNumber,
				IPTS:      run.IPTS,
				Detail:    err.Error(),
			})
		}
	}()

	return nil
}

func (p *pipelineService) reduce(ctx context.Context, run *runcatalog.Run) error {
	p.setStatus(run.RunNumber, livestatus.StateReducing, 0, "")

	rawFile := run.RawPath
	if rawFile == "" {
		located, err := hidrapaths.LocateRawFile(run.IPTS, run.RunNumber)
		if err != nil {
			return err
		}
		rawFile = located
	}

	outputDir := hidrapaths.OutputDir(run.IPTS)
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return err
	}
	projectPath := filepath.Join(outputDir, fmt.Sprintf("HB2B_%d.h5", run.RunNumber))

	if err := reduceRun(ctx, rawFile, projectPath, "", "", nil, reduction.Options{}, p.logger); err != nil {
		return err
	}

	if err := p.catalog.SetProjectPath(ctx, run.RunNumber, projectPath); err != nil {
		return err
	}

	p.setStatus(run.RunNumber, livestatus.StateDone, 1, "")
	p.announce(notify.Event{
		Kind:        notify.RunReduced,
		RunNumber:   run.RunNumber,
		IPTS:        run.IPTS,
		ProjectPath: projectPath,
	})

	return nil
}

func (p *pipelineService) RunStatus(ctx context.Context, runNumber int) (*livestatus.Status, error) {
	return p.board.Get(ctx, runNumber)
}

func (p *pipelineService) SubRuns(ctx context.Context, runNumber int) (hidra.SubRuns, error) {
	store, err := p.openProject(ctx, runNumber)
	if err != nil {
		return nil, err
	}
	defer store.Close()

	return store.SubRuns()
}

func (p *pipelineService) Pattern(ctx context.Context, runNumber int, subRun hidra.SubRun, maskID string) (*hidra.Pattern, error) {
	store, err := p.openProject(ctx, runNumber)
	if err != nil {
		return nil, err
	}
	defer store.Close()

	ws, err := projectfile.LoadWorkspace(store, projectfile.LoadOptions{Reduced: true})
	if err != nil {
		return nil, err
	}

	return ws.Pattern(maskID, subRun)
}

func (p *pipelineService) PeakCollection(ctx context.Context, runNumber int, tag string) (*peaks.Collection, error) {
	store, err := p.openProject(ctx, runNumber)
	if err != nil {
		return nil, err
	}
	defer store.Close()

	return store.PeakCollection(tag)
}

func (p *pipelineService) openProject(ctx context.Context, runNumber int) (*projectfile.Store, error) {
	run, err := p.catalog.Run(ctx, runNumber)
	if err != nil {
		return nil, err
	}
	if run.ProjectPath == "" {
		return nil, fmt.Errorf("run %d is not reduced yet", runNumber)
	}

	return projectfile.Open(run.ProjectPath, projectfile.ReadOnly, p.logger)
}

func (p *pipelineService) setStatus(runNumber int, state livestatus.State, progress float64, detail string) {
	if err := p.board.Set(context.Background(), runNumber, state, progress, detail); err != nil {
		p.logl.Error.Printf("status board: %v", err)
	}
}

func (p *pipelineService) announce(event notify.Event) {
	if p.notifier == nil {
		return
	}

	if err := p.notifier.Publish(event); err != nil {
		p.logl.Error.Printf("%v", err)
	}
}
