package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/idsov/recordstore/src/recordstore"
	"github.com/spf13/cobra"
)

//NewRunCmd returns the command that starts a record store node
func NewRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "run",
		Short:   "Run node",
		PreRunE: loadConfig,
		RunE:    runRecordStore,
	}
	AddRunFlags(cmd)
	return cmd
}

/*******************************************************************************
* RUN
*******************************************************************************/

func runRecordStore(cmd *cobra.Command, args []string) error {
	engine := recordstore.NewRecordStore(_config)

	if err := engine.Init(); err != nil {
		_config.Logger().WithError(err).Error("Cannot initialize engine")
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	//Relay SIGINT and SIGTERM to a clean shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	go func() {
		select {
		case <-sigCh:
			_config.Logger().Info("Received an interrupt, stopping services")
			cancel()
		case <-ctx.Done():
		}
	}()

	return engine.Run(ctx)
}

/*******************************************************************************
* CONFIG
*******************************************************************************/

//AddRunFlags adds flags to the Run command
func AddRunFlags(cmd *cobra.Command) {
	AddStoreFlags(cmd)

	cmd.Flags().Bool("store", _config.Store, "Use badgerDB instead of in-mem DB")

	// Service
	cmd.Flags().Bool("no-service", _config.NoService, "Disable the HTTP service")
	cmd.Flags().StringP("service-listen", "s", _config.ServiceAddr, "Listen IP:Port for HTTP service")

	// Ingest
	cmd.Flags().Int("ingest-queue", _config.IngestQueue, "Number of remote deliveries waiting to be applied")
}
