package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cuemby/chronodb/pkg/health"
	"github.com/cuemby/chronodb/pkg/indexer"
	"github.com/cuemby/chronodb/pkg/log"
	"github.com/cuemby/chronodb/pkg/metrics"
	"github.com/cuemby/chronodb/pkg/notify"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the consume loop and the metrics/health HTTP endpoint",
	Long: `serve subscribes to the tx-topic and doc-topic, applies
transactions to the index as their referenced documents become
available, and exposes /metrics and /healthz over HTTP.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("listen-addr", "127.0.0.1:9090", "Address for /metrics and /healthz")
	serveCmd.Flags().Duration("health-stale-after", 30*time.Second, "A consume-and-index call older than this marks the process unhealthy")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	client, err := openLogClient(cfg)
	if err != nil {
		return err
	}
	defer client.Close()

	broker := notify.NewBroker()
	broker.Start()
	defer broker.Stop()

	ix := indexer.New(client, store, indexer.Config{
		TxTopic:     cfg.TxTopic,
		DocTopic:    cfg.DocTopic,
		PollTimeout: cfg.PollTimeout,
	}, broker)

	staleAfter, _ := cmd.Flags().GetDuration("health-stale-after")
	status := health.NewIndexerStatus()
	ix.SetHealthStatus(status)
	checker := health.NewIndexerChecker(status, staleAfter)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := ix.Start(ctx); err != nil {
		return fmt.Errorf("chronodb: start indexer: %w", err)
	}

	listenAddr, _ := cmd.Flags().GetString("listen-addr")
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/healthz", healthzHandler(checker))
	httpServer := &http.Server{Addr: listenAddr, Handler: mux}

	errCh := make(chan error, 1)
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()
	log.Info(fmt.Sprintf("listening on %s (/metrics, /healthz)", listenAddr))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	go runConsumeLoop(ctx, ix)

	select {
	case <-sigCh:
		log.Info("shutting down")
	case err := <-errCh:
		log.Error(err.Error())
	}

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	return httpServer.Shutdown(shutdownCtx)
}

// runConsumeLoop calls ConsumeAndIndex in a tight loop until ctx is
// canceled, reporting every consume-and-index result to the metrics
// registry. A poll that returns zero transactions and zero documents
// is the common case between writer activity, not an error.
func runConsumeLoop(ctx context.Context, ix *indexer.Indexer) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		result, err := ix.ConsumeAndIndex(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Error(fmt.Sprintf("consume-and-index: %v", err))
			continue
		}
		if result.Txs > 0 || result.Docs > 0 {
			log.Info(fmt.Sprintf("consume-and-index: applied %d transactions, indexed %d documents", result.Txs, result.Docs))
		}
	}
}

func healthzHandler(checker *health.IndexerChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		result := checker.Check(r.Context())
		w.Header().Set("Content-Type", "application/json")
		if !result.Healthy {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		fmt.Fprintf(w, `{"healthy":%t,"message":%q,"checked_at":%q}`, result.Healthy, result.Message, result.CheckedAt.Format(time.RFC3339))
	}
}
