package conductor

import (
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/viper"

	"andycoin/andycoin"
	"andycoin/consensus/ledger"
	"andycoin/consensus/votes"
	"andycoin/database"
	"andycoin/messaging/audit"
	"andycoin/messaging/commands"
)

// Services is everything the front ends need once the Conductor has started.
type Services struct {
	Ledger     *ledger.Ledger
	Votes      *votes.Engine
	Commands   *commands.Dispatcher
	Store      *database.Store
	Reconciler *Reconciler
	Hub        *audit.Hub
	Recent     *audit.Memory
	Registry   *prometheus.Registry

	auditFile *audit.FileSink
}

// Start loads the ledger from disk and starts the Reconciler. It returns once the services are
// ready to accept commands; a store that cannot be read is returned as an error and nothing is
// started.
func Start(terminate chan struct{}, wg *sync.WaitGroup, config *viper.Viper) (*Services, error) {
	andycoin.LogCLI("Starting the Conductor service", 4)
	s, err := boot(config)
	if err != nil {
		return nil, err
	}
	ready := make(chan struct{})
	wg.Add(1)
	go s.run(terminate, wg, ready, andycoin.PersistInterval(config))
	<-ready
	return s, nil
}

func boot(config *viper.Viper) (*Services, error) {
	store := database.NewStore(andycoin.DataPath(config, "dataFile"))
	if config.GetBool("backupOnStart") {
		if dst, err := store.Backup(time.Now()); err != nil {
			andycoin.LogCLI(err.Error(), 2)
		} else if dst != "" {
			andycoin.LogCLI(fmt.Sprintf("backed up %s to %s", store.Path(), dst), 4)
		}
	}
	snap, err := load(store, andycoin.DataPath(config, "legacyDataFile"))
	if err != nil {
		return nil, err
	}

	auditFile, err := audit.NewFileSink(andycoin.DataPath(config, "logDir"), config.GetInt("auditBuffer"))
	if err != nil {
		return nil, err
	}
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	s := &Services{
		Store:     store,
		Hub:       audit.NewHub(),
		Recent:    audit.NewMemory(config.GetInt("recentAuditEvents")),
		Registry:  registry,
		auditFile: auditFile,
	}
	sink := audit.Multi{auditFile, s.Hub, s.Recent, audit.NewMetrics(registry)}

	s.Ledger = ledger.New(sink)
	s.Ledger.Restore(snap)
	s.Votes = votes.New(s.Ledger)
	s.Commands = commands.New(s.Ledger, s.Votes, sink, commands.Options{
		FlipRate:       config.GetFloat64("flipRateLimit"),
		FlipBurst:      config.GetInt("flipBurst"),
		DedupeCapacity: uint(config.GetInt("dedupeCapacity")),
	})
	s.Reconciler = NewReconciler(s.Ledger, s.Votes, store)
	return s, nil
}

// load reads the JSON store, falling back to the legacy YAML balances the first time the bot
// runs on this version.
func load(store *database.Store, legacyPath string) (andycoin.Snapshot, error) {
	if !store.Exists() {
		snap, ok, err := database.ImportLegacy(legacyPath)
		if err != nil {
			return snap, err
		}
		if ok {
			return snap, nil
		}
	}
	return store.Load()
}

func (s *Services) run(terminate chan struct{}, wg *sync.WaitGroup, ready chan struct{}, interval time.Duration) {
	// The Reconciler gets its own stop signal so it can save one last time after everything
	// else has stopped mutating the ledger.
	reconcilerWg := &sync.WaitGroup{}
	terminateReconciler := make(chan struct{})
	s.Reconciler.Start(terminateReconciler, reconcilerWg, interval)

	close(ready)
	andycoin.LogCLI("Conductor: I'm now accepting commands", 4)
	<-terminate
	andycoin.LogCLI("Conductor: I received terminate signal, shutting down", 4)
	close(terminateReconciler)
	reconcilerWg.Wait()
	s.auditFile.Close()
	if d := s.auditFile.Dropped(); d > 0 {
		andycoin.LogCLI(fmt.Sprintf("Conductor: %d audit events were dropped", d), 2)
	}
	andycoin.LogCLI("Conductor: shutdown complete", 4)
	wg.Done()
}
