package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sasha-s/go-deadlock"
	"github.com/spf13/viper"

	"andycoin/andycoin"
	"andycoin/consensus/conductor"
	"andycoin/messaging/api"
)

func main() {
	// .env is optional; real environment variables win over it
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		andycoin.LogCLI(err.Error(), 2)
	}

	// Various parts of the bot need settings. To keep things clean and tidy we put them in a
	// Viper configuration.
	conf := viper.New()
	andycoin.InitConfig(conf)
	// make the config accessible globally
	andycoin.SetConfig(conf)

	deadlock.Opts.DisableLockOrderDetection = true
	deadlock.Opts.DeadlockTimeout = time.Duration(conf.GetInt("deadlockTimeoutSeconds")) * time.Second
	if conf.GetBool("delve") {
		// breakpoints hold locks far longer than the deadlock timeout
		deadlock.Opts.Disable = true
	}
	if conf.GetString("botToken") == "" {
		andycoin.LogCLI("DISCORD_TOKEN is not set, only the local API will accept commands", 2)
	}

	// the terminator channel blocks until shutdown, anything requiring a clean shutdown should
	// wait on this channel and clean up when it stops blocking.
	terminator := make(chan struct{})

	// anything requiring a clean shutdown adds to this waitgroup and removes itself once it has
	// saved its state.
	wg := &sync.WaitGroup{}

	// interrupt: see cliListener
	interrupt := make(chan struct{})
	andycoin.RegisterShutdownChan(interrupt)

	services, err := conductor.Start(terminator, wg, conf)
	if err != nil {
		// a store we cannot read must never be overwritten with an empty ledger
		andycoin.LogCLI(err.Error(), 0)
		os.Exit(1)
	}

	server := api.New(services.Commands, services.Hub, services.Registry)
	if conf.GetBool("pprof") {
		server.EnableProfiling()
	}
	go func() {
		if err := server.ListenAndServe(conf.GetString("apiAddr")); err != nil {
			andycoin.LogCLI(err.Error(), 0)
		}
	}()

	go watchSignals()
	if !conf.GetBool("headless") {
		go cliListener(services)
	}

	andycoin.LogCLI("Waiting for terminate signal, press q to quit", 4)
	<-interrupt

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		andycoin.LogCLI(err.Error(), 2)
	}
	close(terminator)
	wg.Wait()
	os.Exit(0)
}

func watchSignals() {
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	s := <-signals
	andycoin.LogCLI("received "+s.String()+", shutting down", 4)
	andycoin.Shutdown()
}
