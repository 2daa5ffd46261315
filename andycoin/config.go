package andycoin

import (
	"os"
	"time"

	"github.com/sasha-s/go-deadlock"
	"github.com/spf13/viper"
)

var conf *viper.Viper

func MakeOrGetConfig() *viper.Viper {
	return conf
}

func SetConfig(config *viper.Viper) {
	conf = config
}

var shutdown chan struct{}
var shutdownMutex = &deadlock.Mutex{}

func RegisterShutdownChan(c chan struct{}) {
	shutdownMutex.Lock()
	defer shutdownMutex.Unlock()
	shutdown = c
}

// Shutdown closes the registered shutdown channel. It returns false if nothing is registered
// to receive it.
func Shutdown() bool {
	shutdownMutex.Lock()
	defer shutdownMutex.Unlock()
	if shutdown == nil {
		return false
	}
	select {
	case <-shutdown:
		return true
	default:
		close(shutdown)
	}
	go func() {
		// closing the shutdown channel should let every database persist and stop; if something
		// hangs we kill the process rather than wait forever
		time.Sleep(time.Second * 120)
		println("Something didn't shutdown cleanly, the last saved ledger is on disk.")
		os.Exit(1)
	}()
	return true
}
