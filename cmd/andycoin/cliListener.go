package main

import (
	"fmt"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/eiannone/keyboard"

	"andycoin/andycoin"
	"andycoin/consensus/conductor"
	"andycoin/consensus/ledger"
	"andycoin/messaging/audit"
)

// cliListener listens for keypresses on the operator's terminal and runs the bound command.
func cliListener(s *conductor.Services) {
	fmt.Println("Press:\nq: to quit\ns: to save now\nl: to print the global leaderboard\na: to print recent audit events\nd: to dump every community\nr: to sweep expired votes\nc: to print the current config")
	for {
		r, k, err := keyboard.GetSingleKey()
		if err != nil {
			andycoin.LogCLI("keyboard unavailable, use SIGTERM to stop: "+err.Error(), 2)
			return
		}
		str := string(r)
		switch str {
		default:
			if k == keyboard.KeyEnter {
				fmt.Println("\n-----------------------------------")
				break
			}
			if k == keyboard.KeyCtrlC {
				andycoin.Shutdown()
				return
			}
			if r == 0 {
				break
			}
			fmt.Println("Key " + str + " is not bound to anything. See cliListener.go for more details.")
		case "q":
			andycoin.LogCLI("User requested to terminate", 4)
			andycoin.Shutdown()
			return // if we do not return here, we cannot ctrl+c in case of errors during shutdown
		case "s":
			if err := s.Reconciler.Cycle(); err == nil {
				andycoin.LogCLI("saved to "+s.Store.Path(), 4)
			}
		case "l":
			for i, standing := range s.Ledger.Leaderboard(ledger.Global, 25) {
				fmt.Printf("%2d. %d: %d AndyCoins\n", i+1, standing.Member, standing.Balance)
			}
		case "a":
			for _, e := range s.Recent.Events() {
				printEvent(e)
			}
		case "c":
			conf := andycoin.MakeOrGetConfig()
			fmt.Println("config file: " + conf.ConfigFileUsed())
			spew.Dump(conf.AllSettings())
		case "d":
			for _, c := range s.Ledger.Communities() {
				cfg, _ := s.Ledger.Config(c)
				fmt.Printf("\nGuild %d\n", c)
				spew.Dump(cfg)
				spew.Dump(s.Ledger.Leaderboard(ledger.InCommunity(c), 0))
			}
		case "r":
			for _, t := range s.Votes.SweepExpired(time.Now().UTC()) {
				fmt.Printf("closed vote in guild %d: %s\n", t.Community, t.Tally.Outcome)
			}
		}
	}
}

func printEvent(e audit.Event) {
	switch {
	case e.New != nil && e.Previous != nil:
		fmt.Printf("[%s] %s guild=%d user=%d %d -> %d (%s) by %s\n",
			e.Time.Format(time.RFC3339), e.Kind, e.Community, e.Member, *e.Previous, *e.New, e.Reason, e.InitiatorString())
	default:
		fmt.Printf("[%s] %s guild=%d user=%d %s %s %s\n",
			e.Time.Format(time.RFC3339), e.Kind, e.Community, e.Member, e.Reason, e.Args, e.Outcome)
	}
}
