package main

import (
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"github.com/montanaflynn/stats"
	"github.com/spf13/cast"
	"github.com/spf13/cobra"

	"andycoin/andycoin"
	"andycoin/messaging/audit"
)

// loadEvents reads every daily audit file in dir, oldest first.
func loadEvents(dir string) ([]audit.Event, error) {
	files, err := filepath.Glob(filepath.Join(dir, audit.FilePrefix+".*.jsonl"))
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	var events []audit.Event
	for _, f := range files {
		e, err := audit.ReadFile(f)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", f, err)
		}
		events = append(events, e...)
	}
	sort.SliceStable(events, func(i, j int) bool { return events[i].Time.Before(events[j].Time) })
	return events, nil
}

func memberArg(args []string) (andycoin.MemberID, error) {
	m, err := cast.ToUint64E(args[0])
	if err != nil {
		return 0, fmt.Errorf("%q is not a user id", args[0])
	}
	return m, nil
}

func guild(c andycoin.CommunityID) string {
	if c == 0 {
		return "DM"
	}
	return fmt.Sprint(c)
}

func runUserCommands(cmd *cobra.Command, args []string) error {
	member, err := memberArg(args)
	if err != nil {
		return err
	}
	events, err := loadEvents(logDir)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Commands executed by user %d:\n", member)
	n := 0
	for _, e := range events {
		if e.Kind != audit.KindCommand || e.Member != member {
			continue
		}
		n++
		fmt.Fprintf(out, "%s  %-12s guild=%-20s %s [%s]\n", e.Time.Format(time.RFC3339), e.Reason, guild(e.Community), e.Outcome, e.Args)
	}
	fmt.Fprintf(out, "%d commands\n", n)
	return nil
}

// balanceEvents are the committed changes to balances, resets and transfers included.
func balanceEvents(events []audit.Event) []audit.Event {
	var out []audit.Event
	for _, e := range events {
		switch e.Kind {
		case audit.KindBalance, audit.KindTransfer, audit.KindReset:
			if e.New != nil && e.Previous != nil {
				out = append(out, e)
			}
		}
	}
	return out
}

func runUserBalances(cmd *cobra.Command, args []string) error {
	member, err := memberArg(args)
	if err != nil {
		return err
	}
	events, err := loadEvents(logDir)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Balance changes for user %d:\n", member)
	for _, e := range balanceEvents(events) {
		if e.Member != member {
			continue
		}
		fmt.Fprintf(out, "%s  guild=%-20s %d -> %d (%+d) %s by %s\n",
			e.Time.Format(time.RFC3339), guild(e.Community), *e.Previous, *e.New, e.Change, e.Reason, e.InitiatorString())
	}
	return nil
}

type summary struct {
	Changes  int
	Credited float64
	Debited  float64
	Mean     float64
	Median   float64
	P90      float64
	ByReason map[string]int
}

func summarize(events []audit.Event) (summary, error) {
	s := summary{ByReason: make(map[string]int)}
	var changes stats.Float64Data
	for _, e := range balanceEvents(events) {
		s.Changes++
		s.ByReason[e.Reason]++
		c := float64(e.Change)
		if c > 0 {
			s.Credited += c
		} else {
			s.Debited -= c
		}
		changes = append(changes, c)
	}
	if len(changes) == 0 {
		return s, nil
	}
	var err error
	if s.Mean, err = stats.Mean(changes); err != nil {
		return s, err
	}
	if s.Median, err = stats.Median(changes); err != nil {
		return s, err
	}
	if s.P90, err = stats.Percentile(changes, 90); err != nil {
		return s, err
	}
	return s, nil
}

func runBalanceSummary(cmd *cobra.Command, _ []string) error {
	events, err := loadEvents(logDir)
	if err != nil {
		return err
	}
	s, err := summarize(events)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Balance Change Summary:")
	fmt.Fprintf(out, "changes: %d\ncredited: %.0f\ndebited: %.0f\n", s.Changes, s.Credited, s.Debited)
	if s.Changes == 0 {
		return nil
	}
	fmt.Fprintf(out, "mean change: %.2f\nmedian change: %.2f\n90th percentile: %.2f\n", s.Mean, s.Median, s.P90)
	reasons := make([]string, 0, len(s.ByReason))
	for r := range s.ByReason {
		reasons = append(reasons, r)
	}
	sort.Strings(reasons)
	for _, r := range reasons {
		fmt.Fprintf(out, "  %-14s %d\n", r, s.ByReason[r])
	}
	return nil
}
