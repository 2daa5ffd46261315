package commands

import (
	"crypto/rand"
	"fmt"
	"time"

	"github.com/sasha-s/go-deadlock"
	boom "github.com/tylertreat/BoomFilters"
	"golang.org/x/time/rate"

	"andycoin/andycoin"
	"andycoin/consensus/ledger"
	"andycoin/consensus/votes"
	"andycoin/messaging/audit"
)

// Dispatcher runs commands against the ledger and the vote engine.
type Dispatcher struct {
	ledger *ledger.Ledger
	votes  *votes.Engine
	sink   audit.Sink

	seen      *boom.InverseBloomFilter
	seenMutex *deadlock.Mutex

	limiters     map[andycoin.MemberID]*rate.Limiter
	limiterMutex *deadlock.Mutex
	limiterSweep int
	flipRate     rate.Limit
	flipBurst    int
	now          func() time.Time
	coin         func() bool
}

func New(l *ledger.Ledger, e *votes.Engine, sink audit.Sink, opts Options) *Dispatcher {
	if sink == nil {
		sink = audit.Discard{}
	}
	if opts.FlipRate <= 0 {
		opts.FlipRate = 1
	}
	if opts.FlipBurst <= 0 {
		opts.FlipBurst = 3
	}
	if opts.DedupeCapacity == 0 {
		opts.DedupeCapacity = 100000
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Dispatcher{
		ledger:       l,
		votes:        e,
		sink:         sink,
		seen:         boom.NewInverseBloomFilter(opts.DedupeCapacity),
		seenMutex:    &deadlock.Mutex{},
		limiters:     make(map[andycoin.MemberID]*rate.Limiter),
		limiterMutex: &deadlock.Mutex{},
		limiterSweep: limiterSweepSize,
		flipRate:     rate.Limit(opts.FlipRate),
		flipBurst:    opts.FlipBurst,
		now:          opts.Now,
		coin:         flipCoin,
	}
}

// accept drops an invocation the platform has already delivered once. The inverse filter can
// forget an ID but never reports one it has not seen.
func (d *Dispatcher) accept(inv Invoker) error {
	if inv.InvocationID == "" {
		return nil
	}
	d.seenMutex.Lock()
	defer d.seenMutex.Unlock()
	if d.seen.TestAndAdd([]byte(inv.InvocationID)) {
		return fmt.Errorf("%w: %s", ErrDuplicate, inv.InvocationID)
	}
	return nil
}

// limiterSweepSize is how many member limiters are held before idle ones are pruned.
const limiterSweepSize = 4096

func (d *Dispatcher) allowFlip(m andycoin.MemberID) bool {
	now := d.now()
	d.limiterMutex.Lock()
	l, ok := d.limiters[m]
	if !ok {
		if len(d.limiters) >= d.limiterSweep {
			d.pruneLimiters(now)
		}
		l = rate.NewLimiter(d.flipRate, d.flipBurst)
		d.limiters[m] = l
	}
	d.limiterMutex.Unlock()
	return l.AllowN(now, 1)
}

// pruneLimiters drops every limiter whose bucket has refilled. A full bucket behaves exactly
// like a new limiter, so nobody gains a flip from it. Caller holds limiterMutex.
func (d *Dispatcher) pruneLimiters(now time.Time) {
	for m, l := range d.limiters {
		if l.TokensAt(now) >= float64(d.flipBurst) {
			delete(d.limiters, m)
		}
	}
}

// done logs the command and records it in the audit stream.
func (d *Dispatcher) done(command string, inv Invoker, args string, err error) {
	andycoin.LogCommand(command, inv.Community, inv.Member, args, err == nil)
	e := audit.NewEvent(audit.KindCommand, inv.Community)
	e.Member = inv.Member
	e.Reason = command
	e.Args = args
	e.Outcome = Outcome(err)
	d.sink.Record(e)
}

// canGive is true for the owner and for holders of the configured giver role.
func (d *Dispatcher) canGive(inv Invoker) bool {
	if inv.Owner {
		return true
	}
	role := d.ledger.GiverRole(inv.Community)
	return role != nil && andycoin.Contains(inv.Roles, *role)
}

func flipCoin() bool {
	var b [1]byte
	if _, err := rand.Read(b[:]); err != nil {
		andycoin.LogCLI(err.Error(), 1)
		return false
	}
	return b[0]&1 == 1
}

func side(heads bool) string {
	if heads {
		return "heads"
	}
	return "tails"
}
