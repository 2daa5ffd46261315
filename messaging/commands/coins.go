package commands

import (
	"fmt"
	"strings"

	"andycoin/andycoin"
	"andycoin/consensus/ledger"
)

const (
	defaultLeaderboardLimit = 10
	maxLeaderboardLimit     = 25
)

// Give credits target with amount. Only the owner and holders of the giver role may give.
func (d *Dispatcher) Give(inv Invoker, target andycoin.MemberID, amount uint32) (balance uint64, err error) {
	args := fmt.Sprintf("amount: %d, user: %d", amount, target)
	defer func() { d.done("give", inv, args, err) }()
	if err = d.accept(inv); err != nil {
		return 0, err
	}
	if !inv.InGuild() {
		return 0, ErrGuildOnly
	}
	if !d.canGive(inv) {
		return 0, fmt.Errorf("%w: only the server owner or the giver role can give AndyCoins", ErrNotPermitted)
	}
	if amount == 0 {
		return 0, andycoin.Errorf(andycoin.ErrInvalidAmount, "give at least 1 AndyCoin")
	}
	initiator := inv.Member
	return d.ledger.Adjust(inv.Community, target, int64(amount), "give_command", &initiator)
}

// Pay moves amount of the invoker's own coins to target.
func (d *Dispatcher) Pay(inv Invoker, target andycoin.MemberID, amount uint64) (err error) {
	args := fmt.Sprintf("amount: %d, user: %d", amount, target)
	defer func() { d.done("pay", inv, args, err) }()
	if err = d.accept(inv); err != nil {
		return err
	}
	if !inv.InGuild() {
		return ErrGuildOnly
	}
	if amount == 0 {
		return andycoin.Errorf(andycoin.ErrInvalidAmount, "pay at least 1 AndyCoin")
	}
	initiator := inv.Member
	return d.ledger.Transfer(inv.Community, inv.Member, target, amount, &initiator)
}

// Balance reports target's coins (the invoker's when target is nil). Outside a server, or with
// global set, it is the total across every server.
func (d *Dispatcher) Balance(inv Invoker, target *andycoin.MemberID, global bool) BalanceResult {
	member := inv.Member
	who := "self"
	if target != nil {
		member = *target
		who = fmt.Sprint(member)
	}
	r := BalanceResult{Member: member}
	if global || !inv.InGuild() {
		r.Scope = ledger.Global.String()
		r.Balance = d.ledger.TotalBalance(member)
	} else {
		r.Scope = ledger.InCommunity(inv.Community).String()
		r.Balance = d.ledger.Balance(inv.Community, member)
	}
	d.done("balance", inv, fmt.Sprintf("user: %s, global: %t", who, global), nil)
	return r
}

// Leaderboard lists the top holders. limit defaults to 10 and is capped at 25.
func (d *Dispatcher) Leaderboard(inv Invoker, limit int, global bool) LeaderboardResult {
	if limit <= 0 {
		limit = defaultLeaderboardLimit
	}
	if limit > maxLeaderboardLimit {
		limit = maxLeaderboardLimit
	}
	scope := ledger.InCommunity(inv.Community)
	if global || !inv.InGuild() {
		scope = ledger.Global
	}
	r := LeaderboardResult{
		Scope:     scope.String(),
		Standings: d.ledger.Leaderboard(scope, limit),
	}
	d.done("leaderboard", inv, fmt.Sprintf("limit: %d, global: %t", limit, global), nil)
	return r
}

// ParseGuess accepts heads/head/h and tails/tail/t in any case.
func ParseGuess(s string) (heads bool, err error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "heads", "head", "h":
		return true, nil
	case "tails", "tail", "t":
		return false, nil
	}
	return false, fmt.Errorf("%w: %q", ErrInvalidGuess, s)
}

// Flip tosses a coin. With a guess it reports whether the guess was right; with a bet as well
// it wins or loses exactly one coin, and the invoker needs at least one to play.
func (d *Dispatcher) Flip(inv Invoker, guess string, bet bool) (r FlipResult, err error) {
	command := "flip"
	args := ""
	defer func() { d.done(command, inv, args, err) }()
	if err = d.accept(inv); err != nil {
		return r, err
	}
	if !d.allowFlip(inv.Member) {
		return r, ErrRateLimited
	}
	if guess == "" && !bet {
		r.Result = side(d.coin())
		args = "result: " + r.Result
		return r, nil
	}
	command = "flip_guess"
	guessHeads, err := ParseGuess(guess)
	if err != nil {
		return r, err
	}
	r.Guess = side(guessHeads)
	if !bet {
		heads := d.coin()
		r.Result = side(heads)
		r.Correct = heads == guessHeads
		args = flipArgs(r)
		return r, nil
	}

	command = "flip_bet"
	if !inv.InGuild() {
		return r, ErrGuildOnly
	}
	r.Bet = true
	err = d.ledger.Update(inv.Community, func(tx *ledger.Tx) error {
		if tx.Balance(inv.Member) < 1 {
			return andycoin.Errorf(andycoin.ErrInsufficientFunds, "you need at least 1 AndyCoin to play the betting game")
		}
		heads := d.coin()
		r.Result = side(heads)
		r.Correct = heads == guessHeads
		delta, reason := int64(1), "flip_win"
		if !r.Correct {
			delta, reason = -1, "flip_loss"
		}
		initiator := inv.Member
		var err error
		r.Balance, err = tx.Adjust(inv.Member, delta, reason, &initiator)
		return err
	})
	args = flipArgs(r)
	return r, err
}

func flipArgs(r FlipResult) string {
	outcome := "wrong"
	if r.Correct {
		outcome = "correct"
	}
	if r.Bet {
		outcome = "lose"
		if r.Correct {
			outcome = "win"
		}
	}
	return fmt.Sprintf("guess: %s, result: %s, outcome: %s", r.Guess, r.Result, outcome)
}
