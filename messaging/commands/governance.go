package commands

import (
	"fmt"

	"andycoin/andycoin"
	"andycoin/consensus/votes"
	"andycoin/messaging/audit"
)

// SetGiverRole sets, or with nil clears, the role allowed to give coins. Owner only.
func (d *Dispatcher) SetGiverRole(inv Invoker, role *andycoin.RoleID) (err error) {
	args := "role: none"
	if role != nil {
		args = audit.RoleArgs(*role)
	}
	defer func() { d.done("config_role", inv, args, err) }()
	if err = d.accept(inv); err != nil {
		return err
	}
	if !inv.InGuild() {
		return ErrGuildOnly
	}
	if !inv.Owner {
		return fmt.Errorf("%w: only the server owner can set the giver role", ErrNotPermitted)
	}
	initiator := inv.Member
	d.ledger.SetGiverRole(inv.Community, role, &initiator)
	return nil
}

// Vote starts a reset vote ("start") or casts a ballot ("yes"/"no", or anything
// votes.ParseChoice accepts).
func (d *Dispatcher) Vote(inv Invoker, action string) (r VoteReply, err error) {
	command := "vote_cast"
	args := "vote: " + action
	defer func() { d.done(command, inv, args, err) }()
	if err = d.accept(inv); err != nil {
		return r, err
	}
	if !inv.InGuild() {
		return r, ErrGuildOnly
	}
	if action == "start" {
		command = "vote_start"
		status, err := d.votes.Start(inv.Community, inv.Member)
		if err != nil {
			return r, err
		}
		r.Started = &status
		r.Config = d.ledger.VoteConfig(inv.Community)
		args = "end_time: " + status.EndTime.Format("15:04:05 UTC")
		return r, nil
	}
	choice, err := votes.ParseChoice(action)
	if err != nil {
		return r, err
	}
	args = "vote: " + choice.String()
	tally, err := d.votes.Cast(inv.Community, inv.Member, choice)
	r.Tally = &tally
	r.Config = d.ledger.VoteConfig(inv.Community)
	return r, err
}

// VoteStatus reports the current or most recent vote of the invoker's server.
func (d *Dispatcher) VoteStatus(inv Invoker) (r votes.Report, err error) {
	defer func() {
		d.done("vote_status", inv, fmt.Sprintf("yes: %d, no: %d, total: %d", r.Yes, r.No, r.Yes+r.No), err)
	}()
	if !inv.InGuild() {
		return r, ErrGuildOnly
	}
	return d.votes.Status(inv.Community), nil
}

// VoteConfig changes the vote settings. Admins and the owner only.
func (d *Dispatcher) VoteConfig(inv Invoker, u VoteConfigUpdate) (vc andycoin.VoteConfig, err error) {
	defer func() { d.done("vote_config", inv, audit.VoteConfigArgs(vc), err) }()
	if err = d.accept(inv); err != nil {
		return vc, err
	}
	if !inv.InGuild() {
		return vc, ErrGuildOnly
	}
	if !inv.Admin && !inv.Owner {
		return vc, fmt.Errorf("%w: you need to be a server administrator to configure vote settings", ErrNotPermitted)
	}
	vc = u.apply(d.ledger.VoteConfig(inv.Community))
	initiator := inv.Member
	if err = d.ledger.SetVoteConfig(inv.Community, vc, &initiator); err != nil {
		return vc, err
	}
	return vc, nil
}

// EndVote closes the active vote now. Admins and the owner only; a vote that would not pass
// ends as forced_end.
func (d *Dispatcher) EndVote(inv Invoker) (t votes.Tally, err error) {
	defer func() { d.done("vote_end", inv, fmt.Sprintf("outcome: %s", t.Outcome), err) }()
	if err = d.accept(inv); err != nil {
		return t, err
	}
	if !inv.InGuild() {
		return t, ErrGuildOnly
	}
	if !inv.Admin && !inv.Owner {
		return t, fmt.Errorf("%w: only administrators can end a vote", ErrNotPermitted)
	}
	return d.votes.End(inv.Community, true)
}
