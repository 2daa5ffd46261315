package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/spf13/cast"

	"andycoin/andycoin"
	"andycoin/messaging/commands"
)

type errorBody struct {
	Error  string      `json:"error"`
	Kind   string      `json:"kind"`
	Result interface{} `json:"result,omitempty"`
}

type amountBody struct {
	Member andycoin.MemberID `json:"user_id"`
	Amount uint64            `json:"amount"`
}

type flipBody struct {
	Guess string `json:"guess"`
	Bet   bool   `json:"bet"`
}

type voteBody struct {
	Action string `json:"action"`
}

type roleBody struct {
	Role *andycoin.RoleID `json:"role_id"`
}

var errBadRequest = errors.New("bad request")

// invoker reads who is calling from the headers the chat gateway sets.
func invoker(r *http.Request) (commands.Invoker, error) {
	inv := commands.Invoker{
		Community:    cast.ToUint64(mux.Vars(r)["community"]),
		Owner:        cast.ToBool(r.Header.Get("X-Owner")),
		Admin:        cast.ToBool(r.Header.Get("X-Admin")),
		InvocationID: r.Header.Get("X-Invocation-Id"),
	}
	if c := r.URL.Query().Get("community"); c != "" && inv.Community == 0 {
		inv.Community = cast.ToUint64(c)
	}
	m, err := cast.ToUint64E(r.Header.Get("X-Member-Id"))
	if err != nil || m == 0 {
		return inv, errors.New("X-Member-Id header must be a member id")
	}
	inv.Member = m
	for _, s := range strings.Split(r.Header.Get("X-Roles"), ",") {
		if s = strings.TrimSpace(s); s == "" {
			continue
		}
		role, err := cast.ToUint64E(s)
		if err != nil {
			return inv, errors.New("X-Roles must be a comma separated list of role ids")
		}
		inv.Roles = append(inv.Roles, role)
	}
	return inv, nil
}

func decode(r *http.Request, v interface{}) error {
	if r.ContentLength == 0 {
		return nil
	}
	return json.NewDecoder(r.Body).Decode(v)
}

func respond(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		andycoin.LogCLI(err.Error(), 3)
	}
}

func fail(w http.ResponseWriter, err error, result interface{}) {
	kind := commands.Outcome(err)
	if errors.Is(err, errBadRequest) {
		kind = "bad_request"
	}
	respond(w, statusFor(err), errorBody{Error: err.Error(), Kind: kind, Result: result})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, commands.ErrNotPermitted):
		return http.StatusForbidden
	case errors.Is(err, commands.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, commands.ErrDuplicate),
		errors.Is(err, andycoin.ErrVoteAlreadyActive),
		errors.Is(err, andycoin.ErrVoteOnCooldown),
		errors.Is(err, andycoin.ErrNoActiveVote):
		return http.StatusConflict
	case errors.Is(err, andycoin.ErrVoteExpired):
		return http.StatusGone
	case errors.Is(err, andycoin.ErrInsufficientFunds),
		errors.Is(err, andycoin.ErrUnderflow),
		errors.Is(err, andycoin.ErrOverflow):
		return http.StatusUnprocessableEntity
	case errors.Is(err, commands.ErrGuildOnly),
		errors.Is(err, commands.ErrInvalidGuess),
		errors.Is(err, andycoin.ErrInvalidAmount),
		errors.Is(err, andycoin.ErrInvalidConfig):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// request parses the invoker and, when body is not nil, the JSON body.
func request(w http.ResponseWriter, r *http.Request, body interface{}) (commands.Invoker, bool) {
	inv, err := invoker(r)
	if err != nil {
		fail(w, errors.Join(errBadRequest, err), nil)
		return inv, false
	}
	if body != nil {
		if err := decode(r, body); err != nil {
			fail(w, errors.Join(errBadRequest, err), nil)
			return inv, false
		}
	}
	return inv, true
}

func (s *Server) balance(w http.ResponseWriter, r *http.Request) {
	inv, ok := request(w, r, nil)
	if !ok {
		return
	}
	target := cast.ToUint64(mux.Vars(r)["member"])
	respond(w, http.StatusOK, s.commands.Balance(inv, &target, cast.ToBool(r.URL.Query().Get("global"))))
}

func (s *Server) leaderboard(w http.ResponseWriter, r *http.Request) {
	inv, ok := request(w, r, nil)
	if !ok {
		return
	}
	q := r.URL.Query()
	respond(w, http.StatusOK, s.commands.Leaderboard(inv, cast.ToInt(q.Get("limit")), cast.ToBool(q.Get("global"))))
}

func (s *Server) give(w http.ResponseWriter, r *http.Request) {
	var body amountBody
	inv, ok := request(w, r, &body)
	if !ok {
		return
	}
	if body.Amount > uint64(^uint32(0)) {
		fail(w, andycoin.Errorf(andycoin.ErrInvalidAmount, "give at most %d at once", ^uint32(0)), nil)
		return
	}
	n, err := s.commands.Give(inv, body.Member, uint32(body.Amount))
	if err != nil {
		fail(w, err, nil)
		return
	}
	respond(w, http.StatusOK, commands.BalanceResult{Member: body.Member, Balance: n, Scope: "Server"})
}

func (s *Server) pay(w http.ResponseWriter, r *http.Request) {
	var body amountBody
	inv, ok := request(w, r, &body)
	if !ok {
		return
	}
	if err := s.commands.Pay(inv, body.Member, body.Amount); err != nil {
		fail(w, err, nil)
		return
	}
	respond(w, http.StatusOK, s.commands.Balance(inv, nil, false))
}

func (s *Server) flip(w http.ResponseWriter, r *http.Request) {
	var body flipBody
	inv, ok := request(w, r, &body)
	if !ok {
		return
	}
	result, err := s.commands.Flip(inv, body.Guess, body.Bet)
	if err != nil {
		fail(w, err, nil)
		return
	}
	respond(w, http.StatusOK, result)
}

func (s *Server) vote(w http.ResponseWriter, r *http.Request) {
	var body voteBody
	inv, ok := request(w, r, &body)
	if !ok {
		return
	}
	reply, err := s.commands.Vote(inv, body.Action)
	if err != nil {
		// a ballot on an expired vote still reports how it ended
		var final interface{}
		if reply.Tally != nil && reply.Tally.Concluded() {
			final = reply.Tally
		}
		fail(w, err, final)
		return
	}
	status := http.StatusOK
	if reply.Started != nil {
		status = http.StatusCreated
	}
	respond(w, status, reply)
}

func (s *Server) voteStatus(w http.ResponseWriter, r *http.Request) {
	inv, ok := request(w, r, nil)
	if !ok {
		return
	}
	report, err := s.commands.VoteStatus(inv)
	if err != nil {
		fail(w, err, nil)
		return
	}
	respond(w, http.StatusOK, report)
}

func (s *Server) endVote(w http.ResponseWriter, r *http.Request) {
	inv, ok := request(w, r, nil)
	if !ok {
		return
	}
	tally, err := s.commands.EndVote(inv)
	if err != nil {
		fail(w, err, nil)
		return
	}
	respond(w, http.StatusOK, tally)
}

func (s *Server) setRole(w http.ResponseWriter, r *http.Request) {
	var body roleBody
	inv, ok := request(w, r, &body)
	if !ok {
		return
	}
	if err := s.commands.SetGiverRole(inv, body.Role); err != nil {
		fail(w, err, nil)
		return
	}
	respond(w, http.StatusOK, body)
}

func (s *Server) voteConfig(w http.ResponseWriter, r *http.Request) {
	var body commands.VoteConfigUpdate
	inv, ok := request(w, r, &body)
	if !ok {
		return
	}
	vc, err := s.commands.VoteConfig(inv, body)
	if err != nil {
		fail(w, err, nil)
		return
	}
	respond(w, http.StatusOK, vc)
}
