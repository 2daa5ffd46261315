package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"andycoin/andycoin"
	"andycoin/consensus/ledger"
	"andycoin/consensus/votes"
	"andycoin/messaging/audit"
	"andycoin/messaging/commands"
)

func setup(t *testing.T) (http.Handler, *ledger.Ledger) {
	t.Helper()
	registry := prometheus.NewRegistry()
	sink := audit.Multi{audit.NewMetrics(registry)}
	l := ledger.New(sink)
	d := commands.New(l, votes.New(l), sink, commands.Options{FlipBurst: 100})
	return New(d, audit.NewHub(), registry).Handler(), l
}

type call struct {
	method, path, body string
	headers            map[string]string
}

func do(h http.Handler, c call) *httptest.ResponseRecorder {
	req := httptest.NewRequest(c.method, c.path, strings.NewReader(c.body))
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

var ownerHeaders = map[string]string{"X-Member-Id": "1", "X-Owner": "true"}

func TestGiveAndBalance(t *testing.T) {
	h, l := setup(t)
	rec := do(h, call{http.MethodPost, "/communities/5/give", `{"user_id": 2, "amount": 40}`, ownerHeaders})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"user_id": 2, "balance": 40, "scope": "Server"}`, rec.Body.String())
	assert.Equal(t, uint64(40), l.Balance(5, 2))

	rec = do(h, call{http.MethodGet, "/communities/5/balances/2", "", map[string]string{"X-Member-Id": "2"}})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"user_id": 2, "balance": 40, "scope": "Server"}`, rec.Body.String())
}

func TestErrorStatuses(t *testing.T) {
	h, _ := setup(t)
	member := map[string]string{"X-Member-Id": "2"}

	rec := do(h, call{http.MethodPost, "/communities/5/give", `{"user_id": 2, "amount": 40}`, member})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), `"kind":"not_permitted"`)

	rec = do(h, call{http.MethodPost, "/communities/5/pay", `{"user_id": 3, "amount": 1}`, member})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = do(h, call{http.MethodPost, "/communities/5/give", `{"user_id": 2, "amount": 40}`, nil})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), `"kind":"bad_request"`)

	rec = do(h, call{http.MethodPost, "/communities/5/give", `{"user_id":`, ownerHeaders})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(h, call{http.MethodPost, "/communities/5/vote/end", "", ownerHeaders})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), `"kind":"no_active_vote"`)

	rec = do(h, call{http.MethodPost, "/communities/5/flip", `{"guess": "edge"}`, member})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDuplicateInvocation(t *testing.T) {
	h, l := setup(t)
	headers := map[string]string{"X-Member-Id": "1", "X-Owner": "1", "X-Invocation-Id": "abc"}
	rec := do(h, call{http.MethodPost, "/communities/5/give", `{"user_id": 2, "amount": 1}`, headers})
	require.Equal(t, http.StatusOK, rec.Code)
	rec = do(h, call{http.MethodPost, "/communities/5/give", `{"user_id": 2, "amount": 1}`, headers})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, uint64(1), l.Balance(5, 2))
}

func TestGiverRoleHeader(t *testing.T) {
	h, l := setup(t)
	rec := do(h, call{http.MethodPost, "/communities/5/config/role", `{"role_id": 77}`, ownerHeaders})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	giver := map[string]string{"X-Member-Id": "3", "X-Roles": "12, 77"}
	rec = do(h, call{http.MethodPost, "/communities/5/give", `{"user_id": 4, "amount": 5}`, giver})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, uint64(5), l.Balance(5, 4))

	rec = do(h, call{http.MethodPost, "/communities/5/give", `{"user_id": 4, "amount": 5}`, map[string]string{"X-Member-Id": "3", "X-Roles": "x"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestVoteEndpoints(t *testing.T) {
	h, l := setup(t)
	_, err := l.Adjust(5, 2, 10, "seed", nil)
	require.NoError(t, err)
	admin := map[string]string{"X-Member-Id": "9", "X-Admin": "true"}

	rec := do(h, call{http.MethodPost, "/communities/5/config/vote", `{"min_votes": 1, "majority_percentage": 100}`, admin})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"cooldown_hours": 24, "duration_minutes": 30, "min_votes": 1, "majority_percentage": 100}`, rec.Body.String())

	rec = do(h, call{http.MethodPost, "/communities/5/config/vote", `{"majority_percentage": 101}`, admin})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(h, call{http.MethodPost, "/communities/5/vote", `{"action": "start"}`, map[string]string{"X-Member-Id": "2"}})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = do(h, call{http.MethodPost, "/communities/5/vote", `{"action": "start"}`, map[string]string{"X-Member-Id": "2"}})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(h, call{http.MethodGet, "/communities/5/vote", "", map[string]string{"X-Member-Id": "3"}})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"active":true`)

	rec = do(h, call{http.MethodPost, "/communities/5/vote", `{"action": "yes"}`, map[string]string{"X-Member-Id": "3"}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"outcome":"passed"`)
	assert.Equal(t, uint64(0), l.Balance(5, 2))
}

func TestLeaderboardEndpoint(t *testing.T) {
	h, l := setup(t)
	_, _ = l.Adjust(5, 2, 10, "seed", nil)
	_, _ = l.Adjust(6, 2, 10, "seed", nil)
	_, _ = l.Adjust(5, 3, 15, "seed", nil)

	rec := do(h, call{http.MethodGet, "/leaderboard?community=5&limit=1", "", map[string]string{"X-Member-Id": "2"}})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"scope": "Server", "standings": [{"user_id": 3, "balance": 15}]}`, rec.Body.String())

	rec = do(h, call{http.MethodGet, "/leaderboard", "", map[string]string{"X-Member-Id": "2"}})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"scope": "Global", "standings": [{"user_id": 2, "balance": 20}, {"user_id": 3, "balance": 15}]}`, rec.Body.String())
}

func TestMetricsEndpoint(t *testing.T) {
	h, _ := setup(t)
	do(h, call{http.MethodPost, "/communities/5/give", `{"user_id": 2, "amount": 40}`, ownerHeaders})
	rec := do(h, call{http.MethodGet, "/metrics", "", nil})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "andycoin_coins_credited_total 40")
	assert.Contains(t, rec.Body.String(), `andycoin_audit_events_total{kind="command",outcome="success"} 1`)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusGone, statusFor(andycoin.ErrVoteExpired))
	assert.Equal(t, http.StatusTooManyRequests, statusFor(commands.ErrRateLimited))
	assert.Equal(t, http.StatusInternalServerError, statusFor(andycoin.ErrIO))
}
