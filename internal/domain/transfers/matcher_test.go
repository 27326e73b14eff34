package transfers

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maxwell-labs/maxwells-wallet/internal/domain/transactions"
)

func mkTxn(account string, date string, cents int64) transactions.Transaction {
	d, _ := time.Parse(time.DateOnly, date)
	return transactions.Transaction{
		ID:          uuid.New(),
		Account:     account,
		Date:        d,
		AmountCents: cents,
		Description: "TRANSFER",
	}
}

func TestFindPairsSameDay(t *testing.T) {
	out := mkTxn("checking", "2024-03-15", -50000)
	in := mkTxn("savings", "2024-03-15", 50000)

	pairs := FindPairs([]transactions.Transaction{out, in}, DefaultWindowDays)
	require.Len(t, pairs, 1)
	assert.Equal(t, out.ID, pairs[0].Out.ID)
	assert.Equal(t, in.ID, pairs[0].In.ID)
	assert.Equal(t, 0, pairs[0].DateDeltaDays)
	assert.Contains(t, pairs[0].Reason, "same day")
}

func TestFindPairsReasonFormatsAmount(t *testing.T) {
	out := mkTxn("checking", "2024-03-15", -50000)
	in := mkTxn("savings", "2024-03-16", 50000)

	pairs := FindPairs([]transactions.Transaction{out, in}, DefaultWindowDays)
	require.Len(t, pairs, 1)
	assert.Equal(t, "offsetting $500.00, 1 day apart", pairs[0].Reason)

	in = mkTxn("savings", "2024-03-17", 50000)
	pairs = FindPairs([]transactions.Transaction{out, in}, DefaultWindowDays)
	require.Len(t, pairs, 1)
	assert.Equal(t, "offsetting $500.00, 2 days apart", pairs[0].Reason)
}

func TestFindPairsInputOrderIrrelevant(t *testing.T) {
	out := mkTxn("checking", "2024-03-15", -50000)
	in := mkTxn("savings", "2024-03-16", 50000)

	forward := FindPairs([]transactions.Transaction{out, in}, DefaultWindowDays)
	reverse := FindPairs([]transactions.Transaction{in, out}, DefaultWindowDays)

	require.Len(t, forward, 1)
	require.Len(t, reverse, 1)
	assert.Equal(t, forward[0].Out.ID, reverse[0].Out.ID)
	assert.Equal(t, forward[0].In.ID, reverse[0].In.ID)
}

func TestFindPairsWindow(t *testing.T) {
	out := mkTxn("checking", "2024-03-15", -10000)
	inside := mkTxn("savings", "2024-03-17", 10000)

	pairs := FindPairs([]transactions.Transaction{out, inside}, 2)
	assert.Len(t, pairs, 1, "2 days apart is within the window")

	tooFar := mkTxn("savings", "2024-03-19", 10000)
	pairs = FindPairs([]transactions.Transaction{out, tooFar}, 2)
	assert.Empty(t, pairs, "4 days apart is outside the window")
}

func TestFindPairsRequiresDifferentAccounts(t *testing.T) {
	out := mkTxn("checking", "2024-03-15", -10000)
	in := mkTxn("checking", "2024-03-15", 10000)

	assert.Empty(t, FindPairs([]transactions.Transaction{out, in}, 2))
}

func TestFindPairsRequiresExactNegation(t *testing.T) {
	out := mkTxn("checking", "2024-03-15", -10000)
	in := mkTxn("savings", "2024-03-15", 10001)

	assert.Empty(t, FindPairs([]transactions.Transaction{out, in}, 2))
}

func TestFindPairsClosestDateWins(t *testing.T) {
	out := mkTxn("checking", "2024-03-15", -25000)
	near := mkTxn("savings", "2024-03-15", 25000)
	far := mkTxn("brokerage", "2024-03-17", 25000)

	pairs := FindPairs([]transactions.Transaction{out, far, near}, 2)
	require.Len(t, pairs, 1)
	assert.Equal(t, near.ID, pairs[0].In.ID)
}

func TestFindPairsEachTransactionUsedOnce(t *testing.T) {
	outA := mkTxn("checking", "2024-03-15", -10000)
	outB := mkTxn("cc", "2024-03-15", -10000)
	in := mkTxn("savings", "2024-03-15", 10000)

	pairs := FindPairs([]transactions.Transaction{outA, outB, in}, 2)
	assert.Len(t, pairs, 1, "one inflow can offset only one outflow")
}

func TestFindPairsSkipsMarkedTransfers(t *testing.T) {
	out := mkTxn("checking", "2024-03-15", -10000)
	out.IsTransfer = true
	in := mkTxn("savings", "2024-03-15", 10000)

	assert.Empty(t, FindPairs([]transactions.Transaction{out, in}, 2))
}

func TestFindPairsMultiplePairs(t *testing.T) {
	txns := []transactions.Transaction{
		mkTxn("checking", "2024-03-15", -50000),
		mkTxn("savings", "2024-03-15", 50000),
		mkTxn("checking", "2024-03-20", -20000),
		mkTxn("brokerage", "2024-03-21", 20000),
		mkTxn("checking", "2024-03-25", -999), // no counterpart
	}

	pairs := FindPairs(txns, 2)
	require.Len(t, pairs, 2)
	assert.Equal(t, int64(-50000), pairs[0].Out.AmountCents, "same-day pair ranks first")
	assert.Equal(t, 1, pairs[1].DateDeltaDays)
}
