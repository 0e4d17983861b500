package integration

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"testing"

	"telegram-wallet-bridge/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestConcurrentWebhookDeliveries fires the same charge.success event many
// times in parallel, the way a retrying gateway would. Exactly one delivery
// may credit the wallet.
func TestConcurrentWebhookDeliveries(t *testing.T) {
	app := newTestApp(t)
	app.accounts.put(&domain.Account{ID: "acc-1", Email: "ada@example.com", FullName: "Ada Lovelace", WalletBalance: 0})

	token := app.createToken(t, "acc-1", "ada@example.com")
	app.sendText(t, 42, "/connect")
	app.sendText(t, 42, token)

	concurrency := 50
	var wg sync.WaitGroup
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp := app.sendCharge(t, "charge.success", "ref-race", "42", "acc-1", 50000)
			assert.Equal(t, 200, resp.StatusCode)
			resp.Body.Close()
		}()
	}
	wg.Wait()

	acc, err := app.accounts.GetByID(context.Background(), "acc-1")
	require.NoError(t, err)
	assert.Equal(t, int64(500), acc.WalletBalance)

	entries := app.ledger.all()
	require.Len(t, entries, 1)
	assert.Equal(t, int64(0), entries[0].PreviousBalance)
	assert.Equal(t, int64(500), entries[0].NewBalance)
}

// TestConcurrentDistinctCharges reconciles unrelated charges for separate
// accounts in parallel and checks every wallet ends up exactly once-credited.
func TestConcurrentDistinctCharges(t *testing.T) {
	app := newTestApp(t)

	accounts := 20
	for i := 0; i < accounts; i++ {
		accID := fmt.Sprintf("acc-%d", i)
		chatID := int64(1000 + i)
		app.accounts.put(&domain.Account{ID: accID, Email: accID + "@example.com", FullName: "User " + strconv.Itoa(i), WalletBalance: 100})

		token := app.createToken(t, accID, accID+"@example.com")
		app.sendText(t, chatID, "/connect")
		app.sendText(t, chatID, token)
	}

	var wg sync.WaitGroup
	for i := 0; i < accounts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			resp := app.sendCharge(t, "charge.success",
				fmt.Sprintf("ref-distinct-%d", i),
				strconv.FormatInt(int64(1000+i), 10),
				fmt.Sprintf("acc-%d", i),
				20000)
			resp.Body.Close()
		}(i)
	}
	wg.Wait()

	for i := 0; i < accounts; i++ {
		acc, err := app.accounts.GetByID(context.Background(), fmt.Sprintf("acc-%d", i))
		require.NoError(t, err)
		assert.Equal(t, int64(300), acc.WalletBalance, "account %d", i)
	}
	assert.Len(t, app.ledger.all(), accounts)
}

// TestConcurrentTokenRedemption has two chats race to redeem one token over
// the live webhook; the token's conditional flip admits a single winner.
func TestConcurrentTokenRedemption(t *testing.T) {
	app := newTestApp(t)
	app.accounts.put(&domain.Account{ID: "acc-1", Email: "ada@example.com", FullName: "Ada Lovelace"})

	token := app.createToken(t, "acc-1", "ada@example.com")

	chats := []int64{42, 77, 88, 99}
	for _, chat := range chats {
		app.sendText(t, chat, "/connect")
	}

	var wg sync.WaitGroup
	for _, chat := range chats {
		wg.Add(1)
		go func(chat int64) {
			defer wg.Done()
			app.sendText(t, chat, token)
		}(chat)
	}
	wg.Wait()

	winners := 0
	app.notifier.mu.Lock()
	for _, m := range app.notifier.messages {
		if strings.Contains(m, "Connection Successful") {
			winners++
		}
	}
	app.notifier.mu.Unlock()
	assert.Equal(t, 1, winners)

	binding, err := app.bindings.GetByAccountID(context.Background(), "acc-1")
	require.NoError(t, err)
	require.NotNil(t, binding)
	assert.Equal(t, "acc-1", binding.AccountID)
}
