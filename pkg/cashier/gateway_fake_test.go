package cashier_test

import (
	"context"
	"sync"

	"github.com/bgultekin/gocashier/pkg/cashier"
)

// fakeGateway records calls and answers with configurable replies. The
// zero value reports success for every subscription operation.
type fakeGateway struct {
	mu    sync.Mutex
	calls []string

	createAccountReply *cashier.AccountReply
	createAccountErr   error
	updateAccountErr   error
	accountsReply      *cashier.AccountsReply
	accountsErr        error
	sessionReply       *cashier.Session
	sessionErr         error
	entries            []cashier.SubscriptionEntry
	entriesErr         error
	subscriptionResult string
	subscriptionsErr   error
	managementURI      string
}

func (g *fakeGateway) record(call string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, call)
}

func (g *fakeGateway) callCount(call string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := 0
	for _, c := range g.calls {
		if c == call {
			n++
		}
	}
	return n
}

func (g *fakeGateway) totalCalls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.calls)
}

func (g *fakeGateway) reply(subscriptionID string) *cashier.SubscriptionsReply {
	result := g.subscriptionResult
	if result == "" {
		result = "success"
	}
	return &cashier.SubscriptionsReply{
		Subscriptions: []cashier.SubscriptionResult{
			{Subscription: subscriptionID, Result: result},
		},
	}
}

func (g *fakeGateway) CreateAccount(_ context.Context, _ cashier.AccountParams) (*cashier.AccountReply, error) {
	g.record("CreateAccount")
	if g.createAccountErr != nil {
		return nil, g.createAccountErr
	}
	if g.createAccountReply != nil {
		return g.createAccountReply, nil
	}
	return &cashier.AccountReply{Account: "fsAccountID", Result: "success"}, nil
}

func (g *fakeGateway) UpdateAccount(_ context.Context, fastspringID string, _ cashier.AccountParams) (*cashier.AccountReply, error) {
	g.record("UpdateAccount")
	if g.updateAccountErr != nil {
		return nil, g.updateAccountErr
	}
	return &cashier.AccountReply{Account: fastspringID, Result: "success"}, nil
}

func (g *fakeGateway) GetAccounts(_ context.Context, _ map[string]string) (*cashier.AccountsReply, error) {
	g.record("GetAccounts")
	if g.accountsErr != nil {
		return nil, g.accountsErr
	}
	if g.accountsReply != nil {
		return g.accountsReply, nil
	}
	return &cashier.AccountsReply{}, nil
}

func (g *fakeGateway) CreateSession(_ context.Context, params cashier.SessionParams) (*cashier.Session, error) {
	g.record("CreateSession")
	if g.sessionErr != nil {
		return nil, g.sessionErr
	}
	if g.sessionReply != nil {
		return g.sessionReply, nil
	}
	return &cashier.Session{ID: "fsSessionID", Account: params.Account}, nil
}

func (g *fakeGateway) GetSubscriptionEntries(_ context.Context, _ []string) ([]cashier.SubscriptionEntry, error) {
	g.record("GetSubscriptionEntries")
	if g.entriesErr != nil {
		return nil, g.entriesErr
	}
	return g.entries, nil
}

func (g *fakeGateway) UpdateSubscriptions(_ context.Context, updates []cashier.SubscriptionUpdate) (*cashier.SubscriptionsReply, error) {
	g.record("UpdateSubscriptions")
	if g.subscriptionsErr != nil {
		return nil, g.subscriptionsErr
	}
	return g.reply(updates[0].Subscription), nil
}

func (g *fakeGateway) CancelSubscription(_ context.Context, subscriptionID string, immediately bool) (*cashier.SubscriptionsReply, error) {
	if immediately {
		g.record("CancelSubscription/immediate")
	} else {
		g.record("CancelSubscription")
	}
	if g.subscriptionsErr != nil {
		return nil, g.subscriptionsErr
	}
	return g.reply(subscriptionID), nil
}

func (g *fakeGateway) UncancelSubscription(_ context.Context, subscriptionID string) (*cashier.SubscriptionsReply, error) {
	g.record("UncancelSubscription")
	if g.subscriptionsErr != nil {
		return nil, g.subscriptionsErr
	}
	return g.reply(subscriptionID), nil
}

func (g *fakeGateway) SwapSubscription(_ context.Context, subscriptionID, _ string, _ bool, _ int, _ []string) (*cashier.SubscriptionsReply, error) {
	g.record("SwapSubscription")
	if g.subscriptionsErr != nil {
		return nil, g.subscriptionsErr
	}
	return g.reply(subscriptionID), nil
}

func (g *fakeGateway) AccountManagementURI(_ context.Context, _ string) (string, error) {
	g.record("AccountManagementURI")
	if g.managementURI != "" {
		return g.managementURI, nil
	}
	return "https://example.onfastspring.com/account", nil
}

var _ cashier.Gateway = (*fakeGateway)(nil)
