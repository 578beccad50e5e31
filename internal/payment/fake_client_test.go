package payment

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/fairyhunter13/listing-payment-gate/internal/chain"
)

// fakeClient is a scripted chain.Client. Activity maps a reference to a
// transaction id, Transactions maps ids to decoded transactions.
type fakeClient struct {
	mu sync.Mutex

	network  chain.Network
	family   chain.Family
	token    string
	decimals uint8

	activity     map[string]string
	transactions map[string]*chain.DecodedTransaction

	activityErr error
	fetchErr    error
	composeErr  error

	composed  []chain.Transfer
	chainHits int
}

func newFakeClient(network chain.Network) *fakeClient {
	return &fakeClient{
		network:      network,
		family:       chain.FamilyOf(network),
		token:        "MINT",
		decimals:     6,
		activity:     make(map[string]string),
		transactions: make(map[string]*chain.DecodedTransaction),
	}
}

// pay records a transfer of amount to destination tagged with reference.
func (f *fakeClient) pay(reference, txID, destination string, amount uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.activity[reference] = txID
	f.transactions[txID] = &chain.DecodedTransaction{
		ID: txID,
		Instructions: []chain.Instruction{{
			Program:     "TOKEN",
			Source:      "payer-ata",
			Destination: destination,
			Mint:        f.token,
			Amount:      amount,
			Accounts:    []string{"payer-ata", f.token, destination, "payer", reference},
		}},
	}
}

func (f *fakeClient) Network() chain.Network { return f.network }
func (f *fakeClient) Family() chain.Family   { return f.family }
func (f *fakeClient) Token() string          { return f.token }
func (f *fakeClient) Decimals() uint8        { return f.decimals }

func (f *fakeClient) NewReference() (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return fmt.Sprintf("ref-%d", len(f.activity)+len(f.composed)), nil
}

func (f *fakeClient) CanonicalReference(reference string) (string, error) {
	if reference == "" || reference == "bad" {
		return "", fmt.Errorf("%w: %q", chain.ErrMalformedAddress, reference)
	}
	return strings.ToUpper(reference), nil
}

func (f *fakeClient) ValidateAddress(addr string) error {
	if addr == "" || addr == "bad" {
		return fmt.Errorf("%w: %q", chain.ErrMalformedAddress, addr)
	}
	return nil
}

func (f *fakeClient) DeriveHoldingAccount(owner, token string) (string, error) {
	if err := f.ValidateAddress(owner); err != nil {
		return "", err
	}
	return owner + "/" + token, nil
}

func (f *fakeClient) LatestActivity(ctx context.Context, reference string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.chainHits++
	if f.activityErr != nil {
		return "", false, f.activityErr
	}
	txID, ok := f.activity[reference]
	return txID, ok, nil
}

func (f *fakeClient) FetchTransaction(ctx context.Context, txID string) (*chain.DecodedTransaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.chainHits++
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	tx, ok := f.transactions[txID]
	if !ok {
		return nil, chain.ErrNotFound
	}
	return tx, nil
}

func (f *fakeClient) ComposeTransfer(ctx context.Context, t chain.Transfer) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.chainHits++
	if f.composeErr != nil {
		return nil, f.composeErr
	}
	f.composed = append(f.composed, t)
	return []byte(fmt.Sprintf("%s>%s:%d#%s", t.Payer, t.Recipient, t.Amount, t.Reference)), nil
}
