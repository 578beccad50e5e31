package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/fairyhunter13/listing-payment-gate/internal/chain"
	"github.com/fairyhunter13/listing-payment-gate/internal/model"
	"github.com/fairyhunter13/listing-payment-gate/internal/payment"
	"github.com/fairyhunter13/listing-payment-gate/pkg/database"
)

// mockTx is a pgx.Tx whose in-memory effects are undone on rollback.
type mockTx struct {
	mu        sync.Mutex
	undo      []func()
	committed bool
	commitFn  func(ctx context.Context) error
}

func (m *mockTx) onRollback(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.undo = append(m.undo, fn)
}

func (m *mockTx) Begin(ctx context.Context) (pgx.Tx, error) {
	return nil, errors.New("nested transactions not supported")
}

func (m *mockTx) Commit(ctx context.Context) error {
	if m.commitFn != nil {
		if err := m.commitFn(ctx); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.committed = true
	return nil
}

func (m *mockTx) Rollback(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.committed {
		return pgx.ErrTxClosed
	}
	for i := len(m.undo) - 1; i >= 0; i-- {
		m.undo[i]()
	}
	m.undo = nil
	m.committed = true
	return nil
}

func (m *mockTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	return 0, nil
}

func (m *mockTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults {
	return nil
}

func (m *mockTx) LargeObjects() pgx.LargeObjects {
	return pgx.LargeObjects{}
}

func (m *mockTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	return nil, nil
}

func (m *mockTx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, nil
}

func (m *mockTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, nil
}

func (m *mockTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return nil
}

func (m *mockTx) Conn() *pgx.Conn {
	return nil
}

// mockTxBeginner is a mock implementation of TxBeginner.
type mockTxBeginner struct {
	beginFn func(ctx context.Context) (pgx.Tx, error)
}

func (m *mockTxBeginner) Begin(ctx context.Context) (pgx.Tx, error) {
	if m.beginFn != nil {
		return m.beginFn(ctx)
	}
	return &mockTx{}, nil
}

func onRollback(tx database.TxQuerier, fn func()) {
	if t, ok := tx.(*mockTx); ok {
		t.onRollback(fn)
	}
}

// memPromos is an in-memory PromoRepositoryInterface with an atomic decrement.
type memPromos struct {
	mu       sync.Mutex
	byCode   map[string]*model.Promo
	insertFn func(ctx context.Context, promo *model.Promo) error
}

func newMemPromos(promos ...model.Promo) *memPromos {
	m := &memPromos{byCode: map[string]*model.Promo{}}
	for i := range promos {
		p := promos[i]
		m.byCode[p.Code] = &p
	}
	return m
}

func (m *memPromos) remaining(code string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.byCode[code]; ok {
		return p.RemainingUses
	}
	return -1
}

func (m *memPromos) Insert(ctx context.Context, promo *model.Promo) error {
	if m.insertFn != nil {
		if err := m.insertFn(ctx, promo); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byCode[promo.Code]; ok {
		return ErrPromoExists
	}
	promo.RemainingUses = promo.MaxUses
	promo.CreatedAt = time.Now()
	promo.UpdatedAt = promo.CreatedAt
	p := *promo
	m.byCode[promo.Code] = &p
	return nil
}

func (m *memPromos) Upsert(ctx context.Context, promo *model.Promo) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.byCode[promo.Code]; ok {
		existing.MaxUses = promo.MaxUses
		existing.RemainingUses = promo.MaxUses
		*promo = *existing
		return nil
	}
	promo.RemainingUses = promo.MaxUses
	p := *promo
	m.byCode[promo.Code] = &p
	return nil
}

func (m *memPromos) GetByCode(ctx context.Context, code string) (*model.Promo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.byCode[code]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (m *memPromos) ListActive(ctx context.Context) ([]model.Promo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.Promo{}
	for _, p := range m.byCode {
		if p.RemainingUses > 0 {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (m *memPromos) find(id uuid.UUID) *model.Promo {
	for _, p := range m.byCode {
		if p.ID == id {
			return p
		}
	}
	return nil
}

func (m *memPromos) Delete(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.find(id)
	if p == nil {
		return ErrPromoNotFound
	}
	delete(m.byCode, p.Code)
	return nil
}

func (m *memPromos) Reset(ctx context.Context, id uuid.UUID, remaining int) (*model.Promo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.find(id)
	if p == nil {
		return nil, ErrPromoNotFound
	}
	p.RemainingUses = remaining
	if remaining > p.MaxUses {
		p.MaxUses = remaining
	}
	cp := *p
	return &cp, nil
}

func (m *memPromos) ConsumeUse(ctx context.Context, tx database.TxQuerier, code string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.byCode[code]
	if !ok {
		return 0, ErrPromoInvalid
	}
	if p.RemainingUses <= 0 {
		return 0, ErrPromoExhausted
	}
	p.RemainingUses--
	onRollback(tx, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		p.RemainingUses++
	})
	return p.RemainingUses, nil
}

// memAdmissions is an in-memory AdmissionRepositoryInterface keyed by reference.
type memAdmissions struct {
	mu    sync.Mutex
	rows  map[string]model.Admission
	getFn func(ctx context.Context, reference string) (*model.Admission, error)
}

func newMemAdmissions() *memAdmissions {
	return &memAdmissions{rows: map[string]model.Admission{}}
}

func (m *memAdmissions) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}

func (m *memAdmissions) Get(ctx context.Context, reference string) (*model.Admission, error) {
	if m.getFn != nil {
		return m.getFn(ctx, reference)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.rows[reference]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

func (m *memAdmissions) Insert(ctx context.Context, tx database.TxQuerier, a *model.Admission) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[a.Reference]; ok {
		return ErrAlreadyAdmitted
	}
	if a.Status == model.AdmissionAdmitted && a.TxID != "" {
		for _, row := range m.rows {
			if row.Status == model.AdmissionAdmitted && row.Network == a.Network && row.TxID == a.TxID {
				return ErrTransactionUsed
			}
		}
	}
	m.rows[a.Reference] = *a
	ref := a.Reference
	onRollback(tx, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.rows, ref)
	})
	return nil
}

func (m *memAdmissions) MarkRejected(ctx context.Context, a *model.Admission) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[a.Reference]; ok {
		return nil
	}
	row := *a
	row.Method = model.MethodPayment
	row.Status = model.AdmissionRejected
	m.rows[a.Reference] = row
	return nil
}

// fakePayments scripts PaymentChecker results per call.
type fakePayments struct {
	mu       sync.Mutex
	network  chain.Network
	family   chain.Family
	outcomes []payment.Outcome
	errs     []error
	calls    int
	verifyFn func(ctx context.Context, network chain.Network, reference string, purpose payment.Purpose) (payment.Outcome, error)
}

// hexCanonical spells references the way an EVM client keys them.
func hexCanonical(reference string) (string, error) {
	ref := strings.ToLower(reference)
	if !strings.HasPrefix(ref, "0x") || len(ref) != 66 {
		return "", chain.ErrMalformedAddress
	}
	return ref, nil
}

func confirmingPayments(txID string) *fakePayments {
	return &fakePayments{outcomes: []payment.Outcome{{Status: payment.StatusConfirmed, Confirmed: true, TxID: txID}}}
}

func (f *fakePayments) DefaultNetwork() chain.Network {
	if f.network == "" {
		return chain.NetworkSolana
	}
	return f.network
}

func (f *fakePayments) Family(network chain.Network) (chain.Family, error) {
	if f.family != "" {
		return f.family, nil
	}
	return chain.FamilyOf(network), nil
}

func (f *fakePayments) CanonicalReference(network chain.Network, reference string) (string, error) {
	if chain.FamilyOf(network) == chain.FamilyEVM {
		return hexCanonical(reference)
	}
	if reference == "bad" {
		return "", chain.ErrMalformedAddress
	}
	return reference, nil
}

func (f *fakePayments) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// VerifyPurpose returns the scripted result for the current call; the last
// entry repeats once the script runs out.
func (f *fakePayments) VerifyPurpose(ctx context.Context, network chain.Network, reference string, purpose payment.Purpose) (payment.Outcome, error) {
	if f.verifyFn != nil {
		f.mu.Lock()
		f.calls++
		f.mu.Unlock()
		return f.verifyFn(ctx, network, reference, purpose)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.calls
	f.calls++
	if len(f.errs) > 0 {
		if i >= len(f.errs) {
			i = len(f.errs) - 1
		}
		if f.errs[i] != nil {
			return payment.Outcome{}, f.errs[i]
		}
	}
	if len(f.outcomes) == 0 {
		return payment.Outcome{Status: payment.StatusPending}, nil
	}
	if i >= len(f.outcomes) {
		i = len(f.outcomes) - 1
	}
	return f.outcomes[i], nil
}

// memListings is an in-memory ListingRepositoryInterface.
type memListings struct {
	mu       sync.Mutex
	byID     map[uuid.UUID]model.Listing
	insertFn func(ctx context.Context, tx database.TxQuerier, l *model.Listing) error
}

func newMemListings() *memListings {
	return &memListings{byID: map[uuid.UUID]model.Listing{}}
}

func (m *memListings) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byID)
}

func (m *memListings) Insert(ctx context.Context, tx database.TxQuerier, l *model.Listing) error {
	if m.insertFn != nil {
		if err := m.insertFn(ctx, tx, l); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	l.CreatedAt = time.Now()
	m.byID[l.ID] = *l
	id := l.ID
	onRollback(tx, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.byID, id)
	})
	return nil
}

func (m *memListings) GetByID(ctx context.Context, id uuid.UUID) (*model.Listing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.byID[id]
	if !ok {
		return nil, nil
	}
	return &l, nil
}

func (m *memListings) List(ctx context.Context, limit, offset int) ([]model.Listing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.Listing{}
	for _, l := range m.byID {
		out = append(out, l)
	}
	return out, nil
}

// memSubscriptions is an in-memory SubscriptionRepositoryInterface.
type memSubscriptions struct {
	mu   sync.Mutex
	byID map[uuid.UUID]model.Subscription
}

func newMemSubscriptions() *memSubscriptions {
	return &memSubscriptions{byID: map[uuid.UUID]model.Subscription{}}
}

func (m *memSubscriptions) Insert(ctx context.Context, tx database.TxQuerier, s *model.Subscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s.CreatedAt = time.Now()
	m.byID[s.ID] = *s
	return nil
}

func (m *memSubscriptions) GetByID(ctx context.Context, id uuid.UUID) (*model.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.byID[id]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (m *memSubscriptions) ActiveBySubscriber(ctx context.Context, subscriber string, now time.Time) (*model.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var best *model.Subscription
	for _, s := range m.byID {
		s := s
		if s.Subscriber != subscriber || s.StartsAt.After(now) || !s.ExpiresAt.After(now) {
			continue
		}
		if best == nil || s.ExpiresAt.After(best.ExpiresAt) {
			best = &s
		}
	}
	return best, nil
}

func (m *memSubscriptions) LatestExpiry(ctx context.Context, tx database.TxQuerier, subscriber string) (time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var latest time.Time
	for _, s := range m.byID {
		if s.Subscriber == subscriber && s.ExpiresAt.After(latest) {
			latest = s.ExpiresAt
		}
	}
	return latest, nil
}

func fastPoller() *Poller {
	return NewPoller(time.Millisecond, 5)
}

func newTestGate(promos *memPromos, admissions *memAdmissions, payments PaymentChecker) *Gate {
	return NewGate(&mockTxBeginner{}, admissions, promos, payments, fastPoller(), nil)
}
