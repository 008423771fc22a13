package testhelpers

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"gambler/arena/domain/entities"
	"gambler/arena/domain/events"
	"gambler/arena/domain/interfaces"

	"github.com/shopspring/decimal"
)

// MemoryStore keeps matches, wallets and the ledger in memory.
// Reads return copies so callers see the same isolation a database gives them.
type MemoryStore struct {
	mu           sync.Mutex
	matches      map[string]*entities.Match
	participants map[string][]*entities.Participant
	results      map[string]*entities.Result
	wallets      map[string]*entities.Wallet
	ledger       []*entities.LedgerEntry
	nextEntryID  int64
}

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		matches:      make(map[string]*entities.Match),
		participants: make(map[string][]*entities.Participant),
		results:      make(map[string]*entities.Result),
		wallets:      make(map[string]*entities.Wallet),
	}
}

func (s *MemoryStore) Matches() interfaces.MatchRepository { return memMatches{s} }
func (s *MemoryStore) Participants() interfaces.ParticipantRepository { return memParticipants{s} }
func (s *MemoryStore) Results() interfaces.ResultRepository { return memResults{s} }
func (s *MemoryStore) Wallets() interfaces.WalletRepository { return memWallets{s} }
func (s *MemoryStore) LedgerEntries() interfaces.LedgerEntryRepository { return memLedger{s} }

// SeedWallet sets a user's balances directly
func (s *MemoryStore) SeedWallet(userID, available string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.wallets[userID] = &entities.Wallet{
		UserID:    userID,
		Available: decimal.RequireFromString(available),
		Locked:    decimal.Zero,
	}
}

// SeedLockedWallet sets a user's available and locked balances directly
func (s *MemoryStore) SeedLockedWallet(userID, available, locked string) {
	s.SeedWallet(userID, available)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.wallets[userID].Locked = decimal.RequireFromString(locked)
}

// SeedSnapshot stores a match with its participants and result
func (s *MemoryStore) SeedSnapshot(snap *entities.MatchSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.matches[snap.Match.ID] = cloneMatch(snap.Match)
	s.participants[snap.Match.ID] = nil
	for _, p := range snap.Participants {
		s.participants[snap.Match.ID] = append(s.participants[snap.Match.ID], cloneParticipant(p))
	}
	if snap.Result != nil {
		s.results[snap.Match.ID] = cloneResult(snap.Result)
	}
}

// Wallet returns a copy of a user's wallet, nil when missing
func (s *MemoryStore) Wallet(userID string) *entities.Wallet {
	s.mu.Lock()
	defer s.mu.Unlock()
	if w, ok := s.wallets[userID]; ok {
		c := *w
		return &c
	}
	return nil
}

// Ledger returns every recorded entry in order
func (s *MemoryStore) Ledger() []*entities.LedgerEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*entities.LedgerEntry, len(s.ledger))
	copy(out, s.ledger)
	return out
}

// Snapshot reads a match without holding any lock, nil when missing
func (s *MemoryStore) Snapshot(matchID string) *entities.MatchSnapshot {
	snap, _ := memMatches{s}.GetSnapshot(context.Background(), matchID)
	return snap
}

type memState struct {
	matches      map[string]*entities.Match
	participants map[string][]*entities.Participant
	results      map[string]*entities.Result
	wallets      map[string]*entities.Wallet
	ledger       []*entities.LedgerEntry
	nextEntryID  int64
}

func (s *MemoryStore) save() memState {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := memState{
		matches:      make(map[string]*entities.Match, len(s.matches)),
		participants: make(map[string][]*entities.Participant, len(s.participants)),
		results:      make(map[string]*entities.Result, len(s.results)),
		wallets:      make(map[string]*entities.Wallet, len(s.wallets)),
		ledger:       append([]*entities.LedgerEntry(nil), s.ledger...),
		nextEntryID:  s.nextEntryID,
	}
	for k, v := range s.matches {
		st.matches[k] = cloneMatch(v)
	}
	for k, ps := range s.participants {
		for _, p := range ps {
			st.participants[k] = append(st.participants[k], cloneParticipant(p))
		}
	}
	for k, v := range s.results {
		st.results[k] = cloneResult(v)
	}
	for k, v := range s.wallets {
		w := *v
		st.wallets[k] = &w
	}
	return st
}

func (s *MemoryStore) restore(st memState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.matches = st.matches
	s.participants = st.participants
	s.results = st.results
	s.wallets = st.wallets
	s.ledger = st.ledger
	s.nextEntryID = st.nextEntryID
}

type memMatches struct{ s *MemoryStore }

func (r memMatches) Create(ctx context.Context, match *entities.Match) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.matches[match.ID]; ok {
		return fmt.Errorf("match %s already exists", match.ID)
	}
	r.s.matches[match.ID] = cloneMatch(match)
	return nil
}

func (r memMatches) GetByID(ctx context.Context, id string) (*entities.Match, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if m, ok := r.s.matches[id]; ok {
		return cloneMatch(m), nil
	}
	return nil, nil
}

func (r memMatches) GetByIDForUpdate(ctx context.Context, id string) (*entities.Match, error) {
	return r.GetByID(ctx, id)
}

func (r memMatches) GetSnapshot(ctx context.Context, id string) (*entities.MatchSnapshot, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	m, ok := r.s.matches[id]
	if !ok {
		return nil, nil
	}
	snap := &entities.MatchSnapshot{Match: cloneMatch(m)}
	for _, p := range r.s.participants[id] {
		snap.Participants = append(snap.Participants, cloneParticipant(p))
	}
	sort.SliceStable(snap.Participants, func(i, j int) bool {
		return snap.Participants[i].JoinedAt.Before(snap.Participants[j].JoinedAt)
	})
	if res, ok := r.s.results[id]; ok {
		snap.Result = cloneResult(res)
	}
	return snap, nil
}

func (r memMatches) Update(ctx context.Context, match *entities.Match) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.matches[match.ID]; !ok {
		return fmt.Errorf("match %s: %w", match.ID, entities.ErrMatchNotFound)
	}
	r.s.matches[match.ID] = cloneMatch(match)
	return nil
}

func (r memMatches) GetExpiredOpen(ctx context.Context, now time.Time) ([]*entities.Match, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*entities.Match
	for _, m := range r.s.matches {
		if m.Status == entities.MatchStatusOpen && m.ExpiresAt.Before(now) {
			out = append(out, cloneMatch(m))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExpiresAt.Before(out[j].ExpiresAt) })
	return out, nil
}

func (r memMatches) GetActiveMatchIDForUser(ctx context.Context, userID string) (*string, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for id, ps := range r.s.participants {
		m := r.s.matches[id]
		if m == nil || m.Status.IsTerminal() {
			continue
		}
		for _, p := range ps {
			if p.UserID == userID {
				matchID := id
				return &matchID, nil
			}
		}
	}
	return nil, nil
}

func (r memMatches) ListByStatus(ctx context.Context, statuses []entities.MatchStatus, limit int) ([]*entities.Match, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	want := make(map[entities.MatchStatus]bool, len(statuses))
	for _, st := range statuses {
		want[st] = true
	}
	var out []*entities.Match
	for _, m := range r.s.matches {
		if want[m.Status] {
			out = append(out, cloneMatch(m))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type memParticipants struct{ s *MemoryStore }

func (r memParticipants) Add(ctx context.Context, p *entities.Participant) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.participants[p.MatchID] {
		if existing.UserID == p.UserID {
			return fmt.Errorf("participant %s already in match %s", p.UserID, p.MatchID)
		}
	}
	r.s.participants[p.MatchID] = append(r.s.participants[p.MatchID], cloneParticipant(p))
	return nil
}

func (r memParticipants) Remove(ctx context.Context, matchID, userID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	ps := r.s.participants[matchID]
	for i, p := range ps {
		if p.UserID == userID {
			r.s.participants[matchID] = append(ps[:i:i], ps[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("participant %s not found in match %s", userID, matchID)
}

func (r memParticipants) Update(ctx context.Context, p *entities.Participant) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for i, existing := range r.s.participants[p.MatchID] {
		if existing.UserID == p.UserID {
			r.s.participants[p.MatchID][i] = cloneParticipant(p)
			return nil
		}
	}
	return fmt.Errorf("participant %s not found in match %s", p.UserID, p.MatchID)
}

func (r memParticipants) GetByMatch(ctx context.Context, matchID string) ([]*entities.Participant, error) {
	snap, _ := memMatches(r).GetSnapshot(ctx, matchID)
	if snap == nil {
		return nil, nil
	}
	return snap.Participants, nil
}

type memResults struct{ s *MemoryStore }

func (r memResults) Upsert(ctx context.Context, result *entities.Result) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.results[result.MatchID] = cloneResult(result)
	return nil
}

func (r memResults) GetByMatch(ctx context.Context, matchID string) (*entities.Result, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if res, ok := r.s.results[matchID]; ok {
		return cloneResult(res), nil
	}
	return nil, nil
}

type memWallets struct{ s *MemoryStore }

func (r memWallets) GetOrCreate(ctx context.Context, userID string, startingBalance decimal.Decimal) (*entities.Wallet, bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if w, ok := r.s.wallets[userID]; ok {
		c := *w
		return &c, false, nil
	}
	w := &entities.Wallet{UserID: userID, Available: startingBalance, Locked: decimal.Zero, UpdatedAt: FixtureNow}
	r.s.wallets[userID] = w
	c := *w
	return &c, true, nil
}

func (r memWallets) GetForUpdate(ctx context.Context, userID string) (*entities.Wallet, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if w, ok := r.s.wallets[userID]; ok {
		c := *w
		return &c, nil
	}
	return nil, nil
}

func (r memWallets) Update(ctx context.Context, wallet *entities.Wallet) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.wallets[wallet.UserID]; !ok {
		return fmt.Errorf("wallet for %s: %w", wallet.UserID, entities.ErrWalletNotFound)
	}
	if wallet.Available.IsNegative() || wallet.Locked.IsNegative() {
		return fmt.Errorf("wallet for %s would go negative", wallet.UserID)
	}
	c := *wallet
	r.s.wallets[wallet.UserID] = &c
	return nil
}

type memLedger struct{ s *MemoryStore }

func (r memLedger) Record(ctx context.Context, entry *entities.LedgerEntry) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.nextEntryID++
	entry.ID = r.s.nextEntryID
	entry.CreatedAt = FixtureNow
	c := *entry
	r.s.ledger = append(r.s.ledger, &c)
	return nil
}

func (r memLedger) GetByMatch(ctx context.Context, matchID string) ([]*entities.LedgerEntry, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*entities.LedgerEntry
	for _, e := range r.s.ledger {
		if e.MatchID != nil && *e.MatchID == matchID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r memLedger) GetByUser(ctx context.Context, userID string, limit int) ([]*entities.LedgerEntry, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*entities.LedgerEntry
	for i := len(r.s.ledger) - 1; i >= 0; i-- {
		if r.s.ledger[i].UserID == userID {
			out = append(out, r.s.ledger[i])
			if limit > 0 && len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func cloneMatch(m *entities.Match) *entities.Match {
	c := *m
	return &c
}

func cloneParticipant(p *entities.Participant) *entities.Participant {
	c := *p
	if p.TeamID != nil {
		id := *p.TeamID
		c.TeamID = &id
	}
	if p.ResultChoice != nil {
		choice := *p.ResultChoice
		c.ResultChoice = &choice
	}
	return &c
}

func cloneResult(r *entities.Result) *entities.Result {
	c := *r
	return &c
}

// EventRecorder is a transactional publisher that keeps every event it sees
type EventRecorder struct {
	mu        sync.Mutex
	pending   []events.Event
	Published []events.Event
	Flushed   []events.Event
	Sink      func(events.Event)
}

func (r *EventRecorder) Publish(event events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pending = append(r.pending, event)
	r.Published = append(r.Published, event)
	return nil
}

func (r *EventRecorder) Flush(ctx context.Context) error {
	r.mu.Lock()
	pending := r.pending
	r.pending = nil
	r.Flushed = append(r.Flushed, pending...)
	sink := r.Sink
	r.mu.Unlock()
	if sink != nil {
		for _, e := range pending {
			sink(e)
		}
	}
	return nil
}

func (r *EventRecorder) Discard() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pending = nil
}

// ChangeEvents returns the published change events of one table
func (r *EventRecorder) ChangeEvents(table events.Table) []events.ChangeEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []events.ChangeEvent
	for _, e := range r.Published {
		if c, ok := e.(events.ChangeEvent); ok && c.Table == table {
			out = append(out, c)
		}
	}
	return out
}

// MemoryUnitOfWork runs a unit of work against a MemoryStore. Rollback restores the state saved at Begin.
type MemoryUnitOfWork struct {
	Store      *MemoryStore
	Publisher  *EventRecorder
	saved      *memState
	Committed  bool
	RolledBack bool
}

func (u *MemoryUnitOfWork) Begin(ctx context.Context) error {
	if u.saved != nil {
		return fmt.Errorf("transaction already started")
	}
	st := u.Store.save()
	u.saved = &st
	return nil
}

func (u *MemoryUnitOfWork) Commit() error {
	if u.saved == nil {
		return fmt.Errorf("no transaction to commit")
	}
	u.saved = nil
	u.Committed = true
	return u.Publisher.Flush(context.Background())
}

func (u *MemoryUnitOfWork) Rollback() error {
	u.Publisher.Discard()
	if u.saved == nil {
		return nil
	}
	u.Store.restore(*u.saved)
	u.saved = nil
	u.RolledBack = true
	return nil
}

func (u *MemoryUnitOfWork) MatchRepository() interfaces.MatchRepository { return u.Store.Matches() }
func (u *MemoryUnitOfWork) ParticipantRepository() interfaces.ParticipantRepository {
	return u.Store.Participants()
}
func (u *MemoryUnitOfWork) ResultRepository() interfaces.ResultRepository { return u.Store.Results() }
func (u *MemoryUnitOfWork) WalletRepository() interfaces.WalletRepository { return u.Store.Wallets() }
func (u *MemoryUnitOfWork) LedgerEntryRepository() interfaces.LedgerEntryRepository {
	return u.Store.LedgerEntries()
}
func (u *MemoryUnitOfWork) EventBus() interfaces.EventPublisher { return u.Publisher }

// MemoryUnitOfWorkFactory hands out units of work over one store and one recorder
type MemoryUnitOfWorkFactory struct {
	Store     *MemoryStore
	Publisher *EventRecorder
	Created   []*MemoryUnitOfWork
}

// NewMemoryUnitOfWorkFactory creates a factory over a fresh store
func NewMemoryUnitOfWorkFactory() *MemoryUnitOfWorkFactory {
	return &MemoryUnitOfWorkFactory{Store: NewMemoryStore(), Publisher: &EventRecorder{}}
}

func (f *MemoryUnitOfWorkFactory) Create() interfaces.UnitOfWork {
	u := &MemoryUnitOfWork{Store: f.Store, Publisher: f.Publisher}
	f.Created = append(f.Created, u)
	return u
}
