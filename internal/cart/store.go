package cart

import (
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/noah-isme/toko-storefront/internal/pricing"
)

// ErrItemNotFound is returned when a mutation targets a line the cart does not hold.
var ErrItemNotFound = errors.New("cart item not found")

// Line is one cart line as the storefront shows it.
type Line struct {
	ID              string
	ProductID       string
	Title           string
	Brand           string
	Size            string
	ImageURL        string
	UnitPrice       pricing.Money
	UnitDiscounted  pricing.Money
	Quantity        int
	DiscountPercent int
	Pending         bool
}

func (l Line) item() pricing.LineItem {
	return pricing.LineItem{UnitPrice: l.UnitPrice, UnitDiscountedPrice: l.UnitDiscounted, Quantity: l.Quantity}
}

// View is the effective cart: authoritative lines with tentative mutations
// applied, plus a summary computed from exactly those lines.
type View struct {
	Lines   []Line
	Summary pricing.Summary
	Loaded  bool
	Pending bool
}

type override struct {
	token    string
	quantity int
	removed  bool
	settled  bool
	// stale is set once a later mutation of the same line reached the backend.
	stale bool
	prev  *override
}

// Mutation identifies a tentative change started with Begin.
type Mutation struct {
	ItemID string
	Token  string
	self   *override
}

// Store holds one session's cart state. The authoritative lines only change
// through Apply; tentative quantity changes and removals sit on top of them
// until they are committed, confirmed or rolled back.
type Store struct {
	mu         sync.Mutex
	policy     pricing.DeliveryPolicy
	base       []Line
	overrides  map[string]*override
	loaded     bool
	fetchSeq   uint64
	appliedSeq uint64
}

// NewStore returns an empty, not yet loaded store.
func NewStore(policy pricing.DeliveryPolicy) *Store {
	return &Store{policy: policy, overrides: map[string]*override{}}
}

// BeginFetch reserves a sequence number for a backend cart fetch about to start.
func (s *Store) BeginFetch() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fetchSeq++
	return s.fetchSeq
}

// Apply installs lines fetched under seq as the authoritative cart. Responses
// that arrive after a newer fetch was already applied are dropped and Apply
// reports false.
func (s *Store) Apply(seq uint64, lines []Line) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.applyLocked(seq, lines)
}

func (s *Store) applyLocked(seq uint64, lines []Line) bool {
	if s.loaded && seq <= s.appliedSeq {
		return false
	}
	s.base = append([]Line(nil), lines...)
	s.appliedSeq = seq
	s.loaded = true
	for id := range s.overrides {
		if indexOf(s.base, id) < 0 {
			delete(s.overrides, id)
		}
	}
	return true
}

// Begin records a tentative quantity (or removal when remove is true) for
// itemID and returns the handle used to settle it.
func (s *Store) Begin(itemID string, quantity int, remove bool) (Mutation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if indexOf(s.base, itemID) < 0 {
		return Mutation{}, ErrItemNotFound
	}
	prev := s.overrides[itemID]
	if prev != nil && prev.removed {
		return Mutation{}, ErrItemNotFound
	}
	ov := &override{token: uuid.NewString(), quantity: quantity, removed: remove, prev: prev}
	s.overrides[itemID] = ov
	return Mutation{ItemID: itemID, Token: ov.token, self: ov}, nil
}

// Commit settles m with the authoritative cart fetched under seq after the
// backend accepted the change.
func (s *Store) Commit(m Mutation, seq uint64, lines []Line) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.applyLocked(seq, lines)
	s.clearLocked(m)
}

// Confirm settles m when the backend accepted the change but the follow-up
// fetch failed: the tentative value is promoted into the authoritative lines,
// even when a newer mutation of the same line is still in flight.
func (s *Store) Confirm(m Mutation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settleLocked(m)
	if m.self == nil || m.self.stale {
		return
	}
	s.supersedeLocked(m.self)
	if i := indexOf(s.base, m.ItemID); i >= 0 {
		if m.self.removed {
			s.base = append(s.base[:i:i], s.base[i+1:]...)
		} else {
			s.base[i].Quantity = m.self.quantity
		}
	}
	if ov, ok := s.overrides[m.ItemID]; ok && ov.token == m.Token {
		delete(s.overrides, m.ItemID)
	}
}

// Rollback discards m and restores the line to the newest earlier mutation
// still in flight, or to the authoritative value. It only marks m settled
// when a newer mutation of the same line has started since.
func (s *Store) Rollback(m Mutation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settleLocked(m)
	ov, ok := s.overrides[m.ItemID]
	if !ok || ov.token != m.Token {
		return
	}
	restore := ov.prev
	for restore != nil && restore.settled {
		restore = restore.prev
	}
	if restore != nil {
		s.overrides[m.ItemID] = restore
		return
	}
	delete(s.overrides, m.ItemID)
}

func (s *Store) clearLocked(m Mutation) {
	s.settleLocked(m)
	if m.self != nil {
		s.supersedeLocked(m.self)
	}
	if ov, ok := s.overrides[m.ItemID]; ok && ov.token == m.Token {
		delete(s.overrides, m.ItemID)
	}
}

// supersedeLocked detaches the mutations older than ov: the backend has seen
// ov after them, so none of them may be restored or promoted any more.
func (s *Store) supersedeLocked(ov *override) {
	for p := ov.prev; p != nil; p = p.prev {
		p.stale = true
		p.settled = true
	}
	ov.prev = nil
}

// settleLocked marks m finished so that a later rollback of a newer mutation
// does not resurrect it.
func (s *Store) settleLocked(m Mutation) {
	if m.self != nil {
		m.self.settled = true
	}
}

// View returns the effective cart and its freshly computed summary.
func (s *Store) View() View {
	s.mu.Lock()
	lines := make([]Line, 0, len(s.base))
	pending := false
	for _, l := range s.base {
		if ov, ok := s.overrides[l.ID]; ok {
			pending = true
			if ov.removed {
				continue
			}
			l.Quantity = ov.quantity
			l.Pending = true
		}
		lines = append(lines, l)
	}
	loaded := s.loaded
	policy := s.policy
	s.mu.Unlock()

	items := make([]pricing.LineItem, len(lines))
	for i, l := range lines {
		items[i] = l.item()
	}
	return View{
		Lines:   lines,
		Summary: pricing.Compute(items, policy),
		Loaded:  loaded,
		Pending: pending,
	}
}

func indexOf(lines []Line, id string) int {
	for i, l := range lines {
		if l.ID == id {
			return i
		}
	}
	return -1
}
