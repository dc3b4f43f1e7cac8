package cart_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-storefront/internal/cart"
	"github.com/noah-isme/toko-storefront/internal/pricing"
)

func sampleLines() []cart.Line {
	return []cart.Line{
		{ID: "1", UnitPrice: 179900, UnitDiscounted: 49400, Quantity: 1},
		{ID: "2", UnitPrice: 20000, UnitDiscounted: 15000, Quantity: 2},
	}
}

func loadedStore(t *testing.T) *cart.Store {
	t.Helper()
	s := cart.NewStore(pricing.DefaultDeliveryPolicy())
	require.True(t, s.Apply(s.BeginFetch(), sampleLines()))
	return s
}

func TestStoreViewComputesSummaryFromLines(t *testing.T) {
	s := loadedStore(t)
	v := s.View()
	require.True(t, v.Loaded)
	require.False(t, v.Pending)
	require.Equal(t, 3, v.Summary.TotalItems)
	require.Equal(t, pricing.Money(219900), v.Summary.TotalPrice)
	require.Equal(t, pricing.Money(79400), v.Summary.TotalDiscountedPrice)
	require.True(t, v.Summary.IsFreeDelivery)
}

func TestStoreDropsStaleFetch(t *testing.T) {
	s := cart.NewStore(pricing.DefaultDeliveryPolicy())
	older := s.BeginFetch()
	newer := s.BeginFetch()
	require.True(t, s.Apply(newer, sampleLines()[:1]))
	require.False(t, s.Apply(older, sampleLines()))
	require.Len(t, s.View().Lines, 1)
}

func TestStoreBeginShowsTentativeQuantity(t *testing.T) {
	s := loadedStore(t)
	m, err := s.Begin("2", 5, false)
	require.NoError(t, err)

	v := s.View()
	require.True(t, v.Pending)
	require.Equal(t, 5, v.Lines[1].Quantity)
	require.True(t, v.Lines[1].Pending)
	require.Equal(t, 6, v.Summary.TotalItems)

	s.Rollback(m)
	v = s.View()
	require.False(t, v.Pending)
	require.Equal(t, 2, v.Lines[1].Quantity)
	require.Equal(t, 3, v.Summary.TotalItems)
}

func TestStoreRemovalHidesLine(t *testing.T) {
	s := loadedStore(t)
	m, err := s.Begin("1", 0, true)
	require.NoError(t, err)
	v := s.View()
	require.Len(t, v.Lines, 1)
	require.Equal(t, pricing.Money(30000), v.Summary.TotalDiscountedPrice)
	require.False(t, v.Summary.IsFreeDelivery)
	require.Equal(t, pricing.Money(4900), v.Summary.DeliveryCharge)

	_, err = s.Begin("1", 2, false)
	require.ErrorIs(t, err, cart.ErrItemNotFound)

	s.Confirm(m)
	v = s.View()
	require.False(t, v.Pending)
	require.Len(t, v.Lines, 1)
	require.Equal(t, "2", v.Lines[0].ID)
}

func TestStoreBeginUnknownItem(t *testing.T) {
	s := loadedStore(t)
	_, err := s.Begin("missing", 1, false)
	require.ErrorIs(t, err, cart.ErrItemNotFound)
}

func TestStoreCommitAppliesAuthoritativeLines(t *testing.T) {
	s := loadedStore(t)
	m, err := s.Begin("2", 4, false)
	require.NoError(t, err)

	updated := sampleLines()
	updated[1].Quantity = 4
	s.Commit(m, s.BeginFetch(), updated)

	v := s.View()
	require.False(t, v.Pending)
	require.Equal(t, 4, v.Lines[1].Quantity)
}

func TestStoreRollbackRestoresEarlierPendingMutation(t *testing.T) {
	s := loadedStore(t)
	first, err := s.Begin("2", 3, false)
	require.NoError(t, err)
	second, err := s.Begin("2", 7, false)
	require.NoError(t, err)

	s.Rollback(second)
	require.Equal(t, 3, s.View().Lines[1].Quantity)

	s.Rollback(first)
	require.Equal(t, 2, s.View().Lines[1].Quantity)
}

func TestStoreRollbackSkipsSettledMutation(t *testing.T) {
	s := loadedStore(t)
	first, err := s.Begin("2", 3, false)
	require.NoError(t, err)
	second, err := s.Begin("2", 7, false)
	require.NoError(t, err)

	updated := sampleLines()
	updated[1].Quantity = 3
	s.Commit(first, s.BeginFetch(), updated)
	require.Equal(t, 7, s.View().Lines[1].Quantity)

	s.Rollback(second)
	v := s.View()
	require.False(t, v.Pending)
	require.Equal(t, 3, v.Lines[1].Quantity)
}

func TestStoreConfirmOlderMutationUpdatesAuthoritativeLine(t *testing.T) {
	s := cart.NewStore(pricing.DefaultDeliveryPolicy())
	require.True(t, s.Apply(s.BeginFetch(), []cart.Line{{ID: "1", UnitPrice: 1000, UnitDiscounted: 1000, Quantity: 1}}))
	first, err := s.Begin("1", 2, false)
	require.NoError(t, err)
	second, err := s.Begin("1", 3, false)
	require.NoError(t, err)

	s.Confirm(first)
	require.Equal(t, 3, s.View().Lines[0].Quantity)

	s.Rollback(second)
	v := s.View()
	require.False(t, v.Pending)
	require.Equal(t, 2, v.Lines[0].Quantity)
}

func TestStoreConfirmOlderRemovalDropsLine(t *testing.T) {
	s := loadedStore(t)
	first, err := s.Begin("2", 0, true)
	require.NoError(t, err)
	_, err = s.Begin("2", 5, false)
	require.ErrorIs(t, err, cart.ErrItemNotFound)

	s.Confirm(first)
	v := s.View()
	require.False(t, v.Pending)
	require.Len(t, v.Lines, 1)
	require.Equal(t, "1", v.Lines[0].ID)
}

func TestStoreConfirmedMutationSupersedesOlderOnes(t *testing.T) {
	s := loadedStore(t)
	oldest, err := s.Begin("2", 4, false)
	require.NoError(t, err)
	middle, err := s.Begin("2", 5, false)
	require.NoError(t, err)
	newest, err := s.Begin("2", 6, false)
	require.NoError(t, err)

	s.Confirm(middle)
	s.Rollback(newest)
	require.Equal(t, 5, s.View().Lines[1].Quantity)

	s.Confirm(oldest)
	v := s.View()
	require.False(t, v.Pending)
	require.Equal(t, 5, v.Lines[1].Quantity)
}

func TestStoreApplyPrunesOverridesForVanishedLines(t *testing.T) {
	s := loadedStore(t)
	_, err := s.Begin("1", 4, false)
	require.NoError(t, err)
	require.True(t, s.Apply(s.BeginFetch(), sampleLines()[1:]))
	v := s.View()
	require.False(t, v.Pending)
	require.Len(t, v.Lines, 1)
}

func TestStoreViewDoesNotAliasInternalState(t *testing.T) {
	s := loadedStore(t)
	v := s.View()
	v.Lines[0].Quantity = 99
	require.Equal(t, 1, s.View().Lines[0].Quantity)
}

func TestStoreConcurrentMutations(t *testing.T) {
	s := loadedStore(t)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			m, err := s.Begin("2", i%9+1, false)
			if err != nil {
				return
			}
			_ = s.View()
			if i%2 == 0 {
				s.Rollback(m)
				return
			}
			s.Commit(m, s.BeginFetch(), sampleLines())
		}(i)
	}
	wg.Wait()
	v := s.View()
	require.False(t, v.Pending)
	require.Equal(t, 2, v.Lines[1].Quantity)
}

func TestRegistrySeparatesSessionsAndSweeps(t *testing.T) {
	r := cart.NewRegistry(pricing.DefaultDeliveryPolicy())
	a := r.Get("a")
	require.Same(t, a, r.Get("a"))
	require.NotSame(t, a, r.Get("b"))
	require.Equal(t, 2, r.Len())

	require.Zero(t, r.Sweep(time.Hour))
	require.Equal(t, 2, r.Sweep(-time.Second))
	require.Zero(t, r.Len())
}
