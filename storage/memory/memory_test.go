package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/giantswarm/storefront/storage"
)

var testEpoch = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func TestCounterStore_Increment_NewWindow(t *testing.T) {
	s := NewCounterStore(CounterStoreConfig{})
	defer s.Stop()

	ctx := context.Background()
	c, err := s.Increment(ctx, "1.2.3.4", testEpoch, 15*time.Minute)
	if err != nil {
		t.Fatalf("Increment() error = %v", err)
	}
	if c.Count != 1 {
		t.Errorf("Count = %d, want 1", c.Count)
	}
	if want := testEpoch.Add(15 * time.Minute); !c.ResetAt.Equal(want) {
		t.Errorf("ResetAt = %v, want %v", c.ResetAt, want)
	}
}

func TestCounterStore_Increment_SameWindow(t *testing.T) {
	s := NewCounterStore(CounterStoreConfig{})
	defer s.Stop()

	ctx := context.Background()
	var c storage.WindowCounter
	for i := 0; i < 5; i++ {
		var err error
		c, err = s.Increment(ctx, "k", testEpoch.Add(time.Duration(i)*time.Second), time.Minute)
		if err != nil {
			t.Fatalf("Increment() error = %v", err)
		}
	}
	if c.Count != 5 {
		t.Errorf("Count = %d, want 5", c.Count)
	}
	if want := testEpoch.Add(time.Minute); !c.ResetAt.Equal(want) {
		t.Errorf("ResetAt = %v, want %v (window must not slide)", c.ResetAt, want)
	}
}

func TestCounterStore_Increment_ResetBoundary(t *testing.T) {
	tests := []struct {
		name      string
		offset    time.Duration
		wantCount int64
	}{
		{name: "exactly at reset keeps window", offset: time.Minute, wantCount: 2},
		{name: "after reset starts new window", offset: time.Minute + time.Nanosecond, wantCount: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewCounterStore(CounterStoreConfig{})
			defer s.Stop()

			ctx := context.Background()
			if _, err := s.Increment(ctx, "k", testEpoch, time.Minute); err != nil {
				t.Fatalf("Increment() error = %v", err)
			}
			c, err := s.Increment(ctx, "k", testEpoch.Add(tt.offset), time.Minute)
			if err != nil {
				t.Fatalf("Increment() error = %v", err)
			}
			if c.Count != tt.wantCount {
				t.Errorf("Count = %d, want %d", c.Count, tt.wantCount)
			}
		})
	}
}

func TestCounterStore_Isolation(t *testing.T) {
	s := NewCounterStore(CounterStoreConfig{})
	defer s.Stop()

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, _ = s.Increment(ctx, "a", testEpoch, time.Minute)
	}
	c, err := s.Increment(ctx, "b", testEpoch, time.Minute)
	if err != nil {
		t.Fatalf("Increment() error = %v", err)
	}
	if c.Count != 1 {
		t.Errorf("Count for b = %d, want 1", c.Count)
	}
}

func TestCounterStore_LRUEviction(t *testing.T) {
	s := NewCounterStore(CounterStoreConfig{MaxEntries: 2})
	defer s.Stop()

	ctx := context.Background()
	_, _ = s.Increment(ctx, "a", testEpoch, time.Hour)
	_, _ = s.Increment(ctx, "a", testEpoch, time.Hour)
	_, _ = s.Increment(ctx, "b", testEpoch, time.Hour)
	// touch a so b becomes least recently used
	_, _ = s.Increment(ctx, "a", testEpoch, time.Hour)
	_, _ = s.Increment(ctx, "c", testEpoch, time.Hour)

	if got := s.Len(); got != 2 {
		t.Fatalf("Len() = %d, want 2", got)
	}

	stats := s.GetStats()
	if stats.TotalEvictions != 1 {
		t.Errorf("TotalEvictions = %d, want 1", stats.TotalEvictions)
	}
	if stats.MemoryPressure != 100.0 {
		t.Errorf("MemoryPressure = %v, want 100", stats.MemoryPressure)
	}

	c, _ := s.Increment(ctx, "a", testEpoch, time.Hour)
	if c.Count != 4 {
		t.Errorf("Count for a = %d, want 4 (a must survive eviction)", c.Count)
	}
	c, _ = s.Increment(ctx, "b", testEpoch, time.Hour)
	if c.Count != 1 {
		t.Errorf("Count for evicted b = %d, want 1", c.Count)
	}
}

func TestCounterStore_Sweep(t *testing.T) {
	s := NewCounterStore(CounterStoreConfig{})
	defer s.Stop()

	ctx := context.Background()
	_, _ = s.Increment(ctx, "old", testEpoch, time.Minute)
	_, _ = s.Increment(ctx, "fresh", testEpoch.Add(50*time.Second), time.Minute)

	removed := s.Sweep(testEpoch.Add(90 * time.Second))
	if removed != 1 {
		t.Errorf("Sweep() removed = %d, want 1", removed)
	}
	if got := s.Len(); got != 1 {
		t.Errorf("Len() = %d, want 1", got)
	}
	if s.GetStats().TotalSweeps != 1 {
		t.Errorf("TotalSweeps = %d, want 1", s.GetStats().TotalSweeps)
	}
}

func TestCounterStore_Reset(t *testing.T) {
	s := NewCounterStore(CounterStoreConfig{})
	defer s.Stop()

	ctx := context.Background()
	_, _ = s.Increment(ctx, "k", testEpoch, time.Minute)
	_, _ = s.Increment(ctx, "k", testEpoch, time.Minute)

	if err := s.Reset(ctx, "k"); err != nil {
		t.Fatalf("Reset() error = %v", err)
	}
	if err := s.Reset(ctx, "unknown"); err != nil {
		t.Errorf("Reset(unknown) error = %v, want nil", err)
	}

	c, _ := s.Increment(ctx, "k", testEpoch, time.Minute)
	if c.Count != 1 {
		t.Errorf("Count after Reset = %d, want 1", c.Count)
	}
}

func TestCounterStore_ConcurrentIncrement(t *testing.T) {
	s := NewCounterStore(CounterStoreConfig{})
	defer s.Stop()

	ctx := context.Background()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = s.Increment(ctx, "shared", testEpoch, time.Hour)
		}()
	}
	wg.Wait()

	c, _ := s.Increment(ctx, "shared", testEpoch, time.Hour)
	if c.Count != 51 {
		t.Errorf("Count = %d, want 51", c.Count)
	}
}

func TestCounterStore_StopIdempotent(t *testing.T) {
	s := NewCounterStore(CounterStoreConfig{})
	s.Stop()
	s.Stop()
}

func TestStore_Sessions(t *testing.T) {
	s := New()
	defer s.Stop()

	ctx := context.Background()
	now := time.Now()

	if err := s.SaveSession(ctx, &storage.Session{Token: "tok", CreatedAt: now, ExpiresAt: now.Add(time.Hour)}); err != nil {
		t.Fatalf("SaveSession() error = %v", err)
	}

	got, err := s.GetSession(ctx, "tok")
	if err != nil {
		t.Fatalf("GetSession() error = %v", err)
	}
	if got.Token != "tok" {
		t.Errorf("Token = %q, want %q", got.Token, "tok")
	}

	if err := s.DeleteSession(ctx, "tok"); err != nil {
		t.Fatalf("DeleteSession() error = %v", err)
	}
	if _, err := s.GetSession(ctx, "tok"); !errors.Is(err, storage.ErrSessionNotFound) {
		t.Errorf("GetSession() after delete error = %v, want ErrSessionNotFound", err)
	}
}

func TestStore_Sessions_Expired(t *testing.T) {
	s := New()
	defer s.Stop()

	ctx := context.Background()
	past := time.Now().Add(-2 * time.Hour)
	_ = s.SaveSession(ctx, &storage.Session{Token: "old", CreatedAt: past, ExpiresAt: past.Add(time.Hour)})

	if _, err := s.GetSession(ctx, "old"); !errors.Is(err, storage.ErrSessionNotFound) {
		t.Errorf("GetSession() error = %v, want ErrSessionNotFound", err)
	}
	if removed := s.CleanupExpiredSessions(time.Now()); removed != 1 {
		t.Errorf("CleanupExpiredSessions() = %d, want 1", removed)
	}
}

func TestStore_SaveSession_Invalid(t *testing.T) {
	s := New()
	defer s.Stop()

	if err := s.SaveSession(context.Background(), &storage.Session{}); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("SaveSession() error = %v, want ErrInvalidInput", err)
	}
}

func testProduct(id string, created time.Time) *storage.Product {
	return &storage.Product{
		ID:         id,
		Collection: storage.CollectionWomen,
		Name:       "Rose " + id,
		Brand:      "Maison",
		ImageURLs:  []string{"https://img.example.com/" + id + ".jpg"},
		Variants:   []storage.Variant{{Size: "50ml", Price: 120, Stock: 3}},
		CreatedAt:  created,
		UpdatedAt:  created,
	}
}

func TestStore_Products(t *testing.T) {
	s := New()
	defer s.Stop()

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if err := s.CreateProduct(ctx, testProduct(fmt.Sprintf("p%d", i), testEpoch.Add(time.Duration(i)*time.Hour))); err != nil {
			t.Fatalf("CreateProduct() error = %v", err)
		}
	}

	list, err := s.ListProducts(ctx, storage.CollectionWomen)
	if err != nil {
		t.Fatalf("ListProducts() error = %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("len(ListProducts()) = %d, want 3", len(list))
	}
	if list[0].ID != "p2" {
		t.Errorf("first product = %s, want p2 (newest first)", list[0].ID)
	}

	men, _ := s.ListProducts(ctx, storage.CollectionMen)
	if len(men) != 0 {
		t.Errorf("len(men) = %d, want 0", len(men))
	}

	upd := testProduct("p1", testEpoch.Add(48*time.Hour))
	upd.Name = "Renamed"
	if err := s.UpdateProduct(ctx, upd); err != nil {
		t.Fatalf("UpdateProduct() error = %v", err)
	}
	got, _ := s.GetProduct(ctx, storage.CollectionWomen, "p1")
	if got.Name != "Renamed" {
		t.Errorf("Name = %q, want Renamed", got.Name)
	}
	if !got.CreatedAt.Equal(testEpoch.Add(time.Hour)) {
		t.Errorf("CreatedAt changed on update: %v", got.CreatedAt)
	}

	if err := s.DeleteProduct(ctx, storage.CollectionWomen, "p1"); err != nil {
		t.Fatalf("DeleteProduct() error = %v", err)
	}
	if err := s.DeleteProduct(ctx, storage.CollectionWomen, "p1"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("DeleteProduct() twice error = %v, want ErrNotFound", err)
	}
	if err := s.UpdateProduct(ctx, testProduct("missing", testEpoch)); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("UpdateProduct(missing) error = %v, want ErrNotFound", err)
	}
}

func TestStore_Products_ReturnsCopies(t *testing.T) {
	s := New()
	defer s.Stop()

	ctx := context.Background()
	_ = s.CreateProduct(ctx, testProduct("p", testEpoch))

	got, _ := s.GetProduct(ctx, storage.CollectionWomen, "p")
	got.ImageURLs[0] = "mutated"

	again, _ := s.GetProduct(ctx, storage.CollectionWomen, "p")
	if again.ImageURLs[0] == "mutated" {
		t.Error("GetProduct() returned shared slice")
	}
}

func TestStore_Orders(t *testing.T) {
	s := New()
	defer s.Stop()

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		o := &storage.Order{
			ID:        fmt.Sprintf("o%d", i),
			FirstName: "Ivan",
			Items:     []storage.OrderItem{{ID: "p", Name: "Rose", Price: 10, Quantity: 1}},
			Status:    storage.OrderPending,
			CreatedAt: testEpoch.Add(time.Duration(i) * time.Minute),
		}
		if err := s.CreateOrder(ctx, o); err != nil {
			t.Fatalf("CreateOrder() error = %v", err)
		}
	}

	list, err := s.ListOrders(ctx)
	if err != nil {
		t.Fatalf("ListOrders() error = %v", err)
	}
	if len(list) != 2 || list[0].ID != "o1" {
		t.Fatalf("ListOrders() = %v, want o1 first", list)
	}

	if err := s.UpdateOrderStatus(ctx, "o0", storage.OrderShipped, testEpoch.Add(time.Hour)); err != nil {
		t.Fatalf("UpdateOrderStatus() error = %v", err)
	}
	list, _ = s.ListOrders(ctx)
	if list[1].Status != storage.OrderShipped {
		t.Errorf("Status = %s, want shipped", list[1].Status)
	}
	if err := s.UpdateOrderStatus(ctx, "nope", storage.OrderShipped, testEpoch); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("UpdateOrderStatus(nope) error = %v, want ErrNotFound", err)
	}
}
