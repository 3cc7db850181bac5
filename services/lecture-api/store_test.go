package main

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
)

func TestMemoryStorePaging(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(2)

	for i := int64(1); i <= 5; i++ {
		if err := s.Insert(ctx, Record{DeviceID: i}); err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
	}

	cases := []struct {
		page int
		ids  []int64
	}{
		{0, []int64{1, 2}},
		{1, []int64{3, 4}},
		{2, []int64{5}},
		{3, nil},
		{math.MaxInt, nil},
	}
	for _, tc := range cases {
		got, err := s.List(ctx, tc.page)
		if err != nil {
			t.Fatalf("page %d: %v", tc.page, err)
		}
		if got == nil {
			t.Fatalf("page %d: expected empty slice, got nil", tc.page)
		}
		if len(got) != len(tc.ids) {
			t.Fatalf("page %d: expected %d records, got %d", tc.page, len(tc.ids), len(got))
		}
		for i, id := range tc.ids {
			if got[i].DeviceID != id {
				t.Fatalf("page %d[%d]: expected device %d, got %d", tc.page, i, id, got[i].DeviceID)
			}
		}
	}
}

func TestMemoryStoreNegativePage(t *testing.T) {
	s := NewMemoryStore(10)
	for _, n := range []int{0, 3} {
		for i := 0; i < n; i++ {
			s.Insert(context.Background(), Record{DeviceID: int64(i)})
		}
		if _, err := s.List(context.Background(), -1); !errors.Is(err, ErrInvalidArgument) {
			t.Fatalf("expected ErrInvalidArgument, got %v", err)
		}
	}
}

func TestMemoryStoreListReturnsCopy(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(10)
	s.Insert(ctx, Record{DeviceID: 1})

	page, _ := s.List(ctx, 0)
	page[0].DeviceID = 99

	again, _ := s.List(ctx, 0)
	if again[0].DeviceID != 1 {
		t.Fatalf("store was mutated through a listed page")
	}
}

func TestMemoryStoreConcurrentInsert(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(1000)

	const writers, perWriter = 16, 250
	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				s.Insert(ctx, Record{DeviceID: int64(w*perWriter + i + 1), Current: floatPtr(1)})
			}
		}(w)
	}

	// Čtenáři běží souběžně se zápisy a nesmí vidět napůl zapsaný záznam.
	stop := make(chan struct{})
	var readers sync.WaitGroup
	for r := 0; r < 4; r++ {
		readers.Add(1)
		go func() {
			defer readers.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				page, err := s.List(ctx, 0)
				if err != nil {
					t.Errorf("list: %v", err)
					return
				}
				for _, rec := range page {
					if rec.DeviceID == 0 || rec.Current == nil {
						t.Errorf("observed incomplete record %+v", rec)
						return
					}
				}
			}
		}()
	}

	wg.Wait()
	close(stop)
	readers.Wait()

	if got := s.Len(); got != writers*perWriter {
		t.Fatalf("expected %d records, got %d", writers*perWriter, got)
	}
}

func TestNewMemoryStoreDefaultsPageSize(t *testing.T) {
	if got := NewMemoryStore(0).PageSize(); got != defaultPageSize {
		t.Fatalf("expected default page size %d, got %d", defaultPageSize, got)
	}
}
