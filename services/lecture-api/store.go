package main

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrInvalidArgument vrací List pro zápornou (nebo jinak nesmyslnou) stránku.
var ErrInvalidArgument = errors.New("neplatný argument")

// Store je úložiště přijatých lectur.
// Bridge do něj zapisuje (Insert), API z něj čte (List).
type Store interface {
	Insert(ctx context.Context, rec Record) error
	List(ctx context.Context, page int) ([]Record, error)
}

// MemoryStore drží lectury v paměti procesu v pořadí, v jakém přišly.
// Je to náhrada skutečné databáze pro vývoj a demo (STORE_BACKEND=memory).
// Velikost není omezena, roste s každou zprávou až do restartu.
type MemoryStore struct {
	// mu chrání slice před souběžným zápisem z MQTT callbacku a čtením z HTTP handlerů.
	mu       sync.RWMutex
	records  []Record
	pageSize int
}

// NewMemoryStore - konstruktor. pageSize musí být kladný.
func NewMemoryStore(pageSize int) *MemoryStore {
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	return &MemoryStore{pageSize: pageSize}
}

// Insert přidá záznam na konec. V paměti nemůže selhat.
func (s *MemoryStore) Insert(_ context.Context, rec Record) error {
	s.mu.Lock()
	s.records = append(s.records, rec)
	s.mu.Unlock()
	return nil
}

// List vrací stránku [page*pageSize, page*pageSize+pageSize).
// Stránka za koncem dat je prázdný slice, ne chyba.
func (s *MemoryStore) List(_ context.Context, page int) ([]Record, error) {
	if page < 0 {
		return nil, fmt.Errorf("%w: stránka %d je záporná", ErrInvalidArgument, page)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	start := page * s.pageSize
	// přetečení při obřím page
	if start < 0 || start/s.pageSize != page || start >= len(s.records) {
		return []Record{}, nil
	}
	end := min(start+s.pageSize, len(s.records))

	// Kopie, aby volající nesdílel podkladové pole s dalšími appendy.
	out := make([]Record, end-start)
	copy(out, s.records[start:end])
	return out, nil
}

// Len vrací aktuální počet záznamů.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// PageSize vrací velikost stránky, kterou List používá.
func (s *MemoryStore) PageSize() int { return s.pageSize }
