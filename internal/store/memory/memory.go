package memory

import (
	"strings"
	"sync"

	"github.com/YiberMelo/ChronosSuite/internal/model"
	"github.com/YiberMelo/ChronosSuite/internal/store"
)

var _ store.Store = (*Store)(nil)

// Store keeps every record in process memory behind a single mutex, so
// each method is atomic with respect to every other.
type Store struct {
	mu sync.Mutex

	users map[string]model.User

	companies map[int64]model.Company
	visitors  map[int64]model.Visitor
	employees map[int64]model.Employee
	locations map[int64]model.Location
	visits    map[int64]model.Visit

	seq map[string]int64
}

func NewStore() *Store {
	return &Store{
		users:     make(map[string]model.User),
		companies: make(map[int64]model.Company),
		visitors:  make(map[int64]model.Visitor),
		employees: make(map[int64]model.Employee),
		locations: make(map[int64]model.Location),
		visits:    make(map[int64]model.Visit),
		seq:       make(map[string]int64),
	}
}

// nextID hands out increasing identifiers per table, like a bigserial.
func (s *Store) nextID(table string) int64 {
	s.seq[table]++
	return s.seq[table]
}

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}

func page[T any](items []T, offset, limit int) []T {
	if offset > 0 {
		if offset >= len(items) {
			return []T{}
		}
		items = items[offset:]
	}
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items
}
