// Package memory is an in-process core.Store. It backs tests and the
// CLI's dry runs; nothing survives the process.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/JonMunkholm/bomimport/internal/core"
)

// Tree is a stored BOM tree.
type Tree struct {
	Root            core.TreeRoot
	Rows            []core.TreeRow
	Submitted       bool
	RawMaterialCost float64
}

// BOM is a BOM derived from a submitted tree.
type BOM struct {
	Name      string
	Tree      string
	Item      string
	CreatedAt time.Time
}

type itemRecord struct {
	item core.Item
	rate float64
}

// Store keeps everything in maps guarded by one mutex.
type Store struct {
	mu sync.Mutex

	items    map[string]itemRecord
	groups   map[string]string
	trees    map[string]*Tree
	boms     []BOM
	requests map[string]core.Request

	failCreate map[string]error
	failGroup  map[string]error
	failAppend map[string]error

	now func() time.Time
}

var _ core.Store = (*Store)(nil)

// New returns an empty store.
func New() *Store {
	return &Store{
		items:      make(map[string]itemRecord),
		groups:     make(map[string]string),
		trees:      make(map[string]*Tree),
		requests:   make(map[string]core.Request),
		failCreate: make(map[string]error),
		failGroup:  make(map[string]error),
		failAppend: make(map[string]error),
		now:        time.Now,
	}
}

// AddItem seeds the catalog with an item and its valuation rate.
func (s *Store) AddItem(item core.Item, rate float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[item.Code] = itemRecord{item: item, rate: rate}
}

// FailCreateItem makes CreateItem fail for code.
func (s *Store) FailCreateItem(code string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failCreate[code] = err
}

// FailItemGroup makes EnsureItemGroup fail for name.
func (s *Store) FailItemGroup(name string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failGroup[name] = err
}

// FailAppend makes appending a tree row for code fail.
func (s *Store) FailAppend(code string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failAppend[code] = err
}

// Item returns a stored item.
func (s *Store) Item(code string) (core.Item, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.items[code]
	return rec.item, ok
}

// ItemGroup returns the parent of a stored item group.
func (s *Store) ItemGroup(name string) (parent string, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	parent, ok = s.groups[name]
	return parent, ok
}

// Tree returns a copy of a stored tree.
func (s *Store) Tree(name string) (Tree, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.trees[name]
	if !ok {
		return Tree{}, false
	}
	cp := *t
	cp.Rows = append([]core.TreeRow(nil), t.Rows...)
	return cp, true
}

// TreeNames lists stored tree names, sorted.
func (s *Store) TreeNames() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.trees))
	for name := range s.trees {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// --- core.Catalog ---

func (s *Store) ItemExists(_ context.Context, code string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.items[code]
	return ok, nil
}

func (s *Store) DefaultUOM(_ context.Context, code string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.items[code].item.StockUOM, nil
}

func (s *Store) ValuationRate(_ context.Context, code string) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.items[code].rate, nil
}

func (s *Store) EnsureItemGroup(_ context.Context, name, parent string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failGroup[name]; err != nil {
		return err
	}
	if _, ok := s.groups[name]; !ok {
		s.groups[name] = parent
	}
	return nil
}

func (s *Store) CreateItem(_ context.Context, item core.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failCreate[item.Code]; err != nil {
		return err
	}
	if _, ok := s.items[item.Code]; ok {
		return fmt.Errorf("duplicate key: item %q already exists", item.Code)
	}
	s.items[item.Code] = itemRecord{item: item}
	return nil
}

// SetValuationRate updates the rate of a stored item.
func (s *Store) SetValuationRate(_ context.Context, code string, rate float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.items[code]
	if !ok {
		return fmt.Errorf("%w: %s", core.ErrItemNotFound, code)
	}
	rec.rate = rate
	s.items[code] = rec
	return nil
}

// --- core.TreeStore ---

// TreeExists counts drafts too: a name is taken from BeginTree on.
func (s *Store) TreeExists(_ context.Context, name string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.trees[name]
	return ok, nil
}

func (s *Store) BeginTree(_ context.Context, root core.TreeRoot) (core.TreeWriter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.trees[root.Name]; ok {
		return nil, fmt.Errorf("duplicate key: bom tree %q already exists", root.Name)
	}
	s.trees[root.Name] = &Tree{Root: root}
	return &treeWriter{store: s, name: root.Name}, nil
}

func (s *Store) LatestBOM(_ context.Context, treeName string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.boms) - 1; i >= 0; i-- {
		if s.boms[i].Tree == treeName {
			return s.boms[i].Name, true, nil
		}
	}
	return "", false, nil
}

type treeWriter struct {
	store *Store
	name  string
	done  bool
}

func (w *treeWriter) Append(_ context.Context, row core.TreeRow) (int, error) {
	s := w.store
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := w.draft()
	if err != nil {
		return 0, err
	}
	if err := s.failAppend[row.ItemCode]; err != nil {
		return 0, err
	}
	row.RowNo = len(t.Rows) + 1
	t.Rows = append(t.Rows, row)
	return row.RowNo, nil
}

func (w *treeWriter) Finalize(_ context.Context, rawMaterialCost float64) (string, error) {
	s := w.store
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := w.draft()
	if err != nil {
		return "", err
	}

	seq := 1
	for _, b := range s.boms {
		if b.Item == t.Root.ItemCode {
			seq++
		}
	}
	name := core.BOMName(t.Root.ItemCode, seq)

	t.Submitted = true
	t.RawMaterialCost = rawMaterialCost
	s.boms = append(s.boms, BOM{Name: name, Tree: w.name, Item: t.Root.ItemCode, CreatedAt: s.now()})
	w.done = true
	return name, nil
}

func (w *treeWriter) Abort(context.Context) error {
	s := w.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if w.done {
		return nil
	}
	delete(s.trees, w.name)
	w.done = true
	return nil
}

// draft returns the tree being written. Callers hold the store lock.
func (w *treeWriter) draft() (*Tree, error) {
	if w.done {
		return nil, fmt.Errorf("bom tree %q is already closed", w.name)
	}
	t, ok := w.store.trees[w.name]
	if !ok {
		return nil, fmt.Errorf("bom tree %q not found", w.name)
	}
	return t, nil
}

// --- core.RequestStore ---

func (s *Store) CreateRequest(_ context.Context, req core.Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.requests[req.ID]; ok {
		return fmt.Errorf("duplicate key: import request %q already exists", req.ID)
	}
	s.requests[req.ID] = req
	return nil
}

func (s *Store) GetRequest(_ context.Context, id string) (core.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.requests[id]
	if !ok {
		return core.Request{}, core.ErrRequestNotFound
	}
	return req, nil
}

func (s *Store) SaveItemLog(_ context.Context, id, log string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.requests[id]
	if !ok {
		return core.ErrRequestNotFound
	}
	req.ItemLog = log
	req.UpdatedAt = s.now().UTC()
	s.requests[id] = req
	return nil
}

func (s *Store) SaveTreeLog(_ context.Context, id, log, treeName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.requests[id]
	if !ok {
		return core.ErrRequestNotFound
	}
	req.TreeLog = log
	req.TreeName = treeName
	req.UpdatedAt = s.now().UTC()
	s.requests[id] = req
	return nil
}
