// Package storetest provides an in-memory store.Gateway for tests.
package storetest

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/jacentio/socialtable/keys"
	"github.com/jacentio/socialtable/store"
)

// Operation names accepted by Fail and Calls.
const (
	OpGet      = "get"
	OpPut      = "put"
	OpPutAll   = "putAll"
	OpUpdate   = "update"
	OpDelete   = "delete"
	OpQuery    = "query"
	OpBatchGet = "batchGet"
)

// Memory is a store.Gateway backed by a map. It applies the same key scheme,
// catalog, update semantics and cursor format as store.Store, and projects
// query results the way the indexes do.
type Memory struct {
	mu      sync.Mutex
	codec   *keys.Codec
	catalog *store.Catalog
	items   map[keys.Key]store.Item
	faults  map[string][]error
	calls   map[string]int
}

var _ store.Gateway = (*Memory)(nil)

// NewMemory returns an empty gateway. A nil codec means a single comment
// partition.
func NewMemory(codec *keys.Codec) *Memory {
	if codec == nil {
		codec = keys.NewCodec(1)
	}
	return &Memory{
		codec:   codec,
		catalog: store.NewCatalog(),
		items:   make(map[keys.Key]store.Item),
		faults:  make(map[string][]error),
		calls:   make(map[string]int),
	}
}

// Codec returns the key codec.
func (m *Memory) Codec() *keys.Codec { return m.codec }

// Fail queues err to be returned by the next call of op.
func (m *Memory) Fail(op string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.faults[op] = append(m.faults[op], err)
}

// Calls reports how many times op was invoked.
func (m *Memory) Calls(op string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[op]
}

// Len reports the number of stored items.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}

// Item returns a copy of the item under key.
func (m *Memory) Item(key keys.Key) (store.Item, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.items[key]
	return clone(it), ok
}

// enter records the call and pops a queued fault. Callers hold m.mu.
func (m *Memory) enter(op string) error {
	m.calls[op]++
	q := m.faults[op]
	if len(q) == 0 {
		return nil
	}
	m.faults[op] = q[1:]
	return q[0]
}

func (m *Memory) Get(_ context.Context, key keys.Key) (store.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(OpGet); err != nil {
		return nil, err
	}
	it, ok := m.items[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", store.ErrNotFound, key)
	}
	return clone(it), nil
}

func (m *Memory) Put(_ context.Context, k keys.Keys, item store.Item, cond store.Condition) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(OpPut); err != nil {
		return err
	}
	if err := m.check(k.Key, cond); err != nil {
		return err
	}
	m.items[k.Key] = store.WithKeys(k, item)
	return nil
}

func (m *Memory) PutAll(_ context.Context, reqs []store.PutRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(OpPutAll); err != nil {
		return err
	}
	if len(reqs) > 100 {
		return fmt.Errorf("%w: %d items exceeds the transaction limit", store.ErrValidation, len(reqs))
	}
	for _, r := range reqs {
		if err := m.check(r.Keys.Key, r.Condition); err != nil {
			return err
		}
	}
	for _, r := range reqs {
		m.items[r.Keys.Key] = store.WithKeys(r.Keys, r.Item)
	}
	return nil
}

func (m *Memory) check(key keys.Key, cond store.Condition) error {
	_, exists := m.items[key]
	switch {
	case cond == store.IfAbsent && exists:
		return fmt.Errorf("%w: %s exists", store.ErrConditionFailed, key)
	case cond == store.IfPresent && !exists:
		return fmt.Errorf("%w: %s missing", store.ErrConditionFailed, key)
	}
	return nil
}

func (m *Memory) Update(_ context.Context, key keys.Key, ops store.Ops) (store.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(OpUpdate); err != nil {
		return nil, err
	}
	values, err := store.PrepareOps(m.codec, key, ops)
	if err != nil {
		return nil, err
	}
	cur, ok := m.items[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", store.ErrNotFound, key)
	}
	next := store.ApplyOps(cur, ops, values)
	m.items[key] = next
	return clone(next), nil
}

func (m *Memory) Delete(_ context.Context, key keys.Key) (store.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(OpDelete); err != nil {
		return nil, err
	}
	it, ok := m.items[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", store.ErrNotFound, key)
	}
	delete(m.items, key)
	return it, nil
}

func (m *Memory) Query(_ context.Context, pattern string, f keys.Fields, limit int32, cursor string) (store.Page, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(OpQuery); err != nil {
		return store.Page{}, err
	}

	d, err := m.catalog.Resolve(pattern)
	if err != nil {
		return store.Page{}, err
	}
	pred, err := d.Predicate(f)
	if err != nil {
		return store.Page{}, fmt.Errorf("%w: %w", store.ErrValidation, err)
	}
	limit = store.LimitFor(d, limit)

	var matches []store.Item
	for _, it := range m.items {
		if matchesPredicate(d, pred, it) {
			matches = append(matches, it)
		}
	}
	sort.Slice(matches, func(i, j int) bool {
		c := compare(position(d, matches[i]), position(d, matches[j]))
		if d.Direction == store.Descending {
			return c > 0
		}
		return c < 0
	})

	if cursor != "" {
		c, err := store.DecodeCursor(cursor)
		if err != nil {
			return store.Page{}, err
		}
		if _, err := c.StartKey(d, pred.Partition); err != nil {
			return store.Page{}, err
		}
		from := [3]string{c.LastKey[d.SortAttr], c.LastKey[keys.AttrPK], c.LastKey[keys.AttrSK]}
		i := sort.Search(len(matches), func(i int) bool {
			cmp := compare(position(d, matches[i]), from)
			if d.Direction == store.Descending {
				return cmp < 0
			}
			return cmp > 0
		})
		matches = matches[i:]
	}

	var page store.Page
	n := min(int(limit), len(matches))
	for _, it := range matches[:n] {
		page.Items = append(page.Items, project(d, it))
	}
	if len(matches) > n {
		last := matches[n-1]
		lek := map[string]types.AttributeValue{}
		for _, attr := range []string{keys.AttrPK, keys.AttrSK, d.PartitionAttr, d.SortAttr} {
			if attr != "" {
				lek[attr] = last[attr]
			}
		}
		token, err := store.EncodeCursor(d.Pattern, lek)
		if err != nil {
			return store.Page{}, err
		}
		page.Next = &token
	}
	return page, nil
}

func (m *Memory) BatchGet(_ context.Context, ks []keys.Key, opts store.BatchGetOptions) ([]store.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(OpBatchGet); err != nil {
		return nil, err
	}
	seen := make(map[keys.Key]bool, len(ks))
	out := make([]store.Item, 0, len(ks))
	for _, k := range ks {
		if seen[k] {
			continue
		}
		seen[k] = true
		it, ok := m.items[k]
		if !ok {
			if opts.Strict {
				return nil, fmt.Errorf("%w: %s", store.ErrNotFound, k)
			}
			continue
		}
		out = append(out, clone(it))
	}
	return out, nil
}

func matchesPredicate(d store.IndexDescriptor, p store.Predicate, it store.Item) bool {
	if _, ok := it[d.PartitionAttr]; !ok || it.String(d.PartitionAttr) != p.Partition {
		return false
	}
	if d.SortAttr != "" {
		if _, ok := it[d.SortAttr]; !ok {
			return false
		}
	}
	sv := it.String(d.SortAttr)
	switch d.SortOp {
	case store.SortEquals:
		return sv == p.Sort
	case store.SortBeginsWith:
		return strings.HasPrefix(sv, p.Sort)
	}
	return true
}

func position(d store.IndexDescriptor, it store.Item) [3]string {
	return [3]string{it.String(d.SortAttr), it.String(keys.AttrPK), it.String(keys.AttrSK)}
}

func compare(a, b [3]string) int {
	for i := range a {
		if c := strings.Compare(a[i], b[i]); c != 0 {
			return c
		}
	}
	return 0
}

func project(d store.IndexDescriptor, it store.Item) store.Item {
	if d.Projection == store.ProjectAll || d.Projection == "" {
		return clone(it)
	}
	attrs := []string{keys.AttrPK, keys.AttrSK, d.PartitionAttr, d.SortAttr}
	if d.Projection == store.ProjectInclude {
		attrs = append(attrs, d.Projected...)
	}
	out := make(store.Item, len(attrs))
	for _, a := range attrs {
		if v, ok := it[a]; ok {
			out[a] = v
		}
	}
	return out
}

func clone(it store.Item) store.Item {
	if it == nil {
		return nil
	}
	out := make(store.Item, len(it))
	for k, v := range it {
		out[k] = v
	}
	return out
}
