package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/editgroups/editgroups/internal/database"
)

// Memory is an in-process Store. Transactions work on a copy of the data
// that replaces the original on commit, and are serialized.
type Memory struct {
	mu    sync.Mutex
	tools []database.Tool
	data  *memoryData
}

type memoryData struct {
	nextBatchID uint
	batches     map[uint]database.Batch
	edits       map[int64]database.Edit
	tags        map[string]database.Tag
	batchTags   map[uint]map[string]bool
}

// NewMemory creates an empty store knowing the given tools. Tools without
// an ID get one from their position in the list.
func NewMemory(tools ...database.Tool) *Memory {
	m := &Memory{
		data: &memoryData{
			nextBatchID: 1,
			batches:     make(map[uint]database.Batch),
			edits:       make(map[int64]database.Edit),
			tags:        make(map[string]database.Tag),
			batchTags:   make(map[uint]map[string]bool),
		},
	}
	for i, tool := range tools {
		if tool.ID == 0 {
			tool.ID = uint(i + 1)
		}
		m.tools = append(m.tools, tool)
	}
	return m
}

func (d *memoryData) clone() *memoryData {
	c := &memoryData{
		nextBatchID: d.nextBatchID,
		batches:     make(map[uint]database.Batch, len(d.batches)),
		edits:       make(map[int64]database.Edit, len(d.edits)),
		tags:        make(map[string]database.Tag, len(d.tags)),
		batchTags:   make(map[uint]map[string]bool, len(d.batchTags)),
	}
	for k, v := range d.batches {
		c.batches[k] = v
	}
	for k, v := range d.edits {
		c.edits[k] = v
	}
	for k, v := range d.tags {
		c.tags[k] = v
	}
	for k, v := range d.batchTags {
		tags := make(map[string]bool, len(v))
		for id := range v {
			tags[id] = true
		}
		c.batchTags[k] = tags
	}
	return c
}

func (m *Memory) ListTools(ctx context.Context) ([]database.Tool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	tools := make([]database.Tool, len(m.tools))
	copy(tools, m.tools)
	sort.SliceStable(tools, func(i, j int) bool {
		if tools[i].Position != tools[j].Position {
			return tools[i].Position < tools[j].Position
		}
		return tools[i].ID < tools[j].ID
	})
	return tools, nil
}

func (m *Memory) GetOrCreateBatch(ctx context.Context, toolID uint, uid string, defaults BatchDefaults) (*database.Batch, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if b := m.findBatch(toolID, uid); b != nil {
		return b, false, nil
	}

	b := database.Batch{
		ID:      m.data.nextBatchID,
		ToolID:  toolID,
		UID:     uid,
		User:    defaults.User,
		Summary: defaults.Summary,
		Started: defaults.Started,
		Ended:   defaults.Started,
	}
	m.data.nextBatchID++
	m.data.batches[b.ID] = b
	return &b, true, nil
}

func (m *Memory) OwnerBatch(ctx context.Context, toolID uint, uid string) (*database.Batch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.findBatch(toolID, uid), nil
}

// findBatch returns a copy of the oldest batch of (toolID, uid).
func (m *Memory) findBatch(toolID uint, uid string) *database.Batch {
	var found *database.Batch
	for _, b := range m.data.batches {
		if b.ToolID != toolID || b.UID != uid {
			continue
		}
		if found == nil || b.ID < found.ID {
			b := b
			found = &b
		}
	}
	return found
}

func (m *Memory) DeleteBatch(ctx context.Context, id uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.data.batches, id)
	delete(m.data.batchTags, id)
	for editID, e := range m.data.edits {
		if e.BatchID == id {
			delete(m.data.edits, editID)
		}
	}
	return nil
}

func (m *Memory) BatchTagIDs(ctx context.Context, batchIDs []uint) (map[uint]map[string]bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	result := make(map[uint]map[string]bool, len(batchIDs))
	for _, id := range batchIDs {
		tags, ok := m.data.batchTags[id]
		if !ok {
			continue
		}
		result[id] = make(map[string]bool, len(tags))
		for tag := range tags {
			result[id][tag] = true
		}
	}
	return result, nil
}

// InTransaction holds the store lock while fn runs, so fn must only use tx.
func (m *Memory) InTransaction(ctx context.Context, fn func(tx Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	tx := &memoryTx{data: m.data.clone()}
	if err := fn(tx); err != nil {
		return err
	}
	m.data = tx.data
	return nil
}

// Batches returns every stored batch ordered by id.
func (m *Memory) Batches() []database.Batch {
	m.mu.Lock()
	defer m.mu.Unlock()

	batches := make([]database.Batch, 0, len(m.data.batches))
	for _, b := range m.data.batches {
		batches = append(batches, b)
	}
	sort.Slice(batches, func(i, j int) bool { return batches[i].ID < batches[j].ID })
	return batches
}

// Edits returns every stored edit ordered by id.
func (m *Memory) Edits() []database.Edit {
	m.mu.Lock()
	defer m.mu.Unlock()

	edits := make([]database.Edit, 0, len(m.data.edits))
	for _, e := range m.data.edits {
		edits = append(edits, e)
	}
	sort.Slice(edits, func(i, j int) bool { return edits[i].ID < edits[j].ID })
	return edits
}

// Tag returns a stored tag.
func (m *Memory) Tag(id string) (database.Tag, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	tag, ok := m.data.tags[id]
	return tag, ok
}

// PutTag stores a tag, replacing any previous one with the same id.
func (m *Memory) PutTag(tag database.Tag) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.data.tags[tag.ID] = tag
}

type memoryTx struct {
	data *memoryData
}

func (t *memoryTx) CreateEdits(edits []database.Edit) error {
	seen := make(map[int64]bool, len(edits))
	for _, e := range edits {
		if _, ok := t.data.edits[e.ID]; ok || seen[e.ID] {
			return fmt.Errorf("%w: id %d", ErrDuplicateEdit, e.ID)
		}
		if _, ok := t.data.batches[e.BatchID]; !ok {
			return fmt.Errorf("edit %d references unknown batch %d", e.ID, e.BatchID)
		}
		seen[e.ID] = true
	}
	for _, e := range edits {
		t.data.edits[e.ID] = e
	}
	return nil
}

func (t *memoryTx) ExistingEditIDs(ids []int64) (map[int64]bool, error) {
	existing := make(map[int64]bool)
	for _, id := range ids {
		if _, ok := t.data.edits[id]; ok {
			existing[id] = true
		}
	}
	return existing, nil
}

func (t *memoryTx) UpdateBatchAggregates(batches []*database.Batch) error {
	for _, b := range batches {
		stored, ok := t.data.batches[b.ID]
		if !ok {
			return fmt.Errorf("batch %d not found", b.ID)
		}
		stored.Ended = b.Ended
		stored.NbEdits = b.NbEdits
		t.data.batches[b.ID] = stored
	}
	return nil
}

func (t *memoryTx) EnsureTags(tags []database.Tag) error {
	for _, tag := range tags {
		if _, ok := t.data.tags[tag.ID]; !ok {
			t.data.tags[tag.ID] = tag
		}
	}
	return nil
}

func (t *memoryTx) AddBatchTags(batchTags map[uint][]string) error {
	for batchID, tagIDs := range batchTags {
		for _, tagID := range tagIDs {
			if _, ok := t.data.tags[tagID]; !ok {
				return fmt.Errorf("tag %q not found", tagID)
			}
			if t.data.batchTags[batchID] == nil {
				t.data.batchTags[batchID] = make(map[string]bool)
			}
			t.data.batchTags[batchID][tagID] = true
		}
	}
	return nil
}

func (t *memoryTx) MarkReverted(revIDs []int64) (int64, error) {
	targets := make(map[int64]bool, len(revIDs))
	for _, id := range revIDs {
		targets[id] = true
	}

	var n int64
	for id, e := range t.data.edits {
		if targets[e.NewRevID] && !e.Reverted {
			e.Reverted = true
			t.data.edits[id] = e
			n++
		}
	}
	return n, nil
}
