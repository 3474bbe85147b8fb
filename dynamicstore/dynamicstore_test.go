package dynamicstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	regclock "svc-registry/clock"
	"svc-registry/codec"
	regrand "svc-registry/rand"
	"svc-registry/registry"
	"svc-registry/store"
)

// memColumnStore is an in-memory store.ColumnStore for fast, deterministic
// unit tests that don't need a live Redis instance.
type memColumnStore struct {
	rows map[string]map[int64]store.Column
}

func newMemColumnStore() *memColumnStore {
	return &memColumnStore{rows: map[string]map[int64]store.Column{}}
}

func (m *memColumnStore) PutColumn(_ context.Context, row string, col store.Column) error {
	if m.rows[row] == nil {
		m.rows[row] = map[int64]store.Column{}
	}
	m.rows[row][col.ExpirationMs] = col
	return nil
}

func (m *memColumnStore) Columns(_ context.Context, row string) ([]store.Column, error) {
	cols := make([]store.Column, 0, len(m.rows[row]))
	for _, c := range m.rows[row] {
		cols = append(cols, c)
	}
	return cols, nil
}

func (m *memColumnStore) DeleteColumns(_ context.Context, row string, expirationsMs []int64) error {
	for _, e := range expirationsMs {
		delete(m.rows[row], e)
	}
	if len(m.rows[row]) == 0 {
		delete(m.rows, row)
	}
	return nil
}

func (m *memColumnStore) DeleteRow(_ context.Context, row string) error {
	delete(m.rows, row)
	return nil
}

func (m *memColumnStore) RowExists(_ context.Context, row string) (bool, error) {
	_, ok := m.rows[row]
	return ok, nil
}

func (m *memColumnStore) ScanRows(_ context.Context, cursor uint64, pageSize int64) ([]string, uint64, error) {
	rows := make([]string, 0, len(m.rows))
	for row := range m.rows {
		rows = append(rows, row)
	}
	return rows, 0, nil
}

func newTestStore(t *testing.T, fc *regclock.Fake) (*Store, *memColumnStore) {
	t.Helper()
	mem := newMemColumnStore()
	s := New(mem, codec.NewJSON(), fc, Config{ReaperInterval: time.Hour, MaxAgeMs: 86_400_000}, nil)
	return s, mem
}

func announcement(serviceType, pool string) registry.DynamicAnnouncement {
	return registry.DynamicAnnouncement{
		Environment: "test",
		Location:    "dc1",
		Pool:        pool,
		ServiceAnnouncements: []registry.ServiceAnnouncement{
			{ID: registry.NewServiceId(), Type: serviceType},
		},
	}
}

func TestStore_Put_NewNodeReportsWasNew(t *testing.T) {
	fc := regclock.NewFake(0)
	s, _ := newTestStore(t, fc)
	ctx := context.Background()

	wasNew, err := s.Put(ctx, registry.NewNodeId(), announcement("http", "general"), 10_000)
	require.NoError(t, err)
	assert.True(t, wasNew)
}

func TestStore_Put_ExistingNodeRefreshIsNotNew(t *testing.T) {
	fc := regclock.NewFake(0)
	s, _ := newTestStore(t, fc)
	ctx := context.Background()

	node := registry.NewNodeId()
	_, err := s.Put(ctx, node, announcement("http", "general"), 10_000)
	require.NoError(t, err)

	wasNew, err := s.Put(ctx, node, announcement("http", "general"), 10_000)
	require.NoError(t, err)
	assert.False(t, wasNew)
}

func TestStore_GetAll_ExcludesExpired(t *testing.T) {
	fc := regclock.NewFake(0)
	s, _ := newTestStore(t, fc)
	ctx := context.Background()

	node := registry.NewNodeId()
	_, err := s.Put(ctx, node, announcement("http", "general"), 1_000)
	require.NoError(t, err)

	services, err := s.GetAll(ctx)
	require.NoError(t, err)
	assert.Len(t, services, 1)

	fc.Step(2 * time.Second)

	services, err = s.GetAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, services)
}

func TestStore_Put_RefreshExtendsTTL(t *testing.T) {
	fc := regclock.NewFake(0)
	s, _ := newTestStore(t, fc)
	ctx := context.Background()

	node := registry.NewNodeId()
	_, err := s.Put(ctx, node, announcement("http", "general"), 1_000)
	require.NoError(t, err)

	fc.Step(800 * time.Millisecond)
	_, err = s.Put(ctx, node, announcement("http", "general"), 1_000)
	require.NoError(t, err)

	fc.Step(800 * time.Millisecond)
	services, err := s.GetAll(ctx)
	require.NoError(t, err)
	assert.Len(t, services, 1, "refresh should have pushed expiration past the second 800ms step")
}

func TestStore_Get_FiltersByType(t *testing.T) {
	fc := regclock.NewFake(0)
	s, _ := newTestStore(t, fc)
	ctx := context.Background()

	_, err := s.Put(ctx, registry.NewNodeId(), announcement("http", "general"), 10_000)
	require.NoError(t, err)
	_, err = s.Put(ctx, registry.NewNodeId(), announcement("grpc", "general"), 10_000)
	require.NoError(t, err)

	services, err := s.Get(ctx, "http")
	require.NoError(t, err)
	require.Len(t, services, 1)
	assert.Equal(t, "http", services[0].Type)
}

func TestStore_GetByPool_FiltersByTypeAndPool(t *testing.T) {
	fc := regclock.NewFake(0)
	s, _ := newTestStore(t, fc)
	ctx := context.Background()

	_, err := s.Put(ctx, registry.NewNodeId(), announcement("http", "canary"), 10_000)
	require.NoError(t, err)
	_, err = s.Put(ctx, registry.NewNodeId(), announcement("http", "general"), 10_000)
	require.NoError(t, err)

	services, err := s.GetByPool(ctx, "http", "canary")
	require.NoError(t, err)
	require.Len(t, services, 1)
	assert.Equal(t, "canary", services[0].Pool)
}

func TestStore_Delete_RemovesImmediately(t *testing.T) {
	fc := regclock.NewFake(0)
	s, _ := newTestStore(t, fc)
	ctx := context.Background()

	node := registry.NewNodeId()
	_, err := s.Put(ctx, node, announcement("http", "general"), 10_000)
	require.NoError(t, err)

	existed, err := s.Delete(ctx, node)
	require.NoError(t, err)
	assert.True(t, existed)

	services, err := s.GetAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, services)

	existed, err = s.Delete(ctx, node)
	require.NoError(t, err)
	assert.False(t, existed, "second delete of an already-gone node reports not-existed")
}

func TestStore_Delete_ExistedFalsePastMaxAgeGraceWindow(t *testing.T) {
	fc := regclock.NewFake(0)
	mem := newMemColumnStore()
	s := New(mem, codec.NewJSON(), fc, Config{ReaperInterval: time.Hour, MaxAgeMs: 5_000}, nil)
	ctx := context.Background()

	node := registry.NewNodeId()
	_, err := s.Put(ctx, node, announcement("http", "general"), 1_000)
	require.NoError(t, err)

	// Past the TTL but still inside the maxAge grace window: the reaper
	// hasn't necessarily swept this column yet, so existed is still true.
	fc.Step(3 * time.Second)
	existed, err := s.Delete(ctx, node)
	require.NoError(t, err)
	assert.True(t, existed, "column past TTL but within the maxAge grace window still counts as existed")

	_, err = s.Put(ctx, node, announcement("http", "general"), 1_000)
	require.NoError(t, err)

	// Well past both the TTL and the maxAge grace window: existed is false.
	fc.Step(10 * time.Second)
	existed, err = s.Delete(ctx, node)
	require.NoError(t, err)
	assert.False(t, existed, "column past the maxAge grace window no longer counts as existed")
}

func TestStore_GetAll_SkipsRowWithUndecodablePayload(t *testing.T) {
	fc := regclock.NewFake(0)
	s, mem := newTestStore(t, fc)
	ctx := context.Background()

	good := registry.NewNodeId()
	_, err := s.Put(ctx, good, announcement("http", "general"), 10_000)
	require.NoError(t, err)

	bad := string(registry.NewNodeId())
	require.NoError(t, mem.PutColumn(ctx, bad, store.Column{
		ExpirationMs:     10_000,
		WriteTimestampMs: 0,
		Payload:          []byte("not valid json"),
	}))

	services, err := s.GetAll(ctx)
	require.NoError(t, err, "a single undecodable row must not fail the whole query")
	require.Len(t, services, 1)
	assert.Equal(t, "http", services[0].Type)
}

func TestStore_Initialize_SecondCallErrors(t *testing.T) {
	fc := regclock.NewFake(0)
	s, _ := newTestStore(t, fc)
	ctx := context.Background()

	require.NoError(t, s.Initialize(ctx))
	defer s.Shutdown(ctx)

	err := s.Initialize(ctx)
	assert.ErrorIs(t, err, ErrAlreadyInitialized)
}

func TestStore_Shutdown_WithoutInitializeErrors(t *testing.T) {
	fc := regclock.NewFake(0)
	s, _ := newTestStore(t, fc)

	err := s.Shutdown(context.Background())
	assert.ErrorIs(t, err, ErrNotInitialized)
}

func TestStore_Reaper_RemovesExpiredColumns(t *testing.T) {
	fc := regclock.NewFake(0)
	s, mem := newTestStore(t, fc)
	s.reaperInterval = 10 * time.Millisecond
	ctx := context.Background()

	node := registry.NewNodeId()
	_, err := s.Put(ctx, node, announcement("http", "general"), 1_000)
	require.NoError(t, err)

	fc.Step(2 * time.Second)

	require.NoError(t, s.Initialize(ctx))
	defer s.Shutdown(ctx)

	require.Eventually(t, func() bool {
		_, ok := mem.rows[string(node)]
		return !ok
	}, time.Second, 5*time.Millisecond)
}

// TestStore_GetAll_RandomizedAnnouncementShape runs the live/expired split
// from TestStore_GetAll_ExcludesExpired repeatedly with a randomized number
// of services and properties per node, the way a property test would,
// without touching the documented fixed TTLs the other scenarios assert on.
func TestStore_GetAll_RandomizedAnnouncementShape(t *testing.T) {
	for i := 0; i < 10; i++ {
		fc := regclock.NewFake(0)
		s, _ := newTestStore(t, fc)
		ctx := context.Background()

		serviceCount := regrand.RandomIntBetweenInclusive(1, 5, true, true)
		node := registry.NewNodeId()
		ann := registry.DynamicAnnouncement{
			Environment: "test",
			Location:    "dc1",
			Pool:        "general",
		}
		for j := 0; j < serviceCount; j++ {
			props := map[string]string{}
			propCount := regrand.RandomIntBetweenInclusive(0, 3, true, true)
			for k := 0; k < propCount; k++ {
				props[string(rune('a'+k))] = "v"
			}
			ann.ServiceAnnouncements = append(ann.ServiceAnnouncements, registry.ServiceAnnouncement{
				ID:         registry.NewServiceId(),
				Type:       "http",
				Properties: props,
			})
		}

		_, err := s.Put(ctx, node, ann, 10_000)
		require.NoError(t, err)

		all, err := s.GetAll(ctx)
		require.NoError(t, err)
		assert.Len(t, all, serviceCount)
	}
}
