package collections

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/meridian-dms/meridian/internal/shared"
)

var verifier = shared.Actor{ID: 3, Name: "Meera", Role: shared.RoleManager}

type memoryRepo struct {
	records map[int64]Record
	nextID  int64
	now     time.Time
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{records: make(map[int64]Record), nextID: 1, now: time.Now()}
}

func (m *memoryRepo) GetRecord(ctx context.Context, id int64) (Record, error) {
	rec, ok := m.records[id]
	if !ok {
		return Record{}, ErrCollectionNotFound
	}
	return rec, nil
}

func (m *memoryRepo) UpsertRecord(ctx context.Context, in UpsertInput) (Record, error) {
	for id, rec := range m.records {
		if rec.OrderID == in.OrderID && rec.Type == in.Type {
			rec.Amount = in.Amount
			rec.CollectedBy = in.CollectedBy
			rec.Status = StatusPending
			rec.CompletedAt = nil
			rec.UpdatedAt = m.now
			m.records[id] = rec
			return rec, nil
		}
	}
	rec := Record{
		ID: m.nextID, OrderID: in.OrderID, CustomerID: in.CustomerID,
		Type: in.Type, Amount: in.Amount, CollectedBy: in.CollectedBy,
		Status: StatusPending, CreatedAt: m.now, UpdatedAt: m.now,
	}
	m.nextID++
	m.records[rec.ID] = rec
	return rec, nil
}

func (m *memoryRepo) ListByStatus(ctx context.Context, status Status) ([]Record, error) {
	var out []Record
	for _, rec := range m.records {
		if rec.Status == status {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (m *memoryRepo) MarkComplete(ctx context.Context, id int64) (Record, error) {
	rec, ok := m.records[id]
	if !ok {
		return Record{}, ErrCollectionNotFound
	}
	if rec.Status == StatusComplete {
		return Record{}, ErrAlreadyComplete
	}
	now := m.now
	rec.Status = StatusComplete
	rec.CompletedAt = &now
	m.records[id] = rec
	return rec, nil
}

type recordingSettlement struct {
	posted []Record
}

func (r *recordingSettlement) PostCollectionSettlement(ctx context.Context, rec Record) error {
	r.posted = append(r.posted, rec)
	return nil
}

func TestUpsertRefreshesSingleRow(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil)
	ctx := context.Background()

	first, err := svc.Upsert(ctx, UpsertInput{OrderID: 42, CustomerID: 9, Type: TypeCheque, Amount: 300, CollectedBy: "Asha"})
	require.NoError(t, err)

	second, err := svc.Upsert(ctx, UpsertInput{OrderID: 42, CustomerID: 9, Type: TypeCheque, Amount: 300, CollectedBy: "Asha"})
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID, "same (order, type) must reuse the row")

	pending, err := svc.ListPending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.Equal(t, float64(300), pending[0].Amount)
}

func TestUpsertSeparatesTypesPerOrder(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil)
	ctx := context.Background()

	_, err := svc.Upsert(ctx, UpsertInput{OrderID: 42, CustomerID: 9, Type: TypeCheque, Amount: 300})
	require.NoError(t, err)
	_, err = svc.Upsert(ctx, UpsertInput{OrderID: 42, CustomerID: 9, Type: TypeCredit, Amount: 300})
	require.NoError(t, err)

	pending, err := svc.ListPending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 2)
}

func TestUpsertRejectsUnknownType(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil)
	_, err := svc.Upsert(context.Background(), UpsertInput{OrderID: 1, Type: Type("cash")})
	require.ErrorIs(t, err, ErrInvalidType)
}

func TestCompletePostsSettlementOnce(t *testing.T) {
	repo := newMemoryRepo()
	settlement := &recordingSettlement{}
	svc := NewService(repo, settlement)
	ctx := context.Background()

	rec, err := svc.Upsert(ctx, UpsertInput{OrderID: 42, CustomerID: 9, Type: TypeCredit, Amount: 150})
	require.NoError(t, err)

	done, err := svc.Complete(ctx, verifier, rec.ID)
	require.NoError(t, err)
	require.Equal(t, StatusComplete, done.Status)
	require.NotNil(t, done.CompletedAt)
	require.Len(t, settlement.posted, 1)

	_, err = svc.Complete(ctx, verifier, rec.ID)
	require.ErrorIs(t, err, ErrAlreadyComplete)
	require.Len(t, settlement.posted, 1, "double completion must not double-post")
}

func TestCompleteRequiresManagerRole(t *testing.T) {
	repo := newMemoryRepo()
	settlement := &recordingSettlement{}
	svc := NewService(repo, settlement)
	ctx := context.Background()

	rec, err := svc.Upsert(ctx, UpsertInput{OrderID: 42, CustomerID: 9, Type: TypeCredit, Amount: 150})
	require.NoError(t, err)

	sales := shared.Actor{ID: 1, Name: "Asha", Role: shared.RoleSales}
	_, err = svc.Complete(ctx, sales, rec.ID)
	require.ErrorIs(t, err, shared.ErrForbidden)
	require.Empty(t, settlement.posted)

	still, err := svc.Get(ctx, rec.ID)
	require.NoError(t, err)
	require.Equal(t, StatusPending, still.Status)
}

func TestAgingBucketsByAge(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil)
	ctx := context.Background()
	base := time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC)

	repo.now = base.AddDate(0, 0, -10)
	_, err := svc.Upsert(ctx, UpsertInput{OrderID: 1, Type: TypeCredit, Amount: 100})
	require.NoError(t, err)

	repo.now = base.AddDate(0, 0, -45)
	_, err = svc.Upsert(ctx, UpsertInput{OrderID: 2, Type: TypeCredit, Amount: 200})
	require.NoError(t, err)

	repo.now = base.AddDate(0, 0, -120)
	_, err = svc.Upsert(ctx, UpsertInput{OrderID: 3, Type: TypeCheque, Amount: 400})
	require.NoError(t, err)

	buckets, err := svc.Aging(ctx, base)
	require.NoError(t, err)
	require.Len(t, buckets, 4)
	require.Equal(t, 1, buckets[0].Count)
	require.Equal(t, float64(100), buckets[0].Total)
	require.Equal(t, 1, buckets[1].Count)
	require.Equal(t, float64(200), buckets[1].Total)
	require.Equal(t, 0, buckets[2].Count)
	require.Equal(t, 1, buckets[3].Count)
	require.Equal(t, float64(400), buckets[3].Total)
}
