package postgres_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/apisentinel/apisentinel/internal/domain/anomaly"
	"github.com/apisentinel/apisentinel/internal/domain/event"
	"github.com/apisentinel/apisentinel/internal/pkg/errors"
	"github.com/apisentinel/apisentinel/internal/repository/postgres"
	"github.com/apisentinel/apisentinel/internal/testutil"
)

func seedAnomaly(t *testing.T, repo anomaly.Repository, id, projectID string, createdAt time.Time) {
	t.Helper()
	err := repo.CreateMany(context.Background(), []*anomaly.Anomaly{{
		ID:        id,
		ProjectID: projectID,
		Kind:      anomaly.KindNewEndpoint,
		Message:   "New endpoint detected: GET /a",
		Severity:  anomaly.SeverityLow,
		CreatedAt: createdAt,
	}})
	if err != nil {
		t.Fatalf("CreateMany() error = %v", err)
	}
}

func TestAnomalyRepository_CreateManyAndGet(t *testing.T) {
	db := testutil.NewTestDB(t)
	defer testutil.CleanupDB(db)

	repo := postgres.NewAnomalyRepository(db)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Millisecond)
	seedAnomaly(t, repo, "a1", "p1", now)

	a, err := repo.GetByID(ctx, "a1")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if a.Kind != anomaly.KindNewEndpoint || a.Severity != anomaly.SeverityLow {
		t.Errorf("GetByID() = %+v", a)
	}
	if !a.CreatedAt.Equal(now) {
		t.Errorf("GetByID() created_at = %v, want %v", a.CreatedAt, now)
	}

	if _, err := repo.GetByID(ctx, "missing"); !errors.IsNotFound(err) {
		t.Errorf("GetByID(missing) error = %v, want not found", err)
	}
}

func TestAnomalyRepository_ClaimProcessed(t *testing.T) {
	db := testutil.NewTestDB(t)
	defer testutil.CleanupDB(db)

	repo := postgres.NewAnomalyRepository(db)
	ctx := context.Background()

	seedAnomaly(t, repo, "a1", "p1", time.Now().UTC())

	claimed, err := repo.ClaimProcessed(ctx, "a1")
	if err != nil {
		t.Fatalf("ClaimProcessed() error = %v", err)
	}
	if !claimed {
		t.Fatal("first claim lost")
	}

	// A second claim on the same anomaly must lose
	claimed, err = repo.ClaimProcessed(ctx, "a1")
	if err != nil {
		t.Fatalf("ClaimProcessed() error = %v", err)
	}
	if claimed {
		t.Fatal("second claim won, want exactly one winner")
	}

	// Claiming a missing anomaly is a lost claim, not an error
	claimed, err = repo.ClaimProcessed(ctx, "missing")
	if err != nil {
		t.Fatalf("ClaimProcessed(missing) error = %v", err)
	}
	if claimed {
		t.Fatal("claim on missing anomaly won")
	}
}

func TestAnomalyRepository_ClaimProcessedConcurrent(t *testing.T) {
	db := testutil.NewTestDB(t)
	defer testutil.CleanupDB(db)

	repo := postgres.NewAnomalyRepository(db)
	ctx := context.Background()

	seedAnomaly(t, repo, "a1", "p1", time.Now().UTC())

	const callers = 8
	results := make(chan bool, callers)

	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			claimed, err := repo.ClaimProcessed(ctx, "a1")
			if err != nil {
				t.Errorf("ClaimProcessed() error = %v", err)
				return
			}
			results <- claimed
		}()
	}
	wg.Wait()
	close(results)

	winners := 0
	for claimed := range results {
		if claimed {
			winners++
		}
	}
	if winners != 1 {
		t.Errorf("%d concurrent claims won, want exactly 1", winners)
	}
}

func TestAnomalyRepository_FlaggedEndpoints(t *testing.T) {
	db := testutil.NewTestDB(t)
	defer testutil.CleanupDB(db)

	repo := postgres.NewAnomalyRepository(db)
	ctx := context.Background()

	now := time.Now().UTC()
	err := repo.CreateMany(ctx, []*anomaly.Anomaly{
		{ID: "a1", ProjectID: "p1", Kind: anomaly.KindNewEndpoint, EndpointMethod: "GET", EndpointPath: "/a",
			Message: "New endpoint detected: GET /a", Severity: anomaly.SeverityLow, CreatedAt: now},
		{ID: "a2", ProjectID: "p1", Kind: anomaly.KindNewEndpoint, EndpointMethod: "POST", EndpointPath: "/a",
			Message: "New endpoint detected: POST /a", Severity: anomaly.SeverityLow, CreatedAt: now},
		// Other kinds and other projects stay out of the flagged set
		{ID: "a3", ProjectID: "p1", Kind: anomaly.KindErrorSpike, EndpointMethod: "GET", EndpointPath: "/b",
			Message: "Error spike detected: 7/12 requests to GET /b returned 5xx errors", Severity: anomaly.SeverityHigh, CreatedAt: now},
		{ID: "a4", ProjectID: "p2", Kind: anomaly.KindNewEndpoint, EndpointMethod: "GET", EndpointPath: "/c",
			Message: "New endpoint detected: GET /c", Severity: anomaly.SeverityLow, CreatedAt: now},
	})
	if err != nil {
		t.Fatalf("CreateMany() error = %v", err)
	}

	flagged, err := repo.FlaggedEndpoints(ctx, "p1")
	if err != nil {
		t.Fatalf("FlaggedEndpoints() error = %v", err)
	}

	if len(flagged) != 2 {
		t.Fatalf("FlaggedEndpoints() returned %d pairs, want 2", len(flagged))
	}
	for _, want := range []event.Endpoint{{Method: "GET", Path: "/a"}, {Method: "POST", Path: "/a"}} {
		if _, ok := flagged[want]; !ok {
			t.Errorf("FlaggedEndpoints() missing %s %s", want.Method, want.Path)
		}
	}
}

func TestAnomalyRepository_FindUnprocessed(t *testing.T) {
	db := testutil.NewTestDB(t)
	defer testutil.CleanupDB(db)

	repo := postgres.NewAnomalyRepository(db)
	ctx := context.Background()

	now := time.Now().UTC()
	seedAnomaly(t, repo, "recent", "p1", now.Add(-10*time.Minute))
	seedAnomaly(t, repo, "stale", "p1", now.Add(-2*time.Hour))

	if _, err := repo.ClaimProcessed(ctx, "recent"); err != nil {
		t.Fatalf("ClaimProcessed() error = %v", err)
	}
	seedAnomaly(t, repo, "pending", "p1", now.Add(-5*time.Minute))

	found, err := repo.FindUnprocessed(ctx, now.Add(-time.Hour))
	if err != nil {
		t.Fatalf("FindUnprocessed() error = %v", err)
	}

	if len(found) != 1 || found[0].ID != "pending" {
		ids := make([]string, len(found))
		for i, a := range found {
			ids[i] = a.ID
		}
		t.Errorf("FindUnprocessed() = %v, want [pending]", ids)
	}
}

func TestAnomalyRepository_Resolve(t *testing.T) {
	db := testutil.NewTestDB(t)
	defer testutil.CleanupDB(db)

	repo := postgres.NewAnomalyRepository(db)
	ctx := context.Background()

	seedAnomaly(t, repo, "a1", "p1", time.Now().UTC())

	at := time.Now().UTC().Truncate(time.Millisecond)
	if err := repo.Resolve(ctx, "a1", at); err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	a, err := repo.GetByID(ctx, "a1")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if !a.Resolved || a.ResolvedAt == nil || !a.ResolvedAt.Equal(at) {
		t.Errorf("Resolve() left anomaly = %+v", a)
	}

	if err := repo.Resolve(ctx, "missing", at); !errors.IsNotFound(err) {
		t.Errorf("Resolve(missing) error = %v, want not found", err)
	}
}

func TestAnomalyRepository_ListWithPagination(t *testing.T) {
	db := testutil.NewTestDB(t)
	defer testutil.CleanupDB(db)

	repo := postgres.NewAnomalyRepository(db)
	ctx := context.Background()

	now := time.Now().UTC()
	for i, id := range []string{"a1", "a2", "a3"} {
		seedAnomaly(t, repo, id, "p1", now.Add(-time.Duration(i)*time.Minute))
	}
	seedAnomaly(t, repo, "other", "p2", now)

	got, total, err := repo.ListWithPagination(ctx, anomaly.Filter{ProjectID: "p1"}, 2, 0)
	if err != nil {
		t.Fatalf("ListWithPagination() error = %v", err)
	}
	if total != 3 {
		t.Errorf("ListWithPagination() total = %d, want 3", total)
	}
	if len(got) != 2 {
		t.Errorf("ListWithPagination() returned %d rows, want 2", len(got))
	}
	// Newest first
	if got[0].ID != "a1" {
		t.Errorf("ListWithPagination() first = %s, want a1", got[0].ID)
	}
}
