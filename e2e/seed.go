package e2e

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/glizzus/encore/internal/datalayer"
	"github.com/glizzus/encore/internal/generator"
	"github.com/glizzus/encore/internal/repository"
	"github.com/glizzus/encore/internal/transcode"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
)

var seedOnce sync.Once

// NoiseIDGenerator hands out job IDs that never collide with the ones a
// test creates.
type NoiseIDGenerator struct {
	counter uint64
}

func (g *NoiseIDGenerator) Next() (string, error) {
	id := atomic.AddUint64(&g.counter, 1)
	return fmt.Sprintf("noise-%d", id), nil
}

var _ generator.Generator[string] = (*NoiseIDGenerator)(nil)

// SeedGlobalNoise fills the history with old jobs so tests see a busy
// database. All noise jobs start at least a day ago.
func SeedGlobalNoise(t *testing.T, repo *repository.PostgresJobRepository) {
	t.Helper()
	seedOnce.Do(func() {
		ids := NoiseIDGenerator{}
		base := time.Now().Add(-24 * time.Hour)
		for i := range 100 {
			id, _ := ids.Next()
			started := base.Add(-time.Duration(i) * time.Minute)

			job := &transcode.Job{
				ID:           id,
				InputPath:    fmt.Sprintf("/tmp/noise-%d.mp4", i),
				TargetSize:   8 << 20,
				OriginalSize: 20 << 20,
				Duration:     60,
				HasAudio:     true,
				Outcome:      transcode.OutcomeFit,
				OutputSize:   7 << 20,
				StartedAt:    started,
				FinishedAt:   started.Add(time.Minute),
				Attempts: []transcode.Attempt{{
					Codecs:     transcode.CodecPair{Video: "libx264", Audio: "aac"},
					ResultSize: 7 << 20,
					Success:    true,
				}},
			}
			if err := repo.Record(t.Context(), job); err != nil {
				t.Fatalf("failed to save noise job: %v", err)
			}
		}
	})
}

var (
	once              sync.Once
	postgresContainer *postgres.PostgresContainer
	connStr           string
	startErr          error
	pool              *pgxpool.Pool
	wg                sync.WaitGroup
)

// UsePostgres signals that the test is using Postgres as its database.
// This will either provision or reuse a Postgres container for the test.
// Do not expect a clean state in the database; it is shared across tests
// to simulate real-world usage.
func UsePostgres(t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping end-to-end test in short mode")
	}

	once.Do(func() {
		ctx := context.Background()
		postgresContainer, startErr = postgres.Run(
			ctx,
			"postgres",
			postgres.WithDatabase("encore"),
			postgres.WithUsername("user"),
			postgres.WithPassword("password"),
			postgres.BasicWaitStrategies(),
		)
		if startErr != nil {
			return
		}
		connStr, startErr = postgresContainer.ConnectionString(ctx, "sslmode=disable")
		if startErr != nil {
			return
		}

		pool, startErr = pgxpool.New(ctx, connStr)
		if startErr != nil {
			return
		}
		defer pool.Close()

		startErr = datalayer.MigratePostgres(pool)
	})

	if startErr != nil {
		t.Fatalf("failed to start postgres container: %v", startErr)
	}
	wg.Add(1)
	t.Cleanup(wg.Done)

	return connStr
}

// GetRepository creates a new PostgresJobRepository for testing.
// It uses the provided connection string to connect to the database.
// It performs no modifications or migrations on the database schema.
func GetRepository(t *testing.T, connStr string) *repository.PostgresJobRepository {
	t.Helper()
	pool, err := pgxpool.New(t.Context(), connStr)
	if err != nil {
		t.Fatalf("failed to create postgres pool: %v", err)
	}

	t.Cleanup(pool.Close)
	return repository.NewPostgresJobRepository(pool)
}

func TerminatePostgresForE2E() {
	wg.Wait()
	if postgresContainer != nil {
		err := postgresContainer.Terminate(context.Background())
		if err != nil {
			fmt.Printf("failed to terminate postgres container: %v", err)
		}
	}
}
