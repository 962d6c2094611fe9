package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"poimap-server/models"
	"poimap-server/store"
	"poimap-server/utils/errors"
)

// slowDedupStore stretches the gap between the duplicate lookup and the insert.
type slowDedupStore struct {
	store.Store
}

func (s slowDedupStore) FindPoints(ctx context.Context, q store.PointQuery) ([]models.Point, error) {
	points, err := s.Store.FindPoints(ctx, q)
	if q.NameKey != "" {
		time.Sleep(20 * time.Millisecond)
	}
	return points, err
}

func TestConcurrentCreatesKeepOneDuplicate(t *testing.T) {
	env := newTestEnv(t)
	env.points.store = slowDedupStore{Store: env.store}
	env.points.now = func() time.Time { return time.Now().UTC() }

	const workers = 10
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
		dups    int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			in := validInput("Parque Ibirapuera")
			in.Lat += float64(i) * 0.00001
			_, err := env.points.Create(env.userCtx, in)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				created++
			case errors.Is(err, "DUPLICATE_POINT"):
				dups++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, created)
	assert.Equal(t, workers-1, dups)

	points, err := env.store.FindPoints(context.Background(), store.PointQuery{NameKey: "parque ibirapuera"})
	require.NoError(t, err)
	assert.Len(t, points, 1)
}

func TestKeyLockSeparatesKeys(t *testing.T) {
	locks := newKeyLock()
	unlockA := locks.Lock("a")

	done := make(chan struct{})
	go func() {
		defer close(done)
		locks.Lock("b")()
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on b waited for a")
	}

	unlockA()
	locks.Lock("a")()
	assert.Empty(t, locks.locks)
}
