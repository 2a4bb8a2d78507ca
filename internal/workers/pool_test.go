package workers

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestPoolExecutesSubmittedTasks(t *testing.T) {
	cfg := DefaultPoolConfig("test")
	cfg.NumWorkers = 2
	p := NewPool(zap.NewNop(), cfg)
	p.Start()
	defer p.Stop()

	var wg sync.WaitGroup
	wg.Add(5)
	for i := 0; i < 5; i++ {
		require.NoError(t, p.SubmitFunc(func() error {
			defer wg.Done()
			return nil
		}))
	}
	wg.Wait()

	assert.Eventually(t, func() bool {
		return p.Stats().TasksCompleted == 5
	}, time.Second, 5*time.Millisecond)
}

func TestPoolRejectsSubmitBeforeStart(t *testing.T) {
	p := NewPool(zap.NewNop(), DefaultPoolConfig("test"))
	assert.ErrorIs(t, p.Submit(TaskFunc(func() error { return nil })), ErrPoolStopped)
}

func TestPoolObserverSeesEveryOutcome(t *testing.T) {
	cfg := DefaultPoolConfig("test")
	cfg.NumWorkers = 1
	p := NewPool(zap.NewNop(), cfg)

	obs := &recordingObserver{}
	p.SetObserver(obs)
	p.Start()
	defer p.Stop()

	require.NoError(t, p.SubmitFunc(func() error { return nil }))
	require.NoError(t, p.SubmitFunc(func() error { return errors.New("boom") }))

	assert.Eventually(t, func() bool {
		return obs.count() == 2
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, obs.failures())
}

type recordingObserver struct {
	mu    sync.Mutex
	calls []error
}

func (o *recordingObserver) Observed(_ time.Duration, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls = append(o.calls, err)
}

func (o *recordingObserver) count() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.calls)
}

func (o *recordingObserver) failures() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	n := 0
	for _, err := range o.calls {
		if err != nil {
			n++
		}
	}
	return n
}
