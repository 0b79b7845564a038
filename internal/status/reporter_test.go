package status

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/tuannvm/ticket-actions/internal/models"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var (
	progress = models.StatusMessage{Text: "Updating...", Color: models.ColorInfo}
	done     = models.StatusMessage{Text: "Priority: High", Color: models.ColorSuccess}
	failed   = models.StatusMessage{Text: "Error: Failed", Color: models.ColorError}
)

func TestShowTransientClears(t *testing.T) {
	r := NewReporter(20 * time.Millisecond)
	defer r.Close()

	gen := r.ShowTransient(done)
	assert.Equal(t, done, r.Current().Message)

	assert.Eventually(t, func() bool { return r.Current().Message.IsZero() }, time.Second, 5*time.Millisecond)
	assert.Greater(t, r.Current().Generation, gen)
}

func TestNewerMessageInvalidatesPendingClear(t *testing.T) {
	r := NewReporter(100 * time.Millisecond)
	defer r.Close()

	r.ShowTransient(done)
	time.Sleep(50 * time.Millisecond)
	r.ShowTransient(failed)

	// the first message's clear would have fired by now
	time.Sleep(75 * time.Millisecond)
	assert.Equal(t, failed, r.Current().Message)

	assert.Eventually(t, func() bool { return r.Current().Message.IsZero() }, time.Second, 5*time.Millisecond)
}

func TestShowCancelsPendingClear(t *testing.T) {
	r := NewReporter(20 * time.Millisecond)
	defer r.Close()

	r.ShowTransient(done)
	r.Show(progress)

	time.Sleep(80 * time.Millisecond)
	assert.Equal(t, progress, r.Current().Message)
}

func TestGenerationIsMonotonic(t *testing.T) {
	r := NewReporter(time.Hour)
	defer r.Close()

	var last uint64
	for _, msg := range []models.StatusMessage{progress, done, progress, failed} {
		gen := r.ShowTransient(msg)
		assert.Greater(t, gen, last)
		last = gen
	}
}

func TestSubscribe(t *testing.T) {
	r := NewReporter(time.Hour)
	defer r.Close()

	var mu sync.Mutex
	var seen []models.StatusMessage
	unsubscribe := r.Subscribe(func(s Snapshot) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, s.Message)
	})

	r.Show(progress)
	r.ShowTransient(done)
	unsubscribe()
	r.Show(failed)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, seen, 2)
	assert.Equal(t, progress, seen[0])
	assert.Equal(t, done, seen[1])
}

func TestCloseStopsClear(t *testing.T) {
	r := NewReporter(20 * time.Millisecond)
	r.ShowTransient(done)
	r.Close()

	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, done, r.Current().Message)
}
