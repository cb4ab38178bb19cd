package errors

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCircuitBreaker_OpensAfterMaxFailures(t *testing.T) {
	// Given: a circuit breaker with max 3 failures
	cb := NewCircuitBreaker("w-1", WithMaxFailures(3))

	// When: recording 2 failures
	cb.RecordFailure()
	cb.RecordFailure()

	// Then: still allowed
	assert.True(t, cb.Allow())
	assert.Equal(t, StateClosed, cb.State())

	// When: the third failure is recorded
	cb.RecordFailure()

	// Then: circuit is open
	assert.False(t, cb.Allow())
	assert.Equal(t, StateOpen, cb.State())
	assert.Equal(t, 3, cb.Failures())
}

func TestCircuitBreaker_StaysOpenWithoutResetTimeout(t *testing.T) {
	// Given: an open breaker with no reset timeout
	cb := NewCircuitBreaker("w-1", WithMaxFailures(1))
	cb.RecordFailure()

	// When: time passes
	time.Sleep(5 * time.Millisecond)

	// Then: it is still open
	assert.False(t, cb.Allow())
}

func TestCircuitBreaker_HalfOpenAfterTimeout(t *testing.T) {
	// Given: an open breaker with a short reset timeout
	cb := NewCircuitBreaker("w-1", WithMaxFailures(1), WithResetTimeout(10*time.Millisecond))
	cb.RecordFailure()
	assert.False(t, cb.Allow())

	// When: waiting past the timeout
	time.Sleep(20 * time.Millisecond)

	// Then: half-open allows one more attempt
	assert.Equal(t, StateHalfOpen, cb.State())
	assert.True(t, cb.Allow())
}

func TestCircuitBreaker_ResetClosesCircuit(t *testing.T) {
	// Given: an open breaker
	cb := NewCircuitBreaker("w-1", WithMaxFailures(1))
	cb.RecordFailure()

	// When: reset
	cb.Reset()

	// Then: closed with zero failures
	assert.True(t, cb.Allow())
	assert.Equal(t, 0, cb.Failures())
	assert.Equal(t, "w-1", cb.Name())
}

func TestCircuitBreaker_ConcurrentFailures(t *testing.T) {
	cb := NewCircuitBreaker("w-1", WithMaxFailures(50))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			cb.RecordFailure()
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, cb.Failures())
	assert.Equal(t, StateOpen, cb.State())
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "open", StateOpen.String())
	assert.Equal(t, "half-open", StateHalfOpen.String())
	assert.Equal(t, "unknown", State(9).String())
}
