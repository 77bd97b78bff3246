package incremental

import (
	"context"
	"testing"
	"time"

	"github.com/buildbuildio/quilt/requests"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect(t *testing.T, s *Support) []*requests.IncrementalResult {
	t.Helper()

	var res []*requests.IncrementalResult
	timeout := time.After(5 * time.Second)
	for {
		select {
		case r, ok := <-s.Results():
			if !ok {
				return res
			}
			res = append(res, r)
		case <-timeout:
			require.FailNow(t, "incremental stream was not closed")
		}
	}
}

func payloadJob(payloads ...*requests.IncrementalPayload) Job {
	return func(context.Context) []*requests.IncrementalPayload {
		return payloads
	}
}

func TestSupportWithoutJobs(t *testing.T) {
	fields, _, _ := deferredFixture()
	s := NewSupport(context.Background(), NewAccumulator(fields), nil)

	assert.False(t, s.Launched())
	s.InitialSent()

	assert.Empty(t, collect(t, s))
}

func TestSupportDeliversAndClosesOnce(t *testing.T) {
	fields, _, _ := deferredFixture()
	s := NewSupport(context.Background(), NewAccumulator(fields), nil)

	release := make(chan struct{})

	s.Launch(payloadJob(&requests.IncrementalPayload{
		Path:  []interface{}{"issues", 0},
		Label: "slow",
		Data:  map[string]interface{}{"key": "A-1"},
	}))
	s.Launch(func(ctx context.Context) []*requests.IncrementalPayload {
		<-release
		return []*requests.IncrementalPayload{{
			Path:  []interface{}{"issues", 0},
			Label: "slow",
			Data:  map[string]interface{}{"assignee": nil},
		}}
	})
	s.Launch(payloadJob(&requests.IncrementalPayload{
		Path: []interface{}{"issues", 0},
		Data: map[string]interface{}{"key": "A-1"},
	}))
	assert.True(t, s.Launched())

	// nothing is delivered before the initial result
	assert.Eventually(t, func() bool { return s.counter.Outstanding() == 2 }, time.Second, time.Millisecond)
	select {
	case <-s.Results():
		assert.Fail(t, "result delivered before the initial one")
	default:
	}

	s.InitialSent()
	close(release)

	results := collect(t, s)
	require.NotEmpty(t, results)

	var payloads []*requests.IncrementalPayload
	for i, r := range results {
		payloads = append(payloads, r.Incremental...)
		assert.Equal(t, i != len(results)-1, r.HasNext)
	}

	require.Len(t, payloads, 2)
	labels := []string{payloads[0].Label, payloads[1].Label}
	assert.ElementsMatch(t, []string{"", "slow"}, labels)

	assert.Panics(t, func() { s.Launch(payloadJob()) })
}

func TestSupportKeepsIncompleteExecutions(t *testing.T) {
	fields, _, _ := deferredFixture()
	s := NewSupport(context.Background(), NewAccumulator(fields), nil)

	// assignee of the slow execution never arrives
	s.Launch(payloadJob(&requests.IncrementalPayload{
		Path:  []interface{}{"issues", 0},
		Label: "slow",
		Data:  map[string]interface{}{"key": "A-1"},
	}))
	s.InitialSent()

	results := collect(t, s)
	require.Len(t, results, 1)
	assert.False(t, results[0].HasNext)
	assert.Empty(t, results[0].Incremental)
}

func TestSupportCancel(t *testing.T) {
	fields, _, _ := deferredFixture()
	s := NewSupport(context.Background(), NewAccumulator(fields), nil)

	done := make(chan struct{})
	s.Launch(func(ctx context.Context) []*requests.IncrementalPayload {
		defer close(done)
		<-ctx.Done()
		return nil
	})
	s.InitialSent()
	s.Cancel()

	collect(t, s)
	<-done
}

func TestSupportCancelBeforeInitialSent(t *testing.T) {
	fields, _, _ := deferredFixture()
	s := NewSupport(context.Background(), NewAccumulator(fields), nil)

	done := make(chan struct{})
	s.Launch(func(ctx context.Context) []*requests.IncrementalPayload {
		defer close(done)
		<-ctx.Done()
		return nil
	})
	s.Cancel()

	assert.Empty(t, collect(t, s))
	<-done

	// a late InitialSent does not start a second stream
	assert.NotPanics(t, s.InitialSent)
}

func TestSupportRecoversPanickingJob(t *testing.T) {
	fields, _, _ := deferredFixture()
	s := NewSupport(context.Background(), NewAccumulator(fields), nil)

	s.Launch(func(context.Context) []*requests.IncrementalPayload {
		panic("boom")
	})
	s.InitialSent()

	var payloads []*requests.IncrementalPayload
	for _, r := range collect(t, s) {
		payloads = append(payloads, r.Incremental...)
	}
	require.Len(t, payloads, 1)
	assert.Equal(t, "deferred job failed: boom", payloads[0].Errors[0].Message)
}
