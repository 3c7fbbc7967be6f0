package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/sqs"
	"github.com/aws/aws-sdk-go/service/sqs/sqsiface"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Hanishchow/Biocore-agent/config"
	"github.com/Hanishchow/Biocore-agent/internal/analysis"
)

type fakeSQS struct {
	sqsiface.SQSAPI

	mu         sync.Mutex
	batches    [][]*sqs.Message
	receiveErr error
	receives   int
	deleted    []string
	inputs     []*sqs.ReceiveMessageInput

	// claimed counts received messages not yet deleted
	claimed     int
	peakClaimed int
}

func (f *fakeSQS) ReceiveMessageWithContext(ctx aws.Context, in *sqs.ReceiveMessageInput, _ ...request.Option) (*sqs.ReceiveMessageOutput, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f.mu.Lock()
	f.receives++
	f.inputs = append(f.inputs, in)
	if f.receiveErr != nil {
		err := f.receiveErr
		f.receiveErr = nil
		f.mu.Unlock()
		return nil, err
	}
	if len(f.batches) > 0 {
		batch := f.batches[0]
		if n := int(aws.Int64Value(in.MaxNumberOfMessages)); len(batch) > n {
			f.batches[0] = batch[n:]
			batch = batch[:n]
		} else {
			f.batches = f.batches[1:]
		}
		f.claimed += len(batch)
		f.peakClaimed = max(f.peakClaimed, f.claimed)
		f.mu.Unlock()
		return &sqs.ReceiveMessageOutput{Messages: batch}, nil
	}
	f.mu.Unlock()

	<-ctx.Done()
	return nil, ctx.Err()
}

func (f *fakeSQS) DeleteMessageWithContext(_ aws.Context, in *sqs.DeleteMessageInput, _ ...request.Option) (*sqs.DeleteMessageOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.claimed--
	f.deleted = append(f.deleted, aws.StringValue(in.ReceiptHandle))
	return &sqs.DeleteMessageOutput{}, nil
}

func (f *fakeSQS) claimedNow() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.claimed
}

func (f *fakeSQS) deletedHandles() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.deleted...)
}

type fakeProcessor struct {
	mu   sync.Mutex
	seen []analysis.Request
	err  error

	// gate, when set, holds every analysis until it is closed
	gate chan struct{}
}

func (p *fakeProcessor) Run(_ context.Context, req analysis.Request) (*analysis.Response, error) {
	p.mu.Lock()
	p.seen = append(p.seen, req)
	p.mu.Unlock()

	if p.gate != nil {
		<-p.gate
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return nil, p.err
	}
	return &analysis.Response{Status: "success", Meta: analysis.Meta{PDBIDQueried: req.PDBID}}, nil
}

func (p *fakeProcessor) requests() []analysis.Request {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]analysis.Request(nil), p.seen...)
}

func message(handle, body string) *sqs.Message {
	return &sqs.Message{
		MessageId:     aws.String("id-" + handle),
		ReceiptHandle: aws.String(handle),
		Body:          aws.String(body),
	}
}

func queueConfig() config.QueueConfig {
	return config.QueueConfig{
		Prefix:            "https://sqs.us-east-1.amazonaws.com/123456789012",
		Name:              "biocore-requests",
		WorkerCount:       2,
		PollingWaitTime:   20,
		VisibilityTimeout: 300,
		MaxMessages:       10,
	}
}

func runDispatcher(t *testing.T, d *Dispatcher) (cancel func()) {
	t.Helper()
	ctx, stop := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	return func() {
		stop()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Fatal("dispatcher did not stop")
		}
	}
}

func TestDispatcherProcessesAndDeletesEveryMessage(t *testing.T) {
	svc := &fakeSQS{batches: [][]*sqs.Message{{
		message("h1", `{"compound_name":"ibuprofen","pdb_id":"1EQG"}`),
		message("h2", `{"cid":2244,"pdb_id":"1PTY"}`),
		message("h3", `not json`),
	}}}
	proc := &fakeProcessor{}
	d := New(svc, proc, queueConfig(), zap.NewNop())

	stop := runDispatcher(t, d)
	require.Eventually(t, func() bool { return len(svc.deletedHandles()) == 3 }, 2*time.Second, 10*time.Millisecond)
	stop()

	assert.ElementsMatch(t, []string{"h1", "h2", "h3"}, svc.deletedHandles())
	reqs := proc.requests()
	require.Len(t, reqs, 2)
	var ids []string
	for _, r := range reqs {
		ids = append(ids, r.PDBID)
	}
	assert.ElementsMatch(t, []string{"1EQG", "1PTY"}, ids)

	svc.mu.Lock()
	in := svc.inputs[0]
	svc.mu.Unlock()
	assert.Equal(t, "https://sqs.us-east-1.amazonaws.com/123456789012/biocore-requests", aws.StringValue(in.QueueUrl))
	assert.Equal(t, int64(2), aws.Int64Value(in.MaxNumberOfMessages))
	assert.Equal(t, int64(20), aws.Int64Value(in.WaitTimeSeconds))
	assert.Equal(t, int64(300), aws.Int64Value(in.VisibilityTimeout))
}

func TestDispatcherClaimsNoMoreThanItsWorkers(t *testing.T) {
	var batch []*sqs.Message
	for i := 0; i < 20; i++ {
		batch = append(batch, message(fmt.Sprintf("h%d", i), `{"compound_name":"ibuprofen","pdb_id":"1EQG"}`))
	}
	svc := &fakeSQS{batches: [][]*sqs.Message{batch}}
	proc := &fakeProcessor{gate: make(chan struct{})}
	cfg := queueConfig()
	cfg.WorkerCount = 1
	d := New(svc, proc, cfg, zap.NewNop())

	stop := runDispatcher(t, d)
	require.Eventually(t, func() bool { return len(proc.requests()) == 1 }, 2*time.Second, 10*time.Millisecond)
	time.Sleep(50 * time.Millisecond)

	// the only worker is busy, so nothing else has been taken off the queue
	assert.Equal(t, 1, svc.claimedNow())
	assert.Len(t, proc.requests(), 1)

	close(proc.gate)
	require.Eventually(t, func() bool { return len(svc.deletedHandles()) == 20 }, 2*time.Second, 10*time.Millisecond)
	stop()

	svc.mu.Lock()
	defer svc.mu.Unlock()
	assert.Equal(t, 1, svc.peakClaimed)
	for _, in := range svc.inputs {
		assert.Equal(t, int64(1), aws.Int64Value(in.MaxNumberOfMessages))
	}
}

func TestDispatcherStopsClaimingOnShutdown(t *testing.T) {
	svc := &fakeSQS{batches: [][]*sqs.Message{{
		message("h1", `{"compound_name":"ibuprofen","pdb_id":"1EQG"}`),
		message("h2", `{"compound_name":"aspirin","pdb_id":"1PTY"}`),
		message("h3", `{"compound_name":"caffeine","pdb_id":"2A3B"}`),
	}}}
	proc := &fakeProcessor{gate: make(chan struct{})}
	cfg := queueConfig()
	cfg.WorkerCount = 1
	d := New(svc, proc, cfg, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	require.Eventually(t, func() bool { return len(proc.requests()) == 1 }, 2*time.Second, 10*time.Millisecond)
	cancel()
	close(proc.gate)

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("dispatcher did not stop")
	}

	// the in-flight message finishes; the rest stay on the queue
	assert.Equal(t, []string{"h1"}, svc.deletedHandles())
	assert.Len(t, proc.requests(), 1)
}

func TestDispatcherDeletesFailedAnalyses(t *testing.T) {
	svc := &fakeSQS{batches: [][]*sqs.Message{{
		message("h1", `{"compound_name":"ibuprofen","pdb_id":"1EQG"}`),
	}}}
	proc := &fakeProcessor{err: errors.New("NVIDIA API error 500: boom")}
	d := New(svc, proc, queueConfig(), zap.NewNop())

	stop := runDispatcher(t, d)
	require.Eventually(t, func() bool { return len(svc.deletedHandles()) == 1 }, 2*time.Second, 10*time.Millisecond)
	stop()

	assert.Len(t, proc.requests(), 1)
}

func TestDispatcherRecoversFromReceiveError(t *testing.T) {
	defer func(b time.Duration) { receiveBackoff = b }(receiveBackoff)
	receiveBackoff = 10 * time.Millisecond

	svc := &fakeSQS{
		receiveErr: errors.New("RequestError: send request failed"),
		batches:    [][]*sqs.Message{{message("h1", `{"compound_name":"aspirin","pdb_id":"1PTY"}`)}},
	}
	proc := &fakeProcessor{}
	d := New(svc, proc, queueConfig(), zap.NewNop())

	stop := runDispatcher(t, d)
	require.Eventually(t, func() bool { return len(svc.deletedHandles()) == 1 }, 2*time.Second, 10*time.Millisecond)
	stop()

	svc.mu.Lock()
	defer svc.mu.Unlock()
	assert.GreaterOrEqual(t, svc.receives, 2)
}

func TestNewWork(t *testing.T) {
	w, err := NewWork(message("h1", `{"compound_name":"ibuprofen","pdb_id":"1eqg","docking_results":{"best":-7.4}}`))

	require.NoError(t, err)
	assert.Equal(t, "id-h1", w.MessageID)
	assert.Equal(t, "h1", w.ReceiptHandle)
	assert.Equal(t, "ibuprofen", w.Request.CompoundName)
	assert.JSONEq(t, `{"best":-7.4}`, string(w.Request.DockingResults))

	_, err = NewWork(&sqs.Message{})
	assert.Error(t, err)

	_, err = NewWork(message("h2", `{}`))
	var vErr *analysis.ValidationError
	assert.True(t, errors.As(err, &vErr))
}
