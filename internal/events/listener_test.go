package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/helixir/research-report-service/internal/domain"
)

// fakeReader replays queued messages and then blocks until ctx is done.
type fakeReader struct {
	msgs      []kafka.Message
	errs      []error
	committed []int64
	closed    bool
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	if len(r.errs) > 0 {
		err := r.errs[0]
		r.errs = r.errs[1:]
		return kafka.Message{}, err
	}
	if len(r.msgs) > 0 {
		msg := r.msgs[0]
		r.msgs = r.msgs[1:]
		return msg, nil
	}
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *fakeReader) Close() error {
	r.closed = true
	return nil
}

type mockSubmitter struct {
	mock.Mock
}

func (m *mockSubmitter) SubmitDecision(ctx context.Context, threadID string, action domain.HumanAction, feedback string) (*domain.Thread, error) {
	args := m.Called(ctx, threadID, action, feedback)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Thread), args.Error(1)
}

func decisionMessage(t *testing.T, offset int64, ev DecisionEvent) kafka.Message {
	t.Helper()
	payload, err := json.Marshal(ev)
	require.NoError(t, err)
	return kafka.Message{Key: []byte(ev.ThreadID), Value: payload, Offset: offset}
}

func newTestListener(reader messageReader, submitter DecisionSubmitter) *DecisionListener {
	l := newDecisionListener(reader, submitter, zerolog.Nop())
	l.retryBackoff = time.Millisecond
	l.maxRetryBackoff = 4 * time.Millisecond
	return l
}

func runListener(t *testing.T, l *DecisionListener) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	err := l.Run(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestDecisionListener_SubmitsDecisions(t *testing.T) {
	reader := &fakeReader{msgs: []kafka.Message{
		decisionMessage(t, 10, DecisionEvent{ThreadID: "t-1", Action: "approve"}),
		decisionMessage(t, 11, DecisionEvent{ThreadID: "t-2", Action: "reject", Feedback: "add numbers"}),
	}}
	submitter := &mockSubmitter{}
	submitter.On("SubmitDecision", mock.Anything, "t-1", domain.HumanActionApprove, "").
		Return(&domain.Thread{ID: "t-1", Pending: domain.PendingFinished}, nil).Once()
	submitter.On("SubmitDecision", mock.Anything, "t-2", domain.HumanActionReject, "add numbers").
		Return(&domain.Thread{ID: "t-2", Pending: domain.PendingOn(domain.StepWrite)}, nil).Once()

	runListener(t, newTestListener(reader, submitter))

	submitter.AssertExpectations(t)
	assert.Equal(t, []int64{10, 11}, reader.committed)
}

func TestDecisionListener_SkipsMalformedAndFailedEvents(t *testing.T) {
	reader := &fakeReader{
		errs: []error{errors.New("transient read failure")},
		msgs: []kafka.Message{
			{Value: []byte("not json"), Offset: 1},
			decisionMessage(t, 2, DecisionEvent{ThreadID: "stale", Action: "approve"}),
			decisionMessage(t, 3, DecisionEvent{ThreadID: "t-3", Action: "approve"}),
		},
	}
	submitter := &mockSubmitter{}
	submitter.On("SubmitDecision", mock.Anything, "stale", domain.HumanActionApprove, "").
		Return(nil, domain.NewInvalidStateError("stale", domain.PendingFinished, "submit decision")).Once()
	submitter.On("SubmitDecision", mock.Anything, "t-3", domain.HumanActionApprove, "").
		Return(&domain.Thread{ID: "t-3", Pending: domain.PendingFinished}, nil).Once()

	runListener(t, newTestListener(reader, submitter))

	submitter.AssertExpectations(t)
	submitter.AssertNumberOfCalls(t, "SubmitDecision", 2)
	assert.Equal(t, []int64{1, 2, 3}, reader.committed)
}

func TestDecisionListener_RetriesBusyThreadUntilApplied(t *testing.T) {
	reader := &fakeReader{msgs: []kafka.Message{
		decisionMessage(t, 7, DecisionEvent{ThreadID: "t-busy", Action: "approve"}),
	}}
	submitter := &mockSubmitter{}
	submitter.On("SubmitDecision", mock.Anything, "t-busy", domain.HumanActionApprove, "").
		Return(nil, domain.NewThreadBusyError("t-busy")).Once()
	submitter.On("SubmitDecision", mock.Anything, "t-busy", domain.HumanActionApprove, "").
		Return(nil, domain.ErrServiceUnavailable).Once()
	submitter.On("SubmitDecision", mock.Anything, "t-busy", domain.HumanActionApprove, "").
		Return(&domain.Thread{ID: "t-busy", Pending: domain.PendingFinished}, nil).Once()

	runListener(t, newTestListener(reader, submitter))

	submitter.AssertExpectations(t)
	submitter.AssertNumberOfCalls(t, "SubmitDecision", 3)
	assert.Equal(t, []int64{7}, reader.committed)
}

func TestDecisionListener_LeavesUnappliedDecisionUncommitted(t *testing.T) {
	reader := &fakeReader{msgs: []kafka.Message{
		decisionMessage(t, 4, DecisionEvent{ThreadID: "t-down", Action: "reject", Feedback: "more data"}),
	}}
	submitter := &mockSubmitter{}
	submitter.On("SubmitDecision", mock.Anything, "t-down", domain.HumanActionReject, "more data").
		Return(nil, errors.New("connection refused"))

	runListener(t, newTestListener(reader, submitter))

	assert.Greater(t, len(submitter.Calls), 1)
	assert.Empty(t, reader.committed)
}

func TestDecisionListener_Close(t *testing.T) {
	reader := &fakeReader{}
	l := newDecisionListener(reader, &mockSubmitter{}, zerolog.Nop())

	require.NoError(t, l.Close())
	assert.True(t, reader.closed)
}
