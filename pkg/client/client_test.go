package client_test

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastygo/classtrack/domain"
	"github.com/fastygo/classtrack/internal/testutil"
	"github.com/fastygo/classtrack/pkg/client"
)

func newClient(t *testing.T, userID string, tasks ...domain.Task) *client.Client {
	t.Helper()
	store := testutil.NewTestStore(t, tasks...)
	srv := testutil.NewTestServer(t, store, testutil.NewClock(time.Date(2024, 10, 1, 9, 0, 0, 0, time.UTC)))
	return client.New("http://classtrack", testutil.Token(t, userID, "c1"), client.WithDialer(srv.Dial))
}

func TestClientRoundTrip(t *testing.T) {
	deadline := time.Date(2024, 9, 28, 9, 0, 0, 0, time.UTC)
	late := testutil.Task("t2", "c1", "Bahasa")
	late.Deadline = &deadline
	c := newClient(t, "u1", testutil.Task("t1", "c1", "Matematika", "A", "B"), late)
	ctx := context.Background()

	result, err := c.SetTaskStatus(ctx, "t1", true)
	require.NoError(t, err)
	assert.True(t, result.FullyCompleted)
	assert.True(t, result.Archived)
	assert.Equal(t, domain.StateComplete, result.State)
	require.Len(t, result.Statuses, 3)

	statuses, err := c.GetStatuses(ctx, "t1")
	require.NoError(t, err)
	require.Len(t, statuses, 3)
	assert.Equal(t, domain.TaskKey("t1"), statuses[0].Key())
	assert.Equal(t, domain.SubtaskKey("t1", "A"), statuses[1].Key())

	records, err := c.SetStatus(ctx, domain.SubtaskKey("t1", "B"), false)
	require.NoError(t, err)
	assert.False(t, domain.NewIndex(records).IsCompleted(domain.SubtaskKey("t1", "B")))
	assert.True(t, domain.NewIndex(records).IsCompleted(domain.TaskKey("t1")))

	count, err := c.UncompletedCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	overdue, err := c.OverdueTasks(ctx)
	require.NoError(t, err)
	assert.Equal(t, []domain.OverdueTask{{TaskID: "t2", Title: "Bahasa", DaysOverdue: 3}}, overdue)

	history, err := c.History(ctx)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "t1", history[0].TaskID)
}

func TestClientKeepsServerErrorCodes(t *testing.T) {
	c := newClient(t, "u1", testutil.Task("t1", "c1", "Matematika", "A"))

	_, err := c.GetStatuses(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, domain.IsDomainError(err, domain.ErrCodeNotFound))

	_, err = c.GetGroupProgress(context.Background(), "t1")
	assert.True(t, domain.IsDomainError(err, domain.ErrCodeInvalid))
}

func TestClientTransportFailureIsTransient(t *testing.T) {
	c := client.New("http://classtrack", "token", client.WithDialer(func(string) (net.Conn, error) {
		return nil, &net.OpError{Op: "dial", Net: "tcp", Err: net.UnknownNetworkError("offline")}
	}), client.WithTimeout(time.Second))

	_, err := c.SetTaskStatus(context.Background(), "t1", true)
	require.Error(t, err)
	assert.True(t, domain.IsDomainError(err, domain.ErrCodeTransientNetwork))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = c.GetStatuses(ctx, "t1")
	assert.True(t, domain.IsDomainError(err, domain.ErrCodeTransientNetwork))
}
