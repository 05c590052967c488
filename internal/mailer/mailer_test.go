package mailer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConsoleRecordsMessages(t *testing.T) {
	m := NewConsole()
	m.Silent = true

	require.NoError(t, m.Send(context.Background(), Message{
		To: "parent@example.com", Subject: "Attendance alert", Body: "hello",
	}))
	require.NoError(t, m.Send(context.Background(), Message{
		To: "other@example.com", Subject: "Exam result published", Body: "world",
	}))

	sent := m.Sent()
	require.Len(t, sent, 2)
	assert.Equal(t, "parent@example.com", sent[0].To)
	assert.Equal(t, "Exam result published", sent[1].Subject)
}
