package model

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTopicSession(t *testing.T) {
	s := NewTopicSession("home/+/temp")

	assert.NotEmpty(t, s.ID)
	assert.Equal(t, "home/+/temp", s.Topic)
	assert.Equal(t, "home/+/temp", s.DisplayName)
	assert.Equal(t, DefaultMaxLogs, s.MaxLogs)
	assert.Equal(t, Palette[0].Value, s.Color)
	assert.Equal(t, Palette[0].Bg, s.ColorBg)
	assert.True(t, s.AutoScroll)
	assert.True(t, s.JSONFormat)
	assert.False(t, s.IsSubscribed)
	assert.Empty(t, s.Logs)
	assert.WithinDuration(t, time.Now(), s.Created, time.Second)
}

func TestNewTopicSession_UniqueIDs(t *testing.T) {
	a := NewTopicSession("a")
	b := NewTopicSession("a")
	assert.NotEqual(t, a.ID, b.ID)
}

func TestTopicSession_AddLog_EvictsOldest(t *testing.T) {
	s := NewTopicSession("t")
	s.MaxLogs = 3

	for i := 0; i < 10; i++ {
		assert.True(t, s.AddLog(NewLogEntry(LogKindReceived, fmt.Sprintf("m%d", i))))
		assert.LessOrEqual(t, len(s.Logs), s.MaxLogs)
	}

	require.Len(t, s.Logs, 3)
	assert.Equal(t, "m7", s.Logs[0].Message)
	assert.Equal(t, "m8", s.Logs[1].Message)
	assert.Equal(t, "m9", s.Logs[2].Message)
	assert.Equal(t, 10, s.TotalReceived)
	assert.False(t, s.LastMessage.IsZero())
}

func TestTopicSession_AddLog_Paused(t *testing.T) {
	s := NewTopicSession("t")
	s.IsPaused = true

	assert.False(t, s.AddLog(NewLogEntry(LogKindReceived, "dropped")))
	assert.Empty(t, s.Logs)
	assert.Equal(t, 0, s.TotalReceived)
	assert.True(t, s.LastMessage.IsZero())

	s.IsPaused = false
	assert.True(t, s.AddLog(NewLogEntry(LogKindReceived, "kept")))
	assert.Len(t, s.Logs, 1)
}

func TestTopicSession_AddLog_AssignsFreshID(t *testing.T) {
	a := NewTopicSession("t")
	b := NewTopicSession("t/#")
	entry := NewLogEntry(LogKindReceived, "shared")

	a.AddLog(entry)
	b.AddLog(entry)

	assert.NotEqual(t, a.Logs[0].ID, b.Logs[0].ID)
	assert.NotEmpty(t, a.Logs[0].Time)
}

func TestTopicSession_ClearLogs(t *testing.T) {
	s := NewTopicSession("t")
	s.AddLog(NewLogEntry(LogKindReceived, "x"))
	s.IncrementUnread()
	s.IncrementUnread()

	s.ClearLogs()

	assert.Empty(t, s.Logs)
	assert.Equal(t, 0, s.UnreadCount)
	assert.Equal(t, 1, s.TotalReceived)
}

func TestTopicSession_FilteredLogs(t *testing.T) {
	s := NewTopicSession("t")
	s.AddLog(NewLogEntry(LogKindReceived, `{"Temp": 21}`))
	s.AddLog(NewLogEntry(LogKindReceived, "humidity 40"))
	s.AddLog(NewLogEntry(LogKindSystem, "TEMPERATURE sensor online"))

	tests := []struct {
		name     string
		filter   string
		expected int
	}{
		{name: "no filter", filter: "", expected: 3},
		{name: "case insensitive", filter: "temp", expected: 2},
		{name: "no match", filter: "pressure", expected: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s.Filter = tt.filter
			assert.Len(t, s.FilteredLogs(), tt.expected)
			assert.Len(t, s.Logs, 3)
		})
	}
}

func TestTopicSession_ConfigRoundTrip(t *testing.T) {
	s := NewTopicSession("sensors/#")
	s.DisplayName = "Sensors"
	s.QoS = 1
	s.MaxLogs = 200
	s.IsPaused = true
	s.JSONFormat = false
	s.AddLog(NewLogEntry(LogKindReceived, "not persisted"))

	cfg := s.ToConfig()
	restored := NewTopicSessionFromConfig(cfg)

	assert.Equal(t, s.ID, restored.ID)
	assert.Equal(t, "Sensors", restored.DisplayName)
	assert.Equal(t, byte(1), restored.QoS)
	assert.Equal(t, 200, restored.MaxLogs)
	assert.True(t, restored.IsPaused)
	assert.False(t, restored.JSONFormat)
	assert.Equal(t, s.Created, restored.Created)
	assert.Empty(t, restored.Logs)
	assert.False(t, restored.IsSubscribed)
}

func TestNewTopicSessionFromConfig_Defaults(t *testing.T) {
	restored := NewTopicSessionFromConfig(SessionConfig{Topic: "a/b"})

	assert.NotEmpty(t, restored.ID)
	assert.Equal(t, "a/b", restored.DisplayName)
	assert.Equal(t, DefaultMaxLogs, restored.MaxLogs)
	assert.Equal(t, Palette[0].Value, restored.Color)
}

func TestTopicSession_Clone(t *testing.T) {
	s := NewTopicSession("t")
	s.AddLog(NewLogEntry(LogKindReceived, "x"))

	c := s.Clone()
	c.AddLog(NewLogEntry(LogKindReceived, "y"))
	c.UnreadCount = 5

	assert.Len(t, s.Logs, 1)
	assert.Equal(t, 0, s.UnreadCount)
}

func TestTopicSession_Info(t *testing.T) {
	s := NewTopicSession("t")
	s.AddLog(NewLogEntry(LogKindReceived, "x"))
	s.IncrementUnread()

	info := s.Info()
	assert.Equal(t, s.ID, info.ID)
	assert.Equal(t, 1, info.LogCount)
	assert.Equal(t, 1, info.UnreadCount)
	assert.Equal(t, 1, info.TotalReceived)
}
