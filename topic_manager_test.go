package topicscope

import (
	"testing"

	"github.com/coregx/topicscope/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T) (*TopicManager, *[]model.ManagerState) {
	t.Helper()
	var states []model.ManagerState
	m, err := NewTopicManager(WithStateListener(func(s model.ManagerState) {
		states = append(states, s)
	}))
	require.NoError(t, err)
	return m, &states
}

func TestTopicManager_CreateSession(t *testing.T) {
	m, states := newTestManager(t)

	first, err := m.CreateSession("home/+/temp", SessionOptions{})
	require.NoError(t, err)
	second, err := m.CreateSession("office/#", SessionOptions{QoS: 1, DisplayName: "Office"})
	require.NoError(t, err)

	assert.Equal(t, first.ID, m.ActiveID(), "first session becomes active")
	assert.Equal(t, model.Palette[0].Value, first.Color)
	assert.Equal(t, model.Palette[1].Value, second.Color)
	assert.Equal(t, byte(1), second.QoS)
	assert.Equal(t, "Office", second.DisplayName)
	assert.Len(t, *states, 2)
}

func TestTopicManager_CreateSession_Idempotent(t *testing.T) {
	m, states := newTestManager(t)

	first, err := m.CreateSession("a/b", SessionOptions{})
	require.NoError(t, err)
	again, err := m.CreateSession("a/b", SessionOptions{})
	require.NoError(t, err)

	assert.Same(t, first, again)
	assert.Equal(t, 1, m.Len())
	assert.Len(t, *states, 1)
}

func TestTopicManager_CreateSession_Invalid(t *testing.T) {
	m, states := newTestManager(t)

	tests := []struct {
		name  string
		topic string
		opts  SessionOptions
	}{
		{name: "empty", topic: ""},
		{name: "hash not last", topic: "a/#/b"},
		{name: "plus inside level", topic: "a/b+"},
		{name: "qos out of range", topic: "a", opts: SessionOptions{QoS: 3}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.CreateSession(tt.topic, tt.opts)
			assert.True(t, IsValidation(err))
		})
	}
	assert.Equal(t, 0, m.Len())
	assert.Empty(t, *states)
}

func TestTopicManager_DeleteSession_PromotesNext(t *testing.T) {
	m, _ := newTestManager(t)
	a, _ := m.CreateSession("a", SessionOptions{})
	b, _ := m.CreateSession("b", SessionOptions{})
	c, _ := m.CreateSession("c", SessionOptions{})

	require.True(t, m.SwitchToSession(b.ID))
	require.True(t, m.DeleteSession(b.ID))
	assert.Equal(t, c.ID, m.ActiveID(), "following session takes over")

	require.True(t, m.DeleteSession(c.ID))
	assert.Equal(t, a.ID, m.ActiveID(), "last position falls back to new last")

	require.True(t, m.DeleteSession(a.ID))
	assert.Empty(t, m.ActiveID())
	assert.Nil(t, m.ActiveSession())

	assert.False(t, m.DeleteSession("missing"))
}

func TestTopicManager_DeleteSession_InactiveKeepsActive(t *testing.T) {
	m, _ := newTestManager(t)
	a, _ := m.CreateSession("a", SessionOptions{})
	b, _ := m.CreateSession("b", SessionOptions{})

	require.True(t, m.DeleteSession(b.ID))
	assert.Equal(t, a.ID, m.ActiveID())
}

func TestTopicManager_SwitchToSession_ResetsUnread(t *testing.T) {
	m, _ := newTestManager(t)
	m.CreateSession("a", SessionOptions{})
	b, _ := m.CreateSession("b", SessionOptions{})
	b.IncrementUnread()
	b.IncrementUnread()

	require.True(t, m.SwitchToSession(b.ID))
	assert.Equal(t, 0, b.UnreadCount)
	assert.True(t, m.IsActive(b.ID))

	assert.False(t, m.SwitchToSession("missing"))
	assert.True(t, m.IsActive(b.ID))
}

func TestTopicManager_FindMatchingSessions(t *testing.T) {
	m, _ := newTestManager(t)
	all, _ := m.CreateSession("#", SessionOptions{})
	plus, _ := m.CreateSession("home/+/temp", SessionOptions{})
	m.CreateSession("office/temp", SessionOptions{})

	matched := m.FindMatchingSessions("home/kitchen/temp")
	require.Len(t, matched, 2)
	assert.Equal(t, all.ID, matched[0].ID)
	assert.Equal(t, plus.ID, matched[1].ID)

	assert.Len(t, m.FindMatchingSessions("garden"), 1)
}

func TestTopicManager_MoveSession(t *testing.T) {
	m, _ := newTestManager(t)
	a, _ := m.CreateSession("a", SessionOptions{})
	b, _ := m.CreateSession("b", SessionOptions{})
	c, _ := m.CreateSession("c", SessionOptions{})

	order := func() []string {
		var ids []string
		for _, s := range m.AllSessions() {
			ids = append(ids, s.ID)
		}
		return ids
	}

	require.True(t, m.MoveSession(c.ID, 0))
	assert.Equal(t, []string{c.ID, a.ID, b.ID}, order())

	require.True(t, m.MoveSession(c.ID, 99))
	assert.Equal(t, []string{a.ID, b.ID, c.ID}, order())

	require.True(t, m.MoveSession(a.ID, -5))
	assert.Equal(t, []string{a.ID, b.ID, c.ID}, order())

	assert.False(t, m.MoveSession("missing", 0))
}

func TestTopicManager_MarkAllUnsubscribed(t *testing.T) {
	m, states := newTestManager(t)
	a, _ := m.CreateSession("a", SessionOptions{})
	b, _ := m.CreateSession("b", SessionOptions{})
	m.SetSubscribed(a.ID, true)
	m.SetSubscribed(b.ID, true)

	before := len(*states)
	m.MarkAllUnsubscribed()
	assert.Len(t, *states, before+1, "one notification for the whole batch")
	assert.False(t, a.IsSubscribed)
	assert.False(t, b.IsSubscribed)

	m.MarkAllUnsubscribed()
	assert.Len(t, *states, before+1, "no change, no notification")
}

func TestTopicManager_ExportImport(t *testing.T) {
	m, _ := newTestManager(t)
	a, _ := m.CreateSession("a/#", SessionOptions{QoS: 1})
	b, _ := m.CreateSession("b/+", SessionOptions{})
	m.SwitchToSession(b.ID)
	m.MoveSession(b.ID, 0)

	cfg := m.ExportConfig()
	require.Len(t, cfg.Sessions, 2)
	assert.Equal(t, b.ID, cfg.ActiveTopicID)
	assert.Equal(t, []string{b.ID, a.ID}, cfg.TopicOrder)
	assert.Equal(t, 0, cfg.Sessions[0].Position)
	assert.Equal(t, b.ID, cfg.Sessions[0].ID)

	restored, states := newTestManager(t)
	restored.ImportConfig(cfg)

	assert.Len(t, *states, 1, "import notifies once")
	assert.Equal(t, b.ID, restored.ActiveID())
	require.NotNil(t, restored.Session(a.ID))
	assert.Equal(t, byte(1), restored.Session(a.ID).QoS)
	assert.Equal(t, cfg.TopicOrder, restored.ExportConfig().TopicOrder)

	next, err := restored.CreateSession("c", SessionOptions{})
	require.NoError(t, err)
	assert.Equal(t, model.Palette[2].Value, next.Color, "color cursor continues after import")
}

func TestTopicManager_ImportConfig_Sanitizes(t *testing.T) {
	m, _ := newTestManager(t)
	m.CreateSession("old", SessionOptions{})

	m.ImportConfig(model.TopicsConfig{
		Sessions: []model.SessionConfig{
			{ID: "1", Topic: "x"},
			{ID: "2", Topic: "x"},
			{ID: "1", Topic: "y"},
			{ID: "3", Topic: "z"},
		},
		ActiveTopicID: "gone",
		TopicOrder:    []string{"3", "missing", "3"},
	})

	cfg := m.ExportConfig()
	assert.Equal(t, []string{"3", "1"}, cfg.TopicOrder)
	assert.Equal(t, "3", m.ActiveID(), "unknown active falls back to first")
	assert.Nil(t, m.FindByTopic("old"))
	assert.Nil(t, m.FindByTopic("y"))
}

func TestTopicManager_Clear(t *testing.T) {
	m, _ := newTestManager(t)
	m.CreateSession("a", SessionOptions{})
	m.CreateSession("b", SessionOptions{})

	m.Clear()
	assert.Equal(t, 0, m.Len())
	assert.Empty(t, m.ActiveID())

	s, err := m.CreateSession("c", SessionOptions{})
	require.NoError(t, err)
	assert.Equal(t, model.Palette[0].Value, s.Color, "color cursor restarts")
}

func TestTopicManager_State(t *testing.T) {
	m, _ := newTestManager(t)
	a, _ := m.CreateSession("a", SessionOptions{})
	a.AddLog(model.NewLogEntry(model.LogKindReceived, "x"))

	state := m.State()
	require.Len(t, state.Sessions, 1)
	assert.Equal(t, a.ID, state.ActiveTopicID)
	assert.Equal(t, 1, state.Sessions[0].LogCount)
}

func TestNewTopicRouter_RequiresManager(t *testing.T) {
	_, err := NewTopicRouter()
	require.Error(t, err)

	var e *Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, ErrCodeConfiguration, e.Code)
}
