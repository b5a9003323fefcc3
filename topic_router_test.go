package topicscope

import (
	"testing"

	"github.com/coregx/topicscope/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type routerFixture struct {
	manager  *TopicManager
	router   *TopicRouter
	routed   []model.LogEntry
	appended map[string][]string
}

func newRouterFixture(t *testing.T) *routerFixture {
	t.Helper()
	f := &routerFixture{appended: make(map[string][]string)}

	manager, err := NewTopicManager()
	require.NoError(t, err)
	router, err := NewTopicRouter(
		WithRouterManager(manager),
		WithRouteListener(func(entry model.LogEntry, _ []*model.TopicSession) {
			f.routed = append(f.routed, entry)
		}),
		WithLogListener(func(entry model.LogEntry, sessions []*model.TopicSession) {
			ids := []string{}
			for _, s := range sessions {
				ids = append(ids, s.ID)
			}
			f.appended[entry.Message] = ids
		}),
	)
	require.NoError(t, err)

	f.manager = manager
	f.router = router
	return f
}

func (f *routerFixture) create(t *testing.T, topic string) *model.TopicSession {
	t.Helper()
	s, err := f.manager.CreateSession(topic, SessionOptions{})
	require.NoError(t, err)
	return s
}

func TestTopicRouter_RouteMessage_FanOut(t *testing.T) {
	f := newRouterFixture(t)
	active := f.create(t, "home/#")
	plus := f.create(t, "home/+/temp")
	other := f.create(t, "office/#")

	matched := f.router.RouteMessage("home/kitchen/temp", `{"c":21}`, model.Attributes{"qos": "1"})

	require.Len(t, matched, 2)
	require.Len(t, active.Logs, 1)
	require.Len(t, plus.Logs, 1)
	assert.Empty(t, other.Logs)

	assert.Equal(t, model.LogKindReceived, plus.Logs[0].Kind)
	assert.Equal(t, "home/kitchen/temp", plus.Logs[0].Topic)
	assert.Equal(t, "1", plus.Logs[0].Attributes["qos"])
	assert.NotEqual(t, active.Logs[0].ID, plus.Logs[0].ID)

	assert.Equal(t, 0, active.UnreadCount, "active session never counts unread")
	assert.Equal(t, 1, plus.UnreadCount)
	assert.Len(t, f.routed, 1)
}

func TestTopicRouter_RouteMessage_NoMatch(t *testing.T) {
	f := newRouterFixture(t)
	f.create(t, "a/#")

	assert.Nil(t, f.router.RouteMessage("b/c", "x", nil))
	assert.Empty(t, f.routed)
}

func TestTopicRouter_RouteMessage_Paused(t *testing.T) {
	f := newRouterFixture(t)
	f.create(t, "a")
	paused := f.create(t, "#")
	f.manager.SetPaused(paused.ID, true)

	matched := f.router.RouteMessage("a", "x", nil)

	assert.Len(t, matched, 2)
	assert.Empty(t, paused.Logs)
	assert.Equal(t, 0, paused.UnreadCount)
	assert.Equal(t, 0, paused.TotalReceived)
}

func TestTopicRouter_RouteToActive(t *testing.T) {
	f := newRouterFixture(t)
	assert.Nil(t, f.router.RouteToActive("x", nil))

	s := f.create(t, "stream")
	got := f.router.RouteToActive("frame", nil)

	require.NotNil(t, got)
	assert.Equal(t, s.ID, got.ID)
	require.Len(t, s.Logs, 1)
	assert.Empty(t, s.Logs[0].Topic)
	assert.Equal(t, 0, s.UnreadCount)
}

func TestTopicRouter_AddSentMessage(t *testing.T) {
	f := newRouterFixture(t)
	active := f.create(t, "a/#")
	exact := f.create(t, "cmd/set")

	got := f.router.AddSentMessage("cmd/set", "on")
	require.NotNil(t, got)
	assert.Equal(t, exact.ID, got.ID, "exact topic wins over active")
	require.Len(t, exact.Logs, 1)
	assert.Equal(t, "[→ cmd/set]\non", exact.Logs[0].Message)
	assert.Equal(t, model.LogKindSent, exact.Logs[0].Kind)
	assert.Equal(t, 0, exact.UnreadCount)

	got = f.router.AddSentMessage("a/b", "wildcards are not exact")
	require.NotNil(t, got)
	assert.Equal(t, active.ID, got.ID)

	got = f.router.AddSentMessage("", "raw")
	require.NotNil(t, got)
	assert.Equal(t, active.ID, got.ID)
	assert.Equal(t, "raw", active.Logs[len(active.Logs)-1].Message)
}

func TestTopicRouter_AddSentMessage_NoSessions(t *testing.T) {
	f := newRouterFixture(t)

	assert.Nil(t, f.router.AddSentMessage("x", "y"))
	ids, ok := f.appended["[→ x]\ny"]
	assert.True(t, ok, "listener still sees the entry")
	assert.Empty(t, ids)
}

func TestTopicRouter_AddSystemMessage(t *testing.T) {
	f := newRouterFixture(t)
	active := f.create(t, "a")
	other := f.create(t, "b")

	f.router.AddSystemMessage("to active", "")
	f.router.AddSystemMessage("to other", other.ID)

	require.Len(t, active.Logs, 1)
	assert.Equal(t, "to active", active.Logs[0].Message)
	assert.Equal(t, model.LogKindSystem, active.Logs[0].Kind)
	require.Len(t, other.Logs, 1)
	assert.Equal(t, "to other", other.Logs[0].Message)
	assert.Equal(t, []string{other.ID}, f.appended["to other"])

	assert.Nil(t, f.router.AddSystemMessage("nowhere", "missing"))
}

func TestTopicRouter_BroadcastSystemMessage(t *testing.T) {
	f := newRouterFixture(t)
	a := f.create(t, "a")
	b := f.create(t, "b")
	c := f.create(t, "c")
	f.manager.SetPaused(c.ID, true)

	assert.Equal(t, 2, f.router.BroadcastSystemMessage("Disconnected"))
	assert.Len(t, a.Logs, 1)
	assert.Len(t, b.Logs, 1)
	assert.Empty(t, c.Logs)
	assert.Equal(t, 0, b.UnreadCount, "system notices are not unread")
	assert.Equal(t, []string{a.ID, b.ID}, f.appended["Disconnected"])
}
