package console

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/coregx/topicscope/model"
	"gopkg.in/yaml.v3"
)

// errQuit ends Run.
var errQuit = errors.New("quit")

const defaultLogLines = 20

type command struct {
	usage string
	help  string
	run   func(c *Console, args []string) error
}

var commands map[string]command

func init() {
	commands = map[string]command{
		"connect":     {"/connect", "connect, or disconnect when a connection is up", cmdConnect},
		"disconnect":  {"/disconnect", "close the connection", cmdDisconnect},
		"add":         {"/add <filter>", "add a topic session (+ and # wildcards allowed)", cmdAdd},
		"del":         {"/del <n|id>", "delete a topic session", cmdDelete},
		"switch":      {"/switch <n|id>", "make a session active", cmdSwitch},
		"move":        {"/move <n|id> <pos>", "move a session to a 1-based position", cmdMove},
		"list":        {"/list", "list sessions", cmdList},
		"logs":        {"/logs [n]", "print the last n entries of the active session", cmdLogs},
		"filter":      {"/filter [text]", "filter the active session's logs, empty clears", cmdFilter},
		"pause":       {"/pause", "drop incoming messages for the active session", flagCmd(setPaused, true)},
		"resume":      {"/resume", "resume the active session", flagCmd(setPaused, false)},
		"mute":        {"/mute", "stop printing the active session's messages", flagCmd(setMuted, true)},
		"unmute":      {"/unmute", "print the active session's messages again", flagCmd(setMuted, false)},
		"clear":       {"/clear", "clear the active session's logs", cmdClear},
		"idle":        {"/idle <sec>", "disconnect after sec seconds without traffic, 0 disables", cmdIdle},
		"url":         {"/url [url]", "set the connection URL, empty falls back to the config", cmdURL},
		"mode":        {"/mode mqtt|stream", "select the transport", cmdMode},
		"pub":         {"/pub <topic>", "set the publish topic used in mqtt mode", cmdPub},
		"apply":       {"/apply", "use the URL composed from the connection config", cmdApply},
		"suball":      {"/suball", "subscribe every session", cmdSubAll},
		"unsuball":    {"/unsuball", "unsubscribe every session", cmdUnsubAll},
		"cleartopics": {"/cleartopics", "remove every session", cmdClearTopics},
		"history":     {"/history", "list recently sent payloads", cmdHistory},
		"export":      {"/export <file>", "write sessions to a YAML file", cmdExport},
		"import":      {"/import <file>", "replace sessions with a YAML file", cmdImport},
		"status":      {"/status", "show connection status", cmdStatus},
		"help":        {"/help", "show this help", cmdHelp},
		"quit":        {"/quit", "exit", cmdQuit},
	}
}

func cmdConnect(c *Console, _ []string) error {
	// Failures are reported by the client as system entries.
	_ = c.client.Connect()
	return nil
}

func cmdDisconnect(c *Console, _ []string) error {
	c.client.Disconnect()
	return nil
}

func cmdAdd(c *Console, args []string) error {
	if len(args) != 1 {
		return usageError("add")
	}
	s, err := c.client.CreateTopic(args[0])
	if err != nil {
		return nil // Reported as a system entry
	}
	c.printf("added %s %s\n", c.tag(s.Topic, s.Color), c.dim.Render(s.ID))
	return nil
}

func cmdDelete(c *Console, args []string) error {
	if len(args) != 1 {
		return usageError("del")
	}
	s, err := c.resolve(args[0])
	if err != nil {
		return err
	}
	c.client.DeleteTopic(s.ID)
	c.printf("deleted %s\n", s.Topic)
	return nil
}

func cmdSwitch(c *Console, args []string) error {
	if len(args) != 1 {
		return usageError("switch")
	}
	s, err := c.resolve(args[0])
	if err != nil {
		return err
	}
	c.client.SwitchTopic(s.ID)
	c.printf("active: %s\n", c.tag(s.Topic, s.Color))
	return nil
}

func cmdMove(c *Console, args []string) error {
	if len(args) != 2 {
		return usageError("move")
	}
	s, err := c.resolve(args[0])
	if err != nil {
		return err
	}
	pos, err := strconv.Atoi(args[1])
	if err != nil || pos < 1 {
		return fmt.Errorf("position must be a number >= 1, got %q", args[1])
	}
	if !c.client.MoveTopic(s.ID, pos-1) {
		return fmt.Errorf("cannot move %s to %d", s.Topic, pos)
	}
	return nil
}

func cmdList(c *Console, _ []string) error {
	state := c.client.State()
	if len(state.Sessions) == 0 {
		c.printf("no topics, /add one\n")
		return nil
	}
	for i, s := range state.Sessions {
		marker := " "
		if s.ID == state.ActiveTopicID {
			marker = "*"
		}
		var flags []string
		if s.IsSubscribed {
			flags = append(flags, "sub")
		}
		if s.IsPaused {
			flags = append(flags, "paused")
		}
		if s.IsMuted {
			flags = append(flags, "muted")
		}
		c.printf("%s %2d %s unread=%d total=%d %s\n",
			marker, i+1, c.tag(s.Topic, s.Color), s.UnreadCount, s.TotalReceived,
			c.dim.Render(strings.Join(flags, ",")))
	}
	return nil
}

func cmdLogs(c *Console, args []string) error {
	n := defaultLogLines
	if len(args) > 0 {
		v, err := strconv.Atoi(args[0])
		if err != nil || v < 1 {
			return fmt.Errorf("line count must be a number >= 1, got %q", args[0])
		}
		n = v
	}
	s, err := c.active()
	if err != nil {
		return err
	}

	logs := s.FilteredLogs()
	if len(logs) > n {
		logs = logs[len(logs)-n:]
	}
	for _, entry := range logs {
		text := entry.Message
		if s.JSONFormat {
			text = strings.TrimRight(entry.Pretty(), "\n")
		}
		c.printf("%s %s %s\n", c.dim.Render(entry.Time), string(entry.Kind), text)
	}
	return nil
}

func cmdFilter(c *Console, args []string) error {
	s, err := c.active()
	if err != nil {
		return err
	}
	c.client.SetFilter(s.ID, strings.Join(args, " "))
	return nil
}

type flagSetter func(c *Console, id string, on bool) bool

func setPaused(c *Console, id string, on bool) bool { return c.client.SetPaused(id, on) }
func setMuted(c *Console, id string, on bool) bool  { return c.client.SetMuted(id, on) }

func flagCmd(set flagSetter, on bool) func(c *Console, args []string) error {
	return func(c *Console, _ []string) error {
		s, err := c.active()
		if err != nil {
			return err
		}
		set(c, s.ID, on)
		return nil
	}
}

func cmdClear(c *Console, _ []string) error {
	s, err := c.active()
	if err != nil {
		return err
	}
	c.client.ClearLogs(s.ID)
	return nil
}

func cmdIdle(c *Console, args []string) error {
	if len(args) != 1 {
		return usageError("idle")
	}
	secs, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("seconds must be a number, got %q", args[0])
	}
	c.client.SetIdleTimeout(secs)
	return nil
}

func cmdURL(c *Console, args []string) error {
	c.client.SetURL(strings.Join(args, " "))
	return nil
}

func cmdMode(c *Console, args []string) error {
	if len(args) != 1 {
		return usageError("mode")
	}
	cfg := c.client.FormState().Connection
	cfg.Mode = model.Mode(strings.ToLower(args[0]))
	return c.client.SetConnectionConfig(cfg)
}

func cmdPub(c *Console, args []string) error {
	if len(args) != 1 {
		return usageError("pub")
	}
	cfg := c.client.FormState().Connection
	cfg.PubTopic = args[0]
	return c.client.SetConnectionConfig(cfg)
}

func cmdApply(c *Console, _ []string) error {
	url, err := c.client.ApplyConnectionConfig()
	if err != nil {
		return nil // Reported as a system entry
	}
	c.printf("url: %s\n", url)
	return nil
}

func cmdSubAll(c *Console, _ []string) error {
	_ = c.client.SubscribeAll()
	return nil
}

func cmdUnsubAll(c *Console, _ []string) error {
	_ = c.client.UnsubscribeAll()
	return nil
}

func cmdClearTopics(c *Console, _ []string) error {
	c.client.ClearTopics()
	return nil
}

func cmdHistory(c *Console, _ []string) error {
	for i, item := range c.client.History() {
		c.printf("%2d %s\n", i+1, item)
	}
	return nil
}

func cmdExport(c *Console, args []string) error {
	if len(args) != 1 {
		return usageError("export")
	}
	data, err := yaml.Marshal(c.client.ExportTopics())
	if err != nil {
		return fmt.Errorf("encode topics: %w", err)
	}
	if err := os.WriteFile(args[0], data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", args[0], err)
	}
	c.printf("exported to %s\n", args[0])
	return nil
}

func cmdImport(c *Console, args []string) error {
	if len(args) != 1 {
		return usageError("import")
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read %s: %w", args[0], err)
	}
	var cfg model.TopicsConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return fmt.Errorf("decode %s: %w", args[0], err)
	}
	return c.client.ImportTopics(cfg)
}

func cmdStatus(c *Console, _ []string) error {
	form := c.client.FormState()
	url := form.URL
	if url == "" {
		url = form.Connection.BuildURL()
	}
	mode := form.Connection.Mode
	if mode == "" {
		mode = model.ModeMQTT
	}

	c.printf("status: %s\n", c.client.Status())
	c.printf("url:    %s (%s)\n", url, mode)
	if form.Connection.PubTopic != "" {
		c.printf("pub:    %s\n", form.Connection.PubTopic)
	}
	if form.IdleSeconds > 0 {
		c.printf("idle:   %ds\n", form.IdleSeconds)
	}
	if s := c.client.ActiveSession(); s != nil {
		c.printf("active: %s\n", c.tag(s.Topic, s.Color))
	}
	return nil
}

func cmdHelp(c *Console, _ []string) error {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		cmd := commands[name]
		c.printf("  %-20s %s\n", cmd.usage, c.dim.Render(cmd.help))
	}
	c.printf("  %-20s %s\n", "<text>", c.dim.Render("send text (to the publish topic in mqtt mode)"))
	return nil
}

func cmdQuit(*Console, []string) error {
	return errQuit
}

func usageError(name string) error {
	return fmt.Errorf("usage: %s", commands[name].usage)
}

// resolve finds a session by 1-based position, id or exact topic.
func (c *Console) resolve(ref string) (*model.TopicSession, error) {
	sessions := c.client.Sessions()
	if n, err := strconv.Atoi(ref); err == nil && n >= 1 && n <= len(sessions) {
		return sessions[n-1], nil
	}
	for _, s := range sessions {
		if s.ID == ref || s.Topic == ref {
			return s, nil
		}
	}
	return nil, fmt.Errorf("no topic %q", ref)
}

func (c *Console) active() (*model.TopicSession, error) {
	s := c.client.ActiveSession()
	if s == nil {
		return nil, fmt.Errorf("no active topic")
	}
	return s, nil
}
