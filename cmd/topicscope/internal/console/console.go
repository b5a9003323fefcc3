// Package console implements the line-oriented topicscope front end.
//
// Lines starting with a slash are commands (/help lists them); any other line
// is sent through the connection. Inbound messages, sent payloads and system
// notices are printed as they happen, tagged with the color of the session
// that received them.
package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/coregx/topicscope"
	"github.com/coregx/topicscope/model"
)

// Console reads commands and renders client notifications.
//
// Console implements topicscope.NotificationService, so it must exist before
// the client it observes. Create it, pass it to topicscope.WithNotifications,
// then Attach the client.
//
// Example:
//
//	con := console.New(os.Stdout, logger)
//	client, _ := topicscope.NewClient(
//	    topicscope.WithTransport(model.ModeMQTT, mqtt.NewTransport(logger)),
//	    topicscope.WithLogger(logger),
//	    topicscope.WithNotifications(con),
//	)
//	con.Attach(client)
//	con.Run(ctx, os.Stdin)
type Console struct {
	out    io.Writer
	outMu  sync.Mutex
	logger topicscope.Logger
	client *topicscope.Client

	renderer *lipgloss.Renderer
	dim      lipgloss.Style
	errStyle lipgloss.Style
}

// New creates a console writing to out.
func New(out io.Writer, logger topicscope.Logger) *Console {
	r := lipgloss.NewRenderer(out)
	return &Console{
		out:      out,
		logger:   logger,
		renderer: r,
		dim:      r.NewStyle().Faint(true),
		errStyle: r.NewStyle().Foreground(lipgloss.Color("#ef4444")),
	}
}

// Attach sets the client commands act on.
func (c *Console) Attach(client *topicscope.Client) {
	c.client = client
}

// Run executes lines from in until EOF, /quit or ctx is done.
func (c *Console) Run(ctx context.Context, in io.Reader) error {
	if c.client == nil {
		return fmt.Errorf("console: no client attached")
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		scanner.Buffer(make([]byte, 64*1024), 1024*1024)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		readErr <- scanner.Err()
	}()

	c.printf("%s\n", c.dim.Render("topicscope ready, /help lists commands"))

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-readErr:
					return err
				default:
					return nil
				}
			}
			if quit := c.Execute(line); quit {
				return nil
			}
		}
	}
}

// Execute runs one input line and reports whether the console should exit.
func (c *Console) Execute(line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}

	if !strings.HasPrefix(line, "/") {
		// Not connected and missing publish topic are reported by the client.
		_ = c.client.Send(line)
		return false
	}

	fields := strings.Fields(line)
	name := strings.ToLower(strings.TrimPrefix(fields[0], "/"))
	cmd, ok := commands[name]
	if !ok {
		c.errorf("unknown command /%s (try /help)", name)
		return false
	}

	err := cmd.run(c, fields[1:])
	if err == errQuit {
		return true
	}
	if err != nil {
		c.errorf("%v", err)
	}
	return false
}

// NotifyStateChanged is only logged; /list renders the state on demand.
func (c *Console) NotifyStateChanged(_ context.Context, state model.ManagerState) error {
	c.logger.Debugf("Topics changed: sessions=%d, active=%s", len(state.Sessions), state.ActiveTopicID)
	return nil
}

// NotifyStatusChanged is only logged; the client announces transitions
// through system entries.
func (c *Console) NotifyStatusChanged(_ context.Context, status model.ConnectionStatus) error {
	c.logger.Debugf("Connection status: %s", status)
	return nil
}

// NotifyMessageRouted prints the message unless every receiving session is
// muted.
func (c *Console) NotifyMessageRouted(_ context.Context, entry model.LogEntry, sessions []model.SessionInfo) error {
	var target *model.SessionInfo
	for i := range sessions {
		if !sessions[i].IsMuted {
			target = &sessions[i]
			break
		}
	}
	if target == nil {
		return nil
	}

	tag := entry.Topic
	if tag == "" {
		tag = target.Topic
	}
	c.printf("%s %s %s %s\n",
		c.dim.Render(entry.Time), string(entry.Kind), c.tag(tag, target.Color), entry.Message)
	return nil
}

// NotifyLogAppended prints sent and system entries.
func (c *Console) NotifyLogAppended(_ context.Context, entry model.LogEntry, _ []string) error {
	switch entry.Kind {
	case model.LogKindSystem:
		c.printf("%s %s\n", c.dim.Render(entry.Time+" --"), entry.Message)
	case model.LogKindSent:
		c.printf("%s %s %s\n", c.dim.Render(entry.Time), string(entry.Kind), entry.Message)
	}
	return nil
}

func (c *Console) tag(topic, color string) string {
	label := "[" + topic + "]"
	if color == "" {
		return c.dim.Render(label)
	}
	return c.renderer.NewStyle().Foreground(lipgloss.Color(color)).Bold(true).Render(label)
}

func (c *Console) printf(format string, args ...interface{}) {
	c.outMu.Lock()
	defer c.outMu.Unlock()
	fmt.Fprintf(c.out, format, args...)
}

func (c *Console) errorf(format string, args ...interface{}) {
	c.printf("%s\n", c.errStyle.Render("error: "+fmt.Sprintf(format, args...)))
}
