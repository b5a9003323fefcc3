package topicscope

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoggerOrNoop(t *testing.T) {
	assert.IsType(t, &NoopLogger{}, LoggerOrNoop(nil))

	custom := &NoopLogger{}
	assert.Same(t, custom, LoggerOrNoop(custom))
}
