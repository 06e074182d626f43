package lavalink

import (
	"context"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
)

// pendingCommand tracks one in-flight command until its single resolution.
type pendingCommand struct {
	id      string
	node    string
	op      string
	guildID string
	started time.Time
	result  chan error
}

// correlator gives every node command a correlation id and guarantees it
// resolves exactly once, either with the node's response or with
// ErrCommandTimeout. Timeouts feed the owning node's degrade counter;
// completed round-trips reset it.
type correlator struct {
	timeout time.Duration
	logger  Logger
	metrics *MetricsCollector

	mu      sync.Mutex
	pending map[string]*pendingCommand
	seq     atomic.Uint64
}

func newCorrelator(timeout time.Duration, logger Logger, metrics *MetricsCollector) *correlator {
	return &correlator{
		timeout: timeout,
		logger:  logger,
		metrics: metrics,
		pending: make(map[string]*pendingCommand),
	}
}

// execute runs one command against a node under the command timeout.
// The command function must honor its context; a command that outlives
// the timeout is abandoned and its eventual result discarded.
func (c *correlator) execute(ctx context.Context, node *Node, op, guildID string, fn func(context.Context) error) error {
	command := &pendingCommand{
		id:      fmt.Sprintf("cmd-%d-%d", time.Now().UnixNano(), c.seq.Add(1)),
		node:    node.Name(),
		op:      op,
		guildID: guildID,
		started: time.Now(),
		result:  make(chan error, 1),
	}

	c.mu.Lock()
	c.pending[command.id] = command
	c.mu.Unlock()

	cmdCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	go func() {
		c.resolve(command.id, fn(cmdCtx))
	}()

	timer := time.NewTimer(c.timeout)
	defer timer.Stop()

	var err error
	select {
	case err = <-command.result:
	case <-timer.C:
		// Either we win and stamp the timeout, or the command resolved
		// in the same instant and its result is already buffered.
		c.resolve(command.id, ErrCommandTimeout)
		err = <-command.result
	}

	elapsed := time.Since(command.started)
	switch {
	case err == nil:
		node.recordSuccess()
		c.metrics.RecordCommand(command.node, op, elapsed, "ok")
	case isTimeout(err):
		node.recordTimeout()
		c.metrics.RecordCommand(command.node, op, elapsed, "timeout")
		c.logger.Warn("command timed out",
			String("command_id", command.id),
			String("node", command.node),
			String("op", op),
			String("guild_id", guildID),
			Duration("elapsed", elapsed),
		)
		return errors.WithMessagef(ErrCommandTimeout, "%s on %s", op, command.node)
	default:
		// The node answered, just not with success. That still proves
		// the round-trip works.
		if _, rejected := asCommandError(err); rejected {
			node.recordSuccess()
		}
		c.metrics.RecordCommand(command.node, op, elapsed, "error")
	}
	return err
}

// resolve delivers a result for the command if it is still pending.
// Returns false when someone already resolved it.
func (c *correlator) resolve(id string, err error) bool {
	c.mu.Lock()
	command, ok := c.pending[id]
	if ok {
		delete(c.pending, id)
	}
	c.mu.Unlock()

	if !ok {
		return false
	}
	command.result <- err
	return true
}

// pendingCount reports commands awaiting resolution.
func (c *correlator) pendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// isTimeout classifies an error as a command timeout, whichever layer
// noticed it first.
func isTimeout(err error) bool {
	if errors.Is(err, ErrCommandTimeout) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func asCommandError(err error) (*CommandError, bool) {
	var cmdErr *CommandError
	if errors.As(err, &cmdErr) {
		return cmdErr, true
	}
	return nil, false
}
