// Package frotz binds engine.Engine to an interpreter worker subprocess.
// The wire protocol is newline-delimited JSON: one request line in, one
// response line out, strictly in order. The client is not safe for
// concurrent use (the session layer already serializes every call) but it
// does enforce a wall-clock deadline per request, since the interpreter
// offers no cancellation of its own.
//
// A timed-out request abandons the worker entirely: the late reply can no
// longer be matched to its request, so the client kills the process and
// fails every further call with ErrUnresponsive rather than risk pairing
// responses with the wrong requests.
package frotz

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"sync"
	"time"

	"gruebox/internal/engine"
)

// DefaultTimeout bounds a single worker round trip.
const DefaultTimeout = 30 * time.Second

type request struct {
	Op   string `json:"op"`
	Arg  string `json:"arg,omitempty"`
	Blob []byte `json:"blob,omitempty"`
}

type response struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`

	Observation string               `json:"observation,omitempty"`
	Score       int                  `json:"score,omitempty"`
	Moves       int                  `json:"moves,omitempty"`
	Done        bool                 `json:"done,omitempty"`
	Max         int                  `json:"max,omitempty"`
	Actions     []string             `json:"actions,omitempty"`
	Objects     []engine.WorldObject `json:"objects,omitempty"`
	Object      *engine.WorldObject  `json:"object,omitempty"`
	Words       []engine.DictWord    `json:"words,omitempty"`
	Hash        string               `json:"hash,omitempty"`
	Blob        []byte               `json:"blob,omitempty"`
}

// Client is one running worker process bound to one loaded game.
type Client struct {
	cmd     *exec.Cmd
	stdin   io.WriteCloser
	lines   chan []byte
	timeout time.Duration
	logger  *slog.Logger
	closed  bool

	// broken is set when a request times out. From then on the request and
	// response streams are out of step, so every call fails until the
	// session is replaced.
	broken   bool
	quit     chan struct{}
	quitOnce sync.Once
}

var _ engine.Engine = (*Client)(nil)

// Launch starts workerCmd with gamePath appended as its final argument and
// waits for the worker's ready line. A worker that fails to come up or
// rejects the game yields ErrLoadFailed.
func Launch(workerCmd []string, gamePath string, timeout time.Duration, logger *slog.Logger) (*Client, error) {
	if len(workerCmd) == 0 {
		return nil, fmt.Errorf("%w: no worker command configured", engine.ErrLoadFailed)
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}

	args := append(append([]string(nil), workerCmd[1:]...), gamePath)
	cmd := exec.Command(workerCmd[0], args...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", engine.ErrLoadFailed, err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", engine.ErrLoadFailed, err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", engine.ErrLoadFailed, err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: starting worker: %v", engine.ErrLoadFailed, err)
	}

	c := &Client{
		cmd:     cmd,
		stdin:   stdin,
		lines:   make(chan []byte),
		timeout: timeout,
		logger:  logger,
		quit:    make(chan struct{}),
	}
	go c.readLines(stdout)
	go c.drainStderr(stderr)

	ready, err := c.await()
	if err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("%w: worker not ready: %v", engine.ErrLoadFailed, err)
	}
	if !ready.OK {
		_ = c.Close()
		return nil, fmt.Errorf("%w: %s", engine.ErrLoadFailed, ready.Error)
	}
	return c, nil
}

func (c *Client) readLines(r io.Reader) {
	scanner := bufio.NewScanner(r)
	// Object tables and state blobs can be large.
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := append([]byte(nil), scanner.Bytes()...)
		select {
		case c.lines <- line:
		case <-c.quit:
			return
		}
	}
	close(c.lines)
}

// stop releases the reader goroutine; a line it is holding is discarded.
func (c *Client) stop() {
	c.quitOnce.Do(func() { close(c.quit) })
}

func (c *Client) drainStderr(r io.Reader) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		c.logger.Debug("worker stderr", "line", scanner.Text())
	}
}

// await reads the next response line within the deadline. A timeout
// abandons the worker: any reply arriving later belongs to the request
// that timed out, so it must never be consumed by a subsequent call.
func (c *Client) await() (response, error) {
	select {
	case line, ok := <-c.lines:
		if !ok {
			return response{}, fmt.Errorf("worker exited")
		}
		var resp response
		if err := json.Unmarshal(line, &resp); err != nil {
			return response{}, fmt.Errorf("malformed worker response: %w", err)
		}
		return resp, nil
	case <-time.After(c.timeout):
		c.broken = true
		c.stop()
		if c.cmd.Process != nil {
			_ = c.cmd.Process.Kill()
		}
		return response{}, engine.ErrUnresponsive
	}
}

func (c *Client) call(req request) (response, error) {
	if c.broken {
		return response{}, fmt.Errorf("%w: worker abandoned after an earlier timeout", engine.ErrUnresponsive)
	}
	if c.closed {
		return response{}, fmt.Errorf("worker closed")
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return response{}, err
	}
	if _, err := c.stdin.Write(append(payload, '\n')); err != nil {
		return response{}, fmt.Errorf("writing to worker: %w", err)
	}
	return c.await()
}

func (c *Client) Reset() (string, engine.Info, error) {
	resp, err := c.call(request{Op: "reset"})
	if err != nil {
		return "", engine.Info{}, err
	}
	if !resp.OK {
		return "", engine.Info{}, fmt.Errorf("%w: %s", engine.ErrLoadFailed, resp.Error)
	}
	return resp.Observation, engine.Info{Score: resp.Score, Moves: resp.Moves}, nil
}

func (c *Client) Step(action string) (string, engine.Info, bool, error) {
	resp, err := c.call(request{Op: "step", Arg: action})
	if err != nil {
		return "", engine.Info{}, false, err
	}
	if !resp.OK {
		return "", engine.Info{}, false, fmt.Errorf("%w: %s", engine.ErrInvalidAction, resp.Error)
	}
	return resp.Observation, engine.Info{Score: resp.Score, Moves: resp.Moves}, resp.Done, nil
}

func (c *Client) ValidActions() ([]string, error) {
	resp, err := c.query(request{Op: "valid_actions"})
	if err != nil {
		return nil, err
	}
	return resp.Actions, nil
}

func (c *Client) TemplateActions() ([]string, error) {
	resp, err := c.query(request{Op: "template_actions"})
	if err != nil {
		return nil, err
	}
	return resp.Actions, nil
}

func (c *Client) Inventory() ([]engine.WorldObject, error) {
	resp, err := c.query(request{Op: "inventory"})
	if err != nil {
		return nil, err
	}
	return resp.Objects, nil
}

func (c *Client) PlayerLocation() (engine.WorldObject, error) {
	resp, err := c.query(request{Op: "location"})
	if err != nil {
		return engine.WorldObject{}, err
	}
	if resp.Object == nil {
		return engine.WorldObject{}, fmt.Errorf("worker returned no location object")
	}
	return *resp.Object, nil
}

func (c *Client) WorldObjects() ([]engine.WorldObject, error) {
	resp, err := c.query(request{Op: "objects"})
	if err != nil {
		return nil, err
	}
	return resp.Objects, nil
}

func (c *Client) Dictionary() ([]engine.DictWord, error) {
	resp, err := c.query(request{Op: "dictionary"})
	if err != nil {
		return nil, err
	}
	return resp.Words, nil
}

func (c *Client) State() ([]byte, error) {
	resp, err := c.query(request{Op: "get_state"})
	if err != nil {
		return nil, err
	}
	return resp.Blob, nil
}

func (c *Client) SetState(blob []byte) error {
	resp, err := c.call(request{Op: "set_state", Blob: blob})
	if err != nil {
		return err
	}
	if !resp.OK {
		return fmt.Errorf("%w: %s", engine.ErrBadState, resp.Error)
	}
	return nil
}

func (c *Client) WorldStateHash() (string, error) {
	resp, err := c.query(request{Op: "hash"})
	if err != nil {
		return "", err
	}
	return resp.Hash, nil
}

func (c *Client) MaxScore() (int, error) {
	resp, err := c.query(request{Op: "max_score"})
	if err != nil {
		return 0, err
	}
	return resp.Max, nil
}

func (c *Client) Score() (int, error) {
	resp, err := c.query(request{Op: "score"})
	if err != nil {
		return 0, err
	}
	return resp.Score, nil
}

// query is call plus the common not-OK translation for introspection ops.
func (c *Client) query(req request) (response, error) {
	resp, err := c.call(req)
	if err != nil {
		return response{}, err
	}
	if !resp.OK {
		return response{}, fmt.Errorf("worker %s failed: %s", req.Op, resp.Error)
	}
	return resp, nil
}

// Close asks the worker to quit, then kills it if it lingers.
func (c *Client) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true

	if payload, err := json.Marshal(request{Op: "quit"}); err == nil {
		_, _ = c.stdin.Write(append(payload, '\n'))
	}
	_ = c.stdin.Close()
	c.stop()

	done := make(chan error, 1)
	go func() { done <- c.cmd.Wait() }()
	select {
	case err := <-done:
		return err
	case <-time.After(2 * time.Second):
		_ = c.cmd.Process.Kill()
		return <-done
	}
}

// NewFactory wires Launch into an engine.Factory: game names resolve to
// file paths through lookup, each created engine is a fresh worker.
func NewFactory(workerCmd []string, lookup func(name string) (string, error), timeout time.Duration, logger *slog.Logger) engine.Factory {
	return func(gameName string) (engine.Engine, error) {
		path, err := lookup(gameName)
		if err != nil {
			return nil, err
		}
		return Launch(workerCmd, path, timeout, logger)
	}
}
