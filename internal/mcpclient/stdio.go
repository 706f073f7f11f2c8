package mcpclient

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/mcpilot/core/internal/agenterr"
)

// contextWithTimeout is a thin alias kept local so the initialize handshake
// reads the same whether or not a timeout is configured.
func contextWithTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, d)
}

// stdioOptions configures a stdio-transport MCP subprocess caller.
type stdioOptions struct {
	Command         string
	Args            []string
	Env             map[string]string
	ProtocolVersion string
	ClientName      string
	ClientVersion   string
	InitTimeout     time.Duration
	Stderr          zerolog.Logger
}

// stdioCaller implements caller over the MCP stdio transport: newline-free,
// Content-Length-framed JSON-RPC messages over the subprocess's stdin/stdout.
// Adapted from the teacher's features/mcp/runtime StdioCaller, trimmed to
// the tools/list + tools/call + initialize surface this module needs.
type stdioCaller struct {
	cmd       *exec.Cmd
	stdin     io.WriteCloser
	pending   map[uint64]chan rpcResponse
	pendingMu sync.Mutex
	writeMu   sync.Mutex
	nextID    uint64
	closed    chan struct{}
	closeOnce sync.Once
}

func newStdioCaller(ctx context.Context, opts stdioOptions) (*stdioCaller, error) {
	if opts.Command == "" {
		return nil, agenterr.New(agenterr.MCPConnectFailed, "stdio server requires a command")
	}
	cmd := exec.CommandContext(ctx, opts.Command, opts.Args...)
	if len(opts.Env) > 0 {
		env := os.Environ()
		for k, v := range opts.Env {
			env = append(env, k+"="+v)
		}
		cmd.Env = env
	}
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, agenterr.Wrap(agenterr.MCPConnectFailed, "open stdin pipe", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, agenterr.Wrap(agenterr.MCPConnectFailed, "open stdout pipe", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, agenterr.Wrap(agenterr.MCPConnectFailed, "open stderr pipe", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, agenterr.Wrap(agenterr.MCPConnectFailed, "start subprocess", err)
	}
	c := &stdioCaller{
		cmd:     cmd,
		stdin:   stdin,
		pending: make(map[uint64]chan rpcResponse),
		closed:  make(chan struct{}),
	}
	go c.readLoop(stdout)
	go relayStderr(stderr, opts.Stderr, opts.Command)
	if err := c.initialize(ctx, opts); err != nil {
		_ = c.Close()
		return nil, agenterr.Wrap(agenterr.MCPConnectFailed, "mcp initialize", err)
	}
	return c, nil
}

// relayStderr pipes a stdio MCP subprocess's stderr into the manager's
// logger line by line, so misbehaving servers are diagnosable without
// crashing the orchestrator.
func relayStderr(r io.Reader, logger zerolog.Logger, command string) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		logger.Warn().Str("mcp_server", command).Msg(scanner.Text())
	}
}

func (c *stdioCaller) Close() error {
	c.closeOnce.Do(func() {
		if c.stdin != nil {
			_ = c.stdin.Close()
		}
		if c.cmd != nil && c.cmd.Process != nil {
			_ = c.cmd.Process.Kill()
		}
		if c.cmd != nil {
			_ = c.cmd.Wait()
		}
		close(c.closed)
	})
	return nil
}

func (c *stdioCaller) ListTools(ctx context.Context) ([]toolDescriptor, error) {
	var result toolsListResult
	if err := c.call(ctx, "tools/list", map[string]any{}, &result); err != nil {
		return nil, err
	}
	return result.Tools, nil
}

func (c *stdioCaller) CallTool(ctx context.Context, name string, args json.RawMessage) (ToolCallResult, error) {
	params := map[string]any{"name": name, "arguments": args}
	var result ToolCallResult
	if err := c.call(ctx, "tools/call", params, &result); err != nil {
		return ToolCallResult{}, err
	}
	return result, nil
}

func (c *stdioCaller) initialize(ctx context.Context, opts stdioOptions) error {
	protocol := opts.ProtocolVersion
	if protocol == "" {
		protocol = DefaultProtocolVersion
	}
	clientName := opts.ClientName
	if clientName == "" {
		clientName = "mcpilot"
	}
	clientVersion := opts.ClientVersion
	if clientVersion == "" {
		clientVersion = "dev"
	}
	payload := map[string]any{
		"protocolVersion": protocol,
		"clientInfo":      map[string]any{"name": clientName, "version": clientVersion},
	}
	initCtx := ctx
	if opts.InitTimeout > 0 {
		var cancel func()
		initCtx, cancel = contextWithTimeout(ctx, opts.InitTimeout)
		defer cancel()
	}
	return c.call(initCtx, "initialize", payload, nil)
}

func (c *stdioCaller) call(ctx context.Context, method string, params any, result any) error {
	id := c.next()
	ch := make(chan rpcResponse, 1)
	c.pendingMu.Lock()
	c.pending[id] = ch
	c.pendingMu.Unlock()

	req := rpcRequest{JSONRPC: "2.0", Method: method, ID: id, Params: params}
	if err := c.writeMessage(req); err != nil {
		c.removePending(id)
		return err
	}

	select {
	case resp := <-ch:
		if resp.Error != nil {
			return resp.Error.callerError()
		}
		if result != nil && len(resp.Result) > 0 {
			return json.Unmarshal(resp.Result, result)
		}
		return nil
	case <-ctx.Done():
		c.removePending(id)
		return ctx.Err()
	case <-c.closed:
		return errors.New("mcp stdio caller closed")
	}
}

func (c *stdioCaller) writeMessage(req rpcRequest) error {
	data, err := json.Marshal(req)
	if err != nil {
		return err
	}
	header := fmt.Sprintf("Content-Length: %d\r\n\r\n", len(data))
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if _, err := io.WriteString(c.stdin, header); err != nil {
		return err
	}
	_, err = c.stdin.Write(data)
	return err
}

func (c *stdioCaller) readLoop(stdout io.Reader) {
	reader := bufio.NewReader(stdout)
	for {
		frame, err := readFrame(reader)
		if err != nil {
			c.failPending()
			return
		}
		var resp rpcResponse
		if err := json.Unmarshal(frame, &resp); err != nil {
			continue
		}
		if resp.ID == 0 {
			continue
		}
		c.pendingMu.Lock()
		ch, ok := c.pending[resp.ID]
		if ok {
			delete(c.pending, resp.ID)
		}
		c.pendingMu.Unlock()
		if ok {
			ch <- resp
			close(ch)
		}
	}
}

func (c *stdioCaller) failPending() {
	c.pendingMu.Lock()
	for id, ch := range c.pending {
		delete(c.pending, id)
		close(ch)
	}
	c.pendingMu.Unlock()
}

func (c *stdioCaller) removePending(id uint64) {
	c.pendingMu.Lock()
	delete(c.pending, id)
	c.pendingMu.Unlock()
}

func (c *stdioCaller) next() uint64 {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()
	c.nextID++
	return c.nextID
}

func readFrame(reader *bufio.Reader) ([]byte, error) {
	length := -1
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			return nil, err
		}
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			if length < 0 {
				continue
			}
			break
		}
		if after, ok := strings.CutPrefix(strings.ToLower(line), "content-length:"); ok {
			n, err := strconv.Atoi(strings.TrimSpace(after))
			if err != nil {
				return nil, err
			}
			length = n
		}
	}
	if length < 0 {
		return nil, errors.New("content-length header missing")
	}
	buf := make([]byte, length)
	_, err := io.ReadFull(reader, buf)
	return buf, err
}
