package mcpclient

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/mcpilot/core/internal/agenterr"
)

// DefaultProtocolVersion is the MCP protocol version advertised during
// initialize when a server config does not pin one.
const DefaultProtocolVersion = "2024-11-05"

// httpOptions configures an HTTP-transport MCP caller, covering both the
// plain JSON-RPC ("streamable-http") and SSE-streamed response shapes.
type httpOptions struct {
	Endpoint        string
	Client          *http.Client
	ProtocolVersion string
	ClientName      string
	ClientVersion   string
	InitTimeout     time.Duration
	UseSSE          bool
}

// httpCaller implements caller over HTTP JSON-RPC, optionally reading the
// tools/call response as an SSE stream. Adapted from the teacher's
// features/mcp/runtime httpTransport and runtime/mcp SSECaller, merged into
// one type since the two only differ in how a tools/call response is read.
type httpCaller struct {
	endpoint string
	client   *http.Client
	id       uint64
	useSSE   bool
}

func newHTTPCaller(ctx context.Context, opts httpOptions) (*httpCaller, error) {
	endpoint := opts.Endpoint
	if endpoint == "" {
		return nil, agenterr.New(agenterr.MCPConnectFailed, "http server requires an endpoint url")
	}
	httpClient := opts.Client
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	c := &httpCaller{endpoint: endpoint, client: httpClient, useSSE: opts.UseSSE}

	initCtx := ctx
	if opts.InitTimeout > 0 {
		var cancel context.CancelFunc
		initCtx, cancel = context.WithTimeout(ctx, opts.InitTimeout)
		defer cancel()
	}
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
	if err := c.rpc(initCtx, "initialize", payload, nil); err != nil {
		return nil, agenterr.Wrap(agenterr.MCPConnectFailed, "mcp initialize", err)
	}
	return c, nil
}

func (c *httpCaller) Close() error { return nil }

func (c *httpCaller) ListTools(ctx context.Context) ([]toolDescriptor, error) {
	var result toolsListResult
	if err := c.rpc(ctx, "tools/list", map[string]any{}, &result); err != nil {
		return nil, err
	}
	return result.Tools, nil
}

func (c *httpCaller) CallTool(ctx context.Context, name string, args json.RawMessage) (ToolCallResult, error) {
	params := map[string]any{"name": name, "arguments": args}
	if c.useSSE {
		return c.callViaSSE(ctx, params)
	}
	var result ToolCallResult
	if err := c.rpc(ctx, "tools/call", params, &result); err != nil {
		return ToolCallResult{}, err
	}
	return result, nil
}

func (c *httpCaller) nextID() uint64 { return atomic.AddUint64(&c.id, 1) }

// rpc performs one plain JSON-RPC request/response round trip. Used for the
// "streamable-http" transport's tools/call and for the initialize/tools/list
// calls of both HTTP transport kinds.
func (c *httpCaller) rpc(ctx context.Context, method string, params any, result any) error {
	req := rpcRequest{JSONRPC: "2.0", Method: method, ID: c.nextID(), Params: params}
	body, err := json.Marshal(req)
	if err != nil {
		return err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	resp, err := c.client.Do(httpReq)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("mcp rpc status %d: %s", resp.StatusCode, string(raw))
	}
	var rpcResp rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return err
	}
	if rpcResp.Error != nil {
		return rpcResp.Error.callerError()
	}
	if result != nil && len(rpcResp.Result) > 0 {
		return json.Unmarshal(rpcResp.Result, result)
	}
	return nil
}

// callViaSSE performs a tools/call request whose response is streamed back
// as a single `event: response` Server-Sent Event, the shape used by the
// `sse` transport kind.
func (c *httpCaller) callViaSSE(ctx context.Context, params any) (ToolCallResult, error) {
	req := rpcRequest{JSONRPC: "2.0", Method: "tools/call", ID: c.nextID(), Params: params}
	body, err := json.Marshal(req)
	if err != nil {
		return ToolCallResult{}, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return ToolCallResult{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	resp, err := c.client.Do(httpReq)
	if err != nil {
		return ToolCallResult{}, err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return ToolCallResult{}, fmt.Errorf("mcp sse status %d: %s", resp.StatusCode, string(raw))
	}
	reader := bufio.NewReader(resp.Body)
	for {
		event, data, err := readSSEEvent(reader)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return ToolCallResult{}, errors.New("sse stream closed before response")
			}
			return ToolCallResult{}, err
		}
		switch event {
		case "response":
			var rpcResp rpcResponse
			if err := json.Unmarshal(data, &rpcResp); err != nil {
				return ToolCallResult{}, err
			}
			if rpcResp.Error != nil {
				return ToolCallResult{}, rpcResp.Error.callerError()
			}
			var result ToolCallResult
			if err := json.Unmarshal(rpcResp.Result, &result); err != nil {
				return ToolCallResult{}, err
			}
			return result, nil
		case "error":
			var rpcResp rpcResponse
			if err := json.Unmarshal(data, &rpcResp); err == nil && rpcResp.Error != nil {
				return ToolCallResult{}, rpcResp.Error.callerError()
			}
			return ToolCallResult{}, errors.New("mcp sse error event")
		case "close":
			return ToolCallResult{}, errors.New("sse stream closed without response")
		default:
			continue
		}
	}
}

func readSSEEvent(reader *bufio.Reader) (string, []byte, error) {
	var event string
	var data []byte
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			return "", nil, err
		}
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			if event == "" && len(data) == 0 {
				continue
			}
			return event, data, nil
		}
		if strings.HasPrefix(line, ":") {
			continue
		}
		if after, ok := strings.CutPrefix(line, "event:"); ok {
			event = strings.TrimSpace(after)
			continue
		}
		if after, ok := strings.CutPrefix(line, "data:"); ok {
			if len(data) > 0 {
				data = append(data, '\n')
			}
			data = append(data, after...)
			continue
		}
	}
}
