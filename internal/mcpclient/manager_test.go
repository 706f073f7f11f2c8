package mcpclient

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcpilot/core/internal/telemetry"
)

// fakeCaller is an in-memory caller stub used to exercise Manager routing
// without a real subprocess or HTTP server.
type fakeCaller struct {
	tools      []toolDescriptor
	lastName   string
	lastArgs   json.RawMessage
	nextResult ToolCallResult
	nextErr    error
}

func (f *fakeCaller) ListTools(ctx context.Context) ([]toolDescriptor, error) { return f.tools, nil }

func (f *fakeCaller) CallTool(ctx context.Context, name string, args json.RawMessage) (ToolCallResult, error) {
	f.lastName = name
	f.lastArgs = args
	return f.nextResult, f.nextErr
}

func (f *fakeCaller) Close() error { return nil }

func newTestManager() (*Manager, *fakeCaller) {
	m := NewManager(telemetry.Noop())
	fc := &fakeCaller{
		tools: []toolDescriptor{
			{Name: "search", Description: "search the web", InputSchema: json.RawMessage(`{"type":"object","properties":{"q":{"type":"string"}},"required":["q"]}`)},
		},
	}
	m.callers["weather"] = fc
	seen := map[string]bool{}
	for _, d := range fc.tools {
		sanitized := Sanitize("weather", d.Name, seen)
		seen[sanitized] = true
		m.tools = append(m.tools, Tool{
			ServerName:    "weather",
			OriginalName:  d.Name,
			SanitizedName: sanitized,
			Description:   d.Description,
			InputSchema:   d.InputSchema,
		})
		m.routes[sanitized] = route{server: "weather", original: d.Name}
	}
	return m, fc
}

func TestManagerCallRoutesToOriginalName(t *testing.T) {
	t.Parallel()
	m, fc := newTestManager()
	fc.nextResult = ToolCallResult{Content: []ContentItem{{Type: "text", Text: strPtr(`{"ok":true}`)}}}

	resp, err := m.Call(context.Background(), "weather__search", json.RawMessage(`{"q":"rain"}`))
	require.NoError(t, err)
	assert.Equal(t, "search", fc.lastName)
	assert.Equal(t, json.RawMessage(`{"q":"rain"}`), fc.lastArgs)
	assert.Len(t, resp.Content, 1)
}

func TestManagerCallUnknownToolFails(t *testing.T) {
	t.Parallel()
	m, _ := newTestManager()
	_, err := m.Call(context.Background(), "weather__does_not_exist", json.RawMessage(`{}`))
	assert.Error(t, err)
}

func TestManagerCallRejectsInvalidArgs(t *testing.T) {
	t.Parallel()
	m, _ := newTestManager()
	_, err := m.Call(context.Background(), "weather__search", json.RawMessage(`{}`))
	assert.Error(t, err, "missing required field q should fail schema validation")
}

func TestManagerListToolsTruncatesToProviderCap(t *testing.T) {
	t.Parallel()
	m := NewManager(telemetry.Noop())
	seen := map[string]bool{}
	for i := 0; i < maxProviderTools+10; i++ {
		name := Sanitize("srv", itoa(i), seen)
		seen[name] = true
		m.tools = append(m.tools, Tool{ServerName: "srv", OriginalName: itoa(i), SanitizedName: name})
	}
	assert.Len(t, m.ListTools(), maxProviderTools)
	assert.Len(t, m.Tools(), maxProviderTools+10)
}

func strPtr(s string) *string { return &s }

func itoa(i int) string {
	digits := "0123456789"
	if i == 0 {
		return "0"
	}
	var b []byte
	for i > 0 {
		b = append([]byte{digits[i%10]}, b...)
		i /= 10
	}
	return string(b)
}
