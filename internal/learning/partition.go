package learning

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/mcpilot/core/internal/agenterr"
	"github.com/mcpilot/core/internal/mcpclient"
	"github.com/mcpilot/core/internal/subtool"
)

// catalogVersion is written into every per-MCP catalog file produced by a
// learning run.
const catalogVersion = 1

// Partition splits a Result's accumulated sub-tools, inputs, and workflows
// into one subtool.CatalogFile per owning MCP server. Ownership is resolved
// via mcp.Lookup on each sub-tool's parent_tool, reading the Manager's own
// server/tool routing table rather than recovering the server name by
// splitting the sanitized tool name on its first underscore: sanitized names
// may themselves contain underscores in the server segment, which would
// make a split-based partition ambiguous.
func Partition(mcp *mcpclient.Manager, r Result, modelUsed string, learnedAt time.Time) map[string]subtool.CatalogFile {
	files := make(map[string]subtool.CatalogFile)

	serverOf := func(parentTool string) string {
		if t, ok := mcp.Lookup(parentTool); ok {
			return t.ServerName
		}
		return "unknown"
	}

	for _, st := range r.SubTools {
		server := serverOf(st.ParentTool)
		f := files[server]
		if f.MCPName == "" {
			f = subtool.CatalogFile{MCPName: server, Version: catalogVersion, ModelUsed: modelUsed}
		}
		f.SubTools = append(f.SubTools, st)
		files[server] = f
	}
	// Inputs and workflows are not individually tied to one parent tool, so
	// every server that received at least one sub-tool also receives the
	// full set of documented inputs/workflows/insights from this run.
	for server, f := range files {
		f.DocumentedInputs = r.DocumentedInputs
		f.Workflows = r.Workflows
		f.Insights = r.Insights
		f.LearnedAt = learnedAt.UTC().Format(time.RFC3339)
		files[server] = f
	}
	return files
}

// WriteDir writes one JSON file per MCP under dir, named "<mcpName>.json",
// matching the shape Catalog.LoadDir reads back on startup.
func WriteDir(dir string, files map[string]subtool.CatalogFile) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return agenterr.Wrap(agenterr.ParseFailed, "create learnings directory", err)
	}
	for name, f := range files {
		data, err := json.MarshalIndent(f, "", "  ")
		if err != nil {
			return agenterr.Wrap(agenterr.ParseFailed, "marshal catalog file for "+name, err)
		}
		path := filepath.Join(dir, name+".json")
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return agenterr.Wrap(agenterr.ParseFailed, "write catalog file "+path, err)
		}
	}
	return nil
}
