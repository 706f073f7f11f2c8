package subtool

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/mcpilot/core/internal/agenterr"
)

// Catalog is the global, immutable-during-a-run registry of learned
// sub-tools, keyed by id. Re-learning an MCP registers its new file via Put.
type Catalog struct {
	mu       sync.RWMutex
	byID     map[string]SubTool
	byMCP    map[string]CatalogFile
}

// NewCatalog returns an empty Catalog.
func NewCatalog() *Catalog {
	return &Catalog{byID: make(map[string]SubTool), byMCP: make(map[string]CatalogFile)}
}

// LoadDir scans dir for per-MCP catalog JSON files and ingests every
// sub-tool they declare. Each file's base name (without extension) is
// treated as the owning MCP's identifier.
func (c *Catalog) LoadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return agenterr.Wrap(agenterr.ParseFailed, "read learnings directory", err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return agenterr.Wrap(agenterr.ParseFailed, "read catalog file "+path, err)
		}
		var file CatalogFile
		if err := json.Unmarshal(data, &file); err != nil {
			return agenterr.Wrap(agenterr.ParseFailed, "parse catalog file "+path, err)
		}
		mcpName := entry.Name()[:len(entry.Name())-len(".json")]
		c.byMCP[mcpName] = file
		for _, st := range file.SubTools {
			c.byID[st.ID] = st
		}
	}
	return nil
}

// Put records file as mcpName's catalog file and registers every sub-tool it
// declares, used by the Learning Agent after [LEARNING_COMPLETE] writes a
// fresh per-MCP file. Sub-tools from an earlier file for the same MCP stay
// registered under their ids.
func (c *Catalog) Put(mcpName string, file CatalogFile) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.byMCP[mcpName] = file
	for _, st := range file.SubTools {
		c.byID[st.ID] = st
	}
}

// Get resolves a sub-tool id to its SubTool definition.
func (c *Catalog) Get(id string) (SubTool, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	st, ok := c.byID[id]
	return st, ok
}

// FindByName resolves a sub-tool by its published Name, used when dispatching
// an Executor call (which addresses sub-tools by name, not id).
func (c *Catalog) FindByName(name string) (SubTool, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, st := range c.byID {
		if st.Name == name {
			return st, true
		}
	}
	return SubTool{}, false
}

// All returns every registered sub-tool.
func (c *Catalog) All() []SubTool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]SubTool, 0, len(c.byID))
	for _, st := range c.byID {
		out = append(out, st)
	}
	return out
}

// MCPFile returns the raw CatalogFile ingested for a given MCP name, as
// written by the Learning Agent.
func (c *Catalog) MCPFile(mcpName string) (CatalogFile, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	f, ok := c.byMCP[mcpName]
	return f, ok
}

// MCPNames returns the names of every MCP with at least one ingested
// catalog file, in no particular order.
func (c *Catalog) MCPNames() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.byMCP))
	for name := range c.byMCP {
		out = append(out, name)
	}
	return out
}
