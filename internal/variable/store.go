// Package variable implements the two typed variable containers described
// in spec.md §3/§4.5: the conversational Variable store, which survives
// Pilot turns within a session, and the ephemeral AnalysisVariable store,
// cleared at the start of every analysis invocation. Both are simple
// name-keyed maps; the interesting behavior is the visibility rule that
// keeps a Variable's actual_data out of the Pilot's context.
package variable

import "sync"

// FieldSchema documents one field of a Variable's actual_data.
type FieldSchema struct {
	Description string
	DataType    string
	SourcePath  string
}

// Variable is a conversational, session-scoped container: the Pilot only
// ever sees its Summary; the Executor and Analysis Runtime see ActualData.
type Variable struct {
	Name        string
	Schema      map[string]FieldSchema
	ActualData  any
	Description string
	CreatedBy   string
}

// Summary is the Pilot-visible projection of a Variable: name, description,
// and schema keys only — never raw values (spec.md §8 "Variable
// visibility").
type Summary struct {
	Name        string
	Description string
	SchemaKeys  []string
}

// Store is the conversational Variable store: put/get/names/summaries,
// keyed by name, overwrite-by-name. One Store exists per session.
type Store struct {
	mu   sync.RWMutex
	vars map[string]Variable
}

// NewStore returns an empty Store.
func NewStore() *Store {
	return &Store{vars: make(map[string]Variable)}
}

// Put stores v under v.Name, overwriting any existing variable of the same
// name.
func (s *Store) Put(v Variable) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vars[v.Name] = v
}

// Get returns the Variable stored under name, or false if absent.
func (s *Store) Get(name string) (Variable, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.vars[name]
	return v, ok
}

// Names returns every stored variable name, in no particular order.
func (s *Store) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.vars))
	for name := range s.vars {
		out = append(out, name)
	}
	return out
}

// Summaries returns the Pilot-visible projection of every stored variable.
func (s *Store) Summaries() []Summary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Summary, 0, len(s.vars))
	for _, v := range s.vars {
		keys := make([]string, 0, len(v.Schema))
		for k := range v.Schema {
			keys = append(keys, k)
		}
		out = append(out, Summary{Name: v.Name, Description: v.Description, SchemaKeys: keys})
	}
	return out
}

// Reset clears every stored variable. Called on new-session detection
// (spec.md §3 "Conversation state": inbound history length ≤ 1).
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vars = make(map[string]Variable)
}
