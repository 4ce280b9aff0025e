// Package workspace holds the named runtime values produced and consumed by
// dataflow networks. A workspace may be chained to a parent for read
// fallback; local names shadow parent names and writes always land locally.
package workspace

import "log/slog"

// Workspace maps blob names to owned blobs. Not safe for concurrent
// mutation: the engine only creates blobs from the single goroutine driving a
// plan, and concurrently-running networks are expected to touch disjoint
// names (partitioning is the plan author's responsibility).
type Workspace struct {
	blobs  map[string]*Blob
	order  []string
	parent *Workspace
	logger *slog.Logger
}

// New creates an empty root workspace.
func New(logger *slog.Logger) *Workspace {
	if logger == nil {
		logger = slog.Default()
	}
	return &Workspace{
		blobs:  make(map[string]*Blob),
		logger: logger,
	}
}

// NewChild creates a workspace whose lookups fall through to parent.
func NewChild(parent *Workspace, logger *slog.Logger) *Workspace {
	ws := New(logger)
	ws.parent = parent
	return ws
}

// HasBlob reports whether name resolves locally or through the parent chain.
func (ws *Workspace) HasBlob(name string) bool {
	if _, ok := ws.blobs[name]; ok {
		return true
	}
	return ws.parent != nil && ws.parent.HasBlob(name)
}

// CreateBlob returns the blob under name, inserting a new empty one if it
// does not exist locally. Idempotent, never fails. A parent blob of the same
// name is shadowed, not reused.
func (ws *Workspace) CreateBlob(name string) *Blob {
	if b, ok := ws.blobs[name]; ok {
		ws.logger.Debug("blob already exists, skipping", slog.String("blob", name))
		return b
	}
	ws.logger.Debug("creating blob", slog.String("blob", name))
	b := &Blob{}
	ws.blobs[name] = b
	ws.order = append(ws.order, name)
	return b
}

// GetBlob returns the blob under name, consulting the parent chain on a
// local miss. A miss everywhere returns nil; callers treat that as a logged,
// non-fatal condition.
func (ws *Workspace) GetBlob(name string) *Blob {
	if b, ok := ws.blobs[name]; ok {
		return b
	}
	if ws.parent != nil && ws.parent.HasBlob(name) {
		return ws.parent.GetBlob(name)
	}
	ws.logger.Warn("blob not in the workspace", slog.String("blob", name))
	return nil
}

// Blobs returns local blob names in insertion order, followed by the
// parent's names.
func (ws *Workspace) Blobs() []string {
	names := make([]string, 0, len(ws.order))
	names = append(names, ws.order...)
	if ws.parent != nil {
		names = append(names, ws.parent.Blobs()...)
	}
	return names
}
