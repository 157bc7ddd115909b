// Package connections resolves named relational connections, the way a job
// refers to "rds-retail-conn" instead of carrying credentials in its config.
package connections

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
)

// ErrUnknownConnection is returned for an id missing from the registry.
var ErrUnknownConnection = errors.New("unknown connection")

// Connection is one registry entry.
type Connection struct {
	// Kind selects the storage backend: postgres, mysql, mssql or sqlite.
	Kind string `json:"kind"`
	DSN  string `json:"dsn"`
}

// Registry maps connection ids to connections.
type Registry struct {
	conns  map[string]Connection
	getenv func(string) string
}

// NewRegistry wraps conns. DSNs may still be overridden from the environment.
func NewRegistry(conns map[string]Connection) *Registry {
	if conns == nil {
		conns = map[string]Connection{}
	}
	return &Registry{conns: conns, getenv: os.Getenv}
}

// Load reads a registry file of the form {"connections": {"id": {...}}}.
func Load(path string) (*Registry, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("connections: %w", err)
	}
	var doc struct {
		Connections map[string]Connection `json:"connections"`
	}
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("connections: decode %s: %w", path, err)
	}
	return NewRegistry(doc.Connections), nil
}

// EnvPrefix is the variable prefix for overrides of id: CONN_<ID> with the id
// upper-cased and dashes or dots turned into underscores. <prefix>_DSN
// replaces the DSN and <prefix>_KIND the backend kind.
func EnvPrefix(id string) string {
	return "CONN_" + strings.ToUpper(strings.NewReplacer("-", "_", ".", "_").Replace(id))
}

// Resolve returns the connection for id with environment overrides applied.
// An id absent from the file can be defined entirely through the environment.
func (r *Registry) Resolve(id string) (Connection, error) {
	c, ok := r.conns[id]
	prefix := EnvPrefix(id)
	if dsn := r.getenv(prefix + "_DSN"); dsn != "" {
		c.DSN = dsn
	}
	if kind := r.getenv(prefix + "_KIND"); kind != "" {
		c.Kind, ok = kind, true
	}
	if !ok {
		return Connection{}, fmt.Errorf("%w: %q", ErrUnknownConnection, id)
	}
	if c.Kind == "" || c.DSN == "" {
		return Connection{}, fmt.Errorf("connection %q: kind and dsn are required", id)
	}
	c.Kind = strings.ToLower(c.Kind)
	return c, nil
}
