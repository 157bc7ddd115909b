// Package config defines the JSON-serializable configuration model for the
// credit-risk cleaning job. A Job is decoded from configs/jobs/*.json on top
// of Default(), so a config file only has to name what differs from the
// standard run.
//
// Example (trimmed):
//
//	{
//	  "source":  { "catalog": "configs/catalog.json", "database": "retail_db_catalog", "table": "raw" },
//	  "quality": { "context": "dq_check", "rules": [ { "kind": "column_count", "op": ">", "value": 0 } ] },
//	  "sink": {
//	    "object":     { "path": "s3://retail-data-pipeline-01/clean/", "format": "csv" },
//	    "relational": { "connection": "rds-retail-conn", "database": "retail_db", "table": "credit_risk_clean" }
//	  }
//	}
package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// Job describes one run of the cleaning job.
type Job struct {
	// Job is a label used when no --JOB_NAME is given (tests, local runs).
	Job string `json:"job"`

	Source  Source        `json:"source"`
	Quality Quality       `json:"quality"`
	Sink    Sink          `json:"sink"`
	Runtime RuntimeConfig `json:"runtime"`
}

// Source names the cataloged table the job reads.
type Source struct {
	// Catalog is the path of the catalog registry file.
	Catalog  string `json:"catalog"`
	Database string `json:"database"`
	Table    string `json:"table"`
}

// Quality configures the data-quality gate.
type Quality struct {
	// Context names the evaluation context observations are published under.
	Context string `json:"context"`

	// Rules is the rule set evaluated against the cleaned table.
	Rules []Rule `json:"rules"`

	// EnableResultsPublishing turns publishing of outcomes on or off.
	EnableResultsPublishing bool `json:"enable_results_publishing"`

	// Strategy is the publishing strategy; only "BEST_EFFORT" is supported.
	Strategy string `json:"strategy"`

	// ObservationsScope is "ALL" or "NONE".
	ObservationsScope string `json:"observations_scope"`

	// Publishers lists where results go (log, metrics, kafka, redis).
	Publishers []Publisher `json:"publishers"`
}

// Rule is a single typed data-quality assertion.
type Rule struct {
	// Kind is one of column_count, row_count, is_complete, column_exists.
	Kind   string  `json:"kind"`
	Column string  `json:"column,omitempty"`
	Op     string  `json:"op,omitempty"`
	Value  float64 `json:"value,omitempty"`
}

// Publisher selects a quality-results publisher and its options.
type Publisher struct {
	Kind    string  `json:"kind"`
	Options Options `json:"options"`
}

// Sink configures both outputs of the job.
type Sink struct {
	Object     ObjectSink     `json:"object"`
	Relational RelationalSink `json:"relational"`
}

// ObjectSink is the object-storage clean zone.
type ObjectSink struct {
	// Path is a location URL such as s3://bucket/prefix/ or file:///dir.
	Path   string `json:"path"`
	Format string `json:"format"`
	Header bool   `json:"header"`
}

// RelationalSink is the relational copy of the cleaned table.
type RelationalSink struct {
	// Connections is the path of the connection registry file.
	Connections string `json:"connections"`
	Connection  string `json:"connection"`
	Database    string `json:"database"`
	Table       string `json:"table"`

	// AutoCreateTable creates the target table from the cleaned schema when
	// it does not exist yet.
	AutoCreateTable bool `json:"auto_create_table"`
}

// RuntimeConfig controls partitioning of the in-memory table.
type RuntimeConfig struct {
	// Partitions is the minimum number of partitions the source is split into.
	Partitions int `json:"partitions"`
	// Parallelism bounds how many partitions are processed at once.
	Parallelism int `json:"parallelism"`
}

// Default returns the standard credit-risk run.
func Default() Job {
	return Job{
		Job: "credit_risk_etl",
		Source: Source{
			Catalog:  "configs/catalog.json",
			Database: "retail_db_catalog",
			Table:    "raw",
		},
		Quality: Quality{
			Context:                 "dq_check",
			Rules:                   []Rule{{Kind: "column_count", Op: ">", Value: 0}},
			EnableResultsPublishing: true,
			Strategy:                "BEST_EFFORT",
			ObservationsScope:       "ALL",
			Publishers:              []Publisher{{Kind: "log", Options: Options{}}, {Kind: "metrics", Options: Options{}}},
		},
		Sink: Sink{
			Object: ObjectSink{
				Path:   "s3://retail-data-pipeline-01/clean/",
				Format: "csv",
				Header: true,
			},
			Relational: RelationalSink{
				Connections:     "configs/connections.json",
				Connection:      "rds-retail-conn",
				Database:        "retail_db",
				Table:           "credit_risk_clean",
				AutoCreateTable: true,
			},
		},
	}
}

// Load decodes the job file at path on top of Default(). An empty path returns
// the defaults unchanged.
func Load(path string) (Job, error) {
	j := Default()
	if path == "" {
		return j, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return Job{}, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	// encoding/json decodes arrays into the existing elements, so default
	// slices are detached first and only restored when the file omits them.
	def := j.Quality
	j.Quality.Rules, j.Quality.Publishers = nil, nil

	dec := json.NewDecoder(f)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&j); err != nil {
		return Job{}, fmt.Errorf("decode config %s: %w", path, err)
	}
	if j.Quality.Rules == nil {
		j.Quality.Rules = def.Rules
	}
	if j.Quality.Publishers == nil {
		j.Quality.Publishers = def.Publishers
	}
	return j, nil
}

// Options is a small helper to fetch typed values from free-form JSON maps.
// It performs only minimal coercion and returns the provided default when a
// key is absent or of an unexpected type.
type Options map[string]any

// String returns the string value for key or def.
func (o Options) String(key, def string) string {
	if v, ok := o[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return def
}

// Bool returns the bool value for key or def.
func (o Options) Bool(key string, def bool) bool {
	if v, ok := o[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return def
}

// Int returns the int value for key or def. encoding/json decodes numbers as
// float64, which is accepted and truncated.
func (o Options) Int(key string, def int) int {
	if v, ok := o[key]; ok {
		switch n := v.(type) {
		case float64:
			return int(n)
		case int:
			return n
		}
	}
	return def
}

// Rune returns the first rune of the string value for key, or def.
func (o Options) Rune(key string, def rune) rune {
	if v, ok := o[key]; ok {
		if s, ok := v.(string); ok && len(s) > 0 {
			return []rune(s)[0]
		}
	}
	return def
}

// StringSlice returns a []string for key when the value is an array of
// strings. Non-string elements are skipped.
func (o Options) StringSlice(key string) []string {
	if v, ok := o[key]; ok {
		switch vv := v.(type) {
		case []any:
			out := make([]string, 0, len(vv))
			for _, x := range vv {
				if s, ok := x.(string); ok {
					out = append(out, s)
				}
			}
			return out
		case []string:
			return vv
		}
	}
	return nil
}

// UnmarshalJSON makes a missing or null "options" object decode to an empty,
// non-nil map.
func (o *Options) UnmarshalJSON(b []byte) error {
	var tmp map[string]any
	if len(b) == 0 || string(b) == "null" {
		*o = Options{}
		return nil
	}
	if err := json.Unmarshal(b, &tmp); err != nil {
		return err
	}
	*o = Options(tmp)
	return nil
}
