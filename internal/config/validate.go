// Package config provides configuration models and helpers for the job.
//
// This file adds a lightweight linter for Job values. It performs static
// checks over a decoded Job and returns a list of issues (errors and
// warnings) that the CLI surfaces before running.
package config

import (
	"fmt"
	"net/url"
	"strings"
)

// IssueSeverity represents the severity of a configuration issue.
type IssueSeverity string

const (
	// SeverityError indicates a configuration error that blocks execution.
	SeverityError IssueSeverity = "error"
	// SeverityWarning is surfaced to users but does not block execution.
	SeverityWarning IssueSeverity = "warning"
)

// Issue describes a single validation finding. Path is a dotted path into the
// config (e.g. "sink.object.path", "quality.rules[0].op").
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

// Error implements the error interface.
func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

// HasErrors reports whether any issue has error severity.
func HasErrors(issues []Issue) bool {
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			return true
		}
	}
	return false
}

// ValidateJob performs static validation of j. It does not mutate j.
func ValidateJob(j Job) []Issue {
	var issues []Issue
	issues = append(issues, validateSource(j.Source)...)
	issues = append(issues, validateQuality(j.Quality)...)
	issues = append(issues, validateObjectSink(j.Sink.Object)...)
	issues = append(issues, validateRelationalSink(j.Sink.Relational)...)
	issues = append(issues, validateRuntime(j.Runtime)...)
	return issues
}

func validateSource(s Source) []Issue {
	var issues []Issue
	if strings.TrimSpace(s.Catalog) == "" {
		issues = append(issues, errorf("source.catalog", "catalog registry path must not be empty"))
	}
	if strings.TrimSpace(s.Database) == "" {
		issues = append(issues, errorf("source.database", "catalog database must not be empty"))
	}
	if strings.TrimSpace(s.Table) == "" {
		issues = append(issues, errorf("source.table", "catalog table must not be empty"))
	}
	return issues
}

var (
	knownRuleKinds = map[string]bool{
		"column_count": true, "row_count": true, "is_complete": true, "column_exists": true,
	}
	knownOps = map[string]bool{">": true, ">=": true, "<": true, "<=": true, "=": true, "!=": true}

	knownPublishers = map[string]bool{"log": true, "metrics": true, "kafka": true, "redis": true}
)

func validateQuality(q Quality) []Issue {
	var issues []Issue
	if strings.TrimSpace(q.Context) == "" {
		issues = append(issues, errorf("quality.context", "evaluation context must not be empty"))
	}
	if len(q.Rules) == 0 {
		issues = append(issues, warnf("quality.rules", "no rules configured; the quality gate only records observations"))
	}
	for i, r := range q.Rules {
		path := fmt.Sprintf("quality.rules[%d]", i)
		if !knownRuleKinds[r.Kind] {
			issues = append(issues, errorf(path+".kind", "unknown rule kind %q", r.Kind))
			continue
		}
		switch r.Kind {
		case "column_count", "row_count":
			if !knownOps[r.Op] {
				issues = append(issues, errorf(path+".op", "unknown comparison %q", r.Op))
			}
		case "is_complete", "column_exists":
			if strings.TrimSpace(r.Column) == "" {
				issues = append(issues, errorf(path+".column", "%s requires a column", r.Kind))
			}
		}
	}
	if s := strings.ToUpper(q.Strategy); s != "" && s != "BEST_EFFORT" {
		issues = append(issues, warnf("quality.strategy", "unsupported strategy %q; BEST_EFFORT is used", q.Strategy))
	}
	switch strings.ToUpper(q.ObservationsScope) {
	case "", "ALL", "NONE":
	default:
		issues = append(issues, warnf("quality.observations_scope", "unknown scope %q; ALL is used", q.ObservationsScope))
	}
	for i, p := range q.Publishers {
		path := fmt.Sprintf("quality.publishers[%d]", i)
		if !knownPublishers[p.Kind] {
			issues = append(issues, warnf(path+".kind", "unknown publisher %q is skipped", p.Kind))
			continue
		}
		switch p.Kind {
		case "kafka":
			if len(p.Options.StringSlice("brokers")) == 0 {
				issues = append(issues, errorf(path+".options.brokers", "kafka publisher requires brokers"))
			}
			if p.Options.String("topic", "") == "" {
				issues = append(issues, errorf(path+".options.topic", "kafka publisher requires a topic"))
			}
		case "redis":
			if p.Options.String("addr", "") == "" {
				issues = append(issues, errorf(path+".options.addr", "redis publisher requires addr"))
			}
		}
	}
	return issues
}

func validateObjectSink(o ObjectSink) []Issue {
	var issues []Issue
	if strings.TrimSpace(o.Path) == "" {
		return append(issues, errorf("sink.object.path", "clean zone path must not be empty"))
	}
	if u, err := url.Parse(o.Path); err != nil {
		issues = append(issues, errorf("sink.object.path", "invalid location: %v", err))
	} else {
		switch u.Scheme {
		case "", "file", "s3":
		default:
			issues = append(issues, errorf("sink.object.path", "unsupported scheme %q", u.Scheme))
		}
	}
	if f := strings.ToLower(o.Format); f != "" && f != "csv" {
		issues = append(issues, errorf("sink.object.format", "unsupported format %q; only csv is written", o.Format))
	}
	return issues
}

func validateRelationalSink(r RelationalSink) []Issue {
	var issues []Issue
	if strings.TrimSpace(r.Connection) == "" {
		issues = append(issues, errorf("sink.relational.connection", "connection id must not be empty"))
	}
	if strings.TrimSpace(r.Connections) == "" {
		issues = append(issues, errorf("sink.relational.connections", "connection registry path must not be empty"))
	}
	if strings.TrimSpace(r.Table) == "" {
		issues = append(issues, errorf("sink.relational.table", "target table must not be empty"))
	}
	if strings.Contains(r.Table, ".") {
		issues = append(issues, warnf("sink.relational.table", "table %q is qualified; database %q is ignored for the qualifier", r.Table, r.Database))
	}
	return issues
}

func validateRuntime(rt RuntimeConfig) []Issue {
	var issues []Issue
	if rt.Partitions < 0 {
		issues = append(issues, errorf("runtime.partitions", "must be >= 0"))
	}
	if rt.Parallelism < 0 {
		issues = append(issues, errorf("runtime.parallelism", "must be >= 0"))
	}
	return issues
}

func errorf(path, format string, a ...any) Issue {
	return Issue{Severity: SeverityError, Path: path, Message: fmt.Sprintf(format, a...)}
}

func warnf(path, format string, a ...any) Issue {
	return Issue{Severity: SeverityWarning, Path: path, Message: fmt.Sprintf(format, a...)}
}
