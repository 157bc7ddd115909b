package main

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"creditetl/internal/catalog"
	"creditetl/internal/config"
	"creditetl/internal/connections"
	"creditetl/internal/job"
	"creditetl/internal/metrics"
	"creditetl/internal/sink"
	"creditetl/internal/storage"
)

const rawCSV = `person_age,person_income,loan_int_rate,loan_amnt,loan_status
150,50000,10.5,500, active 
35,-5,9.0,700,default
40,60000,,1000, paid 
40,60000,,1000, paid 
`

type fixture struct {
	dir      string
	cleanDir string
	dbPath   string
	job      config.Job
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	dir := t.TempDir()
	rawDir := filepath.Join(dir, "raw")
	require.NoError(t, os.MkdirAll(rawDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(rawDir, "part-0.csv"), []byte(rawCSV), 0o644))

	catalogJSON := `{"databases": {"retail_db_catalog": {"raw": {
		"location": "file://` + filepath.ToSlash(rawDir) + `",
		"format": "csv",
		"columns": [
			{"name": "person_age", "type": "bigint"},
			{"name": "person_income", "type": "bigint"},
			{"name": "loan_int_rate", "type": "double"},
			{"name": "loan_amnt", "type": "bigint"},
			{"name": "loan_status", "type": "string"}
		]}}}}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "catalog.json"), []byte(catalogJSON), 0o644))

	dbPath := filepath.Join(dir, "retail.db")
	connJSON := `{"connections": {"rds-retail-conn": {"kind": "sqlite", "dsn": "` + filepath.ToSlash(dbPath) + `"}}}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "connections.json"), []byte(connJSON), 0o644))

	cleanDir := filepath.Join(dir, "clean")
	j := config.Default()
	j.Source.Catalog = filepath.Join(dir, "catalog.json")
	j.Sink.Object.Path = "file://" + filepath.ToSlash(cleanDir)
	j.Sink.Relational.Connections = filepath.Join(dir, "connections.json")
	j.Quality.Publishers = []config.Publisher{{Kind: "log"}, {Kind: "metrics"}}
	j.Runtime.Partitions = 2

	return fixture{dir: dir, cleanDir: cleanDir, dbPath: dbPath, job: j}
}

func (f fixture) writeJobFile(t *testing.T) string {
	t.Helper()
	doc := `{
	"source": {"catalog": "` + filepath.ToSlash(f.job.Source.Catalog) + `"},
	"quality": {"publishers": [{"kind": "log"}]},
	"sink": {
		"object": {"path": "` + f.job.Sink.Object.Path + `"},
		"relational": {"connections": "` + filepath.ToSlash(f.job.Sink.Relational.Connections) + `"}
	}
}`
	p := filepath.Join(f.dir, "job.json")
	require.NoError(t, os.WriteFile(p, []byte(doc), 0o644))
	return p
}

func cleanObjects(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var out []string
	for _, e := range entries {
		out = append(out, filepath.Join(dir, e.Name()))
	}
	return out
}

func relationalRows(t *testing.T, dbPath string) [][]any {
	t.Helper()
	db, err := sql.Open("sqlite", dbPath)
	require.NoError(t, err)
	defer db.Close()
	rows, err := db.Query(`SELECT person_age, person_income, loan_int_rate, loan_amnt, loan_status FROM "credit_risk_clean"`)
	require.NoError(t, err)
	defer rows.Close()
	var out [][]any
	for rows.Next() {
		var age, income, amnt int64
		var rate float64
		var status string
		require.NoError(t, rows.Scan(&age, &income, &rate, &amnt, &status))
		out = append(out, []any{age, income, rate, amnt, status})
	}
	require.NoError(t, rows.Err())
	return out
}

type recordingBackend struct {
	mu       sync.Mutex
	counters map[string]float64
}

func newRecordingBackend() *recordingBackend {
	return &recordingBackend{counters: map[string]float64{}}
}

func (b *recordingBackend) IncCounter(name string, delta float64, l metrics.Labels) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.counters[name+"|"+l["step"]+l["stage"]+"|"+l["status"]] += delta
}
func (b *recordingBackend) ObserveHistogram(string, float64, metrics.Labels) {}
func (b *recordingBackend) SetGauge(string, float64, metrics.Labels)         {}
func (b *recordingBackend) Flush() error                                    { return nil }

func (b *recordingBackend) get(key string) float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.counters[key]
}

func useBackend(t *testing.T) *recordingBackend {
	t.Helper()
	b := newRecordingBackend()
	metrics.SetBackend(b)
	t.Cleanup(func() { metrics.SetBackend(newRecordingBackend()) })
	return b
}

func TestRunJobEndToEnd(t *testing.T) {
	f := newFixture(t)
	rec := useBackend(t)
	run := job.Init("credit_risk_etl", nil, nil)

	require.NoError(t, runJob(context.Background(), f.job, run))

	objs := cleanObjects(t, f.cleanDir)
	require.Len(t, objs, 1)
	assert.Contains(t, filepath.Base(objs[0]), run.ID)
	data, err := os.ReadFile(objs[0])
	require.NoError(t, err)
	assert.Equal(t,
		"person_age,person_income,loan_int_rate,loan_amnt,loan_status\n40,60000,0.0,1000,PAID\n",
		string(data))

	assert.Equal(t, [][]any{{int64(40), int64(60000), 0.0, int64(1000), "PAID"}}, relationalRows(t, f.dbPath))

	assert.Equal(t, 4.0, rec.get(metrics.RowsTotal+"|read|"))
	assert.Equal(t, 1.0, rec.get(metrics.RowsTotal+"|cleaned|"))
	assert.Equal(t, 3.0, rec.get(metrics.RowsTotal+"|dropped|"))
	assert.Equal(t, 1.0, rec.get(metrics.RowsTotal+"|written_relational|"))
	for _, step := range []string{"read", "clean", "quality", "write"} {
		assert.Equal(t, 1.0, rec.get(metrics.StepTotal+"|"+step+"|success"), step)
	}
}

func TestRunJobAppendsOnRerun(t *testing.T) {
	f := newFixture(t)
	useBackend(t)

	for i := 0; i < 2; i++ {
		require.NoError(t, runJob(context.Background(), f.job, job.Init("credit_risk_etl", nil, nil)))
	}
	assert.Len(t, cleanObjects(t, f.cleanDir), 2)
	assert.Len(t, relationalRows(t, f.dbPath), 2)
}

func TestRunJobCatalogMissFails(t *testing.T) {
	f := newFixture(t)
	rec := useBackend(t)
	f.job.Source.Table = "missing"

	err := runJob(context.Background(), f.job, job.Init("credit_risk_etl", nil, nil))
	require.Error(t, err)
	assert.ErrorIs(t, err, catalog.ErrNotFound)
	assert.Equal(t, 1.0, rec.get(metrics.StepTotal+"|read|failure"))
	_, statErr := os.Stat(f.cleanDir)
	assert.True(t, os.IsNotExist(statErr), "nothing is written after a read failure")
}

func TestRunJobQualityFailureDoesNotBlock(t *testing.T) {
	f := newFixture(t)
	useBackend(t)
	f.job.Quality.Rules = []config.Rule{{Kind: "row_count", Op: ">", Value: 100}}
	core, logs := observer.New(zap.WarnLevel)
	run := job.Init("credit_risk_etl", nil, zap.New(core))

	require.NoError(t, runJob(context.Background(), f.job, run))
	assert.Equal(t, 1, logs.FilterMessage("quality: rule failed").Len())
	assert.Len(t, relationalRows(t, f.dbPath), 1)
}

func TestRunJobRelationalFailure(t *testing.T) {
	f := newFixture(t)
	rec := useBackend(t)
	prev := newRepositoryFn
	t.Cleanup(func() { newRepositoryFn = prev })
	newRepositoryFn = func(context.Context, storage.Config) (storage.Repository, error) {
		return nil, errors.New("connection refused")
	}
	core, logs := observer.New(zap.ErrorLevel)
	run := job.Init("credit_risk_etl", nil, zap.New(core))

	err := runJob(context.Background(), f.job, run)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "relational write failed")
	assert.Contains(t, err.Error(), "connection refused")
	assert.Equal(t, 1, logs.FilterMessage("relational write failed").Len())
	assert.Len(t, cleanObjects(t, f.cleanDir), 1, "object output precedes the relational write")
	assert.Equal(t, 1.0, rec.get(metrics.StepTotal+"|write|failure"))
}

func TestRunJobMissingConnectionsFile(t *testing.T) {
	f := newFixture(t)
	rec := useBackend(t)
	f.job.Sink.Relational.Connections = filepath.Join(f.dir, "nope.json")
	core, logs := observer.New(zap.ErrorLevel)
	run := job.Init("credit_risk_etl", nil, zap.New(core))

	err := runJob(context.Background(), f.job, run)
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.Contains(t, err.Error(), "relational write failed")
	assert.Equal(t, 1, logs.FilterMessage("relational write failed").Len())
	assert.Len(t, cleanObjects(t, f.cleanDir), 1, "object output precedes the connection lookup")
	assert.Equal(t, 1.0, rec.get(metrics.StepTotal+"|write|failure"))
}

func TestRunJobMissingSourceDirectory(t *testing.T) {
	f := newFixture(t)
	useBackend(t)
	rawDir := filepath.Join(f.dir, "raw")
	require.NoError(t, os.RemoveAll(rawDir))

	err := runJob(context.Background(), f.job, job.Init("credit_risk_etl", nil, nil))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
	_, statErr := os.Stat(rawDir)
	assert.True(t, os.IsNotExist(statErr), "the source directory is not recreated")
	_, statErr = os.Stat(f.dbPath)
	assert.True(t, os.IsNotExist(statErr), "no relational table after a read failure")
}

func TestRunJobConnectionSeam(t *testing.T) {
	f := newFixture(t)
	useBackend(t)
	prev := loadConnectionsFn
	t.Cleanup(func() { loadConnectionsFn = prev })
	loadConnectionsFn = func(string) (sink.Resolver, error) {
		return connections.NewRegistry(nil), nil
	}

	err := runJob(context.Background(), f.job, job.Init("credit_risk_etl", nil, nil))
	require.Error(t, err)
	assert.ErrorIs(t, err, connections.ErrUnknownConnection)
}

func TestExecute(t *testing.T) {
	t.Setenv("METRICS_BACKEND", "none")
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("CONN_RDS_RETAIL_CONN_DSN", "")
	t.Setenv("CONN_RDS_RETAIL_CONN_KIND", "")

	t.Run("missing job name", func(t *testing.T) {
		var stderr bytes.Buffer
		assert.Equal(t, 1, execute([]string{"-validate"}, &stderr))
		assert.Contains(t, stderr.String(), "--JOB_NAME")
	})

	t.Run("validate only", func(t *testing.T) {
		f := newFixture(t)
		cfg := f.writeJobFile(t)
		var stderr bytes.Buffer
		assert.Equal(t, 0, execute([]string{"--JOB_NAME", "credit_risk_etl", "-config", cfg, "-validate"}, &stderr))
		_, err := os.Stat(f.cleanDir)
		assert.True(t, os.IsNotExist(err))
	})

	t.Run("invalid config", func(t *testing.T) {
		f := newFixture(t)
		p := filepath.Join(f.dir, "bad.json")
		require.NoError(t, os.WriteFile(p, []byte(`{"sink": {"object": {"path": "ftp://x/"}}}`), 0o644))
		var stderr bytes.Buffer
		assert.Equal(t, 1, execute([]string{"--JOB_NAME=credit_risk_etl", "-config", p}, &stderr))
		assert.True(t, strings.Contains(stderr.String(), "sink.object.path"))
	})

	t.Run("full run", func(t *testing.T) {
		f := newFixture(t)
		cfg := f.writeJobFile(t)
		var stderr bytes.Buffer
		assert.Equal(t, 0, execute([]string{"--JOB_NAME", "credit_risk_etl", "-config", cfg}, &stderr))
		assert.Len(t, cleanObjects(t, f.cleanDir), 1)
		assert.Len(t, relationalRows(t, f.dbPath), 1)
	})
}

func TestPick(t *testing.T) {
	assert.Equal(t, "b", pick("", "b", "c"))
	assert.Equal(t, "", pick("", ""))
}
