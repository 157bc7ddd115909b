package quality

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/go-redis/redis/v8"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"creditetl/internal/config"
	"creditetl/internal/table"
	"creditetl/pkg/records"
)

func creditTable() *table.Table {
	schema := table.Schema{
		{Name: "person_age", Type: "bigint"},
		{Name: "loan_status", Type: "string"},
	}
	return table.FromRecords(schema, []records.Record{
		{"person_age": int64(30), "loan_status": "PAID"},
		{"person_age": int64(40), "loan_status": nil},
		{"person_age": int64(30), "loan_status": "LATE"},
		{"person_age": int64(22), "loan_status": "PAID"},
	}, 2)
}

func TestRules(t *testing.T) {
	tbl := creditTable()
	empty := table.New(nil, nil)

	tests := []struct {
		name   string
		rule   Rule
		tbl    *table.Table
		passed bool
		actual float64
	}{
		{"column count default", ColumnCount{Op: OpGT, Value: 0}, tbl, true, 2},
		{"column count on empty schema", ColumnCount{Op: OpGT, Value: 0}, empty, false, 0},
		{"row count", RowCount{Op: OpGE, Value: 4}, tbl, true, 4},
		{"row count too low", RowCount{Op: OpGT, Value: 10}, tbl, false, 4},
		{"complete", IsComplete{Column: "person_age"}, tbl, true, 1},
		{"incomplete", IsComplete{Column: "loan_status"}, tbl, false, 0.75},
		{"complete missing column", IsComplete{Column: "nope"}, tbl, false, 0},
		{"exists", ColumnExists{Column: "loan_status"}, tbl, true, 1},
		{"missing", ColumnExists{Column: "nope"}, tbl, false, 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			o := tc.rule.Evaluate(tc.tbl)
			assert.Equal(t, tc.passed, o.Passed, o.Message)
			assert.InDelta(t, tc.actual, o.Actual, 1e-9)
			assert.Equal(t, tc.rule.String(), o.Rule)
		})
	}
}

func TestDefaultRuleset(t *testing.T) {
	rs := DefaultRuleset()
	require.Len(t, rs, 1)
	assert.Equal(t, "ColumnCount > 0", rs[0].String())
}

func TestRulesFromConfig(t *testing.T) {
	rs, err := RulesFromConfig([]config.Rule{
		{Kind: "column_count", Op: ">", Value: 0},
		{Kind: "row_count", Op: "==", Value: 3},
		{Kind: "is_complete", Column: "loan_amnt"},
		{Kind: "column_exists", Column: "loan_status"},
	})
	require.NoError(t, err)
	assert.Equal(t, []Rule{
		ColumnCount{Op: OpGT, Value: 0},
		RowCount{Op: OpEQ, Value: 3},
		IsComplete{Column: "loan_amnt"},
		ColumnExists{Column: "loan_status"},
	}, rs)

	rs, err = RulesFromConfig(nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultRuleset(), rs)

	for _, bad := range [][]config.Rule{
		{{Kind: "regex"}},
		{{Kind: "row_count", Op: "~"}},
		{{Kind: "is_complete"}},
	} {
		_, err := RulesFromConfig(bad)
		assert.Error(t, err, "%+v", bad)
	}
}

func TestEvaluateObservations(t *testing.T) {
	res, err := Evaluator{Context: "dq_check"}.Evaluate(context.Background(), creditTable())
	require.NoError(t, err)
	assert.True(t, res.Passed)
	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, "dq_check", res.Context)

	got := map[string]float64{}
	for _, o := range res.Observations {
		got[o.Name+"/"+o.Column] = o.Value
	}
	assert.Equal(t, 4.0, got["row_count/"])
	assert.Equal(t, 2.0, got["column_count/"])
	assert.Equal(t, 1.0, got["completeness/person_age"])
	assert.Equal(t, 0.75, got["completeness/loan_status"])
	assert.Equal(t, 3.0, got["distinct_count/person_age"])
	assert.Equal(t, 2.0, got["distinct_count/loan_status"])

	res, err = Evaluator{Context: "dq_check", Scope: ScopeNone}.Evaluate(context.Background(), creditTable())
	require.NoError(t, err)
	assert.Empty(t, res.Observations)

	_, err = Evaluator{Scope: "SOME"}.Evaluate(context.Background(), creditTable())
	assert.Error(t, err)
}

type recordingPublisher struct {
	got []Result
	err error
}

func (p *recordingPublisher) Publish(_ context.Context, r Result) error {
	p.got = append(p.got, r)
	return p.err
}

func TestGateSwallowsPublishFailure(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	pub := &recordingPublisher{err: errors.New("broker down")}
	g := Gate{
		Evaluator: Evaluator{Context: "dq_check", Rules: []Rule{RowCount{Op: OpGT, Value: 100}}},
		Publisher: pub,
		Publish:   true,
		Strategy:  StrategyBestEffort,
		Log:       zap.New(core),
	}
	res := g.Run(context.Background(), creditTable())

	assert.False(t, res.Passed)
	require.Len(t, pub.got, 1)
	assert.Equal(t, 1, logs.FilterMessage("quality: rule failed").Len())
	assert.Equal(t, 1, logs.FilterMessage("quality: publishing failed").Len())
}

func TestGateSwallowsEvaluationFailure(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	pub := &recordingPublisher{}
	res := Gate{Evaluator: Evaluator{Context: "dq_check"}, Publisher: pub, Publish: true, Log: zap.New(core)}.Run(ctx, creditTable())

	assert.Empty(t, res.RunID)
	assert.Empty(t, pub.got)
	assert.Equal(t, 1, logs.FilterMessage("quality: evaluation failed").Len())
}

type panicRule struct{}

func (panicRule) String() string                { return "panic" }
func (panicRule) Evaluate(*table.Table) Outcome { panic("bad rule") }

func TestGateRecoversFromPanickingRule(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	g := Gate{Evaluator: Evaluator{Rules: []Rule{panicRule{}}}, Log: zap.New(core)}
	assert.NotPanics(t, func() { g.Run(context.Background(), creditTable()) })
	assert.Equal(t, 1, logs.FilterMessage("quality: evaluation aborted").Len())
}

func TestGatePublishingDisabled(t *testing.T) {
	pub := &recordingPublisher{}
	res := Gate{Evaluator: Evaluator{Context: "dq_check"}, Publisher: pub}.Run(context.Background(), creditTable())
	assert.True(t, res.Passed)
	assert.Empty(t, pub.got)
}

func TestMultiPublisherJoinsErrors(t *testing.T) {
	a := &recordingPublisher{err: errors.New("a")}
	b := &recordingPublisher{}
	err := MultiPublisher{a, nil, b}.Publish(context.Background(), Result{RunID: "r"})
	require.Error(t, err)
	assert.Len(t, a.got, 1)
	assert.Len(t, b.got, 1)
}

type fakeKafka struct {
	msgs   []kafka.Message
	closed bool
}

func (f *fakeKafka) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeKafka) Close() error { f.closed = true; return nil }

func TestKafkaPublisher(t *testing.T) {
	fk := &fakeKafka{}
	p := &KafkaPublisher{w: fk}
	res := Result{RunID: "run-1", Context: "dq_check", Passed: true, Outcomes: []Outcome{{Rule: "ColumnCount > 0", Passed: true, Actual: 5}}}

	require.NoError(t, p.Publish(context.Background(), res))
	require.Len(t, fk.msgs, 1)
	assert.Equal(t, "run-1", string(fk.msgs[0].Key))

	var back Result
	require.NoError(t, json.Unmarshal(fk.msgs[0].Value, &back))
	assert.Equal(t, res.Outcomes, back.Outcomes)

	require.NoError(t, MultiPublisher{p}.Close())
	assert.True(t, fk.closed)
}

type fakeStream struct {
	args []*redis.XAddArgs
	err  error
}

func (f *fakeStream) XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd {
	f.args = append(f.args, a)
	return redis.NewStringResult("1-0", f.err)
}

func (f *fakeStream) Close() error { return nil }

func TestRedisPublisher(t *testing.T) {
	fs := &fakeStream{}
	p := &RedisPublisher{c: fs, stream: DefaultStream, maxLen: 1000}
	require.NoError(t, p.Publish(context.Background(), Result{RunID: "run-2", Context: "dq_check"}))
	require.Len(t, fs.args, 1)
	a := fs.args[0]
	assert.Equal(t, DefaultStream, a.Stream)
	assert.Equal(t, int64(1000), a.MaxLen)
	assert.True(t, a.Approx)
	assert.Equal(t, "run-2", a.Values.(map[string]any)["run_id"])

	fs.err = errors.New("NOAUTH")
	assert.Error(t, p.Publish(context.Background(), Result{RunID: "run-3"}))
}

func TestPublishersFromConfig(t *testing.T) {
	ps, err := PublishersFromConfig([]config.Publisher{
		{Kind: "log"},
		{Kind: "metrics"},
		{Kind: "kafka", Options: config.Options{"brokers": []any{"localhost:9092"}, "topic": "dq"}},
		{Kind: "redis", Options: config.Options{"addr": "localhost:6379"}},
	}, zap.NewNop())
	require.NoError(t, err)
	require.Len(t, ps, 4)
	assert.IsType(t, LogPublisher{}, ps[0])
	assert.IsType(t, MetricsPublisher{}, ps[1])
	assert.IsType(t, &KafkaPublisher{}, ps[2])
	assert.IsType(t, &RedisPublisher{}, ps[3])
	require.NoError(t, ps.Close())

	_, err = PublishersFromConfig([]config.Publisher{{Kind: "kafka", Options: config.Options{}}}, nil)
	assert.Error(t, err)
	ps, err = PublishersFromConfig([]config.Publisher{{Kind: "sns"}, {Kind: "log"}}, nil)
	require.NoError(t, err)
	assert.Len(t, ps, 1, "unknown publisher is skipped")
}
