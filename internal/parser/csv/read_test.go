package csv

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"creditetl/internal/config"
	"creditetl/internal/table"
	"creditetl/pkg/records"
)

var declared = table.Schema{
	{Name: "person_age", Type: "bigint"},
	{Name: "loan_int_rate", Type: "double"},
	{Name: "loan_status", Type: "string"},
}

func TestOptionsFrom(t *testing.T) {
	o := OptionsFrom(config.Options{})
	assert.Equal(t, Options{HasHeader: true, Comma: ','}, o)

	o = OptionsFrom(config.Options{"has_header": false, "delimiter": "\t", "lazy_quotes": true})
	assert.Equal(t, Options{HasHeader: false, Comma: '\t', LazyQuotes: true}, o)
}

func TestParseWithHeader(t *testing.T) {
	in := "\uFEFFperson_age,loan_int_rate,loan_status,loan_grade\n" +
		"40,,\" paid \",B\n" +
		"abc,11.5,late\n" +
		"25,7.25,current,A,extra\n"

	res, err := NewParser(Options{HasHeader: true}).Parse(strings.NewReader(in), declared)
	require.NoError(t, err)

	assert.Equal(t, []string{"person_age", "loan_int_rate", "loan_status", "loan_grade"}, res.Schema.Names())
	assert.Equal(t, table.KindString, res.Schema[3].Type)
	assert.Equal(t, 1, res.BadCells)
	require.Len(t, res.Records, 3)

	assert.Equal(t, records.Record{"person_age": int64(40), "loan_int_rate": nil, "loan_status": " paid ", "loan_grade": "B"}, res.Records[0])
	assert.Equal(t, records.Record{"person_age": nil, "loan_int_rate": 11.5, "loan_status": "late", "loan_grade": nil}, res.Records[1])
	assert.Equal(t, int64(25), res.Records[2]["person_age"])
	assert.Len(t, res.Records[2], 4, "surplus cells are dropped")
}

func TestParseWithoutHeader(t *testing.T) {
	in := "40;9.5;paid;x\n"
	res, err := NewParser(Options{Comma: ';'}).Parse(strings.NewReader(in), declared)
	require.NoError(t, err)
	require.Len(t, res.Records, 1)
	assert.Equal(t, []string{"person_age", "loan_int_rate", "loan_status", "_c3"}, res.Schema.Names())
	assert.Equal(t, 9.5, res.Records[0]["loan_int_rate"])
	assert.Equal(t, "x", res.Records[0]["_c3"])
}

func TestParseEmptyInput(t *testing.T) {
	res, err := NewParser(Options{HasHeader: true}).Parse(strings.NewReader(""), declared)
	require.NoError(t, err)
	assert.Empty(t, res.Records)
	assert.Equal(t, declared, res.Schema)
}

func TestParseMalformedQuote(t *testing.T) {
	in := "person_age,loan_status\n1,\"unterminated\n"
	_, err := NewParser(Options{HasHeader: true}).Parse(strings.NewReader(in), declared)
	assert.Error(t, err)
}

func TestStripHeaderBOM(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, StripHeaderBOM([]string{"\uFEFFa", "b"}))
	assert.Empty(t, StripHeaderBOM(nil))
}
