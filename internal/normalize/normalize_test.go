package normalize

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"querai-chat/internal/model"
)

func TestRecord_Assistant(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want model.AssistantPayload
	}{
		{
			name: "backend writer shape",
			raw:  `{"role":"assistant","content":"Revenue by region","sql_query":"SELECT 1","results":[{"region":"EU","total":10}]}`,
			want: model.AssistantPayload{
				Explanation:  "Revenue by region",
				SQL:          "SELECT 1",
				Rows:         []model.Row{{"region": "EU", "total": json.Number("10")}},
				ResponseKind: model.ResponseSQL,
			},
		},
		{
			name: "direct insert shape with legacy role",
			raw:  `{"role":"ai","content":{"explanation":"Tables listed","data":[{"table":"orders"}]}}`,
			want: model.AssistantPayload{
				Explanation:  "Tables listed",
				Rows:         []model.Row{{"table": "orders"}},
				ResponseKind: model.ResponseMeta,
			},
		},
		{
			name: "top-level sql wins over nested and sql_query",
			raw:  `{"role":"assistant","content":{"explanation":"x","sql":"NESTED"},"sql":"TOP","sql_query":"QUERY"}`,
			want: model.AssistantPayload{
				Explanation:  "x",
				SQL:          "TOP",
				Rows:         []model.Row{},
				ResponseKind: model.ResponseSQL,
			},
		},
		{
			name: "empty sql falls through to nested",
			raw:  `{"role":"assistant","content":{"sql":"NESTED"},"sql":""}`,
			want: model.AssistantPayload{
				SQL:          "NESTED",
				Rows:         []model.Row{},
				ResponseKind: model.ResponseSQL,
			},
		},
		{
			name: "results preferred over nested data",
			raw:  `{"role":"assistant","results":[{"a":1}],"content":{"data":[{"b":2}]}}`,
			want: model.AssistantPayload{
				Rows:         []model.Row{{"a": json.Number("1")}},
				ResponseKind: model.ResponseMeta,
			},
		},
		{
			name: "empty results fall through to nested data",
			raw:  `{"role":"assistant","results":[],"content":{"data":[{"b":2}]}}`,
			want: model.AssistantPayload{
				Rows:         []model.Row{{"b": json.Number("2")}},
				ResponseKind: model.ResponseMeta,
			},
		},
		{
			name: "explicit response kind",
			raw:  `{"role":"assistant","sql":"SELECT 1","response_type":"clarification"}`,
			want: model.AssistantPayload{
				SQL:          "SELECT 1",
				Rows:         []model.Row{},
				ResponseKind: "clarification",
			},
		},
		{
			name: "nested response kind and failure detail",
			raw:  `{"role":"ai","content":{"explanation":"Request failed.","detail":"boom","response_type":"meta"}}`,
			want: model.AssistantPayload{
				Explanation:  "Request failed.",
				Rows:         []model.Row{},
				ResponseKind: model.ResponseMeta,
				Detail:       "boom",
			},
		},
		{
			name: "wrong types degrade to empty",
			raw:  `{"role":"assistant","content":42,"sql":{"x":1},"results":"nope"}`,
			want: model.AssistantPayload{
				Rows:         []model.Row{},
				ResponseKind: model.ResponseMeta,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Record([]byte(tt.raw))
			assert.Equal(t, model.RoleAssistant, got.Role)
			require.NotNil(t, got.Assistant)
			assert.Equal(t, tt.want, *got.Assistant)
			assert.True(t, got.Recognized())
		})
	}
}

func TestRecord_SQLQueryOnly(t *testing.T) {
	got := Record([]byte(`{"role":"assistant","content":"e","sql_query":"SELECT region FROM sales"}`))
	require.NotNil(t, got.Assistant)
	assert.Equal(t, "SELECT region FROM sales", got.Assistant.SQL)
}

func TestRecord_User(t *testing.T) {
	got := Record([]byte(`{"role":"user","content":"how many orders?"}`))
	assert.Equal(t, model.UserMessage("how many orders?"), got)
}

func TestRecord_PassThrough(t *testing.T) {
	t.Run("unknown role", func(t *testing.T) {
		raw := `{"role":"system","content":"hidden"}`
		got := Record([]byte(raw))
		assert.Equal(t, model.Role("system"), got.Role)
		assert.JSONEq(t, raw, string(got.Raw))
		assert.False(t, got.Recognized())
	})

	t.Run("no role", func(t *testing.T) {
		got := Record([]byte(`{"kind":"divider"}`))
		assert.False(t, got.Recognized())
		assert.Nil(t, got.Assistant)
	})

	t.Run("malformed json", func(t *testing.T) {
		got := Record([]byte(`{"role":"assistant",`))
		assert.False(t, got.Recognized())
		assert.True(t, json.Valid(got.Raw), "kept record must stay encodable")
	})

	t.Run("empty input", func(t *testing.T) {
		got := Record(nil)
		assert.False(t, got.Recognized())
	})
}

func TestRecord_Idempotent(t *testing.T) {
	raws := []string{
		`{"role":"assistant","content":{"explanation":"e","sql":"s","data":[{"a":1,"b":"x"}]}}`,
		`{"role":"user","content":"q"}`,
		`{"role":"tool","content":"t"}`,
	}
	for _, raw := range raws {
		first := Record([]byte(raw))
		second := Record([]byte(raw))
		assert.Equal(t, first, second)
	}
}

func TestRecords_PreservesOrder(t *testing.T) {
	raws := []json.RawMessage{
		json.RawMessage(`{"role":"user","content":"one"}`),
		json.RawMessage(`{"role":"assistant","content":"two"}`),
		json.RawMessage(`{"role":"user","content":"one"}`),
	}
	got := Records(raws)
	require.Len(t, got, 3)
	assert.Equal(t, "one", got[0].Content)
	assert.Equal(t, "two", got[1].Assistant.Explanation)
	assert.Equal(t, "one", got[2].Content, "duplicates are never collapsed")
}

func TestResponse(t *testing.T) {
	body := `{"explanation":"Total revenue","sql":"SELECT SUM(x)","results":[{"sum":5}]}`
	got := Response([]byte(body))
	require.NotNil(t, got.Assistant)
	assert.Equal(t, model.RoleAssistant, got.Role)
	assert.Equal(t, "Total revenue", got.Assistant.Explanation)
	assert.Equal(t, "SELECT SUM(x)", got.Assistant.SQL)
	assert.Equal(t, []model.Row{{"sum": json.Number("5")}}, got.Assistant.Rows)
	assert.Equal(t, model.ResponseSQL, got.Assistant.ResponseKind)

	meta := Response([]byte(`{"explanation":"Which year?","responseKind":"clarification"}`))
	assert.Equal(t, model.ResponseKind("clarification"), meta.Assistant.ResponseKind)

	empty := Response([]byte(`not json`))
	require.NotNil(t, empty.Assistant)
	assert.Equal(t, model.ResponseMeta, empty.Assistant.ResponseKind)
}

func TestRecord_WideIntegers(t *testing.T) {
	got := Record([]byte(`{"role":"assistant","content":"ok","results":[{"id":9007199254740993,"ratio":0.25}]}`))
	require.NotNil(t, got.Assistant)
	require.Len(t, got.Assistant.Rows, 1)
	assert.Equal(t, json.Number("9007199254740993"), got.Assistant.Rows[0]["id"])
	assert.Equal(t, json.Number("0.25"), got.Assistant.Rows[0]["ratio"])

	out, err := json.Marshal(got.Assistant.Rows[0])
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":9007199254740993,"ratio":0.25}`, string(out))
}

func TestFailure(t *testing.T) {
	got := Failure("Backend error", "503")
	require.NotNil(t, got.Assistant)
	assert.Equal(t, "Backend error", got.Assistant.Explanation)
	assert.Equal(t, "503", got.Assistant.Detail)
}
