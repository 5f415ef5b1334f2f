// Package normalize converts stored and backend-produced message records of
// varying shape into the canonical model.Message.
//
// Two writers persist chat messages: the backend service and the
// direct-insert fallback. They disagree on field names, so every record is
// decoded here with explicit precedence rules instead of at call sites. All
// functions are pure and total: malformed input degrades to empty fields.
package normalize

import (
	"encoding/json"
	"strings"

	"github.com/tidwall/gjson"

	"querai-chat/internal/model"
)

// Record normalises one stored message record.
//
// Assistant records (role "assistant" or legacy "ai"):
//   - explanation: string content, else content.explanation
//   - sql: sql, content.sql, sql_query; first non-empty wins
//   - rows: results, content.data; first non-empty wins
//   - kind: response_type, content.response_type, else inferred from sql
//
// User records pass their content through. Anything else is kept verbatim in
// Message.Raw.
func Record(raw []byte) model.Message {
	if !gjson.ValidBytes(raw) {
		return passThrough("", raw)
	}

	r := gjson.ParseBytes(raw)
	role := model.Role(r.Get("role").String())

	switch role {
	case model.RoleAssistant, model.RoleLegacyAI:
		content := r.Get("content")
		explanation := ""
		if content.Type == gjson.String {
			explanation = content.String()
		} else {
			explanation = content.Get("explanation").String()
		}
		sql := firstString(r.Get("sql"), content.Get("sql"), r.Get("sql_query"))
		return model.AssistantMessage(model.AssistantPayload{
			Explanation:  explanation,
			SQL:          sql,
			Rows:         firstRows(r.Get("results"), content.Get("data")),
			ResponseKind: kind(sql, r.Get("response_type"), content.Get("response_type")),
			Detail:       content.Get("detail").String(),
		})
	case model.RoleUser:
		return model.UserMessage(r.Get("content").String())
	default:
		return passThrough(role, raw)
	}
}

// Records normalises a stored message log, preserving order and length.
func Records(raws []json.RawMessage) []model.Message {
	msgs := make([]model.Message, 0, len(raws))
	for _, raw := range raws {
		msgs = append(msgs, Record(raw))
	}
	return msgs
}

// Response builds the assistant message for a successful message-send
// response body: { explanation, sql?, results?, response_type? }.
func Response(body []byte) model.Message {
	r := gjson.ParseBytes(body)
	content := r.Get("content")

	explanation := firstString(r.Get("explanation"), content.Get("explanation"))
	if explanation == "" && content.Type == gjson.String {
		explanation = content.String()
	}
	sql := firstString(r.Get("sql"), r.Get("sql_query"), content.Get("sql"))

	return model.AssistantMessage(model.AssistantPayload{
		Explanation:  explanation,
		SQL:          sql,
		Rows:         firstRows(r.Get("results"), r.Get("data"), content.Get("data")),
		ResponseKind: kind(sql, r.Get("response_type"), r.Get("responseKind"), content.Get("response_type")),
	})
}

// Failure builds the assistant message recorded when an exchange fails.
func Failure(explanation, detail string) model.Message {
	return model.AssistantMessage(model.AssistantPayload{
		Explanation:  explanation,
		ResponseKind: model.ResponseMeta,
		Detail:       detail,
	})
}

func passThrough(role model.Role, raw []byte) model.Message {
	kept := json.RawMessage(append([]byte{}, raw...))
	if !json.Valid(kept) {
		quoted, _ := json.Marshal(string(raw))
		kept = quoted
	}
	return model.Message{Role: role, Raw: kept}
}

func firstString(candidates ...gjson.Result) string {
	for _, c := range candidates {
		if c.Type == gjson.String && c.Str != "" {
			return c.Str
		}
	}
	return ""
}

func firstRows(candidates ...gjson.Result) []model.Row {
	for _, c := range candidates {
		if !c.IsArray() {
			continue
		}
		items := c.Array()
		if len(items) == 0 {
			continue
		}
		rows := make([]model.Row, 0, len(items))
		for _, item := range items {
			if !item.IsObject() {
				continue
			}
			if row, ok := decodeRow(item.Raw); ok {
				rows = append(rows, row)
			}
		}
		return rows
	}
	return []model.Row{}
}

// decodeRow keeps numbers as json.Number so wide integer columns survive.
func decodeRow(raw string) (model.Row, bool) {
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	var row model.Row
	if err := dec.Decode(&row); err != nil {
		return nil, false
	}
	return row, true
}

func kind(sql string, explicit ...gjson.Result) model.ResponseKind {
	if k := firstString(explicit...); k != "" {
		return model.ResponseKind(k)
	}
	if sql != "" {
		return model.ResponseSQL
	}
	return model.ResponseMeta
}
