package mq

import (
	"encoding/json"
	"fmt"
)

// Envelope 发往 Bot 的消息信封
// 即发即弃消息不带 ReplyTo / CorrelationID
type Envelope struct {
	ActionCode    int    `json:"actionCode"`
	Body          any    `json:"body"`
	ReplyTo       string `json:"replyTo,omitempty"`
	CorrelationID string `json:"correlationId,omitempty"`
}

// replyEnvelope Bot 回复的最小结构
type replyEnvelope struct {
	Result        json.RawMessage `json:"result"`
	CorrelationID string          `json:"correlationId"`
}

// Outcome 一次调用的最终结果
type Outcome struct {
	Result json.RawMessage
	Err    error
}

func encodeEnvelope(env Envelope, maxBytes int) ([]byte, error) {
	if env.Body == nil {
		env.Body = map[string]any{}
	}
	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("编码消息失败 (action=%d): %w", env.ActionCode, err)
	}
	if maxBytes > 0 && len(data) > maxBytes {
		return nil, fmt.Errorf("%w: action=%d size=%d limit=%d", ErrPayloadTooLarge, env.ActionCode, len(data), maxBytes)
	}
	return data, nil
}

// decodeReply 解析回复；失败时返回 ProtocolError 结果而不是悬挂调用方
func decodeReply(correlationID string, payload []byte) Outcome {
	var reply replyEnvelope
	if err := json.Unmarshal(payload, &reply); err != nil {
		return Outcome{Err: &ProtocolError{CorrelationID: correlationID, Err: err}}
	}
	if len(reply.Result) == 0 {
		reply.Result = json.RawMessage("null")
	}
	return Outcome{Result: reply.Result}
}

// correlationIDFromBody 属性缺失时从消息体里取回显的关联 ID
func correlationIDFromBody(payload []byte) string {
	var reply replyEnvelope
	if err := json.Unmarshal(payload, &reply); err != nil {
		return ""
	}
	return reply.CorrelationID
}

// DecodeResult 将 result 字段解码到 out
func DecodeResult(result json.RawMessage, out any) error {
	if err := json.Unmarshal(result, out); err != nil {
		return &ProtocolError{Err: err}
	}
	return nil
}
