package llm

import (
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"
)

// Messages surfaced to the user when the upstream cannot answer.
const (
	MessageUnknownError  = "알 수 없는 오류가 발생했습니다."
	MessageTimeout       = "요청 시간이 초과되었습니다. 잠시 후 다시 시도해주세요."
	MessageNetworkPrefix = "네트워크 오류가 발생했습니다: "
	MessageMissingAPIKey = "API key is not configured"
)

// upstreamErrorMessages maps upstream error codes to localized text.
var upstreamErrorMessages = map[string]string{
	"Conversation does not exists": "요청한 대화를 찾을 수 없습니다. 새 대화를 시작해주세요.",
	"invalid_param":                "잘못된 파라미터가 입력되었습니다.",
	"app_unavailable":              "앱 설정을 사용할 수 없습니다. 관리자에게 문의하세요.",
	"provider_not_initialize":      "모델 인증 정보가 설정되어 있지 않습니다.",
	"provider_quota_exceeded":      "API 호출 한도를 초과했습니다.",
	"model_currently_not_support":  "현재 모델을 사용할 수 없습니다.",
	"completion_request_error":     "텍스트 생성 요청에 실패하였습니다.",
	"internal_server_error":        "서버 내부 오류가 발생했습니다.",
}

// UpstreamError is a non-success response from the chat backend.
type UpstreamError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *UpstreamError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("upstream returned %d (%s): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("upstream returned %d: %s", e.StatusCode, e.Message)
}

// ParseUpstreamError builds an UpstreamError from a non-success response
// body. Message is already localized: a known code wins, then the body's
// "message", then a generic text. A body that is not a JSON object yields
// an HTTP status message.
func ParseUpstreamError(statusCode int, body []byte) *UpstreamError {
	e := &UpstreamError{StatusCode: statusCode}

	rec := gjson.ParseBytes(body)
	if !gjson.ValidBytes(body) || !rec.IsObject() {
		e.Message = fmt.Sprintf("HTTP %d 오류가 발생했습니다.", statusCode)
		return e
	}

	e.Code = rec.Get("code").String()

	switch {
	case upstreamErrorMessages[e.Code] != "":
		e.Message = upstreamErrorMessages[e.Code]
	case rec.Get("message").Type == gjson.String:
		e.Message = rec.Get("message").Str
	default:
		e.Message = MessageUnknownError
	}

	return e
}

// errorFrame is the JSON payload of a synthesized error event.
type errorFrame struct {
	Event   Kind   `json:"event"`
	Message string `json:"message"`
}

// ErrorFrame encodes message as one complete SSE error event, including the
// blank line that ends it.
func ErrorFrame(message string) []byte {
	payload, err := json.Marshal(errorFrame{Event: KindError, Message: message})
	if err != nil {
		// A struct of two strings always marshals.
		panic(err)
	}

	frame := make([]byte, 0, len(payload)+8)
	frame = append(frame, "data: "...)
	frame = append(frame, payload...)
	frame = append(frame, "\n\n"...)
	return frame
}
