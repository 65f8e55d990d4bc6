package rag

import (
	"fmt"
	"strings"

	"github.com/KimYongKuk/commercial-analysis/pkg/vector"
)

// Message is one entry of a chat completion prompt, and of the conversation
// history a client sends along with a question.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// DefaultHistoryQueries is how many earlier user questions are folded into
// the retrieval query.
const DefaultHistoryQueries = 2

// SystemPrompt frames answers drawn from the knowledge documents.
const SystemPrompt = `당신은 상권 분석 및 창업 컨설팅 전문가이자 친근한 대화 상대입니다.

답변 전략:
1. **부동산/상권 관련 질문**: 제공된 참고 문서를 기반으로 전문적이고 구체적인 답변을 제공하세요.
   - 참고 문서의 내용을 자연스럽게 설명하고, 필요시 출처를 언급하세요. 참고 문서에 없는 내용은 솔직하게 '제공된 자료에는 해당 정보가 없습니다'라고 말하기
   - 구체적이고 실용적인 조언 제공

2. **일상적인 대화/인사/잡담**: 참고 자료와 무관하게 자연스럽고 친근하게 응답하세요.
   - "안녕하세요", "고맙습니다", "오늘 날씨 어때?" 등의 질문에는 일반적인 대화로 응답
   - 참고 자료를 억지로 언급하지 마세요
   - 친근하고 따뜻한 톤 유지

출력 스타일 가이드:
- 마크다운 특수문자(###, ***, ---, ===, ~~~)를 사용하지 마세요
- 제목이나 강조가 필요할 때는 **굵은 글씨**만 사용하세요
- 구분선(---, ***)은 사용하지 마세요
- 목록은 "•" 또는 숫자로 간결하게 표현하세요
- 문단 구분은 빈 줄 하나로 충분합니다
- 자연스럽고 읽기 편한 문장으로 작성하세요

사용자의 질문 의도를 파악하여 적절한 방식으로 답변하세요.`

// SearchQuery joins the last maxHistory user questions of history with
// query, so a follow-up like "가격대는?" still retrieves what the earlier
// questions were about. Assistant turns are left out.
func SearchQuery(query string, history []Message, maxHistory int) string {
	var asked []string
	for _, m := range history {
		if m.Role == RoleUser {
			asked = append(asked, m.Content)
		}
	}
	if maxHistory >= 0 && len(asked) > maxHistory {
		asked = asked[len(asked)-maxHistory:]
	}
	if len(asked) == 0 {
		return query
	}
	return strings.Join(append(asked, query), " ")
}

// BuildMessages lays out the prompt as the system prompt, the user and
// assistant turns of history, then the question wrapped with the retrieved
// documents.
func BuildMessages(query string, docs []vector.QueryResult, history []Message) []Message {
	msgs := make([]Message, 0, len(history)+2)
	msgs = append(msgs, Message{Role: RoleSystem, Content: SystemPrompt})
	for _, m := range history {
		if m.Role == RoleUser || m.Role == RoleAssistant {
			msgs = append(msgs, m)
		}
	}

	user := fmt.Sprintf("[참고 문서]\n%s\n\n[사용자 질문]\n%s\n\n위 참고 문서를 바탕으로 사용자의 질문에 답변해주세요.\n",
		FormatDocuments(docs), query)
	return append(msgs, Message{Role: RoleUser, Content: user})
}

// FormatDocuments numbers each document and names its source.
func FormatDocuments(docs []vector.QueryResult) string {
	var b strings.Builder
	for i, d := range docs {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "[문서 %d] (출처: %s)\n%s", i+1, d.Source, d.Content)
	}
	return b.String()
}
