package rag

import (
	"fmt"
	"strings"

	"github.com/Han1236/syuka-insight/internal/llm"
	"github.com/Han1236/syuka-insight/internal/model"
)

const qaInstructions = `당신은 YouTube 영상의 내용을 분석하여 질문에 대한 답변을 제공하는 AI입니다.
다음 규칙을 철저히 따르세요:

1. 답변은 반드시 %s로 작성하세요.
2. 질문에 대한 답변은 아래 제공된 컨텍스트(영상 정보)만을 기반으로 하세요.
3. 사용자가 질문을 이해하기 쉽도록 중요 키워드는 강조(**) 표시하세요.
4. 너무 짧거나 단답형으로 답하지 말고, 충분한 정보를 포함하여 자연스럽게 설명하세요.
5. 불확실한 내용이 있다면 추측하지 말고 '해당 정보는 영상에 없습니다'라고 답변하세요.`

func answerLanguage(lang string) string {
	switch strings.ToLower(lang) {
	case "", "korean", "ko":
		return "한국어"
	}
	return lang
}

// buildRequest assembles the generation request from the retrieved chunks,
// the prior session turns and the untranslated query.
func buildRequest(lang string, chunks []model.DocumentChunk, history []model.Turn, query string) llm.Request {
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	msgs := make([]llm.Message, 0, len(history)+1)
	for _, t := range history {
		role := llm.RoleUser
		if t.Role == model.RoleAssistant {
			role = llm.RoleAssistant
		}
		msgs = append(msgs, llm.Message{Role: role, Content: t.Content})
	}
	msgs = append(msgs, llm.Message{
		Role:    llm.RoleUser,
		Content: "<context>\n" + strings.Join(texts, "\n\n") + "\n</context>\n\n사용자 질문:\n" + query,
	})

	return llm.Request{
		System:   fmt.Sprintf(qaInstructions, answerLanguage(lang)),
		Messages: msgs,
	}
}
