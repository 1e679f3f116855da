// Package summarize turns a subtitle and its timeline into a structured
// markdown summary.
package summarize

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/Han1236/syuka-insight/internal/llm"
	"github.com/Han1236/syuka-insight/internal/metrics"
	"github.com/Han1236/syuka-insight/internal/model"
)

const instructions = `당신은 YouTube 영상의 자막과 타임라인을 분석하여 구조화된 요약을 제공하는 전문가입니다.

다음 규칙을 따라 요약을 작성해주세요:
1. 전체 영상의 주제를 대표하는 제목을 ## 형식으로 작성하세요.
2. 전체 내용에 대한 간단한 소개를 작성하세요.
3. 타임라인의 각 구간별로 다음 형식으로 요약하세요:
### 적절한 이모티콘, 수정한 제목 (제목만 표시, 시간 표시하지 말 것, 구간 제목을 참고해서 내용을 정리하고 이를 근거로 제목 수정)
- 핵심 내용 요약 (bullet points)
- 구체적인 내용 설명 (중요한 키워드에는 ** 표시해서 강조해주세요.)
- 구간 별 중간 요약으로 한줄 정리
- 중요한 키워드나 개념 설명
4. 마지막에 전체 내용의 핵심 포인트를 3줄로 정리해주세요.`

const request = "위 내용을 요약해주세요."

// Summarizer makes exactly one completion call per summary.
type Summarizer struct {
	gen     llm.Generator
	timeout time.Duration
	log     zerolog.Logger
}

func New(gen llm.Generator, timeout time.Duration, log zerolog.Logger) *Summarizer {
	return &Summarizer{gen: gen, timeout: timeout, log: log}
}

// Summarize fails with model.EmptyInputError for a blank subtitle and with
// model.GenerationError for any completion failure. The timeline may be empty.
func (s *Summarizer) Summarize(ctx context.Context, timeline, subtitle string) (summary string, err error) {
	if strings.TrimSpace(subtitle) == "" {
		return "", model.EmptyInputError{Field: "subtitle"}
	}
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	defer func() { metrics.ObserveCall("summarize", start, err) }()

	out, err := s.gen.Complete(ctx, llm.Request{
		System:   systemPrompt(timeline, subtitle),
		Messages: []llm.Message{{Role: llm.RoleUser, Content: request}},
	})
	if err != nil {
		s.log.Error().Err(err).Int("subtitle_len", len(subtitle)).Msg("summarize failed")
		return "", model.GenerationError{Err: model.WrapCall("summarize", err)}
	}
	if strings.TrimSpace(out) == "" {
		return "", model.GenerationError{Err: errors.New("empty summary")}
	}
	s.log.Debug().Dur("elapsed", time.Since(start)).Int("summary_len", len(out)).Msg("summary generated")
	return out, nil
}

func systemPrompt(timeline, subtitle string) string {
	var b strings.Builder
	b.WriteString(instructions)
	b.WriteString("\n\n타임라인 정보:\n")
	b.WriteString(timeline)
	b.WriteString("\n\n자막 내용:\n")
	b.WriteString(subtitle)
	return b.String()
}
