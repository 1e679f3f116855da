package validate

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Han1236/syuka-insight/internal/model"
)

func TestCreateKnowledgeBase(t *testing.T) {
	assert.NoError(t, CreateKnowledgeBase("abc123", "제목", "자막"))
	assert.True(t, model.IsEmptyInputError(CreateKnowledgeBase("abc123", "제목", "   ")))
	assert.True(t, model.IsValidationError(CreateKnowledgeBase("a/b", "제목", "자막")))
	assert.True(t, model.IsValidationError(CreateKnowledgeBase("abc123", strings.Repeat("가", MaxTitleRunes+1), "자막")))
}

func TestAsk(t *testing.T) {
	assert.NoError(t, Ask("질문", "abc123", ""))
	assert.True(t, model.IsEmptyInputError(Ask(" \n", "abc123", "")))
	assert.True(t, model.IsValidationError(Ask(strings.Repeat("a", MaxPromptRunes+1), "abc123", "")))
	// Runes, not bytes: Korean at the limit is accepted.
	assert.NoError(t, Ask(strings.Repeat("가", MaxPromptRunes), "abc123", ""))
}

func TestSummarize(t *testing.T) {
	assert.NoError(t, Summarize("", "자막"))
	assert.True(t, model.IsEmptyInputError(Summarize("00:00 인트로", "")))
}

func TestDecodeJSON(t *testing.T) {
	var dst struct {
		VideoID string `json:"video_id"`
	}
	r := httptest.NewRequest("POST", "/", strings.NewReader(`{"video_id":"abc123"}`))
	require.NoError(t, DecodeJSON(httptest.NewRecorder(), r, &dst))
	assert.Equal(t, "abc123", dst.VideoID)

	r = httptest.NewRequest("POST", "/", strings.NewReader(`{"video_id":`))
	assert.Error(t, DecodeJSON(httptest.NewRecorder(), r, &dst))

	r = httptest.NewRequest("POST", "/", strings.NewReader(``))
	assert.EqualError(t, DecodeJSON(httptest.NewRecorder(), r, &dst), "request body is empty")
}
