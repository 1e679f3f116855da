package model

// Caller-visible messages. Upstream error details never reach callers.
const (
	MsgAlreadyExists      = "이미 ChromaDB 존재합니다."
	MsgEmptySubtitle      = "자막이 없어 ChromaDB를 생성할 수 없습니다."
	MsgKnowledgeBaseMiss  = "ChromaDB 오류: 해당 영상의 지식 베이스가 없습니다. 먼저 ChromaDB를 생성하세요."
	MsgStreamFailed       = "RAG 스트리밍 처리 중 오류 발생"
	MsgUpstreamTimeout    = "응답 시간이 초과되었습니다. 잠시 후 다시 시도하세요."
	MsgSessionBusy        = "이전 질문을 처리 중입니다. 잠시 후 다시 시도하세요."
	MsgSummarizeFailed    = "요약 생성 중 오류 발생"
	MsgInvalidRequest     = "잘못된 요청입니다."
	MsgCreateFailedPrefix = "ChromaDB 생성 중 오류 발생"
	MsgUpstreamFailed     = "외부 서비스 호출에 실패했습니다."
)

// UserMessage maps an error to the fixed message shown to callers.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case IsAlreadyExistsError(err):
		return MsgAlreadyExists
	case IsEmptyInputError(err):
		return MsgEmptySubtitle
	case IsNotFoundError(err):
		return MsgKnowledgeBaseMiss
	case IsConcurrencyRaceError(err):
		return MsgSessionBusy
	case IsCollaboratorTimeout(err):
		return MsgUpstreamTimeout
	case IsValidationError(err):
		return MsgInvalidRequest
	default:
		return MsgStreamFailed
	}
}
