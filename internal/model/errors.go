package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, board, market, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeLoginRequired      = "LOGIN_REQUIRED"
	ErrCodeForbidden          = "FORBIDDEN"
	ErrCodeValidation         = "VALIDATION_ERROR"
	ErrCodePostNotFound       = "POST_NOT_FOUND"
	ErrCodeCommentNotFound    = "COMMENT_NOT_FOUND"
	ErrCodeAttachmentNotFound = "ATTACHMENT_NOT_FOUND"
	ErrCodeSSRFBlocked        = "SSRF_BLOCKED"
	ErrCodeUnknownMarket      = "UNKNOWN_MARKET"
	ErrCodeUnknownInstrument  = "UNKNOWN_INSTRUMENT"
	ErrCodeUnknownPeriod      = "UNKNOWN_PERIOD"
	ErrCodeNoDataForPeriod    = "NO_DATA_FOR_PERIOD"
	ErrCodeGatewayUnavailable = "GATEWAY_UNAVAILABLE"
	ErrCodeOldPasswordWrong   = "OLD_PASSWORD_INCORRECT"
	ErrCodePayloadTooLarge    = "PAYLOAD_TOO_LARGE"
)

// NewLoginRequiredError はログインが必要な操作を未ログインで行った場合のエラーを生成する。
func NewLoginRequiredError(action string) *APIError {
	return &APIError{
		Code:     ErrCodeLoginRequired,
		Message:  fmt.Sprintf("로그인 후 %s 수 있습니다.", action),
		Category: "auth",
		Action:   "로그인 페이지에서 로그인해 주세요.",
	}
}

// NewForbiddenError は他人のリソースを変更しようとした場合のエラーを生成する。
func NewForbiddenError() *APIError {
	return &APIError{
		Code:     ErrCodeForbidden,
		Message:  "작성자만 수정하거나 삭제할 수 있습니다.",
		Category: "auth",
		Action:   "본인이 작성한 글인지 확인해 주세요.",
	}
}

// NewValidationError は入力値検証エラーを生成する。
func NewValidationError(message string) *APIError {
	return &APIError{
		Code:     ErrCodeValidation,
		Message:  message,
		Category: "validation",
		Action:   "입력값을 확인해 주세요.",
	}
}

// NewPostNotFoundError は投稿が見つからない場合のエラーを生成する。
func NewPostNotFoundError(postID int64) *APIError {
	return &APIError{
		Code:     ErrCodePostNotFound,
		Message:  fmt.Sprintf("게시글을 찾을 수 없습니다: %d", postID),
		Category: "board",
		Action:   "게시판 목록에서 다시 선택해 주세요.",
	}
}

// NewCommentNotFoundError はコメントが見つからない場合のエラーを生成する。
func NewCommentNotFoundError(commentID int64) *APIError {
	return &APIError{
		Code:     ErrCodeCommentNotFound,
		Message:  fmt.Sprintf("댓글을 찾을 수 없습니다: %d", commentID),
		Category: "board",
		Action:   "페이지를 새로고침해 주세요.",
	}
}

// NewAttachmentNotFoundError は添付ファイルが見つからない場合のエラーを生成する。
func NewAttachmentNotFoundError(fileID int64) *APIError {
	return &APIError{
		Code:     ErrCodeAttachmentNotFound,
		Message:  fmt.Sprintf("첨부 파일을 찾을 수 없습니다: %d", fileID),
		Category: "board",
		Action:   "게시글을 다시 열어 주세요.",
	}
}

// NewSSRFBlockedError はSSRFブロックエラーを生成する。
func NewSSRFBlockedError() *APIError {
	return &APIError{
		Code:     ErrCodeSSRFBlocked,
		Message:  "보안 정책에 의해 첨부 파일 주소에 접근할 수 없습니다.",
		Category: "validation",
		Action:   "관리자에게 문의해 주세요.",
	}
}

// NewUnknownMarketError は未知のマーケット種別エラーを生成する。
func NewUnknownMarketError(kind string) *APIError {
	return &APIError{
		Code:     ErrCodeUnknownMarket,
		Message:  fmt.Sprintf("알 수 없는 시장 종류입니다: %s", kind),
		Category: "market",
		Action:   "forex, korean-stock, global-stock 중 하나를 지정해 주세요.",
	}
}

// NewUnknownInstrumentError はカタログにない銘柄コードのエラーを生成する。
func NewUnknownInstrumentError(code string) *APIError {
	return &APIError{
		Code:     ErrCodeUnknownInstrument,
		Message:  fmt.Sprintf("알 수 없는 종목 코드입니다: %s", code),
		Category: "market",
		Action:   "목록에 있는 종목을 선택해 주세요.",
	}
}

// NewUnknownPeriodError はカタログにない期間キーのエラーを生成する。
func NewUnknownPeriodError(period string) *APIError {
	return &APIError{
		Code:     ErrCodeUnknownPeriod,
		Message:  fmt.Sprintf("알 수 없는 기간입니다: %s", period),
		Category: "market",
		Action:   "실시간, 어제, 1주일, 1달, 3달 중 하나를 선택해 주세요.",
	}
}

// NewNoDataForPeriodError は指定期間の時系列データがない場合のエラーを生成する。
func NewNoDataForPeriodError() *APIError {
	return &APIError{
		Code:     ErrCodeNoDataForPeriod,
		Message:  "해당 기간에 대한 데이터가 없습니다.",
		Category: "market",
		Action:   "다른 기간을 선택해 주세요.",
	}
}

// NewGatewayUnavailableError はバックエンドと通信できない場合のエラーを生成する。
func NewGatewayUnavailableError() *APIError {
	return &APIError{
		Code:     ErrCodeGatewayUnavailable,
		Message:  "서버와 통신하는 중 오류가 발생했습니다.",
		Category: "system",
		Action:   "잠시 후 다시 시도해 주세요.",
	}
}

// NewOldPasswordIncorrectError は現在のパスワードが誤っている場合のエラーを生成する。
func NewOldPasswordIncorrectError() *APIError {
	return &APIError{
		Code:     ErrCodeOldPasswordWrong,
		Message:  "현재 비밀번호가 틀렸습니다. 다시 확인해주세요.",
		Category: "validation",
		Action:   "현재 비밀번호를 다시 입력해 주세요.",
	}
}

// NewPayloadTooLargeError は送信内容がlimitバイトを超えた場合のエラーを生成する。
func NewPayloadTooLargeError(limit int64) *APIError {
	return &APIError{
		Code:     ErrCodePayloadTooLarge,
		Message:  fmt.Sprintf("첨부 파일을 포함한 요청이 너무 큽니다. (최대 %s)", formatLimit(limit)),
		Category: "validation",
		Action:   "첨부 파일의 크기나 개수를 줄여 주세요.",
	}
}

func formatLimit(n int64) string {
	if n >= 1<<20 {
		return fmt.Sprintf("%d MB", n>>20)
	}
	return fmt.Sprintf("%d KB", (n+1023)>>10)
}
