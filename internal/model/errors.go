// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, store, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeModuleNotFound    = "MODULE_NOT_FOUND"
	ErrCodePackageNotFound   = "PACKAGE_NOT_FOUND"
	ErrCodeUserNotFound      = "USER_NOT_FOUND"
	ErrCodeEmailTaken        = "EMAIL_TAKEN"
	ErrCodeInvalidCredential = "INVALID_CREDENTIAL"
	ErrCodeCartEmpty         = "CART_EMPTY"
	ErrCodeCartItemNotFound  = "CART_ITEM_NOT_FOUND"
	ErrCodePriceMismatch     = "PRICE_MISMATCH"
	ErrCodeInvalidQuantity   = "INVALID_QUANTITY"
	ErrCodeForbidden         = "FORBIDDEN"
	ErrCodeSnapshotFetch     = "SNAPSHOT_FETCH_FAILED"
)

// NewModuleNotFoundError はコンテンツ未検出エラーを生成する。
func NewModuleNotFoundError(moduleID string) *APIError {
	return &APIError{
		Code:     ErrCodeModuleNotFound,
		Message:  fmt.Sprintf("指定されたコンテンツが見つかりません: %s", moduleID),
		Category: "store",
		Action:   "コンテンツIDを確認してください。",
	}
}

// NewPackageNotFoundError はパッケージ未検出エラーを生成する。
func NewPackageNotFoundError(packageID string) *APIError {
	return &APIError{
		Code:     ErrCodePackageNotFound,
		Message:  fmt.Sprintf("指定されたパッケージが見つかりません: %s", packageID),
		Category: "store",
		Action:   "パッケージIDを確認してください。",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "ユーザーが見つかりません。",
		Category: "auth",
		Action:   "ログインし直してください。",
	}
}

// NewEmailTakenError は登録済みメールアドレスでの再登録エラーを生成する。
func NewEmailTakenError() *APIError {
	return &APIError{
		Code:     ErrCodeEmailTaken,
		Message:  "このメールアドレスは既に登録されています。",
		Category: "auth",
		Action:   "別のメールアドレスを使用するか、ログインしてください。",
	}
}

// NewInvalidCredentialError は認証情報不一致エラーを生成する。
// メールアドレスの存在有無を区別しない単一メッセージを返す。
func NewInvalidCredentialError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredential,
		Message:  "メールアドレスまたはパスワードが正しくありません。",
		Category: "auth",
		Action:   "入力内容を確認して再度お試しください。",
	}
}

// NewCartEmptyError は空カートでのチェックアウトエラーを生成する。
func NewCartEmptyError() *APIError {
	return &APIError{
		Code:     ErrCodeCartEmpty,
		Message:  "カートが空です。",
		Category: "store",
		Action:   "コンテンツをカートに追加してから購入手続きを行ってください。",
	}
}

// NewCartItemNotFoundError はカート内に存在しない行の操作エラーを生成する。
func NewCartItemNotFoundError(moduleID string) *APIError {
	return &APIError{
		Code:     ErrCodeCartItemNotFound,
		Message:  fmt.Sprintf("カートに該当する商品がありません: %s", moduleID),
		Category: "store",
		Action:   "カートの内容を確認してください。",
	}
}

// NewPriceMismatchError はカート内価格と現在価格の不一致エラーを生成する。
func NewPriceMismatchError(moduleID string) *APIError {
	return &APIError{
		Code:     ErrCodePriceMismatch,
		Message:  fmt.Sprintf("商品の価格が変更されています: %s", moduleID),
		Category: "store",
		Action:   "カートを開き直して最新の価格を確認してください。",
	}
}

// NewInvalidQuantityError は不正な数量指定エラーを生成する。
func NewInvalidQuantityError(quantity int) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidQuantity,
		Message:  fmt.Sprintf("無効な数量です: %d", quantity),
		Category: "validation",
		Action:   "数量には1以上の整数を指定してください。",
	}
}

// NewForbiddenError は権限不足エラーを生成する。
func NewForbiddenError() *APIError {
	return &APIError{
		Code:     ErrCodeForbidden,
		Message:  "この操作を行う権限がありません。",
		Category: "auth",
		Action:   "管理者アカウントでログインしてください。",
	}
}

// NewSnapshotFetchError はリモートスナップショット取得失敗エラーを生成する。
func NewSnapshotFetchError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeSnapshotFetch,
		Message:  fmt.Sprintf("リモートストアからのデータ取得に失敗しました: %s", reason),
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}
