// Package model はドメインモデルを定義する。
package model

import "time"

// PurchaseStatus は購入レコードの状態を表す。
type PurchaseStatus string

const (
	// PurchaseStatusCompleted は決済完了。アクセス権を与えるのはこの状態のみ。
	PurchaseStatusCompleted PurchaseStatus = "completed"
	// PurchaseStatusPending は決済処理中。
	PurchaseStatusPending PurchaseStatus = "pending"
	// PurchaseStatusFailed は決済失敗。
	PurchaseStatusFailed PurchaseStatus = "failed"
)

// PurchaseType は購入対象の種別を表す。
type PurchaseType string

const (
	// PurchaseTypeVideo は単体コンテンツの購入。
	PurchaseTypeVideo PurchaseType = "video"
	// PurchaseTypePackage はパッケージの購入。
	PurchaseTypePackage PurchaseType = "package"
)

// Purchase は購入台帳の1レコードを表す。
// ModuleIDはコンテンツIDまたはパッケージIDのどちらかであり、Typeで区別される。
// 同一(UserID, ModuleID)の重複レコードはリモートストア由来のスナップショットに
// 混入しうるため、利用側は集約して扱うこと。
type Purchase struct {
	ID           string
	UserID       string
	ModuleID     string
	PurchaseDate time.Time
	Amount       float64
	Status       PurchaseStatus
	Type         PurchaseType
}

// Confers はこの購入レコードが指定ユーザー・対象IDへのアクセス権を
// 与えるかどうかを返す。完了済みの購入のみが権利を与える。
func (p *Purchase) Confers(userID, targetID string) bool {
	return p != nil && p.Status == PurchaseStatusCompleted &&
		p.UserID == userID && p.ModuleID == targetID
}
