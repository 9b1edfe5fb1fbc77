// Package entitlement はコンテンツへのアクセス権を判定する純粋ロジックを提供する。
//
// 判定は取得済みのスナップショット（ユーザー・購入台帳・パッケージ一覧）のみを
// 入力とし、I/Oを一切行わない。描画のたびに呼んでも安全である。
// 購入台帳とユーザーの非正規化キャッシュ（PurchasedModules）は書き込みの伝播遅延で
// 食い違うことがあるため、どちらか一方を正とせずORで照合する。
package entitlement

import "github.com/hitoshi/kidstore/internal/model"

// Reason はアクセス判定の理由コードを表す。
type Reason string

const (
	// ReasonFree は無料コンテンツによる許可。
	ReasonFree Reason = "free"
	// ReasonLoginRequired は未ログインによる拒否。
	ReasonLoginRequired Reason = "login_required"
	// ReasonAdmin は管理者権限による許可。
	ReasonAdmin Reason = "admin"
	// ReasonPurchased は購入済み（台帳またはキャッシュ）による許可。
	ReasonPurchased Reason = "purchased"
	// ReasonPackage は所有パッケージ同梱による許可。
	ReasonPackage Reason = "package"
	// ReasonPurchaseRequired は未購入による拒否。
	ReasonPurchaseRequired Reason = "purchase_required"
	// ReasonUpgradeRequired は所有パッケージ内の有料コンテンツに対する拒否。
	// アクセス結果はReasonPurchaseRequiredと同じ拒否であり、UI文言のみが異なる。
	ReasonUpgradeRequired Reason = "upgrade_required"
)

// reasonMessages は理由コードに対応するUI表示文言。
var reasonMessages = map[Reason]string{
	ReasonFree:             "無料コンテンツです。",
	ReasonLoginRequired:    "ログインが必要です。",
	ReasonAdmin:            "管理者アクセスです。",
	ReasonPurchased:        "購入済みです。",
	ReasonPackage:          "所有パッケージに含まれています。",
	ReasonPurchaseRequired: "購入が必要です。",
	ReasonUpgradeRequired:  "アップグレード購入が必要です。",
}

// Message は理由コードのUI表示文言を返す。
func (r Reason) Message() string {
	if msg, ok := reasonMessages[r]; ok {
		return msg
	}
	return string(r)
}

// Decision はアクセス判定の結果を表す。
type Decision struct {
	Granted bool
	Reason  Reason
}

// Evaluate はユーザーが指定コンテンツにアクセスできるかを判定する。
// ルールは優先順に評価され、最初に一致したものが結果となる:
//
//  1. 無料コンテンツ（価格0かつ非プレミアム）は誰でも許可
//  2. 未ログインは拒否
//  3. 管理者は許可
//  4. 完了済み購入（台帳）があれば許可
//  5. ユーザーのPurchasedModulesキャッシュにあれば許可
//  6. 所有パッケージに含まれる価格0コンテンツは許可
//  7. それ以外は拒否
//
// purchasesはステータス未フィルタ・重複込みのまま渡してよい。欠損や不正な
// データは常に拒否側に倒れる（無料判定のみ例外）。
func Evaluate(user *model.User, module *model.Module, purchases []model.Purchase, packages []model.Package) Decision {
	if module == nil || module.ID == "" {
		return Decision{Granted: false, Reason: ReasonPurchaseRequired}
	}

	// ルール1: 無料コンテンツはログイン前でもアクセス可能
	if module.IsFree() {
		return Decision{Granted: true, Reason: ReasonFree}
	}

	// ルール2: 以降の判定はログイン必須
	if user == nil || user.ID == "" {
		return Decision{Granted: false, Reason: ReasonLoginRequired}
	}

	// ルール3: 管理者は全コンテンツにアクセス可能
	if user.IsAdmin() {
		return Decision{Granted: true, Reason: ReasonAdmin}
	}

	// ルール4/5: 台帳とキャッシュのOR照合
	if ownsTarget(user, module.ID, purchases) {
		return Decision{Granted: true, Reason: ReasonPurchased}
	}

	// ルール6: 所有パッケージ同梱の価格0コンテンツは解放される。
	// 有料コンテンツは同梱されていても個別のアップグレード購入が必要。
	inOwnedPackage := false
	for i := range packages {
		if !packages[i].Contains(module.ID) {
			continue
		}
		if !ownsTarget(user, packages[i].ID, purchases) {
			continue
		}
		if module.Price == 0 {
			return Decision{Granted: true, Reason: ReasonPackage}
		}
		inOwnedPackage = true
	}

	// ルール7: 拒否。所有パッケージ内の有料コンテンツはUI向けに区別する
	if inOwnedPackage {
		return Decision{Granted: false, Reason: ReasonUpgradeRequired}
	}
	return Decision{Granted: false, Reason: ReasonPurchaseRequired}
}

// ownsTarget はユーザーが対象ID（コンテンツまたはパッケージ）を所有しているかを返す。
// 完了済み購入の台帳とPurchasedModulesキャッシュを独立した情報源としてORで照合する。
// 台帳の重複レコードは結果に影響しない。
func ownsTarget(user *model.User, targetID string, purchases []model.Purchase) bool {
	if user == nil || targetID == "" {
		return false
	}
	for i := range purchases {
		if purchases[i].Confers(user.ID, targetID) {
			return true
		}
	}
	for _, id := range user.PurchasedModules {
		if id == targetID {
			return true
		}
	}
	return false
}

// OwnedModules はユーザーが所有理由（管理者・購入・パッケージ同梱）で
// アクセスできるコンテンツの一覧を返す。無料コンテンツは明示的に購入されて
// いない限り含まれない（「マイビデオ」はアクセス可能数ではなく所有数を示す）。
// 結果はIDで重複排除され、入力順を保つ。
func OwnedModules(user *model.User, allModules []model.Module, purchases []model.Purchase, packages []model.Package) []model.Module {
	if user == nil || user.ID == "" {
		return nil
	}

	owned := make([]model.Module, 0, len(allModules))
	seen := make(map[string]struct{}, len(allModules))

	for i := range allModules {
		m := &allModules[i]
		if _, dup := seen[m.ID]; dup {
			continue
		}
		if ownsForReason(user, m, purchases, packages) {
			owned = append(owned, *m)
			seen[m.ID] = struct{}{}
		}
	}
	return owned
}

// ownsForReason は所有理由（Evaluateのルール3〜6）による許可かどうかを返す。
// 無料フォールバック（ルール1）は所有とはみなさない。
func ownsForReason(user *model.User, module *model.Module, purchases []model.Purchase, packages []model.Package) bool {
	if module == nil || module.ID == "" {
		return false
	}
	if user.IsAdmin() {
		return true
	}
	if ownsTarget(user, module.ID, purchases) {
		return true
	}
	if module.Price != 0 {
		return false
	}
	for i := range packages {
		if packages[i].Contains(module.ID) && ownsTarget(user, packages[i].ID, purchases) {
			return true
		}
	}
	return false
}

// AvailableModules は未所有かつ購入可能なコンテンツの一覧を返す。
// 非表示コンテンツは除外され、入力順を保つ。可視コンテンツ上では
// OwnedModulesと互いに素な分割になる。
func AvailableModules(user *model.User, allModules []model.Module, purchases []model.Purchase, packages []model.Package) []model.Module {
	available := make([]model.Module, 0, len(allModules))
	seen := make(map[string]struct{}, len(allModules))

	for i := range allModules {
		m := &allModules[i]
		if !m.IsVisible {
			continue
		}
		if _, dup := seen[m.ID]; dup {
			continue
		}
		seen[m.ID] = struct{}{}
		if user != nil && user.ID != "" && ownsForReason(user, m, purchases, packages) {
			continue
		}
		available = append(available, *m)
	}
	return available
}
