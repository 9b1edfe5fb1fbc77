// Package model はドメインモデルを定義する。
package model

import "time"

// MediaKind はメディア参照の種類を表す。
type MediaKind string

const (
	// MediaKindURL は外部URL参照。
	MediaKindURL MediaKind = "url"
	// MediaKindBlob はアップロード済みblob参照（ストレージキー）。
	MediaKindBlob MediaKind = "blob"
)

// MediaRef はサムネイル等のメディア参照をタグ付きで表す。
// URLとblobハンドルが同じフィールドに混在していた旧実装の型判別を排除する。
type MediaRef struct {
	Kind  MediaKind
	Value string
}

// Module は販売単位となる動画/音声コンテンツを表す。
type Module struct {
	ID              string
	Title           string
	DescriptionHTML string // サニタイズ済みHTML
	Summary         string // DescriptionHTMLから抽出したプレーンテキスト
	Category        string
	Price           float64
	OriginalPrice   *float64 // 割引前価格。未設定の場合は割引なし
	IsPremium       bool
	IsVisible       bool
	Thumbnail       MediaRef
	Position        int
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// IsFree は購入なしでアクセスできるコンテンツかどうかを返す。
// 価格0かつ非プレミアムのものだけが無料扱いとなる。
func (m *Module) IsFree() bool {
	return m != nil && m.Price == 0 && !m.IsPremium
}

// Package は複数コンテンツを束ねた販売単位を表す。
// パッケージ自体が購入対象であり、所有すると同梱の無料コンテンツが解放される。
// 有料コンテンツは同梱されていても個別購入（アップグレード）が必要。
type Package struct {
	ID          string
	Name        string
	Description string
	ContentIDs  []string
	Price       float64
	IsVisible   bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Contains は指定コンテンツIDがパッケージに含まれるかを返す。
// ContentIDsの重複は上流で保証されないため、集合として扱う。
func (p *Package) Contains(moduleID string) bool {
	if p == nil {
		return false
	}
	for _, id := range p.ContentIDs {
		if id == moduleID {
			return true
		}
	}
	return false
}
