package fault

import (
	"errors"
	"fmt"
)

// ErrNilSource は乱数源なしで New が呼ばれたときに返される
var ErrNilSource = errors.New("fault: nil random source")

// DecideDuplicationCount の結果
const (
	Lost       = 0
	Delivered  = 1
	Duplicated = 2
)

// Injector はメッセージのロスト・重複とノードのクラッシュ・復旧を判定する
type Injector struct {
	profile Profile
	src     Source
}

// New はプロファイルを検証し、ワーカー専用の乱数源と結び付ける
func New(profile Profile, src Source) (*Injector, error) {
	if err := profile.Validate(); err != nil {
		return nil, fmt.Errorf("invalid reliability profile: %w", err)
	}
	if src == nil {
		return nil, ErrNilSource
	}
	return &Injector{profile: profile, src: src}, nil
}

// Profile は作成時のプロファイルを返す
func (f *Injector) Profile() Profile {
	return f.profile
}

// DecideDuplicationCount は送信メッセージ1件の配送回数を返す。
// 結果は Lost, Delivered, Duplicated のいずれか。
func (f *Injector) DecideDuplicationCount() int {
	if !f.messageIsSent() {
		return Lost
	}
	if !f.profile.MessageDuplication {
		return Delivered
	}
	if f.src.Float64() < f.profile.Probabilities.MessageDuplication {
		return Delivered
	}
	return Duplicated
}

func (f *Injector) messageIsSent() bool {
	// 信頼できるネットワークでは乱数を消費しない
	if f.profile.NetworkReliable {
		return true
	}
	return f.src.Float64() < f.profile.Probabilities.MessageSent
}

// HasNodeFailed は稼働中のノードがこの判定でクラッシュするかを返す
func (f *Injector) HasNodeFailed() bool {
	return f.src.Float64() < f.profile.Probabilities.NodeFail
}

// HasNodeRecovered は停止中のノードがこの判定で復旧するかを返す
func (f *Injector) HasNodeRecovered() bool {
	return f.src.Float64() < f.profile.Probabilities.NodeRecover
}
