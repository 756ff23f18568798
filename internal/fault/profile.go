package fault

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidProbability は確率が [0, 1] の範囲外のときに返される
var ErrInvalidProbability = errors.New("probability must be within [0, 1]")

// Probabilities は障害モデルの確率パラメータ
type Probabilities struct {
	MessageSent        float64 `json:"message_sent"`        // 送信元からメッセージが出る確率
	MessageDuplication float64 `json:"message_duplication"` // 送信されたメッセージが1回だけ届く確率
	NodeFail           float64 `json:"node_fail"`           // 稼働中のノードが1回の判定でクラッシュする確率
	NodeRecover        float64 `json:"node_recover"`        // 停止中のノードが1回の判定で復旧する確率
}

// DefaultProbabilities はデフォルトの確率を返す
func DefaultProbabilities() Probabilities {
	return Probabilities{
		MessageSent:        0.95,
		MessageDuplication: 0.90,
		NodeFail:           0.05,
		NodeRecover:        0.70,
	}
}

// Profile は1回の実行におけるネットワークとノードの信頼性を表す
type Profile struct {
	NetworkReliable    bool          `json:"network_reliable"`
	MessageDuplication bool          `json:"message_duplication"`
	Probabilities      Probabilities `json:"probabilities"`
}

// DefaultProfile は重複ありの信頼できないネットワークを返す
func DefaultProfile() Profile {
	return Profile{
		NetworkReliable:    false,
		MessageDuplication: true,
		Probabilities:      DefaultProbabilities(),
	}
}

// NewProfile はプロファイルを作成して検証する
func NewProfile(networkReliable, messageDuplication bool, p Probabilities) (Profile, error) {
	profile := Profile{
		NetworkReliable:    networkReliable,
		MessageDuplication: messageDuplication,
		Probabilities:      p,
	}
	if err := profile.Validate(); err != nil {
		return Profile{}, err
	}
	return profile, nil
}

// Validate は NaN または [0, 1] 範囲外の最初の確率をエラーとして返す
func (p Profile) Validate() error {
	fields := []struct {
		name  string
		value float64
	}{
		{"message_sent", p.Probabilities.MessageSent},
		{"message_duplication", p.Probabilities.MessageDuplication},
		{"node_fail", p.Probabilities.NodeFail},
		{"node_recover", p.Probabilities.NodeRecover},
	}

	for _, f := range fields {
		if math.IsNaN(f.value) || f.value < 0 || f.value > 1 {
			return fmt.Errorf("%s=%v: %w", f.name, f.value, ErrInvalidProbability)
		}
	}
	return nil
}

// DeliveryProbability はメッセージが送信元から出る実効確率を返す
func (p Profile) DeliveryProbability() float64 {
	if p.NetworkReliable {
		return 1
	}
	return p.Probabilities.MessageSent
}

// ExpectedDistribution は DecideDuplicationCount の各結果（Lost, Delivered, Duplicated）の理論上の割合を返す
func (p Profile) ExpectedDistribution() [3]float64 {
	sent := p.DeliveryProbability()
	if !p.MessageDuplication {
		return [3]float64{1 - sent, sent, 0}
	}
	once := sent * p.Probabilities.MessageDuplication
	return [3]float64{1 - sent, once, sent - once}
}
