package scenario

import (
	"slices"

	"faultsim/internal/fault"
	"faultsim/internal/traffic"
)

// DefaultScenario はデフォルトの確率でクラッシュと復旧を含むシナリオを返す
func DefaultScenario() Config {
	return DefaultConfig()
}

// ReliableScenario は信頼できるネットワークのシナリオを返す
// メッセージは失われず、クラッシュもない
func ReliableScenario() Config {
	profile := fault.DefaultProfile()
	profile.NetworkReliable = true

	return Config{
		Name:           "reliable",
		Description:    "Reliable network: no loss, duplication only, no crashes",
		NodeCount:      5,
		Workers:        4,
		Rounds:         100,
		Seed:           1,
		Profile:        profile,
		Traffic:        traffic.DefaultConfig(),
		EnableCrashes:  false,
		EnableRecovery: false,
	}
}

// LossyScenario は損失の多いネットワークのシナリオを返す
func LossyScenario() Config {
	profile := fault.DefaultProfile()
	profile.Probabilities.MessageSent = 0.7

	return Config{
		Name:           "lossy",
		Description:    "Lossy network: 30% of messages are dropped",
		NodeCount:      5,
		Workers:        4,
		Rounds:         100,
		Seed:           1,
		Profile:        profile,
		Traffic:        traffic.DefaultConfig(),
		EnableCrashes:  true,
		EnableRecovery: true,
		MinDownRounds:  1,
	}
}

// NoDuplicationScenario は重複配送なしのシナリオを返す
func NoDuplicationScenario() Config {
	profile := fault.DefaultProfile()
	profile.MessageDuplication = false

	return Config{
		Name:           "no-duplication",
		Description:    "Unreliable network without message duplication",
		NodeCount:      5,
		Workers:        4,
		Rounds:         100,
		Seed:           1,
		Profile:        profile,
		Traffic:        traffic.DefaultConfig(),
		EnableCrashes:  true,
		EnableRecovery: true,
		MinDownRounds:  1,
	}
}

// CrashRecoveryScenario は頻繁なクラッシュと復旧のシナリオを返す
// 同時停止数は2ノードまで
func CrashRecoveryScenario() Config {
	profile := fault.DefaultProfile()
	profile.Probabilities.NodeFail = 0.2
	profile.Probabilities.NodeRecover = 0.5

	return Config{
		Name:           "crash-recovery",
		Description:    "Frequent crashes with bounded concurrent failures",
		NodeCount:      7,
		Workers:        4,
		Rounds:         200,
		Seed:           1,
		Profile:        profile,
		Traffic:        traffic.DefaultConfig(),
		EnableCrashes:  true,
		MaxFailedNodes: 2,
		EnableRecovery: true,
		MinDownRounds:  2,
	}
}

// QuickScenario はクイックテスト用シナリオを返す
// 短時間での動作確認用
func QuickScenario() Config {
	return Config{
		Name:           "quick",
		Description:    "Quick test for verification",
		NodeCount:      3,
		Workers:        2,
		Rounds:         10,
		Seed:           1,
		Profile:        fault.DefaultProfile(),
		Traffic:        traffic.Config{MessagesPerRound: 2, PayloadSize: 16},
		EnableCrashes:  true,
		EnableRecovery: true,
		MinDownRounds:  1,
	}
}

var presets = map[string]func() Config{
	"default":        DefaultScenario,
	"reliable":       ReliableScenario,
	"lossy":          LossyScenario,
	"no-duplication": NoDuplicationScenario,
	"crash-recovery": CrashRecoveryScenario,
	"quick":          QuickScenario,
}

// GetPreset は名前からプリセットシナリオを取得する
func GetPreset(name string) (Config, bool) {
	if fn, ok := presets[name]; ok {
		return fn(), true
	}
	return Config{}, false
}

// ListPresets は利用可能なプリセット名を返す
func ListPresets() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
