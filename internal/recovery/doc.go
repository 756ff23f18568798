// Package recovery はクラッシュしたノードの復旧を提供する。
//
// Manager は停止中のノードごとに各ラウンドで fault.Injector の
// HasNodeRecovered を1回引き、真になったノードを復旧候補にする。
// 候補はラウンドの区切りで Apply によりノード順に適用される。
//
// # 機能
//
// - 最小停止期間: MinDownRounds 未満しか停止していないノードは判定しない
// - 停止期間の集計: 復旧時に停止ラウンド数を記録する
//
// # 使用例
//
//	manager := recovery.New(cluster, recovery.DefaultConfig())
//	manager.SetMetrics(m)
//
//	// ワーカー内
//	manager.Propose(n, inj, round)
//
//	// ラウンドの区切り
//	recovered := manager.Apply(round)
package recovery
