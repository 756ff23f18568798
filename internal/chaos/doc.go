// Package chaos はノードのクラッシュ注入を提供する。
//
// Monkey は各ラウンドで稼働中のノードごとに fault.Injector の
// HasNodeFailed を1回引き、真になったノードをクラッシュ候補にする。
// 候補はラウンドの区切りで Apply によりノード順に適用されるため、
// ワーカーのスケジューリングに関係なく結果は決定的になる。
//
// # 同時停止数の上限
//
// MaxFailedNodes が正の場合、停止中のノード数が上限に達していれば
// 候補は抑制される（乱数は消費済みなので乱数列はずれない）。
//
// # 使用例
//
//	monkey := chaos.New(cluster, chaos.Config{MaxFailedNodes: 2})
//	monkey.SetMetrics(m)
//
//	// ワーカー内
//	monkey.Propose(n, inj)
//
//	// ラウンドの区切り
//	crashed := monkey.Apply(round)
package chaos
