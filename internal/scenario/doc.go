// Package scenario はラウンド制の障害注入シナリオ実行機能を提供する。
//
// エンジンはクラスタ、ネットワーク、トラフィック生成器、クラッシュドライバ、
// 復旧マネージャをワーカープールの上で連携させる。
// 各ノードは1つのワーカーに固定され、そのワーカーの fault.Injector が
// ノードのクラッシュ判定、復旧判定、送信メッセージの判定を行う。
//
// # ラウンド
//
// 1. 稼働中のノードはクラッシュ判定を1回引き、その後メッセージを送る
// 2. 停止中のノードは復旧判定を1回引く
// 3. バリアでクラッシュ、復旧、配送の順にノード順で適用する
//
// シード、ワーカー数、設定が同じなら実行結果は完全に再現される。
//
// # 機能
//
// - シナリオ定義と実行
// - 定義済みプリセットシナリオ
// - 複数シードの並行実行（RunSweep）
// - 実行結果のレポート生成
//
// # プリセットシナリオ
//
// - default: デフォルト確率、クラッシュと復旧あり
// - reliable: 信頼できるネットワーク、クラッシュなし
// - lossy: 30%のメッセージ損失
// - no-duplication: 重複配送なし
// - crash-recovery: 頻繁なクラッシュ、同時停止2ノードまで
// - quick: 短時間の動作確認
//
// # 使用例
//
//	config, _ := scenario.GetPreset("crash-recovery")
//	config.Seed = 42
//	engine := scenario.New(config)
//	result, err := engine.Run(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(result.Report())
package scenario
