package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"faultsim/internal/api"
	"faultsim/internal/config"
	"faultsim/internal/scenario"
)

// runFlags は run と sweep に共通のフラグ
type runFlags struct {
	configFile    string
	preset        string
	rounds        int
	nodes         int
	workers       int
	seed          uint64
	reliable      bool
	noDuplication bool
	crashes       bool
	recovery      bool
}

func (f *runFlags) register(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringVar(&f.configFile, "config", "", "設定ファイルパス (YAML/JSON)")
	flags.StringVar(&f.preset, "preset", "", "プリセットシナリオ名")
	flags.IntVar(&f.rounds, "rounds", 0, "ラウンド数")
	flags.IntVar(&f.nodes, "nodes", 0, "ノード数")
	flags.IntVar(&f.workers, "workers", 0, "ワーカー数（乱数列の数）")
	flags.Uint64Var(&f.seed, "seed", 0, "ベースシード")
	flags.BoolVar(&f.reliable, "reliable", false, "メッセージ損失を無効化")
	flags.BoolVar(&f.noDuplication, "no-duplication", false, "重複配送を無効化")
	flags.BoolVar(&f.crashes, "crashes", true, "クラッシュ注入を有効化")
	flags.BoolVar(&f.recovery, "recovery", true, "復旧を有効化")
}

// buildScenarioConfig はシナリオ設定を構築する。
// 設定ファイル、プリセット、quick の順に基準を選び、明示されたフラグで上書きする。
func buildScenarioConfig(cmd *cobra.Command, f *runFlags) (scenario.Config, error) {
	var cfg scenario.Config

	switch {
	case f.configFile != "":
		fileConfig, err := config.LoadFile(f.configFile)
		if err != nil {
			return cfg, fmt.Errorf("load config: %w", err)
		}
		cfg, err = fileConfig.ToScenarioConfig()
		if err != nil {
			return cfg, fmt.Errorf("convert config: %w", err)
		}
	case f.preset != "":
		preset, ok := scenario.GetPreset(f.preset)
		if !ok {
			return cfg, fmt.Errorf("unknown preset: %s (available: %v)", f.preset, scenario.ListPresets())
		}
		cfg = preset
	default:
		cfg = scenario.QuickScenario()
	}

	if f.rounds > 0 {
		cfg.Rounds = f.rounds
	}
	if f.nodes > 0 {
		cfg.NodeCount = f.nodes
	}
	if f.workers > 0 {
		cfg.Workers = f.workers
	}

	// フラグが明示的に指定された場合のみオーバーライド
	flags := cmd.Flags()
	if flags.Changed("seed") {
		cfg.Seed = f.seed
	}
	if f.reliable {
		cfg.Profile.NetworkReliable = true
	}
	if f.noDuplication {
		cfg.Profile.MessageDuplication = false
	}
	if flags.Changed("crashes") {
		cfg.EnableCrashes = f.crashes
	}
	if flags.Changed("recovery") {
		cfg.EnableRecovery = f.recovery
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func newRunCmd() *cobra.Command {
	f := &runFlags{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "シナリオを1回実行してレポートを表示",
		Example: `  faultsim run --preset quick
  faultsim run --config scenario.yaml --seed 42
  faultsim run --preset lossy --rounds 1000 --workers 8`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := buildScenarioConfig(cmd, f)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			printHeader(out, cfg)

			result, err := scenario.New(cfg).Run(cmd.Context())
			if result != nil {
				fmt.Fprintln(out, result.Report())
			}
			return err
		},
	}
	f.register(cmd)
	return cmd
}

func newSweepCmd() *cobra.Command {
	f := &runFlags{}
	var count int
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "連続したシードでシナリオを並行実行し、結果を比較",
		Example: `  faultsim sweep --preset default --seeds 10
  faultsim sweep --preset crash-recovery --seed 100 --seeds 20`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if count < 1 {
				return fmt.Errorf("--seeds must be positive, got %d", count)
			}
			cfg, err := buildScenarioConfig(cmd, f)
			if err != nil {
				return err
			}

			seeds := make([]uint64, count)
			for i := range seeds {
				seeds[i] = cfg.Seed + uint64(i)
			}

			results, err := scenario.RunSweep(cmd.Context(), cfg, seeds)
			if err != nil {
				return err
			}
			printSweep(cmd.OutOrStdout(), cfg, results)
			return nil
		},
	}
	f.register(cmd)
	cmd.Flags().IntVar(&count, "seeds", 5, "実行するシードの数")
	return cmd
}

func newPresetsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "presets",
		Short: "利用可能なプリセットを表示",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "利用可能なプリセットシナリオ:")
			fmt.Fprintln(out)
			for _, name := range scenario.ListPresets() {
				cfg, _ := scenario.GetPreset(name)
				fmt.Fprintf(out, "  %-16s %s\n", name, cfg.Description)
			}
			fmt.Fprintln(out)
			fmt.Fprintln(out, "使用例: faultsim run --preset quick")
		},
	}
}

func newServeCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "HTTP API サーバーを起動",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "faultsim - API Server")
			fmt.Fprintln(out, "=====================")
			fmt.Fprintf(out, "Starting server on http://%s\n", addr)
			fmt.Fprintln(out, "Press Ctrl+C to stop")
			fmt.Fprintln(out)

			return api.NewServer(addr).Start(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&addr, "addr", ":8080", "サーバーアドレス (例: :8080, 0.0.0.0:3000)")
	return cmd
}

// printHeader は実行前に設定の概要を表示する
func printHeader(out io.Writer, cfg scenario.Config) {
	fmt.Fprintln(out, "faultsim - Deterministic Fault Injection Simulator")
	fmt.Fprintln(out, "==================================================")
	fmt.Fprintf(out, "Scenario: %s\n", cfg.Name)
	fmt.Fprintf(out, "Nodes: %d, Workers: %d, Rounds: %d, Seed: %d\n", cfg.NodeCount, cfg.Workers, cfg.Rounds, cfg.Seed)
	fmt.Fprintf(out, "Reliable network: %v, Duplication: %v\n", cfg.Profile.NetworkReliable, cfg.Profile.MessageDuplication)
	fmt.Fprintf(out, "Crashes: %v, Recovery: %v\n", cfg.EnableCrashes, cfg.EnableRecovery)
	fmt.Fprintln(out, "==================================================")
	fmt.Fprintln(out)
}

// printSweep はシードごとの結果と平均を表にして表示する
func printSweep(out io.Writer, cfg scenario.Config, results []*scenario.Result) {
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "SEED\tMESSAGES\tLOST\tONCE\tTWICE\tCRASHES\tRECOVERIES\n")

	var lost, once, twice float64
	for _, r := range results {
		fmt.Fprintf(tw, "%d\t%d\t%.4f\t%.4f\t%.4f\t%d\t%d\n",
			r.Seed, r.Messages.Attempted, r.Rates.Lost, r.Rates.Delivered, r.Rates.Duplicated, r.Crashes, r.Recoveries)
		lost += r.Rates.Lost
		once += r.Rates.Delivered
		twice += r.Rates.Duplicated
	}

	n := float64(len(results))
	expected := cfg.Profile.ExpectedDistribution()
	fmt.Fprintf(tw, "mean\t\t%.4f\t%.4f\t%.4f\t\t\n", lost/n, once/n, twice/n)
	fmt.Fprintf(tw, "expected\t\t%.4f\t%.4f\t%.4f\t\t\n", expected[0], expected[1], expected[2])
	_ = tw.Flush()
}
