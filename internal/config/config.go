package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"faultsim/internal/fault"
	"faultsim/internal/scenario"
)

// validate は設定ファイル用のバリデータ
var validate *validator.Validate

func init() {
	validate = validator.New()
	_ = validate.RegisterValidation("duration", validateDuration)
}

// validateDuration は time.ParseDuration で解釈できる文字列かを検証する
func validateDuration(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	if s == "" {
		return true
	}
	d, err := time.ParseDuration(s)
	return err == nil && d >= 0
}

// FileConfig は設定ファイルの構造
type FileConfig struct {
	Scenario    ScenarioConfig    `yaml:"scenario" json:"scenario"`
	Reliability ReliabilityConfig `yaml:"reliability" json:"reliability"`
}

// ScenarioConfig はシナリオ設定
type ScenarioConfig struct {
	Name        string  `yaml:"name" json:"name"`
	Description string  `yaml:"description" json:"description"`
	NodeCount   int     `yaml:"node_count" json:"node_count" validate:"gte=0"`
	Workers     int     `yaml:"workers" json:"workers" validate:"gte=0"`
	Rounds      int     `yaml:"rounds" json:"rounds" validate:"gte=0"`
	Seed        *uint64 `yaml:"seed" json:"seed"`
	Timeout     string  `yaml:"timeout" json:"timeout" validate:"duration"`

	Traffic  TrafficConfig  `yaml:"traffic" json:"traffic"`
	Crashes  CrashConfig    `yaml:"crashes" json:"crashes"`
	Recovery RecoveryConfig `yaml:"recovery" json:"recovery"`
}

// TrafficConfig はトラフィック設定
type TrafficConfig struct {
	MessagesPerRound *int `yaml:"messages_per_round" json:"messages_per_round" validate:"omitempty,gte=0"`
	PayloadSize      *int `yaml:"payload_size" json:"payload_size" validate:"omitempty,gte=0"`
}

// CrashConfig はクラッシュ設定
type CrashConfig struct {
	Enabled        *bool `yaml:"enabled" json:"enabled"`
	MaxFailedNodes int   `yaml:"max_failed_nodes" json:"max_failed_nodes" validate:"gte=0"`
}

// RecoveryConfig は復旧設定
type RecoveryConfig struct {
	Enabled       *bool `yaml:"enabled" json:"enabled"`
	MinDownRounds *int  `yaml:"min_down_rounds" json:"min_down_rounds" validate:"omitempty,gte=0"`
}

// ReliabilityConfig は信頼性プロファイルの設定。省略した項目はデフォルト値になる
type ReliabilityConfig struct {
	NetworkReliable    *bool    `yaml:"network_reliable" json:"network_reliable"`
	MessageDuplication *bool    `yaml:"message_duplication" json:"message_duplication"`
	MessageSent        *float64 `yaml:"message_sent" json:"message_sent" validate:"omitempty,gte=0,lte=1"`
	Duplication        *float64 `yaml:"duplication" json:"duplication" validate:"omitempty,gte=0,lte=1"`
	NodeFail           *float64 `yaml:"node_fail" json:"node_fail" validate:"omitempty,gte=0,lte=1"`
	NodeRecover        *float64 `yaml:"node_recover" json:"node_recover" validate:"omitempty,gte=0,lte=1"`
}

// LoadFile は設定ファイルを読み込む
func LoadFile(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config FileConfig
	ext := strings.ToLower(filepath.Ext(path))

	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse YAML: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse JSON: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}

	return &config, nil
}

// Validate は設定を検証する
func (f *FileConfig) Validate() error {
	if err := validate.Struct(f); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fieldError(fe))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// fieldError は検証エラーを読みやすい文字列にする
func fieldError(fe validator.FieldError) string {
	field := strings.TrimPrefix(fe.Namespace(), "FileConfig.")
	switch fe.Tag() {
	case "gte", "lte":
		return fmt.Sprintf("%s must satisfy %s %s (got %v)", field, fe.Tag(), fe.Param(), fe.Value())
	case "duration":
		return fmt.Sprintf("%s is not a valid duration: %q", field, fe.Value())
	default:
		return fmt.Sprintf("%s failed %s", field, fe.Tag())
	}
}

// ToScenarioConfig はFileConfigをscenario.Configに変換する。
// 省略された項目は scenario.DefaultConfig() の値を使う。
func (f *FileConfig) ToScenarioConfig() (scenario.Config, error) {
	config := scenario.DefaultConfig()
	if err := f.Validate(); err != nil {
		return config, err
	}

	sc := f.Scenario
	if sc.Name != "" {
		config.Name = sc.Name
	}
	if sc.Description != "" {
		config.Description = sc.Description
	}
	if sc.NodeCount > 0 {
		config.NodeCount = sc.NodeCount
	}
	if sc.Workers > 0 {
		config.Workers = sc.Workers
	}
	if sc.Rounds > 0 {
		config.Rounds = sc.Rounds
	}
	if sc.Seed != nil {
		config.Seed = *sc.Seed
	}
	if sc.Timeout != "" {
		d, err := time.ParseDuration(sc.Timeout)
		if err != nil {
			return config, fmt.Errorf("invalid timeout: %w", err)
		}
		config.Timeout = d
	}

	// Traffic設定
	if sc.Traffic.MessagesPerRound != nil {
		config.Traffic.MessagesPerRound = *sc.Traffic.MessagesPerRound
	}
	if sc.Traffic.PayloadSize != nil {
		config.Traffic.PayloadSize = *sc.Traffic.PayloadSize
	}

	// Crash設定
	if sc.Crashes.Enabled != nil {
		config.EnableCrashes = *sc.Crashes.Enabled
	}
	config.MaxFailedNodes = sc.Crashes.MaxFailedNodes

	// Recovery設定
	if sc.Recovery.Enabled != nil {
		config.EnableRecovery = *sc.Recovery.Enabled
	}
	if sc.Recovery.MinDownRounds != nil {
		config.MinDownRounds = *sc.Recovery.MinDownRounds
	}

	profile, err := f.Reliability.ToProfile()
	if err != nil {
		return config, err
	}
	config.Profile = profile

	return config, nil
}

// ToProfile はデフォルトのプロファイルに設定値を上書きして検証する
func (r ReliabilityConfig) ToProfile() (fault.Profile, error) {
	profile := fault.DefaultProfile()
	p := &profile.Probabilities

	if r.NetworkReliable != nil {
		profile.NetworkReliable = *r.NetworkReliable
	}
	if r.MessageDuplication != nil {
		profile.MessageDuplication = *r.MessageDuplication
	}
	if r.MessageSent != nil {
		p.MessageSent = *r.MessageSent
	}
	if r.Duplication != nil {
		p.MessageDuplication = *r.Duplication
	}
	if r.NodeFail != nil {
		p.NodeFail = *r.NodeFail
	}
	if r.NodeRecover != nil {
		p.NodeRecover = *r.NodeRecover
	}

	if err := profile.Validate(); err != nil {
		return profile, fmt.Errorf("invalid reliability: %w", err)
	}
	return profile, nil
}
