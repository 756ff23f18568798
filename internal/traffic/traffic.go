package traffic

import (
	"fmt"

	"faultsim/internal/node"
)

// Config はトラフィック生成の設定
type Config struct {
	MessagesPerRound int // 1ノードが1ラウンドに送るメッセージ数
	PayloadSize      int // ペイロードのサイズ（バイト）
}

// DefaultConfig はデフォルト設定を返す
func DefaultConfig() Config {
	return Config{
		MessagesPerRound: 4,
		PayloadSize:      32,
	}
}

// Generator はラウンドごとのメッセージを決定的に生成する
type Generator struct {
	config Config
}

// New は新しいGeneratorを作成する
func New(config Config) *Generator {
	if config.MessagesPerRound < 0 {
		config.MessagesPerRound = 0
	}
	if config.PayloadSize < 0 {
		config.PayloadSize = 0
	}
	return &Generator{config: config}
}

// Config は設定を返す
func (g *Generator) Config() Config {
	return g.config
}

// Messages は from が round に送るメッセージを返す。
// 宛先は peers をラウンドごとにずらしながら巡回し、乱数は消費しない。
func (g *Generator) Messages(round int, from string, peers []string) []node.Message {
	targets := make([]string, 0, len(peers))
	for _, p := range peers {
		if p != from {
			targets = append(targets, p)
		}
	}
	if len(targets) == 0 || g.config.MessagesPerRound == 0 {
		return nil
	}

	msgs := make([]node.Message, 0, g.config.MessagesPerRound)
	offset := round * g.config.MessagesPerRound
	for k := range g.config.MessagesPerRound {
		id := fmt.Sprintf("%s/%d/%d", from, round, k)
		msgs = append(msgs, node.Message{
			ID:      id,
			From:    from,
			To:      targets[(offset+k)%len(targets)],
			Round:   round,
			Payload: payload(id, g.config.PayloadSize),
		})
	}
	return msgs
}

// payload はIDを繰り返したバイト列を返す
func payload(id string, size int) []byte {
	if size == 0 {
		return nil
	}
	buf := make([]byte, size)
	for i := range buf {
		buf[i] = id[i%len(id)]
	}
	return buf
}
