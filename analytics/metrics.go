package analytics

import "finquest/core"

// BridgeHook bridges a notice source to multiple hooks.
type BridgeHook struct{ hooks []Hook }

func NewBridge(hooks ...Hook) *BridgeHook { return &BridgeHook{hooks: hooks} }

func (b *BridgeHook) OnNotice(n core.Notice) {
	for _, h := range b.hooks {
		h.OnNotice(n)
	}
}
