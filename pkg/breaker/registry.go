package breaker

import "time"

// Registry はサービス名ごとのブレーカーを保持する。
// 起動時に既知のサービス全てに対して生成され、以降は読み取り専用のため
// マップ自体への同期は不要。各ブレーカーはグローバルに一意で、
// 同一サービスへの全ての並行リクエストで共有される。
type Registry struct {
	breakers map[string]*Breaker
}

// NewRegistry は指定されたサービス名それぞれにブレーカーを生成する。
func NewRegistry(services []string, threshold int, resetTimeout time.Duration) *Registry {
	breakers := make(map[string]*Breaker, len(services))
	for _, name := range services {
		breakers[name] = New(threshold, resetTimeout)
	}
	return &Registry{breakers: breakers}
}

// Get はサービス名に対応するブレーカーを返す。
// 未知のサービス名は設定読み込み時に拒否されるため、通常はnilにならない。
func (r *Registry) Get(service string) *Breaker {
	return r.breakers[service]
}

// Do はサービスのブレーカーで作業fnを保護して実行する。
// 未知のサービスの場合は保護なしでfnを実行する。
func (r *Registry) Do(service string, fn func() error) error {
	b := r.breakers[service]
	if b == nil {
		return fn()
	}
	return b.Do(fn)
}
