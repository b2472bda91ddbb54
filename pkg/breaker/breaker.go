// Package breaker はバックエンドサービスごとのサーキットブレーカーを提供する。
//
// 連続した失敗がしきい値に達するとOPENに遷移し、以降の呼び出しはバックエンドに
// 到達せず即時に失敗する。リセットタイムアウト経過後はHALF_OPENとなり、
// 1リクエストだけをプローブとして通過させる。プローブの成功でCLOSEDに復帰し、
// 失敗でOPENに戻る。
package breaker

import (
	"errors"
	"sync"
	"time"
)

// State はブレーカーの状態を表す。
type State int

const (
	// StateClosed は通常状態。呼び出しはそのまま通過する。
	StateClosed State = iota
	// StateOpen は遮断状態。呼び出しは即時にErrOpenで失敗する。
	StateOpen
	// StateHalfOpen は試行状態。1リクエストのみプローブとして通過する。
	StateHalfOpen
)

// String は状態名を返す。ログ出力用。
func (s State) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateOpen:
		return "OPEN"
	case StateHalfOpen:
		return "HALF_OPEN"
	default:
		return "UNKNOWN"
	}
}

// ErrOpen はブレーカーが遮断中のため呼び出しが実行されなかったことを表す。
// バックエンド自体のエラーとは区別される。
var ErrOpen = errors.New("サーキットブレーカーが作動中です")

// Breaker は1つのバックエンドサービスに対するサーキットブレーカー。
// 全ての状態遷移はmuで直列化される。mu以外のフィールドへの同時アクセスは禁止。
type Breaker struct {
	mu sync.Mutex
	// state は現在の状態。
	state State
	// failures は連続失敗回数。成功でゼロに戻る。
	failures int
	// lastFailure は最後に失敗した時刻。OPENからの復帰判定に使用する。
	lastFailure time.Time
	// probing はHALF_OPENのプローブが実行中かどうか。
	// 同時に複数のリクエストがプローブとして通過することを防ぐ。
	probing bool
	// threshold はOPENに遷移する連続失敗回数のしきい値。
	threshold int
	// resetTimeout はOPENからHALF_OPENに遷移するまでの待機時間。
	resetTimeout time.Duration
	// now は現在時刻を返す関数。テストで時刻を進めるために差し替える。
	now func() time.Time
}

// New は新しいブレーカーを生成する。
func New(threshold int, resetTimeout time.Duration) *Breaker {
	if threshold <= 0 {
		threshold = 5
	}
	if resetTimeout <= 0 {
		resetTimeout = 30 * time.Second
	}
	return &Breaker{
		state:        StateClosed,
		threshold:    threshold,
		resetTimeout: resetTimeout,
		now:          time.Now,
	}
}

// State は現在の状態を返す。
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Do は作業fnをブレーカーで保護して実行する。
// 遮断中はfnを実行せずErrOpenを返す。fnのエラーはそのまま返し、失敗として記録する。
func (b *Breaker) Do(fn func() error) error {
	if err := b.allow(); err != nil {
		return err
	}

	if err := fn(); err != nil {
		b.onFailure()
		return err
	}
	b.onSuccess()
	return nil
}

// allow は呼び出しを通過させてよいか判定し、必要な状態遷移を行う。
func (b *Breaker) allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return nil
	case StateOpen:
		if b.now().Sub(b.lastFailure) < b.resetTimeout {
			return ErrOpen
		}
		// リセットタイムアウト経過。このリクエストだけをプローブとして通す。
		b.state = StateHalfOpen
		b.probing = true
		return nil
	case StateHalfOpen:
		if b.probing {
			return ErrOpen
		}
		b.probing = true
		return nil
	default:
		return nil
	}
}

// onSuccess は成功を記録する。HALF_OPENのプローブ成功でCLOSEDに復帰する。
func (b *Breaker) onSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateHalfOpen:
		b.state = StateClosed
		b.failures = 0
		b.probing = false
	case StateClosed:
		b.failures = 0
	}
}

// onFailure は失敗を記録する。しきい値到達またはプローブ失敗でOPENに遷移する。
func (b *Breaker) onFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.lastFailure = b.now()

	switch b.state {
	case StateHalfOpen:
		// プローブ失敗。リセットタイムアウトの計測をやり直す。
		b.state = StateOpen
		b.probing = false
	case StateClosed:
		b.failures++
		if b.failures >= b.threshold {
			b.state = StateOpen
		}
	}
}
