package gateway

import (
	"fmt"
	"sort"
	"strings"
)

// routeTable はルートの照合を行う。最長プレフィックス優先で一致を判定し、
// 同じ長さのプレフィックスは宣言順で解決する。構築後は読み取り専用。
type routeTable struct {
	// routes はプレフィックス長の降順（同長は宣言順）に並べたルート。
	routes []Route
}

// newRouteTable はルート一覧から照合テーブルを構築する。
func newRouteTable(routes []Route) (*routeTable, error) {
	if len(routes) == 0 {
		return nil, fmt.Errorf("ルートが1件も定義されていません")
	}

	sorted := make([]Route, len(routes))
	copy(sorted, routes)
	// SliceStableにより同長プレフィックスの宣言順が保たれる
	sort.SliceStable(sorted, func(i, j int) bool {
		return len(sorted[i].Prefix) > len(sorted[j].Prefix)
	})

	for _, r := range sorted {
		if !strings.HasPrefix(r.Prefix, "/") {
			return nil, fmt.Errorf("ルートプレフィックスは/で始まる必要があります: %q", r.Prefix)
		}
	}

	return &routeTable{routes: sorted}, nil
}

// Match はパスに一致するルートを返す。一致しない場合はok=falseを返す。
// プレフィックスの直後はパス区切りでなければ一致とみなさない
// （/api/orders は /api/ordersearch に一致しない）。
func (t *routeTable) Match(path string) (*Route, bool) {
	for i := range t.routes {
		r := &t.routes[i]
		if !strings.HasPrefix(path, r.Prefix) {
			continue
		}
		rest := path[len(r.Prefix):]
		if rest == "" || strings.HasPrefix(rest, "/") {
			return r, true
		}
	}
	return nil, false
}

// RewritePath はルートの書き換えルールに従ってパスを変換する。
func (r *Route) RewritePath(path string) string {
	return r.TargetPrefix + strings.TrimPrefix(path, r.Prefix)
}
