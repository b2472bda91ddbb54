package middleware

import (
	"log"

	"github.com/gin-gonic/gin"

	"github.com/shopmesh/gateway/pkg/apierror"
)

// Recovery はパニックからの回復を行うGinミドルウェアを返す。
// パニック発生時にリクエストIDを含む文脈をログに出力し、
// 一般化した500エラーを返す。プロセスは停止しない。
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Printf("[PANIC] %s %s request_id=%s: %v",
					c.Request.Method, c.Request.URL.Path, GetRequestID(c), r)
				apierror.Abort(c, apierror.New(apierror.KindInternal, "内部サーバーエラーが発生しました"))
			}
		}()
		c.Next()
	}
}
