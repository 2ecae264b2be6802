package httptransport

import (
	"github.com/gin-gonic/gin"

	"attachrename/backend/internal/domain"
)

// PublicHandler 公开API处理器（无需设备标识）。
type PublicHandler struct{}

// NewPublicHandler 创建公开API处理器。
func NewPublicHandler() *PublicHandler {
	return &PublicHandler{}
}

// GetPatternTokens 返回文件名模式支持的标记及默认值，
// 供扩展端的设置界面渲染。
func (h *PublicHandler) GetPatternTokens(c *gin.Context) {
	Success(c, gin.H{
		"tokens":            domain.PatternTokens,
		"defaultPattern":    domain.DefaultPattern,
		"defaultDateFormat": domain.DefaultDateFormat,
	})
}
