package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"attachrename/backend/internal/auth/jwt"
)

// ContextMachineID 许可令牌校验通过后写入上下文的键。
const ContextMachineID = "machineID"

// LicenseAuth 许可令牌认证中间件。
//
// 校验 Authorization 头里的 Bearer 令牌，并要求令牌绑定的
// 设备与 X-Machine-ID 一致，防止拿别人的令牌注销许可。
func LicenseAuth(tokens *jwt.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" || !strings.HasPrefix(header, "Bearer ") {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing license token"})
			c.Abort()
			return
		}

		claims, err := tokens.ValidateToken(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			status := http.StatusUnauthorized
			msg := "invalid license token"
			if err == jwt.ErrExpiredToken {
				msg = "license token expired"
			}
			c.JSON(status, gin.H{"error": msg})
			c.Abort()
			return
		}

		if machineID := c.GetHeader("X-Machine-ID"); machineID != "" && machineID != claims.MachineID {
			c.JSON(http.StatusForbidden, gin.H{"error": "token does not match machine"})
			c.Abort()
			return
		}

		c.Set(ContextMachineID, claims.MachineID)
		c.Next()
	}
}
