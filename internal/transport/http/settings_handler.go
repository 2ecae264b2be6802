package httptransport

import (
	"errors"

	"github.com/gin-gonic/gin"

	"attachrename/backend/internal/service"
)

// SettingsHandler 重命名设置API处理器。
type SettingsHandler struct {
	settings *service.SettingsService
}

// NewSettingsHandler 创建设置处理器。
func NewSettingsHandler(settings *service.SettingsService) *SettingsHandler {
	return &SettingsHandler{settings: settings}
}

// Get 返回当前设备的重命名设置。
func (h *SettingsHandler) Get(c *gin.Context) {
	id, ok := machineID(c)
	if !ok {
		return
	}

	settings, err := h.settings.Get(id)
	if err != nil {
		InternalError(c, MsgSettingsGetFailed)
		return
	}

	Success(c, settings)
}

// Update 保存当前设备的重命名设置。
func (h *SettingsHandler) Update(c *gin.Context) {
	id, ok := machineID(c)
	if !ok {
		return
	}

	var req service.UpdateSettingsInput
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	settings, err := h.settings.Update(id, req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidPattern),
			errors.Is(err, service.ErrInvalidDateFormat):
			BadRequest(c, GetErrorMessage(err))
		default:
			InternalError(c, MsgSettingsUpdateFailed)
		}
		return
	}

	Success(c, settings)
}
