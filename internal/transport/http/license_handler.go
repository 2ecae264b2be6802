package httptransport

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"

	"attachrename/backend/internal/service"
	"attachrename/backend/internal/storage"
)

// LicenseHandler 许可API处理器。
type LicenseHandler struct {
	licenses *service.LicenseService
}

// NewLicenseHandler 创建许可处理器。
func NewLicenseHandler(licenses *service.LicenseService) *LicenseHandler {
	return &LicenseHandler{licenses: licenses}
}

// activateRequest 许可激活请求。
type activateRequest struct {
	Key string `json:"key" binding:"required"`
}

// Activate 用许可密钥激活当前设备。
func (h *LicenseHandler) Activate(c *gin.Context) {
	id, ok := machineID(c)
	if !ok {
		return
	}

	var req activateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	result, err := h.licenses.Activate(c.Request.Context(), id, req.Key)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidLicenseKey):
			BadRequest(c, GetErrorMessage(err))
		case errors.Is(err, service.ErrMachineAlreadyActivated):
			Conflict(c, GetErrorMessage(err))
		default:
			InternalError(c, MsgActivateFailed)
		}
		return
	}

	Created(c, result)
}

// Deactivate 注销当前设备的许可。
func (h *LicenseHandler) Deactivate(c *gin.Context) {
	id, ok := machineID(c)
	if !ok {
		return
	}

	if err := h.licenses.Deactivate(c.Request.Context(), id); err != nil {
		if errors.Is(err, storage.ErrLicenseNotFound) {
			NotFound(c, GetErrorMessage(err))
			return
		}
		InternalError(c, MsgInternalError)
		return
	}

	Success(c, nil)
}

// Status 查询当前设备的许可/试用状态。
//
// installedAt 通过查询参数上报（RFC3339），缺失时试用剩余
// 天数按 0 处理。
func (h *LicenseHandler) Status(c *gin.Context) {
	id, ok := machineID(c)
	if !ok {
		return
	}

	var installedAt time.Time
	if raw := c.Query("installedAt"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			BadRequest(c, MsgInvalidRequest)
			return
		}
		installedAt = parsed
	}

	status, err := h.licenses.Status(c.Request.Context(), id, installedAt)
	if err != nil {
		InternalError(c, MsgStatusFailed)
		return
	}

	Success(c, status)
}
