package httptransport

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"attachrename/backend/internal/domain"
	"attachrename/backend/internal/service"
)

// MachineIDHeader 每个扩展端实例的设备标识请求头。
const MachineIDHeader = "X-Machine-ID"

// SessionHandler 会话API处理器。
type SessionHandler struct {
	sessions *service.SessionService
}

// NewSessionHandler 创建会话处理器。
func NewSessionHandler(sessions *service.SessionService) *SessionHandler {
	return &SessionHandler{sessions: sessions}
}

// machineID 从请求头提取设备标识。
func machineID(c *gin.Context) (string, bool) {
	id := c.GetHeader(MachineIDHeader)
	if id == "" {
		BadRequest(c, MsgMachineIDMissing)
		return "", false
	}
	return id, true
}

// updateMetadataRequest 邮件视图快照上报。
type updateMetadataRequest struct {
	Snapshot *domain.TreeSnapshot `json:"snapshot" binding:"required"`
}

// UpdateMetadata 接收当前邮件视图快照，重建会话元数据。
func (h *SessionHandler) UpdateMetadata(c *gin.Context) {
	id, ok := machineID(c)
	if !ok {
		return
	}

	var req updateMetadataRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Snapshot == nil || req.Snapshot.Root == nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	meta := h.sessions.UpdateMetadata(id, domain.NewTreeSnapshot(req.Snapshot.Root))
	Success(c, gin.H{
		"sender":      meta.Sender,
		"date":        meta.Date,
		"subject":     meta.Subject,
		"attachments": meta.Attachments,
	})
}

// prepareDownloadRequest 下载准备请求。
type prepareDownloadRequest struct {
	OriginalFilename string    `json:"originalFilename" binding:"required"`
	InstalledAt      time.Time `json:"installedAt"`
}

// PrepareDownload 在下载触发前生成目标文件名并登记待命条目。
func (h *SessionHandler) PrepareDownload(c *gin.Context) {
	id, ok := machineID(c)
	if !ok {
		return
	}

	var req prepareDownloadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	result, err := h.sessions.PrepareDownload(c.Request.Context(), id, req.OriginalFilename, req.InstalledAt)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrTrialExhausted),
			errors.Is(err, service.ErrTrialExpired):
			c.JSON(http.StatusForbidden, Response{
				Code: CodeForbidden,
				Msg:  GetErrorMessage(err),
			})
		default:
			InternalError(c, MsgPrepareFailed)
		}
		return
	}

	Created(c, result)
}

// observeDownloadRequest 浏览器下载事件上报。
type observeDownloadRequest struct {
	Filename     string `json:"filename" binding:"required"`
	AttachmentID string `json:"attachmentId"`
}

// ObserveDownload 处理下载事件，返回匹配结果与最终文件名。
func (h *SessionHandler) ObserveDownload(c *gin.Context) {
	id, ok := machineID(c)
	if !ok {
		return
	}

	var req observeDownloadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	Success(c, h.sessions.ObserveDownload(id, req.Filename, req.AttachmentID))
}
