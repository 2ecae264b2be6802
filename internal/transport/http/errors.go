package httptransport

import (
	"attachrename/backend/internal/service"
	"attachrename/backend/internal/storage"
)

// 错误消息映射表（业务错误 -> 中文消息）
var errorMessages = map[error]string{
	// License 错误
	service.ErrInvalidLicenseKey:       "许可密钥无效",
	service.ErrMachineAlreadyActivated: "该设备已激活过许可",
	service.ErrTrialExhausted:          "今日试用次数已用完",
	service.ErrTrialExpired:            "试用期已结束",
	storage.ErrLicenseNotFound:         "许可记录不存在",

	// Settings 错误
	service.ErrInvalidPattern:    "文件名模式中没有可识别的标记",
	service.ErrInvalidDateFormat: "日期格式无效",
}

// GetErrorMessage 获取错误的中文消息
func GetErrorMessage(err error) string {
	if msg, ok := errorMessages[err]; ok {
		return msg
	}
	return err.Error()
}

// 通用错误消息
const (
	// 请求相关
	MsgInvalidRequest   = "请求参数格式错误"
	MsgMachineIDMissing = "缺少设备标识"

	// 认证相关
	MsgTokenInvalid = "无效的许可令牌"
	MsgTokenExpired = "许可令牌已过期，请重新激活"

	// 会话相关
	MsgMetadataUpdateFailed = "更新邮件元数据失败"
	MsgPrepareFailed        = "准备下载失败"
	MsgObserveFailed        = "处理下载事件失败"

	// 设置相关
	MsgSettingsGetFailed    = "获取设置失败"
	MsgSettingsUpdateFailed = "保存设置失败"

	// 许可相关
	MsgActivateFailed = "激活许可失败"
	MsgStatusFailed   = "查询许可状态失败"

	// 服务器错误
	MsgInternalError = "服务器内部错误，请稍后重试"
)
