// Package security 检查进出重命名流程的文件名是否安全。
package security

import (
	"path/filepath"
	"strings"
)

// FilenameSecurity 文件名安全检查器
type FilenameSecurity struct {
	// 危险文件扩展名
	dangerousExtensions map[string]bool

	// Windows 保留设备名
	reservedNames map[string]bool
}

// NewFilenameSecurity 创建文件名安全检查器
func NewFilenameSecurity() *FilenameSecurity {
	return &FilenameSecurity{
		dangerousExtensions: map[string]bool{
			".exe": true,
			".bat": true,
			".cmd": true,
			".scr": true,
			".pif": true,
			".com": true,
			".vbs": true,
			".js":  true,
			".jar": true,
			".php": true,
			".asp": true,
			".jsp": true,
			".msi": true,
			".hta": true,
		},
		reservedNames: map[string]bool{
			"con": true, "prn": true, "aux": true, "nul": true,
			"com1": true, "com2": true, "com3": true, "com4": true,
			"lpt1": true, "lpt2": true, "lpt3": true, "lpt4": true,
		},
	}
}

// CheckFilename 检查文件名安全性，返回是否安全及原因
func (fs *FilenameSecurity) CheckFilename(filename string) (bool, string) {
	if spoofed, reason := fs.checkSpoofedExtension(filename); spoofed {
		return false, reason
	}

	if dangerous, reason := fs.checkExtension(filename); dangerous {
		return false, reason
	}

	if reserved, reason := fs.checkReservedName(filename); reserved {
		return false, reason
	}

	return true, ""
}

// checkExtension 检查文件扩展名
func (fs *FilenameSecurity) checkExtension(filename string) (bool, string) {
	ext := strings.ToLower(filepath.Ext(filename))

	if fs.dangerousExtensions[ext] {
		return true, "dangerous file extension: " + ext
	}

	return false, ""
}

// checkSpoofedExtension 检查伪装的双扩展名，如 "invoice.pdf.exe"
func (fs *FilenameSecurity) checkSpoofedExtension(filename string) (bool, string) {
	outer := strings.ToLower(filepath.Ext(filename))
	base := strings.TrimSuffix(filename, filepath.Ext(filename))
	inner := strings.ToLower(filepath.Ext(base))
	if inner == "" || !documentExtensions[inner] {
		return false, ""
	}

	// 文档类内层扩展配合可执行外层扩展是典型的伪装手法
	if fs.dangerousExtensions[outer] {
		return true, "spoofed double extension: " + inner + outer
	}

	return false, ""
}

// documentExtensions 常见文档与图片扩展名
var documentExtensions = map[string]bool{
	".pdf": true, ".doc": true, ".docx": true,
	".xls": true, ".xlsx": true, ".ppt": true, ".pptx": true,
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".txt": true,
}

// checkReservedName 检查 Windows 保留设备名
func (fs *FilenameSecurity) checkReservedName(filename string) (bool, string) {
	base := strings.TrimSuffix(filename, filepath.Ext(filename))
	if fs.reservedNames[strings.ToLower(base)] {
		return true, "reserved device name: " + base
	}

	return false, ""
}
