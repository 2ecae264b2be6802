// Package generate 根据邮件元数据和用户模板生成目标文件名。
package generate

import (
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"attachrename/backend/internal/domain"
	"attachrename/backend/internal/sanitize"
)

const (
	// 主题截断长度，避免目标名过长
	maxSubjectLength = 30
	// 主题短于该长度时视为无信息量
	minSubjectLength = 3
)

var (
	// 查看器生成的占位名模式，命中说明原名没有信息量
	placeholderName = regexp.MustCompile(`(?i)^(attachment|document|file|untitled|image|img|chart|agreement|unknown)_?\d*$`)
	allDigits       = regexp.MustCompile(`^\d+$`)
	counterKeyClean = regexp.MustCompile(`(?i)[^a-z0-9_]`)
	angleAddr       = regexp.MustCompile(`^(.*?)<([^>]+@[^>]+)>\s*$`)
	bareAddr        = regexp.MustCompile(`^[\w.+-]+@[\w-]+\.[\w.]+$`)
)

// Generator 有状态的文件名生成器。
//
// 对每个 (发件人, 日期) 组合维护递增序号，同一封邮件的多个
// 占位名附件因此拿到 file1、file2 这样互不冲突的名字。
type Generator struct {
	mu       sync.Mutex
	counters map[string]int
	log      *zap.Logger
}

// New 创建生成器。
func New(log *zap.Logger) *Generator {
	return &Generator{
		counters: make(map[string]int),
		log:      log,
	}
}

// NeedsImprovement 判断原始文件名是否是需要替换的占位名。
func NeedsImprovement(name string) bool {
	lower := strings.ToLower(name)
	base := lower
	if idx := strings.LastIndex(base, "."); idx > 0 {
		base = base[:idx]
	}
	return placeholderName.MatchString(base) ||
		!strings.Contains(lower, ".") ||
		strings.Contains(lower, "temp") ||
		allDigits.MatchString(base) ||
		strings.Contains(lower, "inbox")
}

// Generate 为一个附件生成目标文件名。
//
// 先把占位原名替换成有信息量的名字（页面候选名、主题或
// 带序号的兜底名），再按用户模板做标记替换，最后整体清洗。
// 任何一步 panic 都降级为 "<日期>_<原名>"。
func (g *Generator) Generate(original string, meta domain.EmailMetadata, settings domain.Settings) (result string) {
	formattedDate := FormatDate(meta.Date, settings.DateFormat)

	defer func() {
		if r := recover(); r != nil {
			g.log.Warn("文件名生成失败，使用降级结果", zap.Any("panic", r))
			result = sanitize.Name(formattedDate + "_" + original)
		}
	}()

	improved := original
	if NeedsImprovement(original) {
		improved = g.improve(original, meta, formattedDate)
	}

	senderName, senderEmail := SenderParts(meta.Sender)

	result = settings.Pattern
	result = strings.ReplaceAll(result, domain.TokenDate, formattedDate)
	result = strings.ReplaceAll(result, domain.TokenSenderName, sanitize.Name(senderName))
	result = strings.ReplaceAll(result, domain.TokenSenderEmail, sanitize.Name(senderEmail))
	result = strings.ReplaceAll(result, domain.TokenOriginalFilename, improved)
	result = strings.ReplaceAll(result, domain.TokenSubject, truncateSubject(meta.Subject))

	// 模板丢掉扩展名时从改良后的原名补回
	if sanitize.Ext(result) == "" {
		if ext := sanitize.Ext(improved); ext != "" {
			result += "." + ext
		}
	}

	return sanitize.Name(result)
}

// improve 为占位原名挑一个有信息量的替代。
func (g *Generator) improve(original string, meta domain.EmailMetadata, formattedDate string) string {
	count := g.nextCount(meta.Sender, formattedDate)
	ext := sanitize.Ext(original)
	if ext == "" {
		ext = "pdf"
	}

	switch len(meta.Attachments) {
	case 0:
		// 页面上没有候选名，退到主题或带序号的兜底名
	case 1:
		return meta.Attachments[0].Filename
	default:
		return meta.Attachments[(count-1)%len(meta.Attachments)].Filename
	}

	if subject := strings.TrimSpace(meta.Subject); len(subject) > minSubjectLength {
		return truncateRunes(sanitize.Name(subject), maxSubjectLength) + "." + ext
	}

	return fmt.Sprintf("file%d.%s", count, ext)
}

// nextCount 返回 (发件人, 日期) 组合下的下一个序号。
func (g *Generator) nextCount(sender, formattedDate string) int {
	key := counterKeyClean.ReplaceAllString(strings.ToLower(sender+"_"+formattedDate), "_")
	g.mu.Lock()
	defer g.mu.Unlock()
	g.counters[key]++
	return g.counters[key]
}

// Reset 清空所有序号，一般在新邮件打开时调用。
func (g *Generator) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.counters = make(map[string]int)
}

// SenderParts 把发件人标识拆成显示名和邮箱地址。
//
// 支持三种形态："Name <addr>"、裸地址、纯显示名。纯显示名
// 没有真实地址，合成一个占位地址保证模板替换总有值。
func SenderParts(sender string) (name, email string) {
	sender = strings.TrimSpace(sender)
	if sender == "" || sender == domain.UnknownSender {
		return domain.UnknownSender, domain.UnknownSender + "@unknown.invalid"
	}

	if m := angleAddr.FindStringSubmatch(sender); m != nil {
		name = strings.TrimSpace(m[1])
		email = strings.TrimSpace(m[2])
		if name == "" {
			name = localPart(email)
		}
		return name, email
	}

	if bareAddr.MatchString(sender) {
		return localPart(sender), sender
	}

	return sender, sanitize.Name(sender) + "@unknown.invalid"
}

// truncateSubject 清洗并截断主题，供模板替换使用。
func truncateSubject(subject string) string {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return ""
	}
	return truncateRunes(sanitize.Name(subject), maxSubjectLength)
}

// truncateRunes 按字符数截断，保证不会切坏多字节字符。
func truncateRunes(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}

func localPart(addr string) string {
	if idx := strings.Index(addr, "@"); idx > 0 {
		return addr[:idx]
	}
	return addr
}

// FormatDate 按用户的日期模板格式化时间。
//
// 模板使用 YYYY/MM/DD 记号，内部转换为 Go 的参考时间布局。
func FormatDate(t time.Time, layout string) string {
	if layout == "" {
		layout = domain.DefaultDateFormat
	}
	goLayout := strings.NewReplacer(
		"YYYY", "2006",
		"MM", "01",
		"DD", "02",
	).Replace(layout)
	return t.Format(goLayout)
}
