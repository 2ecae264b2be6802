// Package extract 从邮件视图快照中提取发件人、日期、主题和
// 附件候选名，供后续改名使用。
package extract

import (
	"regexp"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"go.uber.org/zap"

	"attachrename/backend/internal/domain"
	"attachrename/backend/internal/sanitize"
)

// 附件候选文本的硬性长度上限，超过的基本是正文片段。
const maxCandidateLength = 200

var (
	// 界面噪声词，命中即整条丢弃
	denyPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)^inbox`),
		regexp.MustCompile(`(?i)^sent`),
		regexp.MustCompile(`(?i)^draft`),
		regexp.MustCompile(`(?i)^mail$`),
		regexp.MustCompile(`(?i)^gmail$`),
		regexp.MustCompile(`(?i)^\d+\s*[km]b$`),
		regexp.MustCompile(`(?i)^download$`),
		regexp.MustCompile(`(?i)^attachment$`),
		regexp.MustCompile(`(?i)^image$`),
		regexp.MustCompile(`(?i)^preview$`),
	}

	extensionPattern = regexp.MustCompile(`\.\w{2,4}$`)
	docKeywordRe     = regexp.MustCompile(`(?i)(report|document|presentation|spreadsheet|agreement|contract|form|invoice)`)
	angleAddrRe      = regexp.MustCompile(`<([^>]+@[^>]+)>`)
	bareAddrRe       = regexp.MustCompile(`[\w.+-]+@[\w-]+\.[\w.]+`)
)

// Extractor 在一棵邮件视图快照上做只读扫描。
type Extractor struct {
	log *zap.Logger
	now func() time.Time
}

// New 创建提取器。
func New(log *zap.Logger) *Extractor {
	return &Extractor{log: log, now: time.Now}
}

// Extract 提取完整的邮件元数据。
//
// 任何一步失败都不会让调用方拿到错误：扫描过程 panic 时返回
// 降级元数据（未知发件人 + 当前日期 + 空附件列表），保证下载
// 流程始终可以继续。
func (e *Extractor) Extract(snap domain.Snapshot) (meta domain.EmailMetadata) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Warn("元数据提取失败，使用降级结果", zap.Any("panic", r))
			meta = domain.DegradedMetadata(e.now())
		}
	}()

	meta = domain.EmailMetadata{
		Sender:      e.extractSender(snap),
		Date:        e.extractDate(snap),
		Subject:     e.extractSubject(snap),
		Attachments: e.extractAttachments(snap),
	}
	return meta
}

// extractAttachments 三轮扫描收集附件候选节点。
func (e *Extractor) extractAttachments(snap domain.Snapshot) []domain.AttachmentCandidate {
	seen := make(map[domain.Node]struct{})
	var out []domain.AttachmentCandidate

	add := func(n domain.Node, text string) {
		if _, dup := seen[n]; dup {
			return
		}
		name := sanitize.Cleanup(text)
		if name == "" || !plausibleFilename(text) {
			return
		}
		seen[n] = struct{}{}
		out = append(out, domain.AttachmentCandidate{Source: n, Filename: name})
	}

	// 第一轮：class 含 attachment 的节点
	for _, n := range snap.FindAll(func(n domain.Node) bool {
		return domain.HasClass(n, "attachment")
	}) {
		add(n, n.Text())
	}

	// 第二轮：带 download 属性或 aria-label 提到下载/附件的节点
	for _, n := range snap.FindAll(func(n domain.Node) bool {
		if n.Attr("download") != "" {
			return true
		}
		label := strings.ToLower(n.Attr("aria-label"))
		return strings.Contains(label, "download") || strings.Contains(label, "attachment")
	}) {
		text := n.Attr("download")
		if text == "" {
			text = n.Text()
		}
		add(n, text)
	}

	// 第三轮：下载按钮的提示文本 → 所属列表项里的叶子文本
	for _, btn := range snap.FindAll(func(n domain.Node) bool {
		tip := strings.ToLower(n.Attr("data-tooltip"))
		return strings.Contains(tip, "download")
	}) {
		item := ancestorWithRole(btn, "listitem")
		if item == nil {
			continue
		}
		for _, leaf := range leafTexts(item) {
			if plausibleFilename(leaf) {
				add(item, leaf)
				break
			}
		}
	}

	return out
}

// plausibleFilename 过滤明显不是文件名的文本。
func plausibleFilename(text string) bool {
	text = strings.TrimSpace(text)
	if text == "" || len(text) > maxCandidateLength {
		return false
	}
	for _, re := range denyPatterns {
		if re.MatchString(text) {
			return false
		}
	}
	return extensionPattern.MatchString(text) || docKeywordRe.MatchString(text)
}

func ancestorWithRole(n domain.Node, role string) domain.Node {
	for p := n.Parent(); p != nil; p = p.Parent() {
		if p.Attr("role") == role {
			return p
		}
	}
	return nil
}

// leafTexts 收集子树里所有叶子节点的非空文本。
func leafTexts(n domain.Node) []string {
	children := n.Children()
	if len(children) == 0 {
		if t := strings.TrimSpace(n.Text()); t != "" {
			return []string{t}
		}
		return nil
	}
	var out []string
	for _, c := range children {
		out = append(out, leafTexts(c)...)
	}
	return out
}

// extractSender 优先取 email 属性；其次在父节点文本里找
// 尖括号地址；再退到显示名；都没有时返回占位发件人。
func (e *Extractor) extractSender(snap domain.Snapshot) string {
	if n := snap.Find(func(n domain.Node) bool {
		return n.Attr("email") != ""
	}); n != nil {
		return strings.TrimSpace(n.Attr("email"))
	}

	if n := snap.Find(func(n domain.Node) bool {
		return domain.HasClass(n, "sender") || n.Attr("role") == "gridcell" && bareAddrRe.MatchString(n.Text())
	}); n != nil {
		if p := n.Parent(); p != nil {
			if m := angleAddrRe.FindStringSubmatch(p.Text()); m != nil {
				return strings.TrimSpace(m[1])
			}
		}
		if m := angleAddrRe.FindStringSubmatch(n.Text()); m != nil {
			return strings.TrimSpace(m[1])
		}
		if t := strings.TrimSpace(n.Text()); t != "" {
			return t
		}
	}

	return domain.UnknownSender
}

// extractDate 解析快照里的日期文本，解析不了时用当前时间。
func (e *Extractor) extractDate(snap domain.Snapshot) time.Time {
	n := snap.Find(func(n domain.Node) bool {
		return n.Attr("title") != "" && looksLikeDate(n.Attr("title")) ||
			domain.HasClass(n, "date") && strings.TrimSpace(n.Text()) != ""
	})
	if n == nil {
		return e.now()
	}

	raw := n.Attr("title")
	if raw == "" || !looksLikeDate(raw) {
		raw = n.Text()
	}
	parsed, err := dateparse.ParseAny(strings.TrimSpace(raw))
	if err != nil {
		e.log.Debug("日期解析失败", zap.String("raw", raw), zap.Error(err))
		return e.now()
	}
	return parsed
}

func looksLikeDate(s string) bool {
	_, err := dateparse.ParseAny(strings.TrimSpace(s))
	return err == nil
}

// extractSubject 取标题节点文本，清洗掉回复/转发前缀。
func (e *Extractor) extractSubject(snap domain.Snapshot) string {
	n := snap.Find(func(n domain.Node) bool {
		return n.Attr("role") == "heading" || domain.HasClass(n, "subject")
	})
	if n == nil {
		return ""
	}
	subject := strings.TrimSpace(n.Text())
	for {
		stripped := strings.TrimSpace(replyPrefixRe.ReplaceAllString(subject, ""))
		if stripped == subject {
			return subject
		}
		subject = stripped
	}
}

var replyPrefixRe = regexp.MustCompile(`(?i)^(re|fwd|fw):\s*`)
