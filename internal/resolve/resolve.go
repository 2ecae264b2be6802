// Package resolve 把浏览器观察到的下载事件关联回注册表中的
// 待命条目，决定这次下载应当改成什么名字。
package resolve

import (
	"strings"

	"go.uber.org/zap"

	"attachrename/backend/internal/domain"
	"attachrename/backend/internal/registry"
	"attachrename/backend/internal/similarity"
)

// Resolver 按固定优先级在待命条目中查找匹配。
type Resolver struct {
	log *zap.Logger
	// threshold 正常模糊匹配的最低分（严格大于即通过）。
	threshold float64
	// relaxed 观察名是查看器占位名时放宽到的最低分。
	relaxed float64
}

// New 创建解析器，使用包级默认阈值。
func New(log *zap.Logger) *Resolver {
	return NewWithThresholds(log, similarity.MatchThreshold, similarity.RelaxedThreshold)
}

// NewWithThresholds 创建使用自定义阈值的解析器。
func NewWithThresholds(log *zap.Logger, threshold, relaxed float64) *Resolver {
	return &Resolver{
		log:       log,
		threshold: threshold,
		relaxed:   relaxed,
	}
}

// Resolve 为一次观察到的下载挑选待命条目。
//
// 依次尝试四级匹配，命中即从注册表消费该条目：
//  1. 下载自带的附件跟踪序号出现在某条目的原始文件名里；
//  2. 文件名完全相等，或一方是另一方的子串；
//  3. 相似度超过阈值的模糊匹配，观察名是查看器占位名
//     （document.pdf 之类）时用放宽阈值；
//  4. 观察名是占位名且注册表里只剩一条时直接认领。
//
// 同级有多个命中时取注册最早的一条。没有任何命中时返回
// (nil, false)，下载保持原名。
func (r *Resolver) Resolve(observedName, observedID string, reg *registry.Registry) (*domain.MatchResult, bool) {
	entries := reg.Entries()
	if len(entries) == 0 {
		return nil, false
	}

	lowerName := strings.ToLower(observedName)

	// 第一级：附件跟踪序号
	id := observedID
	if id == "" {
		id = similarity.AttachmentID(lowerName)
	}
	if id != "" {
		for i := range entries {
			// 序号作为子串出现即可：invoice_998877.pdf 也能接住
			// attachment_998877 这样的占位下载名。
			if strings.Contains(strings.ToLower(entries[i].TrackingKey), id) ||
				strings.Contains(strings.ToLower(entries[i].OriginalFilename), id) {
				return r.hit(reg, entries[i], domain.MatchByAttachmentID, 1.0)
			}
		}
	}

	// 第二级：精确或子串
	for i := range entries {
		candidate := strings.ToLower(entries[i].OriginalFilename)
		if candidate == "" {
			continue
		}
		if candidate == lowerName ||
			strings.Contains(lowerName, candidate) ||
			strings.Contains(candidate, lowerName) {
			return r.hit(reg, entries[i], domain.MatchByFilename, 1.0)
		}
	}

	// 第三级：模糊匹配。占位名本身没有信息量，阈值放宽。
	generic := similarity.IsGenericViewerName(observedName)
	minScore := r.threshold
	if generic {
		minScore = r.relaxed
	}
	bestIdx, bestScore := -1, 0.0
	for i := range entries {
		score := similarity.Score(observedName, entries[i].OriginalFilename)
		if score > bestScore {
			bestIdx, bestScore = i, score
		}
	}
	if bestIdx >= 0 && bestScore > minScore {
		return r.hit(reg, entries[bestIdx], domain.MatchByFuzzy, bestScore)
	}

	// 第四级：占位名 + 唯一待命，无条件认领
	if generic && len(entries) == 1 {
		return r.hit(reg, entries[0], domain.MatchBySinglePending, bestScore)
	}

	r.log.Debug("下载未能匹配任何待命条目",
		zap.String("observed", observedName),
		zap.Int("pending", len(entries)),
	)
	return nil, false
}

func (r *Resolver) hit(reg *registry.Registry, entry domain.PendingDownload, method domain.MatchMethod, score float64) (*domain.MatchResult, bool) {
	consumed, ok := reg.Consume(entry.TrackingKey)
	if !ok {
		// 并发消费导致条目已不在，视为未命中
		return nil, false
	}
	r.log.Info("下载已匹配",
		zap.String("method", string(method)),
		zap.String("original", consumed.OriginalFilename),
		zap.String("renamed", consumed.NewFilename),
		zap.Float64("score", score),
	)
	return &domain.MatchResult{Entry: consumed, Method: method, Score: score}, true
}
