package domain

import "strings"

// Node 文档快照树中的一个节点。
//
// 提取器只依赖这组最小查询原语，不关心宿主页面的具体标记，
// 因此可以用合成树在测试中完整驱动提取逻辑。
type Node interface {
	// Text 返回节点及其子树的可见文本（已拼接）。
	Text() string
	// Attr 返回指定属性值，属性不存在时返回空字符串。
	Attr(name string) string
	// Parent 返回父节点，根节点返回 nil。
	Parent() Node
	// Children 返回直接子节点。
	Children() []Node
}

// Snapshot 当前展示邮件的可查询文档快照。
type Snapshot interface {
	// Find 深度优先查找首个满足谓词的节点，找不到返回 nil。
	Find(match func(Node) bool) Node
	// FindAll 深度优先收集所有满足谓词的节点。
	FindAll(match func(Node) bool) []Node
}

// TreeNode 是 Node 的具体实现，可直接由 JSON 反序列化得到。
//
// 外围胶水层（浏览器扩展）把它观察到的 DOM 片段序列化成这棵树
// 提交给服务端。
type TreeNode struct {
	Tag      string            `json:"tag"`
	Attrs    map[string]string `json:"attrs,omitempty"`
	Value    string            `json:"text,omitempty"` // 节点自身文本
	Nodes    []*TreeNode       `json:"children,omitempty"`
	parentID *TreeNode
}

// Text 拼接自身文本与全部子树文本。
func (n *TreeNode) Text() string {
	var sb strings.Builder
	n.collectText(&sb)
	return strings.TrimSpace(sb.String())
}

func (n *TreeNode) collectText(sb *strings.Builder) {
	if n.Value != "" {
		if sb.Len() > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(n.Value)
	}
	for _, c := range n.Nodes {
		c.collectText(sb)
	}
}

// Attr 返回属性值，未设置时为空字符串。
func (n *TreeNode) Attr(name string) string {
	if n.Attrs == nil {
		return ""
	}
	return n.Attrs[name]
}

// Parent 返回父节点。根节点为 nil。
func (n *TreeNode) Parent() Node {
	if n.parentID == nil {
		return nil
	}
	return n.parentID
}

// Children 返回直接子节点。
func (n *TreeNode) Children() []Node {
	out := make([]Node, 0, len(n.Nodes))
	for _, c := range n.Nodes {
		out = append(out, c)
	}
	return out
}

// TreeSnapshot 基于 TreeNode 树的 Snapshot 实现。
type TreeSnapshot struct {
	Root *TreeNode `json:"root"`
}

// NewTreeSnapshot 构建快照并回填父指针。
func NewTreeSnapshot(root *TreeNode) *TreeSnapshot {
	if root != nil {
		linkParents(root)
	}
	return &TreeSnapshot{Root: root}
}

func linkParents(n *TreeNode) {
	for _, c := range n.Nodes {
		c.parentID = n
		linkParents(c)
	}
}

// Find 深度优先查找首个满足谓词的节点。
func (s *TreeSnapshot) Find(match func(Node) bool) Node {
	if s == nil || s.Root == nil {
		return nil
	}
	return findNode(s.Root, match)
}

func findNode(n *TreeNode, match func(Node) bool) Node {
	if match(n) {
		return n
	}
	for _, c := range n.Nodes {
		if found := findNode(c, match); found != nil {
			return found
		}
	}
	return nil
}

// FindAll 深度优先收集所有满足谓词的节点。
func (s *TreeSnapshot) FindAll(match func(Node) bool) []Node {
	if s == nil || s.Root == nil {
		return nil
	}
	var out []Node
	collectNodes(s.Root, match, &out)
	return out
}

func collectNodes(n *TreeNode, match func(Node) bool, out *[]Node) {
	if match(n) {
		*out = append(*out, n)
	}
	for _, c := range n.Nodes {
		collectNodes(c, match, out)
	}
}

// HasClass 判断节点 class 属性是否包含指定的类名标记。
func HasClass(n Node, class string) bool {
	attr := n.Attr("class")
	if attr == "" {
		return false
	}
	for _, token := range strings.Fields(attr) {
		if strings.EqualFold(token, class) {
			return true
		}
	}
	return false
}
