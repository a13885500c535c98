package predicate

import (
	"github.com/pkg/errors"
)

type tokenKind int

const (
	tokenLeaf tokenKind = iota
	tokenBeginGroup
	tokenEndGroup
	tokenOr
	tokenNot
)

type token struct {
	kind tokenKind
	leaf *Comparison
}

// Builder 按调用顺序记录谓词记号，Build 时解析为谓词树
//
// 优先级：NOT > OR > AND。Or 析取紧邻其前后的两个子句（叶子、分组或取反子句），
// 连续的 Or 合并为一个析取；其余相邻子句以 AND 连接。
type Builder struct {
	tokens []token
}

func NewBuilder() *Builder {
	return &Builder{}
}

func (b *Builder) Leaf(c *Comparison) *Builder {
	b.tokens = append(b.tokens, token{kind: tokenLeaf, leaf: c})
	return b
}

func (b *Builder) BeginGroup() *Builder {
	b.tokens = append(b.tokens, token{kind: tokenBeginGroup})
	return b
}

func (b *Builder) EndGroup() *Builder {
	b.tokens = append(b.tokens, token{kind: tokenEndGroup})
	return b
}

func (b *Builder) Or() *Builder {
	b.tokens = append(b.tokens, token{kind: tokenOr})
	return b
}

func (b *Builder) Not() *Builder {
	b.tokens = append(b.tokens, token{kind: tokenNot})
	return b
}

// Len 已记录的记号数量
func (b *Builder) Len() int {
	return len(b.tokens)
}

// Clone 复制记号序列，叶子节点共享
func (b *Builder) Clone() *Builder {
	tokens := make([]token, len(b.tokens))
	copy(tokens, b.tokens)
	return &Builder{tokens: tokens}
}

// Build 解析记号序列为谓词树，分组不平衡、悬空的 Or/Not 返回 ErrMalformed
func (b *Builder) Build() (Node, error) {
	p := &parser{tokens: b.tokens}
	node, err := p.parseSequence(0)
	if err != nil {
		return nil, err
	}
	if p.pos < len(p.tokens) {
		return nil, errors.Wrapf(ErrMalformed, "endGroup() at position %d has no matching beginGroup()", p.pos)
	}
	return node, nil
}

type parser struct {
	tokens []token
	pos    int
}

func (p *parser) peek() (token, bool) {
	if p.pos >= len(p.tokens) {
		return token{}, false
	}
	return p.tokens[p.pos], true
}

// parseSequence 解析一个分组内以 AND 连接的子句序列，遇到 EndGroup 或结尾时返回
func (p *parser) parseSequence(depth int) (Node, error) {
	var children []Node
	for {
		tok, ok := p.peek()
		if !ok {
			if depth > 0 {
				return nil, errors.Wrap(ErrMalformed, "beginGroup() is not closed")
			}
			break
		}
		if tok.kind == tokenEndGroup {
			if depth == 0 {
				return nil, errors.Wrapf(ErrMalformed, "endGroup() at position %d has no matching beginGroup()", p.pos)
			}
			break
		}

		child, err := p.parseDisjunction(depth)
		if err != nil {
			return nil, err
		}
		children = append(children, child)
	}

	switch len(children) {
	case 0:
		return True{}, nil
	case 1:
		return children[0], nil
	}
	return &And{Children: children}, nil
}

func (p *parser) parseDisjunction(depth int) (Node, error) {
	first, err := p.parseUnary(depth)
	if err != nil {
		return nil, err
	}

	alternatives := []Node{first}
	for {
		tok, ok := p.peek()
		if !ok || tok.kind != tokenOr {
			break
		}
		p.pos++
		next, ok := p.peek()
		if !ok || next.kind == tokenEndGroup || next.kind == tokenOr {
			return nil, errors.Wrapf(ErrMalformed, "or() at position %d is not followed by a condition", p.pos-1)
		}
		alt, err := p.parseUnary(depth)
		if err != nil {
			return nil, err
		}
		alternatives = append(alternatives, alt)
	}

	if len(alternatives) == 1 {
		return first, nil
	}
	return &Or{Children: alternatives}, nil
}

func (p *parser) parseUnary(depth int) (Node, error) {
	tok, ok := p.peek()
	if !ok {
		return nil, errors.Wrap(ErrMalformed, "missing condition")
	}

	switch tok.kind {
	case tokenLeaf:
		p.pos++
		return tok.leaf, nil
	case tokenNot:
		p.pos++
		next, ok := p.peek()
		if !ok || next.kind == tokenEndGroup || next.kind == tokenOr {
			return nil, errors.Wrapf(ErrMalformed, "not() at position %d is not followed by a condition", p.pos-1)
		}
		child, err := p.parseUnary(depth)
		if err != nil {
			return nil, err
		}
		return &Not{Child: child}, nil
	case tokenBeginGroup:
		p.pos++
		inner, err := p.parseSequence(depth + 1)
		if err != nil {
			return nil, err
		}
		// parseSequence 只会在 EndGroup 处返回，分组边界已由树结构表达
		p.pos++
		return inner, nil
	case tokenOr:
		return nil, errors.Wrapf(ErrMalformed, "or() at position %d has no preceding condition", p.pos)
	}
	return nil, errors.Wrapf(ErrMalformed, "unexpected endGroup() at position %d", p.pos)
}
