package mapping

import "fmt"

// The formula language is deliberately small: literals, references into node
// outputs, helper calls, arithmetic, comparison, logical and/or, and a
// ternary. Parsed into an explicit AST and interpreted; host-language code is
// never compiled or invoked.

type exprNode interface{}

type literalNode struct {
	value interface{}
}

type identNode struct {
	name string
}

type memberNode struct {
	object exprNode
	name   string
}

type indexNode struct {
	object exprNode
	index  exprNode
}

type callNode struct {
	name string
	args []exprNode
}

type unaryNode struct {
	op      string
	operand exprNode
}

type binaryNode struct {
	op          string
	left, right exprNode
}

type ternaryNode struct {
	cond, then, els exprNode
}

type parser struct {
	tokens []token
	pos    int
}

func parseExpression(input string) (exprNode, error) {
	tokens, err := tokenize(input)
	if err != nil {
		return nil, err
	}
	p := &parser{tokens: tokens}
	node, err := p.parseTernary()
	if err != nil {
		return nil, err
	}
	if p.peek().kind != tokenEOF {
		return nil, fmt.Errorf("unexpected token %q at position %d", p.peek().text, p.peek().pos)
	}
	return node, nil
}

func (p *parser) peek() token {
	return p.tokens[p.pos]
}

func (p *parser) next() token {
	t := p.tokens[p.pos]
	if t.kind != tokenEOF {
		p.pos++
	}
	return t
}

func (p *parser) acceptOp(op string) bool {
	if t := p.peek(); t.kind == tokenOp && t.text == op {
		p.pos++
		return true
	}
	return false
}

func (p *parser) expectOp(op string) error {
	if !p.acceptOp(op) {
		return fmt.Errorf("expected %q at position %d, found %q", op, p.peek().pos, p.peek().text)
	}
	return nil
}

func (p *parser) parseTernary() (exprNode, error) {
	cond, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if !p.acceptOp("?") {
		return cond, nil
	}
	then, err := p.parseTernary()
	if err != nil {
		return nil, err
	}
	if err := p.expectOp(":"); err != nil {
		return nil, err
	}
	els, err := p.parseTernary()
	if err != nil {
		return nil, err
	}
	return &ternaryNode{cond: cond, then: then, els: els}, nil
}

func (p *parser) parseOr() (exprNode, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.acceptOp("||") {
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &binaryNode{op: "||", left: left, right: right}
	}
	return left, nil
}

func (p *parser) parseAnd() (exprNode, error) {
	left, err := p.parseEquality()
	if err != nil {
		return nil, err
	}
	for p.acceptOp("&&") {
		right, err := p.parseEquality()
		if err != nil {
			return nil, err
		}
		left = &binaryNode{op: "&&", left: left, right: right}
	}
	return left, nil
}

func (p *parser) parseEquality() (exprNode, error) {
	left, err := p.parseComparison()
	if err != nil {
		return nil, err
	}
	for {
		var op string
		switch {
		case p.acceptOp("=="):
			op = "=="
		case p.acceptOp("!="):
			op = "!="
		default:
			return left, nil
		}
		right, err := p.parseComparison()
		if err != nil {
			return nil, err
		}
		left = &binaryNode{op: op, left: left, right: right}
	}
}

func (p *parser) parseComparison() (exprNode, error) {
	left, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	for {
		var op string
		switch {
		case p.acceptOp("<="):
			op = "<="
		case p.acceptOp(">="):
			op = ">="
		case p.acceptOp("<"):
			op = "<"
		case p.acceptOp(">"):
			op = ">"
		default:
			return left, nil
		}
		right, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		left = &binaryNode{op: op, left: left, right: right}
	}
}

func (p *parser) parseTerm() (exprNode, error) {
	left, err := p.parseFactor()
	if err != nil {
		return nil, err
	}
	for {
		var op string
		switch {
		case p.acceptOp("+"):
			op = "+"
		case p.acceptOp("-"):
			op = "-"
		default:
			return left, nil
		}
		right, err := p.parseFactor()
		if err != nil {
			return nil, err
		}
		left = &binaryNode{op: op, left: left, right: right}
	}
}

func (p *parser) parseFactor() (exprNode, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		var op string
		switch {
		case p.acceptOp("*"):
			op = "*"
		case p.acceptOp("/"):
			op = "/"
		case p.acceptOp("%"):
			op = "%"
		default:
			return left, nil
		}
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &binaryNode{op: op, left: left, right: right}
	}
}

func (p *parser) parseUnary() (exprNode, error) {
	if p.acceptOp("!") {
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &unaryNode{op: "!", operand: operand}, nil
	}
	if p.acceptOp("-") {
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &unaryNode{op: "-", operand: operand}, nil
	}
	return p.parsePostfix()
}

func (p *parser) parsePostfix() (exprNode, error) {
	node, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for {
		if p.acceptOp(".") {
			t := p.next()
			if t.kind != tokenIdent {
				return nil, fmt.Errorf("expected field name after '.' at position %d", t.pos)
			}
			node = &memberNode{object: node, name: t.text}
			continue
		}
		if p.acceptOp("[") {
			index, err := p.parseTernary()
			if err != nil {
				return nil, err
			}
			if err := p.expectOp("]"); err != nil {
				return nil, err
			}
			node = &indexNode{object: node, index: index}
			continue
		}
		return node, nil
	}
}

func (p *parser) parsePrimary() (exprNode, error) {
	t := p.next()
	switch t.kind {
	case tokenNumber:
		return &literalNode{value: t.num}, nil
	case tokenString:
		return &literalNode{value: t.text}, nil
	case tokenIdent:
		switch t.text {
		case "true":
			return &literalNode{value: true}, nil
		case "false":
			return &literalNode{value: false}, nil
		case "null":
			return &literalNode{value: nil}, nil
		}
		if p.acceptOp("(") {
			var args []exprNode
			if !p.acceptOp(")") {
				for {
					arg, err := p.parseTernary()
					if err != nil {
						return nil, err
					}
					args = append(args, arg)
					if p.acceptOp(",") {
						continue
					}
					if err := p.expectOp(")"); err != nil {
						return nil, err
					}
					break
				}
			}
			return &callNode{name: t.text, args: args}, nil
		}
		return &identNode{name: t.text}, nil
	case tokenOp:
		if t.text == "(" {
			node, err := p.parseTernary()
			if err != nil {
				return nil, err
			}
			if err := p.expectOp(")"); err != nil {
				return nil, err
			}
			return node, nil
		}
	}
	return nil, fmt.Errorf("unexpected token %q at position %d", t.text, t.pos)
}
