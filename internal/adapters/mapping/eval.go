package mapping

import (
	"fmt"
	"math"
	"reflect"
	"strconv"

	"github.com/loomhq/loom/internal/domain"
	"github.com/loomhq/loom/internal/ports"
	"github.com/loomhq/loom/internal/xjson"
)

// nodesNamespace marks the `nodes` root so member access can both resolve an
// output and record which node id the formula referenced.
type nodesNamespace struct{}

type evalEnv struct {
	ctx      *domain.MappingContext
	helpers  map[string]ports.HelperFunc
	nodeRefs map[string]bool
}

func newEvalEnv(ctx *domain.MappingContext, helpers map[string]ports.HelperFunc) *evalEnv {
	return &evalEnv{
		ctx:      ctx,
		helpers:  helpers,
		nodeRefs: make(map[string]bool),
	}
}

func (e *evalEnv) eval(node exprNode) (interface{}, error) {
	switch n := node.(type) {
	case *literalNode:
		return n.value, nil

	case *identNode:
		return e.resolveIdent(n.name), nil

	case *memberNode:
		obj, err := e.eval(n.object)
		if err != nil {
			return nil, err
		}
		if _, ok := obj.(nodesNamespace); ok {
			e.nodeRefs[n.name] = true
			if e.ctx.NodeOutputs == nil {
				return nil, nil
			}
			return e.ctx.NodeOutputs[n.name], nil
		}
		if m, ok := obj.(map[string]interface{}); ok {
			return m[n.name], nil
		}
		return nil, nil

	case *indexNode:
		obj, err := e.eval(n.object)
		if err != nil {
			return nil, err
		}
		idx, err := e.eval(n.index)
		if err != nil {
			return nil, err
		}
		switch container := obj.(type) {
		case []interface{}:
			i, ok := toFloat(idx)
			if !ok {
				return nil, fmt.Errorf("array index must be numeric, got %T", idx)
			}
			pos := int(i)
			if pos < 0 || pos >= len(container) {
				return nil, nil
			}
			return container[pos], nil
		case map[string]interface{}:
			key, ok := idx.(string)
			if !ok {
				return nil, fmt.Errorf("object key must be a string, got %T", idx)
			}
			return container[key], nil
		}
		return nil, nil

	case *callNode:
		fn, ok := e.helpers[n.name]
		if !ok {
			return nil, fmt.Errorf("unknown function %q", n.name)
		}
		args := make([]interface{}, len(n.args))
		for i, argNode := range n.args {
			arg, err := e.eval(argNode)
			if err != nil {
				return nil, err
			}
			args[i] = arg
		}
		return fn(args)

	case *unaryNode:
		operand, err := e.eval(n.operand)
		if err != nil {
			return nil, err
		}
		switch n.op {
		case "!":
			return !truthy(operand), nil
		case "-":
			num, ok := toFloat(operand)
			if !ok {
				return nil, fmt.Errorf("cannot negate %T", operand)
			}
			return -num, nil
		}
		return nil, fmt.Errorf("unknown unary operator %q", n.op)

	case *binaryNode:
		return e.evalBinary(n)

	case *ternaryNode:
		cond, err := e.eval(n.cond)
		if err != nil {
			return nil, err
		}
		if truthy(cond) {
			return e.eval(n.then)
		}
		return e.eval(n.els)
	}

	return nil, fmt.Errorf("unknown expression node %T", node)
}

func (e *evalEnv) resolveIdent(name string) interface{} {
	switch name {
	case "nodes":
		return nodesNamespace{}
	case "vars", "globals":
		return e.ctx.GlobalVariables
	case "user":
		return e.ctx.UserContext
	}
	if e.ctx.NodeOutputs != nil {
		if v, ok := e.ctx.NodeOutputs[name]; ok {
			e.nodeRefs[name] = true
			return v
		}
	}
	if e.ctx.GlobalVariables != nil {
		if v, ok := e.ctx.GlobalVariables[name]; ok {
			return v
		}
	}
	if e.ctx.UserContext != nil {
		if v, ok := e.ctx.UserContext[name]; ok {
			return v
		}
	}
	return nil
}

func (e *evalEnv) evalBinary(n *binaryNode) (interface{}, error) {
	// Short-circuit the logical operators before evaluating the right side.
	if n.op == "&&" || n.op == "||" {
		left, err := e.eval(n.left)
		if err != nil {
			return nil, err
		}
		if n.op == "&&" && !truthy(left) {
			return false, nil
		}
		if n.op == "||" && truthy(left) {
			return true, nil
		}
		right, err := e.eval(n.right)
		if err != nil {
			return nil, err
		}
		return truthy(right), nil
	}

	left, err := e.eval(n.left)
	if err != nil {
		return nil, err
	}
	right, err := e.eval(n.right)
	if err != nil {
		return nil, err
	}

	switch n.op {
	case "==":
		return looseEqual(left, right), nil
	case "!=":
		return !looseEqual(left, right), nil
	}

	if n.op == "+" {
		if _, ok := left.(string); ok {
			return left.(string) + stringify(right), nil
		}
		if _, ok := right.(string); ok {
			return stringify(left) + right.(string), nil
		}
	}

	lnum, lok := toFloat(left)
	rnum, rok := toFloat(right)

	switch n.op {
	case "+", "-", "*", "/", "%":
		if !lok || !rok {
			return nil, fmt.Errorf("operator %q requires numeric operands, got %T and %T", n.op, left, right)
		}
		switch n.op {
		case "+":
			return lnum + rnum, nil
		case "-":
			return lnum - rnum, nil
		case "*":
			return lnum * rnum, nil
		case "/":
			if rnum == 0 {
				return nil, fmt.Errorf("division by zero")
			}
			return lnum / rnum, nil
		case "%":
			if rnum == 0 {
				return nil, fmt.Errorf("modulo by zero")
			}
			return math.Mod(lnum, rnum), nil
		}
	case "<", "<=", ">", ">=":
		if lok && rok {
			switch n.op {
			case "<":
				return lnum < rnum, nil
			case "<=":
				return lnum <= rnum, nil
			case ">":
				return lnum > rnum, nil
			case ">=":
				return lnum >= rnum, nil
			}
		}
		ls, lsOK := left.(string)
		rs, rsOK := right.(string)
		if lsOK && rsOK {
			switch n.op {
			case "<":
				return ls < rs, nil
			case "<=":
				return ls <= rs, nil
			case ">":
				return ls > rs, nil
			case ">=":
				return ls >= rs, nil
			}
		}
		return nil, fmt.Errorf("operator %q requires two numbers or two strings", n.op)
	}

	return nil, fmt.Errorf("unknown operator %q", n.op)
}

func truthy(v interface{}) bool {
	switch val := v.(type) {
	case nil:
		return false
	case bool:
		return val
	case string:
		return val != ""
	case []interface{}:
		return len(val) > 0
	case map[string]interface{}:
		return len(val) > 0
	}
	if num, ok := toFloat(v); ok {
		return num != 0
	}
	return true
}

func toFloat(v interface{}) (float64, bool) {
	switch num := v.(type) {
	case float64:
		return num, true
	case float32:
		return float64(num), true
	case int:
		return float64(num), true
	case int32:
		return float64(num), true
	case int64:
		return float64(num), true
	}
	return 0, false
}

func looseEqual(a, b interface{}) bool {
	if anum, ok := toFloat(a); ok {
		if bnum, ok := toFloat(b); ok {
			return anum == bnum
		}
		return false
	}
	return reflect.DeepEqual(a, b)
}

func stringify(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	}
	if num, ok := toFloat(v); ok {
		return strconv.FormatFloat(num, 'f', -1, 64)
	}
	if data, err := xjson.Marshal(v); err == nil {
		return string(data)
	}
	return fmt.Sprintf("%v", v)
}
