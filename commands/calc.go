package commands

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/expr-lang/expr"
)

// calcEnv exposes the usual scientific-calculator names to
// expressions. Anything not listed here is a compile error, so there
// is no way to reach process state from chat.
var calcEnv = map[string]interface{}{
	"pi":   math.Pi,
	"e":    math.E,
	"abs":  math.Abs,
	"sqrt": math.Sqrt,
	"sin":  math.Sin,
	"cos":  math.Cos,
	"tan":  math.Tan,
	"asin": math.Asin,
	"acos": math.Acos,
	"atan": math.Atan,
	"log":  math.Log,
	"log2": math.Log2,
	"exp":  math.Exp,
	"pow":  math.Pow,
}

// Calc evaluates an arithmetic expression and replies with the result.
// Bad expressions reply with the evaluator's error text, matching how
// a calculator talks back rather than failing the command.
func Calc(ctx context.Context, req *Request) error {
	source := strings.Join(req.Args, " ")
	if source == "" {
		return nil
	}

	program, err := expr.Compile(source, expr.Env(calcEnv))
	if err != nil {
		return req.Reply(err.Error())
	}
	out, err := expr.Run(program, calcEnv)
	if err != nil {
		return req.Reply(err.Error())
	}
	return req.Reply(fmt.Sprintf("%v", out))
}
