// internal/service/order/infrastructure/rule/cel_admission.go
package rule

import (
	"strings"

	"github.com/google/cel-go/cel"
	"github.com/pkg/errors"

	"orderflow/internal/service/order/domain"
	"orderflow/internal/service/order/domain/port"
)

// CELAdmissionPolicy 用 CEL 表达式实现 port.AdmissionPolicy。
// 表达式中可以使用 order 和 product 两个变量，例如：
//
//	product.is_active && product.stock_quantity >= order.quantity && order.total_amount < 10000.0
type CELAdmissionPolicy struct {
	expression string
	program    cel.Program
}

var _ port.AdmissionPolicy = (*CELAdmissionPolicy)(nil)

// NewCELAdmissionPolicy 编译表达式，语法或类型错误在启动时就返回。
// 表达式为空时返回 nil, nil，调用方据此关闭准入校验。
func NewCELAdmissionPolicy(expression string) (*CELAdmissionPolicy, error) {
	expression = strings.TrimSpace(expression)
	if expression == "" {
		return nil, nil
	}

	env, err := cel.NewEnv(
		cel.Variable("order", cel.MapType(cel.StringType, cel.DynType)),
		cel.Variable("product", cel.MapType(cel.StringType, cel.DynType)),
		cel.CrossTypeNumericComparisons(true),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create cel env")
	}

	ast, issues := env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, errors.Wrapf(issues.Err(), "compile admission rule %q", expression)
	}
	out := ast.OutputType()
	if !out.IsExactType(cel.BoolType) && !out.IsExactType(cel.DynType) {
		return nil, errors.Errorf("admission rule %q must evaluate to bool, got %s", expression, out)
	}

	program, err := env.Program(ast)
	if err != nil {
		return nil, errors.Wrapf(err, "build admission rule %q", expression)
	}
	return &CELAdmissionPolicy{expression: expression, program: program}, nil
}

func (p *CELAdmissionPolicy) Admit(order *domain.Order, product *port.ProductDetails) (bool, string, error) {
	out, _, err := p.program.Eval(map[string]any{
		"order":   orderFacts(order),
		"product": productFacts(product),
	})
	if err != nil {
		return false, "", errors.Wrapf(err, "evaluate admission rule %q", p.expression)
	}
	admitted, ok := out.Value().(bool)
	if !ok {
		return false, "", errors.Errorf("admission rule %q returned %T, want bool", p.expression, out.Value())
	}
	if !admitted {
		return false, "Order rejected by admission rule: " + p.expression, nil
	}
	return true, "", nil
}

func orderFacts(o *domain.Order) map[string]any {
	return map[string]any{
		"id":             o.ID,
		"product_id":     o.ProductID,
		"price":          o.Price,
		"quantity":       int64(o.Quantity),
		"total_amount":   o.TotalAmount(),
		"customer_email": o.CustomerEmail,
	}
}

func productFacts(p *port.ProductDetails) map[string]any {
	return map[string]any{
		"id":             p.ProductID,
		"name":           p.Name,
		"price":          p.Price,
		"stock_quantity": int64(p.StockQuantity),
		"is_active":      p.IsActive,
	}
}
