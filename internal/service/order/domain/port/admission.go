package port

import (
	"orderflow/internal/service/order/domain"
)

// AdmissionPolicy 在商品查询成功之后、saga 开始之前对订单做额外校验。
// 返回 false 时 reason 说明拒绝原因。
type AdmissionPolicy interface {
	Admit(order *domain.Order, product *ProductDetails) (admitted bool, reason string, err error)
}
