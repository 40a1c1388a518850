package mercadopago

import "github.com/safar/congress-merch/internal/models"

var orderStatusByPaymentStatus = map[string]string{
	"approved":     models.OrderStatusPaid,
	"rejected":     models.OrderStatusCancelled,
	"cancelled":    models.OrderStatusCancelled,
	"pending":      models.OrderStatusPending,
	"in_process":   models.OrderStatusPending,
	"in_mediation": models.OrderStatusPending,
}

// OrderStatus maps a gateway payment status to an order status. ok is false
// for statuses the order lifecycle does not track, e.g. refunded.
func OrderStatus(paymentStatus string) (status string, ok bool) {
	status, ok = orderStatusByPaymentStatus[paymentStatus]
	return status, ok
}
