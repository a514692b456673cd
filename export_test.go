package orders

import "github.com/xraph/orders/id"

// ScheduleSnapshot exposes scheduleSnapshot to the external test package.
func (e *Engine) ScheduleSnapshot(orderID id.OrderID) { e.scheduleSnapshot(orderID) }
