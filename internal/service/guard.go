package service

import "github.com/damsblt/helvetiforma-sub002/internal/model"

// ReusableOrder decides whether an order-creation attempt may proceed. It
// scans existing orders for one matching productID that has not failed and
// returns it, signalling "reuse, do not create"; nil means safe to create.
//
// Deliberately free of I/O: the article purchase flow consults this exact
// function instead of re-deriving the duplicate check, and the course
// enrollment flow consults ReusableEnrollment below.
func ReusableOrder(orders []*model.OrderRecord, productID string) *model.OrderRecord {
	for _, order := range orders {
		if order == nil {
			continue
		}
		if order.ProductID == productID && order.Status != model.OrderFailed {
			return order
		}
	}
	return nil
}

// ReusableEnrollment is the enrollment counterpart of ReusableOrder.
// Enrollment records only ever carry pending or completed status, so any
// existing record for the course blocks a fresh create and is returned for
// reuse.
func ReusableEnrollment(records []*model.EnrollmentRecord, courseID string) *model.EnrollmentRecord {
	for _, record := range records {
		if record == nil {
			continue
		}
		if record.CourseID == courseID {
			return record
		}
	}
	return nil
}
