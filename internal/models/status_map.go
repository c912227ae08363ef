package models

import "strings"

// externalStatusTable maps upstream shipment status codes to internal
// vehicle states. Unrecognised, missing and cancelled codes all resolve to
// AWAITING_STATUS, the documented default.
var externalStatusTable = map[string]VehicleStatus{
	"PLANNED":        StatusIdle,
	"BOOKED":         StatusIdle,
	"SCHEDULED":      StatusIdle,
	"AT_PICKUP":      StatusIdle,
	"ARRIVED_PICKUP": StatusIdle,

	"IN_TRANSIT": StatusEnRoute,
	"ENROUTE":    StatusEnRoute,
	"EN_ROUTE":   StatusEnRoute,

	"AT_DROPOFF":      StatusPendingDelivery,
	"ARRIVED_DROPOFF": StatusPendingDelivery,

	"COMPLETED": StatusCompleted,
	"DELIVERED": StatusCompleted,

	"EXCEPTION": StatusError,
	"FAILED":    StatusError,
}

// ResolveExternalStatus normalises an upstream status code and looks it up
// in the finite mapping table.
func ResolveExternalStatus(code string) VehicleStatus {
	key := strings.ToUpper(strings.TrimSpace(code))
	key = strings.ReplaceAll(key, "-", "_")
	key = strings.ReplaceAll(key, " ", "_")
	if status, ok := externalStatusTable[key]; ok {
		return status
	}
	return StatusAwaiting
}
