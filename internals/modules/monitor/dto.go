package monitor

import (
	"time"

	"healthmon/internals/domain"
)

// ServiceRequest is the body of POST /services and PUT /services/{name}.
// Zero values take the configured defaults; negatives are rejected.
type ServiceRequest struct {
	Name               string `json:"name" validate:"omitempty,max=128"`
	Host               string `json:"host" validate:"omitempty,max=253"`
	Port               int    `json:"port" validate:"gte=0,lte=65535"`
	Path               string `json:"path" validate:"omitempty,max=2048"`
	Scheme             string `json:"scheme" validate:"omitempty,oneof=http https tcp HTTP HTTPS TCP"`
	Interval           int    `json:"interval" validate:"gte=0"`
	DownAlertThreshold int    `json:"down_alert_threshold" validate:"gte=0"`
}

func (r ServiceRequest) toService() domain.Service {
	return domain.Service{
		Name:               r.Name,
		Host:               r.Host,
		Port:               r.Port,
		Path:               r.Path,
		Scheme:             domain.Scheme(r.Scheme),
		IntervalSec:        r.Interval,
		DownAlertThreshold: r.DownAlertThreshold,
	}
}

type ListServicesResponse struct {
	Count    int               `json:"count"`
	Services []ServiceSnapshot `json:"services"`
}

type RefreshAllResponse struct {
	Refreshed int `json:"refreshed"`
}

// StreamMessage is one frame on the snapshot stream.
type StreamMessage struct {
	Type     string            `json:"type"`
	At       time.Time         `json:"at"`
	Services []ServiceSnapshot `json:"services"`
}
