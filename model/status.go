package model

import "time"

// Status is the latest readiness/health report from Planck.
type Status struct {
	TakeoffReady       bool      `json:"takeoff_ready"`
	LandReady          bool      `json:"land_ready"`
	CommboxOK          bool      `json:"commbox_ok"`
	CommboxGPSOK       bool      `json:"commbox_gps_ok"`
	TrackingTag        bool      `json:"tracking_tag"`
	TrackingCommboxGPS bool      `json:"tracking_commbox_gps"`
	TakeoffComplete    bool      `json:"takeoff_complete"`
	AtLocation         bool      `json:"at_location"`
	UpdatedAt          time.Time `json:"updated_at"`

	// WasAtLocation latches on the rising edge of AtLocation and stays set
	// until the consumer takes it or a new move-target request is issued.
	WasAtLocation bool `json:"was_at_location"`
}

// TagEstimate is the landing tag pose in the local NED frame.
type TagEstimate struct {
	PosCm       Vector3 `json:"pos_cm"`
	VelCms      Vector3 `json:"vel_cms"`
	AttCd       Vector3 `json:"att_cd"`
	TimestampUs uint64  `json:"timestamp_us"`
}
