package model

// ModemConfig is the per-user address and credentials of a HiLink device
type ModemConfig struct {
	IP       string `json:"ip" db:"ip" validate:"required,hostname_port|ip|hostname"`
	Username string `json:"username" db:"username" validate:"required"`
	Password string `json:"password,omitempty" db:"-" validate:"required"`
}

// ModemInfo is a snapshot of the device taken for a single request.
// Timestamp comes from the persisted last-change history, never from the device.
type ModemInfo struct {
	Name          string `json:"name"`
	WanIP         string `json:"wan_ip"`
	Timestamp     string `json:"timestamp,omitempty"`
	Provider      string `json:"provider,omitempty"`
	DataUsage     string `json:"data_usage,omitempty"`
	TotalDownload int64  `json:"total_download,omitempty"`
	TotalUpload   int64  `json:"total_upload,omitempty"`
}

type DetailedInfo struct {
	DeviceName     string `json:"device_name"`
	WanIP          string `json:"wan_ip"`
	Provider       string `json:"provider"`
	SignalStrength string `json:"signal_strength"`
	RSSI           string `json:"rssi"`
	TotalDownload  string `json:"total_download"`
	TotalUpload    string `json:"total_upload"`
	MonthUsage     string `json:"month_usage"`
}

type TrafficStats struct {
	CurrentDownload int64  `json:"current_download"`
	CurrentUpload   int64  `json:"current_upload"`
	TotalDownload   int64  `json:"total_download"`
	TotalUpload     int64  `json:"total_upload"`
	DataUsage       string `json:"data_usage"`
}

type SignalInfo struct {
	RSSI           string `json:"rssi"`
	RSRP           string `json:"rsrp"`
	RSRQ           string `json:"rsrq"`
	SINR           string `json:"sinr"`
	SignalStrength string `json:"signal_strength"`
}

type MonthStats struct {
	CurrentMonthDownload int64  `json:"current_month_download"`
	CurrentMonthUpload   int64  `json:"current_month_upload"`
	MonthUsage           string `json:"month_usage"`
}

// LastChange is the most recent recorded rotation result, zero value if none
type LastChange struct {
	IP        string `json:"ip,omitempty" db:"wan_ip"`
	Timestamp string `json:"timestamp,omitempty" db:"changed_at"`
}

// DetectedModem is the result of setup-time discovery
type DetectedModem struct {
	IP         string `json:"ip"`
	DeviceName string `json:"device_name"`
}
